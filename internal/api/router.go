package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/api/handlers"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/api/middleware"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/captcha"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/config"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/logging"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/metrics"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/services"
)

// Services bundles what the public API needs.
type Services struct {
	Listings  services.IListingService
	Inquiries services.IInquiryService
	Accounts  services.IAccountService
	Captcha   captcha.ITurnstileVerifier
	Metrics   *metrics.Metrics // optional
}

// SetupRouter configures the public Gin engine. The returned RateLimiter
// must be stopped when the server shuts down.
func SetupRouter(cfg *config.Config, svc Services, logger *zap.Logger) (*gin.Engine, *middleware.RateLimiter) {
	r := gin.New()
	r.Use(logging.GinRecovery(logger), logging.GinLogger(logger))
	if svc.Metrics != nil {
		r.Use(svc.Metrics.GinMiddleware())
	}
	r.Use(middleware.CORSMiddleware(cfg.CorsAllowedOrigin))

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitsFromConfig(cfg), logger)
	captchaCheck := middleware.CaptchaMiddleware(svc.Captcha, cfg.CaptchaTokenTTL, logger)
	limit := rateLimiter.Limit()
	// Public writes are guarded by captcha and rate limiting.
	guarded := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return []gin.HandlerFunc{captchaCheck, limit, h}
	}
	requireAuth := middleware.AuthMiddleware(cfg.JwtSecret)

	listingHandler := handlers.NewRestListingHandler(svc.Listings, cfg.MaxUploadMB, logger)
	inquiryHandler := handlers.NewRestInquiryHandler(svc.Inquiries, logger)
	userHandler := handlers.NewRestUserHandler(svc.Accounts, logger)

	api := r.Group("/api")
	{
		api.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Catalog
		api.GET("/getAllPost", listingHandler.GetAllPosts)
		api.POST("/postByCategory", listingHandler.PostsByCategory)
		api.GET("/postById/:id", listingHandler.GetPostByID)
		api.GET("/getCategories", listingHandler.GetCategories)

		// Admin catalog management
		api.POST("/createPost", requireAuth, listingHandler.CreatePost)
		api.PUT("/editPost/:id", requireAuth, listingHandler.EditPost)
		api.DELETE("/deletePost/:id", requireAuth, listingHandler.DeletePost)

		queries := api.Group("/queries")
		{
			queries.POST("/sendQuery", guarded(inquiryHandler.SendQuery)...)
			queries.GET("/getQueries", inquiryHandler.GetQueries)
			queries.PUT("/resolveQuery", inquiryHandler.ResolveQuery)
		}

		user := api.Group("/user")
		{
			user.POST("/register", guarded(userHandler.Register)...)
			user.POST("/login", guarded(userHandler.Login)...)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return r, rateLimiter
}

// SetupServiceRouter configures the operator engine: POST /api commands
// and, when metrics are enabled, GET /metrics.
func SetupServiceRouter(checks map[string]handlers.HealthCheck, m *metrics.Metrics, shutdownChan chan<- struct{}, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(logging.GinRecovery(logger), logging.GinLogger(logger))

	serviceHandler := handlers.NewJsonApiHandler(checks, shutdownChan, logger)
	r.POST("/api", serviceHandler.HandleRequest)
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}
	return r
}
