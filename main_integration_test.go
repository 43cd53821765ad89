package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/api"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/cache"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/captcha"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/client"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/config"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/db"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/metrics"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/models"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/services"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/storage"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/tasks"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/utils"
)

// memoryMediaStore keeps uploaded objects in memory.
type memoryMediaStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryMediaStore) Upload(_ context.Context, file storage.Upload, folder string) (models.MediaRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := folder + "/" + uuid.NewString()
	m.objects[key] = file.Data
	return models.MediaRef{FileName: key, URL: "https://media.test/" + key}, nil
}

func (m *memoryMediaStore) Release(_ context.Context, fileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[fileName]; !ok {
		return errors.New("no such object")
	}
	delete(m.objects, fileName)
	return nil
}

func (m *memoryMediaStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type testApp struct {
	server *httptest.Server
	media  *memoryMediaStore
	redis  *miniredis.Miniredis
}

func testConfig() *config.Config {
	return &config.Config{
		RunMode:                 "api",
		JwtSecret:               "integration-test-secret",
		JwtTTL:                  time.Hour,
		CaptchaTokenTTL:         time.Hour,
		CatalogCacheTTL:         time.Minute,
		CorsAllowedOrigin:       "*",
		MaxUploadMB:             8,
		NotifyEmail:             "dealer@example.com",
		RateLimitSoftBucketSize: 50,
		RateLimitSoftRefillRate: 50,
		RateLimitHardBucketSize: 100,
		RateLimitHardRefillRate: 100,
	}
}

// startApp wires the real services against a scratch MongoDB database and
// an in-memory Redis. The test is skipped without MongoDB.
func startApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbName := "realtractors_it_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	mongoDb := utils.SetupTestDB(t, dbName, db.ListingsCollection, db.InquiriesCollection, db.AccountsCollection)
	t.Cleanup(func() { _ = mongoDb.Drop(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, db.EnsureIndexes(ctx, mongoDb))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	logger := zap.NewNop()
	media := &memoryMediaStore{objects: map[string][]byte{}}

	taskClient := tasks.NewClient(rdb, cfg.NotifyEmail, logger)
	t.Cleanup(func() { _ = taskClient.Close() })

	router, rateLimiter := api.SetupRouter(cfg, api.Services{
		Listings:  services.NewListingService(mongoDb, media, cache.NewCatalogCache(rdb, cfg.CatalogCacheTTL, logger), logger),
		Inquiries: services.NewInquiryService(mongoDb, taskClient, logger),
		Accounts:  services.NewAccountService(mongoDb, cfg, logger),
		Captcha:   captcha.NewTurnstileVerifier(cfg, logger),
		Metrics:   metrics.New(),
	}, logger)
	t.Cleanup(rateLimiter.Stop)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testApp{server: srv, media: media, redis: mr}
}

func jpeg(name string) client.File {
	return client.File{Name: name, ContentType: "image/jpeg", Data: []byte("not really a jpeg " + name)}
}

func TestIntegration_AdminCatalogLifecycle(t *testing.T) {
	app := startApp(t)
	ctx := context.Background()
	sessionPath := filepath.Join(t.TempDir(), "session.json")
	c := client.New(app.server.URL, nil, client.WithSessionFile(sessionPath))

	require.NoError(t, c.Ping(ctx))

	_, err := c.CreateListing(ctx, client.ListingFields{}, jpeg("t.jpg"), nil)
	require.ErrorIs(t, err, client.ErrNotLoggedIn)

	require.NoError(t, c.Register(ctx, "Dealer", "admin@example.com", "s3cret-pass"))
	err = c.Register(ctx, "Dealer", "admin@example.com", "s3cret-pass")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)

	err = c.Login(ctx, "admin@example.com", "wrong")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	require.NoError(t, c.Login(ctx, "admin@example.com", "s3cret-pass"))
	saved, err := client.LoadSession(sessionPath)
	require.NoError(t, err)
	require.True(t, saved.Authenticated())

	// A second client started from the saved session is logged in.
	admin := client.New(app.server.URL, saved)

	tractor, err := admin.CreateListing(ctx, client.ListingFields{
		Make:               client.String("Mahindra"),
		Model:              client.String("575 DI"),
		Year:               client.String("2019"),
		RegistrationNumber: client.String("GJ01AB1234"),
		Category:           client.String("Tractors"),
		Price:              client.String("450000"),
		Description:        client.String("Single owner"),
	}, jpeg("thumb.jpg"), []client.File{jpeg("p1.jpg"), jpeg("p2.jpg")})
	require.NoError(t, err)
	assert.True(t, tractor.IsAvailable)
	assert.Len(t, tractor.Files, 2)
	assert.Equal(t, 3, app.media.count())

	_, err = admin.CreateListing(ctx, client.ListingFields{
		Make:               client.String("Honda"),
		Model:              client.String("Activa 6G"),
		Year:               client.String("2022"),
		RegistrationNumber: client.String("GJ05XY9876"),
		Category:           client.String("Activa"),
	}, jpeg("activa.jpg"), nil)
	require.NoError(t, err)

	all, err := c.ListListings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Honda", all[0].Make, "newest first")

	tractors, err := c.ListingsByCategory(ctx, "Tractors")
	require.NoError(t, err)
	require.Len(t, tractors, 1)
	assert.Equal(t, tractor.ID, tractors[0].ID)

	counts, err := c.CategoryCounts(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.CategoryCount{
		{Category: models.CategoryTractors, PostCount: 1},
		{Category: models.CategoryActiva, PostCount: 1},
	}, counts)

	edited, err := admin.EditListing(ctx, tractor.ID.Hex(), client.ListingFields{
		Price:       client.String("425000"),
		Description: client.String(""),
		IsAvailable: client.Bool(false),
	}, nil, []client.File{jpeg("p3.jpg")})
	require.NoError(t, err)
	assert.Equal(t, "425000", edited.Price)
	assert.Empty(t, edited.Description)
	assert.False(t, edited.IsAvailable)
	assert.Len(t, edited.Files, 3)
	assert.Equal(t, "Mahindra", edited.Make)

	fetched, err := c.GetListing(ctx, tractor.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "425000", fetched.Price)

	require.NoError(t, admin.DeleteListing(ctx, tractor.ID.Hex()))
	assert.Equal(t, 1, app.media.count())

	_, err = c.GetListing(ctx, tractor.ID.Hex())
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	require.NoError(t, c.Logout())
	loggedOut, err := client.LoadSession(sessionPath)
	require.NoError(t, err)
	assert.False(t, loggedOut.Authenticated())
}

func TestIntegration_InquiryLifecycle(t *testing.T) {
	app := startApp(t)
	ctx := context.Background()

	require.NoError(t, client.New(app.server.URL, nil).Register(ctx, "Dealer", "admin@example.com", "s3cret-pass"))
	admin := client.New(app.server.URL, nil)
	require.NoError(t, admin.Login(ctx, "admin@example.com", "s3cret-pass"))

	listing, err := admin.CreateListing(ctx, client.ListingFields{
		Make:               client.String("Maruti"),
		Model:              client.String("Swift"),
		Year:               client.String("2018"),
		RegistrationNumber: client.String("GJ01CD5678"),
		Category:           client.String("Car"),
	}, jpeg("swift.jpg"), nil)
	require.NoError(t, err)

	visitor := client.New(app.server.URL, nil, client.WithFingerprint("fp-visitor"))
	general, err := visitor.SendInquiry(ctx, client.Inquiry{
		FullName: "Ravi Patel",
		EmailID:  "ravi@example.com",
		Query:    "Do you take trade-ins?",
	})
	require.NoError(t, err)
	assert.False(t, general.IsResolved)

	_, err = visitor.SendInquiry(ctx, client.Inquiry{
		FullName:  "Asha Shah",
		ContactNo: "9876543210",
		EmailID:   "asha@example.com",
		Post:      listing.ID.Hex(),
	})
	require.NoError(t, err)

	_, err = visitor.SendInquiry(ctx, client.Inquiry{FullName: "No Email"})
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	// Each stored inquiry schedules one notification.
	pending, err := app.redis.List("asynq:{default}:pending")
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	unresolved, err := admin.ListInquiries(ctx, client.Bool(false))
	require.NoError(t, err)
	require.Len(t, unresolved, 2)
	assert.Equal(t, "Asha Shah", unresolved[0].FullName, "newest first")
	require.NotNil(t, unresolved[0].Post)
	assert.Equal(t, "Swift", unresolved[0].Post.Model)

	resolved, err := admin.ResolveInquiry(ctx, general.ID.Hex(), true)
	require.NoError(t, err)
	assert.True(t, resolved.IsResolved)

	onlyResolved, err := admin.ListInquiries(ctx, client.Bool(true))
	require.NoError(t, err)
	require.Len(t, onlyResolved, 1)
	assert.Equal(t, general.ID, onlyResolved[0].ID)

	// Deleting the listing leaves the inquiry with a null listing.
	require.NoError(t, admin.DeleteListing(ctx, listing.ID.Hex()))
	everything, err := admin.ListInquiries(ctx, nil)
	require.NoError(t, err)
	require.Len(t, everything, 2)
	for _, q := range everything {
		assert.Nil(t, q.Post, "inquiry %s", q.FullName)
	}
}
