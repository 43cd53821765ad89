package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/auth"
)

const (
	// ContextKeyAccountID holds the authenticated account id (hex) in Gin context.
	ContextKeyAccountID = "accountID"
	// ContextKeyAccountEmail holds the authenticated account e-mail in Gin context.
	ContextKeyAccountEmail = "accountEmail"
)

// AuthMiddleware rejects requests without a valid Bearer session token.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ValidateJWT(strings.TrimSpace(token), jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextKeyAccountID, claims.AccountID)
		c.Set(ContextKeyAccountEmail, claims.Email)
		c.Next()
	}
}
