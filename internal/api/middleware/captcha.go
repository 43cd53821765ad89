package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/captcha"
)

// ContextKeyIsHumanVerified holds the captcha status in Gin context.
const ContextKeyIsHumanVerified = "isHumanVerified"

func clientIdentity(c *gin.Context) captcha.ClientIdentity {
	return captcha.ClientIdentity{
		IP:          c.ClientIP(),
		Fingerprint: c.GetHeader("X-BFP"),
		SPASession:  c.GetHeader("X-SPA"),
	}
}

// CaptchaMiddleware marks the request as human when it carries a valid
// X-C-T token or solves the Turnstile challenge in X-C-V. A solved
// challenge earns a fresh X-C-T token in the response. It never aborts;
// the rate limiter decides what an unverified client may do.
func CaptchaMiddleware(verifier captcha.ITurnstileVerifier, tokenTTL time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := clientIdentity(c)
		humanToken := c.GetHeader("X-C-T")
		challenge := c.GetHeader("X-C-V")

		isHuman := humanToken != "" && verifier.ValidateHumanToken(humanToken, id)

		if !isHuman && challenge != "" {
			verified, err := verifier.Verify(c.Request.Context(), challenge, id.IP)
			if err != nil {
				logger.Warn("Turnstile verification error", zap.String("client", id.String()), zap.Error(err))
			} else if verified {
				isHuman = true
				token, err := verifier.GenerateHumanToken(id, tokenTTL)
				if err != nil {
					logger.Error("Failed to issue X-C-T token", zap.Error(err))
				} else {
					c.Header("X-C-T", token)
				}
			}
		}

		c.Set(ContextKeyIsHumanVerified, isHuman)
		c.Next()
	}
}
