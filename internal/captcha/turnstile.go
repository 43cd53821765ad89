package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/config"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/logging"
)

const humanTokenIssuer = "realtractors-captcha"

// ClientIdentity is what a human token is bound to. A token presented from a
// different address, browser fingerprint or SPA session is rejected.
type ClientIdentity struct {
	IP          string
	Fingerprint string
	SPASession  string
}

func (id ClientIdentity) String() string {
	return id.IP + "|" + id.Fingerprint + "|" + id.SPASession
}

// ITurnstileVerifier defines the interface for verifying Cloudflare Turnstile tokens.
type ITurnstileVerifier interface {
	Verify(ctx context.Context, challenge, remoteIP string) (bool, error)
	GenerateHumanToken(id ClientIdentity, ttl time.Duration) (string, error)
	ValidateHumanToken(token string, id ClientIdentity) bool
}

// siteVerifyResponse is the body returned by the siteverify endpoint.
type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
	Action     string   `json:"action"`
}

type turnstileVerifier struct {
	secretKey     string
	siteVerifyURL string
	signingKey    []byte
	httpClient    *http.Client
	logger        *zap.Logger
}

// NewTurnstileVerifier creates a new Turnstile verifier.
// Human tokens are signed with the JWT secret.
func NewTurnstileVerifier(cfg *config.Config, logger *zap.Logger) ITurnstileVerifier {
	logger = logging.OrNop(logger)
	if cfg.CloudflareTurnstileSecretKey == "" {
		logger.Warn("Cloudflare Turnstile secret key not configured, captcha challenges will be approved")
	}
	return &turnstileVerifier{
		secretKey:     cfg.CloudflareTurnstileSecretKey,
		siteVerifyURL: cfg.CloudflareSiteVerifyURL,
		signingKey:    []byte(cfg.JwtSecret),
		httpClient:    &http.Client{Timeout: 5 * time.Second},
		logger:        logger,
	}
}

// Verify calls the Cloudflare siteverify endpoint.
func (v *turnstileVerifier) Verify(ctx context.Context, challenge, remoteIP string) (bool, error) {
	if v.secretKey == "" {
		return true, nil
	}

	form := map[string]string{
		"secret":   v.secretKey,
		"response": challenge,
	}
	if remoteIP != "" {
		form["remoteip"] = remoteIP
	}
	payload, err := json.Marshal(form)
	if err != nil {
		return false, fmt.Errorf("encode turnstile request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.siteVerifyURL, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("create turnstile request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("contact turnstile service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return false, fmt.Errorf("read turnstile response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		v.logger.Warn("Turnstile siteverify returned non-OK status",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return false, fmt.Errorf("turnstile verification failed with status %d", resp.StatusCode)
	}

	var result siteVerifyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("parse turnstile response: %w", err)
	}
	if !result.Success {
		v.logger.Info("Turnstile challenge rejected", zap.Strings("error_codes", result.ErrorCodes))
	}
	return result.Success, nil
}

// HumanTokenClaims is the payload of the X-C-T token.
type HumanTokenClaims struct {
	IP          string `json:"ip"`
	Fingerprint string `json:"bfp"`
	SPASession  string `json:"spa"`
	jwt.RegisteredClaims
}

// GenerateHumanToken signs a token confirming that id passed a challenge.
func (v *turnstileVerifier) GenerateHumanToken(id ClientIdentity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &HumanTokenClaims{
		IP:          id.IP,
		Fingerprint: id.Fingerprint,
		SPASession:  id.SPASession,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    humanTokenIssuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign human token: %w", err)
	}
	return signed, nil
}

// ValidateHumanToken checks signature, expiry and that the token belongs to id.
func (v *turnstileVerifier) ValidateHumanToken(token string, id ClientIdentity) bool {
	claims := &HumanTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(humanTokenIssuer))
	if err != nil || !parsed.Valid {
		v.logger.Debug("Invalid X-C-T token", zap.Error(err))
		return false
	}

	if claims.IP != id.IP || claims.Fingerprint != id.Fingerprint || claims.SPASession != id.SPASession {
		v.logger.Info("X-C-T token presented by a different client",
			zap.String("token_client", ClientIdentity{claims.IP, claims.Fingerprint, claims.SPASession}.String()),
			zap.String("client", id.String()))
		return false
	}
	return true
}
