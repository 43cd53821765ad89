package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/services"
)

const maxJSONBodyBytes = 1 << 20

// respondError maps a service error onto a status code. Unclassified
// errors are logged and reported without their cause.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, services.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrUpload):
		status = http.StatusBadGateway
	}

	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("route", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	if status == http.StatusBadGateway {
		logger.Warn("Media store failure", zap.String("route", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "Media upload failed"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, format string, args ...any) {
	c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf(format, args...)})
}

// decodeJSON reads the request body into dst, rejecting unknown fields
// and trailing data. An empty body leaves dst untouched when allowEmpty.
func decodeJSON(c *gin.Context, dst any, allowEmpty bool) error {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxJSONBodyBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read request body")
	}
	if len(body) > maxJSONBodyBytes {
		return fmt.Errorf("request body too large")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if allowEmpty {
			return nil
		}
		return fmt.Errorf("request body is required")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON request: %v", err)
	}
	if dec.More() {
		return fmt.Errorf("invalid JSON request: trailing data")
	}
	return nil
}
