package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JsonApiRequest is the body of POST /api on the service port.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse is the reply to every JsonApiRequest.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ApiError struct {
	Status  int
	Message string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(status int, message string) *ApiError {
	return &ApiError{Status: status, Message: message}
}

type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

const healthCheckTimeout = 3 * time.Second

// JsonApiHandler serves operator commands on the service port.
type JsonApiHandler struct {
	checks   map[string]HealthCheck
	shutdown chan<- struct{}
	logger   *zap.Logger
	methods  map[string]apiMethodFunc
}

// NewJsonApiHandler creates the operator handler. A value sent on
// shutdown asks the process to stop gracefully.
func NewJsonApiHandler(checks map[string]HealthCheck, shutdown chan<- struct{}, logger *zap.Logger) *JsonApiHandler {
	h := &JsonApiHandler{
		checks:   checks,
		shutdown: shutdown,
		logger:   logger,
	}
	h.methods = map[string]apiMethodFunc{
		"ping":     h.ping,
		"health":   h.health,
		"shutdown": h.requestShutdown,
	}
	return h
}

// HandleRequest is the entry point for POST /api
func (h *JsonApiHandler) HandleRequest(c *gin.Context) {
	var req JsonApiRequest
	if err := decodeJSON(c, &req, false); err != nil {
		c.JSON(http.StatusBadRequest, JsonApiResponse{Error: err.Error()})
		return
	}

	method, ok := h.methods[req.Method]
	if !ok {
		c.JSON(http.StatusNotFound, JsonApiResponse{Error: fmt.Sprintf("Unknown service method: %s", req.Method)})
		return
	}

	result, apiErr := method(c, req.Arguments)
	if apiErr != nil {
		c.JSON(apiErr.Status, JsonApiResponse{Error: apiErr.Message, Data: result})
		return
	}
	c.JSON(http.StatusOK, JsonApiResponse{Success: true, Data: result})
}

func (h *JsonApiHandler) ping(c *gin.Context, _ json.RawMessage) (interface{}, *ApiError) {
	return "pong", nil
}

// health runs every check and reports each dependency as "ok" or its error.
func (h *JsonApiHandler) health(c *gin.Context, _ json.RawMessage) (interface{}, *ApiError) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	report := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			report[name] = err.Error()
			healthy = false
			continue
		}
		report[name] = "ok"
	}

	if !healthy {
		return report, NewApiError(http.StatusServiceUnavailable, "one or more dependencies are unhealthy")
	}
	return report, nil
}

func (h *JsonApiHandler) requestShutdown(c *gin.Context, _ json.RawMessage) (interface{}, *ApiError) {
	h.logger.Info("Shutdown requested via service API", zap.String("client_ip", c.ClientIP()))
	select {
	case h.shutdown <- struct{}{}:
	default:
		h.logger.Info("Shutdown already in progress")
	}
	return "Shutdown initiated", nil
}
