package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/services"
)

// RestUserHandler handles admin registration and login.
type RestUserHandler struct {
	accountService services.IAccountService
	logger         *zap.Logger
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(accountService services.IAccountService, logger *zap.Logger) *RestUserHandler {
	return &RestUserHandler{accountService: accountService, logger: logger}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/user/register
func (h *RestUserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := decodeJSON(c, &req, false); err != nil {
		badRequest(c, "%v", err)
		return
	}

	account, err := h.accountService.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("Admin account registered", zap.String("account_id", account.ID.Hex()))
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
}

// Login handles POST /api/user/login
func (h *RestUserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := decodeJSON(c, &req, false); err != nil {
		badRequest(c, "%v", err)
		return
	}

	result, err := h.accountService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   result.Token,
		"user":    result.Account,
	})
}
