package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/services"
)

// RestInquiryHandler handles the contact form and the admin inquiry list.
type RestInquiryHandler struct {
	inquiryService services.IInquiryService
	logger         *zap.Logger
}

// NewRestInquiryHandler creates a new RestInquiryHandler.
func NewRestInquiryHandler(inquiryService services.IInquiryService, logger *zap.Logger) *RestInquiryHandler {
	return &RestInquiryHandler{inquiryService: inquiryService, logger: logger}
}

type sendQueryRequest struct {
	FullName  string `json:"fullName"`
	ContactNo string `json:"contactNo"`
	EmailID   string `json:"emailId"`
	Post      string `json:"post"`
	Query     string `json:"query"`
}

// SendQuery handles POST /api/queries/sendQuery
func (h *RestInquiryHandler) SendQuery(c *gin.Context) {
	var req sendQueryRequest
	if err := decodeJSON(c, &req, false); err != nil {
		badRequest(c, "%v", err)
		return
	}

	inquiry, err := h.inquiryService.CreateInquiry(c.Request.Context(), services.InquiryInput{
		FullName:  req.FullName,
		ContactNo: req.ContactNo,
		EmailID:   req.EmailID,
		Post:      req.Post,
		Query:     req.Query,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Query submitted successfully", "query": inquiry})
}

type getQueriesRequest struct {
	IsResolvedStatus *bool `json:"isResolvedStatus"`
}

// GetQueries handles GET /api/queries/getQueries. The resolution filter
// comes from ?isResolvedStatus= or, for older clients, a JSON body.
// Without either, every inquiry is returned.
func (h *RestInquiryHandler) GetQueries(c *gin.Context) {
	var resolved *bool
	if raw, ok := c.GetQuery("isResolvedStatus"); ok && strings.TrimSpace(raw) != "" {
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			badRequest(c, "isResolvedStatus must be true or false, got %q", raw)
			return
		}
		resolved = &v
	} else {
		var req getQueriesRequest
		if err := decodeJSON(c, &req, true); err != nil {
			badRequest(c, "%v", err)
			return
		}
		resolved = req.IsResolvedStatus
	}

	inquiries, err := h.inquiryService.ListInquiries(c.Request.Context(), resolved)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, inquiries)
}

type resolveQueryRequest struct {
	QueryID                string `json:"queryId"`
	UpdateIsResolvedStatus *bool  `json:"updateIsResolvedStatus"`
}

// ResolveQuery handles PUT /api/queries/resolveQuery
func (h *RestInquiryHandler) ResolveQuery(c *gin.Context) {
	var req resolveQueryRequest
	if err := decodeJSON(c, &req, false); err != nil {
		badRequest(c, "%v", err)
		return
	}
	if strings.TrimSpace(req.QueryID) == "" {
		badRequest(c, "queryId is required")
		return
	}
	if req.UpdateIsResolvedStatus == nil {
		badRequest(c, "updateIsResolvedStatus is required")
		return
	}

	inquiry, err := h.inquiryService.SetResolved(c.Request.Context(), strings.TrimSpace(req.QueryID), *req.UpdateIsResolvedStatus)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Query status updated successfully", "updatedUserQuery": inquiry})
}
