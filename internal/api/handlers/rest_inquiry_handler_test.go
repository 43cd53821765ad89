package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/api/handlers"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/models"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/services"
)

func setupInquiryRouter(svc services.IInquiryService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handlers.NewRestInquiryHandler(svc, zap.NewNop())
	r := gin.New()
	r.POST("/api/queries/sendQuery", h.SendQuery)
	r.GET("/api/queries/getQueries", h.GetQueries)
	r.PUT("/api/queries/resolveQuery", h.ResolveQuery)
	return r
}

func boolPtr(b bool) *bool { return &b }

func TestRestInquiryHandler_SendQuery(t *testing.T) {
	svc := new(MockInquiryService)
	r := setupInquiryRouter(svc)

	postID := primitive.NewObjectID()
	stored := &models.Inquiry{FullName: "Ravi Patel", EmailID: "ravi@example.com", Post: &postID, Query: models.DefaultInquiryQuery}
	stored.GenID()

	svc.On("CreateInquiry", mock.Anything, services.InquiryInput{
		FullName:  "Ravi Patel",
		ContactNo: "+91 98765 43210",
		EmailID:   "ravi@example.com",
		Post:      postID.Hex(),
	}).Return(stored, nil)

	w := serve(r, http.MethodPost, "/api/queries/sendQuery", bytes.NewBufferString(fmt.Sprintf(
		`{"fullName":"Ravi Patel","contactNo":"+91 98765 43210","emailId":"ravi@example.com","post":%q}`, postID.Hex())), "application/json")

	assert.Equal(t, http.StatusCreated, w.Code)
	var body struct {
		Message string         `json:"message"`
		Query   models.Inquiry `json:"query"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Message)
	assert.Equal(t, stored.ID, body.Query.ID)
	assert.Equal(t, models.DefaultInquiryQuery, body.Query.Query)
	svc.AssertExpectations(t)
}

func TestRestInquiryHandler_SendQuery_Invalid(t *testing.T) {
	svc := new(MockInquiryService)
	r := setupInquiryRouter(svc)
	svc.On("CreateInquiry", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("%w: fullName is required", services.ErrValidation))

	w := serve(r, http.MethodPost, "/api/queries/sendQuery", bytes.NewBufferString(`{"emailId":"a@b.co"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w), "fullName")

	w = serve(r, http.MethodPost, "/api/queries/sendQuery", bytes.NewBufferString(`{"fullName":"x","phone":"1"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodPost, "/api/queries/sendQuery", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertNumberOfCalls(t, "CreateInquiry", 1)
}

func TestRestInquiryHandler_GetQueries_Filters(t *testing.T) {
	svc := new(MockInquiryService)
	r := setupInquiryRouter(svc)

	views := []models.InquiryView{{FullName: "A", Status: models.InquiryPending}}
	svc.On("ListInquiries", mock.Anything, (*bool)(nil)).Return(views, nil).Once()
	svc.On("ListInquiries", mock.Anything, boolPtr(true)).Return([]models.InquiryView{}, nil).Once()
	svc.On("ListInquiries", mock.Anything, boolPtr(false)).Return(views, nil).Once()

	w := serve(r, http.MethodGet, "/api/queries/getQueries", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)

	w = serve(r, http.MethodGet, "/api/queries/getQueries?isResolvedStatus=true", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = serve(r, http.MethodGet, "/api/queries/getQueries", bytes.NewBufferString(`{"isResolvedStatus":false}`), "application/json")
	assert.Equal(t, http.StatusOK, w.Code)

	svc.AssertExpectations(t)
}

func TestRestInquiryHandler_GetQueries_BadFilter(t *testing.T) {
	svc := new(MockInquiryService)
	r := setupInquiryRouter(svc)

	w := serve(r, http.MethodGet, "/api/queries/getQueries?isResolvedStatus=maybe", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "ListInquiries", mock.Anything, mock.Anything)
}

func TestRestInquiryHandler_ResolveQuery(t *testing.T) {
	svc := new(MockInquiryService)
	r := setupInquiryRouter(svc)

	id := primitive.NewObjectID()
	updated := &models.Inquiry{FullName: "A", IsResolved: true}
	updated.ID = id
	svc.On("SetResolved", mock.Anything, id.Hex(), true).Return(updated, nil)

	w := serve(r, http.MethodPut, "/api/queries/resolveQuery",
		bytes.NewBufferString(fmt.Sprintf(`{"queryId":%q,"updateIsResolvedStatus":true}`, id.Hex())), "application/json")

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Message          string         `json:"message"`
		UpdatedUserQuery models.Inquiry `json:"updatedUserQuery"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.UpdatedUserQuery.IsResolved)
	assert.Equal(t, id, body.UpdatedUserQuery.ID)
	svc.AssertExpectations(t)
}

func TestRestInquiryHandler_ResolveQuery_Errors(t *testing.T) {
	svc := new(MockInquiryService)
	r := setupInquiryRouter(svc)
	missing := primitive.NewObjectID().Hex()
	svc.On("SetResolved", mock.Anything, missing, false).Return(nil, fmt.Errorf("%w: inquiry %s", services.ErrNotFound, missing))

	w := serve(r, http.MethodPut, "/api/queries/resolveQuery", bytes.NewBufferString(`{"updateIsResolvedStatus":true}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w), "queryId")

	w = serve(r, http.MethodPut, "/api/queries/resolveQuery", bytes.NewBufferString(`{"queryId":"abc"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodPut, "/api/queries/resolveQuery",
		bytes.NewBufferString(fmt.Sprintf(`{"queryId":%q,"updateIsResolvedStatus":false}`, missing)), "application/json")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
