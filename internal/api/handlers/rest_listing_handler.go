package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/models"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/services"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/storage"
)

const (
	formThumbnail   = "thumbnail"
	multipartMemory = 32 << 20
)

// Photos may arrive under either name depending on the form builder.
var formPhotoFields = []string{"photos", "photos[]"}

// RestListingHandler handles REST requests for listings.
type RestListingHandler struct {
	listingService services.IListingService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewRestListingHandler creates a new RestListingHandler. maxUploadMB caps
// the whole multipart body.
func NewRestListingHandler(listingService services.IListingService, maxUploadMB int, logger *zap.Logger) *RestListingHandler {
	return &RestListingHandler{
		listingService: listingService,
		maxUploadBytes: int64(maxUploadMB) << 20,
		logger:         logger,
	}
}

// parseMultipart reads the form, answering 400 or 413 itself on failure.
func (h *RestListingHandler) parseMultipart(c *gin.Context) (*multipart.Form, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes)})
		} else {
			badRequest(c, "invalid multipart form: %v", err)
		}
		return nil, false
	}
	return c.Request.MultipartForm, true
}

func formValue(form *multipart.Form, key string) (string, bool) {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func readUpload(fh *multipart.FileHeader) (storage.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return storage.Upload{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return storage.Upload{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return storage.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// formUploads returns the optional thumbnail and the photos in form order.
func formUploads(form *multipart.Form) (*storage.Upload, []storage.Upload, error) {
	var thumbnail *storage.Upload
	if headers := form.File[formThumbnail]; len(headers) > 0 {
		if len(headers) > 1 {
			return nil, nil, fmt.Errorf("only one thumbnail may be uploaded")
		}
		up, err := readUpload(headers[0])
		if err != nil {
			return nil, nil, err
		}
		thumbnail = &up
	}

	var photos []storage.Upload
	for _, field := range formPhotoFields {
		for _, fh := range form.File[field] {
			up, err := readUpload(fh)
			if err != nil {
				return nil, nil, err
			}
			photos = append(photos, up)
		}
	}
	return thumbnail, photos, nil
}

func parseAvailability(raw string) (bool, error) {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("isAvailable must be true or false, got %q", raw)
	}
	return v, nil
}

// CreatePost handles POST /api/createPost
func (h *RestListingHandler) CreatePost(c *gin.Context) {
	form, ok := h.parseMultipart(c)
	if !ok {
		return
	}

	var in services.ListingInput
	in.Make, _ = formValue(form, "make")
	in.Model, _ = formValue(form, "model")
	in.Year, _ = formValue(form, "year")
	in.RegistrationNumber, _ = formValue(form, "registrationNumber")
	in.Category, _ = formValue(form, "category")
	in.Description, _ = formValue(form, "description")
	in.Price, _ = formValue(form, "price")
	if raw, ok := formValue(form, "isAvailable"); ok && strings.TrimSpace(raw) != "" {
		available, err := parseAvailability(raw)
		if err != nil {
			badRequest(c, "%v", err)
			return
		}
		in.IsAvailable = &available
	}

	thumbnail, photos, err := formUploads(form)
	if err != nil {
		badRequest(c, "%v", err)
		return
	}

	listing, err := h.listingService.CreateListing(c.Request.Context(), in, thumbnail, photos)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

// GetAllPosts handles GET /api/getAllPost
func (h *RestListingHandler) GetAllPosts(c *gin.Context) {
	listings, err := h.listingService.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, listings)
}

type postsByCategoryRequest struct {
	Categories []string `json:"categories"`
}

// PostsByCategory handles POST /api/postByCategory. An empty or missing
// category list returns every listing.
func (h *RestListingHandler) PostsByCategory(c *gin.Context) {
	var req postsByCategoryRequest
	if err := decodeJSON(c, &req, true); err != nil {
		badRequest(c, "%v", err)
		return
	}

	listings, err := h.listingService.ListByCategories(c.Request.Context(), req.Categories)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, listings)
}

// GetPostByID handles GET /api/postById/:id
func (h *RestListingHandler) GetPostByID(c *gin.Context) {
	listing, err := h.listingService.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// GetCategories handles GET /api/getCategories
func (h *RestListingHandler) GetCategories(c *gin.Context) {
	counts, err := h.listingService.CategoryCounts(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// patchString reads a text field into a patch member. A field sent empty
// becomes Null.
func patchString(form *multipart.Form, key string) models.Field[string] {
	raw, ok := formValue(form, key)
	switch {
	case !ok:
		return models.Field[string]{}
	case raw == "":
		return models.Null[string]()
	default:
		return models.Set(raw)
	}
}

func listingPatchFromForm(form *multipart.Form) (models.ListingPatch, error) {
	patch := models.ListingPatch{
		Make:               patchString(form, "make"),
		Model:              patchString(form, "model"),
		Year:               patchString(form, "year"),
		RegistrationNumber: patchString(form, "registrationNumber"),
		Description:        patchString(form, "description"),
		Price:              patchString(form, "price"),
	}

	if raw, ok := formValue(form, "category"); ok {
		if raw == "" {
			patch.Category = models.Null[models.Category]()
		} else if category, err := models.ParseCategory(raw); err == nil {
			patch.Category = models.Set(category)
		} else {
			// Left for ListingPatch.Validate to reject.
			patch.Category = models.Set(models.Category(raw))
		}
	}

	if raw, ok := formValue(form, "isAvailable"); ok {
		if raw == "" {
			patch.IsAvailable = models.Null[bool]()
		} else {
			available, err := parseAvailability(raw)
			if err != nil {
				return patch, err
			}
			patch.IsAvailable = models.Set(available)
		}
	}
	return patch, nil
}

// EditPost handles PUT /api/editPost/:id. The body is multipart (fields plus
// optional thumbnail and photos) or a JSON ListingPatch without media.
func (h *RestListingHandler) EditPost(c *gin.Context) {
	var (
		patch     models.ListingPatch
		thumbnail *storage.Upload
		photos    []storage.Upload
	)

	if c.ContentType() == gin.MIMEJSON {
		if err := decodeJSON(c, &patch, false); err != nil {
			badRequest(c, "%v", err)
			return
		}
	} else {
		form, ok := h.parseMultipart(c)
		if !ok {
			return
		}
		var err error
		if patch, err = listingPatchFromForm(form); err != nil {
			badRequest(c, "%v", err)
			return
		}
		if thumbnail, photos, err = formUploads(form); err != nil {
			badRequest(c, "%v", err)
			return
		}
	}

	if patch.Empty() && thumbnail == nil && len(photos) == 0 {
		badRequest(c, "no fields or media to update")
		return
	}

	listing, err := h.listingService.UpdateListing(c.Request.Context(), c.Param("id"), patch, thumbnail, photos)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// DeletePost handles DELETE /api/deletePost/:id
func (h *RestListingHandler) DeletePost(c *gin.Context) {
	if err := h.listingService.DeleteListing(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}
