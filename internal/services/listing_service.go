package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/cache"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/db"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/models"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/storage"
)

// IListingService defines the interface for listing-related operations.
type IListingService interface {
	CreateListing(ctx context.Context, in ListingInput, thumbnail *storage.Upload, files []storage.Upload) (*models.Listing, error)
	ListAll(ctx context.Context) ([]models.Listing, error)
	ListByCategories(ctx context.Context, categories []string) ([]models.Listing, error)
	GetListing(ctx context.Context, id string) (*models.Listing, error)
	UpdateListing(ctx context.Context, id string, patch models.ListingPatch, thumbnail *storage.Upload, files []storage.Upload) (*models.Listing, error)
	DeleteListing(ctx context.Context, id string) error
	CategoryCounts(ctx context.Context) ([]models.CategoryCount, error)
}

// ListingInput carries the fields of a new listing as submitted.
type ListingInput struct {
	Make               string
	Model              string
	Year               string
	RegistrationNumber string
	Category           string
	Description        string
	Price              string
	IsAvailable        *bool // nil means available
}

func (in ListingInput) toListing() (*models.Listing, error) {
	required := []struct{ name, value string }{
		{"make", in.Make},
		{"model", in.Model},
		{"year", in.Year},
		{"registrationNumber", in.RegistrationNumber},
		{"category", in.Category},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, validationError("%s is required", r.name)
		}
	}
	category, err := models.ParseCategory(in.Category)
	if err != nil {
		return nil, validationError("%v", err)
	}
	available := true
	if in.IsAvailable != nil {
		available = *in.IsAvailable
	}
	return &models.Listing{
		Make:               strings.TrimSpace(in.Make),
		Model:              strings.TrimSpace(in.Model),
		Year:               strings.TrimSpace(in.Year),
		RegistrationNumber: strings.TrimSpace(in.RegistrationNumber),
		Category:           category,
		Description:        in.Description,
		Price:              strings.TrimSpace(in.Price),
		IsAvailable:        available,
		Files:              []models.MediaRef{},
	}, nil
}

// listingService implements IListingService.
type listingService struct {
	db      *mongo.Database
	media   storage.MediaStore
	catalog *cache.CatalogCache
	logger  *zap.Logger
}

// NewListingService creates a new ListingService. catalog may be nil.
func NewListingService(database *mongo.Database, media storage.MediaStore, catalog *cache.CatalogCache, logger *zap.Logger) IListingService {
	return &listingService{db: database, media: media, catalog: catalog, logger: logger}
}

func (s *listingService) collection() *mongo.Collection {
	return s.db.Collection(db.ListingsCollection)
}

// uploadAll uploads files one at a time, in order. On failure it releases
// whatever this call already uploaded.
func (s *listingService) uploadAll(ctx context.Context, files []storage.Upload, folder string) ([]models.MediaRef, error) {
	refs := make([]models.MediaRef, 0, len(files))
	for _, f := range files {
		ref, err := s.media.Upload(ctx, f, folder)
		if err != nil {
			storage.ReleaseBestEffort(ctx, s.media, s.logger, refs...)
			return nil, mediaError(err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *listingService) invalidate(ctx context.Context) {
	if err := s.catalog.Invalidate(ctx); err != nil {
		s.logger.Warn("Catalog cache invalidation failed", zap.Error(err))
	}
}

// CreateListing validates the input, uploads the thumbnail then each file,
// and stores the listing.
func (s *listingService) CreateListing(ctx context.Context, in ListingInput, thumbnail *storage.Upload, files []storage.Upload) (*models.Listing, error) {
	listing, err := in.toListing()
	if err != nil {
		return nil, err
	}
	if thumbnail == nil {
		return nil, validationError("thumbnail is required")
	}

	thumbRefs, err := s.uploadAll(ctx, []storage.Upload{*thumbnail}, storage.FolderThumbnails)
	if err != nil {
		return nil, err
	}
	fileRefs, err := s.uploadAll(ctx, files, storage.FolderPhotos)
	if err != nil {
		storage.ReleaseBestEffort(ctx, s.media, s.logger, thumbRefs...)
		return nil, err
	}
	listing.Thumbnail = thumbRefs[0]
	listing.Files = fileRefs

	listing.GenID()
	listing.Touch(time.Now().UTC())
	if _, err := s.collection().InsertOne(ctx, listing); err != nil {
		storage.ReleaseBestEffort(ctx, s.media, s.logger, listing.MediaRefs()...)
		return nil, fmt.Errorf("failed to insert listing: %w", err)
	}

	s.invalidate(ctx)
	s.logger.Info("Listing created", zap.String("listing_id", listing.ID.Hex()), zap.String("category", string(listing.Category)))
	return listing, nil
}

func (s *listingService) find(ctx context.Context, filter bson.M) ([]models.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}
	for i := range listings {
		if listings[i].Files == nil {
			listings[i].Files = []models.MediaRef{}
		}
	}
	return listings, nil
}

// ListAll returns every listing, newest first.
func (s *listingService) ListAll(ctx context.Context) ([]models.Listing, error) {
	var cached []models.Listing
	if s.catalog.Get(ctx, cache.KeyAllListings, &cached) {
		return cached, nil
	}
	listings, err := s.find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	s.catalog.Set(ctx, cache.KeyAllListings, listings)
	return listings, nil
}

// ListByCategories returns the listings in any of the given categories.
// An empty set is no filter at all.
func (s *listingService) ListByCategories(ctx context.Context, categories []string) ([]models.Listing, error) {
	if len(categories) == 0 {
		return s.ListAll(ctx)
	}
	parsed := make([]models.Category, 0, len(categories))
	for _, raw := range categories {
		c, err := models.ParseCategory(raw)
		if err != nil {
			return nil, validationError("%v", err)
		}
		parsed = append(parsed, c)
	}
	return s.find(ctx, bson.M{"category": bson.M{"$in": parsed}})
}

// GetListing finds a listing by its hex id.
func (s *listingService) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	oid, err := parseID("listing", id)
	if err != nil {
		return nil, err
	}
	var listing models.Listing
	if err := s.collection().FindOne(ctx, bson.M{"_id": oid}).Decode(&listing); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: listing %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("error finding listing by ID %s: %w", id, err)
	}
	if listing.Files == nil {
		listing.Files = []models.MediaRef{}
	}
	return &listing, nil
}

// UpdateListing merges patch into the stored listing. A new thumbnail
// replaces the old one, which is released; new files are appended.
func (s *listingService) UpdateListing(ctx context.Context, id string, patch models.ListingPatch, thumbnail *storage.Upload, files []storage.Upload) (*models.Listing, error) {
	listing, err := s.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, validationError("%v", err)
	}

	var newThumb []models.MediaRef
	if thumbnail != nil {
		if newThumb, err = s.uploadAll(ctx, []storage.Upload{*thumbnail}, storage.FolderThumbnails); err != nil {
			return nil, err
		}
	}
	appended, err := s.uploadAll(ctx, files, storage.FolderPhotos)
	if err != nil {
		storage.ReleaseBestEffort(ctx, s.media, s.logger, newThumb...)
		return nil, err
	}

	patch.ApplyTo(listing)
	var priorThumb *models.MediaRef
	if len(newThumb) == 1 {
		prior := listing.Thumbnail
		priorThumb = &prior
		storage.ReleaseBestEffort(ctx, s.media, s.logger, prior)
		listing.Thumbnail = newThumb[0]
	}
	listing.Files = append(listing.Files, appended...)
	listing.Touch(time.Now().UTC())

	update := bson.M{"$set": bson.M{
		"make":               listing.Make,
		"model":              listing.Model,
		"year":               listing.Year,
		"registrationNumber": listing.RegistrationNumber,
		"category":           listing.Category,
		"description":        listing.Description,
		"price":              listing.Price,
		"isAvailable":        listing.IsAvailable,
		"thumbnail":          listing.Thumbnail,
		"files":              listing.Files,
		"updatedAt":          listing.UpdatedAt,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Listing
	err = s.collection().FindOneAndUpdate(ctx, bson.M{"_id": listing.ID}, update, opts).Decode(&updated)
	if err != nil {
		storage.ReleaseBestEffort(ctx, s.media, s.logger, append(newThumb, appended...)...)
		if priorThumb != nil {
			s.reportDanglingThumbnail(id, *priorThumb, err)
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: listing %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to update listing %s: %w", id, err)
	}

	s.invalidate(ctx)
	return &updated, nil
}

// reportDanglingThumbnail records a listing whose stored thumbnail was
// released before its update failed. The stored record still points at it.
func (s *listingService) reportDanglingThumbnail(id string, thumb models.MediaRef, cause error) {
	s.logger.Error("Listing update failed after its thumbnail was released; stored thumbnail is dangling",
		zap.String("listing_id", id),
		zap.String("thumbnail_key", thumb.FileName),
		zap.String("thumbnail_url", thumb.URL),
		zap.Error(cause))
}

// DeleteListing releases the listing's media and removes it. Inquiries
// that reference it are left alone.
func (s *listingService) DeleteListing(ctx context.Context, id string) error {
	listing, err := s.GetListing(ctx, id)
	if err != nil {
		return err
	}

	storage.ReleaseBestEffort(ctx, s.media, s.logger, listing.MediaRefs()...)

	res, err := s.collection().DeleteOne(ctx, bson.M{"_id": listing.ID})
	if err != nil {
		return fmt.Errorf("failed to delete listing %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: listing %s", ErrNotFound, id)
	}

	s.invalidate(ctx)
	s.logger.Info("Listing deleted", zap.String("listing_id", id))
	return nil
}

// CategoryCounts groups listings by category, largest group first.
func (s *listingService) CategoryCounts(ctx context.Context) ([]models.CategoryCount, error) {
	var cached []models.CategoryCount
	if s.catalog.Get(ctx, cache.KeyCategoryCounts, &cached) {
		return cached, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$category"},
			{Key: "postCount", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "category", Value: "$_id"},
			{Key: "postCount", Value: 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "postCount", Value: -1}, {Key: "category", Value: 1}}}},
	}
	cursor, err := s.collection().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate categories: %w", err)
	}
	defer cursor.Close(ctx)

	counts := []models.CategoryCount{}
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("failed to decode category counts: %w", err)
	}
	s.catalog.Set(ctx, cache.KeyCategoryCounts, counts)
	return counts, nil
}
