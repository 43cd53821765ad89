package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/db"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/models"
)

// IInquiryService defines the interface for inquiry-related operations.
type IInquiryService interface {
	CreateInquiry(ctx context.Context, in InquiryInput) (*models.Inquiry, error)
	ListInquiries(ctx context.Context, resolved *bool) ([]models.InquiryView, error)
	SetResolved(ctx context.Context, id string, resolved bool) (*models.Inquiry, error)
}

// InquiryNotifier is told about every stored inquiry.
type InquiryNotifier interface {
	EnqueueInquiryNotify(ctx context.Context, inquiry *models.Inquiry) error
}

// InquiryInput carries a contact form submission.
type InquiryInput struct {
	FullName  string
	ContactNo string
	EmailID   string
	Post      string // optional listing id
	Query     string
}

func (in InquiryInput) toInquiry() (*models.Inquiry, error) {
	fullName := strings.TrimSpace(in.FullName)
	if fullName == "" {
		return nil, validationError("fullName is required")
	}
	emailID := strings.TrimSpace(in.EmailID)
	if emailID == "" {
		return nil, validationError("emailId is required")
	}
	if addr, err := mail.ParseAddress(emailID); err != nil || addr.Address != emailID {
		return nil, validationError("emailId %q is not a valid e-mail address", emailID)
	}
	contactNo, err := normalizeContactNo(in.ContactNo)
	if err != nil {
		return nil, err
	}

	inquiry := &models.Inquiry{
		FullName:  fullName,
		ContactNo: contactNo,
		EmailID:   emailID,
		Query:     strings.TrimSpace(in.Query),
	}
	if inquiry.Query == "" {
		inquiry.Query = models.DefaultInquiryQuery
	}
	if post := strings.TrimSpace(in.Post); post != "" {
		oid, err := primitive.ObjectIDFromHex(post)
		if err != nil {
			return nil, validationError("post %q is not a valid listing id", post)
		}
		inquiry.Post = &oid
	}
	return inquiry, nil
}

// normalizeContactNo strips spaces and dashes; what remains must be digits,
// optionally led by "+".
func normalizeContactNo(raw string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	digits := strings.TrimPrefix(cleaned, "+")
	if digits == "" {
		if cleaned != "" {
			return "", validationError("contactNo %q is not a phone number", raw)
		}
		return "", nil
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", validationError("contactNo %q is not a phone number", raw)
		}
	}
	return cleaned, nil
}

// inquiryService implements IInquiryService.
type inquiryService struct {
	db       *mongo.Database
	notifier InquiryNotifier
	logger   *zap.Logger
}

// NewInquiryService creates a new InquiryService. notifier may be nil.
func NewInquiryService(database *mongo.Database, notifier InquiryNotifier, logger *zap.Logger) IInquiryService {
	return &inquiryService{db: database, notifier: notifier, logger: logger}
}

func (s *inquiryService) collection() *mongo.Collection {
	return s.db.Collection(db.InquiriesCollection)
}

// CreateInquiry stores a new, pending inquiry and queues the firm's
// notification e-mail. The listing reference is not checked.
func (s *inquiryService) CreateInquiry(ctx context.Context, in InquiryInput) (*models.Inquiry, error) {
	inquiry, err := in.toInquiry()
	if err != nil {
		return nil, err
	}
	inquiry.GenID()
	inquiry.Touch(time.Now().UTC())

	if _, err := s.collection().InsertOne(ctx, inquiry); err != nil {
		return nil, fmt.Errorf("failed to insert inquiry: %w", err)
	}

	if s.notifier != nil {
		if err := s.notifier.EnqueueInquiryNotify(ctx, inquiry); err != nil {
			s.logger.Warn("Failed to enqueue inquiry notification",
				zap.String("inquiry_id", inquiry.ID.Hex()), zap.Error(err))
		}
	}
	return inquiry, nil
}

// ListInquiries returns inquiries newest first, optionally only those with
// the given resolution state. The listing reference of each is resolved to
// a summary; references to deleted listings come back as nil.
func (s *inquiryService) ListInquiries(ctx context.Context, resolved *bool) ([]models.InquiryView, error) {
	pipeline := mongo.Pipeline{}
	if resolved != nil {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.D{{Key: "isResolved", Value: *resolved}}}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: db.ListingsCollection},
			{Key: "let", Value: bson.D{{Key: "postId", Value: "$post"}}},
			{Key: "pipeline", Value: bson.A{
				bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{{Key: "$eq", Value: bson.A{"$_id", "$$postId"}}}}}}},
				bson.D{{Key: "$project", Value: bson.D{
					{Key: "make", Value: 1},
					{Key: "model", Value: 1},
					{Key: "year", Value: 1},
					{Key: "registrationNumber", Value: 1},
				}}},
			}},
			{Key: "as", Value: "post"},
		}}},
		// an empty match leaves the field missing, which decodes as nil
		bson.D{{Key: "$set", Value: bson.D{{Key: "post", Value: bson.D{{Key: "$arrayElemAt", Value: bson.A{"$post", 0}}}}}}},
	)

	cursor, err := s.collection().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to query inquiries: %w", err)
	}
	defer cursor.Close(ctx)

	views := []models.InquiryView{}
	if err := cursor.All(ctx, &views); err != nil {
		return nil, fmt.Errorf("failed to decode inquiries: %w", err)
	}
	for i := range views {
		views[i].Status = models.StatusOf(views[i].IsResolved)
	}
	return views, nil
}

// SetResolved moves an inquiry to the resolved or pending state. Setting
// the current state again is not an error.
func (s *inquiryService) SetResolved(ctx context.Context, id string, resolved bool) (*models.Inquiry, error) {
	oid, err := parseID("inquiry", id)
	if err != nil {
		return nil, err
	}
	update := bson.M{"$set": bson.M{"isResolved": resolved, "updatedAt": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var inquiry models.Inquiry
	if err := s.collection().FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&inquiry); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: inquiry %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to update inquiry %s: %w", id, err)
	}
	s.logger.Info("Inquiry status changed", zap.String("inquiry_id", id), zap.String("status", string(inquiry.Status())))
	return &inquiry, nil
}
