package services

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/storage"
)

// Error taxonomy shared by every service. Callers test with errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpload       = errors.New("upload error")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// mediaError classifies a media store failure: rejected files are the
// caller's fault, everything else is an upload failure.
func mediaError(err error) error {
	if errors.Is(err, storage.ErrInvalidMedia) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return fmt.Errorf("%w: %v", ErrUpload, err)
}

// parseID turns a hex id into an ObjectID. Malformed ids are reported as
// NotFound, since no document can have them.
func parseID(kind, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
	}
	return oid, nil
}
