package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Category is the fixed set of catalog sections.
type Category string

const (
	CategoryCar       Category = "Car"
	CategoryActiva    Category = "Activa"
	CategoryMotorbike Category = "Motorbike"
	CategoryTractors  Category = "Tractors"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryCar, CategoryActiva, CategoryMotorbike, CategoryTractors}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory matches s against the known categories, ignoring case and
// surrounding whitespace.
func ParseCategory(s string) (Category, error) {
	trimmed := strings.TrimSpace(s)
	for _, known := range Categories {
		if strings.EqualFold(trimmed, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// UnmarshalJSON accepts category names in any case, as ParseCategory does.
// Unknown names are kept verbatim so validation can report them.
func (c *Category) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("category must be a string: %w", err)
	}
	if known, err := ParseCategory(raw); err == nil {
		*c = known
		return nil
	}
	*c = Category(raw)
	return nil
}

// MediaRef points at an object held by the media store.
type MediaRef struct {
	FileName string `bson:"fileName" json:"fileName"` // external id in the media store
	URL      string `bson:"url" json:"url"`
}

// Listing is a single vehicle or piece of equipment offered for sale.
type Listing struct {
	Base               `bson:",inline"`
	Make               string     `bson:"make" json:"make"`
	Model              string     `bson:"model" json:"model"`
	Year               string     `bson:"year" json:"year"`
	Description        string     `bson:"description" json:"description"`
	RegistrationNumber string     `bson:"registrationNumber" json:"registrationNumber"`
	Category           Category   `bson:"category" json:"category"`
	Price              string     `bson:"price" json:"price"`
	IsAvailable        bool       `bson:"isAvailable" json:"isAvailable"`
	Thumbnail          MediaRef   `bson:"thumbnail" json:"thumbnail"`
	Files              []MediaRef `bson:"files" json:"files"`
}

// MediaRefs returns the thumbnail followed by every file, skipping empty refs.
func (l *Listing) MediaRefs() []MediaRef {
	refs := make([]MediaRef, 0, len(l.Files)+1)
	if l.Thumbnail.FileName != "" {
		refs = append(refs, l.Thumbnail)
	}
	for _, f := range l.Files {
		if f.FileName != "" {
			refs = append(refs, f)
		}
	}
	return refs
}

// ListingSummary is the projection of a listing embedded in inquiry results.
type ListingSummary struct {
	ID                 primitive.ObjectID `bson:"_id" json:"_id"`
	Make               string             `bson:"make" json:"make"`
	Model              string             `bson:"model" json:"model"`
	Year               string             `bson:"year" json:"year"`
	RegistrationNumber string             `bson:"registrationNumber" json:"registrationNumber"`
}

// CategoryCount is one row of the category aggregation.
type CategoryCount struct {
	Category  Category `bson:"category" json:"category"`
	PostCount int      `bson:"postCount" json:"postCount"`
}
