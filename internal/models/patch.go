package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Field is one member of a partial update. The zero value means the field
// was not supplied at all; Null means it was supplied empty.
type Field[T any] struct {
	present bool
	null    bool
	value   T
}

// Set returns a field carrying v.
func Set[T any](v T) Field[T] {
	return Field[T]{present: true, value: v}
}

// Null returns a field that was supplied without a value.
func Null[T any]() Field[T] {
	return Field[T]{present: true, null: true}
}

// Present reports whether the field was supplied, with or without a value.
func (f Field[T]) Present() bool { return f.present }

// IsNull reports whether the field was supplied empty.
func (f Field[T]) IsNull() bool { return f.present && f.null }

// Get returns the value and whether there is one.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.present && !f.null
}

// Or returns the carried value, or fallback when the field is undefined.
// A null field yields the zero value.
func (f Field[T]) Or(fallback T) T {
	if !f.present {
		return fallback
	}
	return f.value
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.null = true
		var zero T
		f.value = zero
		return nil
	}
	f.null = false
	return json.Unmarshal(data, &f.value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.present || f.null {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

// ListingPatch is a partial edit of a listing. Undefined fields keep the
// stored value.
type ListingPatch struct {
	Make               Field[string]   `json:"make"`
	Model              Field[string]   `json:"model"`
	Year               Field[string]   `json:"year"`
	RegistrationNumber Field[string]   `json:"registrationNumber"`
	Category           Field[Category] `json:"category"`
	Description        Field[string]   `json:"description"`
	Price              Field[string]   `json:"price"`
	IsAvailable        Field[bool]     `json:"isAvailable"`
}

// Empty reports whether no field was supplied.
func (p ListingPatch) Empty() bool {
	return !p.Make.Present() && !p.Model.Present() && !p.Year.Present() &&
		!p.RegistrationNumber.Present() && !p.Category.Present() &&
		!p.Description.Present() && !p.Price.Present() && !p.IsAvailable.Present()
}

// Validate rejects attempts to clear a required field and unknown categories.
func (p ListingPatch) Validate() error {
	required := []struct {
		name  string
		field Field[string]
	}{
		{"make", p.Make},
		{"model", p.Model},
		{"year", p.Year},
		{"registrationNumber", p.RegistrationNumber},
	}
	for _, r := range required {
		if !r.field.Present() {
			continue
		}
		if v, ok := r.field.Get(); !ok || strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s cannot be cleared", r.name)
		}
	}
	if p.Category.Present() {
		c, ok := p.Category.Get()
		if !ok {
			return fmt.Errorf("category cannot be cleared")
		}
		if !c.Valid() {
			return fmt.Errorf("unknown category %q", c)
		}
	}
	if p.IsAvailable.IsNull() {
		return fmt.Errorf("isAvailable cannot be cleared")
	}
	return nil
}

// ApplyTo merges the supplied fields into l. Media fields are never touched.
func (p ListingPatch) ApplyTo(l *Listing) {
	l.Make = strings.TrimSpace(p.Make.Or(l.Make))
	l.Model = strings.TrimSpace(p.Model.Or(l.Model))
	l.Year = strings.TrimSpace(p.Year.Or(l.Year))
	l.RegistrationNumber = strings.TrimSpace(p.RegistrationNumber.Or(l.RegistrationNumber))
	l.Category = p.Category.Or(l.Category)
	l.Description = p.Description.Or(l.Description)
	l.Price = strings.TrimSpace(p.Price.Or(l.Price))
	l.IsAvailable = p.IsAvailable.Or(l.IsAvailable)
}
