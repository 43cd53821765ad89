package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultInquiryQuery is stored when a visitor submits the form without a message.
const DefaultInquiryQuery = "Want to Contact your firm"

// InquiryStatus names the two states an inquiry moves between.
type InquiryStatus string

const (
	InquiryPending  InquiryStatus = "pending"
	InquiryResolved InquiryStatus = "resolved"
)

// StatusOf maps the stored resolution flag to its state.
func StatusOf(resolved bool) InquiryStatus {
	if resolved {
		return InquiryResolved
	}
	return InquiryPending
}

// Inquiry is a contact request left by a visitor, optionally about one listing.
type Inquiry struct {
	Base       `bson:",inline"`
	FullName   string              `bson:"fullName" json:"fullName"`
	ContactNo  string              `bson:"contactNo,omitempty" json:"contactNo,omitempty"`
	EmailID    string              `bson:"emailId" json:"emailId"`
	Post       *primitive.ObjectID `bson:"post,omitempty" json:"post,omitempty"` // weak reference, never cascaded
	Query      string              `bson:"query" json:"query"`
	IsResolved bool                `bson:"isResolved" json:"isResolved"`
}

// Status returns the inquiry's current state.
func (q *Inquiry) Status() InquiryStatus {
	return StatusOf(q.IsResolved)
}

// InquiryView is an inquiry as the admin area lists it, with the listing
// reference resolved. Post is nil for general inquiries and for references
// to listings that no longer exist.
type InquiryView struct {
	Base       `bson:",inline"`
	FullName   string          `bson:"fullName" json:"fullName"`
	ContactNo  string          `bson:"contactNo,omitempty" json:"contactNo,omitempty"`
	EmailID    string          `bson:"emailId" json:"emailId"`
	Post       *ListingSummary `bson:"post" json:"post"`
	Query      string          `bson:"query" json:"query"`
	IsResolved bool            `bson:"isResolved" json:"isResolved"`
	Status     InquiryStatus   `bson:"-" json:"status"`
}
