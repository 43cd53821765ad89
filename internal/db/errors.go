package db

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

const duplicateKeyCode = 11000

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key error (code 11000).
func IsMongoDuplicateKeyError(err error) bool {
	return duplicateKeyMessage(err) != ""
}

// IsDuplicateKeyOn reports whether err is a duplicate key error raised by the named index.
func IsDuplicateKeyOn(err error, index string) bool {
	msg := duplicateKeyMessage(err)
	return msg != "" && strings.Contains(msg, "index: "+index)
}

func duplicateKeyMessage(err error) string {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == duplicateKeyCode {
				return e.Message
			}
		}
	}
	// BulkWriteException can carry duplicate key errors too
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == duplicateKeyCode {
				return e.Message
			}
		}
	}
	return ""
}
