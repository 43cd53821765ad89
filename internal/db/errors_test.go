package db

import (
	"errors"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

// mockMongoDuplicateKeyError creates an error shaped like the driver's E11000 write error.
func mockMongoDuplicateKeyError(index, key string) error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    duplicateKeyCode,
		Message: fmt.Sprintf("E11000 duplicate key error collection: test.users index: %s dup key: { email: \"%s\" }", index, key),
	}}}
}

func TestIsMongoDuplicateKeyError(t *testing.T) {
	if !IsMongoDuplicateKeyError(mockMongoDuplicateKeyError(AccountEmailIndex, "a@b.c")) {
		t.Error("expected write exception with code 11000 to be a duplicate key error")
	}
	wrapped := fmt.Errorf("insert account: %w", mockMongoDuplicateKeyError("_id_", "x"))
	if !IsMongoDuplicateKeyError(wrapped) {
		t.Error("expected wrapped duplicate key error to be detected")
	}
	if IsMongoDuplicateKeyError(errors.New("boom")) {
		t.Error("plain error must not be a duplicate key error")
	}
	other := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 121, Message: "validation"}}}
	if IsMongoDuplicateKeyError(other) {
		t.Error("non-11000 write error must not be a duplicate key error")
	}
}

func TestIsDuplicateKeyOn(t *testing.T) {
	err := mockMongoDuplicateKeyError(AccountEmailIndex, "a@b.c")
	if !IsDuplicateKeyOn(err, AccountEmailIndex) {
		t.Errorf("expected duplicate on %s", AccountEmailIndex)
	}
	if IsDuplicateKeyOn(err, "_id_") {
		t.Error("duplicate on email index must not match _id_")
	}

	bulk := mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{{
		WriteError: mongo.WriteError{Code: duplicateKeyCode, Message: "E11000 duplicate key error index: _id_ dup key"},
	}}}
	if !IsDuplicateKeyOn(bulk, "_id_") {
		t.Error("expected bulk write duplicate on _id_")
	}
}
