package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/db"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/models"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/storage"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/utils"
)

// fakeMediaStore keeps objects in a map. failOnUpload makes the n-th upload
// (1-based) fail.
type fakeMediaStore struct {
	mu           sync.Mutex
	objects      map[string]storage.Upload
	uploads      int
	failOnUpload int
	releaseErr   error
	released     []string
	afterUpload  func()
}

func newFakeMediaStore() *fakeMediaStore {
	return &fakeMediaStore{objects: map[string]storage.Upload{}}
}

func (f *fakeMediaStore) Upload(_ context.Context, file storage.Upload, folder string) (models.MediaRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploads == f.failOnUpload {
		return models.MediaRef{}, fmt.Errorf("%w: provider unavailable", storage.ErrUpload)
	}
	key := fmt.Sprintf("%s/%d-%s", folder, f.uploads, file.FileName)
	f.objects[key] = file
	if f.afterUpload != nil {
		f.afterUpload()
	}
	return models.MediaRef{FileName: key, URL: "https://cdn.test/" + key}, nil
}

func (f *fakeMediaStore) Release(_ context.Context, fileName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, fileName)
	if f.releaseErr != nil {
		return f.releaseErr
	}
	if _, ok := f.objects[fileName]; !ok {
		return errors.New("no such object")
	}
	delete(f.objects, fileName)
	return nil
}

func (f *fakeMediaStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func jpegUpload(name string) storage.Upload {
	return storage.Upload{FileName: name, ContentType: "image/jpeg", Data: []byte("jpeg:" + name)}
}

func setupTestDBServices(t *testing.T, dbName string) *mongo.Database {
	t.Helper()
	database := utils.SetupTestDB(t, dbName, db.ListingsCollection, db.InquiriesCollection, db.AccountsCollection)
	require.NoError(t, db.EnsureIndexes(context.Background(), database))
	return database
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
