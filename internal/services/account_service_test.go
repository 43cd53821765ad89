package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/auth"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/config"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/db"
)

func setupAccountService(t *testing.T, dbName string) (IAccountService, *config.Config) {
	t.Helper()
	auth.PasswordCost = bcrypt.MinCost
	t.Cleanup(func() { auth.PasswordCost = bcrypt.DefaultCost })

	database := setupTestDBServices(t, dbName)
	cfg := &config.Config{JwtSecret: "account-test-secret", JwtTTL: 7 * 24 * time.Hour}
	return NewAccountService(database, cfg, testLogger()), cfg
}

func TestAccountService_RegisterValidation(t *testing.T) {
	svc := NewAccountService(nil, &config.Config{}, testLogger())
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "a@example.com", "pw")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Register(ctx, "Admin", " ", "pw")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Register(ctx, "Admin", "a@example.com", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Authenticate(ctx, "", "pw")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAccountService_RegisterAndAuthenticate(t *testing.T) {
	svc, cfg := setupAccountService(t, "testdb_account_login")
	ctx := context.Background()

	account, err := svc.Register(ctx, "Admin", "Admin@Example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", account.Email)
	assert.NotEqual(t, "s3cret", account.PasswordHash)

	res, err := svc.Authenticate(ctx, "admin@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, account.ID, res.Account.ID)

	claims, err := auth.ValidateJWT(res.Token, cfg.JwtSecret)
	require.NoError(t, err)
	assert.Equal(t, account.ID.Hex(), claims.AccountID)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestAccountService_RegisterConflict(t *testing.T) {
	svc, _ := setupAccountService(t, "testdb_account_conflict")
	ctx := context.Background()

	_, err := svc.Register(ctx, "Admin", "admin@example.com", "one")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Other", "ADMIN@example.com ", "two")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAccountService_RegisterConflictFromIndex(t *testing.T) {
	database := setupTestDBServices(t, "testdb_account_conflict_index")
	svc := &accountService{db: database, cfg: &config.Config{}, logger: testLogger()}
	ctx := context.Background()

	_, err := database.Collection(db.AccountsCollection).InsertOne(ctx, bson.M{"email": "race@example.com"})
	require.NoError(t, err)

	assert.True(t, db.IsDuplicateKeyOn(insertDuplicate(t, svc), db.AccountEmailIndex))
}

func insertDuplicate(t *testing.T, svc *accountService) error {
	t.Helper()
	_, err := svc.collection().InsertOne(context.Background(), bson.M{"email": "race@example.com"})
	require.Error(t, err)
	return err
}

func TestAccountService_AuthenticateFailures(t *testing.T) {
	svc, _ := setupAccountService(t, "testdb_account_auth_fail")
	ctx := context.Background()

	_, err := svc.Register(ctx, "Admin", "admin@example.com", "right")
	require.NoError(t, err)

	res, err := svc.Authenticate(ctx, "admin@example.com", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Nil(t, res)

	_, unknownErr := svc.Authenticate(ctx, "nobody@example.com", "right")
	assert.ErrorIs(t, unknownErr, ErrUnauthorized)
	assert.Equal(t, err.Error(), unknownErr.Error(), "unknown email and bad password look the same")
}
