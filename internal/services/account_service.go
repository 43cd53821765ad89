package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/auth"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/config"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/db"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/models"
)

// IAccountService defines the interface for admin account operations.
type IAccountService interface {
	Register(ctx context.Context, name, email, password string) (*models.Account, error)
	Authenticate(ctx context.Context, email, password string) (*AuthResult, error)
}

// AuthResult is a successful login.
type AuthResult struct {
	Token   string          `json:"token"`
	Account *models.Account `json:"user"`
}

// errBadCredentials is returned for both an unknown e-mail and a wrong password.
var errBadCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)

// accountService implements IAccountService.
type accountService struct {
	db     *mongo.Database
	cfg    *config.Config
	logger *zap.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(database *mongo.Database, cfg *config.Config, logger *zap.Logger) IAccountService {
	return &accountService{db: database, cfg: cfg, logger: logger}
}

func (s *accountService) collection() *mongo.Collection {
	return s.db.Collection(db.AccountsCollection)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *accountService) findByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := s.collection().FindOne(ctx, bson.M{"email": email}).Decode(&account); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding account by email: %w", err)
	}
	return &account, nil
}

// Register creates an admin account. The password is stored as a bcrypt hash.
func (s *accountService) Register(ctx context.Context, name, email, password string) (*models.Account, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	switch {
	case name == "":
		return nil, validationError("name is required")
	case email == "":
		return nil, validationError("email is required")
	case password == "":
		return nil, validationError("password is required")
	}

	_, err := s.findByEmail(ctx, email)
	if err == nil {
		return nil, fmt.Errorf("%w: email %s is already registered", ErrConflict, email)
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	account := &models.Account{Name: name, Email: email, PasswordHash: hash}
	account.GenID()
	account.Touch(time.Now().UTC())

	if _, err := s.collection().InsertOne(ctx, account); err != nil {
		// a concurrent registration can win between the lookup and the insert
		if db.IsDuplicateKeyOn(err, db.AccountEmailIndex) {
			return nil, fmt.Errorf("%w: email %s is already registered", ErrConflict, email)
		}
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}
	s.logger.Info("Account registered", zap.String("account_id", account.ID.Hex()))
	return account, nil
}

// Authenticate checks the credentials and issues a session token.
func (s *accountService) Authenticate(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, validationError("email and password are required")
	}

	account, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if !auth.CheckPasswordHash(password, account.PasswordHash) {
		return nil, errBadCredentials
	}

	token, err := auth.GenerateJWT(account.ID.Hex(), account.Email, s.cfg.JwtSecret, s.cfg.JwtTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Account: account}, nil
}
