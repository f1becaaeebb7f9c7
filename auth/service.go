package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/user/polls-go/apperror"
	"github.com/user/polls-go/validation"
)

const (
	msgDuplicateUsername = "A user with that username already exists."
	msgWrongCredentials  = "Wrong Credentials"
	msgInvalidToken      = "Invalid token."
	msgPasswordTooLong   = "Ensure this field has no more than 72 bytes."
)

// AuthService registers users, logs them in and resolves API tokens.
type AuthService struct {
	store      Store
	signer     *TokenSigner
	bcryptCost int
}

func NewAuthService(store Store, signer *TokenSigner) *AuthService {
	return &AuthService{
		store:      store,
		signer:     signer,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// Register creates a user with a hashed password and mints its token.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperror.NewFieldError("password", msgPasswordTooLong)
	}
	if err != nil {
		return nil, apperror.NewInternalError("failed to hash password", err)
	}

	user, token, err := s.store.CreateUser(ctx, &User{
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: string(hashedPassword),
	}, s.signer.Mint)
	if err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, apperror.NewFieldError("username", msgDuplicateUsername)
		}
		return nil, apperror.NewDatabaseError("failed to create user", err)
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	return &RegisterResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Token:    token.Key,
	}, nil
}

// Login checks the credentials and returns the user's token, minting one if
// the user has none yet.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperror.NewBadRequestError(msgWrongCredentials, nil)
		}
		return nil, apperror.NewDatabaseError("failed to get user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		return nil, apperror.NewBadRequestError(msgWrongCredentials, nil)
	}

	candidate, err := s.signer.Mint(user.ID)
	if err != nil {
		return nil, apperror.NewInternalError("failed to mint token", err)
	}
	token, err := s.store.GetOrCreateToken(ctx, user.ID, candidate)
	if err != nil {
		return nil, apperror.NewDatabaseError("failed to load token", err)
	}

	return &TokenResponse{Token: token.Key}, nil
}

// Authenticate resolves an API token to its user. Forged keys are rejected
// by signature before the store is consulted.
func (s *AuthService) Authenticate(ctx context.Context, key string) (*User, error) {
	claims, err := s.signer.Parse(key)
	if err != nil {
		return nil, apperror.NewAuthError(msgInvalidToken, err)
	}

	user, err := s.store.GetUserByToken(ctx, key)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperror.NewAuthError(msgInvalidToken, nil)
		}
		return nil, apperror.NewDatabaseError("failed to look up token", err)
	}
	if user.ID != claims.UserID {
		return nil, apperror.NewAuthError(msgInvalidToken, nil)
	}
	return user, nil
}
