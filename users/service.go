// Package users serves the profile of the authenticated user.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/polls-go/apperror"
	"github.com/user/polls-go/auth"
	"github.com/user/polls-go/validation"
)

// Store reads and updates user rows.
type Store interface {
	GetUser(ctx context.Context, userID int64) (*auth.User, error)
	UpdateEmail(ctx context.Context, userID int64, email string) (*auth.User, error)
}

type pgStore struct {
	db *pgxpool.Pool
}

// NewStore returns a Store backed by Postgres.
func NewStore(db *pgxpool.Pool) Store {
	return &pgStore{db: db}
}

func (s *pgStore) GetUser(ctx context.Context, userID int64) (*auth.User, error) {
	var user auth.User
	err := s.db.QueryRow(ctx, `
		SELECT id, username, email, created_at
		FROM users
		WHERE id = $1`, userID,
	).Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *pgStore) UpdateEmail(ctx context.Context, userID int64, email string) (*auth.User, error) {
	var user auth.User
	err := s.db.QueryRow(ctx, `
		UPDATE users SET email = $1
		WHERE id = $2
		RETURNING id, username, email, created_at`, email, userID,
	).Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update email: %w", err)
	}
	return &user, nil
}

type UserService struct {
	store Store
}

func NewUserService(store Store) *UserService {
	return &UserService{store: store}
}

// GetUserProfile returns the profile of userID.
func (s *UserService) GetUserProfile(ctx context.Context, userID int64) (*UserProfileResponse, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err, userID)
	}
	return toProfile(user), nil
}

// UpdateUserProfile applies req to userID and returns the new profile.
func (s *UserService) UpdateUserProfile(ctx context.Context, userID int64, req UpdateUserProfileRequest) (*UserProfileResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(*req.Email))
	if err := validation.Struct(emailField{Email: email}); err != nil {
		return nil, err
	}

	user, err := s.store.UpdateEmail(ctx, userID, email)
	if err != nil {
		return nil, mapStoreError(err, userID)
	}
	slog.Info("user profile updated", "user_id", userID)
	return toProfile(user), nil
}

func toProfile(user *auth.User) *UserProfileResponse {
	return &UserProfileResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

func mapStoreError(err error, userID int64) error {
	if errors.Is(err, auth.ErrUserNotFound) {
		return apperror.NewNotFoundError(fmt.Sprintf("user with ID %d not found", userID), err)
	}
	return apperror.NewDatabaseError("failed to access user profile", err)
}
