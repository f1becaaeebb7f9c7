package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
)

// Store persists users and their tokens.
type Store interface {
	// CreateUser inserts user and a token minted for the new id in one
	// transaction. Returns ErrDuplicateUsername if the username is taken.
	CreateUser(ctx context.Context, user *User, mint func(userID int64) (string, error)) (*User, *Token, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// GetOrCreateToken returns the user's existing token, storing key only
	// when the user has none.
	GetOrCreateToken(ctx context.Context, userID int64, key string) (*Token, error)
	GetUserByToken(ctx context.Context, key string) (*User, error)
}

type pgStore struct {
	db *pgxpool.Pool
}

// NewStore returns a Store backed by Postgres.
func NewStore(db *pgxpool.Pool) Store {
	return &pgStore{db: db}
}

const userColumns = `u.id, u.username, u.email, u.password, u.created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *pgStore) CreateUser(ctx context.Context, user *User, mint func(userID int64) (string, error)) (*User, *Token, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	created := *user
	err = tx.QueryRow(ctx, `
		INSERT INTO users (username, email, password)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		user.Username, user.Email, user.HashedPassword,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == "users_username_key" {
			return nil, nil, ErrDuplicateUsername
		}
		return nil, nil, fmt.Errorf("failed to insert user: %w", err)
	}

	key, err := mint(created.ID)
	if err != nil {
		return nil, nil, err
	}

	token := &Token{Key: key, UserID: created.ID}
	err = tx.QueryRow(ctx, `
		INSERT INTO auth_tokens (key, user_id)
		VALUES ($1, $2)
		RETURNING created_at`,
		key, created.ID,
	).Scan(&token.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit user: %w", err)
	}
	return &created, token, nil
}

func (s *pgStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.username = $1`, username))
}

func (s *pgStore) GetOrCreateToken(ctx context.Context, userID int64, key string) (*Token, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	token := &Token{UserID: userID}
	err := s.db.QueryRow(ctx, `
		INSERT INTO auth_tokens (key, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING key, created_at`,
		key, userID,
	).Scan(&token.Key, &token.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create token: %w", err)
	}
	return token, nil
}

func (s *pgStore) GetUserByToken(ctx context.Context, key string) (*User, error) {
	return scanUser(s.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM auth_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.key = $1`, key))
}
