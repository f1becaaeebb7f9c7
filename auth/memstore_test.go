package auth

import (
	"context"
	"sync"
	"time"
)

// memStore is an in-memory Store with the same uniqueness rules as the
// Postgres schema.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*User
	tokens map[int64]*Token
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[int64]*User),
		tokens: make(map[int64]*Token),
	}
}

func (m *memStore) CreateUser(ctx context.Context, user *User, mint func(userID int64) (string, error)) (*User, *Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == user.Username {
			return nil, nil, ErrDuplicateUsername
		}
	}

	created := *user
	created.ID = m.nextID + 1
	created.CreatedAt = time.Now()

	key, err := mint(created.ID)
	if err != nil {
		return nil, nil, err
	}

	m.nextID++
	m.users[created.ID] = &created
	token := &Token{Key: key, UserID: created.ID, CreatedAt: created.CreatedAt}
	m.tokens[created.ID] = token

	out := created
	return &out, token, nil
}

func (m *memStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memStore) GetOrCreateToken(ctx context.Context, userID int64, key string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[userID]; ok {
		return t, nil
	}
	t := &Token{Key: key, UserID: userID, CreatedAt: time.Now()}
	m.tokens[userID] = t
	return t, nil
}

func (m *memStore) GetUserByToken(ctx context.Context, key string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, t := range m.tokens {
		if t.Key == key {
			out := *m.users[userID]
			return &out, nil
		}
	}
	return nil, ErrUserNotFound
}

// deleteToken simulates revoking a user's token.
func (m *memStore) deleteToken(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, userID)
}
