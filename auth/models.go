package auth

import "time"

// User is a registered account. HashedPassword never leaves the server.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Token is the single API credential belonging to a user.
type Token struct {
	Key       string    `json:"-"`
	UserID    int64     `json:"-"`
	CreatedAt time.Time `json:"-"`
}
