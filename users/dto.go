package users

import "time"

// UserProfileResponse is the public view of a user. The password hash is
// never part of it.
type UserProfileResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// UpdateUserProfileRequest changes the email of the current user. An empty
// string clears it.
type UpdateUserProfileRequest struct {
	Email *string `json:"email" validate:"required"`
}

type emailField struct {
	Email string `json:"email" validate:"omitempty,email,max=254"`
}
