package auth

// RegisterRequest is the body of POST /users/.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=150,username" example:"alice"`
	Email    string `json:"email" validate:"omitempty,email,max=254" example:"alice@example.com"`
	Password string `json:"password" validate:"required,min=8,password" example:"correct-horse-battery"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	ID       int64  `json:"id" example:"1"`
	Username string `json:"username" example:"alice"`
	Email    string `json:"email" example:"alice@example.com"`
	Token    string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// LoginRequest is the body of POST /login/.
type LoginRequest struct {
	Username string `json:"username" validate:"required" example:"alice"`
	Password string `json:"password" validate:"required" example:"correct-horse-battery"`
}

// TokenResponse carries the caller's API token.
type TokenResponse struct {
	Token string `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}
