package auth

import (
	"net/http"
)

// Handlers serves the public registration and login endpoints.
type Handlers struct {
	service *AuthService
}

func NewHandlers(service *AuthService) *Handlers {
	return &Handlers{service: service}
}

// HandleRegister godoc
// @Summary Register a user
// @Description Creates a user with a hashed password and issues its API token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body auth.RegisterRequest true "User registration details"
// @Success 201 {object} auth.RegisterResponse
// @Failure 400 {object} apperror.ErrorResponse "Invalid input or username taken"
// @Failure 500 {object} apperror.ErrorResponse
// @Router /users/ [post]
func (h *Handlers) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := DecodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}

		resp, err := h.service.Register(r.Context(), req)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		WriteJSON(w, http.StatusCreated, resp)
	}
}

// HandleLogin godoc
// @Summary Obtain an API token
// @Description Verifies username and password and returns the user's token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body auth.LoginRequest true "User credentials"
// @Success 200 {object} auth.TokenResponse
// @Failure 400 {object} apperror.ErrorResponse "Wrong credentials"
// @Failure 500 {object} apperror.ErrorResponse
// @Router /login/ [post]
func (h *Handlers) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := DecodeJSON(r, &req); err != nil {
			WriteError(w, r, err)
			return
		}

		resp, err := h.service.Login(r.Context(), req)
		if err != nil {
			WriteError(w, r, err)
			return
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}
