package users

import (
	"net/http"

	"github.com/user/polls-go/apperror"
	"github.com/user/polls-go/auth"
)

type UserHandlers struct {
	service *UserService
}

func NewUserHandlers(service *UserService) *UserHandlers {
	return &UserHandlers{service: service}
}

// HandleGetUserProfile godoc
// @Summary Current user
// @Description Returns the profile of the authenticated user.
// @Tags Users
// @Produce json
// @Security TokenAuth
// @Success 200 {object} users.UserProfileResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Router /users/me/ [get]
func (h *UserHandlers) HandleGetUserProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			auth.WriteError(w, r, apperror.NewAuthError("Authentication credentials were not provided.", nil))
			return
		}

		profile, err := h.service.GetUserProfile(r.Context(), user.ID)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}

		auth.WriteJSON(w, http.StatusOK, profile)
	}
}

// HandleUpdateUserProfile godoc
// @Summary Update current user
// @Description Changes the email of the authenticated user.
// @Tags Users
// @Accept json
// @Produce json
// @Security TokenAuth
// @Param body body users.UpdateUserProfileRequest true "New email"
// @Success 200 {object} users.UserProfileResponse
// @Failure 400 {object} apperror.ErrorResponse
// @Failure 401 {object} apperror.ErrorResponse
// @Router /users/me/ [patch]
func (h *UserHandlers) HandleUpdateUserProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			auth.WriteError(w, r, apperror.NewAuthError("Authentication credentials were not provided.", nil))
			return
		}

		var req UpdateUserProfileRequest
		if err := auth.DecodeJSON(r, &req); err != nil {
			auth.WriteError(w, r, err)
			return
		}

		profile, err := h.service.UpdateUserProfile(r.Context(), user.ID, req)
		if err != nil {
			auth.WriteError(w, r, err)
			return
		}

		auth.WriteJSON(w, http.StatusOK, profile)
	}
}
