package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/user/polls-go/apperror"
)

// WriteJSON writes data as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

// WriteError renders err as an apperror.ErrorResponse. Errors that are not
// AppErrors become a generic 500 and are logged with their cause.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperror.FromError(err)
	if !ok {
		appErr = apperror.NewInternalError("an unexpected error occurred", err)
	}

	status := appErr.StatusCode()
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", appErr,
		)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", tokenKeyword)
	}

	WriteJSON(w, status, appErr.ToResponse())
}

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// DecodeJSON reads the request body into v, rejecting unknown fields and
// bodies over maxBodyBytes.
func DecodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.NewBadRequestError("request body is too large", err)
		}
		if errors.Is(err, io.EOF) {
			return apperror.NewBadRequestError("request body is empty", nil)
		}
		return apperror.NewBadRequestError("invalid request body: "+err.Error(), err)
	}
	return nil
}
