package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/user/polls-go/apperror"
)

const tokenKeyword = "Token"

// Authenticator resolves an API token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*User, error)
}

// TokenMiddleware requires "Authorization: Token <key>" and stores the
// resolved user in the request context.
func TokenMiddleware(authenticator Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				WriteError(w, r, apperror.NewAuthError("Authentication credentials were not provided.", nil))
				return
			}

			parts := strings.Fields(authHeader)
			if len(parts) == 0 || !strings.EqualFold(parts[0], tokenKeyword) {
				WriteError(w, r, apperror.NewAuthError("Authentication credentials were not provided.", nil))
				return
			}
			if len(parts) != 2 {
				WriteError(w, r, apperror.NewAuthError("Invalid token header. Token string should not contain spaces.", nil))
				return
			}

			user, err := authenticator.Authenticate(r.Context(), parts[1])
			if err != nil {
				WriteError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContextWithUser(r.Context(), user)))
		})
	}
}
