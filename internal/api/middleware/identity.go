package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/trainlyhq/trainly-core/internal/errs"
	"github.com/trainlyhq/trainly-core/internal/identity"
)

type ctxKey string

const identityKey ctxKey = "identity"

// RequireUser authenticates a Bearer id_token from the identity provider
// and stashes the verified subject in the request context.
func RequireUser(verifier identity.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				writeAuthError(w, errs.NotAuthenticated())
				return
			}

			subject, err := verifier.Verify(r.Context(), tokenStr)
			if err != nil {
				writeAuthError(w, errs.InvalidSubjectToken())
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the verified subject id, or "" outside
// RequireUser-protected routes.
func UserFromContext(ctx context.Context) string {
	s, _ := ctx.Value(identityKey).(identity.Subject)
	return s.ID
}

// EmailFromContext returns the verified email claim from the caller's
// id_token, or "" when the provider did not include one.
func EmailFromContext(ctx context.Context) string {
	s, _ := ctx.Value(identityKey).(identity.Subject)
	return s.Email
}

// RequireAdmin allows only the configured admin subjects through. Runs
// after RequireUser; with no subjects configured every caller is refused.
func RequireAdmin(subjects []string) func(http.Handler) http.Handler {
	admins := make(map[string]bool, len(subjects))
	for _, s := range subjects {
		admins[s] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !admins[UserFromContext(r.Context())] {
				writeAuthError(w, errs.AccessDenied("admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, e *errs.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	json.NewEncoder(w).Encode(e)
}
