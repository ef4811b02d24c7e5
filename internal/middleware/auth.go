package middleware

import (
	"net/http"
	"strings"

	"github.com/sproutfam/sprout/internal/auth"
	"github.com/sproutfam/sprout/internal/store"
)

// RequireAuth validates the bearer token and populates AuthContext. The user
// row is reloaded on every request so a fresh family link takes effect
// without re-issuing the token.
func RequireAuth(secret []byte, users *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			userID, err := auth.ParseToken(secret, token)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := users.GetByID(userID)
			if err != nil || user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ac := auth.AuthContext{
				UserID: user.ID,
				Role:   user.Role,
			}
			if user.FamilyID != nil {
				ac.FamilyID = *user.FamilyID
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireGuardian checks that the authenticated user has the guardian role.
func RequireGuardian(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsGuardian(r.Context()) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
