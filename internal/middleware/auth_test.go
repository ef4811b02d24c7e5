package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sproutfam/sprout/internal/auth"
	"github.com/sproutfam/sprout/internal/database"
	"github.com/sproutfam/sprout/internal/model"
	"github.com/sproutfam/sprout/internal/store"
)

var testSecret = []byte("test-secret")

func setupAuthTest(t *testing.T) (*store.UserStore, *model.User) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	u, err := users.Create("g@example.com", "Guardian", "hash", model.RoleGuardian)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return users, u
}

func okHandler(got *auth.AuthContext) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ac, ok := auth.FromContext(r.Context()); ok {
			*got = ac
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthValidToken(t *testing.T) {
	users, user := setupAuthTest(t)

	token, err := auth.SignToken(testSecret, user, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var got auth.AuthContext
	handler := RequireAuth(testSecret, users)(okHandler(&got))

	req := httptest.NewRequest("GET", "/api/levels/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got.UserID != user.ID || got.Role != model.RoleGuardian {
		t.Errorf("auth context = %+v", got)
	}
}

func TestRequireAuthRejects(t *testing.T) {
	users, user := setupAuthTest(t)

	var got auth.AuthContext
	handler := RequireAuth(testSecret, users)(okHandler(&got))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-token"},
		{"wrong secret", "Bearer " + func() string {
			s, _ := auth.SignToken([]byte("other"), user, time.Hour)
			return s
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/levels/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRequireAuthDeletedUser(t *testing.T) {
	users, user := setupAuthTest(t)
	token, _ := auth.SignToken(testSecret, &model.User{ID: user.ID + 100, Role: user.Role}, time.Hour)

	handler := RequireAuth(testSecret, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/levels/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for unknown user", rec.Code)
	}
}

func TestRequireGuardian(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireGuardian(next)

	req := httptest.NewRequest("POST", "/api/invites", nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: 1, Role: model.RoleGuardian}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("guardian status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest("POST", "/api/invites", nil)
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: 2, Role: model.RoleDependent}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("dependent status = %d, want 403", rec.Code)
	}
}
