package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/sproutfam/sprout/internal/model"
)

var testSecret = []byte("test-secret")

func TestSignAndParseToken(t *testing.T) {
	user := &model.User{ID: 42, Role: model.RoleGuardian}

	token, err := SignToken(testSecret, user, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	userID, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if userID != 42 {
		t.Errorf("user id = %d, want 42", userID)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := SignToken(testSecret, &model.User{ID: 1, Role: model.RoleDependent}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ParseToken([]byte("other-secret"), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseTokenExpired(t *testing.T) {
	token, err := SignToken(testSecret, &model.User{ID: 1, Role: model.RoleDependent}, -time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	// A non-positive TTL falls back to the default, so force expiry instead
	// with a barely-alive token.
	token2, err := SignToken(testSecret, &model.User{ID: 1, Role: model.RoleDependent}, time.Millisecond)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := ParseToken(testSecret, token2); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired err = %v, want ErrInvalidToken", err)
	}
	// The default-TTL token is still valid.
	if _, err := ParseToken(testSecret, token); err != nil {
		t.Errorf("default-ttl token rejected: %v", err)
	}
}

func TestParseTokenGarbage(t *testing.T) {
	for _, bad := range []string{"", "not.a.token", "aaaa.bbbb.cccc"} {
		if _, err := ParseToken(testSecret, bad); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ParseToken(%q) err = %v, want ErrInvalidToken", bad, err)
		}
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "hunter2!" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !VerifyPassword(hash, "hunter2!") {
		t.Error("correct password rejected")
	}
	if VerifyPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
}
