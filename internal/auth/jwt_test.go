package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", 42, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseToken("secret", "Bearer "+token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
}

func TestParseTokenRejects(t *testing.T) {
	token, _ := GenerateToken("secret", 42, time.Hour)
	if _, err := ParseToken("other", token); err == nil {
		t.Error("wrong secret accepted")
	}

	expired, _ := GenerateToken("secret", 42, -time.Minute)
	if _, err := ParseToken("secret", expired); err == nil {
		t.Error("expired token accepted")
	}

	if _, err := ParseToken("secret", "  "); !errors.Is(err, ErrMissingToken) {
		t.Errorf("empty token err = %v", err)
	}
}
