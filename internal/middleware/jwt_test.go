package middleware

import (
	"testing"
	"time"

	"github.com/spherelink/spherelink/internal/model"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestIssueAndParseToken(t *testing.T) {
	user := model.User{ID: 42, Username: "tester"}

	token, err := IssueToken(testSecret, user, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	userID, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if userID != 42 {
		t.Errorf("userID = %d, want 42", userID)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := IssueToken(testSecret, model.User{ID: 1}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, err := ParseToken([]byte("another-secret-another-secret-xx"), token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestParseToken_Expired(t *testing.T) {
	token, err := IssueToken(testSecret, model.User{ID: 1}, -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, err := ParseToken(testSecret, token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestParseToken_Garbage(t *testing.T) {
	if _, err := ParseToken(testSecret, "not.a.token"); err == nil {
		t.Error("expected error for malformed token")
	}
}
