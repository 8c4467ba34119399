package session

import (
	"testing"
	"time"
)

func TestTokensIssueAndVerify(t *testing.T) {
	tk := NewTokens([]byte("a-session-signing-secret-value!"), time.Hour)
	signed, err := tk.Issue("user-1", "pnhash-abc", "thumb-1")
	if err != nil {
		t.Fatalf("unexpected error issuing token: %v", err)
	}

	claims, err := tk.Verify(signed)
	if err != nil {
		t.Fatalf("unexpected error verifying token: %v", err)
	}
	if claims.UserID != "user-1" || claims.PNHash != "pnhash-abc" || claims.DeviceKeyThumbprint != "thumb-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokensRejectsExpired(t *testing.T) {
	tk := NewTokens([]byte("a-session-signing-secret-value!"), -time.Minute)
	signed, err := tk.Issue("user-1", "pnhash-abc", "thumb-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := tk.Verify(signed); err == nil {
		t.Fatalf("expected expired token to fail verification")
	}
}

func TestTokensRejectsWrongSecret(t *testing.T) {
	tk := NewTokens([]byte("secret-one-is-long-enough-here!"), time.Hour)
	signed, _ := tk.Issue("user-1", "pnhash-abc", "thumb-1")

	other := NewTokens([]byte("secret-two-is-long-enough-here!"), time.Hour)
	if _, err := other.Verify(signed); err == nil {
		t.Fatalf("expected verification with a different secret to fail")
	}
}
