package utils

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	now := time.Now()
	tok, err := NewAccessToken("secret", 42, true, 15, now)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := ParseAccessToken("secret", tok.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 || !claims.IsAdmin {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := ParseAccessToken("other", tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestAccessTokenExpired(t *testing.T) {
	tok, err := NewAccessToken("secret", 1, false, 1, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken("secret", tok.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestRefreshToken(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	rt, err := NewRefreshToken(30, now)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(rt.Raw) != 96 {
		t.Fatalf("raw length = %d, want 96", len(rt.Raw))
	}
	if !rt.Exp.Equal(now.Add(30 * 24 * time.Hour)) {
		t.Fatalf("exp = %s", rt.Exp)
	}
	if HashToken(rt.Raw) == rt.Raw || len(HashToken(rt.Raw)) != 64 {
		t.Fatal("hash should be 64 hex chars")
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cretpass", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "s3cretpass") || VerifyPassword(hash, "wrong") {
		t.Fatal("verify mismatch")
	}

	for _, weak := range []string{"short1", "lettersonly", "1234567890"} {
		if err := CheckPassword(weak); !errors.Is(err, ErrWeakPassword) {
			t.Errorf("CheckPassword(%q) = %v, want ErrWeakPassword", weak, err)
		}
	}
	if err := CheckPassword("playtime2026"); err != nil {
		t.Fatalf("strong password rejected: %v", err)
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "+91 98765 43210", want: "+919876543210"},
		{in: "098765-43210", want: "+919876543210"},
		{in: "9876543210", want: "+919876543210"},
		{in: "919876543210", want: "+919876543210"},
		{in: "0044 20 7946 0958", want: "+442079460958"},
		{in: "+1 (415) 555-2671", want: "+14155552671"},
		{in: "12345", wantErr: true},
		{in: "", wantErr: true},
		{in: "+1234567890123456", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizePhone(tt.in, "91")
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidPhone) {
				t.Errorf("NormalizePhone(%q) = %q, %v; want ErrInvalidPhone", tt.in, got, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	if got := MaskPhone("+919876543210"); got != "*********3210" {
		t.Fatalf("MaskPhone = %q", got)
	}
}
