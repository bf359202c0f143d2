package auth

import (
	"testing"
	"time"
)

func newTestManager() *Manager {
	return NewManager("test-secret", 15*time.Minute, 7*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateAccessToken("user-1", "buyer@example.com", "buyer")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if claims.UserID != "user-1" || claims.Email != "buyer@example.com" || claims.Role != "buyer" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.TokenType != "access" {
		t.Fatalf("typ = %q", claims.TokenType)
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	m := newTestManager()

	raw, jti, expiresAt, err := m.GenerateRefreshToken("user-1", "buyer@example.com", "buyer")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if jti == "" {
		t.Fatal("expected a jti")
	}
	if time.Until(expiresAt) < 6*24*time.Hour {
		t.Fatalf("expiresAt too soon: %v", expiresAt)
	}

	claims, err := m.VerifyRefreshToken(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.JTI != jti {
		t.Fatalf("jti mismatch: %q vs %q", claims.JTI, jti)
	}
}

func TestTokenTypeIsEnforced(t *testing.T) {
	m := newTestManager()

	access, err := m.GenerateAccessToken("user-1", "a@b.c", "buyer")
	if err != nil {
		t.Fatalf("generate access: %v", err)
	}
	refresh, _, _, err := m.GenerateRefreshToken("user-1", "a@b.c", "buyer")
	if err != nil {
		t.Fatalf("generate refresh: %v", err)
	}

	if _, err := m.VerifyRefreshToken(access); err == nil {
		t.Fatal("access token accepted as refresh")
	}
	if _, err := m.VerifyAccessToken(refresh); err == nil {
		t.Fatal("refresh token accepted as access")
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	m := newTestManager()
	other := NewManager("other-secret", 15*time.Minute, 7*24*time.Hour)

	token, err := other.GenerateAccessToken("user-1", "a@b.c", "buyer")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := m.VerifyAccessToken(token); err == nil {
		t.Fatal("token signed with another secret was accepted")
	}
}

func TestHashRefreshTokenIsStable(t *testing.T) {
	m := newTestManager()

	h1 := m.HashRefreshToken("raw-token")
	h2 := m.HashRefreshToken("raw-token")
	h3 := m.HashRefreshToken("other-token")

	if h1 != h2 {
		t.Fatal("same input hashed differently")
	}
	if h1 == h3 {
		t.Fatal("different inputs collided")
	}
	if h1 == "raw-token" {
		t.Fatal("hash must not echo the input")
	}
}
