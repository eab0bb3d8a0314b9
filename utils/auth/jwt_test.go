package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	m := NewJWTManager(JWTConfig{
		Secret: "test-secret",
		Expiry: time.Hour,
		Issuer: "quizforge-api",
	})

	token, jti, err := m.GenerateAccessToken(7, "student@example.com", "student")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if token == "" || jti == "" {
		t.Fatal("expected non-empty token and JTI")
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != 7 || claims.Email != "student@example.com" || claims.Role != "student" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.ID != jti {
		t.Errorf("claims.ID = %q, want JTI %q", claims.ID, jti)
	}
	if claims.Issuer != "quizforge-api" {
		t.Errorf("claims.Issuer = %q, want quizforge-api", claims.Issuer)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	m := NewJWTManager(JWTConfig{
		Secret: "test-secret",
		Expiry: -time.Minute,
		Issuer: "quizforge-api",
	})

	token, _, err := m.GenerateAccessToken(7, "student@example.com", "student")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := m.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	issuing := NewJWTManager(JWTConfig{Secret: "secret-a", Expiry: time.Hour})
	validating := NewJWTManager(JWTConfig{Secret: "secret-b", Expiry: time.Hour})

	token, _, err := issuing.GenerateAccessToken(7, "student@example.com", "student")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := validating.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	m := NewJWTManager(JWTConfig{Secret: "test-secret", Expiry: time.Hour})

	if _, err := m.ValidateToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}
