package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/brightmarket/storefront-backend/pkg/config"
	"github.com/google/uuid"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "storefront",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()
	userID := uuid.New()

	payload := AccessTokenPayload{
		UserID: userID,
		Email:  "shopper@example.com",
	}

	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Email != "shopper@example.com" {
		t.Fatalf("email not preserved, got %q", claims.Email)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatal("expected generated jti")
	}
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	minted, err := MintAccessToken(config.JWTConfig{Secret: "secret", Issuer: "other", ExpirationMinutes: 30}, time.Now().UTC(), AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	_, err = ParseAccessToken(config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 30}, minted)
	if err == nil || !strings.Contains(err.Error(), "iss") {
		t.Fatalf("expected issuer validation failure, got %v", err)
	}
}

func TestMintAccessTokenRequiresUserID(t *testing.T) {
	_, err := MintAccessToken(config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 30}, time.Now().UTC(), AccessTokenPayload{})
	if err == nil {
		t.Fatal("expected error for missing user id")
	}
}
