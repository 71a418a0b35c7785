package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/assetcart/pkg/config"
	"github.com/angelmondragon/assetcart/pkg/types"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// IdentityClaims is the token the identity provider hands the storefront.
// Only the display name and email are consumed, to prefill shipping details.
type IdentityClaims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Identity projects the claims onto the checkout prefill shape.
func (c *IdentityClaims) Identity() types.Identity {
	if c == nil {
		return types.Identity{}
	}
	return types.Identity{
		Subject: c.Subject,
		Name:    strings.TrimSpace(c.Name),
		Email:   strings.TrimSpace(c.Email),
	}
}

// MintIdentityToken signs an identity token; used by local tooling and tests.
func MintIdentityToken(cfg config.IdentityConfig, now time.Time, ttl time.Duration, identity types.Identity) (string, error) {
	if cfg.JWTSecret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token ttl must be positive")
	}

	claims := IdentityClaims{
		Name:  identity.Name,
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseIdentityToken validates the JWT string and returns typed claims.
func ParseIdentityToken(cfg config.IdentityConfig, tokenString string) (*IdentityClaims, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwtSigningMethod.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &IdentityClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
