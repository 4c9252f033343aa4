package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// AccessTokenClaims is the subset of the identity provider's access token we rely on.
type AccessTokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// SessionUser is the authenticated admin attached to a request.
type SessionUser struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ParseAccessToken validates an HS256 access token and returns its claims.
func ParseAccessToken(secret, tokenString string) (*AccessTokenClaims, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Email) == "" {
		return nil, ErrNoEmailClaim
	}
	return claims, nil
}

// MintAccessToken signs a token in the provider's format. Used by tests and
// the local development login.
func MintAccessToken(secret string, now time.Time, ttl time.Duration, userID, email string) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	claims := AccessTokenClaims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// User converts verified claims into the request user.
func (c *AccessTokenClaims) User() *SessionUser {
	u := &SessionUser{UserID: c.Subject, Email: strings.ToLower(c.Email), Role: c.Role}
	if c.ExpiresAt != nil {
		u.ExpiresAt = c.ExpiresAt.Time
	}
	return u
}

// IsAdmin reports whether email is on the allowlist. An empty allowlist
// admits every authenticated user.
func IsAdmin(email string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return email != ""
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range allowlist {
		if strings.EqualFold(a, email) {
			return true
		}
	}
	return false
}

// Fingerprint is the revocation-list key component for a raw token.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
