package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestParseAccessToken_Valid(t *testing.T) {
	tok, err := MintAccessToken(secret, time.Now(), time.Hour, "user-1", "Sales@Example.com")
	require.NoError(t, err)

	claims, err := ParseAccessToken(secret, tok)
	require.NoError(t, err)
	u := claims.User()
	assert.Equal(t, "user-1", u.UserID)
	assert.Equal(t, "sales@example.com", u.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), u.ExpiresAt, 2*time.Second)
}

func TestParseAccessToken_Rejects(t *testing.T) {
	expired, err := MintAccessToken(secret, time.Now().Add(-2*time.Hour), time.Hour, "u", "a@b.com")
	require.NoError(t, err)
	_, err = ParseAccessToken(secret, expired)
	assert.Error(t, err)

	other, err := MintAccessToken("other-secret", time.Now(), time.Hour, "u", "a@b.com")
	require.NoError(t, err)
	_, err = ParseAccessToken(secret, other)
	assert.Error(t, err)

	noEmail, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = ParseAccessToken(secret, noEmail)
	assert.ErrorIs(t, err, ErrNoEmailClaim)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessTokenClaims{Email: "a@b.com"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseAccessToken(secret, none)
	assert.Error(t, err)

	_, err = ParseAccessToken("", "x")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestIsAdmin(t *testing.T) {
	allow := []string{"sales@example.com"}
	assert.True(t, IsAdmin("Sales@Example.com", allow))
	assert.False(t, IsAdmin("someone@example.com", allow))
	assert.True(t, IsAdmin("someone@example.com", nil))
	assert.False(t, IsAdmin("", nil))
}

func TestRevocation(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	revoked, err := IsRevoked(ctx, rdb, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, Revoke(ctx, rdb, "tok", time.Now().Add(time.Minute)))
	revoked, err = IsRevoked(ctx, rdb, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = IsRevoked(ctx, rdb, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, Revoke(ctx, rdb, "old", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists(RevokedPrefix+Fingerprint("old")))

	revoked, err = IsRevoked(ctx, nil, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)
}
