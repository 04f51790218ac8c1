package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomctl/loom/pkg/apperr"
)

const testSecret = "test-hmac-secret"

func signHS256(t *testing.T, subject string, expiry time.Time) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestVerify_AcceptsValidHS256Token(t *testing.T) {
	v := New(testSecret, "", 0)
	token := signHS256(t, "user-123", time.Now().Add(time.Hour))

	userID, err := v.Verify(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestVerify_StripsBearerPrefixAndSurroundingSpace(t *testing.T) {
	v := New(testSecret, "", 0)
	token := signHS256(t, "user-123", time.Now().Add(time.Hour))

	userID, err := v.Verify(context.Background(), "Bearer "+token+"  ")
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	v := New(testSecret, "", 0)
	token := signHS256(t, "user-123", time.Now().Add(-time.Hour))

	_, err := v.Verify(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestVerify_RejectsTokenSignedWithWrongSecret(t *testing.T) {
	v := New(testSecret, "", 0)

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("a-different-secret"))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signed)
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestVerify_RejectsEmptyToken(t *testing.T) {
	v := New(testSecret, "", 0)
	_, err := v.Verify(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestVerify_NoMethodsConfiguredAlwaysFails(t *testing.T) {
	v := New("", "", 0)
	_, err := v.Verify(context.Background(), "whatever-token")
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}
