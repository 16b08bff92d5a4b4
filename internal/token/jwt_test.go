package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestGenerateAndVerify_Success(t *testing.T) {
	t.Parallel()

	now := time.Now()
	auth := NewAuthenticator("identity-api-test", func() time.Time { return now })

	tokenStr, err := auth.Generate("user-123", testSecret, 15*time.Minute)
	require.NoError(t, err)

	claims, err := auth.Verify(tokenStr, testSecret)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.Subject)
	require.Equal(t, now.Add(15*time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	auth := NewAuthenticator("identity-api-test", func() time.Time { return now })

	tokenStr, err := auth.Generate("user-123", testSecret, 15*time.Minute)
	require.NoError(t, err)

	late := NewAuthenticator("identity-api-test", func() time.Time { return now.Add(16 * time.Minute) })
	_, err = late.Verify(tokenStr, testSecret)
	require.Error(t, err)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	auth := NewAuthenticator("identity-api-test", nil)

	tokenStr, err := auth.Generate("user-123", testSecret, 15*time.Minute)
	require.NoError(t, err)

	_, err = auth.Verify(tokenStr, "other-secret")
	require.Error(t, err)
}

func TestVerify_WrongIssuer(t *testing.T) {
	t.Parallel()

	issuing := NewAuthenticator("service-a", nil)
	verifying := NewAuthenticator("service-b", nil)

	tokenStr, err := issuing.Generate("user-123", testSecret, 15*time.Minute)
	require.NoError(t, err)

	_, err = verifying.Verify(tokenStr, testSecret)
	require.Error(t, err)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	auth := NewAuthenticator("identity-api-test", nil)

	_, err := auth.Verify("not.a.jwt", testSecret)
	require.Error(t, err)
}
