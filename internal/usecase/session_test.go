package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/naruebet/identity-api/internal/model"
	"github.com/naruebet/identity-api/internal/token"
)

type sessionFixture struct {
	users   *fakeUserRepo
	revoked *fakeRevokedRepo
	now     time.Time
	session SessionUsecase
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	f := &sessionFixture{
		users:   newFakeUserRepo(),
		revoked: newFakeRevokedRepo(),
		now:     time.Now(),
	}
	cfg := testConfig()
	jwtAuth := token.NewAuthenticator(cfg.Token.Issuer, fixedClock(f.now))
	f.session = NewSessionUsecase(f.users, f.revoked, jwtAuth, cfg, fixedClock(f.now))
	return f
}

func (f *sessionFixture) addUser(t *testing.T) *model.User {
	t.Helper()

	return f.users.add(&model.User{
		Email:    "a@x.com",
		Username: "a",
		Status:   model.UserStatusActive,
	})
}

func TestIssueAccessToken_SubjectIsUserID(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	user := f.addUser(t)
	cfg := testConfig()

	accessToken, err := f.session.IssueAccessToken(user)
	require.NoError(t, err)

	jwtAuth := token.NewAuthenticator(cfg.Token.Issuer, fixedClock(f.now))
	claims, err := jwtAuth.Verify(accessToken, cfg.Token.AccessTokenSecret)
	require.NoError(t, err)
	require.Equal(t, user.ID.Hex(), claims.Subject)

	// The access secret does not verify refresh tokens and vice versa.
	_, err = jwtAuth.Verify(accessToken, cfg.Token.RefreshTokenSecret)
	require.Error(t, err)
}

func TestRotate_SuccessMarksTokenSpent(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	user := f.addUser(t)

	refreshToken, err := f.session.IssueRefreshToken(user)
	require.NoError(t, err)

	tokens, err := f.session.Rotate(context.Background(), refreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	require.True(t, f.revoked.contains(refreshToken), "rotated token must be in the ledger")
}

func TestRotate_ReplayOfOriginalTokenFails(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	user := f.addUser(t)

	refreshToken, err := f.session.IssueRefreshToken(user)
	require.NoError(t, err)

	_, err = f.session.Rotate(context.Background(), refreshToken)
	require.NoError(t, err)

	_, err = f.session.Rotate(context.Background(), refreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotate_ExpiredToken(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	user := f.addUser(t)

	refreshToken, err := f.session.IssueRefreshToken(user)
	require.NoError(t, err)

	// Same secrets, clock advanced past the refresh TTL.
	cfg := testConfig()
	lateClock := fixedClock(f.now.Add(cfg.Token.RefreshTokenExpiresIn + time.Hour))
	lateAuth := token.NewAuthenticator(cfg.Token.Issuer, lateClock)
	lateSession := NewSessionUsecase(f.users, f.revoked, lateAuth, cfg, lateClock)

	_, err = lateSession.Rotate(context.Background(), refreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotate_MalformedToken(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)

	_, err := f.session.Rotate(context.Background(), "not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotate_AccessSecretSignedTokenRejected(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	user := f.addUser(t)

	// An access token presented as a refresh token fails signature
	// verification against the refresh secret.
	accessToken, err := f.session.IssueAccessToken(user)
	require.NoError(t, err)

	_, err = f.session.Rotate(context.Background(), accessToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotate_UnknownSubject(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t)
	user := f.addUser(t)

	refreshToken, err := f.session.IssueRefreshToken(user)
	require.NoError(t, err)

	_, err = f.users.DeleteUser(context.Background(), user.ID.Hex())
	require.NoError(t, err)

	_, err = f.session.Rotate(context.Background(), refreshToken)
	require.ErrorIs(t, err, ErrInvalidRefreshToken)
}
