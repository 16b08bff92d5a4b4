package usecase

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/naruebet/identity-api/internal/config"
	"github.com/naruebet/identity-api/internal/model"
	"github.com/naruebet/identity-api/internal/repository"
	"github.com/naruebet/identity-api/internal/token"
)

// SessionUsecase defines the interface for minting and rotating session
// tokens.
type SessionUsecase interface {
	IssueAccessToken(user *model.User) (string, error)
	IssueRefreshToken(user *model.User) (string, error)

	// Rotate exchanges a still-valid refresh token for a fresh token pair
	// and marks the presented token as spent. A refresh token is valid for
	// exactly one rotation; any later presentation of the same token fails.
	Rotate(ctx context.Context, refreshToken string) (*Tokens, error)
}

// Tokens is an access and refresh token pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// ErrInvalidRefreshToken is returned for every rotation failure: an already
// rotated token, a bad signature, an expired token, or an unresolvable
// subject. Callers must not be able to tell which check failed.
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type sessionUsecase struct {
	userRepo    repository.UserRepository
	revokedRepo repository.RevokedRefreshTokenRepository
	jwtAuth     token.Authenticator
	cfg         *config.Config
	now         nowFunc
}

// NewSessionUsecase creates a new instance of SessionUsecase.
func NewSessionUsecase(
	userRepo repository.UserRepository,
	revokedRepo repository.RevokedRefreshTokenRepository,
	jwtAuth token.Authenticator,
	cfg *config.Config,
	now func() time.Time,
) SessionUsecase {
	if now == nil {
		now = time.Now
	}

	return &sessionUsecase{
		userRepo:    userRepo,
		revokedRepo: revokedRepo,
		jwtAuth:     jwtAuth,
		cfg:         cfg,
		now:         now,
	}
}

func (u *sessionUsecase) IssueAccessToken(user *model.User) (string, error) {
	return u.jwtAuth.Generate(
		user.ID.Hex(),
		u.cfg.Token.AccessTokenSecret,
		u.cfg.Token.AccessTokenExpiresIn,
	)
}

func (u *sessionUsecase) IssueRefreshToken(user *model.User) (string, error) {
	return u.jwtAuth.Generate(
		user.ID.Hex(),
		u.cfg.Token.RefreshTokenSecret,
		u.cfg.Token.RefreshTokenExpiresIn,
	)
}

func (u *sessionUsecase) Rotate(ctx context.Context, refreshToken string) (*Tokens, error) {
	claims, err := u.jwtAuth.Verify(refreshToken, u.cfg.Token.RefreshTokenSecret)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := u.userRepo.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidRefreshToken
		}

		return nil, err
	}

	// The unique index on the ledger makes this an atomic insert-if-absent:
	// of two concurrent rotations of the same token, exactly one insert
	// succeeds and the other surfaces as a duplicate key.
	if err := u.revokedRepo.RevokeToken(ctx, refreshToken, u.now()); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrInvalidRefreshToken
		}

		return nil, err
	}

	accessToken, err := u.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	newRefreshToken, err := u.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}

	return &Tokens{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
	}, nil
}
