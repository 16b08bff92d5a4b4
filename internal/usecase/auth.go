package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/naruebet/identity-api/internal/config"
	"github.com/naruebet/identity-api/internal/model"
	"github.com/naruebet/identity-api/internal/repository"
	"github.com/naruebet/identity-api/internal/security"
)

// AuthUsecase defines the interface for credential validation and two-factor
// verification.
type AuthUsecase interface {
	// Login validates an email and password pair. On success it creates a
	// two-factor challenge, emails its code to the user, and returns an
	// opaque challenge token: a one-way hash of the challenge id that cannot
	// be reversed into a lookup key.
	Login(ctx context.Context, params LoginParams) (string, error)

	// VerifyTwoFactor consumes a challenge matching the token and code and
	// returns the authenticated user.
	VerifyTwoFactor(ctx context.Context, challengeToken, code string) (*model.User, error)
}

// LoginParams defines the parameters for user login.
type LoginParams struct {
	Email    string
	Password string
}

// ErrInvalidCredentials is returned for every authentication failure: an
// unknown email, a non-active account, a wrong password, or a missing,
// expired or mismatched challenge. Callers must not be able to tell which
// check failed.
var ErrInvalidCredentials = errors.New("invalid credentials")

// errChallengeFound stops the comparison race once a candidate matches.
var errChallengeFound = errors.New("challenge found")

type authUsecase struct {
	userRepo      repository.UserRepository
	challengeRepo repository.TwoFactorChallengeRepository
	hasher        *security.Hasher
	mailer        Mailer
	cfg           *config.Config
	now           nowFunc
}

// NewAuthUsecase creates a new instance of AuthUsecase.
func NewAuthUsecase(
	userRepo repository.UserRepository,
	challengeRepo repository.TwoFactorChallengeRepository,
	hasher *security.Hasher,
	mailer Mailer,
	cfg *config.Config,
	now func() time.Time,
) AuthUsecase {
	if now == nil {
		now = time.Now
	}

	return &authUsecase{
		userRepo:      userRepo,
		challengeRepo: challengeRepo,
		hasher:        hasher,
		mailer:        mailer,
		cfg:           cfg,
		now:           now,
	}
}

func (u *authUsecase) Login(ctx context.Context, params LoginParams) (string, error) {
	user, err := u.userRepo.GetUserByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrInvalidCredentials
		}

		return "", err
	}

	if user.Status != model.UserStatusActive {
		return "", ErrInvalidCredentials
	}

	if ok, err := u.hasher.Verify(params.Password, user.PasswordHash); err != nil {
		return "", err
	} else if !ok {
		return "", ErrInvalidCredentials
	}

	code, err := generateTwoFactorCode()
	if err != nil {
		return "", err
	}

	challenge, err := u.challengeRepo.CreateChallenge(ctx, &model.TwoFactorChallenge{
		UserID:    user.ID,
		Code:      code,
		CreatedAt: u.now(),
	})
	if err != nil {
		return "", err
	}

	htmlBody := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>Your verification code is:</p>

		<p><strong>%s</strong></p>

		<p>This code will expire in %s. If you did not try to sign in, please
		change your password immediately.</p>
	`, user.Username, code, u.cfg.Auth.ChallengeExpiresIn)

	if err := u.mailer.SendHTML([]string{user.Email}, "Your verification code", htmlBody); err != nil {
		return "", err
	}

	// The challenge token handed to the client is a one-way hash of the
	// challenge id, so the client-visible value cannot be turned back into
	// the id.
	challengeToken, err := u.hasher.Hash(challenge.ID.Hex())
	if err != nil {
		return "", err
	}

	return challengeToken, nil
}

func (u *authUsecase) VerifyTwoFactor(ctx context.Context, challengeToken, code string) (*model.User, error) {
	if challengeToken == "" {
		return nil, ErrInvalidCredentials
	}

	cutoff := u.now().Add(-u.cfg.Auth.ChallengeExpiresIn)
	candidates, err := u.challengeRepo.ListChallengesByCode(ctx, code, cutoff)
	if err != nil {
		return nil, err
	}

	matched, ok := u.raceCompare(ctx, candidates, challengeToken)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	user, err := u.userRepo.GetUser(ctx, matched.UserID.Hex())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}

		return nil, err
	}

	// A challenge is single use.
	if err := u.challengeRepo.DeleteChallenge(ctx, matched.ID.Hex()); err != nil {
		return nil, err
	}

	return user, nil
}

// raceCompare runs the adaptive hash comparison over all candidates
// concurrently and resolves as soon as any comparison succeeds. Because the
// challenge token is a one-way hash of the id, there is no direct lookup;
// every candidate has to be compared. The comparisons are CPU bound, so the
// pool is capped at GOMAXPROCS. Cancellation is cooperative: a slow
// comparison may still finish after the race resolves, its result is
// discarded.
func (u *authUsecase) raceCompare(
	ctx context.Context,
	candidates []model.TwoFactorChallenge,
	challengeToken string,
) (model.TwoFactorChallenge, bool) {
	found := make(chan model.TwoFactorChallenge, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for _, candidate := range candidates {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}

			ok, err := u.hasher.Verify(candidate.ID.Hex(), challengeToken)
			if err != nil || !ok {
				return nil
			}

			select {
			case found <- candidate:
			default:
			}

			// Returning an error cancels gctx and stops the remaining
			// comparisons from starting.
			return errChallengeFound
		})
	}

	_ = g.Wait()

	select {
	case matched := <-found:
		return matched, true
	default:
		return model.TwoFactorChallenge{}, false
	}
}
