// Package reaper purges expired time-bounded records on a fixed schedule:
// two-factor challenges past their validity window, revoked refresh token
// ledger entries past the refresh TTL, and users that never confirmed their
// account.
package reaper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/naruebet/identity-api/internal/config"
)

// The reaper only deletes by predicate, so it depends on these narrow
// slices of the repositories.
type userStore interface {
	DeletePendingCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type challengeStore interface {
	DeleteChallengesCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type revokedTokenStore interface {
	DeleteTokensCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Reaper runs the three expiry sweeps. Each sweep is a single delete by
// predicate, safe to run concurrently with request handling and safe to run
// twice.
type Reaper struct {
	userRepo      userStore
	challengeRepo challengeStore
	revokedRepo   revokedTokenStore
	cfg           *config.Config
	logger        *zerolog.Logger
	now           func() time.Time
}

// New creates a new Reaper instance. A nil now function defaults to
// time.Now.
func New(
	userRepo userStore,
	challengeRepo challengeStore,
	revokedRepo revokedTokenStore,
	cfg *config.Config,
	logger *zerolog.Logger,
	now func() time.Time,
) *Reaper {
	if now == nil {
		now = time.Now
	}

	return &Reaper{
		userRepo:      userRepo,
		challengeRepo: challengeRepo,
		revokedRepo:   revokedRepo,
		cfg:           cfg,
		logger:        logger,
		now:           now,
	}
}

// Run sweeps on the configured interval until the context is canceled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Reaper.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs the three sweeps once. Sweep failures are logged and do not
// stop the remaining sweeps.
func (r *Reaper) Sweep(ctx context.Context) {
	r.sweepChallenges(ctx)
	r.sweepRevokedTokens(ctx)
	r.sweepUnconfirmedUsers(ctx)
}

func (r *Reaper) sweepChallenges(ctx context.Context) {
	cutoff := r.now().Add(-r.cfg.Auth.ChallengeExpiresIn)

	count, err := r.challengeRepo.DeleteChallengesCreatedBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to delete expired two-factor challenges")
		return
	}

	if count > 0 {
		r.logger.Info().Int64("count", count).Msg("deleted expired two-factor challenges")
	}
}

func (r *Reaper) sweepRevokedTokens(ctx context.Context) {
	// The retention equals the refresh token TTL, so no token can still be
	// valid when its revocation record is purged.
	cutoff := r.now().Add(-r.cfg.Token.RefreshTokenExpiresIn)

	count, err := r.revokedRepo.DeleteTokensCreatedBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to delete expired revoked refresh tokens")
		return
	}

	if count > 0 {
		r.logger.Info().Int64("count", count).Msg("deleted expired revoked refresh tokens")
	}
}

func (r *Reaper) sweepUnconfirmedUsers(ctx context.Context) {
	cutoff := r.now().Add(-r.cfg.Auth.ConfirmationWindow)

	count, err := r.userRepo.DeletePendingCreatedBefore(ctx, cutoff)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to delete unconfirmed users")
		return
	}

	if count > 0 {
		r.logger.Info().Int64("count", count).Msg("deleted unconfirmed users")
	}
}
