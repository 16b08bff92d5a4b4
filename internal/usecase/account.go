package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/naruebet/identity-api/internal/config"
	"github.com/naruebet/identity-api/internal/model"
	"github.com/naruebet/identity-api/internal/repository"
	"github.com/naruebet/identity-api/internal/security"
)

// AccountUsecase defines the business logic for the account lifecycle:
// registration, confirmation, password reset and direct administration.
type AccountUsecase interface {
	// Register creates a pending user and emails a confirmation link.
	Register(ctx context.Context, params RegisterParams) (*model.User, error)

	// Confirm activates the pending user holding the code. Confirming an
	// already active user is idempotent. A code presented after the
	// confirmation window deletes the account.
	Confirm(ctx context.Context, code string) (*model.User, error)

	// RequestPasswordReset issues a reset token and emails a reset link. An
	// unknown email silently succeeds so callers cannot probe for
	// registered addresses. Each request supersedes the previous token.
	RequestPasswordReset(ctx context.Context, email string) error

	// ConfirmPasswordReset sets a new password for the user holding the
	// token. An expired token fails without touching the account.
	ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error

	UpdateUser(ctx context.Context, id string, params UpdateUserParams) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RegisterParams defines the parameters for user registration.
type RegisterParams struct {
	Email    string
	Username string
	Password string
}

// UpdateUserParams defines the optional parameters for updating a user.
// Only the fields that are not nil will be applied.
type UpdateUserParams struct {
	Email    *string
	Username *string
	Password *string
}

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrCodeNotFound      = errors.New("confirmation code not found")
	ErrCodeExpired       = errors.New("confirmation code has expired")
	ErrTokenNotFound     = errors.New("password reset token not found")
	ErrTokenExpired      = errors.New("password reset token has expired")
)

type accountUsecase struct {
	userRepo      repository.UserRepository
	challengeRepo repository.TwoFactorChallengeRepository
	hasher        *security.Hasher
	mailer        Mailer
	cfg           *config.Config
	now           nowFunc
}

// NewAccountUsecase creates a new instance of AccountUsecase.
func NewAccountUsecase(
	userRepo repository.UserRepository,
	challengeRepo repository.TwoFactorChallengeRepository,
	hasher *security.Hasher,
	mailer Mailer,
	cfg *config.Config,
	now func() time.Time,
) AccountUsecase {
	if now == nil {
		now = time.Now
	}

	return &accountUsecase{
		userRepo:      userRepo,
		challengeRepo: challengeRepo,
		hasher:        hasher,
		mailer:        mailer,
		cfg:           cfg,
		now:           now,
	}
}

func (u *accountUsecase) Register(ctx context.Context, params RegisterParams) (*model.User, error) {
	passwordHash, err := u.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	confirmationCode, err := generateSecureToken()
	if err != nil {
		return nil, err
	}

	user, err := u.userRepo.CreateUser(ctx, &model.User{
		Email:            params.Email,
		Username:         params.Username,
		PasswordHash:     passwordHash,
		Status:           model.UserStatusPending,
		ConfirmationCode: confirmationCode,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserAlreadyExists
		}

		return nil, err
	}

	confirmationLink := fmt.Sprintf("%s?code=%s", u.cfg.AppConfirmationURL, confirmationCode)
	htmlBody := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>Thanks for signing up. Please confirm your email address by
		clicking the link below:</p>

		<p><a href="%s">%s</a></p>

		<p>This link will expire in %s. Unconfirmed accounts are removed
		after that.</p>
	`, user.Username, confirmationLink, confirmationLink, u.cfg.Auth.ConfirmationWindow)

	if err := u.mailer.SendHTML([]string{user.Email}, "Confirm your account", htmlBody); err != nil {
		return nil, err
	}

	return user, nil
}

func (u *accountUsecase) Confirm(ctx context.Context, code string) (*model.User, error) {
	user, err := u.userRepo.GetUserByConfirmationCode(ctx, code)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCodeNotFound
		}

		return nil, err
	}

	if user.Status == model.UserStatusActive {
		return user, nil
	}

	if u.now().Sub(user.CreatedAt) > u.cfg.Auth.ConfirmationWindow {
		// Expired confirmations destroy the account; the email and username
		// become available again.
		if _, err := u.userRepo.DeleteUser(ctx, user.ID.Hex()); err != nil {
			return nil, err
		}

		return nil, ErrCodeExpired
	}

	status := model.UserStatusActive
	updated, err := u.userRepo.UpdateUser(ctx, user.ID.Hex(), repository.UpdateUserParams{
		Status: &status,
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (u *accountUsecase) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := u.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// To prevent email enumeration, do not reveal that the email
			// does not exist.
			return nil
		}

		return err
	}

	resetToken, err := generateSecureToken()
	if err != nil {
		return err
	}

	if _, err := u.userRepo.UpdateUser(ctx, user.ID.Hex(), repository.UpdateUserParams{
		PasswordReset: &repository.PasswordResetParams{
			Token:    resetToken,
			IssuedAt: u.now(),
		},
	}); err != nil {
		return err
	}

	resetLink := fmt.Sprintf("%s?token=%s", u.cfg.AppPasswordResetURL, resetToken)
	htmlBody := fmt.Sprintf(`
		<p>Hi %s,</p>
		<p>We received a request to reset the password for your account.</p>
		<p>If you made this request, please click the link below to create a
		new password:</p>

		<p><a href="%s">%s</a></p>

		<p>This link will expire in %s for your security.</p>
		<p>If you did not request a password reset, you can safely ignore
		this email.</p>
	`, user.Username, resetLink, resetLink, u.cfg.Auth.PasswordResetWindow)

	return u.mailer.SendHTML([]string{user.Email}, "Password Reset Request", htmlBody)
}

func (u *accountUsecase) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error {
	user, err := u.userRepo.GetUserByPasswordResetToken(ctx, resetToken)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrTokenNotFound
		}

		return err
	}

	if user.PasswordResetTokenIssuedAt == nil {
		return ErrTokenNotFound
	}

	// Unlike an expired confirmation, an expired reset leaves the account
	// untouched.
	if u.now().Sub(*user.PasswordResetTokenIssuedAt) > u.cfg.Auth.PasswordResetWindow {
		return ErrTokenExpired
	}

	passwordHash, err := u.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	_, err = u.userRepo.UpdateUser(ctx, user.ID.Hex(), repository.UpdateUserParams{
		PasswordHash:       &passwordHash,
		ClearPasswordReset: true,
	})
	return err
}

func (u *accountUsecase) UpdateUser(ctx context.Context, id string, params UpdateUserParams) (*model.User, error) {
	repoParams := repository.UpdateUserParams{
		Email:    params.Email,
		Username: params.Username,
	}

	if params.Password != nil {
		passwordHash, err := u.hasher.Hash(*params.Password)
		if err != nil {
			return nil, err
		}
		repoParams.PasswordHash = &passwordHash
	}

	user, err := u.userRepo.UpdateUser(ctx, id, repoParams)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserAlreadyExists
		}

		return nil, err
	}

	return user, nil
}

func (u *accountUsecase) DeleteUser(ctx context.Context, id string) error {
	if _, err := u.userRepo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}

		return err
	}

	// Challenges cascade with their user.
	return u.challengeRepo.DeleteChallengesForUser(ctx, id)
}
