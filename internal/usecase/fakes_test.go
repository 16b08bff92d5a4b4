package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/naruebet/identity-api/internal/config"
	"github.com/naruebet/identity-api/internal/model"
	"github.com/naruebet/identity-api/internal/repository"
)

func testConfig() *config.Config {
	return &config.Config{
		AppConfirmationURL:  "https://app.example.com/confirm",
		AppPasswordResetURL: "https://app.example.com/reset",
		Token: config.TokenConfig{
			Issuer:                "identity-api-test",
			AccessTokenSecret:     "access-secret",
			RefreshTokenSecret:    "refresh-secret",
			AccessTokenExpiresIn:  15 * time.Minute,
			RefreshTokenExpiresIn: 168 * time.Hour,
		},
		Auth: config.AuthConfig{
			ChallengeExpiresIn:  15 * time.Minute,
			ConfirmationWindow:  24 * time.Hour,
			PasswordResetWindow: 2 * time.Hour,
			Argon2TimeCost:      1,
		},
		Reaper: config.ReaperConfig{Interval: time.Hour},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// duplicateKeyError mimics the error mongo returns on a unique index
// violation.
func duplicateKeyError() error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
}

// ---- user repository fake ----

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[bson.ObjectID]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[bson.ObjectID]*model.User{}}
}

// add seeds a user directly, assigning an id when missing.
func (f *fakeUserRepo) add(user *model.User) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()

	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	f.users[user.ID] = user
	return user
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return nil, duplicateKeyError()
		}
	}

	user.ID = bson.NewObjectID()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) GetUser(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, mongo.ErrNoDocuments
	}

	user, ok := f.users[objectID]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return f.findBy(func(u *model.User) bool { return u.Email == email })
}

func (f *fakeUserRepo) GetUserByConfirmationCode(_ context.Context, code string) (*model.User, error) {
	return f.findBy(func(u *model.User) bool { return u.ConfirmationCode == code })
}

func (f *fakeUserRepo) GetUserByPasswordResetToken(_ context.Context, token string) (*model.User, error) {
	return f.findBy(func(u *model.User) bool {
		return u.PasswordResetToken != nil && *u.PasswordResetToken == token
	})
}

func (f *fakeUserRepo) findBy(match func(*model.User) bool) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, user := range f.users {
		if match(user) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeUserRepo) UpdateUser(
	_ context.Context,
	id string,
	params repository.UpdateUserParams,
) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, mongo.ErrNoDocuments
	}

	user, ok := f.users[objectID]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	if params.Email != nil {
		user.Email = *params.Email
	}
	if params.Username != nil {
		user.Username = *params.Username
	}
	if params.PasswordHash != nil {
		user.PasswordHash = *params.PasswordHash
	}
	if params.Status != nil {
		user.Status = *params.Status
	}
	if params.PasswordReset != nil {
		token := params.PasswordReset.Token
		issuedAt := params.PasswordReset.IssuedAt
		user.PasswordResetToken = &token
		user.PasswordResetTokenIssuedAt = &issuedAt
	}
	if params.ClearPasswordReset {
		user.PasswordResetToken = nil
		user.PasswordResetTokenIssuedAt = nil
	}
	user.UpdatedAt = time.Now()

	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) DeleteUser(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, mongo.ErrNoDocuments
	}

	user, ok := f.users[objectID]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	delete(f.users, objectID)
	return user, nil
}

func (f *fakeUserRepo) DeletePendingCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var count int64
	for id, user := range f.users {
		if user.Status == model.UserStatusPending && user.CreatedAt.Before(cutoff) {
			delete(f.users, id)
			count++
		}
	}
	return count, nil
}

// ---- two-factor challenge repository fake ----

type fakeChallengeRepo struct {
	mu         sync.Mutex
	challenges map[bson.ObjectID]*model.TwoFactorChallenge
}

func newFakeChallengeRepo() *fakeChallengeRepo {
	return &fakeChallengeRepo{challenges: map[bson.ObjectID]*model.TwoFactorChallenge{}}
}

func (f *fakeChallengeRepo) add(challenge *model.TwoFactorChallenge) *model.TwoFactorChallenge {
	f.mu.Lock()
	defer f.mu.Unlock()

	if challenge.ID.IsZero() {
		challenge.ID = bson.NewObjectID()
	}
	f.challenges[challenge.ID] = challenge
	return challenge
}

func (f *fakeChallengeRepo) CreateChallenge(
	_ context.Context,
	challenge *model.TwoFactorChallenge,
) (*model.TwoFactorChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	challenge.ID = bson.NewObjectID()
	if challenge.CreatedAt.IsZero() {
		challenge.CreatedAt = time.Now()
	}
	f.challenges[challenge.ID] = challenge
	return challenge, nil
}

func (f *fakeChallengeRepo) ListChallengesByCode(
	_ context.Context,
	code string,
	createdAfter time.Time,
) ([]model.TwoFactorChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result []model.TwoFactorChallenge
	for _, challenge := range f.challenges {
		if challenge.Code == code && challenge.CreatedAt.After(createdAfter) {
			result = append(result, *challenge)
		}
	}
	return result, nil
}

func (f *fakeChallengeRepo) DeleteChallenge(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return mongo.ErrNoDocuments
	}
	delete(f.challenges, objectID)
	return nil
}

func (f *fakeChallengeRepo) DeleteChallengesForUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	objectID, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return mongo.ErrNoDocuments
	}
	for id, challenge := range f.challenges {
		if challenge.UserID == objectID {
			delete(f.challenges, id)
		}
	}
	return nil
}

func (f *fakeChallengeRepo) DeleteChallengesCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var count int64
	for id, challenge := range f.challenges {
		if challenge.CreatedAt.Before(cutoff) {
			delete(f.challenges, id)
			count++
		}
	}
	return count, nil
}

func (f *fakeChallengeRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.challenges)
}

// ---- revoked refresh token repository fake ----

type fakeRevokedRepo struct {
	mu     sync.Mutex
	tokens map[string]time.Time
}

func newFakeRevokedRepo() *fakeRevokedRepo {
	return &fakeRevokedRepo{tokens: map[string]time.Time{}}
}

func (f *fakeRevokedRepo) RevokeToken(_ context.Context, token string, createdAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.tokens[token]; ok {
		return duplicateKeyError()
	}
	f.tokens[token] = createdAt
	return nil
}

func (f *fakeRevokedRepo) DeleteTokensCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var count int64
	for token, createdAt := range f.tokens {
		if createdAt.Before(cutoff) {
			delete(f.tokens, token)
			count++
		}
	}
	return count, nil
}

func (f *fakeRevokedRepo) contains(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tokens[token]
	return ok
}

// ---- mailer fake ----

type sentEmail struct {
	to      []string
	subject string
	html    string
}

type fakeMailer struct {
	mu    sync.Mutex
	sent  []sentEmail
	fail  error
	calls int
}

func (f *fakeMailer) SendHTML(to []string, subject, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, html: htmlBody})
	return nil
}

func (f *fakeMailer) lastSent() (sentEmail, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.sent) == 0 {
		return sentEmail{}, false
	}
	return f.sent[len(f.sent)-1], true
}

var errMailerDown = errors.New("smtp unavailable")
