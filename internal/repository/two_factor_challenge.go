package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/naruebet/identity-api/internal/model"
)

// TwoFactorChallengeRepository defines the interface for two-factor
// challenge database operations.
type TwoFactorChallengeRepository interface {
	CreateChallenge(ctx context.Context, challenge *model.TwoFactorChallenge) (*model.TwoFactorChallenge, error)

	// ListChallengesByCode returns every challenge with the given code
	// created after the cutoff, regardless of user.
	ListChallengesByCode(ctx context.Context, code string, createdAfter time.Time) ([]model.TwoFactorChallenge, error)

	DeleteChallenge(ctx context.Context, id string) error

	// DeleteChallengesForUser removes every challenge belonging to the user.
	// Called when the user itself is deleted.
	DeleteChallengesForUser(ctx context.Context, userID string) error

	// DeleteChallengesCreatedBefore removes expired challenges and returns
	// the number of deleted documents.
	DeleteChallengesCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

const twoFactorChallengeCollection = "two_factor_challenges"

type twoFactorChallengeMongoRepository struct {
	db *mongo.Database
}

// NewTwoFactorChallengeMongoRepository creates a new MongoDB repository for
// two-factor challenges.
func NewTwoFactorChallengeMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) TwoFactorChallengeRepository {
	collection := db.Collection(twoFactorChallengeCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "code", Value: 1}, {Key: "created_at", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create two-factor challenge indexes")
	}

	return &twoFactorChallengeMongoRepository{db: db}
}

func (r *twoFactorChallengeMongoRepository) CreateChallenge(
	ctx context.Context,
	challenge *model.TwoFactorChallenge,
) (*model.TwoFactorChallenge, error) {
	if challenge.CreatedAt.IsZero() {
		challenge.CreatedAt = time.Now()
	}

	result, err := r.db.Collection(twoFactorChallengeCollection).InsertOne(ctx, challenge)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		challenge.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return challenge, nil
}

func (r *twoFactorChallengeMongoRepository) ListChallengesByCode(
	ctx context.Context,
	code string,
	createdAfter time.Time,
) ([]model.TwoFactorChallenge, error) {
	filter := bson.M{
		"code":       code,
		"created_at": bson.M{"$gt": createdAfter},
	}

	cursor, err := r.db.Collection(twoFactorChallengeCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	var challenges []model.TwoFactorChallenge
	if err := cursor.All(ctx, &challenges); err != nil {
		return nil, err
	}

	return challenges, nil
}

func (r *twoFactorChallengeMongoRepository) DeleteChallenge(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return mongo.ErrNoDocuments
	}

	_, err = r.db.Collection(twoFactorChallengeCollection).DeleteOne(ctx, bson.M{"_id": objectID})
	return err
}

func (r *twoFactorChallengeMongoRepository) DeleteChallengesForUser(ctx context.Context, userID string) error {
	objectID, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return mongo.ErrNoDocuments
	}

	_, err = r.db.Collection(twoFactorChallengeCollection).DeleteMany(ctx, bson.M{"user_id": objectID})
	return err
}

func (r *twoFactorChallengeMongoRepository) DeleteChallengesCreatedBefore(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	filter := bson.M{
		"created_at": bson.M{"$lt": cutoff},
	}

	result, err := r.db.Collection(twoFactorChallengeCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}
