package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/naruebet/identity-api/internal/model"
)

// RevokedRefreshTokenRepository defines the interface for the ledger of
// consumed refresh tokens.
type RevokedRefreshTokenRepository interface {
	// RevokeToken inserts the token into the ledger. The unique index on the
	// token makes the insert an atomic insert-if-absent: revoking a token
	// that is already in the ledger fails with a duplicate key error, which
	// is how rotation replay is detected.
	RevokeToken(ctx context.Context, token string, createdAt time.Time) error

	// DeleteTokensCreatedBefore removes ledger entries older than the cutoff
	// and returns the number of deleted documents.
	DeleteTokensCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

const revokedRefreshTokenCollection = "revoked_refresh_tokens"

type revokedRefreshTokenMongoRepository struct {
	db *mongo.Database
}

// NewRevokedRefreshTokenMongoRepository creates a new MongoDB repository for
// revoked refresh tokens.
func NewRevokedRefreshTokenMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) RevokedRefreshTokenRepository {
	collection := db.Collection(revokedRefreshTokenCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "created_at", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create revoked refresh token indexes")
	}

	return &revokedRefreshTokenMongoRepository{db: db}
}

func (r *revokedRefreshTokenMongoRepository) RevokeToken(
	ctx context.Context,
	token string,
	createdAt time.Time,
) error {
	entry := &model.RevokedRefreshToken{
		Token:     token,
		CreatedAt: createdAt,
	}

	_, err := r.db.Collection(revokedRefreshTokenCollection).InsertOne(ctx, entry)
	return err
}

func (r *revokedRefreshTokenMongoRepository) DeleteTokensCreatedBefore(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	filter := bson.M{
		"created_at": bson.M{"$lt": cutoff},
	}

	result, err := r.db.Collection(revokedRefreshTokenCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}
