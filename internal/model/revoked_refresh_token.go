package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// RevokedRefreshToken records a refresh token that has already been rotated.
//
// The presence of a matching entry makes any later presentation of the same
// token fail. Entries outlive the refresh token TTL and are purged by the
// expiry reaper.
type RevokedRefreshToken struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Token     string        `bson:"token"`
	CreatedAt time.Time     `bson:"created_at"`
}
