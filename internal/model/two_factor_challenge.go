package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// TwoFactorChallenge represents a pending second authentication factor.
//
// A challenge is created after a successful email and password check and is
// deleted either by a successful code verification or by the expiry reaper.
// Several challenges may exist for the same user at once, one per login
// attempt.
type TwoFactorChallenge struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	UserID    bson.ObjectID `bson:"user_id"`
	Code      string        `bson:"code"`
	CreatedAt time.Time     `bson:"created_at"`
}
