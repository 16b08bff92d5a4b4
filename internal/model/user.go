package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// UserStatus describes where a user account is in its lifecycle.
type UserStatus string

const (
	// UserStatusPending is the status of a freshly registered account that
	// has not confirmed its email address yet.
	UserStatusPending UserStatus = "pending"

	// UserStatusActive is the status of a confirmed account.
	UserStatusActive UserStatus = "active"

	// UserStatusBlocked is the status of an administratively disabled account.
	UserStatusBlocked UserStatus = "blocked"
)

// User represents a user in the authentication system.
//
// ConfirmationCode is set while the user is pending and consumed by account
// confirmation. PasswordResetToken and PasswordResetTokenIssuedAt are either
// both set or both nil.
type User struct {
	ID                         bson.ObjectID `bson:"_id,omitempty"`
	Email                      string        `bson:"email"`
	Username                   string        `bson:"username"`
	PasswordHash               string        `bson:"password_hash"`
	Status                     UserStatus    `bson:"status"`
	ConfirmationCode           string        `bson:"confirmation_code"`
	PasswordResetToken         *string       `bson:"password_reset_token,omitempty"`
	PasswordResetTokenIssuedAt *time.Time    `bson:"password_reset_token_issued_at,omitempty"`
	CreatedAt                  time.Time     `bson:"created_at"`
	UpdatedAt                  time.Time     `bson:"updated_at"`
}
