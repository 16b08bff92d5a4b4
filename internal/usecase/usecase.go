package usecase

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// Mailer is the narrow email surface the usecases depend on. It is satisfied
// by mailer.Mailer and by test fakes.
type Mailer interface {
	SendHTML(to []string, subject, htmlBody string) error
}

// nowFunc supplies the current time, injectable for deterministic expiry
// tests. A nil nowFunc in a constructor defaults to time.Now.
type nowFunc func() time.Time

// generateSecureToken generates an unguessable, URL-safe token for
// confirmation codes and password reset tokens.
func generateSecureToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// generateTwoFactorCode generates a random 6-digit numeric code.
func generateTwoFactorCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
