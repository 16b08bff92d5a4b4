package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator signs and verifies compact HS256 session tokens. Access and
// refresh tokens use the same claim shape but independent secrets and TTLs,
// both supplied by the caller.
type Authenticator struct {
	issuer string
	now    func() time.Time
}

// NewAuthenticator creates a new Authenticator instance. A nil now function
// defaults to time.Now.
func NewAuthenticator(issuer string, now func() time.Time) Authenticator {
	if now == nil {
		now = time.Now
	}

	return Authenticator{
		issuer: issuer,
		now:    now,
	}
}

// Generate signs a token whose subject is the given value, valid for ttl.
func (a *Authenticator) Generate(subject, secret string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    a.issuer,
		Audience:  jwt.ClaimStrings{a.issuer},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenStr, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return tokenStr, nil
}

// Verify validates a token's signature, expiry, issuer and audience against
// the given secret and returns its registered claims.
func (a *Authenticator) Verify(tokenStr, secret string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return []byte(secret), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithAudience(a.issuer),
		jwt.WithIssuer(a.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}

	return claims, nil
}
