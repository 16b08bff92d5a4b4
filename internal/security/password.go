package security

import (
	"github.com/matthewhartstonge/argon2"
)

// Hasher performs one-way adaptive hashing and verification. It is used for
// account passwords and for opaque challenge token identifiers, so hashed
// values never need to be reversed.
type Hasher struct {
	cfg argon2.Config
}

// NewHasher creates a Hasher with the argon2id defaults. A timeCost of zero
// keeps the default cost factor.
func NewHasher(timeCost uint32) *Hasher {
	cfg := argon2.DefaultConfig()
	if timeCost > 0 {
		cfg.TimeCost = timeCost
	}

	return &Hasher{cfg: cfg}
}

// Hash returns the encoded argon2 hash of value, including salt and
// parameters.
func (h *Hasher) Hash(value string) (string, error) {
	encoded, err := h.cfg.HashEncoded([]byte(value))
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}

// Verify reports whether value matches the encoded hash. The comparison is
// constant time over the derived keys.
func (h *Hasher) Verify(value, encoded string) (bool, error) {
	return argon2.VerifyEncoded([]byte(value), []byte(encoded))
}
