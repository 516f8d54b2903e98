package password

import "golang.org/x/crypto/bcrypt"

// Hasher wraps bcrypt with a fixed work factor.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher. The default production cost is 12.
func NewHasher(cost int) *Hasher {
	return &Hasher{cost: cost}
}

// Hash produces a one-way hash of the given secret.
func (h *Hasher) Hash(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Matches reports whether secret verifies against the stored hash.
// An empty stored hash never matches; accounts without a password
// (OAuth-only) must fail password verification rather than error.
func (h *Hasher) Matches(secret, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
