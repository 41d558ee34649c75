package utils

import "golang.org/x/crypto/bcrypt"

// DefaultCost is the bcrypt cost used when none is configured.
const DefaultCost = 12

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// DummyHash hashes a throwaway password at cost.  Comparing against it
// takes as long as checking a real hash made at the same cost.
func DummyHash(cost int) []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("timing-equalizer"), cost)
	if err != nil {
		h, _ = bcrypt.GenerateFromPassword([]byte("timing-equalizer"), DefaultCost)
	}
	return h
}

// BurnPassword compares plain against hash and discards the result.  Used
// when no user matches a login attempt.
func BurnPassword(hash []byte, plain string) {
	_ = bcrypt.CompareHashAndPassword(hash, []byte(plain))
}
