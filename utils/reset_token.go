package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ResetTokenTTL is how long a password reset token stays usable.
const ResetTokenTTL = 10 * time.Minute

// ResetToken holds a freshly generated reset token. Plain goes to the user,
// only Hash and Expires are persisted.
type ResetToken struct {
	Plain   string
	Hash    string
	Expires time.Time
}

// GenerateResetToken creates a random 32 byte token valid for ResetTokenTTL from now.
func GenerateResetToken(now time.Time) (ResetToken, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return ResetToken{}, err
	}
	plain := hex.EncodeToString(b)
	return ResetToken{
		Plain:   plain,
		Hash:    HashResetToken(plain),
		Expires: now.Add(ResetTokenTTL),
	}, nil
}

// HashResetToken digests a presented token the same way it was stored.
func HashResetToken(plain string) string {
	h := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(h[:])
}
