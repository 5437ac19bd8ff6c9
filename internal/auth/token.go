package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	resetTokenBytes = 20
	// ResetWindow is how long a password reset token stays valid.
	ResetWindow = time.Hour
)

// NewResetToken returns 20 random bytes, hex encoded.
func NewResetToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}
