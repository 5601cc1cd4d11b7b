// Package security contains token generation and hashing used by the
// waitlist service
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const (
	refCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	refCodeLength  = 8
	tokenSize      = 32
)

// GenerateRefCode returns an 8 character code drawn uniformly from [A-Z0-9].
// Uniqueness is not guaranteed here, the caller retries on collision
func GenerateRefCode() (string, error) {
	out := make([]byte, 0, refCodeLength)
	buf := make([]byte, 16)

	for len(out) < refCodeLength {
		_, err := rand.Read(buf)
		if err != nil {
			return "", err
		}

		for _, v := range buf {
			// 252 is the largest multiple of 36 below 256, anything above
			// it would skew the draw towards the start of the charset
			if v >= 252 {
				continue
			}

			out = append(out, refCodeCharset[int(v)%len(refCodeCharset)])
			if len(out) == refCodeLength {
				break
			}
		}
	}

	return string(out), nil
}

// GenerateToken returns 32 cryptographically random bytes hex-encoded.
// The raw value is the credential and is never persisted, only its hash
func GenerateToken() (string, error) {
	b := make([]byte, tokenSize)

	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

// HashToken returns the hex SHA-256 digest of a raw token. Every code path
// that stores or looks up a token goes through this function
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
