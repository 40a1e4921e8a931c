package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashKey returns the hex HMAC-SHA256 of key under pepper. Only hashes are
// stored; the plaintext key never reaches the database.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashMatches compares two hex hashes in constant time.
func HashMatches(computed, stored string) bool {
	a, err := hex.DecodeString(computed)
	if err != nil {
		return false
	}
	b, err := hex.DecodeString(stored)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
