package oauthflow

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

const nonceBytes = 32

func newNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func nonceMatches(expected, returned string) bool {
	if expected == "" || returned == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(returned)) == 1
}
