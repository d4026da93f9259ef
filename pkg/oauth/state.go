package oauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
)

// NewState returns a random state value for the authorization request.
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// VerifyState compares the state returned by the provider with the one that
// was issued, in constant time.
func VerifyState(issued, returned string) error {
	if issued == "" || subtle.ConstantTimeCompare([]byte(issued), []byte(returned)) != 1 {
		return ErrStateMismatch
	}
	return nil
}
