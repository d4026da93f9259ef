package identity

import (
	"crypto/md5"  //nolint:gosec // legacy password format
	"crypto/sha1" //nolint:gosec // legacy password format
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Algorithm names a password hashing scheme.
type Algorithm string

const (
	AlgorithmNone   Algorithm = "none"
	AlgorithmMD5    Algorithm = "md5"
	AlgorithmSHA1   Algorithm = "sha1"
	AlgorithmCustom Algorithm = "custom"
	AlgorithmBcrypt Algorithm = "bcrypt"
)

// Hasher hashes and verifies passwords with one algorithm. md5 and sha1
// produce lowercase hex digests of the UTF-8 password. Any algorithm it does
// not know stores the password unchanged.
type Hasher struct {
	algorithm Algorithm
	custom    func(string) string
	cost      int
}

// HasherOption configures a Hasher.
type HasherOption func(*Hasher)

// WithCustomHash sets the function used by AlgorithmCustom.
func WithCustomHash(fn func(string) string) HasherOption {
	return func(h *Hasher) {
		h.custom = fn
	}
}

// WithBcryptCost sets the bcrypt work factor. Default: bcrypt.DefaultCost.
func WithBcryptCost(cost int) HasherOption {
	return func(h *Hasher) {
		h.cost = cost
	}
}

// NewHasher returns a hasher for algorithm. The name is matched case-insensitively.
func NewHasher(algorithm Algorithm, opts ...HasherOption) (*Hasher, error) {
	h := &Hasher{
		algorithm: Algorithm(strings.ToLower(strings.TrimSpace(string(algorithm)))),
		cost:      bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.algorithm == AlgorithmCustom && h.custom == nil {
		return nil, ErrCustomHashRequired
	}
	return h, nil
}

func (h *Hasher) Algorithm() Algorithm { return h.algorithm }

// Encrypt hashes password for storage.
func (h *Hasher) Encrypt(password string) (string, error) {
	switch h.algorithm {
	case AlgorithmMD5:
		sum := md5.Sum([]byte(password)) //nolint:gosec
		return hex.EncodeToString(sum[:]), nil
	case AlgorithmSHA1:
		sum := sha1.Sum([]byte(password)) //nolint:gosec
		return hex.EncodeToString(sum[:]), nil
	case AlgorithmCustom:
		return h.custom(password), nil
	case AlgorithmBcrypt:
		out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
		if err != nil {
			return "", errors.Join(ErrHashPassword, err)
		}
		return string(out), nil
	default:
		return password, nil
	}
}

// Verify reports whether password matches the stored hash.
func (h *Hasher) Verify(stored, password string) bool {
	if h.algorithm == AlgorithmBcrypt {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	computed, err := h.Encrypt(password)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(computed)) == 1
}
