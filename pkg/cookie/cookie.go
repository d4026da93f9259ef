package cookie

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// MinSecretLen is the shortest secret WithSecret accepts.
const MinSecretLen = 32

const flashPrefix = "flash_"

var b64 = base64.RawURLEncoding

// Manager reads and writes cookies with shared attributes. Signing and
// encryption are available only when a secret is configured.
type Manager struct {
	secret []byte
	aead   cipher.AEAD

	domain   string
	path     string
	secure   bool
	httpOnly bool
	sameSite http.SameSite
}

// Option configures the Manager.
type Option func(*Manager)

// New creates a Manager. Cookies default to path "/", HttpOnly and
// SameSite=Lax.
func New(opts ...Option) *Manager {
	m := &Manager{
		path:     "/",
		httpOnly: true,
		sameSite: http.SameSiteLaxMode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithSecret enables signing and encryption. Secrets shorter than
// MinSecretLen are ignored.
func WithSecret(secret string) Option {
	return func(m *Manager) {
		if len(secret) < MinSecretLen {
			return
		}
		key := sha256.Sum256([]byte(secret))
		block, err := aes.NewCipher(key[:])
		if err != nil {
			return
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return
		}
		m.secret = []byte(secret)
		m.aead = aead
	}
}

func WithDomain(domain string) Option {
	return func(m *Manager) { m.domain = domain }
}

func WithPath(path string) Option {
	return func(m *Manager) { m.path = path }
}

func WithSecure(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

func WithHTTPOnly(httpOnly bool) Option {
	return func(m *Manager) { m.httpOnly = httpOnly }
}

func WithSameSite(ss http.SameSite) Option {
	return func(m *Manager) { m.sameSite = ss }
}

// HasSecret reports whether signing and encryption are available.
func (m *Manager) HasSecret() bool {
	return m.secret != nil
}

// Get returns a plain cookie value or ErrNotFound.
func (m *Manager) Get(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if errors.Is(err, http.ErrNoCookie) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

// Set writes a plain cookie. maxAge 0 makes a browser-session cookie.
func (m *Manager) Set(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, m.cookie(name, value, maxAge))
}

// Delete expires a cookie.
func (m *Manager) Delete(w http.ResponseWriter, name string) {
	http.SetCookie(w, m.cookie(name, "", -1))
}

// Sign encodes value as base64(value).base64(hmac-sha256).
func (m *Manager) Sign(value string) (string, error) {
	if m.secret == nil {
		return "", ErrNoSecret
	}
	return b64.EncodeToString([]byte(value)) + "." + b64.EncodeToString(m.mac([]byte(value))), nil
}

// Verify checks a value produced by Sign and returns the original.
func (m *Manager) Verify(raw string) (string, error) {
	if m.secret == nil {
		return "", ErrNoSecret
	}
	encValue, encSig, ok := strings.Cut(raw, ".")
	if !ok {
		return "", ErrBadSig
	}
	value, err := b64.DecodeString(encValue)
	if err != nil {
		return "", ErrBadSig
	}
	sig, err := b64.DecodeString(encSig)
	if err != nil || !hmac.Equal(sig, m.mac(value)) {
		return "", ErrBadSig
	}
	return string(value), nil
}

func (m *Manager) mac(value []byte) []byte {
	h := hmac.New(sha256.New, m.secret)
	h.Write(value)
	return h.Sum(nil)
}

// GetSigned returns the verified value of a signed cookie.
func (m *Manager) GetSigned(r *http.Request, name string) (string, error) {
	if m.secret == nil {
		return "", ErrNoSecret
	}
	raw, err := m.Get(r, name)
	if err != nil {
		return "", err
	}
	return m.Verify(raw)
}

// SetSigned writes a signed cookie.
func (m *Manager) SetSigned(w http.ResponseWriter, name, value string, maxAge int) error {
	signed, err := m.Sign(value)
	if err != nil {
		return err
	}
	http.SetCookie(w, m.cookie(name, signed, maxAge))
	return nil
}

// GetEncrypted returns the plaintext of an AES-GCM encrypted cookie.
func (m *Manager) GetEncrypted(r *http.Request, name string) (string, error) {
	if m.aead == nil {
		return "", ErrNoSecret
	}
	raw, err := m.Get(r, name)
	if err != nil {
		return "", err
	}
	data, err := b64.DecodeString(raw)
	if err != nil {
		return "", ErrDecrypt
	}
	n := m.aead.NonceSize()
	if len(data) < n {
		return "", ErrDecrypt
	}
	plain, err := m.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// SetEncrypted writes an AES-GCM encrypted cookie.
func (m *Manager) SetEncrypted(w http.ResponseWriter, name, value string, maxAge int) error {
	if m.aead == nil {
		return ErrNoSecret
	}
	nonce := make([]byte, m.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	sealed := m.aead.Seal(nonce, nonce, []byte(value), nil)
	http.SetCookie(w, m.cookie(name, b64.EncodeToString(sealed), maxAge))
	return nil
}

// Flash decodes the JSON flash value stored under key into dest and
// deletes the cookie, so a flash is read once.
func (m *Manager) Flash(w http.ResponseWriter, r *http.Request, key string, dest any) error {
	raw, err := m.GetEncrypted(r, flashPrefix+key)
	if err != nil {
		return err
	}
	m.Delete(w, flashPrefix+key)
	return json.Unmarshal([]byte(raw), dest)
}

// SetFlash stores value as encrypted JSON for the next request.
func (m *Manager) SetFlash(w http.ResponseWriter, key string, value any) error {
	if m.aead == nil {
		return ErrNoSecret
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.SetEncrypted(w, flashPrefix+key, string(data), 0)
}

func (m *Manager) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     m.path,
		Domain:   m.domain,
		MaxAge:   maxAge,
		Secure:   m.secure,
		HttpOnly: m.httpOnly,
		SameSite: m.sameSite,
	}
}
