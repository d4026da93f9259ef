package visit

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// Visit is a tracked browser session identified by an opaque key.
// A visit exists independently of authentication.
type Visit struct {
	Expiry time.Time
	Key    string
	IsNew  bool
}

// Record is the persisted form of a visit.
type Record struct {
	Created time.Time
	Expiry  time.Time
	Key     string
}

// Expired reports whether the record's expiry is before now.
func (r Record) Expired(now time.Time) bool {
	return r.Expiry.Before(now)
}

// Store persists visits. Implementations must be safe for concurrent use.
type Store interface {
	// CreateModel prepares tables, buckets or indexes. It must be idempotent.
	CreateModel(ctx context.Context) error

	// NewVisit persists a new visit. Returns ErrKeyExists if the key is taken.
	NewVisit(ctx context.Context, rec Record) error

	// Lookup returns the visit stored under key or ErrNotFound.
	Lookup(ctx context.Context, key string) (*Record, error)

	// UpdateQueuedVisits extends the expiry of every listed visit.
	// Keys that no longer exist are skipped.
	UpdateQueuedVisits(ctx context.Context, updates map[string]time.Time) error

	// PurgeExpired deletes visits that expired before the given time and
	// returns how many were removed.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// NewKey generates a fresh visit key: the hex SHA-1 digest of random bytes,
// the current time and the client address.
func NewKey(remoteAddr string) (string, error) {
	buf := make([]byte, 32, 32+8+len(remoteAddr))
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	buf = binary.BigEndian.AppendUint64(buf, uint64(time.Now().UnixNano()))
	buf = append(buf, remoteAddr...)

	sum := sha1.Sum(buf)
	return hex.EncodeToString(sum[:]), nil
}
