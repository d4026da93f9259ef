package visit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "gearshift:visit:"

// Each visit is a hash with "created" and "expiry" fields in Unix
// milliseconds. The key itself expires at the visit expiry.
var (
	createVisitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'created', ARGV[1], 'expiry', ARGV[2])
redis.call('PEXPIREAT', KEYS[1], ARGV[2])
return 1
`)

	extendVisitScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'expiry')
if not cur then
	return 0
end
if tonumber(cur) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'expiry', ARGV[1])
redis.call('PEXPIREAT', KEYS[1], ARGV[1])
return 1
`)
)

// RedisStore keeps visits in Redis hashes that expire on their own, so
// PurgeExpired has nothing to do.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix. Default: "gearshift:visit:".
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore creates a visit store on top of client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultRedisPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateModel verifies the connection. Redis needs no schema.
func (s *RedisStore) CreateModel(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) NewVisit(ctx context.Context, rec Record) error {
	if rec.Key == "" {
		return ErrEmptyKey
	}
	created, err := createVisitScript.Run(ctx, s.client,
		[]string{s.prefix + rec.Key},
		rec.Created.UnixMilli(), rec.Expiry.UnixMilli(),
	).Int()
	if err != nil {
		return err
	}
	if created == 0 {
		return ErrKeyExists
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, key string) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, s.prefix+key).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	created, err := parseMillis(fields["created"])
	if err != nil {
		return nil, fmt.Errorf("visit: corrupt created field for %s: %w", key, err)
	}
	expiry, err := parseMillis(fields["expiry"])
	if err != nil {
		return nil, fmt.Errorf("visit: corrupt expiry field for %s: %w", key, err)
	}

	return &Record{Key: key, Created: created, Expiry: expiry}, nil
}

// UpdateQueuedVisits extends all visits in a single pipeline.
func (s *RedisStore) UpdateQueuedVisits(ctx context.Context, updates map[string]time.Time) error {
	if len(updates) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for key, expiry := range updates {
		extendVisitScript.Eval(ctx, pipe, []string{s.prefix + key}, expiry.UnixMilli())
	}
	_, err := pipe.Exec(ctx)
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (s *RedisStore) PurgeExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

var _ Store = (*RedisStore)(nil)
