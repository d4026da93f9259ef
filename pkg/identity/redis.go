package identity

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "gearshift:identity:"

// RedisStore keeps identities in Redis:
//
//	{prefix}user:{id}               JSON user document without groups
//	{prefix}user:{id}:groups        set of group names
//	{prefix}user_name:{name}        user id
//	{prefix}group:{name}            group id
//	{prefix}group:{name}:perms      set of permission names
//	{prefix}foreign:{site}:{id}     user id
//	{prefix}visit:{key}             user id
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	linkTTL time.Duration
	now     func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix. Default: "gearshift:identity:".
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRedisLinkTTL expires a visit link after d without use, matching the
// visit timeout. Reads slide the expiry. Zero keeps links until logout.
func WithRedisLinkTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.linkTTL = d
		}
	}
}

// NewRedisStore creates an identity store on top of client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultRedisPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) userKey(id uuid.UUID) string { return s.prefix + "user:" + id.String() }
func (s *RedisStore) groupsKey(id uuid.UUID) string { return s.userKey(id) + ":groups" }
func (s *RedisStore) nameKey(name string) string { return s.prefix + "user_name:" + name }
func (s *RedisStore) groupKey(name string) string { return s.prefix + "group:" + name }
func (s *RedisStore) permsKey(name string) string { return s.groupKey(name) + ":perms" }
func (s *RedisStore) visitKey(key string) string { return s.prefix + "visit:" + key }
func (s *RedisStore) foreignKey(site, id string) string {
	return s.prefix + "foreign:" + site + ":" + id
}

// CreateModel verifies the connection. Redis needs no schema.
func (s *RedisStore) CreateModel(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) CreateUser(ctx context.Context, u *User) error {
	if err := prepareUser(u, s.now); err != nil {
		return err
	}

	doc := *u
	doc.Groups = nil
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, s.nameKey(u.UserName), u.ID.String(), 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserExists
	}

	if err := s.client.Set(ctx, s.userKey(u.ID), data, 0).Err(); err != nil {
		s.client.Del(ctx, s.nameKey(u.UserName))
		return err
	}
	return nil
}

func (s *RedisStore) UserByName(ctx context.Context, userName string) (*User, error) {
	id, err := s.lookupID(ctx, s.nameKey(userName), ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	return s.UserByID(ctx, id)
}

func (s *RedisStore) UserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	data, err := s.client.Get(ctx, s.userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}

	names, err := s.client.SMembers(ctx, s.groupsKey(id)).Result()
	if err != nil {
		return nil, err
	}
	slices.Sort(names)

	if len(names) == 0 {
		return &u, nil
	}

	pipe := s.client.Pipeline()
	ids := make([]*redis.StringCmd, len(names))
	perms := make([]*redis.StringSliceCmd, len(names))
	for i, name := range names {
		ids[i] = pipe.Get(ctx, s.groupKey(name))
		perms[i] = pipe.SMembers(ctx, s.permsKey(name))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	u.Groups = make([]Group, 0, len(names))
	for i, name := range names {
		g := Group{Name: name}
		if raw, err := ids[i].Result(); err == nil {
			g.ID, _ = uuid.Parse(raw)
		}
		g.Permissions = perms[i].Val()
		slices.Sort(g.Permissions)
		u.Groups = append(u.Groups, g)
	}
	return &u, nil
}

func (s *RedisStore) UserByForeignID(ctx context.Context, siteID, foreignID string) (*User, error) {
	id, err := s.lookupID(ctx, s.foreignKey(siteID, foreignID), ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	return s.UserByID(ctx, id)
}

func (s *RedisStore) lookupID(ctx context.Context, key string, missing error) (uuid.UUID, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, missing
	}
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(raw)
}

func (s *RedisStore) userExists(ctx context.Context, id uuid.UUID) error {
	n, err := s.client.Exists(ctx, s.userKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ensureGroup assigns a group id on first use.
func (s *RedisStore) ensureGroup(ctx context.Context, name string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	return s.client.SetNX(ctx, s.groupKey(name), id.String(), 0).Err()
}

func (s *RedisStore) AddUserToGroup(ctx context.Context, userID uuid.UUID, groupName string) error {
	if groupName == "" {
		return ErrEmptyGroupName
	}
	if err := s.userExists(ctx, userID); err != nil {
		return err
	}
	if err := s.ensureGroup(ctx, groupName); err != nil {
		return err
	}
	return s.client.SAdd(ctx, s.groupsKey(userID), groupName).Err()
}

func (s *RedisStore) GrantPermission(ctx context.Context, groupName, permission string) error {
	if groupName == "" {
		return ErrEmptyGroupName
	}
	if err := s.ensureGroup(ctx, groupName); err != nil {
		return err
	}
	return s.client.SAdd(ctx, s.permsKey(groupName), permission).Err()
}

func (s *RedisStore) LinkForeignUser(ctx context.Context, siteID, foreignID string, userID uuid.UUID) error {
	if err := s.userExists(ctx, userID); err != nil {
		return err
	}
	key := s.foreignKey(siteID, foreignID)
	ok, err := s.client.SetNX(ctx, key, userID.String(), 0).Result()
	if err != nil || ok {
		return err
	}
	existing, err := s.lookupID(ctx, key, ErrUserNotFound)
	if err != nil {
		return err
	}
	if existing != userID {
		return ErrForeignUserExists
	}
	return nil
}

func (s *RedisStore) LinkVisit(ctx context.Context, visitKey string, userID uuid.UUID) error {
	if err := s.userExists(ctx, userID); err != nil {
		return err
	}
	return s.client.Set(ctx, s.visitKey(visitKey), userID.String(), s.linkTTL).Err()
}

func (s *RedisStore) UnlinkVisit(ctx context.Context, visitKey string) error {
	return s.client.Del(ctx, s.visitKey(visitKey)).Err()
}

func (s *RedisStore) UserIDForVisit(ctx context.Context, visitKey string) (uuid.UUID, error) {
	if s.linkTTL == 0 {
		return s.lookupID(ctx, s.visitKey(visitKey), ErrNotLinked)
	}
	raw, err := s.client.GetEx(ctx, s.visitKey(visitKey), s.linkTTL).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrNotLinked
	}
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(raw)
}

var _ Store = (*RedisStore)(nil)
