package identity

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. It suits tests and
// single-instance deployments seeded from YAML.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[uuid.UUID]*User
	byName      map[string]uuid.UUID
	groups      map[string]*Group
	memberships map[uuid.UUID]map[string]struct{}
	foreign     map[foreignKey]uuid.UUID
	visits      map[string]memoryLink
	linkTTL     time.Duration
	now         func() time.Time
}

type memoryLink struct {
	userID  uuid.UUID
	expires time.Time
}

func (l memoryLink) expired(now time.Time) bool {
	return !l.expires.IsZero() && !now.Before(l.expires)
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryLinkTTL makes a visit link expire after d without use, matching
// the visit timeout. Zero keeps links until logout.
func WithMemoryLinkTTL(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.linkTTL = d
		}
	}
}

type foreignKey struct {
	site string
	id   string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		users:       make(map[uuid.UUID]*User),
		byName:      make(map[string]uuid.UUID),
		groups:      make(map[string]*Group),
		memberships: make(map[uuid.UUID]map[string]struct{}),
		foreign:     make(map[foreignKey]uuid.UUID),
		visits:      make(map[string]memoryLink),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) CreateModel(context.Context) error { return nil }

func (s *MemoryStore) CreateUser(_ context.Context, u *User) error {
	if err := prepareUser(u, s.now); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[u.UserName]; ok {
		return ErrUserExists
	}
	if _, ok := s.users[u.ID]; ok {
		return ErrUserExists
	}

	stored := *u
	stored.Groups = nil
	s.users[u.ID] = &stored
	s.byName[u.UserName] = u.ID
	s.memberships[u.ID] = make(map[string]struct{})
	return nil
}

func (s *MemoryStore) UserByName(_ context.Context, userName string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[userName]
	if !ok {
		return nil, ErrUserNotFound
	}
	return s.userLocked(id)
}

func (s *MemoryStore) UserByID(_ context.Context, id uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.userLocked(id)
}

// userLocked returns a detached copy with groups resolved.
func (s *MemoryStore) userLocked(id uuid.UUID) (*User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	out := *u
	names := make([]string, 0, len(s.memberships[id]))
	for name := range s.memberships[id] {
		names = append(names, name)
	}
	slices.Sort(names)

	out.Groups = make([]Group, 0, len(names))
	for _, name := range names {
		g := s.groups[name]
		out.Groups = append(out.Groups, Group{
			ID:          g.ID,
			Name:        g.Name,
			Permissions: slices.Clone(g.Permissions),
		})
	}
	return &out, nil
}

func (s *MemoryStore) groupLocked(name string) (*Group, error) {
	if g, ok := s.groups[name]; ok {
		return g, nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	g := &Group{ID: id, Name: name}
	s.groups[name] = g
	return g, nil
}

func (s *MemoryStore) AddUserToGroup(_ context.Context, userID uuid.UUID, groupName string) error {
	if groupName == "" {
		return ErrEmptyGroupName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return ErrUserNotFound
	}
	if _, err := s.groupLocked(groupName); err != nil {
		return err
	}
	s.memberships[userID][groupName] = struct{}{}
	return nil
}

func (s *MemoryStore) GrantPermission(_ context.Context, groupName, permission string) error {
	if groupName == "" {
		return ErrEmptyGroupName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.groupLocked(groupName)
	if err != nil {
		return err
	}
	if !slices.Contains(g.Permissions, permission) {
		g.Permissions = append(g.Permissions, permission)
		slices.Sort(g.Permissions)
	}
	return nil
}

func (s *MemoryStore) LinkForeignUser(_ context.Context, siteID, foreignID string, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return ErrUserNotFound
	}
	key := foreignKey{site: siteID, id: foreignID}
	if existing, ok := s.foreign[key]; ok && existing != userID {
		return ErrForeignUserExists
	}
	s.foreign[key] = userID
	return nil
}

func (s *MemoryStore) UserByForeignID(_ context.Context, siteID, foreignID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.foreign[foreignKey{site: siteID, id: foreignID}]
	if !ok {
		return nil, ErrUserNotFound
	}
	return s.userLocked(id)
}

func (s *MemoryStore) LinkVisit(_ context.Context, visitKey string, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return ErrUserNotFound
	}

	now := s.now()
	for key, l := range s.visits {
		if l.expired(now) {
			delete(s.visits, key)
		}
	}
	s.visits[visitKey] = memoryLink{userID: userID, expires: s.linkExpiry(now)}
	return nil
}

func (s *MemoryStore) linkExpiry(now time.Time) time.Time {
	if s.linkTTL == 0 {
		return time.Time{}
	}
	return now.Add(s.linkTTL)
}

func (s *MemoryStore) UnlinkVisit(_ context.Context, visitKey string) error {
	s.mu.Lock()
	delete(s.visits, visitKey)
	s.mu.Unlock()
	return nil
}

// UserIDForVisit extends the link's lifetime the way a request extends
// the visit.
func (s *MemoryStore) UserIDForVisit(_ context.Context, visitKey string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.visits[visitKey]
	if !ok {
		return uuid.Nil, ErrNotLinked
	}
	now := s.now()
	if l.expired(now) {
		delete(s.visits, visitKey)
		return uuid.Nil, ErrNotLinked
	}
	if s.linkTTL > 0 {
		l.expires = now.Add(s.linkTTL)
		s.visits[visitKey] = l
	}
	return l.userID, nil
}
