package identity

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Group is a named set of permissions.
type Group struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions,omitempty"`
}

// User is a stored principal. Password holds the hashed form.
type User struct {
	ID          uuid.UUID `json:"id"`
	UserName    string    `json:"user_name"`
	DisplayName string    `json:"display_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Password    string    `json:"password,omitempty"`
	Created     time.Time `json:"created"`
	Groups      []Group   `json:"groups,omitempty"`
}

// Identity is the principal resolved for a single request. It is immutable
// once built and safe to share between goroutines.
type Identity struct {
	User     *User
	VisitKey string

	groups      map[string]struct{}
	groupIDs    map[string]struct{}
	permissions map[string]struct{}
}

// NewAnonymous returns an identity without a user, bound to visitKey.
func NewAnonymous(visitKey string) *Identity {
	return &Identity{VisitKey: visitKey}
}

// NewAuthenticated returns an identity for user. A nil user yields an
// anonymous identity.
func NewAuthenticated(user *User, visitKey string) *Identity {
	id := &Identity{User: user, VisitKey: visitKey}
	if user == nil {
		return id
	}

	id.groups = make(map[string]struct{}, len(user.Groups))
	id.groupIDs = make(map[string]struct{}, len(user.Groups))
	id.permissions = make(map[string]struct{})
	for _, g := range user.Groups {
		id.groups[g.Name] = struct{}{}
		id.groupIDs[g.ID.String()] = struct{}{}
		for _, p := range g.Permissions {
			id.permissions[p] = struct{}{}
		}
	}
	return id
}

// Anonymous reports whether no user is attached.
func (i *Identity) Anonymous() bool {
	return i == nil || i.User == nil
}

// UserName is empty for anonymous identities.
func (i *Identity) UserName() string {
	if i.Anonymous() {
		return ""
	}
	return i.User.UserName
}

// UserID is uuid.Nil for anonymous identities.
func (i *Identity) UserID() uuid.UUID {
	if i.Anonymous() {
		return uuid.Nil
	}
	return i.User.ID
}

// Groups returns the sorted group names.
func (i *Identity) Groups() []string {
	if i == nil {
		return nil
	}
	return sortedKeys(i.groups)
}

// GroupIDs returns the sorted group IDs in string form.
func (i *Identity) GroupIDs() []string {
	if i == nil {
		return nil
	}
	return sortedKeys(i.groupIDs)
}

// Permissions returns the sorted union of the groups' permissions.
func (i *Identity) Permissions() []string {
	if i == nil {
		return nil
	}
	return sortedKeys(i.permissions)
}

func (i *Identity) InGroup(name string) bool {
	if i == nil {
		return false
	}
	_, ok := i.groups[name]
	return ok
}

func (i *Identity) HasGroupID(id string) bool {
	if i == nil {
		return false
	}
	_, ok := i.groupIDs[id]
	return ok
}

func (i *Identity) HasPermission(name string) bool {
	if i == nil {
		return false
	}
	_, ok := i.permissions[name]
	return ok
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
