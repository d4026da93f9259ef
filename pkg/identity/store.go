package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists users, groups, permissions and the visit-to-user links.
// Users returned by a Store carry their groups and each group's permissions.
type Store interface {
	// CreateModel creates the backing schema. It is idempotent.
	CreateModel(ctx context.Context) error

	// CreateUser inserts u, assigning ID and Created when zero.
	// It returns ErrUserExists when the user name is taken.
	CreateUser(ctx context.Context, u *User) error
	UserByName(ctx context.Context, userName string) (*User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*User, error)

	// AddUserToGroup and GrantPermission create the group when missing.
	AddUserToGroup(ctx context.Context, userID uuid.UUID, groupName string) error
	GrantPermission(ctx context.Context, groupName, permission string) error

	// Foreign users are accounts from an external site, such as an OAuth
	// provider, mapped onto a local user.
	LinkForeignUser(ctx context.Context, siteID, foreignID string, userID uuid.UUID) error
	UserByForeignID(ctx context.Context, siteID, foreignID string) (*User, error)

	LinkVisit(ctx context.Context, visitKey string, userID uuid.UUID) error
	UnlinkVisit(ctx context.Context, visitKey string) error
	// UserIDForVisit returns ErrNotLinked when no user is linked.
	UserIDForVisit(ctx context.Context, visitKey string) (uuid.UUID, error)
}

func prepareUser(u *User, now func() time.Time) error {
	if u.UserName == "" {
		return ErrEmptyUserName
	}
	if u.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		u.ID = id
	}
	if u.Created.IsZero() {
		u.Created = now().UTC()
	}
	return nil
}
