package identity_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearshift/gearshift/pkg/identity"
)

// runStoreContract exercises behaviour every Store backend must share.
// User names are randomized so persistent backends can be reused.
func runStoreContract(t *testing.T, store identity.Store) {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	require.NoError(t, store.CreateModel(ctx))
	require.NoError(t, store.CreateModel(ctx), "create model is idempotent")

	alice := &identity.User{UserName: "alice-" + suffix, DisplayName: "Alice", Password: "secret"}
	require.NoError(t, store.CreateUser(ctx, alice))
	require.NotEqual(t, uuid.Nil, alice.ID)
	require.False(t, alice.Created.IsZero())

	t.Run("duplicate user name", func(t *testing.T) {
		err := store.CreateUser(ctx, &identity.User{UserName: alice.UserName})
		require.ErrorIs(t, err, identity.ErrUserExists)
	})

	t.Run("empty user name", func(t *testing.T) {
		require.ErrorIs(t, store.CreateUser(ctx, &identity.User{}), identity.ErrEmptyUserName)
	})

	t.Run("lookup", func(t *testing.T) {
		byName, err := store.UserByName(ctx, alice.UserName)
		require.NoError(t, err)
		assert.Equal(t, alice.ID, byName.ID)
		assert.Equal(t, "Alice", byName.DisplayName)
		assert.Equal(t, "secret", byName.Password)

		byID, err := store.UserByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, alice.UserName, byID.UserName)

		_, err = store.UserByName(ctx, "nobody-"+suffix)
		require.ErrorIs(t, err, identity.ErrUserNotFound)
		_, err = store.UserByID(ctx, uuid.New())
		require.ErrorIs(t, err, identity.ErrUserNotFound)
	})

	t.Run("groups and permissions", func(t *testing.T) {
		admin, peon := "admin-"+suffix, "peon-"+suffix

		require.NoError(t, store.GrantPermission(ctx, admin, "manage_users"))
		require.NoError(t, store.GrantPermission(ctx, admin, "manage_users"))
		require.NoError(t, store.GrantPermission(ctx, admin, "audit"))
		require.NoError(t, store.AddUserToGroup(ctx, alice.ID, peon))
		require.NoError(t, store.AddUserToGroup(ctx, alice.ID, admin))
		require.NoError(t, store.AddUserToGroup(ctx, alice.ID, admin))

		u, err := store.UserByID(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, u.Groups, 2)
		assert.Equal(t, admin, u.Groups[0].Name)
		assert.Equal(t, []string{"audit", "manage_users"}, u.Groups[0].Permissions)
		assert.NotEqual(t, uuid.Nil, u.Groups[0].ID)
		assert.Equal(t, peon, u.Groups[1].Name)
		assert.Empty(t, u.Groups[1].Permissions)

		id := identity.NewAuthenticated(u, "")
		assert.True(t, id.InGroup(admin))
		assert.True(t, id.HasPermission("manage_users"))

		require.ErrorIs(t, store.AddUserToGroup(ctx, uuid.New(), admin), identity.ErrUserNotFound)
		require.ErrorIs(t, store.AddUserToGroup(ctx, alice.ID, ""), identity.ErrEmptyGroupName)
	})

	t.Run("visit links", func(t *testing.T) {
		key := "visit-" + suffix

		_, err := store.UserIDForVisit(ctx, key)
		require.ErrorIs(t, err, identity.ErrNotLinked)

		require.NoError(t, store.LinkVisit(ctx, key, alice.ID))
		got, err := store.UserIDForVisit(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got)

		require.NoError(t, store.UnlinkVisit(ctx, key))
		require.NoError(t, store.UnlinkVisit(ctx, key))
		_, err = store.UserIDForVisit(ctx, key)
		require.ErrorIs(t, err, identity.ErrNotLinked)

		require.ErrorIs(t, store.LinkVisit(ctx, key, uuid.New()), identity.ErrUserNotFound)
	})

	t.Run("foreign users", func(t *testing.T) {
		fid := "gh-" + suffix

		_, err := store.UserByForeignID(ctx, "github", fid)
		require.ErrorIs(t, err, identity.ErrUserNotFound)

		require.NoError(t, store.LinkForeignUser(ctx, "github", fid, alice.ID))
		require.NoError(t, store.LinkForeignUser(ctx, "github", fid, alice.ID))

		u, err := store.UserByForeignID(ctx, "github", fid)
		require.NoError(t, err)
		assert.Equal(t, alice.ID, u.ID)

		bob := &identity.User{UserName: "bob-" + suffix}
		require.NoError(t, store.CreateUser(ctx, bob))
		require.ErrorIs(t, store.LinkForeignUser(ctx, "github", fid, bob.ID), identity.ErrForeignUserExists)
	})
}
