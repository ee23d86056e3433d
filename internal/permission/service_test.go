package permission

import (
	"context"
	"testing"

	"authbase/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func userWith(perms ...models.Permission) *models.AppUser {
	return &models.AppUser{
		Username:             "tester",
		IntrinsicPermissions: perms,
	}
}

func ctxFor(user *models.AppUser) context.Context {
	return WithPrincipal(context.Background(), user)
}

func TestCheckPermsRequiresPrincipal(t *testing.T) {
	svc := NewService(nil)
	err := svc.CheckPerms(context.Background(), &models.Permission{Type: "Role", Action: "read"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCheckPermsDeniesWithoutGrant(t *testing.T) {
	svc := NewService(nil)
	ctx := ctxFor(userWith(models.Permission{Type: "Role", Action: "read"}))

	err := svc.CheckPerms(ctx, &models.Permission{Type: "Role", Action: "update"})
	var denied *NotPermittedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "Role:update:*:*", denied.Required)
}

func TestCheckPermsAllowsThroughRoleGrant(t *testing.T) {
	svc := NewService(nil)
	user := &models.AppUser{
		Roles: []models.Role{{
			Key:    "admin",
			Grants: []models.Permission{{Type: "Role", Action: "*"}},
		}},
	}

	err := svc.CheckPerms(ctxFor(user),
		&models.Permission{Type: "Role", Action: "read"},
		&models.Permission{Type: "Role", Action: "update"})
	assert.NoError(t, err)
}

func TestCheckPermsAndFilterUnrestricted(t *testing.T) {
	svc := NewService(nil)
	ctx := ctxFor(userWith(models.Permission{Type: "AppUser", Action: "read"}))

	filter, err := svc.CheckPermsAndFilter(ctx, "AppUser", "read")
	require.NoError(t, err)
	assert.Empty(t, filter)
}

func TestCheckPermsAndFilterCollectsObjectIDs(t *testing.T) {
	svc := NewService(nil)
	ctx := ctxFor(userWith(
		models.Permission{Type: "AppUser", Action: "read", ObjID: strptr("7")},
		models.Permission{Type: "AppUser", Action: "*", ObjID: strptr("42")},
	))

	filter, err := svc.CheckPermsAndFilter(ctx, "AppUser", "read")
	require.NoError(t, err)
	assert.Equal(t, "7,42", filter)
}

func TestCheckPermsAndFilterWildcardObjIDLiftsRestriction(t *testing.T) {
	svc := NewService(nil)
	ctx := ctxFor(userWith(
		models.Permission{Type: "AppUser", Action: "read", ObjID: strptr("7")},
		models.Permission{Type: "AppUser", Action: "read", ObjID: strptr("*")},
	))

	filter, err := svc.CheckPermsAndFilter(ctx, "AppUser", "read")
	require.NoError(t, err)
	assert.Empty(t, filter)
}

func TestSelfGrantPassesCoarseCheckButScopesToSelf(t *testing.T) {
	// A user holding only the self-edit grant AppUser:*:42:* may update
	// AppUser records, but only record 42.
	svc := NewService(nil)
	grant := models.SelfEditGrant(42)
	ctx := ctxFor(userWith(*grant))

	filter, err := svc.CheckPermsAndFilter(ctx, "AppUser", "update")
	require.NoError(t, err)
	assert.Equal(t, "42", filter)

	_, err = svc.CheckPermsAndFilter(ctx, "Role", "read")
	var denied *NotPermittedError
	assert.ErrorAs(t, err, &denied)
}

func TestCheckPermsAndFilterRequiresPrincipal(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.CheckPermsAndFilter(context.Background(), "AppUser", "read")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
