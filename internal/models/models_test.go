package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func testTime() time.Time {
	return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
}

func TestPermStringQualifiers(t *testing.T) {
	cases := []struct {
		perm Permission
		want string
	}{
		{Permission{Type: "AppUser", Action: "read"}, "AppUser:read:*:*"},
		{Permission{Type: "AppUser", Action: "read", ObjID: strptr("42")}, "AppUser:read:42:*"},
		{Permission{Type: "AppUser", Action: "read", ObjID: strptr("42"), Field: strptr("username")}, "AppUser:read:42:username"},
		{Permission{Type: "*", Action: "*", ObjID: strptr("*"), Field: strptr("*")}, "*:*:*:*"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.perm.PermString())
	}
}

func TestSelfEditGrant(t *testing.T) {
	grant := SelfEditGrant(42)
	assert.Equal(t, "AppUser:*:42:*", grant.PermString())
}

func TestRegistryClosedSet(t *testing.T) {
	for _, name := range []string{"AppUser", "Role", "Permission", "AccountRequest", "Notification"} {
		desc, ok := Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, name, desc.Name)
		assert.NotNil(t, desc.New())
		assert.NotNil(t, desc.NewSlice())
		assert.NotEmpty(t, desc.Schema)
	}

	_, ok := Lookup("UserSecurity")
	assert.False(t, ok, "security records must not be reachable over REST")
	_, ok = Lookup("appuser")
	assert.False(t, ok, "lookup is case sensitive")
}

func TestSharedSchemaProperties(t *testing.T) {
	for _, name := range Types() {
		desc, _ := Lookup(name)
		for _, prop := range []string{"id", "version", "created", "modified"} {
			assert.Contains(t, desc.Schema, prop, "%s should declare %s", name, prop)
		}
		assert.True(t, desc.Schema["id"].Filterable)
	}
}

func TestMergeCollectionsIsAdditive(t *testing.T) {
	desc, _ := Lookup("AppUser")

	persisted := &AppUser{
		Roles: []Role{
			{Persisted: Persisted{ID: 1}, Key: "admin"},
			{Persisted: Persisted{ID: 2}, Key: "read_users"},
		},
	}
	// The incoming update names only one existing role plus a new one;
	// the role it omitted must survive the merge.
	incoming := &AppUser{
		Roles: []Role{
			{Persisted: Persisted{ID: 2}, Key: "read_users"},
			{Key: "brand_new"},
		},
	}

	desc.MergeCollections(incoming, persisted)

	require.Len(t, incoming.Roles, 3)
	ids := make(map[uint64]bool)
	for _, r := range incoming.Roles {
		ids[r.ID] = true
	}
	assert.True(t, ids[1], "omitted persisted role must be retained")
	assert.True(t, ids[2])
	assert.True(t, ids[0], "new unsaved role must be kept")
}

func TestMergeCollectionsNoDuplicates(t *testing.T) {
	desc, _ := Lookup("Role")

	shared := Permission{Persisted: Persisted{ID: 7}, Type: "AppUser", Action: "read"}
	persisted := &Role{Grants: []Permission{shared}}
	incoming := &Role{Grants: []Permission{shared}}

	desc.MergeCollections(incoming, persisted)
	assert.Len(t, incoming.Grants, 1)
}

func TestEntityStamping(t *testing.T) {
	var e Entity = &AppUser{}
	e.SetID(5)
	e.SetVersion(3)
	owner := uint64(9)
	e.SetOwnerID(&owner)

	assert.Equal(t, uint64(5), e.GetID())
	assert.Equal(t, int64(3), e.GetVersion())
	require.NotNil(t, e.GetOwnerID())
	assert.Equal(t, uint64(9), *e.GetOwnerID())
}

func TestCarryCreationPreservesProvenance(t *testing.T) {
	creator := uint64(1)
	original := &AppUser{}
	original.StampCreated(testTime())
	original.SetCreatedByID(&creator)

	updated := &AppUser{}
	updated.CarryCreation(original)

	assert.Equal(t, testTime(), updated.Created)
	require.NotNil(t, updated.CreatedByID)
	assert.Equal(t, creator, *updated.CreatedByID)
}
