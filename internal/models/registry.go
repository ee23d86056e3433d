package models

import (
	"sort"
)

// Descriptor is the registry entry for one persisted type exposed through the
// generic REST surface. The registry is a closed set populated at startup:
// path segments are resolved against it rather than against arbitrary type
// names, so only the types listed here are reachable.
type Descriptor struct {
	// Name is the REST path segment and the permission "type" component.
	Name string
	// New returns a pointer to a zero value of the type.
	New func() Entity
	// NewSlice returns a pointer to an empty slice of the type, for Find.
	NewSlice func() interface{}
	// Schema is the static field allow-list for filters and sorts.
	Schema Schema
	// MergeCollections reconciles association collections that are hidden
	// from the wire format against the persisted state: every element of
	// the persisted collection is retained on the incoming entity. The
	// merge is additive only; association removal is not handled on the
	// generic update path.
	MergeCollections func(incoming, persisted Entity)
	// Associations lists the gorm association names saved on update.
	Associations []string
}

var registry = map[string]*Descriptor{
	"AppUser": {
		Name:     "AppUser",
		New:      func() Entity { return &AppUser{} },
		NewSlice: func() interface{} { return &[]AppUser{} },
		Schema:   appUserSchema,
		MergeCollections: func(incoming, persisted Entity) {
			in := incoming.(*AppUser)
			cur := persisted.(*AppUser)
			in.Roles = mergeByID(in.Roles, cur.Roles, func(r Role) uint64 { return r.ID })
			in.IntrinsicPermissions = mergeByID(in.IntrinsicPermissions, cur.IntrinsicPermissions,
				func(p Permission) uint64 { return p.ID })
		},
		Associations: []string{"Roles", "IntrinsicPermissions"},
	},
	"Role": {
		Name:     "Role",
		New:      func() Entity { return &Role{} },
		NewSlice: func() interface{} { return &[]Role{} },
		Schema:   roleSchema,
		MergeCollections: func(incoming, persisted Entity) {
			in := incoming.(*Role)
			cur := persisted.(*Role)
			in.Grants = mergeByID(in.Grants, cur.Grants, func(p Permission) uint64 { return p.ID })
			in.Members = mergeByID(in.Members, cur.Members, func(u AppUser) uint64 { return u.ID })
		},
		Associations: []string{"Grants", "Members"},
	},
	"Permission": {
		Name:     "Permission",
		New:      func() Entity { return &Permission{} },
		NewSlice: func() interface{} { return &[]Permission{} },
		Schema:   permissionSchema,
	},
	"AccountRequest": {
		Name:     "AccountRequest",
		New:      func() Entity { return &AccountRequest{} },
		NewSlice: func() interface{} { return &[]AccountRequest{} },
		Schema:   accountRequestSchema,
	},
	"Notification": {
		Name:     "Notification",
		New:      func() Entity { return &Notification{} },
		NewSlice: func() interface{} { return &[]Notification{} },
		Schema:   notificationSchema,
	},
}

// Lookup resolves a REST path segment to its descriptor.
func Lookup(name string) (*Descriptor, bool) {
	d, ok := registry[name]
	return d, ok
}

// Types returns the registered type names in stable order.
func Types() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// mergeByID returns incoming plus every element of persisted whose id is not
// already present in incoming. Elements without an id (new associations) are
// kept as-is.
func mergeByID[T any](incoming, persisted []T, id func(T) uint64) []T {
	seen := make(map[uint64]bool, len(incoming))
	for _, e := range incoming {
		if v := id(e); v != 0 {
			seen[v] = true
		}
	}
	out := incoming
	for _, e := range persisted {
		if v := id(e); v != 0 && !seen[v] {
			out = append(out, e)
		}
	}
	return out
}
