package models

// FieldKind tells the filter parser how to coerce a raw filter value before
// it is bound as a query parameter.
type FieldKind int

const (
	KindString FieldKind = iota
	KindInt
	KindBool
	KindTime
)

// FieldSpec describes one declared property of a persisted type. Filter
// fields MUST be drawn from specs with Filterable set; sort fields may use
// any declared spec. The Column value is the only string that ever reaches
// the query text, so it must never be taken from user input.
type FieldSpec struct {
	Column     string
	Kind       FieldKind
	Filterable bool
}

// Schema is the static allow-list of properties for one persisted type,
// keyed by the wire (JSON) property name. It replaces runtime reflection
// over struct tags: the set of queryable identifiers is closed at compile
// time, which is the primary injection defense for the generic REST surface.
type Schema map[string]FieldSpec

// persistedSchema returns the specs shared by every persisted type.
func persistedSchema() Schema {
	return Schema{
		"id":       {Column: "id", Kind: KindInt, Filterable: true},
		"version":  {Column: "version", Kind: KindInt},
		"created":  {Column: "created", Kind: KindTime},
		"modified": {Column: "modified", Kind: KindTime},
	}
}

func merged(extra Schema) Schema {
	s := persistedSchema()
	for k, v := range extra {
		s[k] = v
	}
	return s
}

var appUserSchema = merged(Schema{
	"username": {Column: "username", Kind: KindString, Filterable: true},
	"email":    {Column: "email", Kind: KindString, Filterable: true},
})

var roleSchema = merged(Schema{
	"name": {Column: "name", Kind: KindString, Filterable: true},
	"key":  {Column: "key_name", Kind: KindString, Filterable: true},
})

var permissionSchema = merged(Schema{
	"type":   {Column: "type", Kind: KindString, Filterable: true},
	"action": {Column: "action", Kind: KindString, Filterable: true},
	"objId":  {Column: "obj_id", Kind: KindString, Filterable: true},
	"field":  {Column: "field", Kind: KindString},
})

var accountRequestSchema = merged(Schema{
	"username":    {Column: "username", Kind: KindString, Filterable: true},
	"email":       {Column: "email", Kind: KindString, Filterable: true},
	"confirmedAt": {Column: "confirmed_at", Kind: KindTime, Filterable: true},
	"expiresAt":   {Column: "expires_at", Kind: KindTime},
})

var notificationSchema = merged(Schema{
	"recipientId": {Column: "recipient_id", Kind: KindInt, Filterable: true},
	"level":       {Column: "level", Kind: KindString, Filterable: true},
	"sent":        {Column: "sent", Kind: KindTime, Filterable: true},
})
