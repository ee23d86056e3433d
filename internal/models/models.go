package models

import (
	"time"

	"gorm.io/datatypes"
)

// AppUser is the principal making requests. Named to avoid clashes with the
// user keyword in various DB systems.
//
// NOTE for REST usage: everything but username and id is hidden, because the
// vast majority of information about users is potential PII or security
// related. Sections of the application that need richer views should map a
// dedicated response type for that use case.
type AppUser struct {
	Persisted
	Username string `gorm:"size:40" json:"username"`
	// hidden from the wire to avoid user enumeration attacks
	Email string `gorm:"uniqueIndex;size:128" json:"-"`

	SecurityID *uint64       `json:"-"`
	Security   *UserSecurity `gorm:"foreignKey:SecurityID" json:"-"`

	// Association collections are hidden from the wire format and merged
	// additively on update; they are loaded eagerly when authorizing.
	Roles                []Role       `gorm:"many2many:role_members" json:"-"`
	IntrinsicPermissions []Permission `gorm:"many2many:user_grants" json:"-"`
}

// UserSecurity keeps password material and reset state off the AppUser row so
// the user record can be listed without ever touching secrets.
type UserSecurity struct {
	Persisted
	PasswordHash     string     `json:"-"`
	ResetToken       *string    `gorm:"index" json:"-"`
	ResetRequestedAt *time.Time `json:"-"`
	Expiration       *time.Time `json:"-"`
	ExpirationReason *string    `json:"-"`
}

// Role is a named collection of permission grants with members.
type Role struct {
	Persisted
	Name string `gorm:"size:128" json:"name"`
	Key  string `gorm:"column:key_name;size:64" json:"key"`

	Grants  []Permission `gorm:"many2many:role_grants" json:"grants,omitempty"`
	Members []AppUser    `gorm:"many2many:role_members" json:"members,omitempty"`
}

// Permission represents permission to perform an action on an object type
// with an optional instance qualifier and field qualifier. A nil ObjID or
// Field is equivalent to the wildcard at that position.
type Permission struct {
	Persisted
	Type   string  `gorm:"size:64;not null" json:"type"`
	Action string  `gorm:"size:64;not null" json:"action"`
	ObjID  *string `gorm:"size:64" json:"objId,omitempty"`
	Field  *string `gorm:"size:64" json:"field,omitempty"`
}

// PermString serializes the permission to its canonical colon-delimited form,
// e.g. "AppUser:read:42:*".
func (p *Permission) PermString() string {
	return p.Type + ":" + p.Action + qualifier(p.ObjID) + qualifier(p.Field)
}

func qualifier(part *string) string {
	if part == nil {
		return ":*"
	}
	return ":" + *part
}

// AccountRequest is a pending self-registration. It is converted to an
// AppUser when the confirmation token comes back, at which point the new user
// receives the self-edit intrinsic grant.
type AccountRequest struct {
	Persisted
	Username string `gorm:"size:40" json:"username"`
	Email    string `gorm:"size:128;not null" json:"email"`

	SecurityID *uint64       `json:"-"`
	Security   *UserSecurity `gorm:"foreignKey:SecurityID" json:"-"`

	ConfirmToken string     `gorm:"index" json:"-"`
	ConfirmedAt  *time.Time `json:"confirmedAt,omitempty"`
	ExpiresAt    time.Time  `json:"expiresAt"`
}

// Notification is a message destined for a user, persisted until delivered.
// Data carries free-form structured context for the client, e.g. which record
// the notification is about.
type Notification struct {
	Persisted
	RecipientID *uint64           `gorm:"index" json:"recipientId,omitempty"`
	Recipient   *AppUser          `json:"recipient,omitempty"`
	Level       NotificationLevel `gorm:"size:16" json:"level" validate:"omitempty,notification_level"`
	Text        string            `json:"text"`
	Data        datatypes.JSON    `json:"data,omitempty"`
	Sent        *time.Time        `json:"sent,omitempty"`
}
