package models

import (
	"time"
)

// Persisted contains the common columns shared by every persisted type:
// a numeric identity (zero until the row is inserted), an optimistic
// concurrency version, ownership and audit references, and timestamps.
type Persisted struct {
	ID           uint64    `gorm:"primaryKey" json:"id,omitempty"`
	Version      int64     `json:"version"`
	OwnerID      *uint64   `gorm:"index" json:"ownerId,omitempty"`
	CreatedByID  *uint64   `json:"-"`
	ModifiedByID *uint64   `json:"-"`
	Created      time.Time `json:"created,omitempty"`
	Modified     time.Time `json:"modified,omitempty"`
}

// Entity is implemented by pointers to every persisted type via the embedded
// Persisted struct. The object service goes through this interface to stamp
// audit fields without reflection.
type Entity interface {
	GetID() uint64
	SetID(id uint64)
	GetVersion() int64
	SetVersion(v int64)
	GetOwnerID() *uint64
	SetOwnerID(id *uint64)
	SetCreatedByID(id *uint64)
	SetModifiedByID(id *uint64)
	StampCreated(t time.Time)
	StampModified(t time.Time)
	CarryCreation(from Entity)
}

func (p *Persisted) GetID() uint64 { return p.ID }

func (p *Persisted) SetID(id uint64) { p.ID = id }

func (p *Persisted) GetVersion() int64 { return p.Version }

func (p *Persisted) SetVersion(v int64) { p.Version = v }

func (p *Persisted) GetOwnerID() *uint64 { return p.OwnerID }

func (p *Persisted) SetOwnerID(id *uint64) { p.OwnerID = id }

func (p *Persisted) SetCreatedByID(id *uint64) { p.CreatedByID = id }

func (p *Persisted) SetModifiedByID(id *uint64) { p.ModifiedByID = id }

func (p *Persisted) StampCreated(t time.Time) { p.Created = t }

func (p *Persisted) StampModified(t time.Time) { p.Modified = t }

// CarryCreation copies the immutable creation metadata from the stored
// record so updates cannot rewrite provenance.
func (p *Persisted) CarryCreation(from Entity) {
	if src, ok := from.(interface {
		creation() (time.Time, *uint64)
	}); ok {
		p.Created, p.CreatedByID = src.creation()
	}
}

func (p *Persisted) creation() (time.Time, *uint64) { return p.Created, p.CreatedByID }

// NotificationLevel classifies user-facing notifications.
type NotificationLevel string

const (
	NotificationError          NotificationLevel = "ERROR"
	NotificationWarning        NotificationLevel = "WARNING"
	NotificationInfo           NotificationLevel = "INFO"
	NotificationSuccess        NotificationLevel = "SUCCESS"
	NotificationRecommendation NotificationLevel = "RECOMMENDATION"
)
