package objects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"authbase/internal/events"
	"authbase/internal/messages"
	"authbase/internal/models"
	"authbase/internal/permission"
	console "authbase/internal/utils/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var log = console.New("OBJECTS")

var (
	// ErrUnknownType means the path segment named a type outside the
	// registry.
	ErrUnknownType = errors.New("unknown object type")
	// ErrObjectAlreadyHasID rejects inserts that arrive with an id set.
	// Client-chosen ids would allow probing and overwriting by id.
	ErrObjectAlreadyHasID = errors.New("new objects must not carry an id")
	// ErrOptimisticLock means the record changed since the client read it.
	ErrOptimisticLock = errors.New("object was modified concurrently, reload and retry")
)

// ListOptions carries the query portion of a list request.
type ListOptions struct {
	Filters map[string]string
	Sort    string
	Start   int
	Count   int
}

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

// Service is the generic persistence surface behind the REST layer. Every
// operation authorizes against the current principal before touching the
// database and scopes reads to records the principal may see.
type Service struct {
	db    *gorm.DB
	perms *permission.Service
	bus   *events.Bus
	// privileged skips authorization and ownership scoping entirely.
	privileged bool
}

func NewService(db *gorm.DB, perms *permission.Service, bus *events.Bus) *Service {
	return &Service{db: db, perms: perms, bus: bus}
}

// Privileged returns a view of the service that bypasses every permission
// check and ownership scope, acting as the system user. It exists for
// internal call sites (seeding, background jobs, handler plumbing) and must
// never be reachable from anything request-derived.
func (s *Service) Privileged() *Service {
	p := *s
	p.privileged = true
	return &p
}

// List returns the page of matching records plus the total match count.
// Filter and sort expressions are validated against the type's schema before
// any query is assembled.
func (s *Service) List(ctx context.Context, typeName string, opts ListOptions) (interface{}, int64, error) {
	desc, ok := models.Lookup(typeName)
	if !ok {
		return nil, 0, ErrUnknownType
	}

	permittedIDs, err := s.authorize(ctx, typeName, "read")
	if err != nil {
		return nil, 0, err
	}

	clauses, err := ParseFilters(desc.Schema, opts.Filters)
	if err != nil {
		return nil, 0, err
	}
	sortTerms, err := ParseSort(desc.Schema, opts.Sort)
	if err != nil {
		return nil, 0, err
	}

	q, err := s.scopedQuery(ctx, desc, permittedIDs)
	if err != nil {
		return nil, 0, err
	}
	for _, c := range clauses {
		q = q.Where(c.SQL, c.Args...)
	}

	var numFound int64
	if err := q.Count(&numFound).Error; err != nil {
		return nil, 0, log.Error("count query failed", err)
	}

	for _, term := range sortTerms {
		q = q.Order(term)
	}
	count := opts.Count
	if count <= 0 {
		count = defaultPageSize
	}
	if count > maxPageSize {
		messages.FromContext(ctx).Warning("Page size capped at %d.", maxPageSize)
		count = maxPageSize
	}
	results := desc.NewSlice()
	if err := q.Offset(opts.Start).Limit(count).Find(results).Error; err != nil {
		return nil, 0, log.Error("list query failed", err)
	}
	return results, numFound, nil
}

// Get returns one record by id, subject to the same visibility scope as
// List. Records outside the scope read as not found.
func (s *Service) Get(ctx context.Context, typeName string, id uint64) (models.Entity, error) {
	desc, ok := models.Lookup(typeName)
	if !ok {
		return nil, ErrUnknownType
	}

	permittedIDs, err := s.authorize(ctx, typeName, "read")
	if err != nil {
		return nil, err
	}
	q, err := s.scopedQuery(ctx, desc, permittedIDs)
	if err != nil {
		return nil, err
	}

	entity := desc.New()
	if err := q.First(entity, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return entity, nil
}

// Insert persists a new record owned by the principal. Records arriving
// with an id are rejected outright.
func (s *Service) Insert(ctx context.Context, typeName string, entity models.Entity) error {
	desc, ok := models.Lookup(typeName)
	if !ok {
		return ErrUnknownType
	}
	if !s.privileged {
		if err := s.perms.CheckPerms(ctx, &models.Permission{Type: typeName, Action: "create"}); err != nil {
			return err
		}
	}
	if entity.GetID() != 0 {
		return ErrObjectAlreadyHasID
	}

	ownerID, err := s.actorID(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	entity.StampCreated(now)
	entity.StampModified(now)
	entity.SetVersion(1)
	entity.SetOwnerID(&ownerID)
	entity.SetCreatedByID(&ownerID)
	entity.SetModifiedByID(&ownerID)

	if err := s.db.WithContext(ctx).Create(entity).Error; err != nil {
		return log.Error("insert failed", err)
	}
	s.bus.Publish(events.Event{Kind: events.ObjectCreated, Type: desc.Name, ID: entity.GetID()})
	return nil
}

// Update saves changes to an existing record under an optimistic lock: the
// incoming version must match the stored version, which then advances by
// one. Association collections hidden from the wire are merged additively
// from the stored record so an update cannot silently drop them.
func (s *Service) Update(ctx context.Context, typeName string, incoming models.Entity) error {
	desc, ok := models.Lookup(typeName)
	if !ok {
		return ErrUnknownType
	}

	permittedIDs, err := s.authorize(ctx, typeName, "update")
	if err != nil {
		return err
	}
	// An instance-restricted update grant is absolute: the target id must be
	// a member of the permitted set, ownership notwithstanding.
	if permittedIDs != "" {
		ids, err := ParsePermittedIDs(permittedIDs)
		if err != nil {
			return log.Error("bad object id filter derived from grants", err)
		}
		member := false
		for _, id := range ids {
			if id == incoming.GetID() {
				member = true
				break
			}
		}
		if !member {
			return &permission.NotPermittedError{
				Required: fmt.Sprintf("%s:update:%d:*", typeName, incoming.GetID()),
			}
		}
	}
	modifierID, err := s.actorID(ctx)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		load := tx.Model(desc.New()).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload(clause.Associations)

		persisted := desc.New()
		if err := load.First(persisted, "id = ?", incoming.GetID()).Error; err != nil {
			return err
		}

		if incoming.GetVersion() != persisted.GetVersion() {
			return ErrOptimisticLock
		}

		if desc.MergeCollections != nil {
			desc.MergeCollections(incoming, persisted)
		}

		// Creation metadata and ownership are immutable on this path.
		incoming.SetVersion(persisted.GetVersion() + 1)
		incoming.SetOwnerID(persisted.GetOwnerID())
		incoming.CarryCreation(persisted)
		incoming.SetModifiedByID(&modifierID)
		incoming.StampModified(time.Now())

		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(incoming).Error
	})
	if err != nil {
		return err
	}
	s.bus.Publish(events.Event{Kind: events.ObjectUpdated, Type: desc.Name, ID: incoming.GetID()})
	return nil
}

// authorize runs the coarse permission check and derives the instance
// filter. The privileged view skips it entirely.
func (s *Service) authorize(ctx context.Context, typeName, action string) (string, error) {
	if s.privileged {
		return "", nil
	}
	return s.perms.CheckPermsAndFilter(ctx, typeName, action)
}

// actorID is who audit fields are stamped with: the principal, or the system
// user on the privileged path.
func (s *Service) actorID(ctx context.Context) (uint64, error) {
	if s.privileged {
		if principal := permission.TopPrincipal(ctx); principal != nil {
			return principal.ID, nil
		}
		return models.SystemUserID, nil
	}
	principal, err := s.perms.LookUpPrincipal(ctx)
	if err != nil {
		return 0, err
	}
	return principal.ID, nil
}

// scopedQuery starts a query limited to records the principal may see:
// unowned records, their own, and the ids their grants name explicitly.
func (s *Service) scopedQuery(ctx context.Context, desc *models.Descriptor, permittedIDs string) (*gorm.DB, error) {
	q := s.db.WithContext(ctx).Model(desc.New())
	if s.privileged {
		return q, nil
	}
	scope, err := s.ownershipScope(ctx, permittedIDs)
	if err != nil {
		return nil, err
	}
	return q.Where(scope.SQL, scope.Args...), nil
}

func (s *Service) ownershipScope(ctx context.Context, permittedIDs string) (Clause, error) {
	principal, err := s.perms.LookUpPrincipal(ctx)
	if err != nil {
		return Clause{}, err
	}
	scope, err := OwnershipClause(principal.ID, permittedIDs)
	if err != nil {
		return Clause{}, log.Error("bad object id filter derived from grants", err)
	}
	return scope, nil
}
