package permission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"authbase/internal/models"
	console "authbase/internal/utils/logger"

	"gorm.io/gorm"
)

var log = console.New("PERMISSIONS")

// ErrUnauthenticated means no principal could be resolved for the request.
var ErrUnauthenticated = errors.New("no authenticated principal")

// NotPermittedError means the principal is authenticated but none of their
// grants implies the required permission.
type NotPermittedError struct {
	Required string
}

func (e *NotPermittedError) Error() string {
	return fmt.Sprintf("not permitted: %s", e.Required)
}

type principalKey struct{}

// WithPrincipal stores the authenticated user on the request context.
func WithPrincipal(ctx context.Context, user *models.AppUser) context.Context {
	return context.WithValue(ctx, principalKey{}, user)
}

// TopPrincipal returns the authenticated user from the context, or nil when
// the request is anonymous.
func TopPrincipal(ctx context.Context) *models.AppUser {
	user, _ := ctx.Value(principalKey{}).(*models.AppUser)
	return user
}

// Service answers authorization questions about the current principal.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// LookUpPrincipal resolves the authenticated user for this request or fails
// with ErrUnauthenticated.
func (s *Service) LookUpPrincipal(ctx context.Context) (*models.AppUser, error) {
	if user := TopPrincipal(ctx); user != nil {
		return user, nil
	}
	return nil, ErrUnauthenticated
}

// LookUpUserByEmail loads the single user for an email together with the
// roles, grants and security record needed to authorize and authenticate.
// Anything other than exactly one match resolves to nobody: more than one
// match means unique enforcement on email has failed and is logged loudly as
// a data integrity fault.
func (s *Service) LookUpUserByEmail(ctx context.Context, email string) (*models.AppUser, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrUnauthenticated
	}

	var users []models.AppUser
	err := s.db.WithContext(ctx).
		Preload("Roles.Grants").
		Preload("IntrinsicPermissions").
		Preload("Security").
		Where("email = ?", email).
		Limit(2).
		Find(&users).Error
	if err != nil {
		return nil, log.Error("failed to look up user by email", err)
	}

	switch len(users) {
	case 1:
		return &users[0], nil
	case 0:
		return nil, ErrUnauthenticated
	default:
		log.Warn("DATA INTEGRITY FAULT: multiple users share email %q", email)
		return nil, ErrUnauthenticated
	}
}

// Granted flattens a user's effective permissions: every grant of every role
// plus the user's intrinsic permissions.
func Granted(user *models.AppUser) []models.Permission {
	var perms []models.Permission
	for _, role := range user.Roles {
		perms = append(perms, role.Grants...)
	}
	perms = append(perms, user.IntrinsicPermissions...)
	return perms
}

// CheckPerms verifies that each required permission is implied by at least
// one of the principal's grants, using double-wildcard matching. The first
// unmet requirement fails the whole check.
func (s *Service) CheckPerms(ctx context.Context, required ...*models.Permission) error {
	user, err := s.LookUpPrincipal(ctx)
	if err != nil {
		return err
	}

	granted, err := parseGrants(user)
	if err != nil {
		return err
	}

	for _, req := range required {
		target, err := ParseDouble(req.PermString())
		if err != nil {
			return log.Error("malformed required permission", err)
		}
		if !anyImplies(granted, target) {
			return &NotPermittedError{Required: req.PermString()}
		}
	}
	return nil
}

// CheckPermsAndFilter performs the coarse permission check for an action on a
// type and then derives the instance filter: the comma-separated object ids
// the principal is limited to, or "" when access is unrestricted.
//
// The coarse tier asks whether any grant implies "<type>:<action>:*:*" under
// double-wildcard matching; a miss is a hard NotPermittedError. The fine tier
// then scans the raw grants for ones naming this type and action with a
// concrete object id. A grant with object id "*" lifts all restrictions, as
// does having no instance-qualified grants at all (the coarse grant that let
// us through was then instance-blind).
func (s *Service) CheckPermsAndFilter(ctx context.Context, typeName, action string) (string, error) {
	user, err := s.LookUpPrincipal(ctx)
	if err != nil {
		return "", err
	}

	required := typeName + ":" + action + ":*:*"
	target, err := ParseDouble(required)
	if err != nil {
		return "", log.Error("malformed required permission", err)
	}

	granted, err := parseGrants(user)
	if err != nil {
		return "", err
	}
	if !anyImplies(granted, target) {
		return "", &NotPermittedError{Required: required}
	}

	var objIDs []string
	unrestricted := false
	for _, perm := range Granted(user) {
		if !tokenMatches(perm.Type, typeName) || !tokenMatches(perm.Action, action) {
			continue
		}
		if perm.ObjID == nil || *perm.ObjID == WildcardToken {
			unrestricted = true
			continue
		}
		objIDs = append(objIDs, *perm.ObjID)
	}
	if unrestricted || len(objIDs) == 0 {
		return "", nil
	}
	return strings.Join(objIDs, ","), nil
}

func parseGrants(user *models.AppUser) ([]DoubleWildcardPermission, error) {
	raw := Granted(user)
	granted := make([]DoubleWildcardPermission, 0, len(raw))
	for i := range raw {
		p, err := ParseDouble(raw[i].PermString())
		if err != nil {
			// A malformed stored grant grants nothing but must not lock
			// the user out of their remaining permissions.
			log.Warn("skipping malformed stored permission %q: %v", raw[i].PermString(), err)
			continue
		}
		granted = append(granted, p)
	}
	return granted, nil
}

func anyImplies(granted []DoubleWildcardPermission, target DoubleWildcardPermission) bool {
	for _, g := range granted {
		if g.Implies(target) {
			return true
		}
	}
	return false
}

func tokenMatches(token, want string) bool {
	return token == WildcardToken || strings.EqualFold(token, want)
}
