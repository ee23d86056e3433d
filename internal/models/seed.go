package models

import (
	"errors"
	"fmt"

	"authbase/internal/utils"
	console "authbase/internal/utils/logger"

	"gorm.io/gorm"
)

var log = console.New("SEEDER")

// SystemUserID is the reserved identity used for internal operations. Its
// email is a single blank which the login handler rejects, so nobody can log
// in as the system account. To recover from a permissions lockout, set a real
// email directly in the database and restart.
const SystemUserID uint64 = 1

// SeedSystem makes sure the system user, the super_user role and the default
// roles exist. A proper deployment should replace this with managed DB
// migration scripts.
func SeedSystem(db *gorm.DB) error {
	var existing AppUser
	err := db.First(&existing, "id = ?", SystemUserID).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check for system user: %w", err)
	}

	log.Info("No system user found, seeding initial records")

	return db.Transaction(func(tx *gorm.DB) error {
		hash, err := utils.HashPassword("$System123ABC")
		if err != nil {
			return err
		}
		security := UserSecurity{PasswordHash: hash}
		if err := tx.Create(&security).Error; err != nil {
			return fmt.Errorf("failed to create system security record: %w", err)
		}

		system := AppUser{
			Username:   "SYSTEM",
			Email:      " ",
			SecurityID: &security.ID,
		}
		system.ID = SystemUserID
		if err := tx.Create(&system).Error; err != nil {
			return fmt.Errorf("failed to create system user: %w", err)
		}

		allPowers := wildcardPermission("*", "*")
		if err := tx.Create(allPowers).Error; err != nil {
			return fmt.Errorf("failed to create super permission: %w", err)
		}

		superRole := Role{
			Name:    "Full Control Super User",
			Key:     "super_user",
			Grants:  []Permission{*allPowers},
			Members: []AppUser{system},
		}
		if err := tx.Create(&superRole).Error; err != nil {
			return fmt.Errorf("failed to create super_user role: %w", err)
		}

		adminGrants := []Permission{
			*wildcardPermission("AppUser", "read"),
			*wildcardPermission("AppUser", "create"),
			*wildcardPermission("AppUser", "update"),
			*wildcardPermission("Role", "read"),
			*wildcardPermission("Role", "create"),
			*wildcardPermission("Role", "update"),
			*wildcardPermission("Permission", "read"),
			*wildcardPermission("Permission", "create"),
			*wildcardPermission("Permission", "update"),
			*wildcardPermission("AccountRequest", "read"),
			*wildcardPermission("Notification", "read"),
		}
		admin := Role{Name: "Administrator", Key: "admin", Grants: adminGrants}
		if err := tx.Create(&admin).Error; err != nil {
			return fmt.Errorf("failed to create admin role: %w", err)
		}

		reader := Role{
			Name: "Reader of Users",
			Key:  "read_users",
			Grants: []Permission{
				*wildcardPermission("AppUser", "read"),
			},
		}
		if err := tx.Create(&reader).Error; err != nil {
			return fmt.Errorf("failed to create reader role: %w", err)
		}

		log.Success("Seeded system user and default roles")
		return nil
	})
}

// SelfEditGrant builds the intrinsic permission that lets a freshly
// confirmed user manage their own record: AppUser:*:<id>:*.
func SelfEditGrant(userID uint64) *Permission {
	objID := fmt.Sprintf("%d", userID)
	return &Permission{Type: "AppUser", Action: "*", ObjID: &objID}
}

func wildcardPermission(typeName, action string) *Permission {
	p := &Permission{Type: typeName, Action: action}
	if typeName == "*" {
		star := "*"
		p.ObjID = &star
		p.Field = &star
	}
	return p
}
