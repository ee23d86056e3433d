package db

import (
	"fmt"
	"time"

	"authbase/internal/config"
	"authbase/internal/models"
	console "authbase/internal/utils/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var log = console.New("DATABASE")

const (
	maxConnectAttempts = 5
	connectRetryDelay  = 3 * time.Second
)

// Connect opens the postgres connection, retrying a few times so the app
// survives the database coming up slightly later in a compose environment.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)

	var db *gorm.DB
	var err error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err == nil {
			log.Success("Connected to postgres at %s:%d/%s", cfg.Host, cfg.Port, cfg.Name)
			return db, nil
		}
		log.Warn("database connection attempt %d/%d failed: %v", attempt, maxConnectAttempts, err)
		time.Sleep(connectRetryDelay)
	}
	return nil, log.Error("could not connect to database", err)
}

// Migrate applies the schema and seeds the system records. Every registered
// type is migrated, plus UserSecurity which is deliberately kept out of the
// registry.
func Migrate(db *gorm.DB) error {
	log.Info("Running migrations")
	tables := []interface{}{&models.UserSecurity{}}
	for _, name := range models.Types() {
		desc, _ := models.Lookup(name)
		tables = append(tables, desc.New())
	}
	if err := db.AutoMigrate(tables...); err != nil {
		return log.Error("migration failed", err)
	}

	if err := models.SeedSystem(db); err != nil {
		return log.Error("seeding failed", err)
	}
	log.Success("Migrations complete")
	return nil
}
