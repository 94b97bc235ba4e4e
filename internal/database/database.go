package database

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/config"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/domain"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/eventstore"
)

// Connect opens the write and read-only connections and configures their
// pools. When no read-only DSN is configured the write connection serves
// both roles.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, *gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to write database")
	}
	if err := configurePool(db, cfg); err != nil {
		return nil, nil, err
	}

	readOnlyDB := db
	if cfg.ReadOnlyDSN != "" && cfg.ReadOnlyDSN != cfg.DSN {
		readOnlyDB, err = gorm.Open(postgres.Open(cfg.ReadOnlyDSN), &gorm.Config{})
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to connect to read-only database")
		}
		if err := configurePool(readOnlyDB, cfg); err != nil {
			return nil, nil, err
		}
	}

	return db, readOnlyDB, nil
}

func configurePool(db *gorm.DB, cfg config.DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying DB connection")
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 50
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 10
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(lifetime)
	return nil
}

// Migrate applies the schema for the trade aggregates and the event outbox.
// Only the write connection runs migrations.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.Requirement{},
		&domain.Availability{},
		&eventstore.EventRecord{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run migrations")
	}
	return nil
}
