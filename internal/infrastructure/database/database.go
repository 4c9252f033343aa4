package database

import (
	"starauto-backend/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens a GORM DB from a Postgres DSN (Supabase pooler URL).
// PreferSimpleProtocol avoids 42P05 "prepared statement already exists" behind PgBouncer.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
}

// AutoMigrate creates or extends the cars and car_events tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Car{}, &domain.CarEvent{})
}
