package services

import (
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"member_portal_echo/internal/models"
)

// InitDB initializes the database connection with connection pooling
func InitDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Info),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// Get underlying sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database connection established")
	return db, nil
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Activity{},
		&models.Enrollment{},
		&models.Payment{},
		&models.ScheduledTask{},
		&models.ScheduledTaskHistory{},
	)
	if err != nil {
		return err
	}

	// One active enrollment per (user, activity). The in-transaction count
	// check cannot stop two concurrent first-time enrolls: with no prior
	// row there is nothing for FOR UPDATE to lock.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollments_one_active
		ON enrollments (user_id, activity_id)
		WHERE state NOT IN ('cancelled', 'refunded') AND deleted_at IS NULL`).Error
	if err != nil {
		return err
	}

	log.Println("Database migrations completed")
	return nil
}
