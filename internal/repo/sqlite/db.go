package sqlite

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens (creating if needed) the sqlite database at path and migrates it.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&fileRow{}, &userRow{}, &appointmentRow{}, &notificationRow{}); err != nil {
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	// gorm tags cannot express a partial index
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS appointments_provider_slot_active
		ON appointments (provider_id, date) WHERE canceled_at IS NULL`).Error; err != nil {
		return nil, fmt.Errorf("create slot index: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

type fileRow struct {
	ID        int64  `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Path      string `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (fileRow) TableName() string { return "files" }

type userRow struct {
	ID        int64    `gorm:"primaryKey"`
	Name      string   `gorm:"not null"`
	Email     string   `gorm:"not null;uniqueIndex"`
	Provider  bool     `gorm:"not null;default:false"`
	AvatarID  *int64   `gorm:"index"`
	Avatar    *fileRow `gorm:"foreignKey:AvatarID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRow) TableName() string { return "users" }

type appointmentRow struct {
	ID         int64     `gorm:"primaryKey"`
	Date       time.Time `gorm:"not null;index"`
	UserID     int64     `gorm:"not null;index"`
	ProviderID int64     `gorm:"not null"`
	CanceledAt *time.Time
	User       userRow `gorm:"foreignKey:UserID"`
	Provider   userRow `gorm:"foreignKey:ProviderID"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (appointmentRow) TableName() string { return "appointments" }

type notificationRow struct {
	ID        int64  `gorm:"primaryKey"`
	Content   string `gorm:"not null"`
	UserID    int64  `gorm:"not null;index"`
	Read      bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (notificationRow) TableName() string { return "notifications" }
