package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email         string         `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash  string         `gorm:"column:password_hash;not null"`
	FirstName     string         `gorm:"column:first_name;not null"`
	LastName      string         `gorm:"column:last_name;not null"`
	Role          enums.UserRole `gorm:"column:role;type:varchar(16);not null"`
	EmailVerified bool           `gorm:"column:email_verified;not null"`
	IsActive      bool           `gorm:"column:is_active;not null"`
	LastLoginAt   *time.Time     `gorm:"column:last_login_at"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// Otp is a one-time email verification code.
type Otp struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email     string    `gorm:"column:email;not null;index:idx_otps_email_otp,priority:1"`
	Code      string    `gorm:"column:otp;not null;index:idx_otps_email_otp,priority:2"`
	IsUsed    bool      `gorm:"column:is_used;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (o *Otp) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}
