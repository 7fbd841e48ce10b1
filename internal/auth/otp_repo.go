package auth

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/db/models"
)

// OTPRepository persists one-time verification codes.
type OTPRepository struct {
	db *gorm.DB
}

func NewOTPRepository(db *gorm.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

func (r *OTPRepository) WithTx(tx *gorm.DB) *OTPRepository {
	if tx == nil {
		return r
	}
	return &OTPRepository{db: tx}
}

// Replace drops every unused code for email and stores a fresh one.
func (r *OTPRepository) Replace(ctx context.Context, email, code string) (*models.Otp, error) {
	if err := r.db.WithContext(ctx).
		Where("email = ? AND is_used = ?", email, false).
		Delete(&models.Otp{}).Error; err != nil {
		return nil, err
	}
	otp := &models.Otp{Email: email, Code: code}
	if err := r.db.WithContext(ctx).Create(otp).Error; err != nil {
		return nil, err
	}
	return otp, nil
}

// FindLatestUnused returns the newest unused code matching email and code.
func (r *OTPRepository) FindLatestUnused(ctx context.Context, email, code string) (*models.Otp, error) {
	var otp models.Otp
	err := r.db.WithContext(ctx).
		Where("email = ? AND otp = ? AND is_used = ?", email, code, false).
		Order("created_at DESC").
		Take(&otp).Error
	if err != nil {
		return nil, err
	}
	return &otp, nil
}

func (r *OTPRepository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Otp{}).
		Where("id = ?", id).
		Update("is_used", true).Error
}
