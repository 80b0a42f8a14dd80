package banks

import (
	"context"
	"time"

	"github.com/cashdash/cashdash-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes persistence for refund destination bank accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, account *models.BankAccount) error
	FindByID(ctx context.Context, bankID uuid.UUID) (*models.BankAccount, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.BankAccount, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	ClearPrimary(ctx context.Context, userID uuid.UUID) error
	SetPrimary(ctx context.Context, userID, bankID uuid.UUID) (bool, error)
	Deactivate(ctx context.Context, userID, bankID uuid.UUID, at time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a banks repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, account *models.BankAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) FindByID(ctx context.Context, bankID uuid.UUID) (*models.BankAccount, error) {
	var account models.BankAccount
	err := r.db.WithContext(ctx).
		Where("id = ?", bankID).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.BankAccount, error) {
	var accounts []models.BankAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC, id ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BankAccount{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	return count, err
}

func (r *repository) ClearPrimary(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.BankAccount{}).
		Where("user_id = ? AND is_primary = ?", userID, true).
		UpdateColumn("is_primary", false).Error
}

func (r *repository) SetPrimary(ctx context.Context, userID, bankID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BankAccount{}).
		Where("id = ? AND user_id = ? AND is_active = ?", bankID, userID, true).
		UpdateColumn("is_primary", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Deactivate(ctx context.Context, userID, bankID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BankAccount{}).
		Where("id = ? AND user_id = ? AND is_active = ?", bankID, userID, true).
		Updates(map[string]any{
			"is_active":      false,
			"is_primary":     false,
			"deactivated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
