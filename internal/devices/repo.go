package devices

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cashdash/cashdash-backend/pkg/db/models"
	"github.com/cashdash/cashdash-backend/pkg/enums"
)

// Repository persists push device registrations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, device *models.Device) error
	FindByUserAndToken(ctx context.Context, userID uuid.UUID, token string) (*models.Device, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.Device, error)
	ListActiveByUserAndRole(ctx context.Context, userID uuid.UUID, appRole enums.DeviceAppRole) ([]models.Device, error)
	Deactivate(ctx context.Context, userID uuid.UUID, token string) (bool, error)
	DeactivateByID(ctx context.Context, userID, deviceID uuid.UUID) (bool, error)
	DeactivateByToken(ctx context.Context, token string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a GORM-backed device repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert registers a token, reviving and refreshing an existing row when the
// same user re-registers the same token.
func (r *repository) Upsert(ctx context.Context, device *models.Device) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"platform",
				"app_role",
				"is_active",
				"last_seen_at",
				"updated_at",
			}),
		}).
		Create(device).Error
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", device.UserID, device.Token).
		First(device).Error
}

func (r *repository) FindByUserAndToken(ctx context.Context, userID uuid.UUID, token string) (*models.Device, error) {
	var device models.Device
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		First(&device).Error
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *repository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.Device, error) {
	var devices []models.Device
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").
		Find(&devices).Error
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *repository) ListActiveByUserAndRole(ctx context.Context, userID uuid.UUID, appRole enums.DeviceAppRole) ([]models.Device, error) {
	var devices []models.Device
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND app_role = ? AND is_active = ?", userID, appRole, true).
		Order("created_at ASC").
		Find(&devices).Error
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *repository) Deactivate(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("user_id = ? AND token = ? AND is_active = ?", userID, token, true).
		Update("is_active", false)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) DeactivateByID(ctx context.Context, userID, deviceID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("id = ? AND user_id = ? AND is_active = ?", deviceID, userID, true).
		Update("is_active", false)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeactivateByToken retires a token everywhere it appears. Push gateways
// report dead tokens without telling us which user registered them.
func (r *repository) DeactivateByToken(ctx context.Context, token string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Device{}).
		Where("token = ? AND is_active = ?", token, true).
		Update("is_active", false)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
