package refunds

import (
	"context"
	"time"

	"github.com/cashdash/cashdash-backend/pkg/db/models"
	"github.com/cashdash/cashdash-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes persistence for refund jobs plus the order and bank
// lookups destination selection needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindJobByOrderID(ctx context.Context, orderID uuid.UUID) (*models.RefundJob, error)
	UpsertJob(ctx context.Context, job *models.RefundJob) (*models.RefundJob, error)
	UpdateJob(ctx context.Context, jobID uuid.UUID, updates map[string]any) error
	ListProcessingJobs(ctx context.Context, updatedBefore time.Time, limit int) ([]models.RefundJob, error)
	FindBankAccount(ctx context.Context, bankID uuid.UUID) (*models.BankAccount, error)
	FindPrimaryBankAccount(ctx context.Context, userID uuid.UUID) (*models.BankAccount, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a refunds repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindJobByOrderID(ctx context.Context, orderID uuid.UUID) (*models.RefundJob, error) {
	var job models.RefundJob
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// UpsertJob inserts the job or, when a row for the order already exists,
// refreshes the routing fields in place. The unique order_id index is the
// idempotency anchor: retries mutate, never duplicate.
func (r *repository) UpsertJob(ctx context.Context, job *models.RefundJob) (*models.RefundJob, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"bank_account_id",
				"amount_cents",
				"status",
				"fallback_reason",
				"updated_at",
			}),
		}).
		Create(job).Error
	if err != nil {
		return nil, err
	}
	return r.FindJobByOrderID(ctx, job.OrderID)
}

func (r *repository) UpdateJob(ctx context.Context, jobID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.RefundJob{}).
		Where("id = ?", jobID).
		Updates(updates).Error
}

func (r *repository) ListProcessingJobs(ctx context.Context, updatedBefore time.Time, limit int) ([]models.RefundJob, error) {
	var jobs []models.RefundJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.RefundJobStatusProcessing, updatedBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *repository) FindBankAccount(ctx context.Context, bankID uuid.UUID) (*models.BankAccount, error) {
	var account models.BankAccount
	err := r.db.WithContext(ctx).
		Where("id = ?", bankID).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindPrimaryBankAccount(ctx context.Context, userID uuid.UUID) (*models.BankAccount, error) {
	var account models.BankAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_primary = ? AND is_active = ?", userID, true, true).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}
