package orders

import (
	"context"
	"time"

	"github.com/cashdash/cashdash-backend/pkg/db/models"
	"github.com/cashdash/cashdash-backend/pkg/enums"
	"github.com/cashdash/cashdash-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, params listOrdersParams) ([]models.Order, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Order{})
	if params.CustomerID != nil {
		query = query.Where("customer_id = ?", *params.CustomerID)
	}
	if params.RunnerID != nil {
		query = query.Where("runner_id = ?", *params.RunnerID)
	}
	if params.OpenOnly {
		query = query.Where("status = ? AND runner_id IS NULL", enums.OrderStatusPending)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var orders []models.Order
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&orders).Error; err != nil {
		return nil, nil, err
	}

	if len(orders) > normalized {
		next := orders[normalized]
		orders = orders[:normalized]
		return orders, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return orders, nil, nil
}

// ClaimPending is the acceptance race's single conditional write: it only
// succeeds while the order is still Pending with no runner assigned, and the
// status flip plus runner assignment happen in the same statement.
func (r *repository) ClaimPending(ctx context.Context, orderID, runnerID uuid.UUID, claimedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND runner_id IS NULL", orderID, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":     enums.OrderStatusRunnerAccepted,
			"runner_id":  runnerID,
			"claimed_at": claimedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AdvanceStatus commits a forward transition only if the order is observed in
// the exact expected prior status at write time. Zero rows means the caller's
// view was stale.
func (r *repository) AdvanceStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for column, value := range updates {
		values[column] = value
	}

	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CompleteWithVerifiedOtp finalizes the handoff. The status precondition
// keeps a second concurrent verify from completing the order twice; OTP
// fields are cleared in the same statement.
func (r *repository) CompleteWithVerifiedOtp(ctx context.Context, orderID uuid.UUID, completedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPendingHandoff).
		Updates(map[string]any{
			"status":         enums.OrderStatusCompleted,
			"completed_at":   completedAt,
			"otp_code_hash":  nil,
			"otp_expires_at": nil,
			"otp_attempts":   0,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) IncrementOtpAttempts(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusPendingHandoff).
		UpdateColumn("otp_attempts", gorm.Expr("otp_attempts + 1")).Error
}

// ClearExpiredOtps drops stale handoff codes so the verify path reports
// Expired from the missing hash alone. Orders stay in Pending Handoff; a new
// code arrives when the runner re-enters the handoff step.
func (r *repository) ClearExpiredOtps(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND otp_code_hash IS NOT NULL AND otp_expires_at < ?", enums.OrderStatusPendingHandoff, cutoff).
		Updates(map[string]any{
			"otp_code_hash":  nil,
			"otp_expires_at": nil,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) AppendEvent(ctx context.Context, event *models.OrderEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) CreateMessage(ctx context.Context, message *models.OrderMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *repository) ListMessages(ctx context.Context, orderID uuid.UUID) ([]models.OrderMessage, error) {
	var messages []models.OrderMessage
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
