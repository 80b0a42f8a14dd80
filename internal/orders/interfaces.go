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

// Repository defines persistence operations for orders, their append-only
// event trail, and order messages. Every transition-bearing method is a
// single conditional UPDATE whose row count tells the caller whether the
// expected prior state still held at write time.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params listOrdersParams) ([]models.Order, *pagination.Cursor, error)
	ClaimPending(ctx context.Context, orderID, runnerID uuid.UUID, claimedAt time.Time) (bool, error)
	AdvanceStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	CompleteWithVerifiedOtp(ctx context.Context, orderID uuid.UUID, completedAt time.Time) (bool, error)
	IncrementOtpAttempts(ctx context.Context, orderID uuid.UUID) error
	ClearExpiredOtps(ctx context.Context, cutoff time.Time) (int64, error)
	AppendEvent(ctx context.Context, event *models.OrderEvent) error
	CreateMessage(ctx context.Context, message *models.OrderMessage) error
	ListMessages(ctx context.Context, orderID uuid.UUID) ([]models.OrderMessage, error)
}

type listOrdersParams struct {
	CustomerID *uuid.UUID
	RunnerID   *uuid.UUID
	OpenOnly   bool
	Status     *enums.OrderStatus
	Limit      int
	Cursor     *pagination.Cursor
}
