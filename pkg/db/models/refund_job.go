package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cashdash/cashdash-backend/pkg/enums"
)

// RefundJob records refund routing for a cancelled order. The unique order_id
// index makes routing idempotent: re-routing upserts in place rather than
// creating a second job.
type RefundJob struct {
	ID             uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID                   `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	UserID         uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;index"`
	BankAccountID  *uuid.UUID                  `gorm:"column:bank_account_id;type:uuid"`
	AmountCents    int                         `gorm:"column:amount_cents;not null"`
	Status         enums.RefundJobStatus       `gorm:"column:status;type:refund_job_status;not null;default:'processing'"`
	FallbackReason *enums.RefundFallbackReason `gorm:"column:fallback_reason;type:text"`
	ProviderRef    *string                     `gorm:"column:provider_ref"`
	AttemptCount   int                         `gorm:"column:attempt_count;not null;default:0"`
	LastError      *string                     `gorm:"column:last_error"`
	CompletedAt    *time.Time                  `gorm:"column:completed_at"`
	CreatedAt      time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
