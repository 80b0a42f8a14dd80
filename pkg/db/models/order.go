package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cashdash/cashdash-backend/pkg/enums"
	"github.com/cashdash/cashdash-backend/pkg/types"
)

// Order is the cash-delivery order aggregate. Status moves along a linear
// chain enforced by conditional updates; OTP fields are populated only while
// the order sits in Pending Handoff.
type Order struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID      uuid.UUID          `gorm:"column:customer_id;type:uuid;not null;index"`
	RunnerID        *uuid.UUID         `gorm:"column:runner_id;type:uuid;index"`
	Status          enums.OrderStatus  `gorm:"column:status;type:order_status;not null;default:'Pending'"`
	AmountCents     int                `gorm:"column:amount_cents;not null"`
	Fees            types.FeeBreakdown `gorm:"column:fees;type:jsonb;serializer:json"`
	DeliveryAddress types.Address      `gorm:"column:delivery_address;type:address_t;not null"`
	PinnedBankID    *uuid.UUID         `gorm:"column:pinned_bank_id;type:uuid"`
	Notes           *string            `gorm:"column:notes"`

	OtpCodeHash  *string    `gorm:"column:otp_code_hash"`
	OtpExpiresAt *time.Time `gorm:"column:otp_expires_at"`
	OtpAttempts  int        `gorm:"column:otp_attempts;not null;default:0"`

	ClaimedAt      *time.Time `gorm:"column:claimed_at"`
	AtATMAt        *time.Time `gorm:"column:at_atm_at"`
	CashDrawnAt    *time.Time `gorm:"column:cash_drawn_at"`
	HandoffStartAt *time.Time `gorm:"column:handoff_start_at"`
	CompletedAt    *time.Time `gorm:"column:completed_at"`
	CancelledAt    *time.Time `gorm:"column:cancelled_at"`
	CancelReason   *string    `gorm:"column:cancel_reason"`

	Events    []OrderEvent `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}
