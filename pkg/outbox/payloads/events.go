package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/cashdash/cashdash-backend/pkg/enums"
)

// OrderCreatedEvent signals a newly placed cash-delivery order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	AmountCents int       `json:"amount_cents"`
}

// OrderClaimedEvent is emitted when a runner wins the acceptance race.
type OrderClaimedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	RunnerID   uuid.UUID `json:"runner_id"`
	ClaimedAt  time.Time `json:"claimed_at"`
}

// OrderProgressedEvent reports a runner-side step along the delivery chain.
type OrderProgressedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	CustomerID uuid.UUID         `json:"customer_id"`
	RunnerID   uuid.UUID         `json:"runner_id"`
	Status     enums.OrderStatus `json:"status"`
}

// OrderOtpIssuedEvent is emitted when the handoff code is generated. The code
// itself never rides the event bus.
type OrderOtpIssuedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	RunnerID   uuid.UUID `json:"runner_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// OrderCompletedEvent is emitted after a verified handoff.
type OrderCompletedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	RunnerID    uuid.UUID `json:"runner_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// OrderCancelledEvent is emitted whenever either party cancels.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID  `json:"order_id"`
	CustomerID  uuid.UUID  `json:"customer_id"`
	RunnerID    *uuid.UUID `json:"runner_id,omitempty"`
	CancelledAt time.Time  `json:"cancelled_at"`
	Reason      string     `json:"reason,omitempty"`
}

// RefundRoutedEvent reports the outcome of refund routing for an order.
type RefundRoutedEvent struct {
	OrderID        uuid.UUID                   `json:"order_id"`
	RefundJobID    uuid.UUID                   `json:"refund_job_id"`
	UserID         uuid.UUID                   `json:"user_id"`
	AmountCents    int                         `json:"amount_cents"`
	Status         enums.RefundJobStatus       `json:"status"`
	FallbackReason *enums.RefundFallbackReason `json:"fallback_reason,omitempty"`
}

// MessagePostedEvent carries a party-to-party order note to the push path.
type MessagePostedEvent struct {
	OrderID    uuid.UUID  `json:"order_id"`
	MessageID  uuid.UUID  `json:"message_id"`
	SenderID   uuid.UUID  `json:"sender_id"`
	CustomerID uuid.UUID  `json:"customer_id"`
	RunnerID   *uuid.UUID `json:"runner_id,omitempty"`
	Preview    string     `json:"preview"`
}
