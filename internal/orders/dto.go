package orders

import (
	"time"

	"github.com/cashdash/cashdash-backend/pkg/db/models"
	"github.com/cashdash/cashdash-backend/pkg/enums"
	"github.com/cashdash/cashdash-backend/pkg/types"
	"github.com/google/uuid"
)

// CreateInput captures a customer's request for a cash delivery.
type CreateInput struct {
	CustomerID      uuid.UUID
	AmountCents     int
	DeliveryAddress types.Address
	PinnedBankID    *uuid.UUID
	Notes           *string
}

// GetInput identifies the order and the caller asking for it.
type GetInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Role    enums.UserRole
}

// ListScope selects which slice of orders a list call returns.
type ListScope string

const (
	// ListScopeMine returns the caller's own orders (placed or claimed).
	ListScopeMine ListScope = "mine"
	// ListScopeOpen returns unclaimed Pending orders for runners to browse.
	ListScopeOpen ListScope = "open"
)

// ListInput configures pagination and scope for the order list.
type ListInput struct {
	ActorID uuid.UUID
	Role    enums.UserRole
	Scope   ListScope
	Status  *enums.OrderStatus
	Limit   int
	Cursor  string
}

// ListResult wraps a page of orders and the cursor for the next page.
type ListResult struct {
	Items  []models.Order `json:"items"`
	Cursor string         `json:"cursor"`
}

// ClaimInput is a runner's attempt to win a pending order.
type ClaimInput struct {
	OrderID  uuid.UUID
	RunnerID uuid.UUID
}

// AdvanceInput moves an order one step along the delivery chain.
type AdvanceInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Target  enums.OrderStatus
}

// HandoffCode is returned exactly once, when the order enters Pending
// Handoff. The stored copy is a hash; the plaintext is never recoverable
// afterwards.
type HandoffCode struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AdvanceResult carries the updated order plus, for the handoff step only,
// the freshly issued code.
type AdvanceResult struct {
	Order   *models.Order `json:"order"`
	Handoff *HandoffCode  `json:"handoff,omitempty"`
}

// VerifyOtpInput is the customer's code submission at the handoff.
type VerifyOtpInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Code    string
}

// CancelInput ends an order from any non-terminal state.
type CancelInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	Role    enums.UserRole
	Reason  *string
}

// PostMessageInput adds a party-to-party note to an order.
type PostMessageInput struct {
	OrderID  uuid.UUID
	SenderID uuid.UUID
	Body     string
}

// ListMessagesInput identifies the order and the participant reading it.
type ListMessagesInput struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
}
