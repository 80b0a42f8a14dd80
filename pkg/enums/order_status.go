package enums

import "fmt"

// OrderStatus tracks the lifecycle of a cash-delivery order. The string
// values are the exact statuses persisted and exposed at the API boundary.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "Pending"
	OrderStatusRunnerAccepted OrderStatus = "Runner Accepted"
	OrderStatusRunnerAtATM    OrderStatus = "Runner at ATM"
	OrderStatusCashWithdrawn  OrderStatus = "Cash Withdrawn"
	OrderStatusPendingHandoff OrderStatus = "Pending Handoff"
	OrderStatusCompleted      OrderStatus = "Completed"
	OrderStatusCancelled      OrderStatus = "Cancelled"
)

// orderStatusChain is the forward progression; cancellation is the only
// branch and is reachable from every non-terminal status.
var orderStatusChain = []OrderStatus{
	OrderStatusPending,
	OrderStatusRunnerAccepted,
	OrderStatusRunnerAtATM,
	OrderStatusCashWithdrawn,
	OrderStatusPendingHandoff,
	OrderStatusCompleted,
}

var validOrderStatuses = append(append([]OrderStatus{}, orderStatusChain...), OrderStatusCancelled)

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the order can no longer change state.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Prev returns the status that must be current for a forward transition
// into s to be legal. Pending and Cancelled have no forward predecessor.
func (s OrderStatus) Prev() (OrderStatus, bool) {
	for i := 1; i < len(orderStatusChain); i++ {
		if orderStatusChain[i] == s {
			return orderStatusChain[i-1], true
		}
	}
	return "", false
}

// CanTransitionTo reports whether the linear chain (or the cancellation
// escape hatch) permits moving from s to target. No skipping, no backward
// moves.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if target == OrderStatusCancelled {
		return true
	}
	prev, ok := target.Prev()
	if !ok {
		return false
	}
	return prev == s
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
