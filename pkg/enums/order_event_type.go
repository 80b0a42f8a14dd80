package enums

import "fmt"

// OrderEventType tags the append-only facts recorded against an order.
type OrderEventType string

const (
	OrderEventCreated        OrderEventType = "order.created"
	OrderEventClaimed        OrderEventType = "order.claimed"
	OrderEventRunnerAtATM    OrderEventType = "order.runner_at_atm"
	OrderEventCashWithdrawn  OrderEventType = "order.cash_withdrawn"
	OrderEventOtpIssued      OrderEventType = "order.otp_issued"
	OrderEventOtpFailed      OrderEventType = "order.otp_failed"
	OrderEventCompleted      OrderEventType = "order.completed"
	OrderEventCancelled      OrderEventType = "order.cancelled"
	OrderEventRefundRouted   OrderEventType = "order.refund_routed"
	OrderEventMessagePosted  OrderEventType = "order.message_posted"
	OrderEventRefundAttempts OrderEventType = "order.refund_attempted"
)

var validOrderEventTypes = []OrderEventType{
	OrderEventCreated,
	OrderEventClaimed,
	OrderEventRunnerAtATM,
	OrderEventCashWithdrawn,
	OrderEventOtpIssued,
	OrderEventOtpFailed,
	OrderEventCompleted,
	OrderEventCancelled,
	OrderEventRefundRouted,
	OrderEventMessagePosted,
	OrderEventRefundAttempts,
}

// String implements fmt.Stringer.
func (t OrderEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known OrderEventType.
func (t OrderEventType) IsValid() bool {
	for _, candidate := range validOrderEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseOrderEventType converts raw input into an OrderEventType.
func ParseOrderEventType(value string) (OrderEventType, error) {
	for _, candidate := range validOrderEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order event type %q", value)
}
