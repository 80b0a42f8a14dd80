package enums

// OutboxEventType names the domain events emitted through the outbox.
type OutboxEventType string

const (
	EventOrderCreated    OutboxEventType = "order.created"
	EventOrderClaimed    OutboxEventType = "order.claimed"
	EventOrderProgressed OutboxEventType = "order.progressed"
	EventOrderOtpIssued  OutboxEventType = "order.otp_issued"
	EventOrderCompleted  OutboxEventType = "order.completed"
	EventOrderCancelled  OutboxEventType = "order.cancelled"
	EventRefundRouted    OutboxEventType = "refund.routed"
	EventMessagePosted   OutboxEventType = "message.posted"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder     OutboxAggregateType = "order"
	AggregateRefundJob OutboxAggregateType = "refund_job"
)

// OutboxDLQErrorReason explains why an outbox event was parked.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	switch r {
	case OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable:
		return true
	}
	return false
}
