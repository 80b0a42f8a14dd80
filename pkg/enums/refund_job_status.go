package enums

import "fmt"

// RefundJobStatus tracks the one refund job an order may own.
type RefundJobStatus string

const (
	RefundJobStatusProcessing RefundJobStatus = "processing"
	RefundJobStatusSucceeded  RefundJobStatus = "succeeded"
	RefundJobStatusFailed     RefundJobStatus = "failed"
)

var validRefundJobStatuses = []RefundJobStatus{
	RefundJobStatusProcessing,
	RefundJobStatusSucceeded,
	RefundJobStatusFailed,
}

// String implements fmt.Stringer.
func (s RefundJobStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RefundJobStatus.
func (s RefundJobStatus) IsValid() bool {
	for _, candidate := range validRefundJobStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRefundJobStatus converts raw input into a RefundJobStatus.
func ParseRefundJobStatus(value string) (RefundJobStatus, error) {
	for _, candidate := range validRefundJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid refund job status %q", value)
}

// RefundFallbackReason records why a pinned destination was bypassed in
// favor of the customer's primary bank. A job with no pin at all carries no
// fallback reason.
type RefundFallbackReason string

const (
	RefundFallbackPinNotFound RefundFallbackReason = "pin_not_found"
	RefundFallbackPinNotOwned RefundFallbackReason = "pin_not_owned"
	RefundFallbackPinUnlinked RefundFallbackReason = "pin_unlinked"
	RefundFallbackPinInactive RefundFallbackReason = "pin_inactive"
)

// String implements fmt.Stringer.
func (r RefundFallbackReason) String() string {
	return string(r)
}
