package enums

// NotificationType groups in-app notifications by their origin.
type NotificationType string

const (
	NotificationTypeOrder   NotificationType = "order"
	NotificationTypeHandoff NotificationType = "handoff"
	NotificationTypeRefund  NotificationType = "refund"
	NotificationTypeMessage NotificationType = "message"
)

// IsValid reports whether the value is a known NotificationType.
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeOrder, NotificationTypeHandoff, NotificationTypeRefund, NotificationTypeMessage:
		return true
	default:
		return false
	}
}
