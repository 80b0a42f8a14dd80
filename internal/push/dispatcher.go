package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/cashdash/cashdash-backend/pkg/db/models"
	"github.com/cashdash/cashdash-backend/pkg/enums"
	"github.com/cashdash/cashdash-backend/pkg/logger"
	"github.com/cashdash/cashdash-backend/pkg/metrics"
	"github.com/cashdash/cashdash-backend/pkg/outbox"
	"github.com/cashdash/cashdash-backend/pkg/outbox/payloads"
)

// ErrTokenUnregistered marks a device token the gateway no longer accepts.
// The dispatcher retires such tokens instead of retrying them.
var ErrTokenUnregistered = errors.New("device token unregistered")

var errUnknownEvent = errors.New("no push template for event type")

// Note is a rendered notification ready for any gateway.
type Note struct {
	Title string
	Body  string
	Data  map[string]string
}

// Sender delivers one note to one device token on a single platform gateway.
type Sender interface {
	Name() string
	Send(ctx context.Context, token string, note Note) error
}

type deviceSource interface {
	ActiveDevicesForRole(ctx context.Context, userID uuid.UUID, appRole enums.DeviceAppRole) ([]models.Device, error)
	RetireToken(ctx context.Context, token string) error
}

type recipient struct {
	UserID  uuid.UUID
	AppRole enums.DeviceAppRole
}

// Dispatcher fans a domain event out to every active device of its
// recipients. Delivery is best effort: one device failing never blocks the
// rest, and the caller is expected to log rather than propagate the error.
type Dispatcher struct {
	devices deviceSource
	senders map[enums.DevicePlatform]Sender
	metrics *metrics.PushMetrics
	logg    *logger.Logger
}

// NewDispatcher wires the dispatcher. Either sender may be nil when that
// platform's credentials are not configured; its devices are then skipped
// with a log line instead of an error.
func NewDispatcher(devices deviceSource, fcm Sender, apns Sender, pushMetrics *metrics.PushMetrics, logg *logger.Logger) (*Dispatcher, error) {
	if devices == nil {
		return nil, fmt.Errorf("device source required")
	}
	if pushMetrics == nil {
		return nil, fmt.Errorf("push metrics required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}

	senders := map[enums.DevicePlatform]Sender{}
	if fcm != nil {
		senders[enums.DevicePlatformAndroid] = fcm
		senders[enums.DevicePlatformWeb] = fcm
	}
	if apns != nil {
		senders[enums.DevicePlatformIOS] = apns
	}

	return &Dispatcher{
		devices: devices,
		senders: senders,
		metrics: pushMetrics,
		logg:    logg,
	}, nil
}

// Dispatch renders the event and delivers it per device. The returned error
// aggregates per-device failures for logging; partial delivery is success
// from the order lifecycle's point of view.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"event_id":   envelope.EventID,
		"event_type": eventType,
	})

	recipients, note, err := resolve(eventType, envelope)
	if errors.Is(err, errUnknownEvent) {
		d.logg.Warn(logCtx, "no push template for event type, skipping")
		return nil
	}
	if err != nil {
		d.logg.Error(logCtx, "failed to render push notification", err)
		return err
	}
	if len(recipients) == 0 || note == nil {
		return nil
	}

	var deliveryErr error
	for _, rcpt := range recipients {
		devices, err := d.devices.ActiveDevicesForRole(ctx, rcpt.UserID, rcpt.AppRole)
		if err != nil {
			d.logg.Error(logCtx, "failed to load recipient devices", err)
			deliveryErr = multierr.Append(deliveryErr, err)
			continue
		}
		for _, device := range devices {
			if err := d.deliver(ctx, device, *note); err != nil {
				deliveryErr = multierr.Append(deliveryErr, err)
			}
		}
	}
	return deliveryErr
}

func (d *Dispatcher) deliver(ctx context.Context, device models.Device, note Note) error {
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"device_id": device.ID.String(),
		"platform":  device.Platform,
	})

	sender, ok := d.senders[device.Platform]
	if !ok {
		d.logg.Warn(logCtx, "push provider not configured for platform, skipping device")
		return nil
	}

	start := time.Now()
	err := sender.Send(ctx, device.Token, note)
	d.metrics.ObserveSend(sender.Name(), time.Since(start))

	if err == nil {
		d.metrics.IncSent(sender.Name())
		return nil
	}
	if errors.Is(err, ErrTokenUnregistered) {
		if retireErr := d.devices.RetireToken(ctx, device.Token); retireErr != nil {
			d.logg.Error(logCtx, "failed to retire dead token", retireErr)
		}
		return nil
	}

	d.metrics.IncFailed(sender.Name())
	d.logg.Error(logCtx, "push delivery failed", err)
	return err
}

// resolve maps an event to its recipients and rendered note. Known events
// with no push audience return no recipients; unknown events are a logged
// no-op upstream.
func resolve(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) ([]recipient, *Note, error) {
	switch eventType {
	case enums.EventOrderCreated:
		// The customer performed this themselves; nothing to push.
		return nil, nil, nil

	case enums.EventOrderClaimed:
		var data payloads.OrderClaimedEvent
		if err := decode(envelope, &data); err != nil {
			return nil, nil, err
		}
		return customerOnly(data.CustomerID), &Note{
			Title: "Runner on the way",
			Body:  "A runner accepted your cash delivery order.",
			Data:  orderData(data.OrderID, eventType),
		}, nil

	case enums.EventOrderProgressed:
		var data payloads.OrderProgressedEvent
		if err := decode(envelope, &data); err != nil {
			return nil, nil, err
		}
		note := progressNote(data.Status)
		if note == nil {
			return nil, nil, nil
		}
		note.Data = orderData(data.OrderID, eventType)
		return customerOnly(data.CustomerID), note, nil

	case enums.EventOrderOtpIssued:
		var data payloads.OrderOtpIssuedEvent
		if err := decode(envelope, &data); err != nil {
			return nil, nil, err
		}
		return customerOnly(data.CustomerID), &Note{
			Title: "Runner ready for handoff",
			Body:  "Your runner is nearby. Ask them for the handoff code to confirm delivery.",
			Data:  orderData(data.OrderID, eventType),
		}, nil

	case enums.EventOrderCompleted:
		var data payloads.OrderCompletedEvent
		if err := decode(envelope, &data); err != nil {
			return nil, nil, err
		}
		recipients := append(
			customerOnly(data.CustomerID),
			recipient{UserID: data.RunnerID, AppRole: enums.DeviceAppRoleRunner},
		)
		return recipients, &Note{
			Title: "Delivery complete",
			Body:  "The cash handoff was confirmed.",
			Data:  orderData(data.OrderID, eventType),
		}, nil

	case enums.EventOrderCancelled:
		var data payloads.OrderCancelledEvent
		if err := decode(envelope, &data); err != nil {
			return nil, nil, err
		}
		recipients := customerOnly(data.CustomerID)
		if data.RunnerID != nil {
			recipients = append(recipients, recipient{UserID: *data.RunnerID, AppRole: enums.DeviceAppRoleRunner})
		}
		return recipients, &Note{
			Title: "Order cancelled",
			Body:  "This cash delivery order was cancelled.",
			Data:  orderData(data.OrderID, eventType),
		}, nil

	case enums.EventMessagePosted:
		var data payloads.MessagePostedEvent
		if err := decode(envelope, &data); err != nil {
			return nil, nil, err
		}
		// Only the other party hears about it, never the sender.
		var recipients []recipient
		if data.SenderID != data.CustomerID {
			recipients = customerOnly(data.CustomerID)
		} else if data.RunnerID != nil {
			recipients = append(recipients, recipient{UserID: *data.RunnerID, AppRole: enums.DeviceAppRoleRunner})
		}
		return recipients, &Note{
			Title: "New message",
			Body:  data.Preview,
			Data:  orderData(data.OrderID, eventType),
		}, nil

	case enums.EventRefundRouted:
		var data payloads.RefundRoutedEvent
		if err := decode(envelope, &data); err != nil {
			return nil, nil, err
		}
		note := refundNote(data.Status)
		if note == nil {
			return nil, nil, nil
		}
		note.Data = orderData(data.OrderID, eventType)
		return customerOnly(data.UserID), note, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", errUnknownEvent, eventType)
	}
}

func progressNote(status enums.OrderStatus) *Note {
	switch status {
	case enums.OrderStatusRunnerAtATM:
		return &Note{
			Title: "Runner at ATM",
			Body:  "Your runner reached the ATM and is withdrawing your cash.",
		}
	case enums.OrderStatusCashWithdrawn:
		return &Note{
			Title: "Cash withdrawn",
			Body:  "Your runner has your cash and is heading to you.",
		}
	default:
		return nil
	}
}

func refundNote(status enums.RefundJobStatus) *Note {
	switch status {
	case enums.RefundJobStatusSucceeded:
		return &Note{
			Title: "Refund on its way",
			Body:  "Your refund was sent to your bank.",
		}
	case enums.RefundJobStatusFailed:
		return &Note{
			Title: "Refund needs attention",
			Body:  "We could not route your refund automatically. Support will follow up.",
		}
	default:
		return nil
	}
}

func customerOnly(customerID uuid.UUID) []recipient {
	return []recipient{{UserID: customerID, AppRole: enums.DeviceAppRoleCustomer}}
}

func orderData(orderID uuid.UUID, eventType enums.OutboxEventType) map[string]string {
	return map[string]string{
		"order_id":   orderID.String(),
		"event_type": string(eventType),
	}
}

func decode(envelope outbox.PayloadEnvelope, target any) error {
	if err := json.Unmarshal(envelope.Data, target); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}
	return nil
}
