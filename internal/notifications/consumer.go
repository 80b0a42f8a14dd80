package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/cashdash/cashdash-backend/pkg/db/models"
	"github.com/cashdash/cashdash-backend/pkg/enums"
	"github.com/cashdash/cashdash-backend/pkg/logger"
	"github.com/cashdash/cashdash-backend/pkg/outbox"
	"github.com/cashdash/cashdash-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

const orderNotificationConsumer = "order-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type pushDispatcher interface {
	Dispatch(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error
}

// Consumer turns order lifecycle events into in-app notification rows and
// hands the same events to the push dispatcher. Row creation is the
// authoritative side effect; push delivery is best effort.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  idempotencyChecker
	dispatcher   pushDispatcher
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager idempotencyChecker, dispatcher pushDispatcher, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("push dispatcher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		dispatcher:   dispatcher,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	rows, err := buildRows(eventType, envelope)
	if err != nil {
		c.logg.Error(logCtx, "failed to build notification rows", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	for _, row := range rows {
		if err := c.repo.Create(ctx, row); err != nil {
			c.logg.Error(logCtx, "failed to create notification row", err)
			_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
			return processResult{nack: true}
		}
	}

	if err := c.dispatcher.Dispatch(ctx, eventType, envelope); err != nil {
		// Partial push delivery never fails the event: rows are already
		// committed and retrying would duplicate them.
		c.logg.Error(logCtx, "push dispatch incomplete", err)
	}

	return processResult{ack: true}
}

// buildRows maps an event to the in-app notification rows it produces. Events
// with no in-app audience return an empty slice.
func buildRows(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) ([]*models.Notification, error) {
	switch eventType {
	case enums.EventOrderCreated:
		return nil, nil

	case enums.EventOrderClaimed:
		var data payloads.OrderClaimedEvent
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, err
		}
		return []*models.Notification{{
			UserID:  data.CustomerID,
			Type:    enums.NotificationTypeOrder,
			Title:   "Runner on the way",
			Message: "A runner accepted your cash delivery order.",
			OrderID: &data.OrderID,
		}}, nil

	case enums.EventOrderProgressed:
		var data payloads.OrderProgressedEvent
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, err
		}
		message := ""
		switch data.Status {
		case enums.OrderStatusRunnerAtATM:
			message = "Your runner reached the ATM and is withdrawing your cash."
		case enums.OrderStatusCashWithdrawn:
			message = "Your runner has your cash and is heading to you."
		default:
			return nil, nil
		}
		return []*models.Notification{{
			UserID:  data.CustomerID,
			Type:    enums.NotificationTypeOrder,
			Title:   "Order update",
			Message: message,
			OrderID: &data.OrderID,
		}}, nil

	case enums.EventOrderOtpIssued:
		var data payloads.OrderOtpIssuedEvent
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, err
		}
		return []*models.Notification{{
			UserID:  data.CustomerID,
			Type:    enums.NotificationTypeHandoff,
			Title:   "Runner ready for handoff",
			Message: "Your runner is nearby. Ask them for the handoff code to confirm delivery.",
			OrderID: &data.OrderID,
		}}, nil

	case enums.EventOrderCompleted:
		var data payloads.OrderCompletedEvent
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, err
		}
		return []*models.Notification{
			{
				UserID:  data.CustomerID,
				Type:    enums.NotificationTypeOrder,
				Title:   "Delivery complete",
				Message: "The cash handoff was confirmed.",
				OrderID: &data.OrderID,
			},
			{
				UserID:  data.RunnerID,
				Type:    enums.NotificationTypeOrder,
				Title:   "Delivery complete",
				Message: "The cash handoff was confirmed.",
				OrderID: &data.OrderID,
			},
		}, nil

	case enums.EventOrderCancelled:
		var data payloads.OrderCancelledEvent
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, err
		}
		rows := []*models.Notification{{
			UserID:  data.CustomerID,
			Type:    enums.NotificationTypeOrder,
			Title:   "Order cancelled",
			Message: "This cash delivery order was cancelled.",
			OrderID: &data.OrderID,
		}}
		if data.RunnerID != nil {
			rows = append(rows, &models.Notification{
				UserID:  *data.RunnerID,
				Type:    enums.NotificationTypeOrder,
				Title:   "Order cancelled",
				Message: "This cash delivery order was cancelled.",
				OrderID: &data.OrderID,
			})
		}
		return rows, nil

	case enums.EventMessagePosted:
		var data payloads.MessagePostedEvent
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, err
		}
		var recipient uuid.UUID
		if data.SenderID != data.CustomerID {
			recipient = data.CustomerID
		} else if data.RunnerID != nil {
			recipient = *data.RunnerID
		} else {
			return nil, nil
		}
		return []*models.Notification{{
			UserID:  recipient,
			Type:    enums.NotificationTypeMessage,
			Title:   "New message",
			Message: data.Preview,
			OrderID: &data.OrderID,
		}}, nil

	case enums.EventRefundRouted:
		var data payloads.RefundRoutedEvent
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, err
		}
		switch data.Status {
		case enums.RefundJobStatusSucceeded:
			return []*models.Notification{{
				UserID:  data.UserID,
				Type:    enums.NotificationTypeRefund,
				Title:   "Refund on its way",
				Message: "Your refund was sent to your bank.",
				OrderID: &data.OrderID,
			}}, nil
		case enums.RefundJobStatusFailed:
			return []*models.Notification{{
				UserID:  data.UserID,
				Type:    enums.NotificationTypeRefund,
				Title:   "Refund needs attention",
				Message: "We could not route your refund automatically. Support will follow up.",
				OrderID: &data.OrderID,
			}}, nil
		default:
			return nil, nil
		}

	default:
		return nil, nil
	}
}
