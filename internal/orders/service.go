package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cashdash/cashdash-backend/pkg/config"
	"github.com/cashdash/cashdash-backend/pkg/db/models"
	"github.com/cashdash/cashdash-backend/pkg/enums"
	pkgerrors "github.com/cashdash/cashdash-backend/pkg/errors"
	"github.com/cashdash/cashdash-backend/pkg/logger"
	"github.com/cashdash/cashdash-backend/pkg/outbox"
	"github.com/cashdash/cashdash-backend/pkg/outbox/payloads"
	"github.com/cashdash/cashdash-backend/pkg/pagination"
	"github.com/cashdash/cashdash-backend/pkg/security"
	"github.com/cashdash/cashdash-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxOtpAttempts caps wrong-code submissions per issued handoff code.
const maxOtpAttempts = 3

const messageBodyMaxLen = 2000
const messagePreviewLen = 120

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// refundRouter kicks off refund routing after a committed cancellation. The
// call is best-effort; routing failures are recorded, never surfaced to the
// cancelling caller.
type refundRouter interface {
	RouteForOrder(ctx context.Context, orderID uuid.UUID) error
}

// Service defines the order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, input GetInput) (*models.Order, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Claim(ctx context.Context, input ClaimInput) (*models.Order, error)
	Advance(ctx context.Context, input AdvanceInput) (*AdvanceResult, error)
	VerifyOtp(ctx context.Context, input VerifyOtpInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	PostMessage(ctx context.Context, input PostMessageInput) (*models.OrderMessage, error)
	ListMessages(ctx context.Context, input ListMessagesInput) ([]models.OrderMessage, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	refunds refundRouter
	logg    *logger.Logger
	cfg     config.OrdersConfig
	now     func() time.Time
}

// NewService wires the order lifecycle service.
func NewService(repo Repository, tx txRunner, outboxPub outboxPublisher, refunds refundRouter, logg *logger.Logger, cfg config.OrdersConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxPub == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if refunds == nil {
		return nil, fmt.Errorf("refund router required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.OTPSecret == "" {
		return nil, fmt.Errorf("otp secret required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outboxPub,
		refunds: refunds,
		logg:    logg,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if s.cfg.MaxAmountCents > 0 && input.AmountCents > s.cfg.MaxAmountCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds the delivery limit")
	}
	if err := validateAddress(input.DeliveryAddress); err != nil {
		return nil, err
	}

	order := &models.Order{
		CustomerID:      input.CustomerID,
		Status:          enums.OrderStatusPending,
		AmountCents:     input.AmountCents,
		Fees:            computeFees(input.AmountCents, s.cfg.ServiceFeeBP, s.cfg.RunnerFeeCents),
		DeliveryAddress: input.DeliveryAddress,
		PinnedBankID:    input.PinnedBankID,
		Notes:           input.Notes,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		created, err := repo.Create(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		order = created

		if err := s.appendEvent(ctx, repo, order.ID, enums.OrderEventCreated, &input.CustomerID, map[string]any{
			"amount_cents": order.AmountCents,
			"total_cents":  order.Fees.TotalCents,
		}); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.CustomerID, enums.UserRoleCustomer),
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				CustomerID:  order.CustomerID,
				AmountCents: order.AmountCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, input GetInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if !canViewOrder(order, input.ActorID, input.Role) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order is not visible to caller")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	params := listOrdersParams{
		Limit:  input.Limit,
		Status: input.Status,
	}
	switch input.Scope {
	case ListScopeOpen:
		if input.Role != enums.UserRoleRunner && input.Role != enums.UserRoleAdmin {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "open order feed is runner-only")
		}
		params.OpenOnly = true
		params.Status = nil
	case ListScopeMine, "":
		actorID := input.ActorID
		if input.Role == enums.UserRoleRunner {
			params.RunnerID = &actorID
		} else {
			params.CustomerID = &actorID
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown list scope")
	}

	if input.Cursor != "" {
		cursor, err := pagination.ParseCursor(input.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		params.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) Claim(ctx context.Context, input ClaimInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.RunnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		won, err := repo.ClaimPending(ctx, input.OrderID, input.RunnerID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim order")
		}

		order, err = repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if !won {
			if order.RunnerID != nil && *order.RunnerID == input.RunnerID {
				// Retried claim from the winning runner.
				return nil
			}
			if order.Status.IsTerminal() {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order is no longer open")
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "order already accepted by another runner")
		}

		if err := s.appendEvent(ctx, repo, order.ID, enums.OrderEventClaimed, &input.RunnerID, nil); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderClaimed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.RunnerID, enums.UserRoleRunner),
			Data: payloads.OrderClaimedEvent{
				OrderID:    order.ID,
				CustomerID: order.CustomerID,
				RunnerID:   input.RunnerID,
				ClaimedAt:  derefTime(order.ClaimedAt, s.now()),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Advance(ctx context.Context, input AdvanceInput) (*AdvanceResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	prev, ok := advancePredecessor(input.Target)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target status is not an advance step")
	}

	result := &AdvanceResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.RunnerID == nil || *order.RunnerID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned runner can advance the order")
		}

		now := s.now()
		updates := map[string]any{}
		eventType := enums.OrderEventRunnerAtATM
		var handoff *HandoffCode

		switch input.Target {
		case enums.OrderStatusRunnerAtATM:
			updates["at_atm_at"] = now
		case enums.OrderStatusCashWithdrawn:
			updates["cash_drawn_at"] = now
			eventType = enums.OrderEventCashWithdrawn
		case enums.OrderStatusPendingHandoff:
			code, err := security.GenerateOTP()
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate handoff code")
			}
			expiresAt := now.Add(s.cfg.OTPTTL)
			updates["handoff_start_at"] = now
			updates["otp_code_hash"] = security.HashOTP(code, []byte(s.cfg.OTPSecret))
			updates["otp_expires_at"] = expiresAt
			updates["otp_attempts"] = 0
			eventType = enums.OrderEventOtpIssued
			handoff = &HandoffCode{Code: code, ExpiresAt: expiresAt}
		}

		applied, err := repo.AdvanceStatus(ctx, order.ID, prev, input.Target, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance order")
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order state changed, re-fetch and retry")
		}

		var metadata map[string]any
		if handoff != nil {
			metadata = map[string]any{"expires_at": handoff.ExpiresAt}
		}
		if err := s.appendEvent(ctx, repo, order.ID, eventType, &input.ActorID, metadata); err != nil {
			return err
		}

		order, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		result.Order = order
		result.Handoff = handoff

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderProgressed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.ActorID, enums.UserRoleRunner),
			Data: payloads.OrderProgressedEvent{
				OrderID:    order.ID,
				CustomerID: order.CustomerID,
				RunnerID:   input.ActorID,
				Status:     order.Status,
			},
		}
		if handoff != nil {
			event.EventType = enums.EventOrderOtpIssued
			event.Data = payloads.OrderOtpIssuedEvent{
				OrderID:    order.ID,
				CustomerID: order.CustomerID,
				RunnerID:   input.ActorID,
				ExpiresAt:  handoff.ExpiresAt,
			}
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) VerifyOtp(ctx context.Context, input VerifyOtpInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	code := strings.TrimSpace(input.Code)
	if len(code) != 6 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code must be 6 digits")
	}

	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.CustomerID != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the customer can confirm the handoff")
	}
	if order.Status != enums.OrderStatusPendingHandoff {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting handoff")
	}

	if order.OtpCodeHash == nil || order.OtpExpiresAt == nil || s.now().After(*order.OtpExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeOtpRejected, "handoff code rejected").
			WithDetails(map[string]any{"reason": "expired"})
	}
	if order.OtpAttempts >= maxOtpAttempts {
		s.recordOtpFailure(ctx, order, "attempts_exhausted")
		return nil, pkgerrors.New(pkgerrors.CodeOtpRejected, "handoff code rejected").
			WithDetails(map[string]any{"reason": "attempts_exhausted", "escalation": "support"})
	}
	if !security.VerifyOTP(code, *order.OtpCodeHash, []byte(s.cfg.OTPSecret)) {
		s.recordOtpFailure(ctx, order, "invalid_code")
		remaining := maxOtpAttempts - order.OtpAttempts - 1
		if remaining < 0 {
			remaining = 0
		}
		return nil, pkgerrors.New(pkgerrors.CodeOtpRejected, "handoff code rejected").
			WithDetails(map[string]any{"reason": "invalid_code", "attempts_remaining": remaining})
	}

	var completed *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		now := s.now()
		applied, err := repo.CompleteWithVerifiedOtp(ctx, order.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting handoff")
		}

		if err := s.appendEvent(ctx, repo, order.ID, enums.OrderEventCompleted, &input.ActorID, nil); err != nil {
			return err
		}

		completed, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.ActorID, enums.UserRoleCustomer),
			Data: payloads.OrderCompletedEvent{
				OrderID:     order.ID,
				CustomerID:  order.CustomerID,
				RunnerID:    derefUUID(completed.RunnerID),
				CompletedAt: derefTime(completed.CompletedAt, now),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var err error
		order, err = repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !isOrderParty(order, input.ActorID) && input.Role != enums.UserRoleAdmin {
			return pkgerrors.New(pkgerrors.CodeForbidden, "caller is not a party to the order")
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already reached a final state")
		}

		now := s.now()
		updates := map[string]any{
			"cancelled_at":   now,
			"cancel_reason":  input.Reason,
			"otp_code_hash":  nil,
			"otp_expires_at": nil,
		}
		applied, err := repo.AdvanceStatus(ctx, order.ID, order.Status, enums.OrderStatusCancelled, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order state changed, re-fetch and retry")
		}

		var metadata map[string]any
		if input.Reason != nil {
			metadata = map[string]any{"reason": *input.Reason}
		}
		if err := s.appendEvent(ctx, repo, order.ID, enums.OrderEventCancelled, &input.ActorID, metadata); err != nil {
			return err
		}

		order, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.ActorID, input.Role),
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				CustomerID:  order.CustomerID,
				RunnerID:    order.RunnerID,
				CancelledAt: derefTime(order.CancelledAt, now),
				Reason:      derefString(input.Reason),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	// Refund routing rides behind the committed cancellation; a routing
	// failure leaves the job to the retry sweep and never unwinds the cancel.
	if routeErr := s.refunds.RouteForOrder(ctx, order.ID); routeErr != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Error(logCtx, "refund routing failed after cancellation", routeErr)
	}
	return order, nil
}

func (s *service) PostMessage(ctx context.Context, input PostMessageInput) (*models.OrderMessage, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.SenderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body required")
	}
	if len(body) > messageBodyMaxLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body too long")
	}

	message := &models.OrderMessage{
		OrderID:  input.OrderID,
		SenderID: input.SenderID,
		Body:     body,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !isOrderParty(order, input.SenderID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "caller is not a party to the order")
		}

		if err := repo.CreateMessage(ctx, message); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create message")
		}

		if err := s.appendEvent(ctx, repo, order.ID, enums.OrderEventMessagePosted, &input.SenderID, map[string]any{
			"message_id": message.ID,
		}); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMessagePosted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.SenderID, roleOnOrder(order, input.SenderID)),
			Data: payloads.MessagePostedEvent{
				OrderID:    order.ID,
				MessageID:  message.ID,
				SenderID:   input.SenderID,
				CustomerID: order.CustomerID,
				RunnerID:   order.RunnerID,
				Preview:    previewBody(body),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

func (s *service) ListMessages(ctx context.Context, input ListMessagesInput) ([]models.OrderMessage, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !isOrderParty(order, input.ActorID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "caller is not a party to the order")
	}

	messages, err := s.repo.ListMessages(ctx, input.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages")
	}
	return messages, nil
}

// recordOtpFailure bumps the attempt counter and appends the failure fact in
// its own committed transaction, so the rejection returned to the caller does
// not roll the increment back.
func (s *service) recordOtpFailure(ctx context.Context, order *models.Order, reason string) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.IncrementOtpAttempts(ctx, order.ID); err != nil {
			return err
		}
		return s.appendEvent(ctx, repo, order.ID, enums.OrderEventOtpFailed, &order.CustomerID, map[string]any{
			"reason": reason,
		})
	})
	if err != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Error(logCtx, "record otp failure", err)
	}
}

func (s *service) appendEvent(ctx context.Context, repo Repository, orderID uuid.UUID, eventType enums.OrderEventType, actorID *uuid.UUID, metadata map[string]any) error {
	event := &models.OrderEvent{
		OrderID: orderID,
		Type:    eventType,
		ActorID: actorID,
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode event metadata")
		}
		event.Metadata = raw
	}
	if err := repo.AppendEvent(ctx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order event")
	}
	return nil
}

// computeFees derives the service fee from basis points with decimal math,
// keeping all storage in integer cents.
func computeFees(amountCents, serviceFeeBP, runnerFeeCents int) types.FeeBreakdown {
	amount := decimal.NewFromInt(int64(amountCents))
	serviceFee := int(amount.Mul(decimal.New(int64(serviceFeeBP), -4)).Round(0).IntPart())
	return types.FeeBreakdown{
		AmountCents:     amountCents,
		ServiceFeeCents: serviceFee,
		RunnerFeeCents:  runnerFeeCents,
		TotalCents:      amountCents + serviceFee + runnerFeeCents,
	}
}

// advancePredecessor maps a runner-side advance target to the status the
// order must currently hold. Claiming and completion have their own paths.
func advancePredecessor(target enums.OrderStatus) (enums.OrderStatus, bool) {
	switch target {
	case enums.OrderStatusRunnerAtATM, enums.OrderStatusCashWithdrawn, enums.OrderStatusPendingHandoff:
		return target.Prev()
	default:
		return "", false
	}
}

func validateAddress(address types.Address) error {
	if strings.TrimSpace(address.Line1) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "address line1 required")
	}
	if strings.TrimSpace(address.City) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "address city required")
	}
	if strings.TrimSpace(address.State) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "address state required")
	}
	if strings.TrimSpace(address.PostalCode) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "address postal code required")
	}
	return nil
}

func canViewOrder(order *models.Order, actorID uuid.UUID, role enums.UserRole) bool {
	if role == enums.UserRoleAdmin {
		return true
	}
	if isOrderParty(order, actorID) {
		return true
	}
	// Runners may inspect open orders before deciding to claim.
	return role == enums.UserRoleRunner && order.Status == enums.OrderStatusPending
}

func isOrderParty(order *models.Order, actorID uuid.UUID) bool {
	if order.CustomerID == actorID {
		return true
	}
	return order.RunnerID != nil && *order.RunnerID == actorID
}

func roleOnOrder(order *models.Order, actorID uuid.UUID) enums.UserRole {
	if order.CustomerID == actorID {
		return enums.UserRoleCustomer
	}
	return enums.UserRoleRunner
}

func buildActor(userID uuid.UUID, role enums.UserRole) *outbox.ActorRef {
	return &outbox.ActorRef{
		UserID: userID,
		Role:   string(role),
	}
}

func previewBody(body string) string {
	runes := []rune(body)
	if len(runes) <= messagePreviewLen {
		return body
	}
	return string(runes[:messagePreviewLen])
}

func derefTime(value *time.Time, fallback time.Time) time.Time {
	if value != nil {
		return *value
	}
	return fallback
}

func derefUUID(value *uuid.UUID) uuid.UUID {
	if value != nil {
		return *value
	}
	return uuid.Nil
}

func derefString(value *string) string {
	if value != nil {
		return *value
	}
	return ""
}
