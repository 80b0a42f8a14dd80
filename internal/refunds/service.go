package refunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cashdash/cashdash-backend/pkg/config"
	"github.com/cashdash/cashdash-backend/pkg/db/models"
	"github.com/cashdash/cashdash-backend/pkg/enums"
	pkgerrors "github.com/cashdash/cashdash-backend/pkg/errors"
	"github.com/cashdash/cashdash-backend/pkg/logger"
	"github.com/cashdash/cashdash-backend/pkg/outbox"
	"github.com/cashdash/cashdash-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// outboxPublisher emits at most one refund.routed event per job; routing can
// be retried, so the deduplicating emit is the right primitive here.
type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service routes refunds for cancelled orders.
type Service interface {
	Route(ctx context.Context, orderID uuid.UUID) (*models.RefundJob, error)
	RouteForOrder(ctx context.Context, orderID uuid.UUID) error
	RetrySweep(ctx context.Context, updatedBefore time.Time, limit int) (int, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	provider PayoutProvider
	logg     *logger.Logger
	cfg      config.RefundsConfig
	now      func() time.Time
}

// NewService wires the refund router.
func NewService(repo Repository, tx txRunner, outboxPub outboxPublisher, provider PayoutProvider, logg *logger.Logger, cfg config.RefundsConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxPub == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if provider == nil {
		return nil, fmt.Errorf("payout provider required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outboxPub,
		provider: provider,
		logg:     logg,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// RouteForOrder is the fire-and-forget entry point used on cancellation.
func (s *service) RouteForOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.Route(ctx, orderID)
	return err
}

// Route selects a destination, upserts the order's single refund job, and
// drives the payout provider. Safe to call repeatedly: the job row is keyed
// by order and mutated in place.
func (s *service) Route(ctx context.Context, orderID uuid.UUID) (*models.RefundJob, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var job *models.RefundJob
	var noDestination *pkgerrors.Error
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "refund routing requires a cancelled order")
		}

		existing, err := repo.FindJobByOrderID(ctx, orderID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund job")
		}
		if existing != nil && existing.Status == enums.RefundJobStatusSucceeded {
			job = existing
			return nil
		}

		destination, fallbackReason, findErr := s.selectDestination(ctx, repo, order)
		if findErr != nil {
			return findErr
		}

		upserted := &models.RefundJob{
			OrderID:        orderID,
			UserID:         order.CustomerID,
			AmountCents:    order.Fees.TotalCents,
			Status:         enums.RefundJobStatusProcessing,
			FallbackReason: fallbackReason,
		}
		if destination != nil {
			upserted.BankAccountID = &destination.ID
		} else {
			upserted.Status = enums.RefundJobStatusFailed
		}

		job, err = repo.UpsertJob(ctx, upserted)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert refund job")
		}

		if destination == nil {
			reason := "no refund destination on file"
			if err := repo.UpdateJob(ctx, job.ID, map[string]any{"last_error": reason}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record routing failure")
			}
			noDestination = pkgerrors.New(pkgerrors.CodeNoRefundDest, reason).
				WithDetails(map[string]any{"escalation": "support"})
			return s.emitRouted(ctx, tx, job, enums.RefundJobStatusFailed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if noDestination != nil {
		return nil, noDestination
	}
	if job.Status == enums.RefundJobStatusSucceeded {
		return job, nil
	}

	return s.execute(ctx, job)
}

// execute drives the payout provider for a routed job and records the
// outcome. The provider call sits outside the routing transaction.
func (s *service) execute(ctx context.Context, job *models.RefundJob) (*models.RefundJob, error) {
	logCtx := s.logg.WithOrderID(ctx, job.OrderID.String())

	if s.cfg.MaxAttempts > 0 && job.AttemptCount >= s.cfg.MaxAttempts {
		failErr := s.finalize(ctx, job, enums.RefundJobStatusFailed, map[string]any{
			"last_error": "max refund attempts reached",
		})
		if failErr != nil {
			return nil, failErr
		}
		return s.repo.FindJobByOrderID(ctx, job.OrderID)
	}

	if err := s.repo.UpdateJob(ctx, job.ID, map[string]any{
		"attempt_count": gorm.Expr("attempt_count + 1"),
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund attempt")
	}

	destination, err := s.repo.FindBankAccount(ctx, *job.BankAccountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund destination")
	}
	if destination.ProviderCardID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "refund destination lost provider linkage")
	}

	providerRef, refundErr := s.provider.Refund(ctx, ProviderRefundRequest{
		JobID:             job.ID,
		OrderID:           job.OrderID,
		DestinationCardID: *destination.ProviderCardID,
		AmountCents:       job.AmountCents,
		Reason:            "order cancelled",
	})
	if refundErr != nil {
		if errors.Is(refundErr, ErrProviderNotConfigured) {
			// Tracked but never escalated: the job stays in processing and
			// the retry sweep picks it up once a provider is wired.
			s.logg.Warn(logCtx, "refund provider not configured, leaving job in processing")
			if err := s.repo.UpdateJob(ctx, job.ID, map[string]any{"last_error": refundErr.Error()}); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record provider gap")
			}
			return s.repo.FindJobByOrderID(ctx, job.OrderID)
		}

		s.logg.Error(logCtx, "refund execution failed", refundErr)
		if err := s.finalize(ctx, job, enums.RefundJobStatusFailed, map[string]any{
			"last_error": refundErr.Error(),
		}); err != nil {
			return nil, err
		}
		refreshed, loadErr := s.repo.FindJobByOrderID(ctx, job.OrderID)
		if loadErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, loadErr, "reload refund job")
		}
		return refreshed, pkgerrors.Wrap(pkgerrors.CodeDependency, refundErr, "execute refund")
	}

	if err := s.finalize(ctx, job, enums.RefundJobStatusSucceeded, map[string]any{
		"provider_ref": providerRef,
		"completed_at": s.now(),
		"last_error":   nil,
	}); err != nil {
		return nil, err
	}
	return s.repo.FindJobByOrderID(ctx, job.OrderID)
}

func (s *service) finalize(ctx context.Context, job *models.RefundJob, status enums.RefundJobStatus, updates map[string]any) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		values := map[string]any{"status": status}
		for column, value := range updates {
			values[column] = value
		}
		if err := repo.UpdateJob(ctx, job.ID, values); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update refund job")
		}
		return s.emitRouted(ctx, tx, job, status)
	})
}

func (s *service) emitRouted(ctx context.Context, tx *gorm.DB, job *models.RefundJob, status enums.RefundJobStatus) error {
	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRefundRouted,
		AggregateType: enums.AggregateRefundJob,
		AggregateID:   job.ID,
		Version:       1,
		Data: payloads.RefundRoutedEvent{
			OrderID:        job.OrderID,
			RefundJobID:    job.ID,
			UserID:         job.UserID,
			AmountCents:    job.AmountCents,
			Status:         status,
			FallbackReason: job.FallbackReason,
		},
	})
}

// selectDestination applies the two-tier choice: a usable pinned bank wins,
// otherwise the customer's primary, otherwise nothing.
func (s *service) selectDestination(ctx context.Context, repo Repository, order *models.Order) (*models.BankAccount, *enums.RefundFallbackReason, error) {
	var fallbackReason *enums.RefundFallbackReason

	if order.PinnedBankID != nil {
		pinned, err := repo.FindBankAccount(ctx, *order.PinnedBankID)
		switch {
		case err == gorm.ErrRecordNotFound:
			fallbackReason = fallbackPtr(enums.RefundFallbackPinNotFound)
		case err != nil:
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pinned bank")
		case pinned.UserID != order.CustomerID:
			fallbackReason = fallbackPtr(enums.RefundFallbackPinNotOwned)
		case pinned.ProviderCardID == nil:
			fallbackReason = fallbackPtr(enums.RefundFallbackPinUnlinked)
		case !pinned.IsActive:
			fallbackReason = fallbackPtr(enums.RefundFallbackPinInactive)
		default:
			return pinned, nil, nil
		}
	}

	primary, err := repo.FindPrimaryBankAccount(ctx, order.CustomerID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fallbackReason, nil
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load primary bank")
	}
	if primary.ProviderCardID == nil {
		return nil, fallbackReason, nil
	}
	return primary, fallbackReason, nil
}

// RetrySweep re-drives stale processing jobs through the router.
func (s *service) RetrySweep(ctx context.Context, updatedBefore time.Time, limit int) (int, error) {
	jobs, err := s.repo.ListProcessingJobs(ctx, updatedBefore, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list processing refund jobs")
	}

	retried := 0
	for _, job := range jobs {
		if _, err := s.Route(ctx, job.OrderID); err != nil {
			logCtx := s.logg.WithOrderID(ctx, job.OrderID.String())
			s.logg.Error(logCtx, "refund retry failed", err)
			continue
		}
		retried++
	}
	return retried, nil
}

func fallbackPtr(reason enums.RefundFallbackReason) *enums.RefundFallbackReason {
	return &reason
}
