package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/cashdash/cashdash-backend/pkg/logger"
)

const (
	refundRetryStaleAfter = 15 * time.Minute
	refundRetryBatchSize  = 50
)

// RefundRetryJobParams configure the refund retry sweep.
type RefundRetryJobParams struct {
	Logger     *logger.Logger
	Refunds    refundSweeper
	StaleAfter time.Duration
	BatchSize  int
}

type refundSweeper interface {
	RetrySweep(ctx context.Context, updatedBefore time.Time, limit int) (int, error)
}

// NewRefundRetryJob builds the job that re-drives stuck processing refund
// jobs through the idempotent router.
func NewRefundRetryJob(params RefundRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Refunds == nil {
		return nil, fmt.Errorf("refunds service required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = refundRetryStaleAfter
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = refundRetryBatchSize
	}
	return &refundRetryJob{
		logg:       params.Logger,
		refunds:    params.Refunds,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		now:        time.Now,
	}, nil
}

type refundRetryJob struct {
	logg       *logger.Logger
	refunds    refundSweeper
	staleAfter time.Duration
	batchSize  int
	now        func() time.Time
}

func (j *refundRetryJob) Name() string { return "refund-retry" }

func (j *refundRetryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.staleAfter)
	retried, err := j.refunds.RetrySweep(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("refund retry sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"jobs_retried": retried,
	})
	j.logg.Info(logCtx, "refund retry sweep complete")
	return nil
}
