package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cashdash/cashdash-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// OtpExpiryJobParams configure the handoff code sweep.
type OtpExpiryJobParams struct {
	Logger     *logger.Logger
	Repository otpSweeper
}

type otpSweeper interface {
	ClearExpiredOtps(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewOtpExpiryJob builds the job that clears expired handoff codes. Orders
// stay in Pending Handoff; the runner re-issues a code by re-entering the
// handoff step.
func NewOtpExpiryJob(params OtpExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &otpExpiryJob{
		logg: params.Logger,
		repo: params.Repository,
		now:  time.Now,
	}, nil
}

type otpExpiryJob struct {
	logg *logger.Logger
	repo otpSweeper
	now  func() time.Time
}

func (j *otpExpiryJob) Name() string { return "otp-expiry" }

func (j *otpExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	cleared, err := j.repo.ClearExpiredOtps(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("clear expired handoff codes: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_cleared": cleared,
	})
	j.logg.Info(logCtx, "handoff code expiry sweep complete")
	return nil
}
