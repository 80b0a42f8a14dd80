package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cashdash/cashdash-backend/pkg/logger"
)

func TestOtpExpiryJobClearsAtCurrentTime(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 30, 0, 0, time.UTC)
	repo := &fakeOtpSweeper{cleared: 4}
	job := newOtpExpiryJob(t, repo)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !repo.lastCutoff.Equal(now) {
		t.Fatalf("expected cutoff %s, got %s", now, repo.lastCutoff)
	}
	if repo.called != 1 {
		t.Fatalf("expected sweeper called once, got %d", repo.called)
	}
}

func TestOtpExpiryJobPropagatesError(t *testing.T) {
	repo := &fakeOtpSweeper{err: errors.New("boom")}
	job := newOtpExpiryJob(t, repo)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newOtpExpiryJob(t *testing.T, repo *fakeOtpSweeper) *otpExpiryJob {
	t.Helper()
	jobIface, err := NewOtpExpiryJob(OtpExpiryJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewOtpExpiryJob: %v", err)
	}
	job, ok := jobIface.(*otpExpiryJob)
	if !ok {
		t.Fatalf("expected otpExpiryJob, got %T", jobIface)
	}
	return job
}

type fakeOtpSweeper struct {
	lastCutoff time.Time
	called     int
	cleared    int64
	err        error
}

func (f *fakeOtpSweeper) ClearExpiredOtps(ctx context.Context, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.cleared, nil
}
