package refunds

import (
	"context"
	"errors"
	"fmt"

	"github.com/cashdash/cashdash-backend/pkg/config"
	"github.com/cashdash/cashdash-backend/pkg/square"
	"github.com/google/uuid"
)

// ErrProviderNotConfigured marks routing attempts made before a payout
// provider has been wired up. Jobs stay in processing so the retry sweep can
// drive them once configuration lands.
var ErrProviderNotConfigured = errors.New("refund provider not configured")

// ProviderRefundRequest is everything a payout provider needs to push funds
// back to a vaulted destination.
type ProviderRefundRequest struct {
	JobID             uuid.UUID
	OrderID           uuid.UUID
	DestinationCardID string
	AmountCents       int
	Reason            string
}

// PayoutProvider executes the actual funds movement for a routed refund job.
type PayoutProvider interface {
	Name() string
	Refund(ctx context.Context, req ProviderRefundRequest) (string, error)
}

type squareProvider struct {
	client *square.Client
}

// NewSquareProvider wraps the Square client as a payout provider.
func NewSquareProvider(client *square.Client) (PayoutProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &squareProvider{client: client}, nil
}

func (p *squareProvider) Name() string {
	return "square"
}

func (p *squareProvider) Refund(ctx context.Context, req ProviderRefundRequest) (string, error) {
	return p.client.RefundCard(ctx, square.RefundParams{
		DestinationID:  req.DestinationCardID,
		AmountCents:    int64(req.AmountCents),
		Currency:       "USD",
		Reason:         req.Reason,
		IdempotencyKey: "refund-job:" + req.JobID.String(),
	})
}

type notConfiguredProvider struct{}

// NewNotConfiguredProvider returns the explicit no-provider implementation.
func NewNotConfiguredProvider() PayoutProvider {
	return notConfiguredProvider{}
}

func (notConfiguredProvider) Name() string {
	return "none"
}

func (notConfiguredProvider) Refund(ctx context.Context, req ProviderRefundRequest) (string, error) {
	return "", ErrProviderNotConfigured
}

// NewProviderFromConfig selects the payout provider. Anything other than a
// fully configured Square client falls back to the not-configured provider.
func NewProviderFromConfig(cfg config.RefundsConfig, client *square.Client) PayoutProvider {
	if cfg.Provider == "square" && client != nil {
		return &squareProvider{client: client}
	}
	return notConfiguredProvider{}
}
