package types

// FeeBreakdown is the computed charge summary stored on an order. Amounts
// are integer cents; the breakdown is persisted as jsonb and never
// recomputed after creation.
type FeeBreakdown struct {
	AmountCents     int `json:"amount_cents"`
	ServiceFeeCents int `json:"service_fee_cents"`
	RunnerFeeCents  int `json:"runner_fee_cents"`
	TotalCents      int `json:"total_cents"`
}
