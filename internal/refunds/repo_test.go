package refunds

import (
	"context"
	"testing"
	"time"

	"github.com/cashdash/cashdash-backend/pkg/db/models"
	"github.com/cashdash/cashdash-backend/pkg/enums"
	"github.com/cashdash/cashdash-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRefundsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  runner_id TEXT,
  status TEXT NOT NULL DEFAULT 'Pending',
  amount_cents INTEGER NOT NULL,
  fees TEXT,
  delivery_address TEXT NOT NULL,
  pinned_bank_id TEXT,
  notes TEXT,
  otp_code_hash TEXT,
  otp_expires_at DATETIME,
  otp_attempts INTEGER NOT NULL DEFAULT 0,
  claimed_at DATETIME,
  at_atm_at DATETIME,
  cash_drawn_at DATETIME,
  handoff_start_at DATETIME,
  completed_at DATETIME,
  cancelled_at DATETIME,
  cancel_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	refundJobs := `
CREATE TABLE IF NOT EXISTS refund_jobs (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  bank_account_id TEXT,
  amount_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'processing',
  fallback_reason TEXT,
  provider_ref TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	bankAccounts := `
CREATE TABLE IF NOT EXISTS bank_accounts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  nickname TEXT NOT NULL,
  last4 TEXT NOT NULL,
  provider_card_id TEXT,
  is_primary INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  deactivated_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`

	for _, ddl := range []string{orders, refundJobs, bankAccounts} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	for _, table := range []string{"orders", "refund_jobs", "bank_accounts"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return db
}

func seedCancelledOrder(t *testing.T, db *gorm.DB, mutate func(order *models.Order)) *models.Order {
	t.Helper()

	now := time.Now().UTC()
	order := &models.Order{
		ID:          uuid.New(),
		CustomerID:  uuid.New(),
		Status:      enums.OrderStatusCancelled,
		AmountCents: 25000,
		Fees: types.FeeBreakdown{
			AmountCents:     25000,
			ServiceFeeCents: 1250,
			RunnerFeeCents:  300,
			TotalCents:      26550,
		},
		DeliveryAddress: types.Address{
			Line1:      "19 Bellweather Ct",
			City:       "Austin",
			State:      "TX",
			PostalCode: "73301",
			Country:    "US",
		},
		CancelledAt: &now,
	}
	if mutate != nil {
		mutate(order)
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func seedBank(t *testing.T, db *gorm.DB, userID uuid.UUID, mutate func(bank *models.BankAccount)) *models.BankAccount {
	t.Helper()

	cardID := "ccof:" + uuid.NewString()
	bank := &models.BankAccount{
		ID:             uuid.New(),
		UserID:         userID,
		Nickname:       "Checking",
		Last4:          "4821",
		ProviderCardID: &cardID,
		IsActive:       true,
	}
	if mutate != nil {
		mutate(bank)
	}
	require.NoError(t, db.Create(bank).Error)
	return bank
}

func TestRepositoryUpsertJobIsIdempotentPerOrder(t *testing.T) {
	db := setupRefundsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedCancelledOrder(t, db, nil)
	bank := seedBank(t, db, order.CustomerID, nil)

	first, err := repo.UpsertJob(ctx, &models.RefundJob{
		ID:            uuid.New(),
		OrderID:       order.ID,
		UserID:        order.CustomerID,
		BankAccountID: &bank.ID,
		AmountCents:   26550,
		Status:        enums.RefundJobStatusProcessing,
	})
	require.NoError(t, err)

	otherBank := seedBank(t, db, order.CustomerID, nil)
	reason := enums.RefundFallbackPinInactive
	second, err := repo.UpsertJob(ctx, &models.RefundJob{
		ID:             uuid.New(),
		OrderID:        order.ID,
		UserID:         order.CustomerID,
		BankAccountID:  &otherBank.ID,
		AmountCents:    26550,
		Status:         enums.RefundJobStatusProcessing,
		FallbackReason: &reason,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.BankAccountID)
	assert.Equal(t, otherBank.ID, *second.BankAccountID)
	require.NotNil(t, second.FallbackReason)
	assert.Equal(t, enums.RefundFallbackPinInactive, *second.FallbackReason)

	var count int64
	require.NoError(t, db.Model(&models.RefundJob{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRepositoryListProcessingJobs(t *testing.T) {
	db := setupRefundsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	staleOrder := seedCancelledOrder(t, db, nil)
	freshOrder := seedCancelledOrder(t, db, nil)
	doneOrder := seedCancelledOrder(t, db, nil)

	now := time.Now().UTC()
	stale := &models.RefundJob{ID: uuid.New(), OrderID: staleOrder.ID, UserID: staleOrder.CustomerID, AmountCents: 100, Status: enums.RefundJobStatusProcessing, UpdatedAt: now.Add(-time.Hour)}
	fresh := &models.RefundJob{ID: uuid.New(), OrderID: freshOrder.ID, UserID: freshOrder.CustomerID, AmountCents: 100, Status: enums.RefundJobStatusProcessing, UpdatedAt: now}
	done := &models.RefundJob{ID: uuid.New(), OrderID: doneOrder.ID, UserID: doneOrder.CustomerID, AmountCents: 100, Status: enums.RefundJobStatusSucceeded, UpdatedAt: now.Add(-time.Hour)}
	for _, job := range []*models.RefundJob{stale, fresh, done} {
		require.NoError(t, db.Create(job).Error)
		require.NoError(t, db.Model(&models.RefundJob{}).Where("id = ?", job.ID).UpdateColumn("updated_at", job.UpdatedAt).Error)
	}

	jobs, err := repo.ListProcessingJobs(ctx, now.Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, stale.ID, jobs[0].ID)
}

func TestRepositoryFindPrimaryBankAccount(t *testing.T) {
	db := setupRefundsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	seedBank(t, db, userID, nil)
	primary := seedBank(t, db, userID, func(bank *models.BankAccount) {
		bank.IsPrimary = true
	})
	seedBank(t, db, userID, func(bank *models.BankAccount) {
		bank.IsPrimary = true
		bank.IsActive = false
	})

	found, err := repo.FindPrimaryBankAccount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, primary.ID, found.ID)

	_, err = repo.FindPrimaryBankAccount(ctx, uuid.New())
	assert.Equal(t, gorm.ErrRecordNotFound, err)
}
