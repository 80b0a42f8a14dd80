package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"status order_status NOT NULL DEFAULT 'Pending'",
		"FOREIGN KEY (customer_id) REFERENCES users(id)",
		"CHECK (amount_cents > 0)",
		"CHECK (otp_attempts >= 0)",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS orders",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestRefundJobsMigrationEnforcesSingleJobPerOrder(t *testing.T) {
	content := readMigration(t, "*_create_refund_jobs.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS refund_jobs",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_refund_jobs_order_id ON refund_jobs(order_id)",
		"status refund_job_status NOT NULL DEFAULT 'processing'",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestStatusEnumMigrationListsFullChain(t *testing.T) {
	content := readMigration(t, "*_create_base_types.sql")

	for _, status := range []string{
		"'Pending'",
		"'Runner Accepted'",
		"'Runner at ATM'",
		"'Cash Withdrawn'",
		"'Pending Handoff'",
		"'Completed'",
		"'Cancelled'",
	} {
		if !strings.Contains(content, status) {
			t.Errorf("order_status enum missing %s", status)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s found", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
