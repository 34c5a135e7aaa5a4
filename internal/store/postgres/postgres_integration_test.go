package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"salepoint/backend/internal/store"
)

// The stock and credit guards live in SQL WHERE clauses, so they only get real
// coverage against an actual postgres instance.
func TestGuardedStockAndCreditMutations(t *testing.T) {
	databaseURL := os.Getenv("SALEPOINT_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set SALEPOINT_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("prod-it-%d", stamp)
	customerID := fmt.Sprintf("cust-it-%d", stamp)
	storeID := "main-store"

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, customerID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, store_id, sku, name, category, price, cost, tax_rate, track_inventory, stock, min_stock, active, created_at)
		VALUES ($1, $2, $3, 'Integration Mug', 'merch', 10.00, 4.10, 8, true, 10, 0, true, now())
	`, productID, storeID, fmt.Sprintf("SKU-IT-%d", stamp)); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, store_id, name, phone, credit_limit, credit_balance, purchase_count, total_spent, loyalty_points, created_at)
		VALUES ($1, $2, 'Integration Customer', '555-0199', 100, 0, 0, 0, 0, now())
	`, customerID, storeID); err != nil {
		t.Fatalf("insert customer: %v", err)
	}

	// Stock guard: a decrement within stock succeeds, one beyond it is rejected
	// without touching the row.
	if err := s.DecrementStock(ctx, productID, 4); err != nil {
		t.Fatalf("decrement within stock: %v", err)
	}
	if err := s.DecrementStock(ctx, productID, 7); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if err := s.IncrementStock(ctx, productID, 4); err != nil {
		t.Fatalf("increment stock: %v", err)
	}

	var stock float64
	if err := s.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if stock != 10 {
		t.Fatalf("expected stock 10 after decrement and restock, got %v", stock)
	}

	// Credit guard: headroom is enforced in the UPDATE itself.
	customer, err := s.AdjustCreditBalance(ctx, customerID, 60)
	if err != nil {
		t.Fatalf("adjust within limit: %v", err)
	}
	if customer.CreditBalance != 60 {
		t.Fatalf("expected balance 60, got %v", customer.CreditBalance)
	}

	if _, err := s.AdjustCreditBalance(ctx, customerID, 50); !errors.Is(err, store.ErrCreditLimitExceeded) {
		t.Fatalf("expected ErrCreditLimitExceeded, got %v", err)
	}

	// Repayments beyond the outstanding balance are rejected, exact repayment
	// brings the balance to zero.
	if _, err := s.AdjustCreditBalance(ctx, customerID, -70); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation for over-repayment, got %v", err)
	}
	customer, err = s.AdjustCreditBalance(ctx, customerID, -60)
	if err != nil {
		t.Fatalf("repay full balance: %v", err)
	}
	if customer.CreditBalance != 0 {
		t.Fatalf("expected balance 0 after repayment, got %v", customer.CreditBalance)
	}
}
