package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salepoint/backend/internal/domain"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")
	ErrCompensationFailed  = errors.New("compensation failed")
)

// CompensationError reports that an operation failed AND the attempt to undo
// its earlier side effects also failed, leaving data that needs manual
// reconciliation. It matches ErrCompensationFailed via errors.Is and unwraps
// to the original failure.
type CompensationError struct {
	Op       string
	Original error
	Cause    error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("%s: compensation failed: %v (original failure: %v)", e.Op, e.Cause, e.Original)
}

func (e *CompensationError) Unwrap() error { return e.Original }

func (e *CompensationError) Is(target error) bool { return target == ErrCompensationFailed }

// SaleRepository persists the sale aggregate. A sale is written as a single
// document; implementations must make each call atomic but are not expected
// to coordinate across calls.
type SaleRepository interface {
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	DeleteSale(ctx context.Context, id string) error
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, int64, error)
	ListHeldSales(ctx context.Context, storeID string) ([]domain.Sale, error)
	GetDailySummary(ctx context.Context, storeID string, from time.Time, to time.Time) (domain.DailySummary, error)
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}

// CatalogGateway exposes the product catalog and its stock levels.
// DecrementStock re-validates availability and fails with
// ErrInsufficientStock instead of clamping; both stock calls are no-ops for
// products that do not track inventory.
type CatalogGateway interface {
	FindProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, storeID string) ([]domain.Product, error)
	DecrementStock(ctx context.Context, productID string, qty float64) error
	IncrementStock(ctx context.Context, productID string, qty float64) error
}

// LedgerGateway exposes customer records and the store-credit ledger.
// AdjustCreditBalance applies a signed delta atomically: a positive delta
// that would push the balance more than Epsilon past the credit limit fails
// with ErrCreditLimitExceeded, a negative delta that would take it below
// -Epsilon fails with ErrValidation, and the stored result is clamped to
// max(0, round2(balance+delta)).
type LedgerGateway interface {
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	AdjustCreditBalance(ctx context.Context, customerID string, delta float64) (*domain.Customer, error)
	RecordPurchase(ctx context.Context, customerID string, amount float64, loyaltyPoints int64, at time.Time) error
}
