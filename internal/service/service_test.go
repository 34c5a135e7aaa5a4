package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.NewSeeded()
	svc := New(repo, repo, repo, nil, "main-store")
	return svc, repo
}

func testCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "cashier", Role: "cashier"})
}

func mustStock(t *testing.T, repo *memory.Store, productID string) float64 {
	t.Helper()
	product, err := repo.FindProduct(context.Background(), productID)
	if err != nil {
		t.Fatalf("find product %s: %v", productID, err)
	}
	return product.Stock
}

func mustBalance(t *testing.T, repo *memory.Store, customerID string) float64 {
	t.Helper()
	customer, err := repo.GetCustomer(context.Background(), customerID)
	if err != nil {
		t.Fatalf("get customer %s: %v", customerID, err)
	}
	return customer.CreditBalance
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.001
}

func TestCreateSaleDiscountAndTax(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := testCtx()

	resp, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-mug", Quantity: 2, Discount: 10, DiscountType: domain.DiscountTypePercentage},
		},
		Payments: []domain.Payment{{Method: domain.PaymentMethodCash, Amount: 20}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	sale := resp.Sale
	if !almostEqual(sale.Subtotal, 20) {
		t.Fatalf("subtotal = %v, want 20", sale.Subtotal)
	}
	if !almostEqual(sale.Discount, 2) {
		t.Fatalf("discount = %v, want 2", sale.Discount)
	}
	if len(sale.Items) != 1 || !almostEqual(sale.Items[0].Tax, 1.44) {
		t.Fatalf("line tax = %v, want 1.44", sale.Items[0].Tax)
	}
	if !almostEqual(sale.Tax, 1.44) {
		t.Fatalf("tax = %v, want 1.44", sale.Tax)
	}
	if !almostEqual(sale.Total, 19.44) {
		t.Fatalf("total = %v, want 19.44", sale.Total)
	}
	if !almostEqual(sale.Change, 0.56) {
		t.Fatalf("change = %v, want 0.56", sale.Change)
	}
	if sale.Status != domain.SaleStatusCompleted {
		t.Fatalf("status = %s, want completed", sale.Status)
	}

	if got := mustStock(t, repo, "prod-mug"); got != 198 {
		t.Fatalf("mug stock = %v, want 198", got)
	}
}

func TestCreateSaleInsufficientPayment(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := testCtx()

	_, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-mug", Quantity: 2, Discount: 10, DiscountType: domain.DiscountTypePercentage},
		},
		Payments: []domain.Payment{{Method: domain.PaymentMethodCash, Amount: 19}},
	})
	if !errors.Is(err, store.ErrInsufficientPayment) {
		t.Fatalf("err = %v, want ErrInsufficientPayment", err)
	}

	if got := mustStock(t, repo, "prod-mug"); got != 200 {
		t.Fatalf("mug stock = %v, want untouched 200", got)
	}
	list, err := svc.ListSales(context.Background(), domain.SaleFilter{})
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if list.Total != 0 {
		t.Fatalf("expected no sale persisted, got %d", list.Total)
	}
}

func TestCreateSalePaymentWithinTolerance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := testCtx()

	// 19.435 is within the 0.01 tolerance of the 19.44 total.
	resp, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-mug", Quantity: 2, Discount: 10, DiscountType: domain.DiscountTypePercentage},
		},
		Payments: []domain.Payment{{Method: domain.PaymentMethodCash, Amount: 19.435}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if resp.Sale.Change != 0 {
		t.Fatalf("change = %v, want 0 when paid is below total within tolerance", resp.Sale.Change)
	}
}

func TestCreditSaleAndVoidRestoresEverything(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := testCtx()

	resp, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		CustomerID: "cust-regular",
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-mug", Quantity: 5},
		},
		Payments: []domain.Payment{
			{Method: domain.PaymentMethodCredit, Amount: 50},
			{Method: domain.PaymentMethodCash, Amount: 4},
		},
	})
	if err != nil {
		t.Fatalf("create credit sale: %v", err)
	}
	if !almostEqual(resp.Sale.Total, 54) {
		t.Fatalf("total = %v, want 54", resp.Sale.Total)
	}
	if !almostEqual(resp.Sale.CreditAmount, 50) {
		t.Fatalf("credit amount = %v, want 50", resp.Sale.CreditAmount)
	}
	if got := mustBalance(t, repo, "cust-regular"); !almostEqual(got, 50) {
		t.Fatalf("credit balance = %v, want 50", got)
	}
	if got := mustStock(t, repo, "prod-mug"); got != 195 {
		t.Fatalf("mug stock = %v, want 195", got)
	}

	adminCtx := WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
	voided, err := svc.VoidSale(adminCtx, resp.Sale.ID, domain.VoidSaleRequest{Reason: "customer changed mind"})
	if err != nil {
		t.Fatalf("void sale: %v", err)
	}
	if voided.Sale.Status != domain.SaleStatusVoided {
		t.Fatalf("status = %s, want voided", voided.Sale.Status)
	}
	if got := mustBalance(t, repo, "cust-regular"); !almostEqual(got, 0) {
		t.Fatalf("credit balance after void = %v, want 0", got)
	}
	if got := mustStock(t, repo, "prod-mug"); got != 200 {
		t.Fatalf("mug stock after void = %v, want 200", got)
	}
}

func TestVoidTwiceRejectedWithoutMutation(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := testCtx()

	resp, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		CustomerID: "cust-regular",
		Items:      []domain.SaleItemRequest{{ProductID: "prod-mug", Quantity: 1}},
		Payments:   []domain.Payment{{Method: domain.PaymentMethodCredit, Amount: 10.80}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	adminCtx := WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
	if _, err := svc.VoidSale(adminCtx, resp.Sale.ID, domain.VoidSaleRequest{Reason: "first"}); err != nil {
		t.Fatalf("first void: %v", err)
	}
	balanceAfterFirst := mustBalance(t, repo, "cust-regular")
	stockAfterFirst := mustStock(t, repo, "prod-mug")

	_, err = svc.VoidSale(adminCtx, resp.Sale.ID, domain.VoidSaleRequest{Reason: "second"})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("second void err = %v, want ErrInvalidState", err)
	}
	if got := mustBalance(t, repo, "cust-regular"); got != balanceAfterFirst {
		t.Fatalf("balance mutated by rejected void: %v != %v", got, balanceAfterFirst)
	}
	if got := mustStock(t, repo, "prod-mug"); got != stockAfterFirst {
		t.Fatalf("stock mutated by rejected void: %v != %v", got, stockAfterFirst)
	}
}

func TestCreditLimitExceededBeforePersist(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := testCtx()

	_, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		CustomerID: "cust-regular",
		Items:      []domain.SaleItemRequest{{ProductID: "prod-grinder", Quantity: 3}},
		Payments:   []domain.Payment{{Method: domain.PaymentMethodCredit, Amount: 136.08}},
	})
	if !errors.Is(err, store.ErrCreditLimitExceeded) {
		t.Fatalf("err = %v, want ErrCreditLimitExceeded", err)
	}

	if got := mustBalance(t, repo, "cust-regular"); got != 0 {
		t.Fatalf("balance = %v, want 0", got)
	}
	list, _ := svc.ListSales(context.Background(), domain.SaleFilter{})
	if list.Total != 0 {
		t.Fatalf("expected no sale persisted, got %d", list.Total)
	}
}

func TestCreditPaymentRequiresCustomer(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateSale(testCtx(), domain.CreateSaleRequest{
		Items:    []domain.SaleItemRequest{{ProductID: "prod-mug", Quantity: 1}},
		Payments: []domain.Payment{{Method: domain.PaymentMethodCredit, Amount: 10.80}},
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestPartialRefundsOfCreditSale(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := testCtx()

	resp, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		CustomerID: "cust-regular",
		Items: []domain.SaleItemRequest{
			{ProductID: "prod-mug", Quantity: 2, Discount: 10, DiscountType: domain.DiscountTypePercentage},
		},
		Payments: []domain.Payment{{Method: domain.PaymentMethodCredit, Amount: 19.44}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if got := mustBalance(t, repo, "cust-regular"); !almostEqual(got, 19.44) {
		t.Fatalf("balance = %v, want 19.44", got)
	}
	stockAfterSale := mustStock(t, repo, "prod-mug")

	adminCtx := WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
	partial, err := svc.RefundSale(adminCtx, resp.Sale.ID, domain.RefundSaleRequest{Amount: 10, Reason: "one item returned broken"})
	if err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if partial.Sale.Status != domain.SaleStatusPartialRefund {
		t.Fatalf("status = %s, want partial_refund", partial.Sale.Status)
	}
	if !almostEqual(partial.Sale.CreditRefunded, 10) {
		t.Fatalf("credit refunded = %v, want 10", partial.Sale.CreditRefunded)
	}
	if got := mustBalance(t, repo, "cust-regular"); !almostEqual(got, 9.44) {
		t.Fatalf("balance = %v, want 9.44", got)
	}
	if got := mustStock(t, repo, "prod-mug"); got != stockAfterSale {
		t.Fatalf("partial refund must not touch stock: %v != %v", got, stockAfterSale)
	}

	final, err := svc.RefundSale(adminCtx, resp.Sale.ID, domain.RefundSaleRequest{Amount: 9.44, Reason: "rest returned"})
	if err != nil {
		t.Fatalf("final refund: %v", err)
	}
	if final.Sale.Status != domain.SaleStatusRefunded {
		t.Fatalf("status = %s, want refunded", final.Sale.Status)
	}
	if !almostEqual(final.Sale.CreditRefunded, final.Sale.CreditAmount) {
		t.Fatalf("credit refunded %v != credit amount %v", final.Sale.CreditRefunded, final.Sale.CreditAmount)
	}
	if got := mustBalance(t, repo, "cust-regular"); !almostEqual(got, 0) {
		t.Fatalf("balance = %v, want 0", got)
	}
}

func TestRefundBeyondRemainingRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := testCtx()

	resp, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		Items:    []domain.SaleItemRequest{{ProductID: "prod-mug", Quantity: 1}},
		Payments: []domain.Payment{{Method: domain.PaymentMethodCash, Amount: 10.80}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	adminCtx := WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
	_, err = svc.RefundSale(adminCtx, resp.Sale.ID, domain.RefundSaleRequest{Amount: 11, Reason: "too much"})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestFullRefundRestoresStock(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := testCtx()

	resp, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		Items:    []domain.SaleItemRequest{{ProductID: "prod-mug", Quantity: 3}},
		Payments: []domain.Payment{{Method: domain.PaymentMethodCash, Amount: 32.40}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if got := mustStock(t, repo, "prod-mug"); got != 197 {
		t.Fatalf("stock = %v, want 197", got)
	}

	adminCtx := WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
	refunded, err := svc.RefundSale(adminCtx, resp.Sale.ID, domain.RefundSaleRequest{Amount: 32.40, Reason: "order cancelled"})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refunded.Sale.Status != domain.SaleStatusRefunded {
		t.Fatalf("status = %s, want refunded", refunded.Sale.Status)
	}
	if got := mustStock(t, repo, "prod-mug"); got != 200 {
		t.Fatalf("stock after full refund = %v, want 200", got)
	}
}

func TestHoldAndResumeFlow(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := testCtx()

	held, err := svc.HoldTransaction(ctx, domain.HoldSaleRequest{
		Items: []domain.SaleItemRequest{{ProductID: "prod-syrup", Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if held.Sale.Status != domain.SaleStatusHeld {
		t.Fatalf("status = %s, want held", held.Sale.Status)
	}
	if got := mustStock(t, repo, "prod-syrup"); got != 60 {
		t.Fatalf("hold must not move stock: %v", got)
	}

	heldList, err := svc.ListHeldTransactions(context.Background(), "")
	if err != nil {
		t.Fatalf("list held: %v", err)
	}
	if len(heldList.Sales) != 1 || heldList.Sales[0].ID != held.Sale.ID {
		t.Fatalf("held list does not contain the parked sale")
	}

	resumed, err := svc.ResumeTransaction(ctx, held.Sale.ID, domain.ResumeSaleRequest{
		Payments: []domain.Payment{{Method: domain.PaymentMethodCash, Amount: 30}},
	})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Sale.Status != domain.SaleStatusCompleted {
		t.Fatalf("status = %s, want completed", resumed.Sale.Status)
	}
	if got := mustStock(t, repo, "prod-syrup"); got != 57 {
		t.Fatalf("stock after resume = %v, want 57", got)
	}
	if resumed.Sale.HeldBy != "" || resumed.Sale.HeldAt != nil {
		t.Fatalf("held markers not cleared after resume: heldBy=%q heldAt=%v", resumed.Sale.HeldBy, resumed.Sale.HeldAt)
	}
	if !resumed.Sale.CreatedAt.Equal(held.Sale.CreatedAt) {
		t.Fatalf("resume must not rewrite CreatedAt: got %v, want %v", resumed.Sale.CreatedAt, held.Sale.CreatedAt)
	}

	_, err = svc.ResumeTransaction(ctx, held.Sale.ID, domain.ResumeSaleRequest{
		Payments: []domain.Payment{{Method: domain.PaymentMethodCash, Amount: 30}},
	})
	if !errors.Is(err, store.ErrInvalidState) {
		t.Fatalf("second resume err = %v, want ErrInvalidState", err)
	}
}

func TestResumeRevalidatesStock(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := testCtx()

	held, err := svc.HoldTransaction(ctx, domain.HoldSaleRequest{
		Items: []domain.SaleItemRequest{{ProductID: "prod-grinder", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}

	// Stock drains while the sale sits on hold.
	if err := repo.DecrementStock(context.Background(), "prod-grinder", 34); err != nil {
		t.Fatalf("drain stock: %v", err)
	}

	_, err = svc.ResumeTransaction(ctx, held.Sale.ID, domain.ResumeSaleRequest{
		Payments: []domain.Payment{{Method: domain.PaymentMethodCash, Amount: 100}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("resume err = %v, want ErrInsufficientStock", err)
	}
}

func TestUntrackedProductSkipsInventory(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := testCtx()

	resp, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		Items:    []domain.SaleItemRequest{{ProductID: "prod-giftcard", Quantity: 1}},
		Payments: []domain.Payment{{Method: domain.PaymentMethodCash, Amount: 25}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if !almostEqual(resp.Sale.Total, 25) {
		t.Fatalf("total = %v, want 25 (no tax on gift cards)", resp.Sale.Total)
	}
	if got := mustStock(t, repo, "prod-giftcard"); got != 0 {
		t.Fatalf("gift card stock = %v, want 0 and untouched", got)
	}
}

func TestDailySummaryAggregatesCompletedSales(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := testCtx()

	if _, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		Items:    []domain.SaleItemRequest{{ProductID: "prod-mug", Quantity: 1}},
		Payments: []domain.Payment{{Method: domain.PaymentMethodCash, Amount: 10.80}},
	}); err != nil {
		t.Fatalf("first sale: %v", err)
	}
	if _, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		Items:    []domain.SaleItemRequest{{ProductID: "prod-filter", Quantity: 2}},
		Payments: []domain.Payment{{Method: domain.PaymentMethodCard, Amount: 13.50}},
	}); err != nil {
		t.Fatalf("second sale: %v", err)
	}

	summary, err := svc.DailySummary(context.Background(), "", "")
	if err != nil {
		t.Fatalf("daily summary: %v", err)
	}
	if summary.SaleCount != 2 {
		t.Fatalf("sale count = %d, want 2", summary.SaleCount)
	}
	if !almostEqual(summary.TotalRevenue, 24.30) {
		t.Fatalf("revenue = %v, want 24.30", summary.TotalRevenue)
	}
	if !almostEqual(summary.AverageSale, 12.15) {
		t.Fatalf("average = %v, want 12.15", summary.AverageSale)
	}
	if len(summary.ByPayment) != 2 {
		t.Fatalf("payment breakdown = %v, want card and cash", summary.ByPayment)
	}
}

func TestDailySummaryRejectsBadDate(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.DailySummary(context.Background(), "", "03-01-2026")
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

type failingLedger struct {
	*memory.Store
	failAdjust bool
}

func (f *failingLedger) AdjustCreditBalance(ctx context.Context, customerID string, delta float64) (*domain.Customer, error) {
	if f.failAdjust {
		return nil, errors.New("ledger unavailable")
	}
	return f.Store.AdjustCreditBalance(ctx, customerID, delta)
}

type failingSales struct {
	*memory.Store
	failUpdate bool
	failDelete bool
}

func (f *failingSales) UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if f.failUpdate {
		return nil, errors.New("update unavailable")
	}
	return f.Store.UpdateSale(ctx, sale)
}

func (f *failingSales) DeleteSale(ctx context.Context, id string) error {
	if f.failDelete {
		return errors.New("delete unavailable")
	}
	return f.Store.DeleteSale(ctx, id)
}

func TestCreateSaleLedgerFailureDeletesSale(t *testing.T) {
	repo := memory.NewSeeded()
	ledger := &failingLedger{Store: repo, failAdjust: true}
	svc := New(repo, repo, ledger, nil, "main-store")

	_, err := svc.CreateSale(testCtx(), domain.CreateSaleRequest{
		CustomerID: "cust-regular",
		Items:      []domain.SaleItemRequest{{ProductID: "prod-mug", Quantity: 1}},
		Payments:   []domain.Payment{{Method: domain.PaymentMethodCredit, Amount: 10.80}},
	})
	if err == nil {
		t.Fatalf("expected ledger failure to fail the sale")
	}
	if errors.Is(err, store.ErrCompensationFailed) {
		t.Fatalf("rollback succeeded, error must not be a compensation failure: %v", err)
	}

	list, _ := svc.ListSales(context.Background(), domain.SaleFilter{})
	if list.Total != 0 {
		t.Fatalf("expected orphan sale to be deleted, found %d", list.Total)
	}
	if got := mustStock(t, repo, "prod-mug"); got != 200 {
		t.Fatalf("stock = %v, want untouched 200", got)
	}
}

func TestCreateSaleDoubleFailureIsCompensationError(t *testing.T) {
	repo := memory.NewSeeded()
	sales := &failingSales{Store: repo, failDelete: true}
	ledger := &failingLedger{Store: repo, failAdjust: true}
	svc := New(sales, repo, ledger, nil, "main-store")

	_, err := svc.CreateSale(testCtx(), domain.CreateSaleRequest{
		CustomerID: "cust-regular",
		Items:      []domain.SaleItemRequest{{ProductID: "prod-mug", Quantity: 1}},
		Payments:   []domain.Payment{{Method: domain.PaymentMethodCredit, Amount: 10.80}},
	})
	if !errors.Is(err, store.ErrCompensationFailed) {
		t.Fatalf("err = %v, want ErrCompensationFailed", err)
	}
}

func TestVoidPersistFailureReappliesCredit(t *testing.T) {
	repo := memory.NewSeeded()
	sales := &failingSales{Store: repo}
	svc := New(sales, repo, repo, nil, "main-store")
	ctx := testCtx()

	resp, err := svc.CreateSale(ctx, domain.CreateSaleRequest{
		CustomerID: "cust-regular",
		Items:      []domain.SaleItemRequest{{ProductID: "prod-mug", Quantity: 1}},
		Payments:   []domain.Payment{{Method: domain.PaymentMethodCredit, Amount: 10.80}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if got := mustBalance(t, repo, "cust-regular"); !almostEqual(got, 10.80) {
		t.Fatalf("balance = %v, want 10.80", got)
	}

	sales.failUpdate = true
	adminCtx := WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
	_, err = svc.VoidSale(adminCtx, resp.Sale.ID, domain.VoidSaleRequest{Reason: "test"})
	if err == nil {
		t.Fatalf("expected void to fail")
	}
	if errors.Is(err, store.ErrCompensationFailed) {
		t.Fatalf("ledger re-apply succeeded, error must not be a compensation failure: %v", err)
	}

	if got := mustBalance(t, repo, "cust-regular"); !almostEqual(got, 10.80) {
		t.Fatalf("balance after failed void = %v, want restored 10.80", got)
	}
	current, err := svc.GetSale(context.Background(), resp.Sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if current.Sale.Status != domain.SaleStatusCompleted {
		t.Fatalf("status = %s, want still completed", current.Sale.Status)
	}
}

func TestConcurrentCreditSalesRespectLimit(t *testing.T) {
	svc, repo := newTestService(t)

	// cust-regular has a 100 limit; 15 concurrent 10.80 credit sales cannot
	// all fit, and the balance must never exceed the limit.
	done := make(chan error, 15)
	for i := 0; i < 15; i++ {
		go func() {
			_, err := svc.CreateSale(testCtx(), domain.CreateSaleRequest{
				CustomerID: "cust-regular",
				Items:      []domain.SaleItemRequest{{ProductID: "prod-mug", Quantity: 1}},
				Payments:   []domain.Payment{{Method: domain.PaymentMethodCredit, Amount: 10.80}},
			})
			done <- err
		}()
	}

	succeeded := 0
	for i := 0; i < 15; i++ {
		if err := <-done; err == nil {
			succeeded++
		} else if !errors.Is(err, store.ErrCreditLimitExceeded) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	balance := mustBalance(t, repo, "cust-regular")
	if balance > 100.01 {
		t.Fatalf("balance %v exceeds credit limit", balance)
	}
	if !almostEqual(balance, 10.80*float64(succeeded)) {
		t.Fatalf("balance %v does not match %d successful sales", balance, succeeded)
	}
}
