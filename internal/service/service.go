package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"salepoint/backend/internal/cache"
	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/money"
	"salepoint/backend/internal/pricing"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const summaryCacheTTL = 7 * 24 * time.Hour

// Service is the sale transaction engine. It owns the sale lifecycle and the
// ordering discipline between the sale repository, the catalog and the credit
// ledger: financially binding writes commit first, side effects follow
// best-effort, and a failed step after a ledger mutation is compensated by
// reversing that mutation.
type Service struct {
	sales          store.SaleRepository
	catalog        store.CatalogGateway
	ledger         store.LedgerGateway
	summaries      cache.SummaryCache
	defaultStoreID string
	locks          *keyedMutex
}

func New(sales store.SaleRepository, catalog store.CatalogGateway, ledger store.LedgerGateway, summaries cache.SummaryCache, defaultStoreID string) *Service {
	if defaultStoreID == "" {
		defaultStoreID = "main-store"
	}
	if summaries == nil {
		summaries = cache.NoopSummaryCache{}
	}

	return &Service{
		sales:          sales,
		catalog:        catalog,
		ledger:         ledger,
		summaries:      summaries,
		defaultStoreID: defaultStoreID,
		locks:          newKeyedMutex(),
	}
}

func (s *Service) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}
	return s.catalog.ListProducts(ctx, storeID)
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Customer{}, store.ErrValidation
	}
	customer, err := s.ledger.GetCustomer(ctx, id)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

// CreateSale validates the cart, prices it, checks payment sufficiency and
// credit headroom, persists the completed sale, applies the credit ledger
// mutation, then decrements stock and updates customer stats best-effort.
// If the ledger mutation fails after the sale is persisted, the sale is
// deleted again so no orphan credit sale survives.
func (s *Service) CreateSale(ctx context.Context, req domain.CreateSaleRequest) (domain.SaleResponse, error) {
	if req.StoreID == "" {
		req.StoreID = s.defaultStoreID
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)

	unlock := s.locks.lockKeys(customerKey(req.CustomerID))
	defer unlock()

	items, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	cart := pricing.ComputeCart(items, req.Discount, req.DiscountType)

	paid, creditAmount, err := validatePayments(req.Payments)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	if len(req.Payments) == 0 {
		return domain.SaleResponse{}, fmt.Errorf("%w: at least one payment required", store.ErrValidation)
	}

	if creditAmount > 0 {
		if req.CustomerID == "" {
			return domain.SaleResponse{}, fmt.Errorf("%w: credit payment requires a customer", store.ErrValidation)
		}
		customer, err := s.ledger.GetCustomer(ctx, req.CustomerID)
		if err != nil {
			return domain.SaleResponse{}, err
		}
		available := customer.CreditLimit - customer.CreditBalance
		if creditAmount-available > money.Epsilon {
			return domain.SaleResponse{}, store.ErrCreditLimitExceeded
		}
	} else if req.CustomerID != "" {
		if _, err := s.ledger.GetCustomer(ctx, req.CustomerID); err != nil {
			return domain.SaleResponse{}, err
		}
	}

	if !money.GTE(paid, cart.GrandTotal) {
		return domain.SaleResponse{}, store.ErrInsufficientPayment
	}
	change := money.Round2(paid - cart.GrandTotal)
	if change < 0 {
		change = 0
	}

	actor, _ := ActorFromContext(ctx)
	now := time.Now().UTC()
	sale := domain.Sale{
		ID:           xid.New("sale"),
		StoreID:      req.StoreID,
		CashierID:    actor.Username,
		CustomerID:   req.CustomerID,
		Items:        items,
		Subtotal:     cart.Subtotal,
		Discount:     cart.DiscountAmount,
		DiscountType: req.DiscountType,
		Tax:          cart.Tax,
		Total:        cart.GrandTotal,
		Payments:     req.Payments,
		AmountPaid:   money.Round2(paid),
		Change:       change,
		CreditAmount: creditAmount,
		Status:       domain.SaleStatusCompleted,
		Notes:        strings.TrimSpace(req.Notes),
		CreatedBy:    actor.Username,
		CreatedAt:    now,
	}

	created, err := s.sales.CreateSale(ctx, sale)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	if creditAmount > 0 {
		if _, err := s.ledger.AdjustCreditBalance(ctx, req.CustomerID, creditAmount); err != nil {
			if delErr := s.sales.DeleteSale(ctx, created.ID); delErr != nil {
				compErr := &store.CompensationError{Op: "create_sale", Original: err, Cause: delErr}
				log.Printf("[compensation] ERROR: sale %s persisted but credit ledger update and sale rollback both failed: %v", created.ID, compErr)
				return domain.SaleResponse{}, compErr
			}
			return domain.SaleResponse{}, err
		}
	}

	s.applySaleSideEffects(ctx, created)
	s.logAudit(ctx, created.StoreID, "sale_create", "sale", created.ID, fmt.Sprintf("total=%.2f,paid=%.2f,credit=%.2f,items=%d", created.Total, created.AmountPaid, created.CreditAmount, len(created.Items)))

	return domain.SaleResponse{Sale: *created}, nil
}

// HoldTransaction parks a priced cart without payments or stock movement so
// the cashier can serve the next customer.
func (s *Service) HoldTransaction(ctx context.Context, req domain.HoldSaleRequest) (domain.SaleResponse, error) {
	if req.StoreID == "" {
		req.StoreID = s.defaultStoreID
	}
	req.CustomerID = strings.TrimSpace(req.CustomerID)

	items, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	if req.CustomerID != "" {
		if _, err := s.ledger.GetCustomer(ctx, req.CustomerID); err != nil {
			return domain.SaleResponse{}, err
		}
	}

	cart := pricing.ComputeCart(items, req.Discount, req.DiscountType)

	actor, _ := ActorFromContext(ctx)
	now := time.Now().UTC()
	sale := domain.Sale{
		ID:           xid.New("sale"),
		StoreID:      req.StoreID,
		CashierID:    actor.Username,
		CustomerID:   req.CustomerID,
		Items:        items,
		Subtotal:     cart.Subtotal,
		Discount:     cart.DiscountAmount,
		DiscountType: req.DiscountType,
		Tax:          cart.Tax,
		Total:        cart.GrandTotal,
		Status:       domain.SaleStatusHeld,
		Notes:        strings.TrimSpace(req.Notes),
		CreatedBy:    actor.Username,
		HeldBy:       actor.Username,
		HeldAt:       &now,
		CreatedAt:    now,
	}

	created, err := s.sales.CreateSale(ctx, sale)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	s.logAudit(ctx, created.StoreID, "sale_hold", "sale", created.ID, fmt.Sprintf("total=%.2f,items=%d", created.Total, len(created.Items)))
	return domain.SaleResponse{Sale: *created}, nil
}

// ResumeTransaction completes a held sale. Stock availability is re-checked
// against the current catalog because it may have drained while the sale sat
// on hold; the stored totals are authoritative and are not re-priced.
func (s *Service) ResumeTransaction(ctx context.Context, saleID string, req domain.ResumeSaleRequest) (domain.SaleResponse, error) {
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return domain.SaleResponse{}, store.ErrValidation
	}

	held, err := s.sales.GetSaleByID(ctx, saleID)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	unlock := s.locks.lockKeys(saleKey(saleID), customerKey(held.CustomerID))
	defer unlock()

	sale, err := s.sales.GetSaleByID(ctx, saleID)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	if sale.Status != domain.SaleStatusHeld {
		return domain.SaleResponse{}, fmt.Errorf("%w: sale %s is %s, only held sales can be resumed", store.ErrInvalidState, sale.ID, sale.Status)
	}

	for _, item := range sale.Items {
		product, err := s.catalog.FindProduct(ctx, item.ProductID)
		if err != nil {
			return domain.SaleResponse{}, err
		}
		if product.TrackInventory && product.Stock < item.Quantity {
			return domain.SaleResponse{}, fmt.Errorf("%w: product %s", store.ErrInsufficientStock, product.ID)
		}
	}

	paid, creditAmount, err := validatePayments(req.Payments)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	if len(req.Payments) == 0 {
		return domain.SaleResponse{}, fmt.Errorf("%w: at least one payment required", store.ErrValidation)
	}

	if creditAmount > 0 {
		if sale.CustomerID == "" {
			return domain.SaleResponse{}, fmt.Errorf("%w: credit payment requires a customer", store.ErrValidation)
		}
		customer, err := s.ledger.GetCustomer(ctx, sale.CustomerID)
		if err != nil {
			return domain.SaleResponse{}, err
		}
		available := customer.CreditLimit - customer.CreditBalance
		if creditAmount-available > money.Epsilon {
			return domain.SaleResponse{}, store.ErrCreditLimitExceeded
		}
	}

	if !money.GTE(paid, sale.Total) {
		return domain.SaleResponse{}, store.ErrInsufficientPayment
	}
	change := money.Round2(paid - sale.Total)
	if change < 0 {
		change = 0
	}

	if creditAmount > 0 {
		if _, err := s.ledger.AdjustCreditBalance(ctx, sale.CustomerID, creditAmount); err != nil {
			return domain.SaleResponse{}, err
		}
	}

	sale.Status = domain.SaleStatusCompleted
	sale.Payments = req.Payments
	sale.AmountPaid = money.Round2(paid)
	sale.Change = change
	sale.CreditAmount = creditAmount
	sale.HeldBy = ""
	sale.HeldAt = nil

	updated, err := s.sales.UpdateSale(ctx, *sale)
	if err != nil {
		if creditAmount > 0 {
			if _, compErr := s.ledger.AdjustCreditBalance(ctx, sale.CustomerID, -creditAmount); compErr != nil {
				wrapped := &store.CompensationError{Op: "resume_sale", Original: err, Cause: compErr}
				log.Printf("[compensation] ERROR: sale %s credit applied but completion persist and ledger rollback both failed: %v", sale.ID, wrapped)
				return domain.SaleResponse{}, wrapped
			}
		}
		return domain.SaleResponse{}, err
	}

	s.applySaleSideEffects(ctx, updated)
	s.logAudit(ctx, updated.StoreID, "sale_resume", "sale", updated.ID, fmt.Sprintf("total=%.2f,paid=%.2f,credit=%.2f", updated.Total, updated.AmountPaid, updated.CreditAmount))

	return domain.SaleResponse{Sale: *updated}, nil
}

// VoidSale reverses a completed sale: outstanding credit is returned to the
// customer's ledger first, the sale is marked voided, then stock is restored.
// A second void attempt fails with ErrInvalidState and mutates nothing.
func (s *Service) VoidSale(ctx context.Context, saleID string, req domain.VoidSaleRequest) (domain.SaleResponse, error) {
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return domain.SaleResponse{}, store.ErrValidation
	}
	if strings.TrimSpace(req.Reason) == "" {
		req.Reason = "unspecified"
	}

	probe, err := s.sales.GetSaleByID(ctx, saleID)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	unlock := s.locks.lockKeys(saleKey(saleID), customerKey(probe.CustomerID))
	defer unlock()

	sale, err := s.sales.GetSaleByID(ctx, saleID)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	if sale.Status != domain.SaleStatusCompleted {
		return domain.SaleResponse{}, fmt.Errorf("%w: sale %s is %s, only completed sales can be voided", store.ErrInvalidState, sale.ID, sale.Status)
	}

	creditOutstanding := money.Round2(sale.CreditAmount - sale.CreditRefunded)
	if creditOutstanding > 0 {
		if _, err := s.ledger.AdjustCreditBalance(ctx, sale.CustomerID, -creditOutstanding); err != nil {
			return domain.SaleResponse{}, err
		}
	}

	actor, _ := ActorFromContext(ctx)
	now := time.Now().UTC()
	sale.Status = domain.SaleStatusVoided
	sale.VoidedBy = actor.Username
	sale.VoidedAt = &now
	sale.VoidReason = strings.TrimSpace(req.Reason)
	sale.CreditRefunded = sale.CreditAmount

	updated, err := s.sales.UpdateSale(ctx, *sale)
	if err != nil {
		if creditOutstanding > 0 {
			if _, compErr := s.ledger.AdjustCreditBalance(ctx, sale.CustomerID, creditOutstanding); compErr != nil {
				wrapped := &store.CompensationError{Op: "void_sale", Original: err, Cause: compErr}
				log.Printf("[compensation] ERROR: sale %s credit reversed but void persist and ledger re-apply both failed: %v", sale.ID, wrapped)
				return domain.SaleResponse{}, wrapped
			}
		}
		return domain.SaleResponse{}, err
	}

	s.restoreStock(ctx, updated)
	s.logAudit(ctx, updated.StoreID, "sale_void", "sale", updated.ID, fmt.Sprintf("reason=%s,credit_returned=%.2f", updated.VoidReason, creditOutstanding))

	return domain.SaleResponse{Sale: *updated}, nil
}

// RefundSale refunds part or all of a completed sale. Refunded money comes
// out of the customer's credit balance first, up to the outstanding credit
// portion. Only a single refund of the full sale total restores stock; a
// money-amount partial refund has no line-level mapping to inventory.
func (s *Service) RefundSale(ctx context.Context, saleID string, req domain.RefundSaleRequest) (domain.SaleResponse, error) {
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return domain.SaleResponse{}, store.ErrValidation
	}
	if req.Amount <= 0 {
		return domain.SaleResponse{}, fmt.Errorf("%w: refund amount must be positive", store.ErrValidation)
	}

	probe, err := s.sales.GetSaleByID(ctx, saleID)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	unlock := s.locks.lockKeys(saleKey(saleID), customerKey(probe.CustomerID))
	defer unlock()

	sale, err := s.sales.GetSaleByID(ctx, saleID)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	if sale.Status != domain.SaleStatusCompleted && sale.Status != domain.SaleStatusPartialRefund {
		return domain.SaleResponse{}, fmt.Errorf("%w: sale %s is %s, only completed or partially refunded sales can be refunded", store.ErrInvalidState, sale.ID, sale.Status)
	}

	amount := money.Round2(req.Amount)
	remaining := money.Round2(sale.Total - sale.RefundedAmount)
	if amount-remaining > money.Epsilon {
		return domain.SaleResponse{}, fmt.Errorf("%w: refund %.2f exceeds remaining %.2f", store.ErrValidation, amount, remaining)
	}

	creditOutstanding := money.Round2(sale.CreditAmount - sale.CreditRefunded)
	if creditOutstanding < 0 {
		creditOutstanding = 0
	}
	creditToRefund := creditOutstanding
	if amount < creditToRefund {
		creditToRefund = amount
	}

	if creditToRefund > 0 {
		if _, err := s.ledger.AdjustCreditBalance(ctx, sale.CustomerID, -creditToRefund); err != nil {
			return domain.SaleResponse{}, err
		}
	}

	fullRefund := sale.RefundedAmount == 0 && money.Equal(amount, sale.Total)

	actor, _ := ActorFromContext(ctx)
	now := time.Now().UTC()
	sale.RefundedAmount = money.Round2(sale.RefundedAmount + amount)
	sale.CreditRefunded = money.Round2(sale.CreditRefunded + creditToRefund)
	if money.GTE(sale.RefundedAmount, sale.Total) {
		sale.Status = domain.SaleStatusRefunded
	} else {
		sale.Status = domain.SaleStatusPartialRefund
	}
	sale.RefundedBy = actor.Username
	sale.RefundedAt = &now
	sale.RefundReason = strings.TrimSpace(req.Reason)

	updated, err := s.sales.UpdateSale(ctx, *sale)
	if err != nil {
		if creditToRefund > 0 {
			if _, compErr := s.ledger.AdjustCreditBalance(ctx, sale.CustomerID, creditToRefund); compErr != nil {
				wrapped := &store.CompensationError{Op: "refund_sale", Original: err, Cause: compErr}
				log.Printf("[compensation] ERROR: sale %s credit refunded but persist and ledger re-apply both failed: %v", sale.ID, wrapped)
				return domain.SaleResponse{}, wrapped
			}
		}
		return domain.SaleResponse{}, err
	}

	if fullRefund {
		s.restoreStock(ctx, updated)
	}
	s.logAudit(ctx, updated.StoreID, "sale_refund", "sale", updated.ID, fmt.Sprintf("amount=%.2f,credit_refunded=%.2f,status=%s", amount, creditToRefund, updated.Status))

	return domain.SaleResponse{Sale: *updated}, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (domain.SaleResponse, error) {
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return domain.SaleResponse{}, store.ErrValidation
	}
	sale, err := s.sales.GetSaleByID(ctx, saleID)
	if err != nil {
		return domain.SaleResponse{}, err
	}
	return domain.SaleResponse{Sale: *sale}, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) (domain.SaleListResponse, error) {
	if filter.StoreID == "" {
		filter.StoreID = s.defaultStoreID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 50
	}
	if filter.PageSize > 200 {
		filter.PageSize = 200
	}

	sales, total, err := s.sales.ListSales(ctx, filter)
	if err != nil {
		return domain.SaleListResponse{}, err
	}
	return domain.SaleListResponse{
		Sales:    sales,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

func (s *Service) ListHeldTransactions(ctx context.Context, storeID string) (domain.HeldSaleListResponse, error) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}
	sales, err := s.sales.ListHeldSales(ctx, storeID)
	if err != nil {
		return domain.HeldSaleListResponse{}, err
	}
	return domain.HeldSaleListResponse{Sales: sales}, nil
}

// DailySummary aggregates completed sales for one store and calendar day.
// Past days are immutable once closed, so those go through the cache.
func (s *Service) DailySummary(ctx context.Context, storeID string, date string) (domain.DailySummary, error) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}

	var day time.Time
	if strings.TrimSpace(date) == "" {
		now := time.Now().UTC()
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return domain.DailySummary{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrValidation)
		}
		day = parsed.UTC()
	}
	from := day
	to := from.Add(24 * time.Hour)

	now := time.Now().UTC()
	closedDay := !to.After(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC))
	cacheKey := "summary:" + storeID + ":" + from.Format("2006-01-02")

	if closedDay {
		if cached, ok, err := s.summaries.Get(ctx, cacheKey); err == nil && ok {
			return *cached, nil
		} else if err != nil {
			log.Printf("[service] WARN: daily summary cache read failed store=%s date=%s: %v", storeID, date, err)
		}
	}

	summary, err := s.sales.GetDailySummary(ctx, storeID, from, to)
	if err != nil {
		return domain.DailySummary{}, err
	}
	summary.StoreID = storeID
	summary.Date = from.Format("2006-01-02")

	if closedDay {
		if err := s.summaries.Set(ctx, cacheKey, &summary, summaryCacheTTL); err != nil {
			log.Printf("[service] WARN: daily summary cache write failed store=%s date=%s: %v", storeID, summary.Date, err)
		}
	}

	return summary, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, storeID string, date string, limit int) ([]domain.AuditLog, error) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrValidation
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.sales.ListAuditLogs(ctx, storeID, from, to, limit)
}

// buildItems resolves products, validates quantities and stock availability,
// and prices each line with a point-in-time snapshot. It does not move stock.
func (s *Service) buildItems(ctx context.Context, reqItems []domain.SaleItemRequest) ([]domain.SaleItem, error) {
	if len(reqItems) == 0 {
		return nil, fmt.Errorf("%w: at least one item required", store.ErrValidation)
	}

	items := make([]domain.SaleItem, 0, len(reqItems))
	for _, reqItem := range reqItems {
		if strings.TrimSpace(reqItem.ProductID) == "" {
			return nil, fmt.Errorf("%w: item product_id required", store.ErrValidation)
		}
		if reqItem.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item quantity must be positive", store.ErrValidation)
		}
		if reqItem.Discount < 0 {
			return nil, fmt.Errorf("%w: item discount cannot be negative", store.ErrValidation)
		}
		if reqItem.DiscountType == "" {
			reqItem.DiscountType = domain.DiscountTypeFixed
		}

		product, err := s.catalog.FindProduct(ctx, reqItem.ProductID)
		if err != nil {
			return nil, err
		}
		if !product.Active {
			return nil, fmt.Errorf("%w: product %s is inactive", store.ErrValidation, product.ID)
		}
		if product.TrackInventory && product.Stock < reqItem.Quantity {
			return nil, fmt.Errorf("%w: product %s", store.ErrInsufficientStock, product.ID)
		}

		unitPrice := product.Price
		if reqItem.UnitPrice != nil {
			if *reqItem.UnitPrice < 0 {
				return nil, fmt.Errorf("%w: unit price cannot be negative", store.ErrValidation)
			}
			unitPrice = *reqItem.UnitPrice
		}

		line := pricing.ComputeLine(reqItem.Quantity, unitPrice, reqItem.Discount, reqItem.DiscountType, product.TaxRate)
		items = append(items, domain.SaleItem{
			ProductID:    product.ID,
			SKU:          product.SKU,
			Name:         product.Name,
			Quantity:     reqItem.Quantity,
			UnitPrice:    unitPrice,
			UnitCost:     product.Cost,
			Discount:     reqItem.Discount,
			DiscountType: reqItem.DiscountType,
			TaxRate:      product.TaxRate,
			Subtotal:     line.Subtotal,
			Tax:          line.Tax,
			Total:        line.Total,
		})
	}
	return items, nil
}

// applySaleSideEffects runs the non-financial follow-ups of a completed sale.
// Failures here never fail the sale, they are logged for reconciliation.
func (s *Service) applySaleSideEffects(ctx context.Context, sale *domain.Sale) {
	for _, item := range sale.Items {
		if err := s.catalog.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			log.Printf("[service] WARN: stock decrement failed sale=%s product=%s qty=%v: %v", sale.ID, item.ProductID, item.Quantity, err)
		}
	}

	if sale.CustomerID == "" {
		return
	}
	loyalty := int64(math.Floor(sale.Total))
	if loyalty < 0 {
		loyalty = 0
	}
	if err := s.ledger.RecordPurchase(ctx, sale.CustomerID, sale.Total, loyalty, sale.CreatedAt); err != nil {
		log.Printf("[service] WARN: customer stats update failed sale=%s customer=%s: %v", sale.ID, sale.CustomerID, err)
	}
}

// restoreStock returns a sale's quantities to the catalog, best-effort.
func (s *Service) restoreStock(ctx context.Context, sale *domain.Sale) {
	for _, item := range sale.Items {
		if err := s.catalog.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			log.Printf("[service] WARN: stock restore failed sale=%s product=%s qty=%v: %v", sale.ID, item.ProductID, item.Quantity, err)
		}
	}
}

// validatePayments checks methods and amounts and returns the paid total and
// the credit portion, both rounded.
func validatePayments(payments []domain.Payment) (paid float64, credit float64, err error) {
	for _, p := range payments {
		if !isSupportedPaymentMethod(p.Method) {
			return 0, 0, fmt.Errorf("%w: unsupported payment method %q", store.ErrValidation, p.Method)
		}
		if p.Amount <= 0 {
			return 0, 0, fmt.Errorf("%w: payment amount must be positive", store.ErrValidation)
		}
		paid += p.Amount
		if p.Method == domain.PaymentMethodCredit {
			credit += p.Amount
		}
	}
	return money.Round2(paid), money.Round2(credit), nil
}

func (s *Service) logAudit(ctx context.Context, storeID string, action string, entityType string, entityID string, detail string) {
	if storeID == "" {
		storeID = s.defaultStoreID
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.sales.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		StoreID:       storeID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func saleKey(id string) string {
	if id == "" {
		return ""
	}
	return "sale:" + id
}

func customerKey(id string) string {
	if id == "" {
		return ""
	}
	return "cust:" + id
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentMethodCash, domain.PaymentMethodCard, domain.PaymentMethodCredit:
		return true
	default:
		return false
	}
}
