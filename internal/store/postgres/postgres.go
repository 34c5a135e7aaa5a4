package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/money"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, sku, name, category, price, cost, tax_rate,
			track_inventory, stock, min_stock, active, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.StoreID, &p.SKU, &p.Name, &p.Category, &p.Price, &p.Cost, &p.TaxRate,
		&p.TrackInventory, &p.Stock, &p.MinStock, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, sku, name, category, price, cost, tax_rate,
			track_inventory, stock, min_stock, active, created_at
		FROM products
		WHERE active = true AND ($1 = '' OR store_id = $1)
		ORDER BY category, name
	`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.StoreID, &p.SKU, &p.Name, &p.Category, &p.Price, &p.Cost, &p.TaxRate,
			&p.TrackInventory, &p.Stock, &p.MinStock, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

// DecrementStock is a single guarded UPDATE so concurrent decrements cannot
// oversell. A zero row count is classified with a follow-up read: missing
// product, untracked inventory (a no-op) or insufficient stock.
func (s *Store) DecrementStock(ctx context.Context, productID string, qty float64) error {
	if qty <= 0 {
		return store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND track_inventory = true AND stock >= $2
	`, productID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var trackInventory bool
	err = s.db.QueryRowContext(ctx, `
		SELECT track_inventory FROM products WHERE id = $1
	`, productID).Scan(&trackInventory)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if !trackInventory {
		return nil
	}
	return store.ErrInsufficientStock
}

func (s *Store) IncrementStock(ctx context.Context, productID string, qty float64) error {
	if qty <= 0 {
		return store.ErrValidation
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $2
		WHERE id = $1 AND track_inventory = true
	`, productID, qty)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var trackInventory bool
	err = s.db.QueryRowContext(ctx, `
		SELECT track_inventory FROM products WHERE id = $1
	`, productID).Scan(&trackInventory)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	var lastPurchase sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, store_id, name, phone, credit_limit, credit_balance,
			purchase_count, total_spent, loyalty_points, last_purchase_at, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.StoreID, &c.Name, &c.Phone, &c.CreditLimit, &c.CreditBalance,
		&c.PurchaseCount, &c.TotalSpent, &c.LoyaltyPoints, &lastPurchase, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if lastPurchase.Valid {
		at := lastPurchase.Time.UTC()
		c.LastPurchaseAt = &at
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// AdjustCreditBalance applies the signed delta in one guarded UPDATE. The
// WHERE clause encodes the credit-limit check for positive deltas and the
// below-zero check for negative ones; the stored balance is rounded to two
// decimals and clamped at zero. A zero row count is classified with a
// follow-up read.
func (s *Store) AdjustCreditBalance(ctx context.Context, customerID string, delta float64) (*domain.Customer, error) {
	var c domain.Customer
	var lastPurchase sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		UPDATE customers
		SET credit_balance = GREATEST(0, ROUND((credit_balance + $2)::numeric, 2))
		WHERE id = $1
			AND ($2 <= 0 OR $2 - (credit_limit - credit_balance) <= 0.01)
			AND ($2 >= 0 OR credit_balance + $2 >= -0.01)
		RETURNING id, store_id, name, phone, credit_limit, credit_balance,
			purchase_count, total_spent, loyalty_points, last_purchase_at, created_at
	`, customerID, delta).Scan(&c.ID, &c.StoreID, &c.Name, &c.Phone, &c.CreditLimit, &c.CreditBalance,
		&c.PurchaseCount, &c.TotalSpent, &c.LoyaltyPoints, &lastPurchase, &c.CreatedAt)
	if err == nil {
		if lastPurchase.Valid {
			at := lastPurchase.Time.UTC()
			c.LastPurchaseAt = &at
		}
		c.CreatedAt = c.CreatedAt.UTC()
		return &c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT true FROM customers WHERE id = $1
	`, customerID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if delta > 0 {
		return nil, store.ErrCreditLimitExceeded
	}
	return nil, store.ErrValidation
}

func (s *Store) RecordPurchase(ctx context.Context, customerID string, amount float64, loyaltyPoints int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET purchase_count = purchase_count + 1,
			total_spent = ROUND((total_spent + $2)::numeric, 2),
			loyalty_points = loyalty_points + $3,
			last_purchase_at = $4
		WHERE id = $1
	`, customerID, amount, loyaltyPoints, at)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const saleColumns = `
	id, store_id, cashier_id, customer_id, items, subtotal, discount, discount_type,
	tax, total, payments, amount_paid, change, credit_amount, credit_refunded,
	refunded_amount, status, notes, created_by, held_by, held_at,
	voided_by, voided_at, void_reason, refunded_by, refunded_at, refund_reason, created_at
`

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	itemsJSON, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, err
	}
	paymentsJSON, err := json.Marshal(sale.Payments)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
	`, sale.ID, sale.StoreID, sale.CashierID, sale.CustomerID, itemsJSON, sale.Subtotal, sale.Discount, sale.DiscountType,
		sale.Tax, sale.Total, paymentsJSON, sale.AmountPaid, sale.Change, sale.CreditAmount, sale.CreditRefunded,
		sale.RefundedAmount, sale.Status, sale.Notes, sale.CreatedBy, sale.HeldBy, nullTime(sale.HeldAt),
		sale.VoidedBy, nullTime(sale.VoidedAt), sale.VoidReason, sale.RefundedBy, nullTime(sale.RefundedAt), sale.RefundReason, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrValidation
		}
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1
	`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return sale, nil
}

func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	itemsJSON, err := json.Marshal(sale.Items)
	if err != nil {
		return nil, err
	}
	paymentsJSON, err := json.Marshal(sale.Payments)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET store_id = $2, cashier_id = $3, customer_id = $4, items = $5, subtotal = $6,
			discount = $7, discount_type = $8, tax = $9, total = $10, payments = $11,
			amount_paid = $12, change = $13, credit_amount = $14, credit_refunded = $15,
			refunded_amount = $16, status = $17, notes = $18, created_by = $19,
			held_by = $20, held_at = $21, voided_by = $22, voided_at = $23, void_reason = $24,
			refunded_by = $25, refunded_at = $26, refund_reason = $27, created_at = $28
		WHERE id = $1
	`, sale.ID, sale.StoreID, sale.CashierID, sale.CustomerID, itemsJSON, sale.Subtotal,
		sale.Discount, sale.DiscountType, sale.Tax, sale.Total, paymentsJSON,
		sale.AmountPaid, sale.Change, sale.CreditAmount, sale.CreditRefunded,
		sale.RefundedAmount, sale.Status, sale.Notes, sale.CreatedBy,
		sale.HeldBy, nullTime(sale.HeldAt), sale.VoidedBy, nullTime(sale.VoidedAt), sale.VoidReason,
		sale.RefundedBy, nullTime(sale.RefundedAt), sale.RefundReason, sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := sale
	return &updated, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, int64, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	where := `
		WHERE ($1 = '' OR store_id = $1)
			AND ($2 = '' OR cashier_id = $2)
			AND ($3 = '' OR customer_id = $3)
			AND ($4 = '' OR status = $4)
			AND ($5::timestamptz IS NULL OR created_at >= $5)
			AND ($6::timestamptz IS NULL OR created_at < $6)
	`
	args := []any{filter.StoreID, filter.CashierID, filter.CustomerID, filter.Status, nullTime(filter.From), nullTime(filter.To)}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
	`+where+`
		ORDER BY created_at DESC
		LIMIT $7 OFFSET $8
	`, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, pageSize)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return sales, total, nil
}

func (s *Store) ListHeldSales(ctx context.Context, storeID string) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE status = $1 AND ($2 = '' OR store_id = $2)
		ORDER BY held_at DESC
	`, domain.SaleStatusHeld, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 16)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) GetDailySummary(ctx context.Context, storeID string, from time.Time, to time.Time) (domain.DailySummary, error) {
	summary := domain.DailySummary{
		StoreID:   storeID,
		ByPayment: make([]domain.DailySummaryPayment, 0, 4),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*)::bigint,
			COALESCE(SUM(total),0)::float8,
			COALESCE(SUM(discount),0)::float8,
			COALESCE(SUM(tax),0)::float8
		FROM sales
		WHERE store_id = $1
			AND status = $2
			AND created_at >= $3
			AND created_at < $4
	`, storeID, domain.SaleStatusCompleted, from, to).Scan(
		&summary.SaleCount,
		&summary.TotalRevenue,
		&summary.TotalDiscount,
		&summary.TotalTax,
	)
	if err != nil {
		return summary, err
	}
	summary.TotalRevenue = money.Round2(summary.TotalRevenue)
	summary.TotalDiscount = money.Round2(summary.TotalDiscount)
	summary.TotalTax = money.Round2(summary.TotalTax)
	if summary.SaleCount > 0 {
		summary.AverageSale = money.Round2(summary.TotalRevenue / float64(summary.SaleCount))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p->>'method', COUNT(*)::bigint, COALESCE(SUM((p->>'amount')::float8),0)::float8
		FROM sales s, jsonb_array_elements(s.payments) p
		WHERE s.store_id = $1
			AND s.status = $2
			AND s.created_at >= $3
			AND s.created_at < $4
		GROUP BY 1
		ORDER BY 1
	`, storeID, domain.SaleStatusCompleted, from, to)
	if err != nil {
		return summary, err
	}
	defer rows.Close()

	for rows.Next() {
		var row domain.DailySummaryPayment
		if err := rows.Scan(&row.Method, &row.Count, &row.Total); err != nil {
			return summary, err
		}
		row.Total = money.Round2(row.Total)
		summary.ByPayment = append(summary.ByPayment, row)
	}
	if err := rows.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, store_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.StoreID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE store_id = $1
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, storeID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.StoreID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pos_users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrValidation
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM pos_users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pos_users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	var sale domain.Sale
	var itemsJSON, paymentsJSON []byte
	var heldAt, voidedAt, refundedAt sql.NullTime

	err := row.Scan(
		&sale.ID, &sale.StoreID, &sale.CashierID, &sale.CustomerID, &itemsJSON, &sale.Subtotal,
		&sale.Discount, &sale.DiscountType, &sale.Tax, &sale.Total, &paymentsJSON,
		&sale.AmountPaid, &sale.Change, &sale.CreditAmount, &sale.CreditRefunded,
		&sale.RefundedAmount, &sale.Status, &sale.Notes, &sale.CreatedBy,
		&sale.HeldBy, &heldAt, &sale.VoidedBy, &voidedAt, &sale.VoidReason,
		&sale.RefundedBy, &refundedAt, &sale.RefundReason, &sale.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &sale.Items); err != nil {
			return nil, err
		}
	}
	if len(paymentsJSON) > 0 {
		if err := json.Unmarshal(paymentsJSON, &sale.Payments); err != nil {
			return nil, err
		}
	}
	if heldAt.Valid {
		at := heldAt.Time.UTC()
		sale.HeldAt = &at
	}
	if voidedAt.Valid {
		at := voidedAt.Time.UTC()
		sale.VoidedAt = &at
	}
	if refundedAt.Valid {
		at := refundedAt.Time.UTC()
		sale.RefundedAt = &at
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	return &sale, nil
}

func nullTime(val *time.Time) any {
	if val == nil || val.IsZero() {
		return nil
	}
	return val.UTC()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
