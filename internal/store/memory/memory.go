package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"salepoint/backend/internal/domain"
	"salepoint/backend/internal/money"
	"salepoint/backend/internal/store"
	"salepoint/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	productsByID    map[string]domain.Product
	customersByID   map[string]domain.Customer
	salesByID       map[string]*domain.Sale
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		productsByID:    make(map[string]domain.Product),
		customersByID:   make(map[string]domain.Customer),
		salesByID:       make(map[string]*domain.Sale),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prod-espresso", StoreID: "main-store", SKU: "SKU-ESP-01", Name: "Espresso Beans 1kg", Category: "beverage", Price: 18.50, Cost: 11.20, TaxRate: 8, TrackInventory: true, Stock: 120, MinStock: 10, Active: true, CreatedAt: now},
		{ID: "prod-grinder", StoreID: "main-store", SKU: "SKU-GRD-01", Name: "Hand Grinder", Category: "equipment", Price: 42.00, Cost: 26.00, TaxRate: 8, TrackInventory: true, Stock: 35, MinStock: 5, Active: true, CreatedAt: now},
		{ID: "prod-mug", StoreID: "main-store", SKU: "SKU-MUG-01", Name: "Ceramic Mug", Category: "merch", Price: 10.00, Cost: 4.10, TaxRate: 8, TrackInventory: true, Stock: 200, MinStock: 20, Active: true, CreatedAt: now},
		{ID: "prod-filter", StoreID: "main-store", SKU: "SKU-FLT-01", Name: "Paper Filters 100pk", Category: "consumable", Price: 6.25, Cost: 2.90, TaxRate: 8, TrackInventory: true, Stock: 150, MinStock: 25, Active: true, CreatedAt: now},
		{ID: "prod-giftcard", StoreID: "main-store", SKU: "SKU-GFT-01", Name: "Gift Card", Category: "service", Price: 25.00, Cost: 0, TaxRate: 0, TrackInventory: false, Stock: 0, MinStock: 0, Active: true, CreatedAt: now},
		{ID: "prod-syrup", StoreID: "main-store", SKU: "SKU-SYR-01", Name: "Vanilla Syrup", Category: "consumable", Price: 8.75, Cost: 4.00, TaxRate: 8, TrackInventory: true, Stock: 60, MinStock: 10, Active: true, CreatedAt: now},
	}
	customers := []domain.Customer{
		{ID: "cust-walkin", StoreID: "main-store", Name: "Dana Walker", Phone: "555-0101", CreditLimit: 0, CreditBalance: 0, CreatedAt: now},
		{ID: "cust-regular", StoreID: "main-store", Name: "Sam Ortiz", Phone: "555-0102", CreditLimit: 100, CreditBalance: 0, CreatedAt: now},
		{ID: "cust-wholesale", StoreID: "main-store", Name: "Riverside Cafe", Phone: "555-0103", CreditLimit: 500, CreditBalance: 120.50, CreatedAt: now},
	}

	s := New()
	for _, p := range products {
		s.productsByID[p.ID] = p
	}
	for _, c := range customers {
		s.customersByID[c.ID] = c
	}
	return s
}

// SeedProduct and SeedCustomer insert fixtures directly, used by tests.
func (s *Store) SeedProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productsByID[p.ID] = p
}

func (s *Store) SeedCustomer(c domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customersByID[c.ID] = c
}

func (s *Store) FindProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.productsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) ListProducts(_ context.Context, storeID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByID))
	for _, p := range s.productsByID {
		if !p.Active {
			continue
		}
		if storeID != "" && p.StoreID != storeID {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) DecrementStock(_ context.Context, productID string, qty float64) error {
	if qty <= 0 {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.productsByID[productID]
	if !exists {
		return store.ErrNotFound
	}
	if !product.TrackInventory {
		return nil
	}
	if product.Stock < qty {
		return store.ErrInsufficientStock
	}
	product.Stock -= qty
	s.productsByID[productID] = product
	return nil
}

func (s *Store) IncrementStock(_ context.Context, productID string, qty float64) error {
	if qty <= 0 {
		return store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.productsByID[productID]
	if !exists {
		return store.ErrNotFound
	}
	if !product.TrackInventory {
		return nil
	}
	product.Stock += qty
	s.productsByID[productID] = product
	return nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCustomer := cloneCustomer(customer)
	return &copyCustomer, nil
}

func (s *Store) AdjustCreditBalance(_ context.Context, customerID string, delta float64) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, exists := s.customersByID[customerID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if delta > 0 {
		available := customer.CreditLimit - customer.CreditBalance
		if delta-available > money.Epsilon {
			return nil, store.ErrCreditLimitExceeded
		}
	}
	next := customer.CreditBalance + delta
	if next < -money.Epsilon {
		return nil, store.ErrValidation
	}
	next = money.Round2(next)
	if next < 0 {
		next = 0
	}
	customer.CreditBalance = next
	s.customersByID[customerID] = customer
	copyCustomer := cloneCustomer(customer)
	return &copyCustomer, nil
}

func (s *Store) RecordPurchase(_ context.Context, customerID string, amount float64, loyaltyPoints int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, exists := s.customersByID[customerID]
	if !exists {
		return store.ErrNotFound
	}
	customer.PurchaseCount++
	customer.TotalSpent = money.Round2(customer.TotalSpent + amount)
	customer.LoyaltyPoints += loyaltyPoints
	purchasedAt := at
	customer.LastPurchaseAt = &purchasedAt
	s.customersByID[customerID] = customer
	return nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, store.ErrValidation
	}

	saved := cloneSale(&sale)
	s.salesByID[sale.ID] = saved
	return cloneSale(saved), nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) UpdateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByID[sale.ID]; !exists {
		return nil, store.ErrNotFound
	}
	saved := cloneSale(&sale)
	s.salesByID[sale.ID] = saved
	return cloneSale(saved), nil
}

func (s *Store) DeleteSale(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.salesByID[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.salesByID, id)
	return nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Sale, 0, 64)
	for _, sale := range s.salesByID {
		if filter.StoreID != "" && sale.StoreID != filter.StoreID {
			continue
		}
		if filter.CashierID != "" && sale.CashierID != filter.CashierID {
			continue
		}
		if filter.CustomerID != "" && sale.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		if filter.From != nil && sale.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !sale.CreatedAt.Before(*filter.To) {
			continue
		}
		matched = append(matched, *cloneSale(sale))
	}

	slices.SortFunc(matched, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})

	total := int64(len(matched))
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size < 1 {
		size = 50
	}
	start := (page - 1) * size
	if start >= len(matched) {
		return []domain.Sale{}, total, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *Store) ListHeldSales(_ context.Context, storeID string) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, 16)
	for _, sale := range s.salesByID {
		if sale.Status != domain.SaleStatusHeld {
			continue
		}
		if storeID != "" && sale.StoreID != storeID {
			continue
		}
		result = append(result, *cloneSale(sale))
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		aAt, bAt := a.CreatedAt, b.CreatedAt
		if a.HeldAt != nil {
			aAt = *a.HeldAt
		}
		if b.HeldAt != nil {
			bAt = *b.HeldAt
		}
		if aAt.Equal(bAt) {
			return cmpString(b.ID, a.ID)
		}
		if aAt.After(bAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) GetDailySummary(_ context.Context, storeID string, from time.Time, to time.Time) (domain.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.DailySummary{
		StoreID:   storeID,
		ByPayment: make([]domain.DailySummaryPayment, 0, 4),
	}
	byPayment := map[string]*domain.DailySummaryPayment{}

	for _, sale := range s.salesByID {
		if sale.StoreID != storeID {
			continue
		}
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}

		summary.SaleCount++
		summary.TotalRevenue += sale.Total
		summary.TotalDiscount += sale.Discount
		summary.TotalTax += sale.Tax

		for _, p := range sale.Payments {
			entry := byPayment[p.Method]
			if entry == nil {
				entry = &domain.DailySummaryPayment{Method: p.Method}
				byPayment[p.Method] = entry
			}
			entry.Count++
			entry.Total += p.Amount
		}
	}

	summary.TotalRevenue = money.Round2(summary.TotalRevenue)
	summary.TotalDiscount = money.Round2(summary.TotalDiscount)
	summary.TotalTax = money.Round2(summary.TotalTax)
	if summary.SaleCount > 0 {
		summary.AverageSale = money.Round2(summary.TotalRevenue / float64(summary.SaleCount))
	}

	for _, entry := range byPayment {
		entry.Total = money.Round2(entry.Total)
		summary.ByPayment = append(summary.ByPayment, *entry)
	}
	slices.SortFunc(summary.ByPayment, func(a, b domain.DailySummaryPayment) int {
		return cmpString(a.Method, b.Method)
	})

	return summary, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if storeID != "" && entry.StoreID != storeID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrValidation
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrValidation
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.SaleItem, len(src.Items))
	copy(items, src.Items)
	dup.Items = items
	payments := make([]domain.Payment, len(src.Payments))
	copy(payments, src.Payments)
	dup.Payments = payments
	if src.HeldAt != nil {
		at := *src.HeldAt
		dup.HeldAt = &at
	}
	if src.VoidedAt != nil {
		at := *src.VoidedAt
		dup.VoidedAt = &at
	}
	if src.RefundedAt != nil {
		at := *src.RefundedAt
		dup.RefundedAt = &at
	}
	return &dup
}

func cloneCustomer(src domain.Customer) domain.Customer {
	dup := src
	if src.LastPurchaseAt != nil {
		at := *src.LastPurchaseAt
		dup.LastPurchaseAt = &at
	}
	return dup
}
