package domain

import "time"

type Product struct {
	ID             string    `json:"id"`
	StoreID        string    `json:"store_id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Price          float64   `json:"price"`
	Cost           float64   `json:"cost"`
	TaxRate        float64   `json:"tax_rate"`
	TrackInventory bool      `json:"track_inventory"`
	Stock          float64   `json:"stock"`
	MinStock       float64   `json:"min_stock"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

type Customer struct {
	ID             string     `json:"id"`
	StoreID        string     `json:"store_id"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone"`
	CreditLimit    float64    `json:"credit_limit"`
	CreditBalance  float64    `json:"credit_balance"`
	PurchaseCount  int64      `json:"purchase_count"`
	TotalSpent     float64    `json:"total_spent"`
	LoyaltyPoints  int64      `json:"loyalty_points"`
	LastPurchaseAt *time.Time `json:"last_purchase_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// SaleItem snapshots the product at sale time so later catalog edits do not
// rewrite history.
type SaleItem struct {
	ProductID    string  `json:"product_id"`
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	UnitCost     float64 `json:"unit_cost"`
	Discount     float64 `json:"discount"`
	DiscountType string  `json:"discount_type"`
	TaxRate      float64 `json:"tax_rate"`
	Subtotal     float64 `json:"subtotal"`
	Tax          float64 `json:"tax"`
	Total        float64 `json:"total"`
}

type Payment struct {
	Method    string  `json:"method"`
	Amount    float64 `json:"amount"`
	Reference string  `json:"reference,omitempty"`
}

type Sale struct {
	ID             string     `json:"id"`
	StoreID        string     `json:"store_id"`
	CashierID      string     `json:"cashier_id"`
	CustomerID     string     `json:"customer_id,omitempty"`
	Items          []SaleItem `json:"items"`
	Subtotal       float64    `json:"subtotal"`
	Discount       float64    `json:"discount"`
	DiscountType   string     `json:"discount_type"`
	Tax            float64    `json:"tax"`
	Total          float64    `json:"total"`
	Payments       []Payment  `json:"payments"`
	AmountPaid     float64    `json:"amount_paid"`
	Change         float64    `json:"change"`
	CreditAmount   float64    `json:"credit_amount"`
	CreditRefunded float64    `json:"credit_refunded"`
	RefundedAmount float64    `json:"refunded_amount"`
	Status         string     `json:"status"`
	Notes          string     `json:"notes,omitempty"`
	CreatedBy      string     `json:"created_by"`
	HeldBy         string     `json:"held_by,omitempty"`
	HeldAt         *time.Time `json:"held_at,omitempty"`
	VoidedBy       string     `json:"voided_by,omitempty"`
	VoidedAt       *time.Time `json:"voided_at,omitempty"`
	VoidReason     string     `json:"void_reason,omitempty"`
	RefundedBy     string     `json:"refunded_by,omitempty"`
	RefundedAt     *time.Time `json:"refunded_at,omitempty"`
	RefundReason   string     `json:"refund_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type SaleItemRequest struct {
	ProductID    string   `json:"product_id"`
	Quantity     float64  `json:"quantity"`
	UnitPrice    *float64 `json:"unit_price,omitempty"`
	Discount     float64  `json:"discount"`
	DiscountType string   `json:"discount_type"`
}

type CreateSaleRequest struct {
	StoreID      string            `json:"store_id"`
	CustomerID   string            `json:"customer_id,omitempty"`
	Items        []SaleItemRequest `json:"items"`
	Discount     float64           `json:"discount"`
	DiscountType string            `json:"discount_type"`
	Payments     []Payment         `json:"payments"`
	Notes        string            `json:"notes,omitempty"`
}

type SaleResponse struct {
	Sale Sale `json:"sale"`
}

type HoldSaleRequest struct {
	StoreID      string            `json:"store_id"`
	CustomerID   string            `json:"customer_id,omitempty"`
	Items        []SaleItemRequest `json:"items"`
	Discount     float64           `json:"discount"`
	DiscountType string            `json:"discount_type"`
	Notes        string            `json:"notes,omitempty"`
}

type ResumeSaleRequest struct {
	Payments []Payment `json:"payments"`
}

type VoidSaleRequest struct {
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin"`
}

type RefundSaleRequest struct {
	Amount     float64 `json:"amount"`
	Reason     string  `json:"reason"`
	ManagerPIN string  `json:"manager_pin"`
}

type SaleFilter struct {
	StoreID    string
	CashierID  string
	CustomerID string
	Status     string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

type SaleListResponse struct {
	Sales    []Sale `json:"sales"`
	Total    int64  `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

type HeldSaleListResponse struct {
	Sales []Sale `json:"sales"`
}

type DailySummaryPayment struct {
	Method string  `json:"method"`
	Count  int64   `json:"count"`
	Total  float64 `json:"total"`
}

type DailySummary struct {
	StoreID       string                `json:"store_id"`
	Date          string                `json:"date"`
	SaleCount     int64                 `json:"sale_count"`
	TotalRevenue  float64               `json:"total_revenue"`
	TotalDiscount float64               `json:"total_discount"`
	TotalTax      float64               `json:"total_tax"`
	AverageSale   float64               `json:"average_sale"`
	ByPayment     []DailySummaryPayment `json:"by_payment"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	StoreID     string `json:"store_id"`
	ExpiresAt   string `json:"expires_at"`
}

// Actor is the authenticated caller: who they are, what they may do, and
// which store their session is scoped to.
type Actor struct {
	Username string
	Role     string
	StoreID  string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	StoreID       string    `json:"store_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	SaleStatusHeld          = "held"
	SaleStatusCompleted     = "completed"
	SaleStatusVoided        = "voided"
	SaleStatusRefunded      = "refunded"
	SaleStatusPartialRefund = "partial_refund"
)

const (
	PaymentMethodCash   = "cash"
	PaymentMethodCard   = "card"
	PaymentMethodCredit = "credit"
)

const (
	DiscountTypePercentage = "percentage"
	DiscountTypeFixed      = "fixed"
)
