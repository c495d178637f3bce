package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// CriticalStockLevel is the stock at or below which an active product is flagged for replenishment.
const CriticalStockLevel = 50

// CollectionProductID marks a transaction as a collection (payment) instead of a sale.
const CollectionProductID = "collection"

const (
	MovementIn  = "in"
	MovementOut = "out"
)

// Stock movement reasons written by the ledger itself.
const (
	ReasonNewProduct  = "Yeni ürün eklendi"
	ReasonProductEdit = "Ürün düzenleme"
	ReasonManualStock = "Manuel stok düzeltme"
)

// Input limits. A product's stock value stays below 1e16 kuruş.
const (
	MaxStock           = 10_000_000
	MaxPriceCents      = 1_000_000_000
	MaxCollectionCents = 1_000_000_000_000
)

const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
	PaymentCheck    = "check"
)

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TaxRate   float64   `json:"tax_rate"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryInput struct {
	Name    string  `json:"name"`
	TaxRate float64 `json:"tax_rate"`
}

type CategoryPatch struct {
	Name     *string  `json:"name,omitempty"`
	TaxRate  *float64 `json:"tax_rate,omitempty"`
	IsActive *bool    `json:"is_active,omitempty"`
}

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CategoryID string    `json:"category_id"`
	Stock      int       `json:"stock"`
	PriceCents int64     `json:"price_cents"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

type ProductInput struct {
	Name       string `json:"name"`
	CategoryID string `json:"category_id"`
	Stock      int    `json:"stock"`
	PriceCents int64  `json:"price_cents"`
}

type ProductPatch struct {
	Name       *string `json:"name,omitempty"`
	CategoryID *string `json:"category_id,omitempty"`
	Stock      *int    `json:"stock,omitempty"`
	PriceCents *int64  `json:"price_cents,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
}

type Broker struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Surname      string        `json:"surname"`
	Transactions []Transaction `json:"transactions"`
	HasReceipt   bool          `json:"has_receipt"`
	DiscountRate float64       `json:"discount_rate"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (b Broker) FullName() string {
	return strings.TrimSpace(b.Name + " " + b.Surname)
}

type BrokerInput struct {
	Name         string  `json:"name"`
	Surname      string  `json:"surname"`
	HasReceipt   bool    `json:"has_receipt"`
	DiscountRate float64 `json:"discount_rate"`
}

type BrokerPatch struct {
	Name       *string `json:"name,omitempty"`
	Surname    *string `json:"surname,omitempty"`
	HasReceipt *bool   `json:"has_receipt,omitempty"`
}

// Transaction is an immutable ledger entry. Sales carry a positive FinalCents,
// collections carry ProductID == CollectionProductID and negative amounts.
type Transaction struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	TotalCents     int64     `json:"total_cents"`
	FinalCents     int64     `json:"final_cents"`
	DiscountRate   float64   `json:"discount_rate"`
	Date           time.Time `json:"date"`
}

func (t Transaction) IsCollection() bool {
	return t.ProductID == CollectionProductID
}

// UnmarshalJSON accepts entries saved before final_cents existed; those
// are settled at their pre-discount total.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction
	var raw struct {
		plain
		FinalCents *int64 `json:"final_cents"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Transaction(raw.plain)
	if raw.FinalCents != nil {
		t.FinalCents = *raw.FinalCents
	} else {
		t.FinalCents = t.TotalCents
	}
	return nil
}

type StockMovement struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	Type        string    `json:"type"`
	Quantity    int       `json:"quantity"`
	Reason      string    `json:"reason"`
	Date        time.Time `json:"date"`
}

// State is the whole persisted ledger. It is saved and loaded as one blob.
type State struct {
	Categories     []Category      `json:"categories"`
	Products       []Product       `json:"products"`
	Brokers        []Broker        `json:"brokers"`
	StockMovements []StockMovement `json:"stock_movements"`
}

func (s State) Clone() State {
	dup := State{
		Categories:     make([]Category, len(s.Categories)),
		Products:       make([]Product, len(s.Products)),
		Brokers:        make([]Broker, len(s.Brokers)),
		StockMovements: make([]StockMovement, len(s.StockMovements)),
	}
	copy(dup.Categories, s.Categories)
	copy(dup.Products, s.Products)
	copy(dup.StockMovements, s.StockMovements)
	for i, b := range s.Brokers {
		dup.Brokers[i] = CloneBroker(b)
	}
	return dup
}

func CloneBroker(src Broker) Broker {
	dup := src
	dup.Transactions = make([]Transaction, len(src.Transactions))
	copy(dup.Transactions, src.Transactions)
	return dup
}

// Result is what every ledger mutation hands back to the UI. Error is
// user-facing text and is shown verbatim.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	ID      string `json:"id,omitempty"`
}

func OK() Result {
	return Result{Success: true}
}

func Created(id string) Result {
	return Result{Success: true, ID: id}
}

func Fail(message string) Result {
	return Result{Success: false, Error: message}
}

type GiveProductRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CollectRequest struct {
	AmountCents int64  `json:"amount_cents"`
	PaymentType string `json:"payment_type"`
}

type StockUpdateRequest struct {
	Stock  int    `json:"stock"`
	Reason string `json:"reason"`
}

type DiscountRequest struct {
	DiscountRate float64 `json:"discount_rate"`
}

type BrokerSummary struct {
	ID               string     `json:"id"`
	FullName         string     `json:"full_name"`
	DebtCents        int64      `json:"debt_cents"`
	DiscountRate     float64    `json:"discount_rate"`
	HasReceipt       bool       `json:"has_receipt"`
	SalesCents       int64      `json:"sales_cents"`
	CollectedCents   int64      `json:"collected_cents"`
	TransactionCount int        `json:"transaction_count"`
	LastActivityAt   *time.Time `json:"last_activity_at,omitempty"`
}

type ReorderSuggestion struct {
	ProductID              string `json:"product_id"`
	Name                   string `json:"name"`
	CategoryID             string `json:"category_id"`
	CurrentStock           int    `json:"current_stock"`
	RecommendedQty         int    `json:"recommended_qty"`
	EstimatedPurchaseCents int64  `json:"estimated_purchase_cents"`
}

type Dashboard struct {
	TotalStockValueCents int64 `json:"total_stock_value_cents"`
	ActiveProducts       int   `json:"active_products"`
	CriticalProducts     int   `json:"critical_products"`
	OutOfStockProducts   int   `json:"out_of_stock_products"`
	Brokers              int   `json:"brokers"`
	ReceivableCents      int64 `json:"receivable_cents"`
	BrokerCreditCents    int64 `json:"broker_credit_cents"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}
