package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"aracitakip/backend/internal/domain"
	"aracitakip/backend/internal/store"
	"aracitakip/backend/internal/xid"
)

// Engine owns the ledger state. Every mutation builds the next state on a
// clone, persists it, and only then replaces the current state, so a
// rejected or failed operation leaves nothing behind.
type Engine struct {
	mu        sync.RWMutex
	state     domain.State
	persister store.Persister
	log       *zap.Logger
	newID     func(prefix string) string
	now       func() time.Time
}

type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

func WithIDGenerator(fn func(prefix string) string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

func WithClock(fn func() time.Time) Option {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// Open restores the ledger from persister. A persister with nothing saved
// yet yields an empty ledger.
func Open(ctx context.Context, persister store.Persister, opts ...Option) (*Engine, error) {
	e := &Engine{
		persister: persister,
		log:       zap.NewNop(),
		newID:     xid.New,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}

	state, err := persister.Load(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	e.state = normalize(state)
	e.log.Info("ledger loaded",
		zap.Int("categories", len(e.state.Categories)),
		zap.Int("products", len(e.state.Products)),
		zap.Int("brokers", len(e.state.Brokers)),
		zap.Int("stock_movements", len(e.state.StockMovements)),
	)
	return e, nil
}

func (e *Engine) AddCategory(ctx context.Context, in domain.CategoryInput) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return e.reject("add_category", msgNameRequired), nil
	}
	if !validRate(in.TaxRate) {
		return e.reject("add_category", msgInvalidTaxRate), nil
	}

	category := domain.Category{
		ID:        e.newID("cat"),
		Name:      name,
		TaxRate:   in.TaxRate,
		IsActive:  true,
		CreatedAt: e.now(),
	}
	next := e.state.Clone()
	next.Categories = append([]domain.Category{category}, next.Categories...)
	if err := e.commit(ctx, "add_category", next); err != nil {
		return domain.Result{}, err
	}
	return domain.Created(category.ID), nil
}

func (e *Engine) UpdateCategory(ctx context.Context, id string, patch domain.CategoryPatch) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := findCategory(e.state, id)
	if idx < 0 {
		return e.reject("update_category", msgCategoryNotFound), nil
	}

	next := e.state.Clone()
	category := &next.Categories[idx]
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return e.reject("update_category", msgNameRequired), nil
		}
		category.Name = name
	}
	if patch.TaxRate != nil {
		if !validRate(*patch.TaxRate) {
			return e.reject("update_category", msgInvalidTaxRate), nil
		}
		category.TaxRate = *patch.TaxRate
	}
	if patch.IsActive != nil {
		if !*patch.IsActive && hasActiveProducts(e.state, id) {
			return e.reject("update_category", msgCategoryInUse), nil
		}
		category.IsActive = *patch.IsActive
	}

	if err := e.commit(ctx, "update_category", next); err != nil {
		return domain.Result{}, err
	}
	return domain.OK(), nil
}

// DeleteCategory deactivates a category unless an active product still uses it.
func (e *Engine) DeleteCategory(ctx context.Context, id string) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := findCategory(e.state, id)
	if idx < 0 {
		return e.reject("delete_category", msgCategoryNotFound), nil
	}
	if hasActiveProducts(e.state, id) {
		return e.reject("delete_category", msgCategoryInUse), nil
	}

	next := e.state.Clone()
	next.Categories[idx].IsActive = false
	if err := e.commit(ctx, "delete_category", next); err != nil {
		return domain.Result{}, err
	}
	return domain.OK(), nil
}

func (e *Engine) AddProduct(ctx context.Context, in domain.ProductInput) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return e.reject("add_product", msgNameRequired), nil
	case in.Stock < 0:
		return e.reject("add_product", msgNegativeStock), nil
	case in.Stock > domain.MaxStock:
		return e.reject("add_product", msgStockTooLarge), nil
	case in.PriceCents < 0:
		return e.reject("add_product", msgNegativePrice), nil
	case in.PriceCents > domain.MaxPriceCents:
		return e.reject("add_product", msgPriceTooLarge), nil
	}
	if idx := findCategory(e.state, in.CategoryID); idx < 0 || !e.state.Categories[idx].IsActive {
		return e.reject("add_product", msgCategoryNotFound), nil
	}

	now := e.now()
	product := domain.Product{
		ID:         e.newID("prd"),
		Name:       name,
		CategoryID: in.CategoryID,
		Stock:      in.Stock,
		PriceCents: in.PriceCents,
		IsActive:   true,
		CreatedAt:  now,
	}
	next := e.state.Clone()
	next.Products = append([]domain.Product{product}, next.Products...)
	next.StockMovements = append(next.StockMovements, e.movement(product, domain.MovementIn, product.Stock, domain.ReasonNewProduct, now))

	if err := e.commit(ctx, "add_product", next); err != nil {
		return domain.Result{}, err
	}
	return domain.Created(product.ID), nil
}

func (e *Engine) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := findProduct(e.state, id)
	if idx < 0 {
		return e.reject("update_product", msgProductNotFound), nil
	}

	next := e.state.Clone()
	product := &next.Products[idx]
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return e.reject("update_product", msgNameRequired), nil
		}
		product.Name = name
	}
	if patch.CategoryID != nil {
		ci := findCategory(e.state, *patch.CategoryID)
		if ci < 0 {
			return e.reject("update_product", msgCategoryNotFound), nil
		}
		if !e.state.Categories[ci].IsActive {
			return e.reject("update_product", msgCategoryInactive), nil
		}
		product.CategoryID = *patch.CategoryID
	}
	if patch.PriceCents != nil {
		if *patch.PriceCents < 0 {
			return e.reject("update_product", msgNegativePrice), nil
		}
		if *patch.PriceCents > domain.MaxPriceCents {
			return e.reject("update_product", msgPriceTooLarge), nil
		}
		product.PriceCents = *patch.PriceCents
	}
	if patch.IsActive != nil {
		if *patch.IsActive {
			ci := findCategory(e.state, product.CategoryID)
			if ci < 0 || !e.state.Categories[ci].IsActive {
				return e.reject("update_product", msgCategoryInactive), nil
			}
		}
		product.IsActive = *patch.IsActive
	}
	if patch.Stock != nil {
		if *patch.Stock < 0 {
			return e.reject("update_product", msgNegativeStock), nil
		}
		if *patch.Stock > domain.MaxStock {
			return e.reject("update_product", msgStockTooLarge), nil
		}
		e.setStock(&next, idx, *patch.Stock, domain.ReasonProductEdit, e.now())
	}

	if err := e.commit(ctx, "update_product", next); err != nil {
		return domain.Result{}, err
	}
	return domain.OK(), nil
}

// DeleteProduct deactivates a product. Historical transactions keep their
// own name and price snapshot, so they are not consulted.
func (e *Engine) DeleteProduct(ctx context.Context, id string) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := findProduct(e.state, id)
	if idx < 0 {
		return e.reject("delete_product", msgProductNotFound), nil
	}

	next := e.state.Clone()
	next.Products[idx].IsActive = false
	if err := e.commit(ctx, "delete_product", next); err != nil {
		return domain.Result{}, err
	}
	return domain.OK(), nil
}

// UpdateProductStock overwrites the stock count, e.g. after a manual count.
func (e *Engine) UpdateProductStock(ctx context.Context, id string, newStock int, reason string) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := findProduct(e.state, id)
	if idx < 0 {
		return e.reject("update_product_stock", msgProductNotFound), nil
	}
	if newStock < 0 {
		return e.reject("update_product_stock", msgNegativeStock), nil
	}
	if newStock > domain.MaxStock {
		return e.reject("update_product_stock", msgStockTooLarge), nil
	}
	if e.state.Products[idx].Stock == newStock {
		return domain.OK(), nil
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = domain.ReasonManualStock
	}
	next := e.state.Clone()
	e.setStock(&next, idx, newStock, reason, e.now())
	if err := e.commit(ctx, "update_product_stock", next); err != nil {
		return domain.Result{}, err
	}
	return domain.OK(), nil
}

func (e *Engine) AddBroker(ctx context.Context, in domain.BrokerInput) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return e.reject("add_broker", msgNameRequired), nil
	}
	if !validRate(in.DiscountRate) {
		return e.reject("add_broker", msgInvalidDiscount), nil
	}

	broker := domain.Broker{
		ID:           e.newID("brk"),
		Name:         name,
		Surname:      strings.TrimSpace(in.Surname),
		Transactions: []domain.Transaction{},
		HasReceipt:   in.HasReceipt,
		DiscountRate: in.DiscountRate,
		CreatedAt:    e.now(),
	}
	next := e.state.Clone()
	next.Brokers = append([]domain.Broker{broker}, next.Brokers...)
	if err := e.commit(ctx, "add_broker", next); err != nil {
		return domain.Result{}, err
	}
	return domain.Created(broker.ID), nil
}

func (e *Engine) UpdateBroker(ctx context.Context, id string, patch domain.BrokerPatch) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := findBroker(e.state, id)
	if idx < 0 {
		return e.reject("update_broker", msgBrokerNotFound), nil
	}

	next := e.state.Clone()
	broker := &next.Brokers[idx]
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return e.reject("update_broker", msgNameRequired), nil
		}
		broker.Name = name
	}
	if patch.Surname != nil {
		broker.Surname = strings.TrimSpace(*patch.Surname)
	}
	if patch.HasReceipt != nil {
		broker.HasReceipt = *patch.HasReceipt
	}

	if err := e.commit(ctx, "update_broker", next); err != nil {
		return domain.Result{}, err
	}
	return domain.OK(), nil
}

// DeleteBroker removes the broker together with its transaction history.
func (e *Engine) DeleteBroker(ctx context.Context, id string) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := findBroker(e.state, id)
	if idx < 0 {
		return e.reject("delete_broker", msgBrokerNotFound), nil
	}

	next := e.state.Clone()
	next.Brokers = append(next.Brokers[:idx], next.Brokers[idx+1:]...)
	if err := e.commit(ctx, "delete_broker", next); err != nil {
		return domain.Result{}, err
	}
	return domain.OK(), nil
}

func (e *Engine) ToggleBrokerReceipt(ctx context.Context, id string) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := findBroker(e.state, id)
	if idx < 0 {
		return e.reject("toggle_broker_receipt", msgBrokerNotFound), nil
	}

	next := e.state.Clone()
	next.Brokers[idx].HasReceipt = !next.Brokers[idx].HasReceipt
	if err := e.commit(ctx, "toggle_broker_receipt", next); err != nil {
		return domain.Result{}, err
	}
	return domain.OK(), nil
}

// UpdateBrokerDiscount changes the rate used by future sales only.
func (e *Engine) UpdateBrokerDiscount(ctx context.Context, id string, rate float64) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := findBroker(e.state, id)
	if idx < 0 {
		return e.reject("update_broker_discount", msgBrokerNotFound), nil
	}
	if !validRate(rate) {
		return e.reject("update_broker_discount", msgInvalidDiscount), nil
	}

	next := e.state.Clone()
	next.Brokers[idx].DiscountRate = rate
	if err := e.commit(ctx, "update_broker_discount", next); err != nil {
		return domain.Result{}, err
	}
	return domain.OK(), nil
}

// GiveProductToBroker records a sale on the broker's account and takes the
// quantity out of stock in the same state transition.
func (e *Engine) GiveProductToBroker(ctx context.Context, brokerID string, productID string, quantity int) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bi := findBroker(e.state, brokerID)
	pi := findProduct(e.state, productID)
	if bi < 0 || pi < 0 {
		return e.reject("give_product", msgProductOrBrokerNotFound), nil
	}
	product := e.state.Products[pi]
	broker := e.state.Brokers[bi]
	if !product.IsActive {
		return e.reject("give_product", msgProductInactive), nil
	}
	if quantity < 1 {
		return e.reject("give_product", msgInvalidQuantity), nil
	}
	if quantity > product.Stock {
		return e.reject("give_product", msgInsufficientStock(product.Stock, quantity)), nil
	}

	now := e.now()
	total := int64(quantity) * product.PriceCents
	tx := domain.Transaction{
		ID:             e.newID("tx"),
		ProductID:      product.ID,
		ProductName:    product.Name,
		Quantity:       quantity,
		UnitPriceCents: product.PriceCents,
		TotalCents:     total,
		FinalCents:     total - discountCents(total, broker.DiscountRate),
		DiscountRate:   broker.DiscountRate,
		Date:           now,
	}

	next := e.state.Clone()
	next.Brokers[bi].Transactions = append(next.Brokers[bi].Transactions, tx)
	e.setStock(&next, pi, product.Stock-quantity, broker.FullName(), now)
	if err := e.commit(ctx, "give_product", next); err != nil {
		return domain.Result{}, err
	}

	e.log.Info("product given to broker",
		zap.String("broker_id", broker.ID),
		zap.String("product_id", product.ID),
		zap.Int("quantity", quantity),
		zap.Int64("final_cents", tx.FinalCents),
	)
	return domain.Created(tx.ID), nil
}

// CollectFromBroker books a payment as a negative entry. Collecting more than
// the current debt is allowed and leaves the broker in credit.
func (e *Engine) CollectFromBroker(ctx context.Context, brokerID string, amountCents int64, paymentType string) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bi := findBroker(e.state, brokerID)
	if bi < 0 {
		return e.reject("collect", msgBrokerNotFound), nil
	}
	if amountCents <= 0 {
		return e.reject("collect", msgInvalidCollection), nil
	}
	if amountCents > domain.MaxCollectionCents {
		return e.reject("collect", msgCollectionTooLarge), nil
	}

	tx := domain.Transaction{
		ID:             e.newID("tx"),
		ProductID:      domain.CollectionProductID,
		ProductName:    collectionName(paymentType),
		Quantity:       1,
		UnitPriceCents: -amountCents,
		TotalCents:     -amountCents,
		FinalCents:     -amountCents,
		DiscountRate:   0,
		Date:           e.now(),
	}

	next := e.state.Clone()
	next.Brokers[bi].Transactions = append(next.Brokers[bi].Transactions, tx)
	if err := e.commit(ctx, "collect", next); err != nil {
		return domain.Result{}, err
	}

	e.log.Info("collection recorded",
		zap.String("broker_id", brokerID),
		zap.Int64("amount_cents", amountCents),
		zap.String("payment_type", paymentType),
	)
	return domain.Created(tx.ID), nil
}

// commit persists next and makes it current. Caller holds e.mu.
func (e *Engine) commit(ctx context.Context, op string, next domain.State) error {
	if err := e.persister.Save(ctx, next); err != nil {
		e.log.Error("ledger save failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%s: save ledger: %w", op, err)
	}
	e.state = next
	e.log.Debug("ledger committed", zap.String("op", op))
	return nil
}

func (e *Engine) reject(op string, message string) domain.Result {
	e.log.Debug("ledger operation rejected", zap.String("op", op), zap.String("reason", message))
	return domain.Fail(message)
}

// setStock writes the new stock on next and appends the matching movement.
func (e *Engine) setStock(next *domain.State, idx int, newStock int, reason string, at time.Time) {
	product := &next.Products[idx]
	delta := newStock - product.Stock
	if delta == 0 {
		return
	}
	product.Stock = newStock

	kind := domain.MovementOut
	if delta > 0 {
		kind = domain.MovementIn
	}
	next.StockMovements = append(next.StockMovements, e.movement(*product, kind, absInt(delta), reason, at))
}

func (e *Engine) movement(product domain.Product, kind string, quantity int, reason string, at time.Time) domain.StockMovement {
	return domain.StockMovement{
		ID:          e.newID("mov"),
		ProductID:   product.ID,
		ProductName: product.Name,
		Type:        kind,
		Quantity:    quantity,
		Reason:      reason,
		Date:        at,
	}
}

func discountCents(totalCents int64, rate float64) int64 {
	if rate <= 0 {
		return 0
	}
	return int64(math.Round(float64(totalCents) * rate / 100))
}

func validRate(rate float64) bool {
	return rate >= 0 && rate <= 100
}

func normalize(state domain.State) domain.State {
	if state.Categories == nil {
		state.Categories = []domain.Category{}
	}
	if state.Products == nil {
		state.Products = []domain.Product{}
	}
	if state.Brokers == nil {
		state.Brokers = []domain.Broker{}
	}
	if state.StockMovements == nil {
		state.StockMovements = []domain.StockMovement{}
	}
	for i := range state.Brokers {
		if state.Brokers[i].Transactions == nil {
			state.Brokers[i].Transactions = []domain.Transaction{}
		}
	}
	return state
}

func hasActiveProducts(state domain.State, categoryID string) bool {
	for _, p := range state.Products {
		if p.IsActive && p.CategoryID == categoryID {
			return true
		}
	}
	return false
}

func findCategory(state domain.State, id string) int {
	for i, c := range state.Categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func findProduct(state domain.State, id string) int {
	for i, p := range state.Products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func findBroker(state domain.State, id string) int {
	for i, b := range state.Brokers {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
