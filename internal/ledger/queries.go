package ledger

import (
	"slices"

	"aracitakip/backend/internal/domain"
)

// Snapshot returns a deep copy of the whole ledger.
func (e *Engine) Snapshot() domain.State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

func (e *Engine) Categories() []domain.Category {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.state.Categories)
}

func (e *Engine) ActiveCategories() []domain.Category {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]domain.Category, 0, len(e.state.Categories))
	for _, c := range e.state.Categories {
		if c.IsActive {
			result = append(result, c)
		}
	}
	return result
}

func (e *Engine) Category(id string) (domain.Category, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	idx := findCategory(e.state, id)
	if idx < 0 {
		return domain.Category{}, false
	}
	return e.state.Categories[idx], true
}

func (e *Engine) Products() []domain.Product {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.state.Products)
}

func (e *Engine) ActiveProducts() []domain.Product {
	return e.filterProducts(func(domain.Product) bool { return true })
}

func (e *Engine) Product(id string) (domain.Product, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	idx := findProduct(e.state, id)
	if idx < 0 {
		return domain.Product{}, false
	}
	return e.state.Products[idx], true
}

// ProductsByCategory lists the active products of a category.
func (e *Engine) ProductsByCategory(categoryID string) []domain.Product {
	return e.filterProducts(func(p domain.Product) bool { return p.CategoryID == categoryID })
}

func (e *Engine) CriticalProducts() []domain.Product {
	return e.filterProducts(isCritical)
}

func (e *Engine) OutOfStockProducts() []domain.Product {
	return e.filterProducts(func(p domain.Product) bool { return p.Stock == 0 })
}

func (e *Engine) TotalStockValue() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return totalStockValue(e.state.Products)
}

func (e *Engine) Brokers() []domain.Broker {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]domain.Broker, len(e.state.Brokers))
	for i, b := range e.state.Brokers {
		result[i] = domain.CloneBroker(b)
	}
	return result
}

func (e *Engine) Broker(id string) (domain.Broker, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	idx := findBroker(e.state, id)
	if idx < 0 {
		return domain.Broker{}, false
	}
	return domain.CloneBroker(e.state.Brokers[idx]), true
}

// BrokerTransactions returns the broker's entries newest first.
func (e *Engine) BrokerTransactions(id string) []domain.Transaction {
	e.mu.RLock()
	defer e.mu.RUnlock()

	idx := findBroker(e.state, id)
	if idx < 0 {
		return []domain.Transaction{}
	}
	result := slices.Clone(e.state.Brokers[idx].Transactions)
	slices.Reverse(result)
	return result
}

// BrokerTotalDebt is the sum of the broker's final amounts. A negative value
// means the broker is in credit. Unknown brokers owe nothing.
func (e *Engine) BrokerTotalDebt(id string) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	idx := findBroker(e.state, id)
	if idx < 0 {
		return 0
	}
	return debtOf(e.state.Brokers[idx])
}

func (e *Engine) BrokerDiscount(id string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	idx := findBroker(e.state, id)
	if idx < 0 {
		return 0
	}
	return e.state.Brokers[idx].DiscountRate
}

func (e *Engine) BrokerSummaries() []domain.BrokerSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]domain.BrokerSummary, 0, len(e.state.Brokers))
	for _, b := range e.state.Brokers {
		summary := domain.BrokerSummary{
			ID:               b.ID,
			FullName:         b.FullName(),
			DiscountRate:     b.DiscountRate,
			HasReceipt:       b.HasReceipt,
			TransactionCount: len(b.Transactions),
		}
		for _, tx := range b.Transactions {
			summary.DebtCents += tx.FinalCents
			if tx.IsCollection() {
				summary.CollectedCents -= tx.FinalCents
			} else {
				summary.SalesCents += tx.FinalCents
			}
			if summary.LastActivityAt == nil || tx.Date.After(*summary.LastActivityAt) {
				at := tx.Date
				summary.LastActivityAt = &at
			}
		}
		result = append(result, summary)
	}
	return result
}

// StockMovements returns the audit log newest first, optionally for one product.
func (e *Engine) StockMovements(productID string) []domain.StockMovement {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]domain.StockMovement, 0, len(e.state.StockMovements))
	for i := len(e.state.StockMovements) - 1; i >= 0; i-- {
		m := e.state.StockMovements[i]
		if productID != "" && m.ProductID != productID {
			continue
		}
		result = append(result, m)
	}
	return result
}

// ReorderSuggestions proposes refills for critical and empty products,
// targeting twice the critical level. Emptiest products come first.
func (e *Engine) ReorderSuggestions() []domain.ReorderSuggestion {
	e.mu.RLock()
	defer e.mu.RUnlock()

	target := domain.CriticalStockLevel * 2
	suggestions := make([]domain.ReorderSuggestion, 0, 16)
	for _, p := range e.state.Products {
		if !p.IsActive || p.Stock > domain.CriticalStockLevel {
			continue
		}
		qty := target - p.Stock
		suggestions = append(suggestions, domain.ReorderSuggestion{
			ProductID:              p.ID,
			Name:                   p.Name,
			CategoryID:             p.CategoryID,
			CurrentStock:           p.Stock,
			RecommendedQty:         qty,
			EstimatedPurchaseCents: int64(qty) * p.PriceCents,
		})
	}

	slices.SortStableFunc(suggestions, func(a, b domain.ReorderSuggestion) int {
		if a.CurrentStock != b.CurrentStock {
			return a.CurrentStock - b.CurrentStock
		}
		switch {
		case a.EstimatedPurchaseCents > b.EstimatedPurchaseCents:
			return -1
		case a.EstimatedPurchaseCents < b.EstimatedPurchaseCents:
			return 1
		}
		return 0
	})
	return suggestions
}

func (e *Engine) Dashboard() domain.Dashboard {
	e.mu.RLock()
	defer e.mu.RUnlock()

	dash := domain.Dashboard{
		TotalStockValueCents: totalStockValue(e.state.Products),
		Brokers:              len(e.state.Brokers),
	}
	for _, p := range e.state.Products {
		if !p.IsActive {
			continue
		}
		dash.ActiveProducts++
		switch {
		case p.Stock == 0:
			dash.OutOfStockProducts++
		case isCritical(p):
			dash.CriticalProducts++
		}
	}
	for _, b := range e.state.Brokers {
		debt := debtOf(b)
		if debt > 0 {
			dash.ReceivableCents += debt
		} else {
			dash.BrokerCreditCents += -debt
		}
	}
	return dash
}

func (e *Engine) filterProducts(keep func(domain.Product) bool) []domain.Product {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]domain.Product, 0, len(e.state.Products))
	for _, p := range e.state.Products {
		if p.IsActive && keep(p) {
			result = append(result, p)
		}
	}
	return result
}

func isCritical(p domain.Product) bool {
	return p.Stock > 0 && p.Stock <= domain.CriticalStockLevel
}

func totalStockValue(products []domain.Product) int64 {
	total := int64(0)
	for _, p := range products {
		if p.IsActive {
			total += int64(p.Stock) * p.PriceCents
		}
	}
	return total
}

func debtOf(b domain.Broker) int64 {
	debt := int64(0)
	for _, tx := range b.Transactions {
		debt += tx.FinalCents
	}
	return debt
}
