package memory

import (
	"context"
	"sync"
	"time"

	"aracitakip/backend/internal/domain"
	"aracitakip/backend/internal/store"
	"aracitakip/backend/internal/xid"
)

// Store keeps the ledger blob in process memory. Saves are counted so
// tests can assert that rejected operations never reach persistence.
type Store struct {
	mu    sync.RWMutex
	state *domain.State
	saves int
}

func New() *Store {
	return &Store{}
}

// NewSeeded returns a store holding a small demo ledger for offline mode.
func NewSeeded() *Store {
	now := time.Now().UTC()
	categories := []domain.Category{
		{ID: xid.New("cat"), Name: "Atıştırmalık", TaxRate: 10, IsActive: true, CreatedAt: now},
		{ID: xid.New("cat"), Name: "İçecek", TaxRate: 20, IsActive: true, CreatedAt: now},
		{ID: xid.New("cat"), Name: "Temizlik", TaxRate: 20, IsActive: true, CreatedAt: now},
	}

	products := []domain.Product{
		{Name: "Cips Klasik", CategoryID: categories[0].ID, Stock: 240, PriceCents: 2500},
		{Name: "Çikolatalı Gofret", CategoryID: categories[0].ID, Stock: 35, PriceCents: 1250},
		{Name: "Tuzlu Fıstık", CategoryID: categories[0].ID, Stock: 0, PriceCents: 4500},
		{Name: "Maden Suyu 6'lı", CategoryID: categories[1].ID, Stock: 120, PriceCents: 6000},
		{Name: "Ayran 1L", CategoryID: categories[1].ID, Stock: 48, PriceCents: 3250},
		{Name: "Bulaşık Deterjanı", CategoryID: categories[2].ID, Stock: 75, PriceCents: 8990},
	}
	movements := make([]domain.StockMovement, 0, len(products))
	for i := range products {
		products[i].ID = xid.New("prd")
		products[i].IsActive = true
		products[i].CreatedAt = now
		movements = append(movements, domain.StockMovement{
			ID:          xid.New("mov"),
			ProductID:   products[i].ID,
			ProductName: products[i].Name,
			Type:        domain.MovementIn,
			Quantity:    products[i].Stock,
			Reason:      domain.ReasonNewProduct,
			Date:        now,
		})
	}

	brokers := []domain.Broker{
		{ID: xid.New("brk"), Name: "Ahmet", Surname: "Yılmaz", HasReceipt: true, DiscountRate: 10, CreatedAt: now, Transactions: []domain.Transaction{}},
		{ID: xid.New("brk"), Name: "Ayşe", Surname: "Demir", DiscountRate: 5, CreatedAt: now, Transactions: []domain.Transaction{}},
	}

	return &Store{state: &domain.State{
		Categories:     categories,
		Products:       products,
		Brokers:        brokers,
		StockMovements: movements,
	}}
}

func (s *Store) Load(_ context.Context) (domain.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return domain.State{}, store.ErrNotFound
	}
	return s.state.Clone(), nil
}

func (s *Store) Save(_ context.Context, state domain.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := state.Clone()
	s.state = &snapshot
	s.saves++
	return nil
}

// Saves reports how many times Save has succeeded.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
