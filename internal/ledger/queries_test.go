package ledger

import (
	"context"
	"testing"

	"aracitakip/backend/internal/domain"
)

func TestStockQueries(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	snacks := mustOK(t)(e.AddCategory(ctx, domain.CategoryInput{Name: "Snacks"}))
	drinks := mustOK(t)(e.AddCategory(ctx, domain.CategoryInput{Name: "Drinks"}))

	plenty := mustOK(t)(e.AddProduct(ctx, domain.ProductInput{Name: "Chips", CategoryID: snacks, Stock: 200, PriceCents: 1000}))
	edge := mustOK(t)(e.AddProduct(ctx, domain.ProductInput{Name: "Wafer", CategoryID: snacks, Stock: 50, PriceCents: 500}))
	empty := mustOK(t)(e.AddProduct(ctx, domain.ProductInput{Name: "Nuts", CategoryID: snacks, Stock: 0, PriceCents: 3000}))
	low := mustOK(t)(e.AddProduct(ctx, domain.ProductInput{Name: "Cola", CategoryID: drinks, Stock: 3, PriceCents: 2000}))
	gone := mustOK(t)(e.AddProduct(ctx, domain.ProductInput{Name: "Old Soda", CategoryID: drinks, Stock: 10, PriceCents: 100000}))
	mustOK(t)(e.DeleteProduct(ctx, gone))

	assertIDs := func(label string, products []domain.Product, want ...string) {
		t.Helper()
		if len(products) != len(want) {
			t.Fatalf("%s: expected %d products, got %d (%+v)", label, len(want), len(products), products)
		}
		seen := map[string]bool{}
		for _, p := range products {
			seen[p.ID] = true
		}
		for _, id := range want {
			if !seen[id] {
				t.Fatalf("%s: missing product %s", label, id)
			}
		}
	}

	assertIDs("active", e.ActiveProducts(), plenty, edge, empty, low)
	assertIDs("snacks", e.ProductsByCategory(snacks), plenty, edge, empty)
	assertIDs("drinks", e.ProductsByCategory(drinks), low)
	assertIDs("critical", e.CriticalProducts(), edge, low)
	assertIDs("out of stock", e.OutOfStockProducts(), empty)

	want := int64(200*1000 + 50*500 + 0*3000 + 3*2000)
	if got := e.TotalStockValue(); got != want {
		t.Fatalf("expected stock value %d, got %d", want, got)
	}
}

func TestReorderSuggestionsOrderEmptiestFirst(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	cat := mustOK(t)(e.AddCategory(ctx, domain.CategoryInput{Name: "Snacks"}))

	mustOK(t)(e.AddProduct(ctx, domain.ProductInput{Name: "Full", CategoryID: cat, Stock: 80, PriceCents: 100}))
	low := mustOK(t)(e.AddProduct(ctx, domain.ProductInput{Name: "Low", CategoryID: cat, Stock: 40, PriceCents: 100}))
	empty := mustOK(t)(e.AddProduct(ctx, domain.ProductInput{Name: "Empty", CategoryID: cat, Stock: 0, PriceCents: 250}))

	got := e.ReorderSuggestions()
	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions, got %+v", got)
	}
	if got[0].ProductID != empty || got[0].RecommendedQty != 100 || got[0].EstimatedPurchaseCents != 25000 {
		t.Fatalf("unexpected first suggestion %+v", got[0])
	}
	if got[1].ProductID != low || got[1].RecommendedQty != 60 {
		t.Fatalf("unexpected second suggestion %+v", got[1])
	}
}

func TestBrokerSummariesAndDashboard(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	_, productID, debtor := seedSale(t, e, 0)
	creditor := mustOK(t)(e.AddBroker(ctx, domain.BrokerInput{Name: "Ayşe", Surname: "Demir", HasReceipt: true}))

	mustOK(t)(e.GiveProductToBroker(ctx, debtor, productID, 2))
	mustOK(t)(e.CollectFromBroker(ctx, debtor, 5000, domain.PaymentCash))
	mustOK(t)(e.CollectFromBroker(ctx, creditor, 3000, domain.PaymentCard))

	summaries := map[string]domain.BrokerSummary{}
	for _, s := range e.BrokerSummaries() {
		summaries[s.ID] = s
	}
	d := summaries[debtor]
	if d.DebtCents != 15000 || d.SalesCents != 20000 || d.CollectedCents != 5000 || d.TransactionCount != 2 {
		t.Fatalf("unexpected debtor summary %+v", d)
	}
	if d.LastActivityAt == nil {
		t.Fatalf("expected last activity to be set")
	}
	c := summaries[creditor]
	if c.DebtCents != -3000 || c.FullName != "Ayşe Demir" || !c.HasReceipt {
		t.Fatalf("unexpected creditor summary %+v", c)
	}

	dash := e.Dashboard()
	if dash.ReceivableCents != 15000 || dash.BrokerCreditCents != 3000 || dash.Brokers != 2 {
		t.Fatalf("unexpected dashboard balances %+v", dash)
	}
	if dash.ActiveProducts != 1 || dash.TotalStockValueCents != 98*10000 {
		t.Fatalf("unexpected dashboard stock figures %+v", dash)
	}
}

func TestQueriesReturnCopies(t *testing.T) {
	e, _ := newTestEngine(t)
	_, productID, brokerID := seedSale(t, e, 0)
	mustOK(t)(e.GiveProductToBroker(context.Background(), brokerID, productID, 1))

	products := e.Products()
	products[0].Stock = -500
	broker, _ := e.Broker(brokerID)
	broker.Transactions[0].FinalCents = 1

	if p, _ := e.Product(productID); p.Stock != 99 {
		t.Fatalf("caller mutation leaked into product stock: %d", p.Stock)
	}
	if debt := e.BrokerTotalDebt(brokerID); debt != 10000 {
		t.Fatalf("caller mutation leaked into transactions: %d", debt)
	}
}
