package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"aracitakip/backend/internal/domain"
	"aracitakip/backend/internal/ledger"
	"aracitakip/backend/internal/store/memory"
)

const (
	testAdminPassword  = "admin-pass-123"
	testViewerPassword = "viewer-pass-123"
)

// newTestAPI builds a full API over an empty in-memory ledger with a real
// AuthManager so handler tests exercise the complete request path.
func newTestAPI(t *testing.T, loginPerMinute int) *API {
	t.Helper()

	engine, err := ledger.Open(context.Background(), memory.New())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	auth, err := NewAuthManager("test-secret-key-test-secret-key-00", time.Hour,
		Account{Username: "admin", Password: mustHashPassword(t, testAdminPassword), Role: RoleAdmin},
		Account{Username: "kasa", Password: mustHashPassword(t, testViewerPassword), Role: RoleViewer},
	)
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}
	return New(engine, auth, "*", loginPerMinute, nil)
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func login(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()
	rec := do(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d (body: %s)", username, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return resp.AccessToken
}

func do(t *testing.T, handler http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) domain.Result {
	t.Helper()
	var res domain.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return res
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t, 5).Handler()

	rec := do(t, handler, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	handler := newTestAPI(t, 5).Handler()

	token := login(t, handler, "Admin", testAdminPassword)
	if token == "" {
		t.Fatalf("expected access token")
	}
}

func TestHandleLogin_WrongPassword(t *testing.T) {
	handler := newTestAPI(t, 5).Handler()

	rec := do(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "nope",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleLogin_RateLimited(t *testing.T) {
	handler := newTestAPI(t, 2).Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := do(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"username": "admin",
			"password": "wrong",
		})
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusUnauthorized || codes[1] != http.StatusUnauthorized {
		t.Fatalf("expected first attempts to reach auth, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %v", codes)
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := newTestAPI(t, 5).Handler()

	rec := do(t, handler, http.MethodGet, "/healthz", "", nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected nosniff, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("expected DENY, got %q", got)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/products", nil)
	pre := httptest.NewRecorder()
	handler.ServeHTTP(pre, req)
	if pre.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", pre.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	handler := newTestAPI(t, 5).Handler()

	rec := do(t, handler, http.MethodGet, "/api/v1/brokers", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	rec = do(t, handler, http.MethodGet, "/api/v1/brokers", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}
}

func TestViewerCannotMutate(t *testing.T) {
	handler := newTestAPI(t, 5).Handler()
	token := login(t, handler, "kasa", testViewerPassword)

	rec := do(t, handler, http.MethodPost, "/api/v1/categories", token, domain.CategoryInput{Name: "Snacks"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer mutation, got %d", rec.Code)
	}
	rec = do(t, handler, http.MethodGet, "/api/v1/dashboard", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected viewer to read dashboard, got %d", rec.Code)
	}
}

func TestGiveAndCollectFlow(t *testing.T) {
	handler := newTestAPI(t, 5).Handler()
	token := login(t, handler, "admin", testAdminPassword)

	rec := do(t, handler, http.MethodPost, "/api/v1/categories", token, domain.CategoryInput{Name: "Snacks", TaxRate: 10})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	categoryID := decodeResult(t, rec).ID

	rec = do(t, handler, http.MethodPost, "/api/v1/products", token, domain.ProductInput{
		Name: "Chips", CategoryID: categoryID, Stock: 10, PriceCents: 2500,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	productID := decodeResult(t, rec).ID

	rec = do(t, handler, http.MethodPost, "/api/v1/brokers", token, domain.BrokerInput{
		Name: "Ahmet", Surname: "Yılmaz", DiscountRate: 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create broker: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	brokerID := decodeResult(t, rec).ID

	rec = do(t, handler, http.MethodPost, "/api/v1/brokers/"+brokerID+"/give", token, domain.GiveProductRequest{
		ProductID: productID, Quantity: 4,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("give: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = do(t, handler, http.MethodPost, "/api/v1/brokers/"+brokerID+"/give", token, domain.GiveProductRequest{
		ProductID: productID, Quantity: 50,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("oversized give: expected 422, got %d", rec.Code)
	}
	res := decodeResult(t, rec)
	if res.Success || !strings.HasPrefix(res.Error, "Yetersiz stok!") {
		t.Fatalf("expected insufficient stock message, got %+v", res)
	}

	rec = do(t, handler, http.MethodPost, "/api/v1/brokers/"+brokerID+"/collect", token, domain.CollectRequest{
		AmountCents: 5000, PaymentType: domain.PaymentCash,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("collect: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = do(t, handler, http.MethodGet, "/api/v1/brokers/"+brokerID+"/transactions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("transactions: expected 200, got %d", rec.Code)
	}
	var statement struct {
		Transactions []domain.Transaction `json:"transactions"`
		DebtCents    int64                `json:"debt_cents"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&statement); err != nil {
		t.Fatalf("decode statement: %v", err)
	}
	// 4 x 2500 = 10000, minus 10% = 9000, minus 5000 collected.
	if statement.DebtCents != 4000 {
		t.Fatalf("expected debt 4000, got %d", statement.DebtCents)
	}
	if len(statement.Transactions) != 2 || !statement.Transactions[0].IsCollection() {
		t.Fatalf("expected collection first in statement, got %+v", statement.Transactions)
	}

	rec = do(t, handler, http.MethodGet, "/api/v1/stock/movements?product_id="+productID, token, nil)
	var movements struct {
		Movements []domain.StockMovement `json:"movements"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&movements); err != nil {
		t.Fatalf("decode movements: %v", err)
	}
	if len(movements.Movements) != 2 || movements.Movements[0].Reason != "Ahmet Yılmaz" {
		t.Fatalf("expected give movement first, got %+v", movements.Movements)
	}
}

func TestUnknownBrokerIsRejected(t *testing.T) {
	handler := newTestAPI(t, 5).Handler()
	token := login(t, handler, "admin", testAdminPassword)

	rec := do(t, handler, http.MethodPost, "/api/v1/brokers/missing/receipt/toggle", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown broker, got %d", rec.Code)
	}
	toggled := decodeResult(t, rec)

	rec = do(t, handler, http.MethodGet, "/api/v1/brokers/missing", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown broker, got %d", rec.Code)
	}
	if got := decodeResult(t, rec); got.Success || got.Error != toggled.Error {
		t.Fatalf("expected the engine's not-found message %q, got %+v", toggled.Error, got)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	handler := newTestAPI(t, 5).Handler()
	token := login(t, handler, "admin", testAdminPassword)

	rec := do(t, handler, http.MethodPost, "/api/v1/categories", token, map[string]any{
		"name":     "Snacks",
		"vat_rate": 10,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}
