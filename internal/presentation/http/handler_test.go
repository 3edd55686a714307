package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apporder "github.com/fisher-retail/backoffice/internal/application/order"
	domaccount "github.com/fisher-retail/backoffice/internal/domain/account"
	domcatalog "github.com/fisher-retail/backoffice/internal/domain/catalog"
	domledger "github.com/fisher-retail/backoffice/internal/domain/ledger"
	domorder "github.com/fisher-retail/backoffice/internal/domain/order"
	"github.com/fisher-retail/backoffice/internal/infrastructure/memory"
)

type mockLedger struct {
	transferFn    func(ctx context.Context, fromID, toID string, amount decimal.Decimal) (*domledger.Transaction, error)
	openAccountFn func(ctx context.Context, kind domaccount.Kind, ownerID string, opening decimal.Decimal) (*domaccount.Account, error)
	getAccountFn  func(ctx context.Context, id string) (*domaccount.Account, error)
	historyFn     func(ctx context.Context, accountID string) ([]*domledger.Transaction, error)
}

func (m *mockLedger) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal) (*domledger.Transaction, error) {
	return m.transferFn(ctx, fromID, toID, amount)
}

func (m *mockLedger) OpenAccount(ctx context.Context, kind domaccount.Kind, ownerID string, opening decimal.Decimal) (*domaccount.Account, error) {
	return m.openAccountFn(ctx, kind, ownerID, opening)
}

func (m *mockLedger) GetAccount(ctx context.Context, id string) (*domaccount.Account, error) {
	return m.getAccountFn(ctx, id)
}

func (m *mockLedger) History(ctx context.Context, accountID string) ([]*domledger.Transaction, error) {
	return m.historyFn(ctx, accountID)
}

type mockOrders struct {
	createFn func(ctx context.Context, storeID string, requested []apporder.RequestedItem) (*domorder.Order, error)
	getFn    func(ctx context.Context, id string) (*domorder.Order, error)
	listFn   func(ctx context.Context, storeID string) ([]*domorder.Order, error)
}

func (m *mockOrders) CreateOrder(ctx context.Context, storeID string, requested []apporder.RequestedItem) (*domorder.Order, error) {
	return m.createFn(ctx, storeID, requested)
}

func (m *mockOrders) Get(ctx context.Context, id string) (*domorder.Order, error) {
	return m.getFn(ctx, id)
}

func (m *mockOrders) ListByStore(ctx context.Context, storeID string) ([]*domorder.Order, error) {
	return m.listFn(ctx, storeID)
}

type seqIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDGen) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

func newTestHandler(ledger *mockLedger, orders *mockOrders) *Handler {
	return NewHandler(ledger, orders, memory.NewProductRepository(), memory.NewCategoryRepository(), memory.NewStoreRepository(), &seqIDGen{}, zap.NewNop(), nil)
}

func doRequest(t *testing.T, h *Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleTransfer(t *testing.T) {
	ledger := &mockLedger{
		transferFn: func(_ context.Context, fromID, toID string, amount decimal.Decimal) (*domledger.Transaction, error) {
			if fromID != "sa-1" || toID != "ca-1" || !amount.Equal(decimal.NewFromInt(40)) {
				t.Errorf("Transfer(%s, %s, %s), want (sa-1, ca-1, 40)", fromID, toID, amount)
			}
			return &domledger.Transaction{
				ID:               "tx-1",
				StoreAccountID:   fromID,
				CompanyAccountID: toID,
				Amount:           amount,
				Direction:        domledger.DirectionStoreToCompany,
				CreatedAt:        time.Now().UTC(),
			}, nil
		},
	}
	h := newTestHandler(ledger, &mockOrders{})

	rec := doRequest(t, h, http.MethodPost, "/transfer", map[string]string{
		"from_account_id": "sa-1",
		"to_account_id":   "ca-1",
		"amount":          "40",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusCreated, rec.Body)
	}
	var resp transferResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.TransactionID != "tx-1" || resp.Direction != string(domledger.DirectionStoreToCompany) || resp.Amount != "40" {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandleTransferErrors(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{name: "insufficient funds", serviceErr: domaccount.ErrInsufficientFunds, wantStatus: http.StatusUnprocessableEntity},
		{name: "account not found", serviceErr: domaccount.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "same account", serviceErr: domledger.ErrSameAccount, wantStatus: http.StatusBadRequest},
		{name: "invalid pair", serviceErr: domledger.ErrInvalidAccountPair, wantStatus: http.StatusBadRequest},
		{name: "version conflict", serviceErr: domaccount.ErrConflict, wantStatus: http.StatusConflict},
		{name: "partial failure", serviceErr: &domledger.PartialTransferError{FromAccountID: "sa-1", ToAccountID: "ca-1"}, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &mockLedger{
				transferFn: func(context.Context, string, string, decimal.Decimal) (*domledger.Transaction, error) {
					return nil, tt.serviceErr
				},
			}
			h := newTestHandler(ledger, &mockOrders{})

			rec := doRequest(t, h, http.MethodPost, "/transfer", map[string]string{
				"from_account_id": "sa-1",
				"to_account_id":   "ca-1",
				"amount":          "40",
			})
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body)
			}
		})
	}
}

func TestHandleTransferBadRequest(t *testing.T) {
	transferCalled := false
	ledger := &mockLedger{
		transferFn: func(context.Context, string, string, decimal.Decimal) (*domledger.Transaction, error) {
			transferCalled = true
			return nil, nil
		},
	}
	h := newTestHandler(ledger, &mockOrders{})

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"from_account_id": `},
		{name: "unknown field", body: `{"source": "sa-1"}`},
		{name: "non-numeric amount", body: `{"from_account_id":"sa-1","to_account_id":"ca-1","amount":"lots"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/transfer", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			h.Router().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
	if transferCalled {
		t.Error("Transfer was called for a rejected request")
	}
}

func TestHandleCreateOrder(t *testing.T) {
	orders := &mockOrders{
		createFn: func(_ context.Context, storeID string, requested []apporder.RequestedItem) (*domorder.Order, error) {
			if storeID != "store-1" || len(requested) != 1 || requested[0].Quantity != 2 {
				t.Errorf("CreateOrder(%s, %+v)", storeID, requested)
			}
			return &domorder.Order{
				ID:          "o-1",
				StoreID:     storeID,
				TotalAmount: decimal.NewFromInt(20),
				Items: []domorder.Item{{
					ID:        "i-1",
					OrderID:   "o-1",
					ProductID: requested[0].ProductID,
					Quantity:  requested[0].Quantity,
					UnitPrice: decimal.NewFromInt(10),
				}},
				CreatedAt: time.Now().UTC(),
			}, nil
		},
	}
	h := newTestHandler(&mockLedger{}, orders)

	rec := doRequest(t, h, http.MethodPost, "/orders", map[string]any{
		"store_id": "store-1",
		"items":    []map[string]any{{"product_id": "p1", "quantity": 2}},
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusCreated, rec.Body)
	}
	var resp orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != "o-1" || resp.TotalAmount != "20" || len(resp.Items) != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandleCreateOrderErrors(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{name: "no items", serviceErr: domorder.ErrNoItems, wantStatus: http.StatusBadRequest},
		{name: "insufficient stock", serviceErr: fmt.Errorf("%w: product %q", domcatalog.ErrInsufficientStock, "widget"), wantStatus: http.StatusUnprocessableEntity},
		{name: "unknown order partial", serviceErr: &domorder.PartialCommitError{StoreID: "store-1", Unrestored: map[string]int{"p1": 2}}, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &mockOrders{
				createFn: func(context.Context, string, []apporder.RequestedItem) (*domorder.Order, error) {
					return nil, tt.serviceErr
				},
			}
			h := newTestHandler(&mockLedger{}, orders)

			rec := doRequest(t, h, http.MethodPost, "/orders", map[string]any{
				"store_id": "store-1",
				"items":    []map[string]any{{"product_id": "p1", "quantity": 2}},
			})
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body %s", rec.Code, tt.wantStatus, rec.Body)
			}
		})
	}
}

func TestHandleGetAccount(t *testing.T) {
	ledger := &mockLedger{
		getAccountFn: func(_ context.Context, id string) (*domaccount.Account, error) {
			if id != "sa-1" {
				return nil, domaccount.ErrNotFound
			}
			return &domaccount.Account{
				ID:      "sa-1",
				Kind:    domaccount.KindStore,
				OwnerID: "store-1",
				Balance: decimal.NewFromInt(75),
			}, nil
		},
	}
	h := newTestHandler(ledger, &mockOrders{})

	rec := doRequest(t, h, http.MethodGet, "/accounts/sa-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp accountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Balance != "75" || resp.Kind != string(domaccount.KindStore) {
		t.Errorf("response = %+v", resp)
	}

	rec = doRequest(t, h, http.MethodGet, "/accounts/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleHistory(t *testing.T) {
	ledger := &mockLedger{
		historyFn: func(_ context.Context, accountID string) ([]*domledger.Transaction, error) {
			return []*domledger.Transaction{{
				ID:               "tx-1",
				StoreAccountID:   accountID,
				CompanyAccountID: "ca-1",
				Amount:           decimal.NewFromInt(40),
				Direction:        domledger.DirectionStoreToCompany,
			}}, nil
		},
	}
	h := newTestHandler(ledger, &mockOrders{})

	rec := doRequest(t, h, http.MethodGet, "/accounts/sa-1/transactions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp []transactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp) != 1 || resp[0].Amount != "40" {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandleCreateProductAndStore(t *testing.T) {
	h := newTestHandler(&mockLedger{}, &mockOrders{})

	rec := doRequest(t, h, http.MethodPost, "/stores", map[string]string{
		"name":    "Main Street",
		"address": "1 Main St",
		"tax_id":  "TAX-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create store status = %d, body %s", rec.Code, rec.Body)
	}

	rec = doRequest(t, h, http.MethodPost, "/products", map[string]any{
		"name":  "widget",
		"price": "9.99",
		"stock": 3,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product status = %d, body %s", rec.Code, rec.Body)
	}
	var created productResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Price != "9.99" || created.Stock != 3 {
		t.Errorf("response = %+v", created)
	}

	rec = doRequest(t, h, http.MethodGet, "/products", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list products status = %d", rec.Code)
	}
	var listed []productResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].Name != "widget" {
		t.Errorf("listed = %+v", listed)
	}

	rec = doRequest(t, h, http.MethodPost, "/products", map[string]any{
		"name":  "bad",
		"price": "-1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative price status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleCategories(t *testing.T) {
	h := newTestHandler(&mockLedger{}, &mockOrders{})

	rec := doRequest(t, h, http.MethodPost, "/categories", map[string]string{"name": "beverages"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category status = %d, body %s", rec.Code, rec.Body)
	}
	var created categoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	// A product referencing a category must reference an existing one.
	rec = doRequest(t, h, http.MethodPost, "/products", map[string]any{
		"name":        "cola",
		"price":       "1.50",
		"stock":       10,
		"category_id": "ghost",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown category status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = doRequest(t, h, http.MethodPost, "/products", map[string]any{
		"name":        "cola",
		"price":       "1.50",
		"stock":       10,
		"category_id": created.ID,
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("create product status = %d, body %s", rec.Code, rec.Body)
	}

	rec = doRequest(t, h, http.MethodGet, "/categories", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list categories status = %d", rec.Code)
	}
	var listed []categoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].Name != "beverages" {
		t.Errorf("listed = %+v", listed)
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandler(&mockLedger{}, &mockOrders{})
	rec := doRequest(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
