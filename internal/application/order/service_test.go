package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fisher-retail/backoffice/internal/domain/catalog"
	domain "github.com/fisher-retail/backoffice/internal/domain/order"
	domstore "github.com/fisher-retail/backoffice/internal/domain/store"
	"github.com/fisher-retail/backoffice/internal/infrastructure/memory"
)

type stubIDGen struct {
	mu sync.Mutex
	n  int
}

func (g *stubIDGen) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

type fixture struct {
	orders   *memory.OrderRepository
	products *memory.ProductRepository
	stores   *memory.StoreRepository
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:   memory.NewOrderRepository(),
		products: memory.NewProductRepository(),
		stores:   memory.NewStoreRepository(),
	}
	f.service = NewService(f.orders, f.products, f.stores, &stubIDGen{}, nil, nil)

	st, err := domstore.New("store-1", "Main Street", "1 Main St", "TAX-1", "mgr-1")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.stores.Create(context.Background(), st); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) seedProduct(t *testing.T, id string, price int64, stock int) {
	t.Helper()
	p, err := catalog.NewProduct(id, "product "+id, decimal.NewFromInt(price), stock, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.products.Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.products.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return p.QuantityInStock
}

func TestCreateOrderDecrementsStockAndPricesLines(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 10, 5)
	ctx := context.Background()

	o, err := f.service.CreateOrder(ctx, "store-1", []RequestedItem{{ProductID: "p1", Quantity: 2}})
	if err != nil {
		t.Fatalf("CreateOrder() unexpected error: %v", err)
	}

	if !o.TotalAmount.Equal(decimal.NewFromInt(20)) {
		t.Errorf("total = %s, want 20", o.TotalAmount)
	}
	if len(o.Items) != 1 || !o.Items[0].UnitPrice.Equal(decimal.NewFromInt(10)) {
		t.Errorf("items = %+v, want one line at unit price 10", o.Items)
	}
	if got := f.stock(t, "p1"); got != 3 {
		t.Errorf("stock = %d, want 3", got)
	}

	stored, err := f.service.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if stored.StoreID != "store-1" || len(stored.Items) != 1 {
		t.Errorf("stored order = %+v, want store-1 with one item", stored)
	}
}

func TestCreateOrderAggregatesDuplicateProductLines(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 5, 4)

	// Two lines for the same product: validated and decremented as a
	// combined quantity, but kept as separate order lines.
	o, err := f.service.CreateOrder(context.Background(), "store-1", []RequestedItem{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p1", Quantity: 2},
	})
	if err != nil {
		t.Fatalf("CreateOrder() unexpected error: %v", err)
	}
	if len(o.Items) != 2 {
		t.Errorf("items = %d lines, want 2", len(o.Items))
	}
	if !o.TotalAmount.Equal(decimal.NewFromInt(15)) {
		t.Errorf("total = %s, want 15", o.TotalAmount)
	}
	if got := f.stock(t, "p1"); got != 1 {
		t.Errorf("stock = %d, want 1", got)
	}
}

func TestCreateOrderDuplicateLinesExceedingStock(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 5, 4)

	_, err := f.service.CreateOrder(context.Background(), "store-1", []RequestedItem{
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p1", Quantity: 2},
	})
	if !errors.Is(err, catalog.ErrInsufficientStock) {
		t.Fatalf("CreateOrder() error = %v, want %v", err, catalog.ErrInsufficientStock)
	}
	if got := f.stock(t, "p1"); got != 4 {
		t.Errorf("stock = %d, want unchanged 4", got)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name      string
		storeID   string
		requested []RequestedItem
		wantErr   error
	}{
		{name: "no items", storeID: "store-1", requested: nil, wantErr: domain.ErrNoItems},
		{name: "zero quantity", storeID: "store-1", requested: []RequestedItem{{ProductID: "p1", Quantity: 0}}, wantErr: catalog.ErrInvalidQuantity},
		{name: "negative quantity", storeID: "store-1", requested: []RequestedItem{{ProductID: "p1", Quantity: -1}}, wantErr: catalog.ErrInvalidQuantity},
		{name: "unknown store", storeID: "nope", requested: []RequestedItem{{ProductID: "p1", Quantity: 1}}, wantErr: domstore.ErrNotFound},
		{name: "unknown product", storeID: "store-1", requested: []RequestedItem{{ProductID: "ghost", Quantity: 1}}, wantErr: catalog.ErrNotFound},
		{name: "insufficient stock", storeID: "store-1", requested: []RequestedItem{{ProductID: "p1", Quantity: 10}}, wantErr: catalog.ErrInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedProduct(t, "p1", 10, 5)

			_, err := f.service.CreateOrder(context.Background(), tt.storeID, tt.requested)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreateOrder() error = %v, want %v", err, tt.wantErr)
			}
			if got := f.stock(t, "p1"); got != 5 {
				t.Errorf("stock = %d, want unchanged 5", got)
			}
			if orders, _ := f.orders.ListByStore(context.Background(), "store-1"); len(orders) != 0 {
				t.Errorf("orders persisted = %d, want 0", len(orders))
			}
		})
	}
}

func TestCreateOrderInsufficientStockNamesProduct(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 10, 1)

	_, err := f.service.CreateOrder(context.Background(), "store-1", []RequestedItem{{ProductID: "p1", Quantity: 2}})
	if !errors.Is(err, catalog.ErrInsufficientStock) {
		t.Fatalf("CreateOrder() error = %v, want %v", err, catalog.ErrInsufficientStock)
	}
	if want := `product "product p1"`; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not name the product (%s)", err, want)
	}
}

func TestCreateOrderConcurrentLastUnit(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 10, 1)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.CreateOrder(context.Background(), "store-1", []RequestedItem{{ProductID: "p1", Quantity: 1}})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, shortfalls := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, catalog.ErrInsufficientStock), errors.Is(err, catalog.ErrConflict):
			shortfalls++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 || shortfalls != 1 {
		t.Errorf("successes = %d, shortfalls = %d, want exactly one of each", successes, shortfalls)
	}
	if got := f.stock(t, "p1"); got != 0 {
		t.Errorf("stock = %d, want 0", got)
	}
	orders, err := f.orders.ListByStore(context.Background(), "store-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != successes {
		t.Errorf("orders persisted = %d, want %d", len(orders), successes)
	}
}

type failingOrders struct {
	*memory.OrderRepository
	mu    sync.Mutex
	fails int
}

func (r *failingOrders) Insert(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	shouldFail := r.fails > 0
	if shouldFail {
		r.fails--
	}
	r.mu.Unlock()
	if shouldFail {
		return errors.New("order storage unavailable")
	}
	return r.OrderRepository.Insert(ctx, o)
}

func TestCreateOrderRestoresStockWhenInsertFails(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 10, 5)
	f.seedProduct(t, "p2", 3, 2)
	orders := &failingOrders{OrderRepository: f.orders, fails: 1}
	service := NewService(orders, f.products, f.stores, &stubIDGen{}, nil, nil)
	ctx := context.Background()

	request := []RequestedItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	}

	_, err := service.CreateOrder(ctx, "store-1", request)
	if !errors.Is(err, ErrRepository) {
		t.Fatalf("CreateOrder() error = %v, want wrapped %v", err, ErrRepository)
	}
	if got := f.stock(t, "p1"); got != 5 {
		t.Errorf("p1 stock = %d, want restored 5", got)
	}
	if got := f.stock(t, "p2"); got != 2 {
		t.Errorf("p2 stock = %d, want restored 2", got)
	}

	// The same request succeeds once storage recovers.
	o, err := service.CreateOrder(ctx, "store-1", request)
	if err != nil {
		t.Fatalf("retried CreateOrder() unexpected error: %v", err)
	}
	if !o.TotalAmount.Equal(decimal.NewFromInt(23)) {
		t.Errorf("total = %s, want 23", o.TotalAmount)
	}
	if got := f.stock(t, "p1"); got != 3 {
		t.Errorf("p1 stock = %d, want 3", got)
	}
}

// brokenProducts lets updates through until a chosen product is
// written, then fails every update, so restores cannot land either.
type brokenProducts struct {
	catalog.Repository
	mu      sync.Mutex
	breakID string
	tripped bool
}

func (r *brokenProducts) Update(ctx context.Context, p *catalog.Product, expectedVersion int64) error {
	r.mu.Lock()
	if p.ID == r.breakID {
		r.tripped = true
	}
	tripped := r.tripped
	r.mu.Unlock()
	if tripped {
		return errors.New("product storage unavailable")
	}
	return r.Repository.Update(ctx, p, expectedVersion)
}

func TestCreateOrderSurfacesPartialCommit(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 10, 5)
	f.seedProduct(t, "p2", 3, 2)
	// p1 commits first (sorted order), then p2's decrement trips the
	// storage fault, and the restore of p1 hits the same fault.
	products := &brokenProducts{Repository: f.products, breakID: "p2"}
	service := NewService(f.orders, products, f.stores, &stubIDGen{}, nil, nil)

	_, err := service.CreateOrder(context.Background(), "store-1", []RequestedItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 1},
	})

	var partial *domain.PartialCommitError
	if !errors.As(err, &partial) {
		t.Fatalf("CreateOrder() error = %v, want *PartialCommitError", err)
	}
	if partial.StoreID != "store-1" {
		t.Errorf("partial store = %s, want store-1", partial.StoreID)
	}
	if got := partial.Unrestored["p1"]; got != 2 {
		t.Errorf("unrestored p1 = %d, want 2", got)
	}
	if orders, _ := f.orders.ListByStore(context.Background(), "store-1"); len(orders) != 0 {
		t.Errorf("orders persisted = %d, want 0", len(orders))
	}
}

// flakyRestoreProducts fails every write to p3 and any write to p1
// after its first, so p1's decrement lands but its restore cannot.
type flakyRestoreProducts struct {
	catalog.Repository
	mu    sync.Mutex
	calls map[string]int
}

func (r *flakyRestoreProducts) Update(ctx context.Context, p *catalog.Product, expectedVersion int64) error {
	r.mu.Lock()
	r.calls[p.ID]++
	call := r.calls[p.ID]
	r.mu.Unlock()
	if p.ID == "p3" || (p.ID == "p1" && call > 1) {
		return errors.New("product storage unavailable")
	}
	return r.Repository.Update(ctx, p, expectedVersion)
}

func TestCreateOrderPartialCommitReportsOnlyFailedRestores(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 1, 5)
	f.seedProduct(t, "p2", 1, 5)
	f.seedProduct(t, "p3", 1, 5)
	products := &flakyRestoreProducts{Repository: f.products, calls: make(map[string]int)}
	service := NewService(f.orders, products, f.stores, &stubIDGen{}, nil, nil)

	// p1 and p2 commit, p3's decrement fails; the restore of p2 lands
	// but the restore of p1 does not.
	_, err := service.CreateOrder(context.Background(), "store-1", []RequestedItem{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 3},
		{ProductID: "p3", Quantity: 1},
	})

	var partial *domain.PartialCommitError
	if !errors.As(err, &partial) {
		t.Fatalf("CreateOrder() error = %v, want *PartialCommitError", err)
	}

	// Only p1's quantity is actually missing from stock; reporting p2
	// as unrestored would make an operator double-restock it.
	if len(partial.Unrestored) != 1 || partial.Unrestored["p1"] != 2 {
		t.Errorf("unrestored = %v, want map[p1:2]", partial.Unrestored)
	}
	if got := f.stock(t, "p1"); got != 3 {
		t.Errorf("p1 stock = %d, want 3 (decrement applied, restore failed)", got)
	}
	if got := f.stock(t, "p2"); got != 5 {
		t.Errorf("p2 stock = %d, want restored 5", got)
	}
	if got := f.stock(t, "p3"); got != 5 {
		t.Errorf("p3 stock = %d, want untouched 5", got)
	}
}

func TestListByStore(t *testing.T) {
	f := newFixture(t)
	f.seedProduct(t, "p1", 10, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.service.CreateOrder(ctx, "store-1", []RequestedItem{{ProductID: "p1", Quantity: 1}}); err != nil {
			t.Fatal(err)
		}
	}

	orders, err := f.service.ListByStore(ctx, "store-1")
	if err != nil {
		t.Fatalf("ListByStore() unexpected error: %v", err)
	}
	if len(orders) != 3 {
		t.Errorf("orders = %d, want 3", len(orders))
	}

	if _, err := f.service.ListByStore(ctx, "nope"); !errors.Is(err, domstore.ErrNotFound) {
		t.Errorf("ListByStore() error = %v, want %v", err, domstore.ErrNotFound)
	}
}

func TestGetUnknownOrder(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.Get(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrNotFound)
	}
}
