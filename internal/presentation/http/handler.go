package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apporder "github.com/fisher-retail/backoffice/internal/application/order"
	domaccount "github.com/fisher-retail/backoffice/internal/domain/account"
	domcatalog "github.com/fisher-retail/backoffice/internal/domain/catalog"
	domledger "github.com/fisher-retail/backoffice/internal/domain/ledger"
	domorder "github.com/fisher-retail/backoffice/internal/domain/order"
	domstore "github.com/fisher-retail/backoffice/internal/domain/store"
	"github.com/fisher-retail/backoffice/internal/pkg/metrics"
)

// LedgerService is the subset of the ledger application service the
// HTTP layer depends on.
type LedgerService interface {
	Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal) (*domledger.Transaction, error)
	OpenAccount(ctx context.Context, kind domaccount.Kind, ownerID string, opening decimal.Decimal) (*domaccount.Account, error)
	GetAccount(ctx context.Context, id string) (*domaccount.Account, error)
	History(ctx context.Context, accountID string) ([]*domledger.Transaction, error)
}

// OrderService is the subset of the order application service the HTTP
// layer depends on.
type OrderService interface {
	CreateOrder(ctx context.Context, storeID string, requested []apporder.RequestedItem) (*domorder.Order, error)
	Get(ctx context.Context, id string) (*domorder.Order, error)
	ListByStore(ctx context.Context, storeID string) ([]*domorder.Order, error)
}

type Handler struct {
	ledger     LedgerService
	orders     OrderService
	products   domcatalog.Repository
	categories domcatalog.CategoryRepository
	stores     domstore.Repository
	ids        apporder.IDGenerator
	log        *zap.Logger
	metrics    *metrics.Metrics
}

func NewHandler(ledgerSvc LedgerService, orderSvc OrderService, products domcatalog.Repository, categories domcatalog.CategoryRepository, stores domstore.Repository, ids apporder.IDGenerator, logger *zap.Logger, m *metrics.Metrics) *Handler {
	if logger == nil {
		logger = zap.L()
	}
	return &Handler{
		ledger:     ledgerSvc,
		orders:     orderSvc,
		products:   products,
		categories: categories,
		stores:     stores,
		ids:        ids,
		log:        logger.With(zap.String("component", "http_server")),
		metrics:    m,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	h.muxHandle(mux, http.MethodPost, "/transfer", h.handleTransfer)
	h.muxHandle(mux, http.MethodPost, "/accounts", h.handleOpenAccount)
	h.muxHandle(mux, http.MethodGet, "/accounts/{id}", h.handleGetAccount)
	h.muxHandle(mux, http.MethodGet, "/accounts/{id}/transactions", h.handleHistory)
	h.muxHandle(mux, http.MethodPost, "/orders", h.handleCreateOrder)
	h.muxHandle(mux, http.MethodGet, "/orders/{id}", h.handleGetOrder)
	h.muxHandle(mux, http.MethodGet, "/stores/{id}/orders", h.handleListOrders)
	h.muxHandle(mux, http.MethodPost, "/products", h.handleCreateProduct)
	h.muxHandle(mux, http.MethodGet, "/products", h.handleListProducts)
	h.muxHandle(mux, http.MethodPost, "/categories", h.handleCreateCategory)
	h.muxHandle(mux, http.MethodGet, "/categories", h.handleListCategories)
	h.muxHandle(mux, http.MethodPost, "/stores", h.handleCreateStore)
	h.muxHandle(mux, http.MethodGet, "/stores", h.handleListStores)
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)

	return mux
}

// muxHandle wires a route with the shared middleware chain:
// trace → request logger → HTTP metrics → access log → handler.
func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	mux.HandleFunc(method+" "+route, func(w http.ResponseWriter, r *http.Request) {
		ctx := contextWithRoute(r.Context(), route)
		r = r.WithContext(ctx)

		wrapped := h.withTrace(
			h.withRequestLogger(
				h.withHTTPMetrics(
					h.withAccessLog(http.Handler(handler)),
				),
			),
		)
		wrapped.ServeHTTP(w, r)
	})
}

type transferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
}

type transferResponse struct {
	TransactionID string `json:"transaction_id"`
	Direction     string `json:"direction"`
	Amount        string `json:"amount"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, domaccount.ErrInvalidAmount)
		return
	}

	tx, err := h.ledger.Transfer(r.Context(), req.FromAccountID, req.ToAccountID, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, transferResponse{
		TransactionID: tx.ID,
		Direction:     string(tx.Direction),
		Amount:        tx.Amount.String(),
	})
}

type openAccountRequest struct {
	Kind           string `json:"kind"`
	OwnerID        string `json:"owner_id"`
	OpeningBalance string `json:"opening_balance"`
}

type accountResponse struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	OwnerID string `json:"owner_id"`
	Balance string `json:"balance"`
}

func (h *Handler) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	opening := decimal.Zero
	if req.OpeningBalance != "" {
		var err error
		opening, err = decimal.NewFromString(req.OpeningBalance)
		if err != nil {
			writeError(w, http.StatusBadRequest, domaccount.ErrInvalidAmount)
			return
		}
	}

	acct, err := h.ledger.OpenAccount(r.Context(), domaccount.Kind(req.Kind), req.OwnerID, opening)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(acct))
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.ledger.GetAccount(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acct))
}

type transactionResponse struct {
	ID               string    `json:"id"`
	StoreAccountID   string    `json:"store_account_id"`
	CompanyAccountID string    `json:"company_account_id"`
	Amount           string    `json:"amount"`
	Direction        string    `json:"direction"`
	CreatedAt        time.Time `json:"created_at"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	txs, err := h.ledger.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionResponse{
			ID:               tx.ID,
			StoreAccountID:   tx.StoreAccountID,
			CompanyAccountID: tx.CompanyAccountID,
			Amount:           tx.Amount.String(),
			Direction:        string(tx.Direction),
			CreatedAt:        tx.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type createOrderRequest struct {
	StoreID string             `json:"store_id"`
	Items   []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type orderResponse struct {
	ID          string              `json:"id"`
	StoreID     string              `json:"store_id"`
	TotalAmount string              `json:"total_amount"`
	Items       []orderItemResponse `json:"items"`
	CreatedAt   time.Time           `json:"created_at"`
}

type orderItemResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	requested := make([]apporder.RequestedItem, 0, len(req.Items))
	for _, item := range req.Items {
		requested = append(requested, apporder.RequestedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	o, err := h.orders.CreateOrder(r.Context(), req.StoreID, requested)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByStore(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

type createProductRequest struct {
	Name       string `json:"name"`
	Price      string `json:"price"`
	Stock      int    `json:"stock"`
	CategoryID string `json:"category_id"`
}

type productResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Price      string `json:"price"`
	Stock      int    `json:"stock"`
	CategoryID string `json:"category_id"`
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, domcatalog.ErrInvalidPrice)
		return
	}

	if req.CategoryID != "" {
		if _, err := h.categories.Get(r.Context(), req.CategoryID); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	p, err := domcatalog.NewProduct(h.ids.NewID(), req.Name, price, req.Stock, req.CategoryID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.products.Create(r.Context(), p); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

type categoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("category name is required"))
		return
	}
	c := domcatalog.NewCategory(h.ids.NewID(), req.Name)
	if err := h.categories.Create(r.Context(), c); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, categoryResponse{ID: c.ID, Name: c.Name})
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryResponse{ID: c.ID, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

type createStoreRequest struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	TaxID     string `json:"tax_id"`
	ManagerID string `json:"manager_id"`
}

type storeResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	TaxID   string `json:"tax_id"`
}

func (h *Handler) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req createStoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s, err := domstore.New(h.ids.NewID(), req.Name, req.Address, req.TaxID, req.ManagerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.stores.Create(r.Context(), s); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, storeResponse{ID: s.ID, Name: s.Name, Address: s.Address, TaxID: s.TaxID})
}

func (h *Handler) handleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.stores.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]storeResponse, 0, len(stores))
	for _, s := range stores {
		out = append(out, storeResponse{ID: s.ID, Name: s.Name, Address: s.Address, TaxID: s.TaxID})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func toAccountResponse(acct *domaccount.Account) accountResponse {
	return accountResponse{
		ID:      acct.ID,
		Kind:    string(acct.Kind),
		OwnerID: acct.OwnerID,
		Balance: acct.Balance.String(),
	}
}

func toOrderResponse(o *domorder.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.String(),
		})
	}
	return orderResponse{
		ID:          o.ID,
		StoreID:     o.StoreID,
		TotalAmount: o.TotalAmount.String(),
		Items:       items,
		CreatedAt:   o.CreatedAt,
	}
}

func toProductResponse(p *domcatalog.Product) productResponse {
	return productResponse{
		ID:         p.ID,
		Name:       p.Name,
		Price:      p.Price.String(),
		Stock:      p.QuantityInStock,
		CategoryID: p.CategoryID,
	}
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var partialTransfer *domledger.PartialTransferError
	var partialCommit *domorder.PartialCommitError
	switch {
	case errors.Is(err, domaccount.ErrNotFound),
		errors.Is(err, domcatalog.ErrNotFound),
		errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domstore.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domaccount.ErrInvalidAmount),
		errors.Is(err, domaccount.ErrNegativeBalance),
		errors.Is(err, domcatalog.ErrInvalidQuantity),
		errors.Is(err, domcatalog.ErrInvalidPrice),
		errors.Is(err, domorder.ErrNoItems),
		errors.Is(err, domorder.ErrInvalidQuantity),
		errors.Is(err, domledger.ErrSameAccount),
		errors.Is(err, domledger.ErrInvalidAccountPair):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domaccount.ErrInsufficientFunds),
		errors.Is(err, domcatalog.ErrInsufficientStock):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.As(err, &partialTransfer), errors.As(err, &partialCommit):
		// Manual reconciliation needed; surfaced loudly, never retried
		// blindly by the client.
		writeError(w, http.StatusInternalServerError, err)
	case errors.Is(err, domaccount.ErrConflict),
		errors.Is(err, domcatalog.ErrConflict),
		errors.Is(err, domorder.ErrConflict):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
