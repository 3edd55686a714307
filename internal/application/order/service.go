package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fisher-retail/backoffice/internal/domain/catalog"
	domain "github.com/fisher-retail/backoffice/internal/domain/order"
	domoutbox "github.com/fisher-retail/backoffice/internal/domain/outbox"
	domstore "github.com/fisher-retail/backoffice/internal/domain/store"
	"github.com/fisher-retail/backoffice/internal/pkg/logging"
	"github.com/fisher-retail/backoffice/internal/pkg/metrics"
)

const (
	opCreateOrder = "order.create"

	// casAttempts bounds the retries of one conditional stock write
	// before the version conflict is surfaced.
	casAttempts = 3
)

// ErrRepository wraps storage failures that are neither not-found nor
// version conflicts.
var ErrRepository = errors.New("order: repository failure")

type IDGenerator interface {
	NewID() string
}

// RequestedItem is one line of an incoming order request.
type RequestedItem struct {
	ProductID string
	Quantity  int
}

// Service turns a requested item list into a persisted order while
// decrementing stock. The whole batch is validated against a stock
// snapshot first; the commit phase then applies conditional decrements,
// the order insert, and compensating restores on failure, so an order
// is either fully durable or leaves no trace.
type Service struct {
	orders    domain.Repository
	products  catalog.Repository
	stores    domstore.Repository
	ids       IDGenerator
	publisher domoutbox.Publisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func NewService(orders domain.Repository, products catalog.Repository, stores domstore.Repository, ids IDGenerator, publisher domoutbox.Publisher, m *metrics.Metrics) *Service {
	return &Service{
		orders:    orders,
		products:  products,
		stores:    stores,
		ids:       ids,
		publisher: publisher,
		metrics:   m,
		tracer:    otel.Tracer("backoffice.order"),
	}
}

// CreateOrder validates, prices, and commits an order for storeID.
// Line unit prices are snapshots of the product price at order time;
// the order total is exactly the sum of line subtotals. Two orders
// racing for the last units of a product cannot both succeed.
func (s *Service) CreateOrder(ctx context.Context, storeID string, requested []RequestedItem) (_ *domain.Order, err error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "order_service"),
		zap.String("store_id", storeID),
	)

	ctx, span := s.tracer.Start(ctx, "Order.Create",
		trace.WithAttributes(
			attribute.String("order.store_id", storeID),
			attribute.Int("order.requested_items", len(requested)),
		),
	)
	start := time.Now()
	outcome := "success"

	defer func() {
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		s.metrics.RecordOp(opCreateOrder, outcome)
		s.metrics.ObserveOp(opCreateOrder, time.Since(start).Seconds())
	}()

	if len(requested) == 0 {
		return nil, domain.ErrNoItems
	}
	for _, req := range requested {
		if req.Quantity <= 0 {
			return nil, catalog.ErrInvalidQuantity
		}
	}
	if _, err := s.stores.Get(ctx, storeID); err != nil {
		return nil, wrapRepositoryError(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Validate phase: resolve every product and check the whole batch
	// against the stock snapshot before touching anything. A later
	// line must not see earlier lines already applied.
	needed := make(map[string]int, len(requested))
	for _, req := range requested {
		needed[req.ProductID] += req.Quantity
	}

	snapshot := make(map[string]*catalog.Product, len(needed))
	for productID, quantity := range needed {
		p, perr := s.products.Get(ctx, productID)
		if perr != nil {
			return nil, wrapRepositoryError(perr)
		}
		if quantity > p.QuantityInStock {
			return nil, fmt.Errorf("%w: product %q", catalog.ErrInsufficientStock, p.Name)
		}
		snapshot[productID] = p
	}

	items := make([]domain.Item, 0, len(requested))
	for _, req := range requested {
		items = append(items, domain.Item{
			ID:        s.ids.NewID(),
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			UnitPrice: snapshot[req.ProductID].Price,
		})
	}

	entity, err := domain.New(s.ids.NewID(), storeID, items)
	if err != nil {
		return nil, err
	}

	// Commit phase: conditional decrements in a fixed order, then the
	// order insert. Any failure unwinds the decrements already applied.
	productIDs := make([]string, 0, len(needed))
	for productID := range needed {
		productIDs = append(productIDs, productID)
	}
	sort.Strings(productIDs)

	applied := make([]string, 0, len(productIDs))
	for _, productID := range productIDs {
		if derr := s.decrementStock(ctx, productID, needed[productID]); derr != nil {
			if unrestored, cerr := s.restoreStock(ctx, applied, needed); cerr != nil {
				return nil, s.partial(storeID, unrestored, needed, cerr, derr)
			}
			return nil, derr
		}
		applied = append(applied, productID)
	}

	if ierr := s.orders.Insert(ctx, entity); ierr != nil {
		wrapped := wrapRepositoryError(ierr)
		if unrestored, cerr := s.restoreStock(ctx, applied, needed); cerr != nil {
			return nil, s.partial(storeID, unrestored, needed, cerr, wrapped)
		}
		logger.Error("order_insert_failed", zap.Error(ierr))
		return nil, wrapped
	}

	logger.Info("order_created",
		zap.String("order_id", entity.ID),
		zap.String("total_amount", entity.TotalAmount.String()),
		zap.Int("items", len(entity.Items)),
	)
	span.SetAttributes(attribute.String("order.id", entity.ID))
	s.publish(ctx, domain.NewCreatedEvent(entity))

	return entity, nil
}

// decrementStock applies "stock := stock − quantity only if stock ≥
// quantity" as a bounded version-CAS loop. Each round re-reads the
// product, so a shortfall discovered at commit time still fails cleanly
// with ErrInsufficientStock instead of overselling.
func (s *Service) decrementStock(ctx context.Context, productID string, quantity int) error {
	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		p, err := s.products.Get(ctx, productID)
		if err != nil {
			return wrapRepositoryError(err)
		}
		version := p.Version
		if err := p.Deduct(quantity); err != nil {
			if errors.Is(err, catalog.ErrInsufficientStock) {
				return fmt.Errorf("%w: product %q", catalog.ErrInsufficientStock, p.Name)
			}
			return err
		}
		err = s.products.Update(ctx, p, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, catalog.ErrConflict) {
			return wrapRepositoryError(err)
		}
		lastErr = err
	}
	return lastErr
}

// restoreStock puts back the decrements listed in applied, most recent
// first. Restores always add stock, so only exhausted CAS retries or a
// storage failure can stop them. It returns the products whose restore
// did not land; those quantities are genuinely missing from stock.
func (s *Service) restoreStock(ctx context.Context, applied []string, needed map[string]int) ([]string, error) {
	var unrestored []string
	var failed error
	for i := len(applied) - 1; i >= 0; i-- {
		productID := applied[i]
		if err := s.restoreOne(ctx, productID, needed[productID]); err != nil {
			unrestored = append(unrestored, productID)
			failed = errors.Join(failed, fmt.Errorf("restore %s: %w", productID, err))
		}
	}
	return unrestored, failed
}

func (s *Service) restoreOne(ctx context.Context, productID string, quantity int) error {
	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		p, err := s.products.Get(ctx, productID)
		if err != nil {
			return err
		}
		version := p.Version
		if err := p.Restock(quantity); err != nil {
			return err
		}
		err = s.products.Update(ctx, p, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, catalog.ErrConflict) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *Service) partial(storeID string, unrestored []string, needed map[string]int, restoreErr, cause error) error {
	missing := make(map[string]int, len(unrestored))
	for _, productID := range unrestored {
		missing[productID] = needed[productID]
	}
	return &domain.PartialCommitError{
		StoreID:    storeID,
		Unrestored: missing,
		Err:        errors.Join(cause, restoreErr),
	}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return o, nil
}

func (s *Service) ListByStore(ctx context.Context, storeID string) ([]*domain.Order, error) {
	if _, err := s.stores.Get(ctx, storeID); err != nil {
		return nil, wrapRepositoryError(err)
	}
	orders, err := s.orders.ListByStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %w", ErrRepository, err)
	}
	return orders, nil
}

func (s *Service) publish(ctx context.Context, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed",
			zap.String("component", "order_service"),
			zap.String("event", e.EventName()),
			zap.Error(err),
		)
	}
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, catalog.ErrConflict),
		errors.Is(err, domstore.ErrNotFound):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
