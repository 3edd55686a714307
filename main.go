package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appledger "github.com/fisher-retail/backoffice/internal/application/ledger"
	apporder "github.com/fisher-retail/backoffice/internal/application/order"
	"github.com/fisher-retail/backoffice/internal/domain/account"
	"github.com/fisher-retail/backoffice/internal/domain/catalog"
	domledger "github.com/fisher-retail/backoffice/internal/domain/ledger"
	domorder "github.com/fisher-retail/backoffice/internal/domain/order"
	domoutbox "github.com/fisher-retail/backoffice/internal/domain/outbox"
	domstore "github.com/fisher-retail/backoffice/internal/domain/store"
	"github.com/fisher-retail/backoffice/internal/infrastructure/id"
	"github.com/fisher-retail/backoffice/internal/infrastructure/memory"
	"github.com/fisher-retail/backoffice/internal/infrastructure/outbox"
	"github.com/fisher-retail/backoffice/internal/infrastructure/postgres"
	httppresentation "github.com/fisher-retail/backoffice/internal/presentation/http"
	"github.com/fisher-retail/backoffice/internal/pkg/config"
	"github.com/fisher-retail/backoffice/internal/pkg/logging"
	"github.com/fisher-retail/backoffice/internal/pkg/metrics"
)

type repositories struct {
	accounts   account.Repository
	txlog      domledger.Log
	products   catalog.Repository
	categories catalog.CategoryRepository
	orders     domorder.Repository
	stores     domstore.Repository
}

func main() {
	cfg := config.Load()

	logger := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, cleanup, err := buildRepositories(ctx, cfg)
	if err != nil {
		logger.Fatal("storage_init_failed", zap.Error(err))
	}
	defer cleanup()

	m := metrics.New(prometheus.DefaultRegisterer)
	idGenerator := id.NewUUIDGenerator()

	bus := outbox.NewBus(logger)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())
	subscribeAuditLog(bus, logger)

	ledgerService := appledger.NewService(repos.accounts, repos.txlog, idGenerator, bus, m)
	orderService := apporder.NewService(repos.orders, repos.products, repos.stores, idGenerator, bus, m)

	handler := httppresentation.NewHandler(ledgerService, orderService, repos.products, repos.categories, repos.stores, idGenerator, logger, m)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		logger.Info("http_server_start",
			zap.String("addr", server.Addr),
			zap.String("backend", cfg.Backend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", zap.Error(err))
	} else {
		logger.Info("http_server_stopped")
	}
}

func buildRepositories(ctx context.Context, cfg *config.Config) (*repositories, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return &repositories{
			accounts:   postgres.NewAccountRepository(pool),
			txlog:      postgres.NewTransactionLog(pool),
			products:   postgres.NewProductRepository(pool),
			categories: postgres.NewCategoryRepository(pool),
			orders:     postgres.NewOrderRepository(pool),
			stores:     postgres.NewStoreRepository(pool),
		}, pool.Close, nil
	default:
		return &repositories{
			accounts:   memory.NewAccountRepository(),
			txlog:      memory.NewTransactionLog(),
			products:   memory.NewProductRepository(),
			categories: memory.NewCategoryRepository(),
			orders:     memory.NewOrderRepository(),
			stores:     memory.NewStoreRepository(),
		}, func() {}, nil
	}
}

// subscribeAuditLog mirrors every committed transfer and order into the
// log stream for operators.
func subscribeAuditLog(bus *outbox.Bus, logger *zap.Logger) {
	audit := logger.With(zap.String("component", "audit"))

	bus.Subscribe(domledger.TransferCompletedEvent{}.EventName(), func(_ context.Context, e domoutbox.Event) error {
		if ev, ok := e.(domledger.TransferCompletedEvent); ok {
			audit.Info("transfer_completed",
				zap.String("transaction_id", ev.TransactionID),
				zap.String("store_account_id", ev.StoreAccountID),
				zap.String("company_account_id", ev.CompanyAccountID),
				zap.String("amount", ev.Amount),
				zap.String("direction", string(ev.Direction)),
			)
		}
		return nil
	})

	bus.Subscribe(domorder.CreatedEvent{}.EventName(), func(_ context.Context, e domoutbox.Event) error {
		if ev, ok := e.(domorder.CreatedEvent); ok {
			audit.Info("order_created",
				zap.String("order_id", ev.OrderID),
				zap.String("store_id", ev.StoreID),
				zap.String("total_amount", ev.TotalAmount),
				zap.Int("items", ev.ItemCount),
			)
		}
		return nil
	})
}
