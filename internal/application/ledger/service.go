package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fisher-retail/backoffice/internal/domain/account"
	domain "github.com/fisher-retail/backoffice/internal/domain/ledger"
	domoutbox "github.com/fisher-retail/backoffice/internal/domain/outbox"
	"github.com/fisher-retail/backoffice/internal/pkg/logging"
	"github.com/fisher-retail/backoffice/internal/pkg/metrics"
)

const (
	opTransfer = "ledger.transfer"

	// transferAttempts bounds internal retries on version conflicts
	// before the conflict is surfaced to the caller.
	transferAttempts = 3
	// compensateAttempts bounds the CAS retries of a compensating
	// write; exhausting them escalates to a PartialTransferError.
	compensateAttempts = 3
)

// ErrRepository wraps storage failures that are neither not-found nor
// version conflicts.
var ErrRepository = errors.New("ledger: repository failure")

type IDGenerator interface {
	NewID() string
}

// Service moves money between a store account and the company account
// and appends one immutable transaction per completed transfer. Both
// balance changes and the log entry land together or not at all.
type Service struct {
	accounts  account.Repository
	txlog     domain.Log
	ids       IDGenerator
	publisher domoutbox.Publisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func NewService(accounts account.Repository, txlog domain.Log, ids IDGenerator, publisher domoutbox.Publisher, m *metrics.Metrics) *Service {
	return &Service{
		accounts:  accounts,
		txlog:     txlog,
		ids:       ids,
		publisher: publisher,
		metrics:   m,
		tracer:    otel.Tracer("backoffice.ledger"),
	}
}

// Transfer atomically moves amount from one account to the other. The
// direction of the resulting transaction is derived from which side is
// the store account. Version conflicts are retried internally a bounded
// number of times with fresh reads; the caller may retry the whole call
// on account.ErrConflict.
func (s *Service) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal) (_ *domain.Transaction, err error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "ledger_service"),
		zap.String("from_account_id", fromID),
		zap.String("to_account_id", toID),
	)

	ctx, span := s.tracer.Start(ctx, "Ledger.Transfer",
		trace.WithAttributes(
			attribute.String("ledger.from_account_id", fromID),
			attribute.String("ledger.to_account_id", toID),
			attribute.String("ledger.amount", amount.String()),
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
		s.metrics.RecordOp(opTransfer, outcome)
		s.metrics.ObserveOp(opTransfer, time.Since(start).Seconds())
	}()

	if !amount.IsPositive() {
		return nil, account.ErrInvalidAmount
	}
	if fromID == toID {
		return nil, domain.ErrSameAccount
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < transferAttempts; attempt++ {
		tx, attemptErr := s.attemptTransfer(ctx, fromID, toID, amount)
		if attemptErr == nil {
			logger.Info("transfer_completed",
				zap.String("transaction_id", tx.ID),
				zap.String("amount", amount.String()),
				zap.String("direction", string(tx.Direction)),
			)
			s.publish(ctx, domain.NewTransferCompletedEvent(tx))
			return tx, nil
		}
		if !errors.Is(attemptErr, account.ErrConflict) {
			logger.Warn("transfer_failed", zap.Error(attemptErr))
			return nil, attemptErr
		}
		lastErr = attemptErr
		span.AddEvent("transfer.retry", trace.WithAttributes(attribute.Int("attempt", attempt+1)))
	}

	logger.Warn("transfer_conflict_exhausted", zap.Error(lastErr))
	return nil, lastErr
}

// attemptTransfer is one optimistic read-compute-write round. Any
// account.ErrConflict it returns means the whole round must be retried
// from fresh reads; all other errors are final.
func (s *Service) attemptTransfer(ctx context.Context, fromID, toID string, amount decimal.Decimal) (*domain.Transaction, error) {
	from, err := s.accounts.Get(ctx, fromID)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	to, err := s.accounts.Get(ctx, toID)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}

	tx, err := domain.NewTransaction(s.ids.NewID(), from, to, amount)
	if err != nil {
		return nil, err
	}

	fromVersion, toVersion := from.Version, to.Version
	if err := from.Withdraw(amount); err != nil {
		return nil, err
	}
	if err := to.Deposit(amount); err != nil {
		return nil, err
	}

	if err := s.accounts.Update(ctx, from, fromVersion); err != nil {
		return nil, wrapRepositoryError(err)
	}

	if err := s.accounts.Update(ctx, to, toVersion); err != nil {
		// The debit is already durable; put the money back before
		// reporting the failure.
		if restoreErr := s.adjustBalance(ctx, fromID, amount); restoreErr != nil {
			return nil, &domain.PartialTransferError{
				FromAccountID: fromID,
				ToAccountID:   toID,
				Amount:        amount,
				Err:           fmt.Errorf("credit failed (%w) and debit restore failed (%w)", err, restoreErr),
			}
		}
		return nil, wrapRepositoryError(err)
	}

	if err := s.txlog.Append(ctx, tx); err != nil {
		// Invariant: a transaction record exists iff both balance
		// changes were applied. Unwind both sides.
		creditErr := s.adjustBalance(ctx, toID, amount.Neg())
		debitErr := s.adjustBalance(ctx, fromID, amount)
		if creditErr != nil || debitErr != nil {
			return nil, &domain.PartialTransferError{
				FromAccountID: fromID,
				ToAccountID:   toID,
				Amount:        amount,
				Err:           fmt.Errorf("log append failed (%w), rollback incomplete (credit: %v, debit: %v)", err, creditErr, debitErr),
			}
		}
		return nil, fmt.Errorf("%w: append transaction: %w", ErrRepository, err)
	}

	return tx, nil
}

// adjustBalance applies a signed delta with its own CAS loop. It is
// only used for compensation, where the target account may be under
// contention from the very writers that caused the conflict.
func (s *Service) adjustBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	var lastErr error
	for attempt := 0; attempt < compensateAttempts; attempt++ {
		acct, err := s.accounts.Get(ctx, accountID)
		if err != nil {
			return err
		}
		version := acct.Version
		if delta.IsPositive() {
			if err := acct.Deposit(delta); err != nil {
				return err
			}
		} else {
			if err := acct.Withdraw(delta.Neg()); err != nil {
				return err
			}
		}
		err = s.accounts.Update(ctx, acct, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, account.ErrConflict) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// OpenAccount provisions a store or company account with a non-negative
// opening balance.
func (s *Service) OpenAccount(ctx context.Context, kind account.Kind, ownerID string, opening decimal.Decimal) (*account.Account, error) {
	acct, err := account.New(s.ids.NewID(), kind, ownerID, opening)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		return nil, wrapRepositoryError(err)
	}
	logging.FromContext(ctx).Info("account_opened",
		zap.String("component", "ledger_service"),
		zap.String("account_id", acct.ID),
		zap.String("kind", string(kind)),
	)
	return acct, nil
}

func (s *Service) GetAccount(ctx context.Context, id string) (*account.Account, error) {
	acct, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, wrapRepositoryError(err)
	}
	return acct, nil
}

// History lists every transaction touching the given account, oldest
// first for memoryless callers to replay.
func (s *Service) History(ctx context.Context, accountID string) ([]*domain.Transaction, error) {
	if _, err := s.accounts.Get(ctx, accountID); err != nil {
		return nil, wrapRepositoryError(err)
	}
	txs, err := s.txlog.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %w", ErrRepository, err)
	}
	return txs, nil
}

func (s *Service) publish(ctx context.Context, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed",
			zap.String("component", "ledger_service"),
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
	case errors.Is(err, account.ErrNotFound),
		errors.Is(err, account.ErrConflict),
		errors.Is(err, account.ErrInsufficientFunds):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
