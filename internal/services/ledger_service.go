// Package services orchestrates the ledger engine: it resolves date
// filters, runs the store queries and the pure core logic in the right
// order, and keeps the side channels (event bus, statistics cache) in
// step with writes.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"moneymap/internal/core"
	"moneymap/internal/storage"
)

// LedgerStore is the slice of the repository the ledger service needs.
type LedgerStore interface {
	SumAmountBefore(ctx context.Context, f storage.TransactionFilter, day time.Time) (core.Money, error)
	SelectDayWindow(ctx context.Context, f storage.TransactionFilter, start, end time.Time) ([]core.Transaction, error)
	SelectByAccounts(ctx context.Context, sel core.AccountSelector) ([]core.Transaction, error)
	InsertTransaction(ctx context.Context, t core.Transaction) (int64, error)
	DeleteTransaction(ctx context.Context, id int64) (core.Transaction, error)
}

// EventPublisher pushes transaction events onto the bus. Optional; a nil
// publisher turns eventing off.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, transactionID, accountID, amountCents int64, action string) error
}

// CacheInvalidator drops derived read results that a write may have made
// stale. Optional.
type CacheInvalidator interface {
	Invalidate()
}

// AccountActivity is the unfiltered transaction listing for a set of
// accounts with its per-type totals. Totals are signed sums: income comes
// out positive, spent negative.
type AccountActivity struct {
	Transactions []core.Transaction `json:"transactions"`
	IncomeTotal  core.Money         `json:"incomeTotal"`
	SpentTotal   core.Money         `json:"spentTotal"`
}

type LedgerService struct {
	store       LedgerStore
	publisher   EventPublisher
	invalidator CacheInvalidator
	now         func() time.Time
}

func NewLedgerService(store LedgerStore, publisher EventPublisher, invalidator CacheInvalidator) *LedgerService {
	return &LedgerService{
		store:       store,
		publisher:   publisher,
		invalidator: invalidator,
		now:         time.Now,
	}
}

// FetchFilteredTransactions reconstructs the filtered history as per-date
// sections with running closing balances. The balance carried in from
// before the window and the window rows are selected with the same
// compiled filter, which is what keeps the running balance truthful.
//
// An empty account list and an inverted custom range both resolve to an
// empty result, not an error.
func (s *LedgerService) FetchFilteredTransactions(ctx context.Context, accountIDs []int64, labelIDs []int64, categoryPairs []core.CategoryPair, filter core.DateFilter) ([]core.Section, error) {
	if len(accountIDs) == 0 {
		slog.DebugContext(ctx, "Filtered history requested with no accounts")
		return nil, nil
	}

	r, err := core.ResolveDateRange(s.now(), filter)
	if errors.Is(err, core.ErrInvalidDateRange) {
		slog.WarnContext(ctx, "Date filter start after end", "filter", fmt.Sprintf("%+v", filter))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve date range: %w", err)
	}

	f := storage.TransactionFilter{
		AccountIDs:    accountIDs,
		LabelIDs:      labelIDs,
		CategoryPairs: categoryPairs,
	}

	initial, err := s.store.SumAmountBefore(ctx, f, r.Start)
	if err != nil {
		return nil, fmt.Errorf("initial balance: %w", err)
	}

	rows, err := s.store.SelectDayWindow(ctx, f, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("window transactions: %w", err)
	}

	sections, err := core.BuildSections(ctx, initial, rows)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "Filtered history built",
		"accounts", len(accountIDs),
		"rows", len(rows),
		"sections", len(sections),
		"initial_balance_cents", initial.Cents)
	return sections, nil
}

// FetchTransactions lists every transaction for the selected accounts with
// income and spent totals, no date constraint.
func (s *LedgerService) FetchTransactions(ctx context.Context, sel core.AccountSelector) (AccountActivity, error) {
	if sel.IsEmpty() {
		return AccountActivity{}, nil
	}
	rows, err := s.store.SelectByAccounts(ctx, sel)
	if err != nil {
		return AccountActivity{}, fmt.Errorf("select account transactions: %w", err)
	}
	income, spent := core.SumByType(rows)
	return AccountActivity{Transactions: rows, IncomeTotal: income, SpentTotal: spent}, nil
}

// CreateTransaction validates and appends a ledger entry. The store keeps
// the account's cached balance in step inside one SQL transaction; the
// event publish and cache invalidation ride behind the committed write and
// never fail it.
func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	id, err := s.store.InsertTransaction(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}

	s.afterWrite(ctx, id, t.AccountID, t.Amount.Cents, "created")
	return id, nil
}

// DeleteTransaction removes an entry and reverses its balance effect.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	deleted, err := s.store.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.afterWrite(ctx, id, deleted.AccountID, deleted.Amount.Cents, "deleted")
	return nil
}

func (s *LedgerService) afterWrite(ctx context.Context, id, accountID, amountCents int64, action string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, id, accountID, amountCents, action); err != nil {
		// The ledger write already committed; eventing is best effort.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", id,
			"account_id", accountID,
			"action", action,
			"error", err)
	}
}
