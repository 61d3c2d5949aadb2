// Package worker keeps cached account balances consistent with the
// transaction ledger. Every account carries an invariant: cached balance
// equals the opening seed plus the sum of its transactions.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"moneymap/internal/amqp"
	"moneymap/internal/core"
)

// ReconcileStore is the slice of the repository the worker needs.
type ReconcileStore interface {
	GetAccount(ctx context.Context, id int64) (core.Account, error)
	ListAccounts(ctx context.Context) ([]core.Account, error)
	SumAmountForAccount(ctx context.Context, accountID int64) (core.Money, error)
	SetAccountBalance(ctx context.Context, accountID int64, balance core.Money) error
}

// ReconcileWorker recomputes an account's balance from the ledger and
// repairs the cached value when they disagree.
type ReconcileWorker struct {
	store ReconcileStore
}

func NewReconcileWorker(store ReconcileStore) *ReconcileWorker {
	return &ReconcileWorker{store: store}
}

// HandleTransactionEvent reconciles the account named by the event. The
// event is only a trigger; the expected balance always comes from the
// ledger itself, so replayed or reordered events converge to the same
// result.
func (w *ReconcileWorker) HandleTransactionEvent(ctx context.Context, event *amqp.TransactionEvent) error {
	slog.InfoContext(ctx, "Reconciling account from event",
		"transaction_id", event.TransactionID,
		"account_id", event.AccountID,
		"action", event.Action)

	repaired, err := w.reconcileAccount(ctx, event.AccountID)
	if err != nil {
		return fmt.Errorf("reconcile account %d: %w", event.AccountID, err)
	}
	if repaired {
		slog.WarnContext(ctx, "Cached balance disagreed with ledger",
			"account_id", event.AccountID,
			"transaction_id", event.TransactionID)
	}
	return nil
}

// StartupReconcile walks every account once. Run at worker start to
// recover from events lost while the worker was down.
func (w *ReconcileWorker) StartupReconcile(ctx context.Context) error {
	accounts, err := w.store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	repairedCount := 0
	for _, account := range accounts {
		repaired, err := w.reconcileAccount(ctx, account.ID)
		if err != nil {
			return fmt.Errorf("reconcile account %d: %w", account.ID, err)
		}
		if repaired {
			repairedCount++
		}
	}

	slog.InfoContext(ctx, "Startup reconciliation finished",
		"accounts", len(accounts),
		"repaired", repairedCount)
	return nil
}

func (w *ReconcileWorker) reconcileAccount(ctx context.Context, accountID int64) (bool, error) {
	account, err := w.store.GetAccount(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("get account: %w", err)
	}

	sum, err := w.store.SumAmountForAccount(ctx, accountID)
	if err != nil {
		return false, fmt.Errorf("sum transactions: %w", err)
	}

	expected := account.Seed.Add(sum)
	if account.Amount == expected {
		return false, nil
	}

	if err := w.store.SetAccountBalance(ctx, accountID, expected); err != nil {
		return false, fmt.Errorf("set balance: %w", err)
	}

	slog.InfoContext(ctx, "Repaired account balance",
		"account_id", accountID,
		"cached_cents", account.Amount.Cents,
		"expected_cents", expected.Cents)
	return true, nil
}
