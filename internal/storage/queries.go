package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"moneymap/internal/core"
)

const selectTransactionColumns = `
	SELECT id, amount_cents, COALESCE(note, ''), COALESCE(payee, ''), date, type,
	       account_id, category_id, sub_category_id, label_ids
	FROM transactions`

// TransactionFilter is the account/label/category part of the filter
// predicate. The same compiled clause serves every query of one filtered
// operation, so the initial-balance aggregate and the window fetch can
// never disagree about which rows match.
type TransactionFilter struct {
	AccountIDs    []int64
	LabelIDs      []int64
	CategoryPairs []core.CategoryPair
}

// clause compiles the filter into SQL conditions. ok is false when the
// account list is empty, which by convention matches nothing.
func (f TransactionFilter) clause() (cond string, args []any, ok bool) {
	placeholders, accountArgs := int64SliceClause(f.AccountIDs)
	if placeholders == "" {
		return "", nil, false
	}
	conds := []string{"account_id IN (" + placeholders + ")"}
	args = append(args, accountArgs...)

	// Label intersection by exact token: expand the stored JSON array and
	// test element membership, never substring matching on the raw text.
	if labelPlaceholders, labelArgs := int64SliceClause(f.LabelIDs); labelPlaceholders != "" {
		conds = append(conds,
			"EXISTS (SELECT 1 FROM json_each(transactions.label_ids) WHERE json_each.value IN ("+labelPlaceholders+"))")
		args = append(args, labelArgs...)
	}

	if len(f.CategoryPairs) > 0 {
		pairConds := make([]string, 0, len(f.CategoryPairs))
		for _, pair := range f.CategoryPairs {
			pairConds = append(pairConds, "(category_id = ? AND sub_category_id = ?)")
			args = append(args, pair.CategoryID, pair.SubCategoryID)
		}
		conds = append(conds, "("+strings.Join(pairConds, " OR ")+")")
	}

	return strings.Join(conds, " AND "), args, true
}

// SumAmountBefore returns the signed sum of all matching transactions whose
// calendar date is strictly before the given day. One aggregate query, not
// a row walk.
func (r *SQLiteRepository) SumAmountBefore(ctx context.Context, f TransactionFilter, day time.Time) (core.Money, error) {
	cond, args, ok := f.clause()
	if !ok {
		return core.Money{}, nil
	}
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE ` + cond +
		` AND date(date) < date(?)`
	args = append(args, day.UTC().Format(dateLayout))

	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return core.Money{}, fmt.Errorf("sum amounts before date: %w", err)
	}
	return core.Money{Cents: total}, nil
}

// SelectDayWindow returns matching transactions whose calendar date falls
// inside [start, end], ordered ascending by instant. Window bounds compare
// at day granularity; ordering within the window is by full instant.
func (r *SQLiteRepository) SelectDayWindow(ctx context.Context, f TransactionFilter, start, end time.Time) ([]core.Transaction, error) {
	cond, args, ok := f.clause()
	if !ok {
		return nil, nil
	}
	query := selectTransactionColumns + ` WHERE ` + cond +
		` AND date(date) >= date(?) AND date(date) <= date(?)
		ORDER BY datetime(date) ASC, id ASC`
	args = append(args, start.UTC().Format(dateLayout), end.UTC().Format(dateLayout))
	return r.selectTransactions(ctx, query, args...)
}

// SelectInstantWindow returns transactions for the selected accounts whose
// instant falls inside [start, end], ordered ascending. Used by the
// statistics paths, which filter by account only.
func (r *SQLiteRepository) SelectInstantWindow(ctx context.Context, sel core.AccountSelector, start, end time.Time) ([]core.Transaction, error) {
	cond, args, ok := accountScopeClause(sel)
	if !ok {
		return nil, nil
	}
	query := selectTransactionColumns + ` WHERE ` + cond +
		`datetime(date) >= datetime(?) AND datetime(date) <= datetime(?)
		ORDER BY datetime(date) ASC, id ASC`
	args = append(args, start.UTC().Format(dateLayout), end.UTC().Format(dateLayout))
	return r.selectTransactions(ctx, query, args...)
}

// TopTransactions ranks the window's transactions of one type by magnitude,
// largest first.
func (r *SQLiteRepository) TopTransactions(ctx context.Context, sel core.AccountSelector, start, end time.Time, typ core.TransactionType, limit int) ([]core.Transaction, error) {
	cond, args, ok := accountScopeClause(sel)
	if !ok {
		return nil, nil
	}
	order := "amount_cents DESC"
	if typ == core.TypeSpent {
		order = "ABS(amount_cents) DESC"
	}
	query := selectTransactionColumns + ` WHERE type = ? AND ` + cond +
		`datetime(date) >= datetime(?) AND datetime(date) <= datetime(?)
		ORDER BY ` + order + ` LIMIT ?`
	allArgs := append([]any{string(typ)}, args...)
	allArgs = append(allArgs, start.UTC().Format(dateLayout), end.UTC().Format(dateLayout), limit)
	return r.selectTransactions(ctx, query, allArgs...)
}

// accountScopeClause translates an account selector into a leading WHERE
// fragment (with trailing AND when a predicate applies). ok is false when the
// selection is empty, which matches nothing; an all-accounts selection adds
// no predicate at all.
func accountScopeClause(sel core.AccountSelector) (cond string, args []any, ok bool) {
	if sel.IsAll() {
		return "", nil, true
	}
	placeholders, args := int64SliceClause(sel.IDs())
	if placeholders == "" {
		return "", nil, false
	}
	return "account_id IN (" + placeholders + ") AND ", args, true
}

// SelectByAccounts returns every transaction for the selected accounts,
// ordered ascending by instant, with no date constraint.
func (r *SQLiteRepository) SelectByAccounts(ctx context.Context, sel core.AccountSelector) ([]core.Transaction, error) {
	if sel.IsAll() {
		return r.selectTransactions(ctx, selectTransactionColumns+` ORDER BY datetime(date) ASC, id ASC`)
	}
	placeholders, args := int64SliceClause(sel.IDs())
	if placeholders == "" {
		return nil, nil
	}
	query := selectTransactionColumns + ` WHERE account_id IN (` + placeholders + `)
		ORDER BY datetime(date) ASC, id ASC`
	return r.selectTransactions(ctx, query, args...)
}

// SumAmountForAccount is the authoritative ledger sum for one account,
// used to verify and repair the cached balance.
func (r *SQLiteRepository) SumAmountForAccount(ctx context.Context, accountID int64) (core.Money, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE account_id = ?`,
		accountID).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum account amounts: %w", err)
	}
	return core.Money{Cents: total}, nil
}

// SetAccountBalance overwrites the cached balance. Reconciliation only;
// regular writes adjust the balance inside the insert/delete transaction.
func (r *SQLiteRepository) SetAccountBalance(ctx context.Context, accountID int64, balance core.Money) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET amount_cents = ? WHERE id = ?`, balance.Cents, accountID); err != nil {
		return fmt.Errorf("set account balance: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) selectTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t            core.Transaction
		dateRaw      string
		typeRaw      string
		catID, subID sql.NullInt64
		labelsRaw    string
	)
	if err := row.Scan(&t.ID, &t.Amount.Cents, &t.Note, &t.Payee, &dateRaw, &typeRaw,
		&t.AccountID, &catID, &subID, &labelsRaw); err != nil {
		return core.Transaction{}, err
	}

	date, err := time.Parse(dateLayout, dateRaw)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse transaction date %q: %w", dateRaw, err)
	}
	t.Date = date
	t.Type = core.TransactionType(typeRaw)
	if catID.Valid {
		t.CategoryID = &catID.Int64
	}
	if subID.Valid {
		t.SubCategoryID = &subID.Int64
	}
	labels, err := core.DecodeLabelIDs(labelsRaw)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("decode label ids %q: %w", labelsRaw, err)
	}
	t.LabelIDs = labels
	return t, nil
}

// int64SliceClause builds a deduplicated, sorted placeholder list for an
// IN clause. Returns empty when no usable ids remain.
func int64SliceClause(ids []int64) (string, []any) {
	if len(ids) == 0 {
		return "", nil
	}
	dedup := map[int64]bool{}
	order := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || dedup[id] {
			continue
		}
		dedup[id] = true
		order = append(order, id)
	}
	if len(order) == 0 {
		return "", nil
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	parts := make([]string, len(order))
	args := make([]any, len(order))
	for i, id := range order {
		parts[i] = "?"
		args[i] = id
	}
	return strings.Join(parts, ","), args
}
