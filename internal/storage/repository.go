// Package storage is the ledger store: a SQLite-backed repository holding
// accounts, taxonomy and the append-only transaction log. Account balances
// are a materialized view of the log, adjusted in the same SQL transaction
// as every insert or delete so the cached value cannot drift.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"moneymap/internal/core"

	_ "modernc.org/sqlite"
)

// dateLayout is the on-disk encoding of transaction instants. SQLite's
// date() and datetime() both understand it.
const dateLayout = time.RFC3339

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateAccountType(ctx context.Context, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO account_types (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("create account type: %w", err)
	}
	return res.LastInsertId()
}

// CreateAccount inserts an account whose cached balance starts at its seed.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (name, account_number, amount_cents, seed_cents, exclude, archive, account_type_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.AccountNumber, a.Seed.Cents, a.Seed.Cents,
		boolToInt(a.Exclude), boolToInt(a.Archive), a.AccountTypeID)
	if err != nil {
		return 0, fmt.Errorf("create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("account id: %w", err)
	}

	slog.InfoContext(ctx, "Account created",
		"id", id,
		"name", a.Name,
		"seed_cents", a.Seed.Cents)
	return id, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, account_number, amount_cents, seed_cents, exclude, archive, account_type_id
		FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, account_number, amount_cents, seed_cents, exclude, archive, account_type_id
		FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateLabel(ctx context.Context, name string, autoAssign bool) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO labels (name, auto_assign) VALUES (?, ?)`, name, boolToInt(autoAssign))
	if err != nil {
		return 0, fmt.Errorf("create label: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, name, nature string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, nature) VALUES (?, ?)`, name, nature)
	if err != nil {
		return 0, fmt.Errorf("create category: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) CreateSubCategory(ctx context.Context, name, nature string, categoryID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO sub_categories (name, nature, category_id) VALUES (?, ?, ?)`,
		name, nature, categoryID)
	if err != nil {
		return 0, fmt.Errorf("create subcategory: %w", err)
	}
	return res.LastInsertId()
}

// InsertTransaction appends a ledger entry and adjusts the owning account's
// cached balance in the same SQL transaction.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = dbTx.Rollback() }()

	var balance int64
	err = dbTx.QueryRowContext(ctx,
		`SELECT amount_cents FROM accounts WHERE id = ?`, t.AccountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load account balance: %w", err)
	}

	res, err := dbTx.ExecContext(ctx, `
		INSERT INTO transactions (amount_cents, note, payee, date, type, account_id, category_id, sub_category_id, label_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Amount.Cents, nullString(t.Note), nullString(t.Payee),
		t.Date.UTC().Format(dateLayout), string(t.Type), t.AccountID,
		nullInt64(t.CategoryID), nullInt64(t.SubCategoryID),
		core.EncodeLabelIDs(t.LabelIDs))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx,
		`UPDATE accounts SET amount_cents = amount_cents + ? WHERE id = ?`,
		t.Amount.Cents, t.AccountID); err != nil {
		return 0, fmt.Errorf("update account balance: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"id", id,
		"account_id", t.AccountID,
		"amount_cents", t.Amount.Cents,
		"type", string(t.Type),
		"new_balance_cents", balance+t.Amount.Cents)
	return id, nil
}

// DeleteTransaction removes a ledger entry and reverses its effect on the
// owning account's cached balance.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = dbTx.Rollback() }()

	row := dbTx.QueryRowContext(ctx, selectTransactionColumns+` WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrTxNotFound)
	}
	if err != nil {
		return core.Transaction{}, err
	}

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction: %w", err)
	}
	if _, err := dbTx.ExecContext(ctx,
		`UPDATE accounts SET amount_cents = amount_cents - ? WHERE id = ?`,
		t.Amount.Cents, t.AccountID); err != nil {
		return core.Transaction{}, fmt.Errorf("update account balance: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Transaction deleted",
		"id", id,
		"account_id", t.AccountID,
		"amount_cents", t.Amount.Cents)
	return t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransactionColumns+` WHERE id = ?`, id)
	return scanTransaction(row)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a                core.Account
		exclude, archive int
	)
	err := row.Scan(&a.ID, &a.Name, &a.AccountNumber, &a.Amount.Cents, &a.Seed.Cents,
		&exclude, &archive, &a.AccountTypeID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.Exclude = exclude == 1
	a.Archive = archive == 1
	return a, nil
}
