package core

import (
	"errors"
	"strconv"
	"time"
)

const (
	TypeIncome TransactionType = "income"
	TypeSpent  TransactionType = "spent"
)

type (
	TransactionType string

	Money struct {
		Cents int64
	}

	// Transaction is an immutable ledger entry. Amount is signed: positive
	// for income, negative for expense, and the sign must agree with Type.
	Transaction struct {
		ID            int64
		Amount        Money
		Type          TransactionType
		Date          time.Time
		AccountID     int64
		CategoryID    *int64
		SubCategoryID *int64
		LabelIDs      []int64
		Payee         string
		Note          string
	}

	Account struct {
		ID            int64
		Name          string
		AccountNumber string
		Amount        Money // cached balance, maintained transactionally on insert/delete
		Seed          Money // opening balance at account creation
		AccountTypeID int64
		Exclude       bool
		Archive       bool
	}

	// CategoryPair is a category/subcategory selection used for filtering.
	CategoryPair struct {
		CategoryID    int64
		SubCategoryID int64
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrSignMismatch     = errors.New("amount sign does not match transaction type")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAccount   = errors.New("invalid account id")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrOrphanSubCat     = errors.New("subcategory set without category")
	ErrAccountNotFound  = errors.New("account not found")
	ErrTxNotFound       = errors.New("transaction not found")
	ErrInvalidDateRange = errors.New("start date after end date")
)

// AccountSelector names a set of accounts without resorting to a magic
// all-accounts id. The zero value selects nothing.
type AccountSelector struct {
	all bool
	ids []int64
}

func AllAccounts() AccountSelector {
	return AccountSelector{all: true}
}

func SpecificAccounts(ids ...int64) AccountSelector {
	return AccountSelector{ids: ids}
}

func (s AccountSelector) IsAll() bool { return s.all }

// IDs returns the selected account ids. Meaningless when IsAll is true.
func (s AccountSelector) IDs() []int64 { return s.ids }

func (s AccountSelector) IsEmpty() bool { return !s.all && len(s.ids) == 0 }

func (t TransactionType) Validate() error {
	switch t {
	case TypeIncome, TypeSpent:
		return nil
	}
	return ErrInvalidType
}

func (t Transaction) Validate() error {
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if t.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if t.Type == TypeIncome && t.Amount.Cents < 0 {
		return ErrSignMismatch
	}
	if t.Type == TypeSpent && t.Amount.Cents > 0 {
		return ErrSignMismatch
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if t.AccountID <= 0 {
		return ErrInvalidAccount
	}
	if t.SubCategoryID != nil && t.CategoryID == nil {
		return ErrOrphanSubCat
	}
	return nil
}

// Abs returns the magnitude of the amount.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

// Money marshals as its bare cent count.
func (m Money) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, m.Cents, 10), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	cents, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return ErrInvalidAmount
	}
	m.Cents = cents
	return nil
}
