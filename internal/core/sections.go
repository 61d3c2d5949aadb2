package core

import (
	"context"
	"sort"
)

// historyChunkSize bounds how many transactions are annotated between
// context checks when walking a large history.
const historyChunkSize = 50

type (
	// TransactionWithBalance is a transaction annotated with the account
	// balance after it was applied, in chronological order.
	TransactionWithBalance struct {
		Transaction
		ClosingBalance Money
	}

	// Section groups one calendar date of transactions. SectionAmount is
	// the net of that date alone; ClosingBalance is the running balance
	// after the last transaction of the date.
	Section struct {
		Date           string // 2006-01-02
		SectionAmount  Money
		ClosingBalance Money
		Transactions   []TransactionWithBalance
	}
)

// BuildSections walks transactions in ascending instant order, accumulating
// the running balance on top of the balance carried in from before the
// window, and groups the annotated rows into per-date sections ordered most
// recent date first. Within a section transactions are ordered most recent
// first; the ascending walk is what keeps the balances correct, the final
// ordering is purely for display.
//
// The walk yields to ctx between fixed-size chunks; a cancelled context
// aborts with no partial result.
func BuildSections(ctx context.Context, initial Money, ascending []Transaction) ([]Section, error) {
	running := initial
	byDate := make(map[string][]TransactionWithBalance)
	order := make([]string, 0)

	for i, tx := range ascending {
		if i > 0 && i%historyChunkSize == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		running = running.Add(tx.Amount)
		key := tx.Date.Format("2006-01-02")
		if _, ok := byDate[key]; !ok {
			order = append(order, key)
		}
		byDate[key] = append(byDate[key], TransactionWithBalance{
			Transaction:    tx,
			ClosingBalance: running,
		})
	}

	// Most recent date first.
	sort.Sort(sort.Reverse(sort.StringSlice(order)))

	sections := make([]Section, 0, len(order))
	for _, date := range order {
		rows := byDate[date]
		// Last chronological transaction of the date closes the section.
		closing := rows[len(rows)-1].ClosingBalance

		var income, expense Money
		for _, row := range rows {
			if row.Type == TypeIncome {
				income = income.Add(row.Amount.Abs())
			} else {
				expense = expense.Add(row.Amount.Abs())
			}
		}

		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Date.After(rows[j].Date)
		})

		sections = append(sections, Section{
			Date:           date,
			SectionAmount:  income.Sub(expense),
			ClosingBalance: closing,
			Transactions:   rows,
		})
	}
	return sections, nil
}

// SumByType totals the signed amounts of the given transactions per type.
// Income totals come out positive, spent totals negative.
func SumByType(txs []Transaction) (income, spent Money) {
	for _, tx := range txs {
		switch tx.Type {
		case TypeIncome:
			income = income.Add(tx.Amount)
		case TypeSpent:
			spent = spent.Add(tx.Amount)
		}
	}
	return income, spent
}
