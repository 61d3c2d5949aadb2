package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"moneymap/internal/core"
	applog "moneymap/internal/log"
)

type transactionDTO struct {
	ID            int64      `json:"id"`
	AmountCents   core.Money `json:"amountCents"`
	Type          string     `json:"type"`
	Date          string     `json:"date"`
	AccountID     int64      `json:"accountId"`
	CategoryID    *int64     `json:"categoryId,omitempty"`
	SubCategoryID *int64     `json:"subCategoryId,omitempty"`
	LabelIDs      []int64    `json:"labelIds"`
	Payee         string     `json:"payee,omitempty"`
	Note          string     `json:"note,omitempty"`
}

type transactionWithBalanceDTO struct {
	transactionDTO
	ClosingBalanceCents core.Money `json:"closingBalanceCents"`
}

type sectionDTO struct {
	Date                string                      `json:"date"`
	SectionAmountCents  core.Money                  `json:"sectionAmountCents"`
	ClosingBalanceCents core.Money                  `json:"closingBalanceCents"`
	Transactions        []transactionWithBalanceDTO `json:"transactions"`
}

type sectionsResponse struct {
	Sections []sectionDTO `json:"sections"`
}

type activityResponse struct {
	Transactions     []transactionDTO `json:"transactions"`
	IncomeTotalCents core.Money       `json:"incomeTotalCents"`
	SpentTotalCents  core.Money       `json:"spentTotalCents"`
}

type createResponse struct {
	ID int64 `json:"id"`
}

type topResponse struct {
	Income []transactionDTO `json:"income"`
	Spent  []transactionDTO `json:"spent"`
}

func toTransactionDTO(t core.Transaction) transactionDTO {
	labels := t.LabelIDs
	if labels == nil {
		labels = []int64{}
	}
	return transactionDTO{
		ID:            t.ID,
		AmountCents:   t.Amount,
		Type:          string(t.Type),
		Date:          t.Date.UTC().Format(time.RFC3339),
		AccountID:     t.AccountID,
		CategoryID:    t.CategoryID,
		SubCategoryID: t.SubCategoryID,
		LabelIDs:      labels,
		Payee:         t.Payee,
		Note:          t.Note,
	}
}

func toTransactionDTOs(txs []core.Transaction) []transactionDTO {
	out := make([]transactionDTO, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionDTO(t))
	}
	return out
}

func toSectionDTOs(sections []core.Section) []sectionDTO {
	out := make([]sectionDTO, 0, len(sections))
	for _, s := range sections {
		rows := make([]transactionWithBalanceDTO, 0, len(s.Transactions))
		for _, row := range s.Transactions {
			rows = append(rows, transactionWithBalanceDTO{
				transactionDTO:      toTransactionDTO(row.Transaction),
				ClosingBalanceCents: row.ClosingBalance,
			})
		}
		out = append(out, sectionDTO{
			Date:                s.Date,
			SectionAmountCents:  s.SectionAmount,
			ClosingBalanceCents: s.ClosingBalance,
			Transactions:        rows,
		})
	}
	return out
}

// handleListTransactions returns every transaction for the selected
// accounts with income and spent totals.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	sel, err := ParseAccountSelector(r.URL.Query())
	if err != nil {
		WriteBadRequest(w, err)
		return
	}

	activity, err := s.ledger.FetchTransactions(r.Context(), sel)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "List transactions failed", "error", err)
		WriteInternalError(w)
		return
	}

	WriteJSON(w, http.StatusOK, activityResponse{
		Transactions:     toTransactionDTOs(activity.Transactions),
		IncomeTotalCents: activity.IncomeTotal,
		SpentTotalCents:  activity.SpentTotal,
	})
}

// handleFilteredTransactions returns the filtered history as per-date
// sections with running balances.
func (s *Server) handleFilteredTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	accountIDs, err := ParseIDList(query, "accounts")
	if err != nil {
		WriteBadRequest(w, err)
		return
	}
	labelIDs, err := ParseIDList(query, "labels")
	if err != nil {
		WriteBadRequest(w, err)
		return
	}
	pairs, err := ParseCategoryPairs(query)
	if err != nil {
		WriteBadRequest(w, err)
		return
	}
	filter, err := ParseDateFilter(query)
	if err != nil {
		WriteBadRequest(w, err)
		return
	}

	sections, err := s.ledger.FetchFilteredTransactions(r.Context(), accountIDs, labelIDs, pairs, filter)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Filtered transactions failed", "error", err)
		WriteInternalError(w)
		return
	}

	WriteJSON(w, http.StatusOK, sectionsResponse{Sections: toSectionDTOs(sections)})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := DecodeTransaction(r)
	if err != nil {
		WriteBadRequest(w, err)
		return
	}

	id, err := s.ledger.CreateTransaction(r.Context(), tx)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrAccountNotFound):
			WriteError(w, http.StatusNotFound, err.Error())
		case isValidationError(err):
			WriteError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Create transaction failed", "error", err)
			WriteInternalError(w)
		}
		return
	}

	WriteJSON(w, http.StatusCreated, createResponse{ID: id})
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrTxNotFound) || errors.Is(err, core.ErrAccountNotFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Delete transaction failed", "error", err, "transaction_id", id)
		WriteInternalError(w)
		return
	}

	WriteJSON(w, http.StatusNoContent, nil)
}

// handleStatisticsSeries returns aligned income and spent chart series.
func (s *Server) handleStatisticsSeries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	sel, err := ParseAccountSelector(query)
	if err != nil {
		WriteBadRequest(w, err)
		return
	}
	filter, err := ParseDateFilter(query)
	if err != nil {
		WriteBadRequest(w, err)
		return
	}

	pair, err := s.stats.FetchTransactionsForStatistics(r.Context(), sel, filter)
	if err != nil {
		if errors.Is(err, core.ErrInvalidDateRange) {
			WriteBadRequest(w, err)
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Statistics series failed", "error", err)
		WriteInternalError(w)
		return
	}

	WriteJSON(w, http.StatusOK, pair)
}

// handleTopTransactions returns the largest income and spent entries of
// the window.
func (s *Server) handleTopTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	sel, err := ParseAccountSelector(query)
	if err != nil {
		WriteBadRequest(w, err)
		return
	}
	filter, err := ParseDateFilter(query)
	if err != nil {
		WriteBadRequest(w, err)
		return
	}

	top, err := s.stats.FetchTopTransactionsForStatistics(r.Context(), sel, filter)
	if err != nil {
		if errors.Is(err, core.ErrInvalidDateRange) {
			WriteBadRequest(w, err)
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Top transactions failed", "error", err)
		WriteInternalError(w)
		return
	}

	WriteJSON(w, http.StatusOK, topResponse{
		Income: toTransactionDTOs(top.Income),
		Spent:  toTransactionDTOs(top.Spent),
	})
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrSignMismatch) ||
		errors.Is(err, core.ErrInvalidDate) ||
		errors.Is(err, core.ErrInvalidAccount) ||
		errors.Is(err, core.ErrInvalidType) ||
		errors.Is(err, core.ErrOrphanSubCat)
}
