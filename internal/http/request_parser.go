package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"moneymap/internal/core"
)

// allAccountsParam selects every account in selector-valued parameters.
const allAccountsParam = "all"

// ParseIDList parses a comma separated id list, e.g. "1,4,12". An empty
// parameter yields nil.
func ParseIDList(query url.Values, key string) ([]int64, error) {
	raw := strings.TrimSpace(query.Get(key))
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q", key, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseAccountSelector parses the accounts parameter: "all" selects every
// account, otherwise a comma separated id list.
func ParseAccountSelector(query url.Values) (core.AccountSelector, error) {
	raw := strings.TrimSpace(query.Get("accounts"))
	if strings.EqualFold(raw, allAccountsParam) {
		return core.AllAccounts(), nil
	}
	ids, err := ParseIDList(query, "accounts")
	if err != nil {
		return core.AccountSelector{}, err
	}
	return core.SpecificAccounts(ids...), nil
}

// ParseCategoryPairs parses category/subcategory selections of the form
// "3:7,3:9". A pair without a colon selects the bare category.
func ParseCategoryPairs(query url.Values) ([]core.CategoryPair, error) {
	raw := strings.TrimSpace(query.Get("categories"))
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	pairs := make([]core.CategoryPair, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		catRaw, subRaw, hasSub := strings.Cut(part, ":")
		catID, err := strconv.ParseInt(catRaw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid category value %q", part)
		}
		pair := core.CategoryPair{CategoryID: catID}
		if hasSub && subRaw != "" {
			subID, err := strconv.ParseInt(subRaw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid subcategory value %q", part)
			}
			pair.SubCategoryID = subID
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// ParseDateFilter reads either a preset name or a custom start/end pair.
// With neither present it falls back to the current month.
func ParseDateFilter(query url.Values) (core.DateFilter, error) {
	preset := strings.TrimSpace(query.Get("preset"))
	startRaw := strings.TrimSpace(query.Get("start"))
	endRaw := strings.TrimSpace(query.Get("end"))

	if preset != "" {
		if startRaw != "" || endRaw != "" {
			return core.DateFilter{}, fmt.Errorf("preset and start/end are mutually exclusive")
		}
		f := core.PresetFilter(core.DatePreset(preset))
		if err := f.Validate(); err != nil {
			return core.DateFilter{}, fmt.Errorf("unknown preset %q", preset)
		}
		return f, nil
	}

	if startRaw == "" && endRaw == "" {
		return core.PresetFilter(core.PresetThisMonth), nil
	}
	if startRaw == "" || endRaw == "" {
		return core.DateFilter{}, fmt.Errorf("custom range needs both start and end")
	}

	start, err := parseTimeParam(startRaw)
	if err != nil {
		return core.DateFilter{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err := parseTimeParam(endRaw)
	if err != nil {
		return core.DateFilter{}, fmt.Errorf("invalid end: %w", err)
	}
	return core.CustomRange(start, end), nil
}

func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// transactionRequest is the JSON body for creating a transaction.
type transactionRequest struct {
	AmountCents   int64   `json:"amountCents"`
	Type          string  `json:"type"`
	Date          string  `json:"date"`
	AccountID     int64   `json:"accountId"`
	CategoryID    *int64  `json:"categoryId"`
	SubCategoryID *int64  `json:"subCategoryId"`
	LabelIDs      []int64 `json:"labelIds"`
	Payee         string  `json:"payee"`
	Note          string  `json:"note"`
}

// DecodeTransaction reads a transaction from the request body. The date
// accepts RFC3339 or a bare day, which lands at midnight UTC.
func DecodeTransaction(r *http.Request) (core.Transaction, error) {
	var req transactionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return core.Transaction{}, fmt.Errorf("decode body: %w", err)
	}

	date, err := parseTimeParam(strings.TrimSpace(req.Date))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("invalid date %q", req.Date)
	}

	return core.Transaction{
		Amount:        core.Money{Cents: req.AmountCents},
		Type:          core.TransactionType(req.Type),
		Date:          date,
		AccountID:     req.AccountID,
		CategoryID:    req.CategoryID,
		SubCategoryID: req.SubCategoryID,
		LabelIDs:      req.LabelIDs,
		Payee:         strings.TrimSpace(req.Payee),
		Note:          strings.TrimSpace(req.Note),
	}, nil
}
