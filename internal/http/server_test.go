package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"moneymap/internal/core"
	"moneymap/internal/services"
)

type fakeLedgerAPI struct {
	sections   []core.Section
	activity   services.AccountActivity
	createID   int64
	createErr  error
	deleteErr  error
	deletedIDs []int64
}

func (f *fakeLedgerAPI) FetchFilteredTransactions(_ context.Context, _, _ []int64, _ []core.CategoryPair, _ core.DateFilter) ([]core.Section, error) {
	return f.sections, nil
}

func (f *fakeLedgerAPI) FetchTransactions(_ context.Context, _ core.AccountSelector) (services.AccountActivity, error) {
	return f.activity, nil
}

func (f *fakeLedgerAPI) CreateTransaction(_ context.Context, t core.Transaction) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	if err := t.Validate(); err != nil {
		return 0, err
	}
	return f.createID, nil
}

func (f *fakeLedgerAPI) DeleteTransaction(_ context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

type fakeStatsAPI struct {
	pair core.SeriesPair
	top  services.TopTransactions
}

func (f *fakeStatsAPI) FetchTransactionsForStatistics(_ context.Context, _ core.AccountSelector, filter core.DateFilter) (core.SeriesPair, error) {
	if err := filter.Validate(); err != nil {
		return core.SeriesPair{}, err
	}
	return f.pair, nil
}

func (f *fakeStatsAPI) FetchTopTransactionsForStatistics(_ context.Context, _ core.AccountSelector, _ core.DateFilter) (services.TopTransactions, error) {
	return f.top, nil
}

func newTestServer(ledger *fakeLedgerAPI, stats *fakeStatsAPI) *httptest.Server {
	s := NewServer(":0", ledger, stats)
	return httptest.NewServer(s.Server.Handler)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(&fakeLedgerAPI{}, &fakeStatsAPI{})
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestFilteredTransactionsEndpoint(t *testing.T) {
	ledger := &fakeLedgerAPI{
		sections: []core.Section{
			{
				Date:           "2024-01-07",
				SectionAmount:  core.Money{Cents: 300},
				ClosingBalance: core.Money{Cents: 1300},
			},
		},
	}
	srv := newTestServer(ledger, &fakeStatsAPI{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/transactions/filtered?accounts=1,2&preset=last7days")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body sectionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Sections) != 1 || body.Sections[0].Date != "2024-01-07" {
		t.Errorf("body = %+v", body)
	}
	if body.Sections[0].ClosingBalanceCents.Cents != 1300 {
		t.Errorf("closing balance = %+v", body.Sections[0].ClosingBalanceCents)
	}
}

func TestFilteredTransactionsRejectsBadQuery(t *testing.T) {
	srv := newTestServer(&fakeLedgerAPI{}, &fakeStatsAPI{})
	defer srv.Close()

	for _, q := range []string{
		"accounts=x",
		"accounts=1&preset=fortnight",
		"accounts=1&categories=a:b",
		"accounts=1&start=2024-01-01",
	} {
		resp, err := http.Get(srv.URL + "/api/transactions/filtered?" + q)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("query %q: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestCreateTransactionEndpoint(t *testing.T) {
	ledger := &fakeLedgerAPI{createID: 42}
	srv := newTestServer(ledger, &fakeStatsAPI{})
	defer srv.Close()

	body := `{"amountCents": 1000, "type": "income", "date": "2024-01-05", "accountId": 1}`
	resp, err := http.Post(srv.URL+"/api/transactions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var created createResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.ID != 42 {
		t.Errorf("id = %d, want 42", created.ID)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(&fakeLedgerAPI{createID: 1}, &fakeStatsAPI{})
	defer srv.Close()

	// Income with a negative amount violates the sign rule.
	body := `{"amountCents": -1000, "type": "income", "date": "2024-01-05", "accountId": 1}`
	resp, err := http.Post(srv.URL+"/api/transactions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestDeleteTransactionEndpoint(t *testing.T) {
	ledger := &fakeLedgerAPI{}
	srv := newTestServer(ledger, &fakeStatsAPI{})
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/transactions/7", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if len(ledger.deletedIDs) != 1 || ledger.deletedIDs[0] != 7 {
		t.Errorf("deleted ids = %v", ledger.deletedIDs)
	}

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/transactions/zero", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDeleteTransactionEndpointMissingID(t *testing.T) {
	ledger := &fakeLedgerAPI{deleteErr: fmt.Errorf("transaction 99: %w", core.ErrTxNotFound)}
	srv := newTestServer(ledger, &fakeStatsAPI{})
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/transactions/99", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStatisticsSeriesEndpoint(t *testing.T) {
	stats := &fakeStatsAPI{
		pair: core.SeriesPair{
			Income: []core.StatPoint{{Value: core.Money{Cents: 1000}, Label: "01 Jan", Type: core.TypeIncome}},
			Spent:  []core.StatPoint{{Value: core.Money{Cents: 300}, Label: "01 Jan", Type: core.TypeSpent}},
		},
	}
	srv := newTestServer(&fakeLedgerAPI{}, stats)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/statistics/series?accounts=all&preset=last7days")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var pair core.SeriesPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		t.Fatal(err)
	}
	if len(pair.Income) != 1 || pair.Income[0].Value.Cents != 1000 {
		t.Errorf("pair = %+v", pair)
	}
}

func TestTopTransactionsEndpoint(t *testing.T) {
	day := time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC)
	stats := &fakeStatsAPI{
		top: services.TopTransactions{
			Income: []core.Transaction{{ID: 1, Amount: core.Money{Cents: 5000}, Type: core.TypeIncome, Date: day, AccountID: 1}},
			Spent:  []core.Transaction{{ID: 2, Amount: core.Money{Cents: -9000}, Type: core.TypeSpent, Date: day, AccountID: 1}},
		},
	}
	srv := newTestServer(&fakeLedgerAPI{}, stats)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/statistics/top?accounts=all&preset=thisMonth")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var top topResponse
	if err := json.NewDecoder(resp.Body).Decode(&top); err != nil {
		t.Fatal(err)
	}
	if len(top.Income) != 1 || top.Income[0].AmountCents.Cents != 5000 {
		t.Errorf("top = %+v", top)
	}
	if len(top.Spent) != 1 || top.Spent[0].AmountCents.Cents != -9000 {
		t.Errorf("top = %+v", top)
	}
}
