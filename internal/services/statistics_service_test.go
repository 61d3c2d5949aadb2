package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymap/internal/cache"
	"moneymap/internal/core"
)

type fakeStatsStore struct {
	mu          sync.Mutex
	window      []core.Transaction
	windowErr   error
	windowCalls int
	lastSel     core.AccountSelector

	topByType map[core.TransactionType][]core.Transaction
	topErr    error
	topLimits []int
}

func (f *fakeStatsStore) SelectInstantWindow(_ context.Context, sel core.AccountSelector, _, _ time.Time) ([]core.Transaction, error) {
	f.windowCalls++
	f.lastSel = sel
	return f.window, f.windowErr
}

func (f *fakeStatsStore) TopTransactions(_ context.Context, _ core.AccountSelector, _, _ time.Time, txType core.TransactionType, limit int) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topLimits = append(f.topLimits, limit)
	if f.topErr != nil {
		return nil, f.topErr
	}
	return f.topByType[txType], nil
}

func newStatsService(store *fakeStatsStore) *StatisticsService {
	svc := NewStatisticsService(store, cache.NewLRUCache[core.SeriesPair](16, time.Minute))
	svc.now = fixedNow
	return svc
}

func TestFetchSeriesAlignedAndZeroFilled(t *testing.T) {
	day := time.Date(2024, time.January, 5, 9, 0, 0, 0, time.UTC)
	store := &fakeStatsStore{
		window: []core.Transaction{
			serviceTx(1, day, 1000),
			serviceTx(2, day, -300),
		},
	}
	svc := newStatsService(store)

	pair, err := svc.FetchTransactionsForStatistics(context.Background(), core.AllAccounts(), core.PresetFilter(core.PresetLast7Days))
	require.NoError(t, err)

	require.Equal(t, len(pair.Income), len(pair.Spent))
	var incomeTotal, spentTotal int64
	for i := range pair.Income {
		assert.Equal(t, pair.Income[i].Label, pair.Spent[i].Label)
		incomeTotal += pair.Income[i].Value.Cents
		spentTotal += pair.Spent[i].Value.Cents
	}
	assert.Equal(t, int64(1000), incomeTotal)
	assert.Equal(t, int64(300), spentTotal)
}

func TestFetchSeriesEmptySelectionSkipsStore(t *testing.T) {
	store := &fakeStatsStore{windowErr: errors.New("must not be called")}
	svc := newStatsService(store)

	pair, err := svc.FetchTransactionsForStatistics(context.Background(), core.SpecificAccounts(), core.PresetFilter(core.PresetLast7Days))
	require.NoError(t, err)
	assert.Zero(t, store.windowCalls)

	require.NotEmpty(t, pair.Income)
	for i := range pair.Income {
		assert.Zero(t, pair.Income[i].Value.Cents)
		assert.Zero(t, pair.Spent[i].Value.Cents)
	}
}

func TestFetchSeriesSpecificAccountsNarrowQuery(t *testing.T) {
	store := &fakeStatsStore{}
	svc := newStatsService(store)

	_, err := svc.FetchTransactionsForStatistics(context.Background(), core.SpecificAccounts(2, 4), core.PresetFilter(core.PresetThisMonth))
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4}, store.lastSel.IDs())
}

func TestFetchSeriesAllAccountsUnrestricted(t *testing.T) {
	day := time.Date(2024, time.January, 5, 9, 0, 0, 0, time.UTC)
	store := &fakeStatsStore{window: []core.Transaction{serviceTx(1, day, 1000)}}
	svc := newStatsService(store)

	pair, err := svc.FetchTransactionsForStatistics(context.Background(), core.AllAccounts(), core.PresetFilter(core.PresetThisMonth))
	require.NoError(t, err)
	assert.True(t, store.lastSel.IsAll())

	var incomeTotal int64
	for _, p := range pair.Income {
		incomeTotal += p.Value.Cents
	}
	assert.Equal(t, int64(1000), incomeTotal)
}

func TestFetchSeriesCached(t *testing.T) {
	store := &fakeStatsStore{}
	svc := newStatsService(store)
	sel := core.AllAccounts()
	filter := core.PresetFilter(core.PresetThisMonth)

	_, err := svc.FetchTransactionsForStatistics(context.Background(), sel, filter)
	require.NoError(t, err)
	_, err = svc.FetchTransactionsForStatistics(context.Background(), sel, filter)
	require.NoError(t, err)
	assert.Equal(t, 1, store.windowCalls)
}

func TestInvalidateRetiresCachedSeries(t *testing.T) {
	store := &fakeStatsStore{}
	svc := newStatsService(store)
	sel := core.AllAccounts()
	filter := core.PresetFilter(core.PresetThisMonth)

	_, err := svc.FetchTransactionsForStatistics(context.Background(), sel, filter)
	require.NoError(t, err)

	svc.Invalidate()

	_, err = svc.FetchTransactionsForStatistics(context.Background(), sel, filter)
	require.NoError(t, err)
	assert.Equal(t, 2, store.windowCalls)
}

func TestFetchSeriesDistinctSelectionsDistinctKeys(t *testing.T) {
	store := &fakeStatsStore{}
	svc := newStatsService(store)
	filter := core.PresetFilter(core.PresetThisMonth)

	_, err := svc.FetchTransactionsForStatistics(context.Background(), core.SpecificAccounts(1), filter)
	require.NoError(t, err)
	_, err = svc.FetchTransactionsForStatistics(context.Background(), core.SpecificAccounts(2), filter)
	require.NoError(t, err)
	assert.Equal(t, 2, store.windowCalls)
}

func TestFetchSeriesInvertedRange(t *testing.T) {
	store := &fakeStatsStore{}
	svc := newStatsService(store)

	filter := core.CustomRange(fixedNow(), fixedNow().Add(-24*time.Hour))
	_, err := svc.FetchTransactionsForStatistics(context.Background(), core.AllAccounts(), filter)
	require.ErrorIs(t, err, core.ErrInvalidDateRange)
}

func TestFetchTopTransactions(t *testing.T) {
	day := time.Date(2024, time.January, 6, 12, 0, 0, 0, time.UTC)
	store := &fakeStatsStore{
		topByType: map[core.TransactionType][]core.Transaction{
			core.TypeIncome: {serviceTx(1, day, 5000), serviceTx(2, day, 1000)},
			core.TypeSpent:  {serviceTx(3, day, -9000)},
		},
	}
	svc := newStatsService(store)

	top, err := svc.FetchTopTransactionsForStatistics(context.Background(), core.AllAccounts(), core.PresetFilter(core.PresetLast7Days))
	require.NoError(t, err)
	require.Len(t, top.Income, 2)
	require.Len(t, top.Spent, 1)
	assert.Equal(t, int64(5000), top.Income[0].Amount.Cents)
	assert.Equal(t, []int{topLimit, topLimit}, store.topLimits)
}

func TestFetchTopTransactionsEmptySelection(t *testing.T) {
	store := &fakeStatsStore{topErr: errors.New("must not be called")}
	svc := newStatsService(store)

	top, err := svc.FetchTopTransactionsForStatistics(context.Background(), core.SpecificAccounts(), core.PresetFilter(core.PresetToday))
	require.NoError(t, err)
	assert.Empty(t, top.Income)
	assert.Empty(t, top.Spent)
}

func TestFetchTopTransactionsStoreError(t *testing.T) {
	store := &fakeStatsStore{topErr: errors.New("boom")}
	svc := newStatsService(store)

	_, err := svc.FetchTopTransactionsForStatistics(context.Background(), core.AllAccounts(), core.PresetFilter(core.PresetToday))
	require.Error(t, err)
}
