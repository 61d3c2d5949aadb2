package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"moneymap/internal/cache"
	"moneymap/internal/core"
)

// topLimit caps each top-transactions list.
const topLimit = 10

// StatisticsStore is the slice of the repository the statistics service
// needs.
type StatisticsStore interface {
	SelectInstantWindow(ctx context.Context, sel core.AccountSelector, start, end time.Time) ([]core.Transaction, error)
	TopTransactions(ctx context.Context, sel core.AccountSelector, start, end time.Time, typ core.TransactionType, limit int) ([]core.Transaction, error)
}

// TopTransactions holds the highest-impact entries of a window, one list
// per flow direction. Income ranks by amount, spent by magnitude.
type TopTransactions struct {
	Income []core.Transaction `json:"income"`
	Spent  []core.Transaction `json:"spent"`
}

// StatisticsService builds chart-ready series over a date window. Series
// results are cached per query shape; any ledger write bumps an epoch
// that retires every cached entry at once.
type StatisticsService struct {
	store StatisticsStore
	cache cache.Cache[core.SeriesPair]
	epoch atomic.Int64
	now   func() time.Time
}

func NewStatisticsService(store StatisticsStore, c cache.Cache[core.SeriesPair]) *StatisticsService {
	return &StatisticsService{
		store: store,
		cache: c,
		now:   time.Now,
	}
}

// Invalidate retires all cached series. Cheap enough to call on every
// write; entries from older epochs fall out of the LRU on their own.
func (s *StatisticsService) Invalidate() {
	s.epoch.Add(1)
}

// FetchTransactionsForStatistics returns aligned income and spent series
// for the window. Both series carry one point per bucket label, zero
// filled, so they always line up for charting. An empty account list
// yields zero-valued series over the same labels.
func (s *StatisticsService) FetchTransactionsForStatistics(ctx context.Context, sel core.AccountSelector, filter core.DateFilter) (core.SeriesPair, error) {
	r, err := core.ResolveDateRange(s.now(), filter)
	if err != nil {
		if errors.Is(err, core.ErrInvalidDateRange) {
			return core.SeriesPair{}, err
		}
		return core.SeriesPair{}, fmt.Errorf("resolve date range: %w", err)
	}

	if sel.IsEmpty() {
		return core.BuildStatisticsSeries(r, nil), nil
	}

	key := s.seriesKey(sel, r)
	if s.cache != nil {
		if pair, ok := s.cache.Get(key); ok {
			slog.DebugContext(ctx, "Statistics series cache hit", "key", key)
			return pair, nil
		}
	}

	rows, err := s.store.SelectInstantWindow(ctx, sel, r.Start, r.End)
	if err != nil {
		return core.SeriesPair{}, fmt.Errorf("window transactions: %w", err)
	}

	pair := core.BuildStatisticsSeries(r, rows)
	if s.cache != nil {
		s.cache.Set(key, pair)
	}
	return pair, nil
}

// FetchTopTransactionsForStatistics returns the ten largest income and
// spent entries of the window. The two queries are independent and run in
// parallel.
func (s *StatisticsService) FetchTopTransactionsForStatistics(ctx context.Context, sel core.AccountSelector, filter core.DateFilter) (TopTransactions, error) {
	r, err := core.ResolveDateRange(s.now(), filter)
	if err != nil {
		return TopTransactions{}, fmt.Errorf("resolve date range: %w", err)
	}

	if sel.IsEmpty() {
		return TopTransactions{}, nil
	}

	var top TopTransactions
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.store.TopTransactions(gctx, sel, r.Start, r.End, core.TypeIncome, topLimit)
		if err != nil {
			return fmt.Errorf("top income: %w", err)
		}
		top.Income = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.store.TopTransactions(gctx, sel, r.Start, r.End, core.TypeSpent, topLimit)
		if err != nil {
			return fmt.Errorf("top spent: %w", err)
		}
		top.Spent = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return TopTransactions{}, err
	}
	return top, nil
}

// seriesKey identifies a cached series by epoch, selection and resolved
// window. The epoch prefix is what makes Invalidate global.
func (s *StatisticsService) seriesKey(sel core.AccountSelector, r core.DateRange) string {
	var b strings.Builder
	fmt.Fprintf(&b, "e%d|", s.epoch.Load())
	if sel.IsAll() {
		b.WriteString("all")
	} else {
		sorted := make([]int64, len(sel.IDs()))
		copy(sorted, sel.IDs())
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		for i, id := range sorted {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "%d", id)
		}
	}
	fmt.Fprintf(&b, "|%s|%s|%s", r.Filter.Preset, r.Start.UTC().Format(time.RFC3339), r.End.UTC().Format(time.RFC3339))
	return b.String()
}
