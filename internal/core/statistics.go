package core

import "time"

type (
	// StatPoint is one chart data point: the bucket total, its axis label
	// and the series it belongs to.
	StatPoint struct {
		Value Money           `json:"value"`
		Label string          `json:"label"`
		Type  TransactionType `json:"type"`
	}

	// SeriesPair carries the income and spent series for one window. The
	// two slices are always the same length and index-aligned by bucket.
	SeriesPair struct {
		Income []StatPoint `json:"income"`
		Spent  []StatPoint `json:"spent"`
	}
)

// BuildStatisticsSeries buckets transactions into the range's time slots
// and sums income and expense per slot. Every slot is present even when
// empty. For an hourly (same-day) window a transaction lands in the
// boundary nearest to its instant; for daily windows it lands in the
// bucket whose label its own date formats to, which also folds daily
// boundaries into months under month-labelled selectors.
func BuildStatisticsSeries(r DateRange, txs []Transaction) SeriesPair {
	buckets := r.Buckets()
	labels := r.BucketLabels()

	type totals struct{ income, spent Money }
	byLabel := make(map[string]*totals, len(labels))
	for _, label := range labels {
		byLabel[label] = &totals{}
	}

	hourly := r.Hourly()
	for _, tx := range txs {
		var label string
		if hourly {
			label = r.Label(nearestBoundary(tx.Date, buckets))
		} else {
			label = r.Label(tx.Date)
		}
		bucket, ok := byLabel[label]
		if !ok {
			// Outside the bucket axis; dropped rather than invented.
			continue
		}
		if tx.Type == TypeIncome {
			bucket.income = bucket.income.Add(tx.Amount)
		} else {
			bucket.spent = bucket.spent.Add(tx.Amount.Abs())
		}
	}

	pair := SeriesPair{
		Income: make([]StatPoint, 0, len(labels)),
		Spent:  make([]StatPoint, 0, len(labels)),
	}
	for _, label := range labels {
		bucket := byLabel[label]
		pair.Income = append(pair.Income, StatPoint{Value: bucket.income, Label: label, Type: TypeIncome})
		pair.Spent = append(pair.Spent, StatPoint{Value: bucket.spent, Label: label, Type: TypeSpent})
	}
	return pair
}

// nearestBoundary returns the boundary with the minimum absolute distance
// to t. Deliberately not strict binning: a transaction can land in the
// neighbouring hour slot when that edge is closer.
func nearestBoundary(t time.Time, boundaries []time.Time) time.Time {
	nearest := boundaries[0]
	minDiff := absDuration(t.Sub(boundaries[0]))
	for _, b := range boundaries[1:] {
		if diff := absDuration(t.Sub(b)); diff < minDiff {
			minDiff = diff
			nearest = b
		}
	}
	return nearest
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
