package core

import "time"

const (
	PresetToday       DatePreset = "today"
	PresetLast7Days   DatePreset = "last7days"
	PresetThisMonth   DatePreset = "thisMonth"
	PresetLast6Months DatePreset = "last6months"
	PresetYear        DatePreset = "year"
)

type DatePreset string

// DateFilter selects a time window either by named preset or by explicit
// bounds. A filter with an empty Preset is a custom range.
type DateFilter struct {
	Preset DatePreset
	Start  time.Time
	End    time.Time
}

func PresetFilter(p DatePreset) DateFilter {
	return DateFilter{Preset: p}
}

func CustomRange(start, end time.Time) DateFilter {
	return DateFilter{Start: start, End: end}
}

func (f DateFilter) IsCustom() bool { return f.Preset == "" }

func (f DateFilter) Validate() error {
	if f.IsCustom() {
		if f.Start.IsZero() || f.End.IsZero() {
			return ErrInvalidDate
		}
		if dayOf(f.Start).After(dayOf(f.End)) {
			return ErrInvalidDateRange
		}
		return nil
	}
	switch f.Preset {
	case PresetToday, PresetLast7Days, PresetThisMonth, PresetLast6Months, PresetYear:
		return nil
	}
	return ErrInvalidDate
}

// DateRange is a resolved [Start, End] window. It keeps the filter it was
// resolved from because bucket labels are formatted per selector, not per
// window width, and the reference instant because hourly bucketing applies
// only when the window lies on the current calendar day.
type DateRange struct {
	Start  time.Time
	End    time.Time
	Filter DateFilter

	now time.Time
}

// ResolveDateRange maps a date filter to concrete window bounds. The
// reference instant is an explicit parameter so resolution never reads the
// wall clock. Presets end at the last instant of the reference day; custom
// bounds pass through unchanged.
func ResolveDateRange(now time.Time, f DateFilter) (DateRange, error) {
	if err := f.Validate(); err != nil {
		return DateRange{}, err
	}
	if f.IsCustom() {
		return DateRange{Start: f.Start, End: f.End, Filter: f, now: now}, nil
	}

	today := dayOf(now)
	end := endOfDay(now)

	var start time.Time
	switch f.Preset {
	case PresetToday:
		start = today
	case PresetLast7Days:
		start = today.AddDate(0, 0, -7)
	case PresetThisMonth:
		start = time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	case PresetLast6Months:
		start = today.AddDate(0, -6, 0)
	case PresetYear:
		start = today.AddDate(0, -12, 0)
	}
	return DateRange{Start: start, End: end, Filter: f, now: now}, nil
}

// Hourly reports whether the window is bucketed by hour: any window lying
// entirely on the reference calendar day qualifies, whether it came from
// the today preset or an equivalent custom range.
func (r DateRange) Hourly() bool {
	today := dayOf(r.now)
	return dayOf(r.Start).Equal(today) && dayOf(r.End).Equal(today)
}

// Buckets returns the ordered bucket boundary instants for the window:
// one per hour for a same-day window, one per calendar day otherwise.
func (r DateRange) Buckets() []time.Time {
	var out []time.Time
	if r.Hourly() {
		for cur := r.Start; !cur.After(r.End); cur = cur.Add(time.Hour) {
			out = append(out, cur)
		}
		return out
	}
	for cur := r.Start; !cur.After(r.End); cur = cur.AddDate(0, 0, 1) {
		out = append(out, cur)
	}
	return out
}

// Label formats an instant for chart display according to the selector the
// range was resolved from.
func (r DateRange) Label(t time.Time) string {
	if r.Filter.IsCustom() {
		return t.Format("2006-01-02")
	}
	switch r.Filter.Preset {
	case PresetToday:
		return t.Format("15:04")
	case PresetLast7Days, PresetThisMonth:
		return t.Format("02 Jan")
	case PresetLast6Months, PresetYear:
		return t.Format("Jan")
	default:
		return t.Format("2006-01-02")
	}
}

// BucketLabels returns the distinct bucket labels in boundary order. Month
// formats collapse a month of daily boundaries into one label, so this is
// the axis the statistics series align to.
func (r DateRange) BucketLabels() []string {
	buckets := r.Buckets()
	out := make([]string, 0, len(buckets))
	seen := map[string]bool{}
	for _, b := range buckets {
		label := r.Label(b)
		if seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
