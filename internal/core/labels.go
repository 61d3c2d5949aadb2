// Package core holds the domain model and the pure query logic of the
// ledger engine: date-range resolution, running-balance section building
// and statistics bucketing. Nothing in this package touches the store.
package core

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// EncodeLabelIDs serializes a label set as a JSON integer array, the
// storage encoding of the transactions.label_ids column. The ids are
// deduplicated and sorted so the encoding is canonical.
func EncodeLabelIDs(ids []int64) string {
	out := make([]int64, 0, len(ids))
	seen := map[int64]bool{}
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	body, err := json.Marshal(out)
	if err != nil {
		return "[]"
	}
	return string(body)
}

// DecodeLabelIDs parses a serialized label set. It accepts the canonical
// JSON array form and, for forgiveness toward hand-edited data, a plain
// comma-separated list.
func DecodeLabelIDs(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var ids []int64
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, err
		}
		return ids, nil
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
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// HasAnyLabel reports whether the transaction's label set intersects the
// wanted ids. Matching is by exact token, never by substring: a set
// containing 12 does not match a filter for 1.
func HasAnyLabel(labelIDs []int64, want []int64) bool {
	if len(want) == 0 {
		return true
	}
	for _, id := range labelIDs {
		for _, w := range want {
			if id == w {
				return true
			}
		}
	}
	return false
}
