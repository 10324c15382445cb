// Package metrics aggregates ledger rows into monthly and daily figures.
// The functions in this file are pure computation over rows already
// fetched; they never touch the store.
package metrics

// Bucket is one aggregation bucket: a grouping key and the summed amount.
type Bucket struct {
	Key   string `json:"key"`
	Total int64  `json:"total"`
}

// SumAmounts sums the amounts of the given rows. Empty input yields 0.
func SumAmounts(amounts []int64) int64 {
	var total int64
	for _, a := range amounts {
		total += a
	}
	return total
}

// PercentChange returns (current-previous)/previous*100, or nil when there
// is no positive baseline to compare against. Absence of a baseline is "no
// percentage", never zero or infinity.
func PercentChange(current, previous int64) *float64 {
	if previous <= 0 {
		return nil
	}
	pct := float64(current-previous) / float64(previous) * 100
	return &pct
}

// SavingsRate returns (income-expense)/income*100, or 0 when income is not
// positive. Unlike PercentChange this defaults to 0 rather than nil; the
// display layer depends on the distinction.
func SavingsRate(income, expense int64) float64 {
	if income <= 0 {
		return 0
	}
	return float64(income-expense) / float64(income) * 100
}

// GroupAndSum buckets rows by the extracted key, in insertion order of the
// key's first occurrence. Rows whose key is empty are excluded, not bucketed
// under a sentinel.
func GroupAndSum[T any](rows []T, keyFn func(T) string, amountFn func(T) int64) []Bucket {
	index := make(map[string]int)
	var out []Bucket
	for _, row := range rows {
		key := keyFn(row)
		if key == "" {
			continue
		}
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, Bucket{Key: key})
			i = len(out) - 1
		}
		out[i].Total += amountFn(row)
	}
	return out
}
