package vector

import (
	"cmp"
	"fmt"
	"slices"
)

// SearchExact ranks every record by brute force. The sort is stable, so
// equal distances keep insertion order.
func SearchExact(records []Record, dim int, query []float32, k int, metric Metric) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}

	if len(query) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), dim)
	}

	distance, err := metric.Func()
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(records))
	for i, r := range records {
		results[i] = Result{
			Record:   r,
			Distance: distance(query, r.Vector),
		}
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(a.Distance, b.Distance)
	})

	return results[:min(k, len(results))], nil
}

// Ranked pairs a result with the insertion position used to break ties.
type Ranked struct {
	Result
	Seq int
}

// SortRanked orders backend results by distance then insertion position,
// and truncates to k.
func SortRanked(ranked []Ranked, k int) []Result {
	slices.SortFunc(ranked, func(a, b Ranked) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}

		return cmp.Compare(a.Seq, b.Seq)
	})

	n := min(k, len(ranked))
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		results[i] = ranked[i].Result
	}

	return results
}
