// Package aggregation implements C8: k-anonymity cell suppression,
// complementary suppression, and optional Laplace noise. Grounded on the
// teacher's deterministic signal-composition style in
// internal/heuristics/llr_engine.go (pure functions over counts, no
// hidden state).
package aggregation

import (
	"math"
	"math/rand"
	"sort"
)

// Cell is one reportable tally bucket.
type Cell struct {
	Key        string
	Count      int
	Suppressed bool
}

// Result is the full suppression-applied tally for one grouping.
type Result struct {
	Cells    []Cell
	Total    int
	AnyHidden bool
}

// Aggregate applies k-anonymity suppression with complementary suppression
// to raw counts (spec.md §4.8): any cell below k is suppressed; when a
// suppression occurs, the next-smallest surviving cell is also suppressed
// so the hidden count can't be recovered by subtracting from the total.
func Aggregate(counts map[string]int, k int) Result {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] < counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	cells := make([]Cell, len(keys))
	total := 0
	suppressedAny := false
	for i, key := range keys {
		c := counts[key]
		total += c
		cells[i] = Cell{Key: key, Count: c, Suppressed: c < k}
		if cells[i].Suppressed {
			suppressedAny = true
		}
	}

	if suppressedAny {
		// Complementary suppression: additionally hide the smallest
		// surviving (non-suppressed) cell, so total - sum(visible) can't
		// reveal the true suppressed count.
		for i := range cells {
			if !cells[i].Suppressed {
				cells[i].Suppressed = true
				break
			}
		}
	}

	// A suppressed cell reports neither its count nor a rounded
	// approximation of it — only the fact that it was hidden. Zeroing
	// here means every caller gets this for free instead of each
	// response-building call site having to remember to redact it.
	for i := range cells {
		if cells[i].Suppressed {
			cells[i].Count = 0
		}
	}

	// Re-sort into a stable, caller-friendly key order.
	sort.Slice(cells, func(i, j int) bool { return cells[i].Key < cells[j].Key })

	return Result{Cells: cells, Total: total, AnyHidden: suppressedAny}
}

// AddLaplaceNoise perturbs a count with Laplace(0, 1/epsilon) noise,
// rounded to the nearest non-negative integer, for the optional
// differential-privacy release mode (spec.md §4.8).
func AddLaplaceNoise(count int, epsilon float64) int {
	if epsilon <= 0 {
		return count
	}
	b := 1.0 / epsilon
	u := rand.Float64() - 0.5
	noise := -b * sign(u) * math.Log(1-2*math.Abs(u))
	noisy := float64(count) + noise
	if noisy < 0 {
		return 0
	}
	return int(math.Round(noisy))
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
