package aggregation

import "testing"

func TestAggregateNoSuppressionWhenAboveK(t *testing.T) {
	counts := map[string]int{"A": 40, "B": 35}
	result := Aggregate(counts, 30)
	if result.AnyHidden {
		t.Fatalf("expected no suppression when all cells meet k")
	}
	for _, c := range result.Cells {
		if c.Suppressed {
			t.Fatalf("cell %s unexpectedly suppressed", c.Key)
		}
	}
}

func TestAggregateSuppressesBelowK(t *testing.T) {
	counts := map[string]int{"A": 7, "B": 3}
	result := Aggregate(counts, 30)
	if !result.AnyHidden {
		t.Fatalf("expected suppression when cells are below k")
	}
	suppressedCount := 0
	for _, c := range result.Cells {
		if c.Suppressed {
			suppressedCount++
		}
	}
	if suppressedCount < 2 {
		t.Fatalf("expected complementary suppression to hide at least 2 cells, got %d", suppressedCount)
	}
}

func TestAggregateComplementarySuppressionHidesSmallestSurvivor(t *testing.T) {
	counts := map[string]int{"below_k": 5, "small_survivor": 31, "large_survivor": 90}
	result := Aggregate(counts, 30)

	byKey := map[string]Cell{}
	for _, c := range result.Cells {
		byKey[c.Key] = c
	}
	if !byKey["below_k"].Suppressed {
		t.Fatalf("expected below-k cell to be suppressed")
	}
	if !byKey["small_survivor"].Suppressed {
		t.Fatalf("expected the smallest surviving cell to also be suppressed")
	}
	if byKey["large_survivor"].Suppressed {
		t.Fatalf("expected the largest cell to remain visible")
	}
}

func TestAggregateZeroesSuppressedCounts(t *testing.T) {
	counts := map[string]int{"below_k": 5, "small_survivor": 31, "large_survivor": 90}
	result := Aggregate(counts, 30)

	for _, c := range result.Cells {
		if c.Suppressed && c.Count != 0 {
			t.Fatalf("cell %s is suppressed but still reports count %d", c.Key, c.Count)
		}
	}
}

func TestAggregateDeterministic(t *testing.T) {
	counts := map[string]int{"A": 10, "B": 50}
	a := Aggregate(counts, 30)
	b := Aggregate(counts, 30)
	if len(a.Cells) != len(b.Cells) {
		t.Fatalf("expected deterministic cell count")
	}
	for i := range a.Cells {
		if a.Cells[i] != b.Cells[i] {
			t.Fatalf("expected deterministic suppression decision given the same inputs")
		}
	}
}

func TestAddLaplaceNoiseZeroEpsilonIsIdentity(t *testing.T) {
	if got := AddLaplaceNoise(10, 0); got != 10 {
		t.Fatalf("expected epsilon<=0 to return the count unchanged, got %d", got)
	}
}

func TestAddLaplaceNoiseNeverNegative(t *testing.T) {
	for i := 0; i < 100; i++ {
		if got := AddLaplaceNoise(0, 5.0); got < 0 {
			t.Fatalf("expected noised count to never go negative, got %d", got)
		}
	}
}
