package citymap

import (
	"math/rand"
	"testing"
)

// completeGraph builds n buildings where every pair is adjacent.
// Geometry is irrelevant, so neighbor sets are wired directly.
func completeGraph(t *testing.T, n int) []*Building {
	t.Helper()
	buildings := make([]*Building, n)
	for i := range buildings {
		buildings[i] = NewBuilding(squareAt(t, 0, i*10, 0.0002))
	}
	for i := range buildings {
		for j := range buildings {
			if i != j {
				buildings[i].Neighbors[j] = struct{}{}
			}
		}
	}
	return buildings
}

func TestAssignColorsGrid(t *testing.T) {
	buildings := gridBuildings(t, 2, 2)
	ResolveAdjacency(buildings, 25, AdjacencyOptions{})

	rng := rand.New(rand.NewSource(42))
	result := AssignColors(buildings, 4, 100, rng)

	if result.Failures != 0 {
		t.Errorf("failures = %d, want 0 for a 2x2 grid with 4 colors", result.Failures)
	}
	for i, b := range buildings {
		if b.ColorID < 0 || b.ColorID >= 4 {
			t.Errorf("building %d color %d out of range", i, b.ColorID)
		}
		if b.OutlineColorID != b.ColorID {
			t.Errorf("building %d outline %d != fill %d", i, b.OutlineColorID, b.ColorID)
		}
		for j := range b.Neighbors {
			if buildings[j].ColorID == b.ColorID {
				t.Errorf("buildings %d and %d border and share color %d", i, j, b.ColorID)
			}
		}
	}
}

func TestAssignColorsUncolorableTerminates(t *testing.T) {
	// K6 cannot be 4-colored: the budget must be exhausted and the
	// best attempt kept, with every building still getting a color.
	buildings := completeGraph(t, 6)

	rng := rand.New(rand.NewSource(1))
	result := AssignColors(buildings, 4, 10, rng)

	if result.Attempts != 10 {
		t.Errorf("attempts = %d, want the full budget of 10", result.Attempts)
	}
	if result.Failures == 0 {
		t.Error("K6 with 4 colors cannot be conflict-free")
	}
	for i, b := range buildings {
		if b.ColorID < 0 || b.ColorID >= 4 {
			t.Errorf("building %d color %d out of range", i, b.ColorID)
		}
	}
}

func TestAssignColorsStopsEarly(t *testing.T) {
	// Two independent buildings color on the first attempt
	buildings := []*Building{
		NewBuilding(squareAt(t, 0, 0, 0.0002)),
		NewBuilding(squareAt(t, 0, 10, 0.0002)),
	}

	rng := rand.New(rand.NewSource(7))
	result := AssignColors(buildings, 4, 100, rng)

	if result.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", result.Attempts)
	}
	if result.Failures != 0 {
		t.Errorf("failures = %d, want 0", result.Failures)
	}
}

func TestAssignColorsSeededDeterminism(t *testing.T) {
	colorsWithSeed := func(seed int64) []int {
		buildings := gridBuildings(t, 3, 3)
		ResolveAdjacency(buildings, 25, AdjacencyOptions{})
		AssignColors(buildings, 4, 100, rand.New(rand.NewSource(seed)))
		colors := make([]int, len(buildings))
		for i, b := range buildings {
			colors[i] = b.ColorID
		}
		return colors
	}

	first := colorsWithSeed(99)
	second := colorsWithSeed(99)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("same seed produced different colors: %v vs %v", first, second)
		}
	}
}

func TestAssignColorsEmpty(t *testing.T) {
	result := AssignColors(nil, 4, 100, rand.New(rand.NewSource(1)))
	if result.Attempts != 0 || result.Failures != 0 {
		t.Errorf("empty input result = %+v, want zero value", result)
	}
}
