package citymap

import (
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/citymapgen/citymap/pkg/monitoring"
)

// gridBuildings lays out a rows-by-cols grid of touching squares. Each
// square borders its orthogonal neighbors (two shared corner nodes)
// but not its diagonal ones (one shared corner).
func gridBuildings(t *testing.T, rows, cols int) []*Building {
	t.Helper()
	const step = 0.0002
	buildings := make([]*Building, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			buildings = append(buildings, NewBuilding(squareAt(t, r, c, step)))
		}
	}
	return buildings
}

func neighborSets(buildings []*Building) []map[int]struct{} {
	sets := make([]map[int]struct{}, len(buildings))
	for i, b := range buildings {
		sets[i] = b.Neighbors
	}
	return sets
}

func TestResolveAdjacencyGrid(t *testing.T) {
	buildings := gridBuildings(t, 2, 2)
	ResolveAdjacency(buildings, 25, AdjacencyOptions{})

	// Index layout: 0 1 / 2 3. Orthogonal pairs border, diagonals
	// do not.
	want := []map[int]struct{}{
		{1: {}, 2: {}},
		{0: {}, 3: {}},
		{0: {}, 3: {}},
		{1: {}, 2: {}},
	}
	got := neighborSets(buildings)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("neighbor sets = %v, want %v", got, want)
	}
	for i, b := range buildings {
		if !b.NeighborsResolved() {
			t.Errorf("building %d not marked resolved", i)
		}
	}
}

func TestResolveAdjacencySymmetric(t *testing.T) {
	buildings := gridBuildings(t, 3, 3)
	ResolveAdjacency(buildings, 25, AdjacencyOptions{})

	for i, b := range buildings {
		for j := range b.Neighbors {
			if _, ok := buildings[j].Neighbors[i]; !ok {
				t.Errorf("building %d lists %d but not vice versa", i, j)
			}
		}
	}
}

func TestResolveAdjacencyDeterministic(t *testing.T) {
	first := gridBuildings(t, 3, 3)
	ResolveAdjacency(first, 25, AdjacencyOptions{})

	second := gridBuildings(t, 3, 3)
	ResolveAdjacency(second, 25, AdjacencyOptions{})

	if !reflect.DeepEqual(neighborSets(first), neighborSets(second)) {
		t.Error("adjacency differs between identical runs")
	}
}

func TestResolveAdjacencyCandidateFilter(t *testing.T) {
	// Two squares far apart relative to the 50 m threshold: the
	// pre-filter must skip the pair without changing the result.
	buildings := []*Building{
		NewBuilding(squareAt(t, 0, 0, 0.0002)),
		NewBuilding(squareAt(t, 0, 50, 0.0002)),
	}
	ResolveAdjacency(buildings, 500, AdjacencyOptions{})

	if len(buildings[0].Neighbors) != 0 || len(buildings[1].Neighbors) != 0 {
		t.Error("distant squares should have no neighbors")
	}
}

func TestCandidateDeltasPerAxis(t *testing.T) {
	// An elongated building set gets a separate threshold per axis,
	// each scaled by that axis's extent.
	const (
		step    = 0.0002
		radius  = 100.0
		maxDist = 50.0
	)
	buildings := []*Building{
		NewBuilding(squareAt(t, 0, 0, step)),
		NewBuilding(squareAt(t, 0, 20, step)),
	}
	latDelta, lonDelta := candidateDeltas(buildings, radius, maxDist)

	wantLat := (float64(1) * step) / (2 * radius) * maxDist
	wantLon := (float64(21) * step) / (2 * radius) * maxDist
	if latDelta != wantLat {
		t.Errorf("latDelta = %g, want %g", latDelta, wantLat)
	}
	if lonDelta != wantLon {
		t.Errorf("lonDelta = %g, want %g", lonDelta, wantLon)
	}
}

func TestResolveAdjacencyCandidateFilterPerAxis(t *testing.T) {
	// In a strip of buildings stretched along one axis, pairs split
	// along the short axis must not inherit the long axis's threshold:
	// every pair here is farther apart than its own axis allows, so
	// none reaches the border test.
	const step = 0.0002
	buildings := []*Building{
		NewBuilding(squareAt(t, 0, 0, step)),
		NewBuilding(squareAt(t, 2, 0, step)),
		NewBuilding(squareAt(t, 0, 20, step)),
	}

	before := testutil.ToFloat64(monitoring.AdjacencyPairsChecked)
	ResolveAdjacency(buildings, 100, AdjacencyOptions{})
	after := testutil.ToFloat64(monitoring.AdjacencyPairsChecked)

	if checked := after - before; checked != 0 {
		t.Errorf("border test ran on %g pairs, want 0", checked)
	}
	for i, b := range buildings {
		if len(b.Neighbors) != 0 {
			t.Errorf("building %d has %d neighbors, want 0", i, len(b.Neighbors))
		}
	}
}

func TestResolveAdjacencyProgress(t *testing.T) {
	buildings := gridBuildings(t, 4, 4)

	var updates []ProgressUpdate
	ResolveAdjacency(buildings, 25, AdjacencyOptions{
		Progress: func(u ProgressUpdate) { updates = append(updates, u) },
	})

	if len(updates) == 0 {
		t.Fatal("expected progress updates")
	}
	for i := 1; i < len(updates); i++ {
		if updates[i].Percent < updates[i-1].Percent {
			t.Errorf("progress went backwards: %d after %d",
				updates[i].Percent, updates[i-1].Percent)
		}
	}
	if last := updates[len(updates)-1].Percent; last != 100 {
		t.Errorf("final progress = %d, want 100", last)
	}
}

func TestResolveAdjacencyEmpty(t *testing.T) {
	ResolveAdjacency(nil, 25, AdjacencyOptions{
		Progress: func(ProgressUpdate) { t.Error("progress called for empty input") },
	})
}
