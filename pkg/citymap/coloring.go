package citymap

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/citymapgen/citymap/pkg/monitoring"
)

// DefaultColoringAttempts bounds the randomized coloring retries
const DefaultColoringAttempts = 100

// ColoringResult reports the outcome of AssignColors
type ColoringResult struct {
	// Failures is the conflict count of the accepted assignment:
	// buildings that could not get a color unused by every neighbor.
	Failures int

	// Attempts is how many randomized passes ran
	Attempts int
}

// AssignColors assigns a palette index to every building so that
// bordering buildings get distinct colors. The assignment is
// randomized and retried up to maxAttempts times, keeping the pass
// with the fewest conflicts. Buildings left unresolved by the best
// pass get a random color. OutlineColorID always mirrors ColorID so
// fill and outline are drawn from matching palette slots.
func AssignColors(buildings []*Building, paletteLen, maxAttempts int, rng *rand.Rand) ColoringResult {
	n := len(buildings)
	if n == 0 || paletteLen <= 0 {
		return ColoringResult{}
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultColoringAttempts
	}

	// Most-constrained first: buildings with more neighbors have
	// fewer colors to choose from late in a pass.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return buildings[order[a]].NeighborCount() > buildings[order[b]].NeighborCount()
	})

	best := make([]int, n)
	bestFailures := math.MaxInt
	colors := make([]int, n)
	avail := make([]int, 0, paletteLen)
	used := make([]bool, paletteLen)

	attempts := 0
	for attempts < maxAttempts {
		attempts++
		monitoring.ColoringAttempts.Inc()

		for i := range colors {
			colors[i] = -1
		}
		failures := 0

		for _, i := range order {
			for c := range used {
				used[c] = false
			}
			for j := range buildings[i].Neighbors {
				if colors[j] >= 0 {
					used[colors[j]] = true
				}
			}
			avail = avail[:0]
			for c := 0; c < paletteLen; c++ {
				if !used[c] {
					avail = append(avail, c)
				}
			}
			if len(avail) == 0 {
				failures++
				continue
			}
			colors[i] = avail[rng.Intn(len(avail))]
		}

		if failures < bestFailures {
			bestFailures = failures
			copy(best, colors)
		}
		if failures == 0 {
			break
		}
	}

	for i, b := range buildings {
		c := best[i]
		if c < 0 {
			c = rng.Intn(paletteLen)
		}
		b.ColorID = c
		b.OutlineColorID = c
	}

	monitoring.ColoringFailures.Set(float64(bestFailures))
	slog.Default().Debug("colors assigned",
		"buildings", n,
		"attempts", attempts,
		"failures", bestFailures)

	return ColoringResult{Failures: bestFailures, Attempts: attempts}
}
