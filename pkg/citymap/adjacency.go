package citymap

import (
	"log/slog"
	"math"
	"time"

	"github.com/citymapgen/citymap/pkg/geo"
	"github.com/citymapgen/citymap/pkg/monitoring"
)

// DefaultMaxBorderDistance is how far apart two building centers can be
// in meters before the pair is skipped without a border test.
const DefaultMaxBorderDistance = 50.0

// ProgressUpdate reports adjacency resolution progress
type ProgressUpdate struct {
	Percent   int
	Elapsed   time.Duration
	Remaining time.Duration
}

// ProgressFunc receives progress updates during adjacency resolution.
// Percent is monotonically non-decreasing across calls.
type ProgressFunc func(ProgressUpdate)

// AdjacencyOptions configures ResolveAdjacency
type AdjacencyOptions struct {
	// MaxDistance in meters between building centers for a pair to
	// be tested. Zero means DefaultMaxBorderDistance.
	MaxDistance float64

	Progress ProgressFunc
	Logger   *slog.Logger
}

// ResolveAdjacency populates the Neighbors set of every building.
// Adjacency is symmetric: when a borders b, each holds the other's
// index. The radius is the query radius in meters used to fetch the
// buildings, needed to convert MaxDistance into coordinate degrees.
func ResolveAdjacency(buildings []*Building, radius float64, opts AdjacencyOptions) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxDist := opts.MaxDistance
	if maxDist <= 0 {
		maxDist = DefaultMaxBorderDistance
	}

	n := len(buildings)
	latDelta, lonDelta := candidateDeltas(buildings, radius, maxDist)
	totalPairs := n * (n - 1) / 2

	logger.Debug("resolving adjacency",
		"buildings", n,
		"lat_delta", latDelta,
		"lon_delta", lonDelta,
		"pairs", totalPairs)

	start := time.Now()
	lastPercent := -1
	pairsDone := 0

	for i := 0; i < n; i++ {
		a := buildings[i]
		ac := a.Center()
		for j := i + 1; j < n; j++ {
			pairsDone++
			b := buildings[j]
			bc := b.Center()
			if math.Abs(ac.Latitude-bc.Latitude) > latDelta ||
				math.Abs(ac.Longitude-bc.Longitude) > lonDelta {
				continue
			}
			monitoring.AdjacencyPairsChecked.Inc()
			if a.Borders(b) {
				a.Neighbors[j] = struct{}{}
				b.Neighbors[i] = struct{}{}
			}
		}
		buildings[i].neighborsResolved = true

		if opts.Progress != nil && totalPairs > 0 {
			percent := pairsDone * 100 / totalPairs
			if percent > lastPercent {
				lastPercent = percent
				elapsed := time.Since(start)
				var remaining time.Duration
				if pairsDone > 0 {
					perPair := elapsed / time.Duration(pairsDone)
					remaining = perPair * time.Duration(totalPairs-pairsDone)
				}
				monitoring.UpdateAdjacencyProgress(float64(percent))
				opts.Progress(ProgressUpdate{
					Percent:   percent,
					Elapsed:   elapsed,
					Remaining: remaining,
				})
			}
		}
	}

	logger.Debug("adjacency resolved",
		"buildings", n,
		"duration", time.Since(start))
}

// candidateDeltas converts maxDist meters into per-axis
// coordinate-degree thresholds using the overall extent of the
// building set. The fetch area spans 2*radius meters, so along either
// axis one meter covers span/(2*radius) degrees.
func candidateDeltas(buildings []*Building, radius float64, maxDist float64) (latDelta, lonDelta float64) {
	if len(buildings) == 0 || radius <= 0 {
		return 0, 0
	}
	bounds := geo.NewBoundingBox()
	for _, b := range buildings {
		bounds.Union(b.Bounds())
	}
	latDelta = bounds.Height() / (2 * radius) * maxDist
	lonDelta = bounds.Width() / (2 * radius) * maxDist
	return latDelta, lonDelta
}
