package citymap

import (
	"github.com/citymapgen/citymap/pkg/geo"
	"github.com/citymapgen/citymap/pkg/overpass"
)

// Building is a stitched building footprint plus the render state the
// pipeline fills in: its neighbor set and assigned palette indices.
type Building struct {
	Feature *overpass.Feature

	// Neighbors holds indices into the session's building slice.
	// Populated by ResolveAdjacency.
	Neighbors map[int]struct{}

	// ColorID and OutlineColorID are palette indices, -1 until
	// AssignColors runs.
	ColorID        int
	OutlineColorID int

	neighborsResolved bool
}

// NewBuilding wraps a stitched feature with unassigned render state
func NewBuilding(f *overpass.Feature) *Building {
	return &Building{
		Feature:        f,
		Neighbors:      make(map[int]struct{}),
		ColorID:        -1,
		OutlineColorID: -1,
	}
}

// Bounds returns the footprint bounding box
func (b *Building) Bounds() geo.BoundingBox {
	return b.Feature.Bounds
}

// Center returns the footprint bounding box center
func (b *Building) Center() geo.Location {
	return b.Feature.Center
}

// Borders reports whether two buildings touch: their bounding boxes
// overlap and their outer rings share at least two distinct node
// identities. Closed rings repeat their first node, so counting runs
// over a deduplicated view of the ring or a shared corner at the ring
// closure would count twice.
func (b *Building) Borders(other *Building) bool {
	if !b.Feature.Bounds.Intersects(other.Feature.Bounds) {
		return false
	}

	shared := 0
	seen := make([]overpass.Node, 0, len(b.Feature.Outer))
outer:
	for _, n := range b.Feature.Outer {
		for _, s := range seen {
			if n.Same(s) {
				continue outer
			}
		}
		seen = append(seen, n)
		for _, m := range other.Feature.Outer {
			if n.Same(m) {
				shared++
				if shared >= 2 {
					return true
				}
				break
			}
		}
	}
	return false
}

// NeighborCount returns the resolved neighbor count
func (b *Building) NeighborCount() int {
	return len(b.Neighbors)
}

// NeighborsResolved reports whether ResolveAdjacency has processed this
// building. A false value means the neighbor set may be incomplete.
func (b *Building) NeighborsResolved() bool {
	return b.neighborsResolved
}
