package citymap

import (
	"github.com/paulmach/orb"

	"github.com/citymapgen/citymap/pkg/geo"
	"github.com/citymapgen/citymap/pkg/monitoring"
	"github.com/citymapgen/citymap/pkg/overpass"
)

// normalizer maps geographic coordinates onto the unit square spanned
// by the building extent, then scales to a pixel canvas. Points whose
// normalized position falls outside [0,1] are dropped rather than
// clamped, so features straddling the frame edge get trimmed.
type normalizer struct {
	bounds geo.BoundingBox
	width  float64
	height float64
}

func newNormalizer(bounds geo.BoundingBox, width, height float64) *normalizer {
	return &normalizer{bounds: bounds, width: width, height: height}
}

// boundsOf returns the combined extent of all building footprints,
// which frames the rendered map.
func boundsOf(buildings []*Building) geo.BoundingBox {
	bounds := geo.NewBoundingBox()
	for _, b := range buildings {
		bounds.Union(b.Bounds())
	}
	return *bounds
}

// point projects a node onto the canvas. ok is false when the node
// lands outside the frame. The y axis is flipped so north is up.
func (n *normalizer) point(node overpass.Node) (orb.Point, bool) {
	latSpan := n.bounds.Height()
	lonSpan := n.bounds.Width()
	if latSpan <= 0 || lonSpan <= 0 {
		return orb.Point{}, false
	}

	x := (node.Lon - n.bounds.MinLon) / lonSpan
	y := (node.Lat - n.bounds.MinLat) / latSpan
	if x < 0 || x > 1 || y < 0 || y > 1 {
		return orb.Point{}, false
	}

	return orb.Point{x * n.width, (1 - y) * n.height}, true
}

// ring projects an outer or inner ring onto the canvas. Rings left
// with fewer than 3 points after trimming are dropped and (nil, false)
// is returned.
func (n *normalizer) ring(nodes []overpass.Node, kind overpass.FeatureKind) (orb.Ring, bool) {
	ring := make(orb.Ring, 0, len(nodes))
	for _, node := range nodes {
		p, ok := n.point(node)
		if !ok {
			continue
		}
		ring = append(ring, p)
	}
	if len(ring) < 3 {
		if len(nodes) > 0 {
			monitoring.RecordFeatureDropped(string(kind), "degenerate_after_normalize")
		}
		return nil, false
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring, true
}

// polygon projects a feature's rings onto the canvas. ok is false when
// the outer ring does not survive trimming; inner rings that collapse
// are dropped individually.
func (n *normalizer) polygon(f *overpass.Feature) (orb.Polygon, bool) {
	outer, ok := n.ring(f.Outer, f.Kind)
	if !ok {
		return nil, false
	}
	poly := orb.Polygon{outer}
	for _, inner := range f.Inner {
		r, ok := n.ring(inner, f.Kind)
		if !ok {
			continue
		}
		poly = append(poly, r)
	}
	return poly, true
}

// lineString projects an open way (a road) onto the canvas. Ways left
// with fewer than 3 points after trimming are dropped, the same cutoff
// rings get.
func (n *normalizer) lineString(nodes []overpass.Node, kind overpass.FeatureKind) (orb.LineString, bool) {
	ls := make(orb.LineString, 0, len(nodes))
	for _, node := range nodes {
		p, ok := n.point(node)
		if !ok {
			continue
		}
		ls = append(ls, p)
	}
	if len(ls) < 3 {
		if len(nodes) > 0 {
			monitoring.RecordFeatureDropped(string(kind), "degenerate_after_normalize")
		}
		return nil, false
	}
	return ls, true
}
