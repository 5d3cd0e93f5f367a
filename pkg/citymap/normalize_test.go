package citymap

import (
	"testing"

	"github.com/citymapgen/citymap/pkg/geo"
	"github.com/citymapgen/citymap/pkg/overpass"
)

func testBounds() geo.BoundingBox {
	return geo.BoundingBox{MinLat: 0, MinLon: 0, MaxLat: 0.001, MaxLon: 0.001}
}

func TestNormalizePoint(t *testing.T) {
	n := newNormalizer(testBounds(), 100, 200)

	p, ok := n.point(overpass.Node{Lat: 0.0005, Lon: 0.0005})
	if !ok {
		t.Fatal("center point dropped")
	}
	if p[0] != 50 || p[1] != 100 {
		t.Errorf("center = (%g, %g), want (50, 100)", p[0], p[1])
	}

	// North edge maps to the top of the canvas
	p, ok = n.point(overpass.Node{Lat: 0.001, Lon: 0})
	if !ok {
		t.Fatal("corner point dropped")
	}
	if p[0] != 0 || p[1] != 0 {
		t.Errorf("northwest corner = (%g, %g), want (0, 0)", p[0], p[1])
	}
}

func TestNormalizePointOutsideFrame(t *testing.T) {
	n := newNormalizer(testBounds(), 100, 100)

	if _, ok := n.point(overpass.Node{Lat: 0.002, Lon: 0.0005}); ok {
		t.Error("point north of the frame should be dropped, not clamped")
	}
	if _, ok := n.point(overpass.Node{Lat: 0.0005, Lon: -0.001}); ok {
		t.Error("point west of the frame should be dropped, not clamped")
	}
}

func TestNormalizeRingClosed(t *testing.T) {
	n := newNormalizer(testBounds(), 100, 100)

	ring, ok := n.ring([]overpass.Node{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.001},
		{Lat: 0.001, Lon: 0.001},
		{Lat: 0.001, Lon: 0},
	}, overpass.KindBuilding)
	if !ok {
		t.Fatal("square ring dropped")
	}
	if ring[0] != ring[len(ring)-1] {
		t.Error("normalized ring should be explicitly closed")
	}
	if len(ring) != 5 {
		t.Errorf("ring has %d points, want 5", len(ring))
	}
}

func TestNormalizeRingDegenerateAfterTrim(t *testing.T) {
	n := newNormalizer(testBounds(), 100, 100)

	// Four points but only two inside the frame
	_, ok := n.ring([]overpass.Node{
		{Lat: 0, Lon: 0},
		{Lat: 0.001, Lon: 0.001},
		{Lat: 0.005, Lon: 0.005},
		{Lat: 0.006, Lon: 0.006},
	}, overpass.KindBuilding)
	if ok {
		t.Error("ring with fewer than 3 surviving points should be dropped")
	}
}

func TestNormalizePolygonDropsCollapsedHole(t *testing.T) {
	n := newNormalizer(testBounds(), 100, 100)

	outer := []overpass.Node{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 0.001},
		{Lat: 0.001, Lon: 0.001},
		{Lat: 0.001, Lon: 0},
	}
	inner := [][]overpass.Node{
		{
			{Lat: 0.0004, Lon: 0.0004},
			{Lat: 0.0004, Lon: 0.0006},
			{Lat: 0.0006, Lon: 0.0006},
			{Lat: 0.0006, Lon: 0.0004},
		},
		{
			// This hole sits outside the frame entirely
			{Lat: 0.005, Lon: 0.005},
			{Lat: 0.005, Lon: 0.006},
			{Lat: 0.006, Lon: 0.006},
		},
	}
	f, ok := overpass.NewFeature(1, overpass.KindBuilding, outer, inner)
	if !ok {
		t.Fatal("feature rejected")
	}

	poly, ok := n.polygon(&f)
	if !ok {
		t.Fatal("polygon dropped")
	}
	if len(poly) != 2 {
		t.Errorf("polygon has %d rings, want outer plus one surviving hole", len(poly))
	}
}

func TestNormalizeLineString(t *testing.T) {
	n := newNormalizer(testBounds(), 100, 100)

	ls, ok := n.lineString([]overpass.Node{
		{Lat: 0, Lon: 0},
		{Lat: 0.0005, Lon: 0.0005},
		{Lat: 0.001, Lon: 0.001},
		{Lat: 0.002, Lon: 0.002},
	}, overpass.KindRoad)
	if !ok {
		t.Fatal("line dropped")
	}
	if len(ls) != 3 {
		t.Errorf("line has %d points, want 3 after trimming", len(ls))
	}

	// A road trimmed to a bare segment is dropped like a degenerate ring.
	if _, ok := n.lineString([]overpass.Node{
		{Lat: 0, Lon: 0},
		{Lat: 0.0005, Lon: 0.0005},
		{Lat: 0.002, Lon: 0.002},
	}, overpass.KindRoad); ok {
		t.Error("line with fewer than 3 surviving points should be dropped")
	}
}

func TestBoundsOf(t *testing.T) {
	buildings := gridBuildings(t, 2, 3)
	bounds := boundsOf(buildings)

	if bounds.MinLat != 0 || bounds.MinLon != 0 {
		t.Errorf("min = (%g, %g), want origin", bounds.MinLat, bounds.MinLon)
	}
	step := 0.0002
	if bounds.MaxLat != 2*step || bounds.MaxLon != 3*step {
		t.Errorf("max = (%g, %g), want (%g, %g)", bounds.MaxLat, bounds.MaxLon, 2*step, 3*step)
	}
}
