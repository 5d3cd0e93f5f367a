// Package overpass fetches raw map data from the Overpass API and
// assembles it into closed polygonal features.
package overpass

import (
	"github.com/citymapgen/citymap/pkg/geo"
)

// FeatureKind tags the category of a map feature. All kinds share one
// shape and differ only in how the renderer styles them.
type FeatureKind string

const (
	KindBuilding FeatureKind = "building"
	KindRoad     FeatureKind = "road"
	KindPark     FeatureKind = "park"
	KindWater    FeatureKind = "water"
)

// Tag returns the OSM tag queried for this feature kind
func (k FeatureKind) Tag() string {
	switch k {
	case KindBuilding:
		return "building"
	case KindRoad:
		return "highway"
	case KindPark:
		return "leisure"
	case KindWater:
		return "natural"
	default:
		return ""
	}
}

// Kinds lists all feature kinds in load order
func Kinds() []FeatureKind {
	return []FeatureKind{KindBuilding, KindRoad, KindPark, KindWater}
}

// Element represents a raw element returned from the Overpass API
type Element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      float64           `json:"lat,omitempty"`
	Lon      float64           `json:"lon,omitempty"`
	Nodes    []int64           `json:"nodes,omitempty"` // For ways, list of node IDs
	Geometry []LatLon          `json:"geometry,omitempty"`
	Members  []Member          `json:"members,omitempty"` // For relations
	Tags     map[string]string `json:"tags,omitempty"`
}

// LatLon is a bare coordinate pair in a way geometry payload
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Member is a role-tagged member of a relation
type Member struct {
	Type string `json:"type"`
	Ref  int64  `json:"ref"`
	Role string `json:"role"`
}

// Response is the top-level Overpass API response
type Response struct {
	Elements []Element `json:"elements"`
}

// Node is a single geographic point. Identity is the element id when one
// exists; ways carrying only a geometry payload synthesize ids from the
// exact coordinate pair so endpoint matching still works.
type Node struct {
	ID  int64
	Lat float64
	Lon float64
}

// Same reports whether two nodes are the same point. Nodes with ids
// compare by id; synthesized nodes compare by exact coordinates.
func (n Node) Same(other Node) bool {
	if n.ID != 0 && other.ID != 0 {
		return n.ID == other.ID
	}
	return n.Lat == other.Lat && n.Lon == other.Lon
}

// Role tags a way's position in a relation
type Role string

const (
	RoleOuter Role = "outer"
	RoleInner Role = "inner"
)

// Way is one line-segment fragment of a feature. It exists only between
// extraction and stitching.
type Way struct {
	ID    int64
	Nodes []Node
	Role  Role
}

// Relation is a feature assembled from role-tagged ways. Transient, like Way.
type Relation struct {
	ID    int64
	Outer []Way
	Inner []Way
}

// Feature is one closed (ideally) polygonal map feature: an outer ring,
// optional inner rings (holes), and geometry derived once at construction.
type Feature struct {
	ID     int64
	Kind   FeatureKind
	Outer  []Node
	Inner  [][]Node
	Bounds geo.BoundingBox
	Center geo.Location
}

// NewFeature builds a feature from rings, computing the bounding box over
// the outer ring and the center as the bbox midpoint. Returns false if
// the outer ring has fewer than 3 distinct points.
func NewFeature(id int64, kind FeatureKind, outer []Node, inner [][]Node) (Feature, bool) {
	if countDistinct(outer) < 3 {
		return Feature{}, false
	}

	bounds := geo.NewBoundingBox()
	for _, n := range outer {
		bounds.ExtendWith(n.Lat, n.Lon)
	}

	return Feature{
		ID:     id,
		Kind:   kind,
		Outer:  outer,
		Inner:  inner,
		Bounds: *bounds,
		Center: bounds.Center(),
	}, true
}

// countDistinct counts distinct points in a ring
func countDistinct(nodes []Node) int {
	seen := make(map[[2]float64]struct{}, len(nodes))
	for _, n := range nodes {
		seen[[2]float64{n.Lat, n.Lon}] = struct{}{}
	}
	return len(seen)
}
