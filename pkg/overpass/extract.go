package overpass

import (
	"log/slog"
	"time"

	"github.com/citymapgen/citymap/pkg/monitoring"
	"github.com/citymapgen/citymap/pkg/tracing"
)

// Extractor turns a raw Overpass response into typed features of one kind
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an extractor
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("component", "extractor")}
}

// Extract builds features of the given kind from a raw response.
// Elements with no resolvable coordinates and relations whose outer ways
// stitch to zero polylines are dropped, not errors.
func (e *Extractor) Extract(resp *Response, kind FeatureKind) []Feature {
	nodes := extractNodes(resp)
	ways := e.extractWays(resp, nodes)
	relations := extractRelations(resp, ways)

	var features []Feature

	// Standalone ways become single-ring features. Ways consumed by a
	// relation are excluded so holes are not double-rendered as fills.
	inRelation := make(map[int64]struct{})
	for _, rel := range relations {
		for _, w := range rel.Outer {
			inRelation[w.ID] = struct{}{}
		}
		for _, w := range rel.Inner {
			inRelation[w.ID] = struct{}{}
		}
	}

	for _, el := range resp.Elements {
		if el.Type != "way" {
			continue
		}
		if _, ok := inRelation[el.ID]; ok {
			continue
		}
		way, ok := ways[el.ID]
		if !ok {
			continue
		}
		// Only tagged ways are features; bare ways are relation scaffolding
		// pulled in by recursion.
		if len(el.Tags) == 0 {
			continue
		}
		if feature, ok := NewFeature(el.ID, kind, way.Nodes, nil); ok {
			features = append(features, feature)
		} else {
			e.logger.Debug("dropping way with degenerate ring", "id", el.ID, "kind", kind)
			monitoring.RecordFeatureDropped(string(kind), "degenerate_ring")
		}
	}

	start := time.Now()
	for _, rel := range relations {
		features = append(features, e.relationFeatures(rel, kind)...)
	}
	if len(relations) > 0 {
		monitoring.RecordStageRun(tracing.StageStitch, time.Since(start), true)
	}

	monitoring.RecordFeaturesExtracted(string(kind), len(features))
	return features
}

// relationFeatures stitches a relation's ways into features. Each outer
// polyline becomes its own feature carrying all of the relation's inner
// rings; a relation with zero outer polylines is dropped.
func (e *Extractor) relationFeatures(rel Relation, kind FeatureKind) []Feature {
	outers := Stitch(rel.Outer)
	if len(outers) == 0 {
		e.logger.Debug("dropping relation with no outer polylines", "id", rel.ID, "kind", kind)
		monitoring.RecordFeatureDropped(string(kind), "no_outer_ring")
		return nil
	}

	var inners [][]Node
	for _, ring := range Stitch(rel.Inner) {
		if countDistinct(ring) < 3 {
			e.logger.Debug("dropping degenerate inner ring", "relation", rel.ID)
			continue
		}
		inners = append(inners, ring)
	}

	var features []Feature
	for _, outer := range outers {
		if feature, ok := NewFeature(rel.ID, kind, outer, inners); ok {
			features = append(features, feature)
		} else {
			e.logger.Debug("dropping relation polyline with degenerate ring", "id", rel.ID, "kind", kind)
			monitoring.RecordFeatureDropped(string(kind), "degenerate_ring")
		}
	}
	return features
}

// extractNodes indexes node elements by id
func extractNodes(resp *Response) map[int64]Node {
	nodes := make(map[int64]Node)
	for _, el := range resp.Elements {
		if el.Type != "node" {
			continue
		}
		nodes[el.ID] = Node{ID: el.ID, Lat: el.Lat, Lon: el.Lon}
	}
	return nodes
}

// extractWays materializes way elements, resolving node references where
// possible and falling back to the inline geometry payload. Ways with no
// resolvable coordinates are skipped.
func (e *Extractor) extractWays(resp *Response, nodes map[int64]Node) map[int64]Way {
	ways := make(map[int64]Way)
	for _, el := range resp.Elements {
		if el.Type != "way" {
			continue
		}

		var wayNodes []Node
		if len(el.Nodes) > 0 {
			for i, ref := range el.Nodes {
				if node, ok := nodes[ref]; ok {
					wayNodes = append(wayNodes, node)
				} else if i < len(el.Geometry) {
					// Recursion missed the node but the geometry payload has it
					wayNodes = append(wayNodes, Node{ID: ref, Lat: el.Geometry[i].Lat, Lon: el.Geometry[i].Lon})
				}
			}
		} else {
			for _, g := range el.Geometry {
				wayNodes = append(wayNodes, Node{Lat: g.Lat, Lon: g.Lon})
			}
		}

		if len(wayNodes) == 0 {
			e.logger.Debug("skipping way with no coordinate payload", "id", el.ID)
			monitoring.RecordFeatureDropped("way", "empty_geometry")
			continue
		}

		ways[el.ID] = Way{ID: el.ID, Nodes: wayNodes}
	}
	return ways
}

// extractRelations partitions each relation's member ways by role.
// Empty roles are treated as outer; "part" members and non-way members
// are skipped.
func extractRelations(resp *Response, ways map[int64]Way) []Relation {
	var relations []Relation
	for _, el := range resp.Elements {
		if el.Type != "relation" {
			continue
		}

		rel := Relation{ID: el.ID}
		for _, m := range el.Members {
			if m.Type != "way" || m.Role == "part" {
				continue
			}
			way, ok := ways[m.Ref]
			if !ok {
				continue
			}
			switch Role(m.Role) {
			case RoleInner:
				way.Role = RoleInner
				rel.Inner = append(rel.Inner, way)
			default:
				way.Role = RoleOuter
				rel.Outer = append(rel.Outer, way)
			}
		}

		if len(rel.Outer) == 0 && len(rel.Inner) == 0 {
			continue
		}
		relations = append(relations, rel)
	}
	return relations
}
