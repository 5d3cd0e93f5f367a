package overpass

import (
	"strings"
	"testing"
)

func TestQueryBuilderBasic(t *testing.T) {
	query := NewQueryBuilder().
		WithCenter(41.9, 12.5, 1000).
		WithTag("building").
		WithWay().
		WithRelation().
		Build()

	if !strings.HasPrefix(query, "[out:json][timeout:25];") {
		t.Errorf("unexpected query prefix: %s", query)
	}
	if !strings.Contains(query, "way(around:1000.0,41.900000,12.500000)[building];") {
		t.Errorf("missing way filter: %s", query)
	}
	if !strings.Contains(query, "relation(around:1000.0,41.900000,12.500000)[building];") {
		t.Errorf("missing relation filter: %s", query)
	}
	if !strings.Contains(query, "out body geom;") {
		t.Errorf("missing output directive: %s", query)
	}
}

func TestQueryBuilderRecurse(t *testing.T) {
	query := NewQueryBuilder().
		WithTag("natural").
		WithRelation().
		WithRecurse().
		Build()

	if !strings.Contains(query, ">;out body;") {
		t.Errorf("missing recursion step: %s", query)
	}
}

func TestQueryBuilderTagValues(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		values []string
		want   string
	}{
		{"Existence check", "building", nil, "[building]"},
		{"Single value", "highway", []string{"residential"}, "[highway=residential]"},
		{"Wildcard", "leisure", []string{"*"}, "[leisure]"},
		{"Multiple values", "natural", []string{"water", "bay"}, `[natural~"water|bay"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := NewQueryBuilder().WithTag(tt.key, tt.values...).WithWay().Build()
			if !strings.Contains(query, tt.want) {
				t.Errorf("query %q missing %q", query, tt.want)
			}
		})
	}
}

func TestFeatureQueryPerKind(t *testing.T) {
	tests := []struct {
		kind FeatureKind
		tag  string
	}{
		{KindBuilding, "[building]"},
		{KindRoad, "[highway]"},
		{KindPark, "[leisure]"},
		{KindWater, "[natural]"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			query := FeatureQuery(tt.kind, 47.49, 19.04, 500)
			if !strings.Contains(query, tt.tag) {
				t.Errorf("query for %s missing tag filter %s: %s", tt.kind, tt.tag, query)
			}
			if !strings.Contains(query, "around:500.0,47.490000,19.040000") {
				t.Errorf("query for %s missing around filter: %s", tt.kind, query)
			}
		})
	}
}
