package overpass

import (
	"fmt"
	"strings"
)

// QueryBuilder provides a fluent interface for building Overpass API queries
type QueryBuilder struct {
	outFormat string
	timeout   int
	center    *locationRadius
	tags      []tagFilter
	elements  []string
	recurse   bool
}

type locationRadius struct {
	Lat    float64
	Lon    float64
	Radius float64
}

type tagFilter struct {
	Key    string
	Values []string
}

// NewQueryBuilder creates a new builder with default settings
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		outFormat: "json",
		timeout:   25, // Default timeout in seconds
	}
}

// WithTimeout sets the query timeout
func (b *QueryBuilder) WithTimeout(seconds int) *QueryBuilder {
	b.timeout = seconds
	return b
}

// WithCenter sets a center point and radius for all element filters
func (b *QueryBuilder) WithCenter(lat, lon, radius float64) *QueryBuilder {
	b.center = &locationRadius{Lat: lat, Lon: lon, Radius: radius}
	return b
}

// WithTag adds a tag filter applied to all element filters
func (b *QueryBuilder) WithTag(key string, values ...string) *QueryBuilder {
	b.tags = append(b.tags, tagFilter{Key: key, Values: values})
	return b
}

// WithWay adds a way filter
func (b *QueryBuilder) WithWay() *QueryBuilder {
	b.elements = append(b.elements, "way")
	return b
}

// WithRelation adds a relation filter
func (b *QueryBuilder) WithRelation() *QueryBuilder {
	b.elements = append(b.elements, "relation")
	return b
}

// WithRecurse appends a member recursion step so relation member ways and
// their nodes are included in the output with real element ids
func (b *QueryBuilder) WithRecurse() *QueryBuilder {
	b.recurse = true
	return b
}

// Build generates the Overpass query string
func (b *QueryBuilder) Build() string {
	var query strings.Builder

	query.WriteString(fmt.Sprintf("[out:%s][timeout:%d];", b.outFormat, b.timeout))

	// Element collection
	query.WriteString("(")
	for _, element := range b.elements {
		query.WriteString(element)
		if b.center != nil {
			query.WriteString(fmt.Sprintf("(around:%.1f,%.6f,%.6f)",
				b.center.Radius, b.center.Lat, b.center.Lon))
		}
		for _, tag := range b.tags {
			query.WriteString(buildTagFilter(tag))
		}
		query.WriteString(";")
	}
	query.WriteString(");")

	query.WriteString("out body geom;")
	if b.recurse {
		// Pull in member ways and nodes so relations can be resolved
		query.WriteString(">;out body;")
	}

	return query.String()
}

// buildTagFilter generates the query part for a tag filter
func buildTagFilter(filter tagFilter) string {
	// If no values provided, just check for the existence of the tag
	if len(filter.Values) == 0 {
		return fmt.Sprintf("[%s]", filter.Key)
	}

	if len(filter.Values) == 1 {
		// Special case for "*" meaning any value
		if filter.Values[0] == "*" {
			return fmt.Sprintf("[%s]", filter.Key)
		}
		return fmt.Sprintf("[%s=%s]", filter.Key, filter.Values[0])
	}

	// Multiple values using regex
	values := strings.Join(filter.Values, "|")
	return fmt.Sprintf("[%s~\"%s\"]", filter.Key, values)
}

// FeatureQuery builds the standard per-category query: ways and relations
// carrying the category tag within radius meters of a center point, with
// member recursion for relation resolution.
func FeatureQuery(kind FeatureKind, lat, lon, radius float64) string {
	return NewQueryBuilder().
		WithCenter(lat, lon, radius).
		WithTag(kind.Tag()).
		WithWay().
		WithRelation().
		WithRecurse().
		Build()
}
