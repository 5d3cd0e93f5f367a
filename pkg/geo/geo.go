// Package geo provides primitive geographic types and calculations
// shared across the map generation pipeline.
package geo

import (
	"fmt"
	"math"
)

const (
	// EarthRadius is the approximate radius of the Earth in meters
	EarthRadius = 6371000.0
)

// Location represents a geographic coordinate in decimal degrees (WGS84)
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// BoundingBox represents a geographic bounding box
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// NewBoundingBox creates an empty bounding box that extends to fit
// the first coordinate added to it
func NewBoundingBox() *BoundingBox {
	return &BoundingBox{
		MinLat: math.MaxFloat64,
		MinLon: math.MaxFloat64,
		MaxLat: -math.MaxFloat64,
		MaxLon: -math.MaxFloat64,
	}
}

// ExtendWith grows the bounding box to include the given coordinate
func (b *BoundingBox) ExtendWith(lat, lon float64) {
	if lat < b.MinLat {
		b.MinLat = lat
	}
	if lat > b.MaxLat {
		b.MaxLat = lat
	}
	if lon < b.MinLon {
		b.MinLon = lon
	}
	if lon > b.MaxLon {
		b.MaxLon = lon
	}
}

// Union grows the bounding box to include another bounding box
func (b *BoundingBox) Union(other BoundingBox) {
	b.ExtendWith(other.MinLat, other.MinLon)
	b.ExtendWith(other.MaxLat, other.MaxLon)
}

// IsEmpty reports whether the bounding box has never been extended
func (b *BoundingBox) IsEmpty() bool {
	return b.MinLat > b.MaxLat || b.MinLon > b.MaxLon
}

// Intersects reports whether two bounding boxes overlap
func (b *BoundingBox) Intersects(other BoundingBox) bool {
	return b.MinLat <= other.MaxLat &&
		b.MaxLat >= other.MinLat &&
		b.MinLon <= other.MaxLon &&
		b.MaxLon >= other.MinLon
}

// Center returns the midpoint of the bounding box
func (b *BoundingBox) Center() Location {
	return Location{
		Latitude:  (b.MinLat + b.MaxLat) / 2,
		Longitude: (b.MinLon + b.MaxLon) / 2,
	}
}

// Height returns the latitude span of the bounding box in degrees
func (b *BoundingBox) Height() float64 {
	return b.MaxLat - b.MinLat
}

// Width returns the longitude span of the bounding box in degrees
func (b *BoundingBox) Width() float64 {
	return b.MaxLon - b.MinLon
}

// HaversineDistance calculates the great-circle distance between two
// points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}

// ValidateCoords validates latitude and longitude values
// Returns an error if the coordinates are invalid
func ValidateCoords(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("invalid latitude: %f (must be between -90 and 90)", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("invalid longitude: %f (must be between -180 and 180)", lon)
	}
	return nil
}
