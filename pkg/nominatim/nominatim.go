// Package nominatim resolves free-text place names to geographic
// locations via the Nominatim search API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/citymapgen/citymap/pkg/core"
	"github.com/citymapgen/citymap/pkg/geo"
	"github.com/citymapgen/citymap/pkg/monitoring"
	"github.com/citymapgen/citymap/pkg/osm"
	"github.com/citymapgen/citymap/pkg/tracing"
)

// Place is the best-match location for a place name
type Place struct {
	ID          int64           `json:"place_id"`
	Lat         float64         `json:"lat"`
	Lon         float64         `json:"lon"`
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	BoundingBox geo.BoundingBox `json:"boundingbox"`
}

// searchResult mirrors one entry of a jsonv2 search response. Nominatim
// returns numbers as strings.
type searchResult struct {
	PlaceID     int64    `json:"place_id"`
	Lat         string   `json:"lat"`
	Lon         string   `json:"lon"`
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Importance  float64  `json:"importance"`
	BoundingBox []string `json:"boundingbox"`
}

// Client queries the Nominatim search API
type Client struct {
	baseURL string
	retry   core.RetryOptions
	logger  *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the Nominatim endpoint
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRetryOptions overrides the retry policy
func WithRetryOptions(opts core.RetryOptions) Option {
	return func(c *Client) { c.retry = opts }
}

// NewClient creates a Nominatim client
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: osm.NominatimBaseURL,
		retry:   core.DefaultRetryOptions,
		logger:  slog.Default().With("service", tracing.ServiceNominatim),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FindPlace resolves a place name to its most important match.
// A name with no candidates fails with PLACE_NOT_FOUND.
func (c *Client) FindPlace(ctx context.Context, name string) (*Place, error) {
	if name == "" {
		return nil, core.NewError(core.ErrEmptyParameter, "place name must not be empty")
	}

	ctx, span := tracing.StartSpan(ctx, "nominatim.find_place",
		trace.WithAttributes(
			attribute.String(tracing.AttrServiceName, tracing.ServiceNominatim),
			attribute.String("osm.place.query", name),
		),
	)
	defer span.End()

	start := time.Now()
	reqURL := fmt.Sprintf("%s/search?q=%s&format=jsonv2", c.baseURL, url.QueryEscape(name))

	factory := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", osm.GetUserAgent())
		if err := osm.WaitForService(ctx, req); err != nil {
			return nil, err
		}
		return req, nil
	}

	resp, err := core.WithRetryFactory(ctx, factory, osm.GetClient(ctx), c.retry)
	if err != nil {
		monitoring.RecordExternalServiceRequest(tracing.ServiceNominatim, "search", time.Since(start), false)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		monitoring.RecordExternalServiceRequest(tracing.ServiceNominatim, "search", time.Since(start), false)
		return nil, fmt.Errorf("reading Nominatim response: %w", err)
	}
	monitoring.RecordExternalServiceRequest(tracing.ServiceNominatim, "search", time.Since(start), true)

	var results []searchResult
	if err := json.Unmarshal(body, &results); err != nil {
		span.SetStatus(codes.Error, "decode failed")
		return nil, core.NewError(core.ErrParseError, "failed to decode Nominatim response")
	}

	if len(results) == 0 {
		span.SetStatus(codes.Error, "no results")
		return nil, core.NewError(core.ErrPlaceNotFound, fmt.Sprintf("no match for %q", name)).
			WithQuery(name).
			WithGuidance("Check the spelling or try a more specific name")
	}

	// Prefer the most important match
	sort.Slice(results, func(i, j int) bool {
		return results[i].Importance > results[j].Importance
	})
	best := results[0]

	place, err := best.toPlace()
	if err != nil {
		span.SetStatus(codes.Error, "malformed result")
		return nil, core.NewError(core.ErrParseError, fmt.Sprintf("malformed Nominatim result: %v", err))
	}

	c.logger.Info("resolved place",
		"query", name,
		"display_name", place.DisplayName,
		"lat", place.Lat,
		"lon", place.Lon,
	)
	span.SetStatus(codes.Ok, "")
	return place, nil
}

// toPlace converts the string-typed wire result into a Place
func (r searchResult) toPlace() (*Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing lat %q: %w", r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing lon %q: %w", r.Lon, err)
	}
	if err := geo.ValidateCoords(lat, lon); err != nil {
		return nil, err
	}

	place := &Place{
		ID:          r.PlaceID,
		Lat:         lat,
		Lon:         lon,
		Name:        r.Name,
		DisplayName: r.DisplayName,
	}

	// boundingbox arrives as [minLat, maxLat, minLon, maxLon] strings
	if len(r.BoundingBox) == 4 {
		vals := make([]float64, 4)
		for i, s := range r.BoundingBox {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing boundingbox entry %q: %w", s, err)
			}
			vals[i] = v
		}
		place.BoundingBox = geo.BoundingBox{
			MinLat: vals[0],
			MaxLat: vals[1],
			MinLon: vals[2],
			MaxLon: vals[3],
		}
	}

	return place, nil
}
