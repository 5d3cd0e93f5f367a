package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/citymapgen/citymap/pkg/core"
	"github.com/citymapgen/citymap/pkg/monitoring"
	"github.com/citymapgen/citymap/pkg/osm"
	"github.com/citymapgen/citymap/pkg/tracing"
)

// Client queries the Overpass API for map features
type Client struct {
	baseURL   string
	cache     *osm.QueryCache
	extractor *Extractor
	retry     core.RetryOptions
	logger    *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the Overpass interpreter endpoint
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithCache attaches a query cache; without one every call fetches
func WithCache(cache *osm.QueryCache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithRetryOptions overrides the retry policy
func WithRetryOptions(opts core.RetryOptions) Option {
	return func(c *Client) { c.retry = opts }
}

// WithLogger sets the logger for the client
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates an Overpass client
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: osm.OverpassBaseURL,
		retry:   core.DefaultRetryOptions,
		logger:  slog.Default().With("service", tracing.ServiceOverpass),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.extractor = NewExtractor(c.logger)
	return c
}

// Features fetches and extracts all features of one kind around a center
// point. Responses are served from the cache when available.
func (c *Client) Features(ctx context.Context, kind FeatureKind, lat, lon, radius float64) ([]Feature, error) {
	query := FeatureQuery(kind, lat, lon, radius)

	ctx, span := tracing.StartSpan(ctx, "overpass.features",
		trace.WithAttributes(
			attribute.String(tracing.AttrServiceName, tracing.ServiceOverpass),
			attribute.String("osm.feature.kind", string(kind)),
			attribute.Float64("osm.query.radius", radius),
		),
	)
	defer span.End()

	body, err := c.fetch(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		span.SetStatus(codes.Error, "decode failed")
		return nil, core.NewError(core.ErrParseError, "failed to decode Overpass response").
			WithQuery(query)
	}

	c.logger.Debug("overpass response decoded", "kind", kind, "elements", len(resp.Elements))

	start := time.Now()
	features := c.extractor.Extract(&resp, kind)
	monitoring.RecordStageRun(tracing.StageExtract, time.Since(start), true)
	span.SetAttributes(attribute.Int(tracing.AttrStageFeatures, len(features)))
	span.SetStatus(codes.Ok, "")
	return features, nil
}

// fetch returns the raw response body for a query, via the cache when
// one is configured
func (c *Client) fetch(ctx context.Context, query string) ([]byte, error) {
	if c.cache == nil {
		return c.request(ctx, query)
	}
	return c.cache.GetOrFetch(ctx, osm.Key(query), func(ctx context.Context) ([]byte, error) {
		return c.request(ctx, query)
	})
}

// request POSTs the query to the interpreter with rate limiting and
// bounded retries
func (c *Client) request(ctx context.Context, query string) ([]byte, error) {
	start := time.Now()

	factory := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL,
			strings.NewReader("data="+url.QueryEscape(query)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", osm.GetUserAgent())
		if err := osm.WaitForService(ctx, req); err != nil {
			return nil, err
		}
		return req, nil
	}

	resp, err := core.WithRetryFactory(ctx, factory, osm.GetClient(ctx), c.retry)
	if err != nil {
		monitoring.RecordExternalServiceRequest(tracing.ServiceOverpass, "features", time.Since(start), false)
		c.logger.Error("overpass request failed", "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		monitoring.RecordExternalServiceRequest(tracing.ServiceOverpass, "features", time.Since(start), false)
		return nil, fmt.Errorf("reading Overpass response: %w", err)
	}

	monitoring.RecordExternalServiceRequest(tracing.ServiceOverpass, "features", time.Since(start), true)
	return body, nil
}
