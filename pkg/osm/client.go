// Package osm provides shared plumbing for talking to OpenStreetMap
// services: a pooled HTTP client, per-service rate limiters and a
// persistent query cache.
package osm

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/citymapgen/citymap/pkg/monitoring"
	"github.com/citymapgen/citymap/pkg/tracing"
)

const (
	// API endpoints
	NominatimBaseURL = "https://nominatim.openstreetmap.org"
	OverpassBaseURL  = "https://overpass-api.de/api/interpreter"

	// DefaultUserAgent is the default User-Agent string
	// (required by Nominatim's usage policy)
	DefaultUserAgent = "citymap/0.1.0"
)

var (
	// Global HTTP client with connection pooling
	httpClient *http.Client

	// Rate limiters for each service
	nominatimLimiter *rate.Limiter
	overpassLimiter  *rate.Limiter

	// User agent string
	userAgent     string
	userAgentLock sync.RWMutex
)

// init initializes the global HTTP client and rate limiters
func init() {
	// Initialize HTTP client with connection pooling
	httpClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: 30 * time.Second,
	}

	// Default to 1 request per second with burst of 1
	nominatimLimiter = rate.NewLimiter(rate.Limit(1), 1)
	overpassLimiter = rate.NewLimiter(rate.Limit(1), 1)

	SetUserAgent(DefaultUserAgent)
}

// UpdateNominatimRateLimits updates the Nominatim rate limiter
func UpdateNominatimRateLimits(rps float64, burst int) {
	nominatimLimiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// UpdateOverpassRateLimits updates the Overpass rate limiter
func UpdateOverpassRateLimits(rps float64, burst int) {
	overpassLimiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// SetUserAgent sets the User-Agent string
func SetUserAgent(ua string) {
	userAgentLock.Lock()
	defer userAgentLock.Unlock()
	userAgent = ua
}

// GetUserAgent returns the current User-Agent string
func GetUserAgent() string {
	userAgentLock.RLock()
	defer userAgentLock.RUnlock()
	return userAgent
}

// GetClient returns the global HTTP client
func GetClient(ctx context.Context) *http.Client {
	return httpClient
}

// hostFromURL extracts the host from a URL string
func hostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Host
}

// waitForRateLimit waits for the appropriate rate limiter based on the request URL
func waitForRateLimit(ctx context.Context, req *http.Request) error {
	host := hostFromURL(req.URL.String())

	var service string
	var limiter *rate.Limiter

	switch host {
	case hostFromURL(NominatimBaseURL):
		service = tracing.ServiceNominatim
		limiter = nominatimLimiter
	case hostFromURL(OverpassBaseURL):
		service = tracing.ServiceOverpass
		limiter = overpassLimiter
	default:
		return nil // No rate limiting for unknown hosts
	}

	// Check if we need to wait
	if !limiter.Allow() {
		startWait := time.Now()

		monitoring.RecordRateLimitExceeded(service)
		tracing.AddEvent(ctx, "rate_limit_wait",
			trace.WithAttributes(
				attribute.String(tracing.AttrRateLimitService, service),
			),
		)

		// Wait for rate limit
		err := limiter.Wait(ctx)

		waitDuration := time.Since(startWait)
		monitoring.RecordRateLimitWait(service, waitDuration)
		tracing.SetAttributes(ctx,
			attribute.String(tracing.AttrRateLimitService, service),
			attribute.Int64(tracing.AttrRateLimitWaitMs, waitDuration.Milliseconds()),
		)

		if err != nil {
			return err
		}
	}

	return nil
}

// WaitForService blocks until the rate limiter for the request's target
// service permits another request. Unknown hosts pass through immediately.
func WaitForService(ctx context.Context, req *http.Request) error {
	return waitForRateLimit(ctx, req)
}
