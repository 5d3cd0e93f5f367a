package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for pipeline operations
const (
	// Pipeline stage attributes
	AttrStageName     = "citymap.stage.name"
	AttrStageStatus   = "citymap.stage.status"
	AttrStageDuration = "citymap.stage.duration_ms"
	AttrStageFeatures = "citymap.stage.feature_count"

	// External service attributes
	AttrServiceName      = "osm.service.name"
	AttrServiceOperation = "osm.service.operation"
	AttrServiceURL       = "osm.service.url"
	AttrServiceStatus    = "osm.service.status"

	// Cache attributes
	AttrCacheType = "osm.cache.type"
	AttrCacheHit  = "osm.cache.hit"
	AttrCacheKey  = "osm.cache.key"

	// Rate limiting attributes
	AttrRateLimitService = "osm.ratelimit.service"
	AttrRateLimitWaitMs  = "osm.ratelimit.wait_ms"

	// HTTP transport attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusTimeout     = "timeout"
	StatusRateLimited = "rate_limited"
)

// Service names
const (
	ServiceNominatim = "nominatim"
	ServiceOverpass  = "overpass"
)

// Stage names
const (
	StageFetch     = "fetch"
	StageExtract   = "extract"
	StageStitch    = "stitch"
	StageAdjacency = "adjacency"
	StageColoring  = "coloring"
	StageNormalize = "normalize"
)

// Cache types
const (
	CacheTypeMemory = "memory"
	CacheTypeFile   = "file"
)

// StageAttributes returns attributes for a pipeline stage
func StageAttributes(stage, status string, durationMs int64, featureCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrStageName, stage),
		attribute.String(AttrStageStatus, status),
		attribute.Int64(AttrStageDuration, durationMs),
		attribute.Int(AttrStageFeatures, featureCount),
	}
}

// ServiceAttributes returns attributes for external service calls
func ServiceAttributes(service, operation, url string, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrServiceName, service),
		attribute.String(AttrServiceOperation, operation),
		attribute.String(AttrServiceURL, url),
		attribute.Int(AttrServiceStatus, status),
	}
}

// CacheAttributes returns attributes for cache operations
func CacheAttributes(cacheType string, hit bool, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheKey, key),
	}
}

// ErrorAttributes returns attributes for errors
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, "error"),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
