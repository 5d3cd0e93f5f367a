package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/citymapgen/citymap/pkg/core"
	"github.com/citymapgen/citymap/pkg/osm"
)

func fastRetry() core.RetryOptions {
	return core.RetryOptions{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestClientFeaturesEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"elements":[]}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRetryOptions(fastRetry()))
	features, err := client.Features(context.Background(), KindPark, 41.9, 12.5, 1000)
	if err != nil {
		t.Fatalf("zero elements must not be an error, got %v", err)
	}
	if len(features) != 0 {
		t.Errorf("expected 0 features, got %d", len(features))
	}
}

func TestClientFeaturesDecodesWays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		w.Write([]byte(`{"elements":[
			{"type":"way","id":1,"tags":{"building":"yes"},"nodes":[1,2,3,1]},
			{"type":"node","id":1,"lat":0,"lon":0},
			{"type":"node","id":2,"lat":0,"lon":1},
			{"type":"node","id":3,"lat":1,"lon":1}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRetryOptions(fastRetry()))
	features, err := client.Features(context.Background(), KindBuilding, 0, 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(features))
	}
}

func TestClientFeaturesUsesCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"elements":[]}`))
	}))
	defer srv.Close()

	cache, err := osm.NewQueryCache(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}

	client := NewClient(WithBaseURL(srv.URL), WithCache(cache), WithRetryOptions(fastRetry()))
	for i := 0; i < 3; i++ {
		if _, err := client.Features(context.Background(), KindWater, 1, 2, 300); err != nil {
			t.Fatal(err)
		}
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected 1 upstream request with caching, got %d", got)
	}
}

func TestClientFeaturesServiceErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRetryOptions(fastRetry()))
	_, err := client.Features(context.Background(), KindRoad, 0, 0, 100)
	if err == nil {
		t.Fatal("expected an error after retry exhaustion")
	}

	pipeErr, ok := err.(*core.Error)
	if !ok {
		t.Fatalf("expected *core.Error, got %T", err)
	}
	if pipeErr.Kind() != core.KindService {
		t.Errorf("network exhaustion should be a service error, got kind %v", pipeErr.Kind())
	}
}

func TestClientFeaturesParseErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRetryOptions(fastRetry()))
	_, err := client.Features(context.Background(), KindRoad, 0, 0, 100)
	if err == nil {
		t.Fatal("expected a parse error")
	}
	pipeErr, ok := err.(*core.Error)
	if !ok || pipeErr.Code != core.ErrParseError {
		t.Errorf("expected PARSE_ERROR, got %v", err)
	}
}
