// Command citymap generates a stylized city map render plan: it looks
// up a place, pulls the surrounding buildings, roads, parks and water
// from OpenStreetMap, colors bordering buildings apart, and writes the
// result as a JSON plan for a renderer to draw.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/citymapgen/citymap/pkg/citymap"
	"github.com/citymapgen/citymap/pkg/core"
	"github.com/citymapgen/citymap/pkg/nominatim"
	"github.com/citymapgen/citymap/pkg/osm"
	"github.com/citymapgen/citymap/pkg/overpass"
	"github.com/citymapgen/citymap/pkg/style"
	"github.com/citymapgen/citymap/pkg/tracing"
	ver "github.com/citymapgen/citymap/pkg/version"
)

var (
	showVersionFlag bool
	debug           bool
	listStyles      bool
	userAgent       string

	// Map generation flags
	radius     float64
	styleName  string
	stylesFile string
	seed       int64
	randomFill bool
	attempts   int
	width      int
	height     int
	output     string

	// Layer toggles
	noBuildings bool
	noRoads     bool
	noParks     bool
	noWater     bool

	// Cache flags
	cacheDir string
	cacheTTL time.Duration

	// Monitoring flags
	enableMonitoring bool
	monitoringAddr   string

	// Rate limits for each service
	nominatimRPS   float64
	nominatimBurst int
	overpassRPS    float64
	overpassBurst  int
)

func init() {
	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&listStyles, "list-styles", false, "List available styles and exit")
	flag.StringVar(&userAgent, "user-agent", osm.DefaultUserAgent, "User-Agent string for OSM API requests")

	flag.Float64Var(&radius, "radius", 1000, "Fetch radius around the place center in meters")
	flag.StringVar(&styleName, "style", "bauhaus", "Render style name")
	flag.StringVar(&stylesFile, "styles", "", "Load styles from a YAML file instead of the built-in set")
	flag.Int64Var(&seed, "seed", 0, "Random seed for color assignment (0 means time-based)")
	flag.BoolVar(&randomFill, "random-fill", false, "Assign building colors randomly without conflict avoidance")
	flag.IntVar(&attempts, "attempts", citymap.DefaultColoringAttempts, "Maximum coloring attempts")
	flag.IntVar(&width, "width", 2000, "Canvas width in pixels")
	flag.IntVar(&height, "height", 2000, "Canvas height in pixels")
	flag.StringVar(&output, "output", "", "Write the render plan to this file instead of stdout")

	flag.BoolVar(&noBuildings, "no-buildings", false, "Leave buildings out of the render plan")
	flag.BoolVar(&noRoads, "no-roads", false, "Leave roads out of the render plan")
	flag.BoolVar(&noParks, "no-parks", false, "Leave parks out of the render plan")
	flag.BoolVar(&noWater, "no-water", false, "Leave water out of the render plan")

	flag.StringVar(&cacheDir, "cache-dir", defaultCacheDir(), "Directory for cached Overpass responses")
	flag.DurationVar(&cacheTTL, "cache-ttl", 24*time.Hour, "How long cached responses stay valid")

	flag.BoolVar(&enableMonitoring, "enable-monitoring", false, "Enable the Prometheus metrics endpoint")
	flag.StringVar(&monitoringAddr, "monitoring-addr", ":9090", "Monitoring server address")

	flag.Float64Var(&nominatimRPS, "nominatim-rps", 1.0, "Nominatim rate limit in requests per second")
	flag.IntVar(&nominatimBurst, "nominatim-burst", 1, "Nominatim rate limit burst size")
	flag.Float64Var(&overpassRPS, "overpass-rps", 1.0, "Overpass rate limit in requests per second")
	flag.IntVar(&overpassBurst, "overpass-burst", 1, "Overpass rate limit burst size")
}

func main() {
	flag.Parse()

	var logLevel slog.Level
	if debug {
		logLevel = slog.LevelDebug
	} else {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if showVersionFlag {
		fmt.Println(ver.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		// Continue without tracing - it's not critical
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
		if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	factory, err := styleFactory()
	if err != nil {
		logger.Error("failed to load styles", "error", err)
		os.Exit(1)
	}
	if listStyles {
		for _, name := range factory.Names() {
			fmt.Println(name)
		}
		return
	}

	place := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if place == "" {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] PLACE NAME\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(1)
	}

	if userAgent != osm.DefaultUserAgent {
		osm.SetUserAgent(userAgent)
	}
	if nominatimRPS != 1.0 || nominatimBurst != 1 {
		osm.UpdateNominatimRateLimits(nominatimRPS, nominatimBurst)
	}
	if overpassRPS != 1.0 || overpassBurst != 1 {
		osm.UpdateOverpassRateLimits(overpassRPS, overpassBurst)
	}

	if enableMonitoring {
		startMonitoringServer(ctx, logger)
	}

	if err := run(ctx, logger, factory, place); err != nil {
		logger.Error("map generation failed", "error", err)
		var ce *core.Error
		if errors.As(err, &ce) && ce.Kind() == core.KindService {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, factory *style.Factory, place string) error {
	st, err := factory.Style(styleName)
	if err != nil {
		return err
	}

	cache, err := osm.NewQueryCache(cacheDir, cacheTTL)
	if err != nil {
		return err
	}

	rngSeed := seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	logger.Info("generating map",
		"place", place,
		"radius", radius,
		"style", styleName,
		"seed", rngSeed,
		"random_fill", randomFill,
		"canvas", fmt.Sprintf("%dx%d", width, height))

	session, err := citymap.New(citymap.Options{
		Nominatim:     nominatim.NewClient(),
		Overpass:      overpass.NewClient(overpass.WithCache(cache)),
		Style:         st,
		RandomFill:    randomFill,
		MaxAttempts:   attempts,
		OmitBuildings: noBuildings,
		OmitRoads:     noRoads,
		OmitParks:     noParks,
		OmitWater:     noWater,
		Rand:          rand.New(rand.NewSource(rngSeed)),
		Progress:      logProgress(logger),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	stats, err := session.Load(ctx, place, radius)
	if err != nil {
		return err
	}
	logger.Info("features loaded",
		"buildings", stats.Buildings,
		"roads", stats.Roads,
		"parks", stats.Parks,
		"water", stats.Water,
		"nodes", stats.Nodes,
		"duration", time.Since(start))

	plan, err := session.RenderPlan(width, height)
	if err != nil {
		return err
	}

	var renderer citymap.Renderer = &jsonRenderer{path: output}
	return renderer.Render(ctx, plan)
}

// logProgress reports adjacency progress at 10% steps
func logProgress(logger *slog.Logger) citymap.ProgressFunc {
	last := -1
	return func(u citymap.ProgressUpdate) {
		step := u.Percent / 10
		if step == last {
			return
		}
		last = step
		logger.Info("resolving adjacency",
			"percent", u.Percent,
			"elapsed", u.Elapsed.Round(time.Millisecond),
			"remaining", u.Remaining.Round(time.Millisecond))
	}
}

// jsonRenderer writes the render plan as JSON to a file, or stdout when
// no path is set. Raster compositing lives in external renderers.
type jsonRenderer struct {
	path string
}

func (r *jsonRenderer) Render(ctx context.Context, plan *citymap.Plan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding render plan: %w", err)
	}

	if r.path == "" {
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("writing render plan: %w", err)
	}
	return nil
}

func styleFactory() (*style.Factory, error) {
	if stylesFile != "" {
		return style.NewFactoryFromFile(stylesFile)
	}
	return style.NewFactory()
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "citymap")
	}
	return filepath.Join(os.TempDir(), "citymap-cache")
}

// startMonitoringServer serves Prometheus metrics until ctx is done
func startMonitoringServer(ctx context.Context, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok\n")
	})

	srv := &http.Server{
		Addr:              monitoringAddr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting Prometheus metrics server", "addr", monitoringAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("monitoring server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown monitoring server", "error", err)
		}
	}()
}
