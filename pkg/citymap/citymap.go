// Package citymap orchestrates the map generation pipeline: resolve a
// place name, fetch and assemble features around it, work out which
// buildings border each other, color them conflict-free, and project
// everything onto a render plan.
package citymap

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/paulmach/orb"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/citymapgen/citymap/pkg/core"
	"github.com/citymapgen/citymap/pkg/monitoring"
	"github.com/citymapgen/citymap/pkg/nominatim"
	"github.com/citymapgen/citymap/pkg/overpass"
	"github.com/citymapgen/citymap/pkg/style"
	"github.com/citymapgen/citymap/pkg/tracing"
)

// Options configures a Session
type Options struct {
	Nominatim *nominatim.Client
	Overpass  *overpass.Client
	Style     style.Style

	// RandomFill assigns random palette indices without resolving
	// adjacency. Adjacent buildings may share a color.
	RandomFill bool

	// MaxAttempts bounds the coloring retries. Zero means
	// DefaultColoringAttempts.
	MaxAttempts int

	// MaxBorderDistance in meters for the adjacency candidate
	// filter. Zero means DefaultMaxBorderDistance.
	MaxBorderDistance float64

	// Layer toggles. An omitted layer is left out of the render plan;
	// omitted buildings still frame the canvas.
	OmitBuildings bool
	OmitRoads     bool
	OmitParks     bool
	OmitWater     bool

	// Progress, when set, receives adjacency resolution updates
	Progress ProgressFunc

	// Rand drives color selection. Nil means a time-seeded source.
	Rand *rand.Rand

	Logger *slog.Logger
}

// LoadStats summarizes what Load pulled in
type LoadStats struct {
	Buildings int `json:"buildings"`
	Roads     int `json:"roads"`
	Parks     int `json:"parks"`
	Water     int `json:"water"`
	Nodes     int `json:"nodes"`
}

// Session holds the loaded features for one place. Create with New,
// populate with Load, then project with RenderPlan.
type Session struct {
	opts   Options
	logger *slog.Logger
	rng    *rand.Rand

	place     *nominatim.Place
	radius    float64
	buildings []*Building
	roads     []overpass.Feature
	parks     []overpass.Feature
	water     []overpass.Feature
	coloring  ColoringResult
}

// New creates a session. Nominatim and Overpass clients are required.
func New(opts Options) (*Session, error) {
	if opts.Nominatim == nil || opts.Overpass == nil {
		return nil, fmt.Errorf("citymap: both Nominatim and Overpass clients are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Session{opts: opts, logger: logger, rng: rng}, nil
}

// Place returns the resolved place, nil before Load succeeds
func (s *Session) Place() *nominatim.Place {
	return s.place
}

// Buildings returns the loaded buildings with their render state
func (s *Session) Buildings() []*Building {
	return s.buildings
}

// Coloring returns the outcome of the last color assignment
func (s *Session) Coloring() ColoringResult {
	return s.coloring
}

// Load resolves the place name and pulls every feature category within
// radius meters of it, then resolves adjacency and assigns colors.
// Categories are fetched sequentially so both upstream services see at
// most one in-flight request from a session.
func (s *Session) Load(ctx context.Context, cityName string, radius float64) (*LoadStats, error) {
	if radius <= 0 {
		return nil, core.NewError(core.ErrInvalidInput, fmt.Sprintf("radius must be positive, got %g", radius))
	}

	ctx, span := tracing.StartSpan(ctx, "citymap.load",
		trace.WithAttributes(
			attribute.String("citymap.place", cityName),
			attribute.Float64("citymap.radius", radius),
		),
	)
	defer span.End()

	place, err := s.opts.Nominatim.FindPlace(ctx, cityName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "place lookup failed")
		return nil, err
	}
	s.place = place
	s.radius = radius
	s.logger.Info("place resolved",
		"name", place.Name,
		"display_name", place.DisplayName,
		"lat", place.Lat,
		"lon", place.Lon)

	stats := &LoadStats{}
	for _, kind := range overpass.Kinds() {
		features, err := s.fetchKind(ctx, kind, place, radius)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "feature fetch failed")
			return nil, err
		}
		switch kind {
		case overpass.KindBuilding:
			s.buildings = make([]*Building, 0, len(features))
			for i := range features {
				s.buildings = append(s.buildings, NewBuilding(&features[i]))
			}
			stats.Buildings = len(features)
		case overpass.KindRoad:
			s.roads = features
			stats.Roads = len(features)
		case overpass.KindPark:
			s.parks = features
			stats.Parks = len(features)
		case overpass.KindWater:
			s.water = features
			stats.Water = len(features)
		}
		for i := range features {
			stats.Nodes += len(features[i].Outer)
			for _, inner := range features[i].Inner {
				stats.Nodes += len(inner)
			}
		}
	}

	if s.opts.RandomFill {
		s.randomFill()
	} else {
		s.resolveAndColor(ctx)
	}

	span.SetStatus(codes.Ok, "")
	return stats, nil
}

func (s *Session) fetchKind(ctx context.Context, kind overpass.FeatureKind, place *nominatim.Place, radius float64) ([]overpass.Feature, error) {
	start := time.Now()
	features, err := s.opts.Overpass.Features(ctx, kind, place.Lat, place.Lon, radius)
	monitoring.RecordStageRun(tracing.StageFetch, time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	s.logger.Info("features loaded", "kind", kind, "count", len(features))
	return features, nil
}

func (s *Session) resolveAndColor(ctx context.Context) {
	_, span := tracing.StartSpan(ctx, "citymap.adjacency",
		trace.WithAttributes(
			attribute.String(tracing.AttrStageName, tracing.StageAdjacency),
			attribute.Int(tracing.AttrStageFeatures, len(s.buildings)),
		),
	)
	start := time.Now()
	ResolveAdjacency(s.buildings, s.radius, AdjacencyOptions{
		MaxDistance: s.opts.MaxBorderDistance,
		Progress:    s.opts.Progress,
		Logger:      s.logger,
	})
	monitoring.RecordStageRun(tracing.StageAdjacency, time.Since(start), true)
	span.End()

	_, span = tracing.StartSpan(ctx, "citymap.coloring",
		trace.WithAttributes(
			attribute.String(tracing.AttrStageName, tracing.StageColoring),
			attribute.Int(tracing.AttrStageFeatures, len(s.buildings)),
		),
	)
	start = time.Now()
	s.coloring = AssignColors(s.buildings, len(s.opts.Style.BuildingsFill), s.opts.MaxAttempts, s.rng)
	monitoring.RecordStageRun(tracing.StageColoring, time.Since(start), true)
	span.End()

	s.logger.Info("colors assigned",
		"attempts", s.coloring.Attempts,
		"failures", s.coloring.Failures)
}

// randomFill assigns colors without regard for neighbors
func (s *Session) randomFill() {
	paletteLen := len(s.opts.Style.BuildingsFill)
	if paletteLen == 0 {
		return
	}
	for _, b := range s.buildings {
		b.ColorID = s.rng.Intn(paletteLen)
		b.OutlineColorID = b.ColorID
	}
	s.coloring = ColoringResult{}
	s.logger.Info("random fill applied", "buildings", len(s.buildings))
}

// BuildingShape is one building projected onto the canvas with its
// resolved colors
type BuildingShape struct {
	Polygon orb.Polygon `json:"polygon"`
	Fill    string      `json:"fill"`
	Outline string      `json:"outline"`
}

// Plan is everything a renderer needs to draw the map: canvas size,
// style colors, and per-layer geometry in pixel coordinates.
type Plan struct {
	Name       string `json:"name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background"`
	TextColor  string `json:"text_color"`
	FontFamily string `json:"font_family,omitempty"`

	RoadsColor string `json:"roads_color"`
	ParksColor string `json:"parks_color"`
	WaterColor string `json:"water_color"`

	Parks     []orb.Polygon    `json:"parks"`
	Water     []orb.Polygon    `json:"water"`
	Roads     []orb.LineString `json:"roads"`
	Buildings []BuildingShape  `json:"buildings"`
}

// Renderer consumes a plan and produces output in some format
type Renderer interface {
	Render(ctx context.Context, plan *Plan) error
}

// RenderPlan projects the loaded features onto a width-by-height
// canvas. The frame is the combined extent of the building footprints;
// geometry outside it is trimmed. Layer order in the plan matches draw
// order: parks and water below roads, buildings on top. Layers omitted
// in Options are left empty.
func (s *Session) RenderPlan(width, height int) (*Plan, error) {
	if s.place == nil {
		return nil, fmt.Errorf("citymap: RenderPlan before a successful Load")
	}
	if width <= 0 || height <= 0 {
		return nil, core.NewError(core.ErrInvalidInput, fmt.Sprintf("canvas must be positive, got %dx%d", width, height))
	}

	start := time.Now()
	bounds := boundsOf(s.buildings)
	if bounds.IsEmpty() {
		return nil, core.NewError(core.ErrNoResults, "no building footprints to frame the map").
			WithGuidance("Try a larger radius or a different place")
	}
	norm := newNormalizer(bounds, float64(width), float64(height))

	st := s.opts.Style
	plan := &Plan{
		Name:       s.place.Name,
		Width:      width,
		Height:     height,
		Background: st.BackgroundColor,
		TextColor:  st.TextColor,
		FontFamily: st.FontFamily,
		RoadsColor: st.RoadsColor,
		ParksColor: st.ParksColor,
		WaterColor: st.WaterColor,
	}

	if !s.opts.OmitParks {
		for i := range s.parks {
			if poly, ok := norm.polygon(&s.parks[i]); ok {
				plan.Parks = append(plan.Parks, poly)
			}
		}
	}
	if !s.opts.OmitWater {
		for i := range s.water {
			if poly, ok := norm.polygon(&s.water[i]); ok {
				plan.Water = append(plan.Water, poly)
			}
		}
	}
	if !s.opts.OmitRoads {
		for i := range s.roads {
			if ls, ok := norm.lineString(s.roads[i].Outer, s.roads[i].Kind); ok {
				plan.Roads = append(plan.Roads, ls)
			}
		}
	}
	if !s.opts.OmitBuildings {
		for _, b := range s.buildings {
			poly, ok := norm.polygon(b.Feature)
			if !ok {
				continue
			}
			shape := BuildingShape{Polygon: poly}
			if b.ColorID >= 0 && b.ColorID < len(st.BuildingsFill) {
				shape.Fill = st.BuildingsFill[b.ColorID]
				shape.Outline = st.BuildingsOutline[b.OutlineColorID]
			}
			plan.Buildings = append(plan.Buildings, shape)
		}
	}

	monitoring.RecordStageRun(tracing.StageNormalize, time.Since(start), true)
	s.logger.Debug("render plan built",
		"buildings", len(plan.Buildings),
		"roads", len(plan.Roads),
		"parks", len(plan.Parks),
		"water", len(plan.Water))
	return plan, nil
}
