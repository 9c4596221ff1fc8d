// Package server serves generated fields as PNG tiles over HTTP. Tiles are
// generated per request and never written to disk.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/noisemix/internal/compose"
	"github.com/MeKo-Tech/noisemix/internal/expr"
	"github.com/MeKo-Tech/noisemix/internal/field"
	"github.com/MeKo-Tech/noisemix/internal/noise"
	"github.com/MeKo-Tech/noisemix/internal/render"
)

// TilesConfig configures a Tiles handler.
type TilesConfig struct {
	CacheControl string
	// TileSize is the side of a tile in samples; tile (x, y) covers the
	// region starting at (x*TileSize, y*TileSize).
	TileSize                 int
	MaxConcurrentGenerations int
	GenerationTimeout        time.Duration
	// Smooth is the Gaussian blur sigma applied to every tile; 0 disables it.
	Smooth float32
}

// Tiles generates field tiles on demand. Each tile is normalized on its own.
type Tiles struct {
	engine *compose.Engine
	logger *slog.Logger
	sem    chan struct{}
	cfg    TilesConfig

	activeRenders  atomic.Int32
	queuedRenders  atomic.Int32
	totalRendered  atomic.Int64
	totalFailed    atomic.Int64
	totalFlat      atomic.Int64
	currentRenders sync.Map // tile name -> start time
}

// Status is the JSON body of the status endpoint.
type Status struct {
	ActiveRenders int      `json:"active_renders"`
	QueuedRenders int      `json:"queued_renders"`
	TotalRendered int64    `json:"total_rendered"`
	TotalFailed   int64    `json:"total_failed"`
	TotalFlat     int64    `json:"total_flat"`
	CurrentTiles  []string `json:"current_tiles"`
	MaxConcurrent int      `json:"max_concurrent"`
	TileSize      int      `json:"tile_size"`
}

// NewTiles creates a tile handler backed by engine.
func NewTiles(engine *compose.Engine, cfg TilesConfig, logger *slog.Logger) (*Tiles, error) {
	if engine == nil {
		return nil, fmt.Errorf("tiles need an engine")
	}
	if cfg.TileSize <= 0 {
		cfg.TileSize = 256
	}
	if cfg.MaxConcurrentGenerations <= 0 {
		cfg.MaxConcurrentGenerations = 1
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 30 * time.Second
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}
	return &Tiles{
		engine: engine,
		logger: logger,
		sem:    make(chan struct{}, cfg.MaxConcurrentGenerations),
		cfg:    cfg,
	}, nil
}

// Status returns a snapshot of render activity.
func (t *Tiles) Status() Status {
	var current []string
	t.currentRenders.Range(func(key, _ any) bool {
		current = append(current, key.(string))
		return true
	})
	return Status{
		ActiveRenders: int(t.activeRenders.Load()),
		QueuedRenders: int(t.queuedRenders.Load()),
		TotalRendered: t.totalRendered.Load(),
		TotalFailed:   t.totalFailed.Load(),
		TotalFlat:     t.totalFlat.Load(),
		CurrentTiles:  current,
		MaxConcurrent: t.cfg.MaxConcurrentGenerations,
		TileSize:      t.cfg.TileSize,
	}
}

// StatusHandler serves Status as JSON.
func (t *Tiles) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(t.Status()); err != nil {
			t.log().Error("failed to encode status", "error", err)
			http.Error(w, "failed to encode status", http.StatusInternalServerError)
		}
	})
}

// Handler serves /tiles/x{X}_y{Y}.png and /tiles/x{X}_y{Y}@2x.png.
func (t *Tiles) Handler() http.Handler {
	return http.HandlerFunc(t.serveTile)
}

func (t *Tiles) serveTile(w http.ResponseWriter, r *http.Request) {
	tx, ty, suffix, ok := parseTilePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	name := tileName(tx, ty) + suffix

	t.queuedRenders.Add(1)
	select {
	case t.sem <- struct{}{}:
		t.queuedRenders.Add(-1)
		defer func() { <-t.sem }()
	case <-r.Context().Done():
		t.queuedRenders.Add(-1)
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), t.cfg.GenerationTimeout)
	defer cancel()

	t.activeRenders.Add(1)
	t.currentRenders.Store(name, time.Now())
	start := time.Now()
	body, res, err := t.renderTile(ctx, tx, ty, suffix)
	t.activeRenders.Add(-1)
	t.currentRenders.Delete(name)

	if err != nil {
		t.totalFailed.Add(1)
		t.log().Error("failed to generate tile", "tile", name, "error", err)
		http.Error(w, fmt.Sprintf("failed to generate tile %s: %v", name, err), statusFor(err))
		return
	}
	t.totalRendered.Add(1)
	if res.Degenerate() {
		t.totalFlat.Add(1)
	}
	t.log().Info("tile generated", "tile", name, "ms", time.Since(start).Milliseconds(), "degenerate", res.Degenerate())

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", t.cfg.CacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}

func (t *Tiles) renderTile(ctx context.Context, tx, ty int, suffix string) ([]byte, *compose.Result, error) {
	size := t.cfg.TileSize
	res, err := t.engine.Generate(ctx, compose.Region{
		X:      float32(tx * size),
		Y:      float32(ty * size),
		Width:  size,
		Height: size,
	})
	if err != nil {
		return nil, nil, err
	}

	img, err := render.ToGray(res.Values, res.Width, res.Height)
	if err != nil {
		return nil, nil, err
	}
	img = render.Smooth(img, t.cfg.Smooth)
	if suffix == "@2x" {
		if img, err = render.Scale(img, 2); err != nil {
			return nil, nil, err
		}
	}

	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), res, nil
}

func (t *Tiles) log() *slog.Logger {
	if t.logger != nil {
		return t.logger
	}
	return slog.Default()
}

func statusFor(err error) int {
	var (
		genErr     *noise.GeneratorError
		unresolved *expr.UnresolvedTagError
		shape      *field.ShapeMismatchError
		nonFinite  *field.NonFiniteError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.As(err, &genErr), errors.As(err, &unresolved), errors.As(err, &shape), errors.As(err, &nonFinite):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func tileName(x, y int) string {
	return fmt.Sprintf("x%d_y%d", x, y)
}

// parseTilePath accepts /tiles/x3_y-2.png and /tiles/x3_y-2@2x.png.
// maxTileIndex bounds tile indices so tx*TileSize cannot overflow int.
const maxTileIndex = 1 << 20

func parseTilePath(requestPath string) (int, int, string, bool) {
	if !strings.HasPrefix(requestPath, "/tiles/") {
		return 0, 0, "", false
	}
	base := path.Base(requestPath)
	if !strings.HasSuffix(base, ".png") {
		return 0, 0, "", false
	}
	name := strings.TrimSuffix(base, ".png")
	suffix := ""
	if strings.HasSuffix(name, "@2x") {
		suffix = "@2x"
		name = strings.TrimSuffix(name, "@2x")
	}

	xs, ys, ok := strings.Cut(name, "_")
	if !ok || !strings.HasPrefix(xs, "x") || !strings.HasPrefix(ys, "y") {
		return 0, 0, "", false
	}
	x, err := strconv.Atoi(xs[1:])
	if err != nil || x < -maxTileIndex || x > maxTileIndex {
		return 0, 0, "", false
	}
	y, err := strconv.Atoi(ys[1:])
	if err != nil || y < -maxTileIndex || y > maxTileIndex {
		return 0, 0, "", false
	}
	return x, y, suffix, true
}
