package web

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image/png"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hillshade/internal/hills"
)

type Handlers struct {
	logger *zap.Logger
	config *hills.RenderConfig
	source *hills.TileSource
}

func New(logger *zap.Logger, config *hills.RenderConfig, source *hills.TileSource) *Handlers {
	return &Handlers{
		logger: logger,
		config: config,
		source: source,
	}
}

func (h *Handlers) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		h.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Int64("bytes", wrapped.bytesWritten),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

// HandleTiles serves /api/tiles/{lat}/{lon}/{zoom}.png with a greyscale
// shade bitmap for the 1°×1° tile whose south-west corner is (lat, lon).
func (h *Handlers) HandleTiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/tiles/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	lat, err := strconv.Atoi(parts[0])
	if err != nil {
		http.Error(w, "Invalid latitude", http.StatusBadRequest)
		return
	}

	lon, err := strconv.Atoi(parts[1])
	if err != nil {
		http.Error(w, "Invalid longitude", http.StatusBadRequest)
		return
	}

	zoomStr := strings.TrimSuffix(parts[2], ".png")
	zoom, err := strconv.Atoi(zoomStr)
	if err != nil || zoom < 0 {
		http.Error(w, "Invalid zoom level", http.StatusBadRequest)
		return
	}

	pxPerLat := pixelsPerDegree(zoom)
	pxPerLon := pxPerLat
	if v := r.URL.Query().Get("px_per_lat"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			pxPerLat = f
		}
	}
	if v := r.URL.Query().Get("px_per_lon"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			pxPerLon = f
		}
	}

	bitmap := h.config.GetShadingTile(lat, lon, zoom, pxPerLat, pxPerLon)
	if bitmap == nil {
		http.Error(w, "No elevation data for tile", http.StatusNotFound)
		return
	}

	etag := h.generateETag(lat, lon, zoom, pxPerLat)
	w.Header().Set("ETag", `"`+etag+`"`)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Content-Type", "image/png")

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := png.Encode(w, bitmap.Image()); err != nil {
		h.logger.Error("Failed to encode tile", zap.Error(err))
	}
}

// HandleIndex lists the indexed tile keys and any indexing problems.
func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cache := h.source.Current()
	if cache == nil {
		http.Error(w, "No DEM catalog configured", http.StatusServiceUnavailable)
		return
	}

	keys := cache.Keys()
	tiles := make([]map[string]int, 0, len(keys))
	for _, key := range keys {
		tiles = append(tiles, map[string]int{"north": key.North, "east": key.East})
	}

	response := map[string]interface{}{
		"tiles":    tiles,
		"problems": cache.Problems(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// pixelsPerDegree approximates the tile pixel density per degree of
// latitude at a zoom level, assuming 256px map tiles.
func pixelsPerDegree(zoom int) float64 {
	return 256 * math.Pow(2, float64(zoom)) / 360
}

func (h *Handlers) generateETag(lat, lon, zoom int, pxPerLat float64) string {
	keyStr := fmt.Sprintf("%d_%d/%d/%f", lat, lon, zoom, pxPerLat)
	hash := sha256.Sum256([]byte(keyStr))
	return hex.EncodeToString(hash[:])[:16]
}

type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}
