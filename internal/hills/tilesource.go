package hills

import (
	"sync"

	"go.uber.org/zap"

	"hillshade/internal/dem"
)

const (
	// PaddingDefault is enough for bicubic bitmap filtering; there is no
	// benefit in going above 1.
	PaddingDefault = 1

	// CacheMinCountDefault prevents cache starvation in high-quality
	// mode, where a couple of renders can exceed the byte budget alone.
	CacheMinCountDefault = 2

	// CacheMaxCountDefault covers a typical DEM ZIP archive worth of
	// tiles a few times over.
	CacheMaxCountDefault = 100

	// bytesPerMemoryMB converts the process-wide memory setting to the
	// cache byte budget: an eighth of the configured memory.
	bytesPerMemoryMB = 125000
)

// TileSource is the mutable configuration frontend for an HgtCache. The
// cache itself is immutable; when the folder or algorithm changes, a new
// cache replaces it in one piece.
type TileSource struct {
	graphics GraphicsFactory
	logger   *zap.Logger

	padding  int
	minCount int
	maxCount int
	maxBytes int64

	mu        sync.Mutex
	folder    dem.Folder
	algorithm Algorithm
	current   *HgtCache
}

// NewTileSource wires a DEM folder to a shading algorithm. With
// interpolation overlap enabled the output carries one padding pixel on
// each side for neighbor border merges.
func NewTileSource(folder dem.Folder, algorithm Algorithm, graphics GraphicsFactory, interpolationOverlap bool, maxMemoryMB int, logger *zap.Logger) *TileSource {
	padding := 0
	if interpolationOverlap {
		padding = PaddingDefault
	}

	return &TileSource{
		graphics:  graphics,
		logger:    logger,
		padding:   padding,
		minCount:  CacheMinCountDefault,
		maxCount:  CacheMaxCountDefault,
		maxBytes:  int64(maxMemoryMB) * bytesPerMemoryMB,
		folder:    folder,
		algorithm: algorithm,
	}
}

// ApplyConfiguration rebuilds the cache if the configuration changed and,
// when allowed, kicks off background indexing of a freshly built cache.
func (t *TileSource) ApplyConfiguration(allowBackground bool) {
	t.mu.Lock()
	before := t.current
	latest := t.latestCacheLocked()
	t.mu.Unlock()

	if allowBackground && latest != nil && latest != before {
		latest.IndexOnThread()
	}
}

// ShadeTile routes the request through the current cache, rebuilding it
// first if the configuration changed.
func (t *TileSource) ShadeTile(north, east, zoomLevel int, pxPerLat, pxPerLon float64) *ShadeBitmap {
	t.mu.Lock()
	cache := t.latestCacheLocked()
	t.mu.Unlock()

	if cache == nil {
		return nil
	}

	return cache.GetShadeTile(north, east, zoomLevel, pxPerLat, pxPerLon)
}

func (t *TileSource) latestCacheLocked() *HgtCache {
	if t.folder == nil || t.algorithm == nil {
		t.current = nil
		return nil
	}

	if t.current == nil || t.current.folder != t.folder || t.current.algorithm != t.algorithm {
		t.current = NewHgtCache(t.folder, t.graphics, t.padding, t.algorithm, t.minCount, t.maxCount, t.maxBytes, t.logger)
	}

	return t.current
}

func (t *TileSource) Algorithm() Algorithm {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.algorithm
}

func (t *TileSource) SetAlgorithm(algorithm Algorithm) {
	t.mu.Lock()
	t.algorithm = algorithm
	t.mu.Unlock()
}

func (t *TileSource) SetFolder(folder dem.Folder) {
	t.mu.Lock()
	t.folder = folder
	t.mu.Unlock()
}

func (t *TileSource) Padding() int {
	return t.padding
}

func (t *TileSource) CacheMaxBytes() int64 {
	return t.maxBytes
}

// Current returns the active cache, if any, without rebuilding.
func (t *TileSource) Current() *HgtCache {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.current
}
