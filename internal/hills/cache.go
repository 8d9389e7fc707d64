package hills

import (
	"sync/atomic"

	"go.uber.org/zap"

	"hillshade/internal/dem"
)

// HgtCache is the immutably configured orchestrator: it routes each tile
// request through admission, index lookup, future coalescing and LRU
// eviction. Configuration changes are handled by replacing the whole
// cache, never by mutating one in place.
type HgtCache struct {
	folder    dem.Folder
	algorithm Algorithm
	graphics  GraphicsFactory
	padding   int
	logger    *zap.Logger

	index   *demIndex
	lruSet  *lru
	limiter *blockingSumLimiter
}

func NewHgtCache(folder dem.Folder, graphics GraphicsFactory, padding int, algorithm Algorithm, cacheMinCount, cacheMaxCount int, cacheMaxBytes int64, logger *zap.Logger) *HgtCache {
	return &HgtCache{
		folder:    folder,
		algorithm: algorithm,
		graphics:  graphics,
		padding:   padding,
		logger:    logger,
		index:     newDemIndex(folder, logger),
		lruSet:    newLru(cacheMinCount, cacheMaxCount, cacheMaxBytes),
		limiter:   newBlockingSumLimiter(),
	}
}

// GetShadeTile renders or fetches the shade bitmap for the tile with the
// given south-west corner. A nil bitmap means the tile is not covered by
// the DEM catalog (or its render failed); callers treat it as absent.
func (c *HgtCache) GetShadeTile(north, east, zoomLevel int, pxPerLat, pxPerLon float64) *ShadeBitmap {
	info := c.index.Await()[TileKey{North: north, East: east}]
	if info == nil {
		return nil
	}

	estimate := c.algorithm.OutputSizeBytes(info, c.padding, zoomLevel, pxPerLat, pxPerLon)

	// The limiter bounds aggregate in-flight output bytes, so a burst of
	// concurrent requests cannot overcommit memory before the LRU sees it.
	c.limiter.Add(estimate, c.lruSet.maxBytes)
	defer c.limiter.Subtract(estimate)

	future := info.getOrCreateFuture(c, c.padding, zoomLevel, pxPerLat, pxPerLon)

	if !future.IsDone() {
		c.lruSet.EnsureEnoughSpace(estimate)
	}

	// Await must come first: MarkUsed reads the bitmap size, which is only
	// populated once the future has completed.
	bitmap := future.Await()
	c.lruSet.MarkUsed(future)

	return bitmap
}

// IndexOnThread triggers the lazy catalog build on a background goroutine.
func (c *HgtCache) IndexOnThread() {
	c.index.Background()
}

// Problems returns the per-file indexing problems recorded so far.
func (c *HgtCache) Problems() []string {
	return c.index.Problems()
}

// Keys returns the tile keys currently indexed, building the index if
// needed.
func (c *HgtCache) Keys() []TileKey {
	m := c.index.Await()
	keys := make([]TileKey, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	return keys
}

// loadFuture is a one-shot memoised render of a single (tile, zoom, tag)
// combination. All concurrent requesters of the same combination share one
// instance and therefore one computation.
type loadFuture struct {
	future    *lazyFuture[*ShadeBitmap]
	cacheTag  int64
	sizeBytes atomic.Int64
}

func (c *HgtCache) newLoadFuture(info *FileInfo, padding, zoomLevel int, pxPerLat, pxPerLon float64, tag int64) *loadFuture {
	fut := &loadFuture{cacheTag: tag}

	fut.future = newLazyFuture(func() *ShadeBitmap {
		raw, err := c.algorithm.TransformToRaw(info, padding, zoomLevel, pxPerLat, pxPerLon)
		if err != nil {
			c.logger.Warn("Shading failed",
				zap.String("tile", info.Key().String()),
				zap.Int("zoom", zoomLevel),
				zap.Error(err),
			)
			return nil
		}
		if raw == nil {
			return nil
		}

		bitmap := c.graphics.CreateMonoBitmap(raw.Width, raw.Height, raw.Bytes, raw.Padding)
		if bitmap != nil {
			fut.sizeBytes.Store(bitmap.SizeBytes())
		}
		return bitmap
	})

	return fut
}

func (f *loadFuture) Await() *ShadeBitmap {
	return f.future.Await()
}

func (f *loadFuture) IsDone() bool {
	return f.future.IsDone()
}

// SizeBytes is the completed bitmap's footprint, 0 while pending or when
// the bitmap is absent.
func (f *loadFuture) SizeBytes() int64 {
	return f.sizeBytes.Load()
}
