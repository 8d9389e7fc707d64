package hills

import "math"

// RawResult is the output of one raster pipeline run: a square byte grid
// of shade values, padding included.
type RawResult struct {
	Bytes   []byte
	Width   int
	Height  int
	Padding int
}

// Algorithm is the shading kernel contract. Implementations decide output
// sizing from the display parameters and convert DEM samples to shade
// bytes; the engine handles caching, admission and parallel reading.
type Algorithm interface {
	// InputAxisLen is the side length of the input grid minus one, to
	// account for the one-sample overlap shared with neighbor tiles.
	InputAxisLen(info *FileInfo) int

	// OutputAxisLen is the side length of the output grid, excluding
	// padding.
	OutputAxisLen(info *FileInfo, zoom int, pxPerLat, pxPerLon float64) int

	// OutputWidth is the output side length including padding.
	OutputWidth(info *FileInfo, padding, zoom int, pxPerLat, pxPerLon float64) int

	// OutputSizeBytes is the upper bound used for cache admission.
	OutputSizeBytes(info *FileInfo, padding, zoom int, pxPerLat, pxPerLon float64) int64

	// CacheTag fingerprints the inputs that determine whether an existing
	// render is still valid.
	CacheTag(info *FileInfo, padding, zoom int, pxPerLat, pxPerLon float64) int64

	// TransformToRaw renders the tile. A nil result means the tile is
	// absent or the render failed; callers treat both the same way.
	TransformToRaw(info *FileInfo, padding, zoom int, pxPerLat, pxPerLon float64) (*RawResult, error)

	// ZoomMin and ZoomMax bound the zoom levels this algorithm supports
	// for the given tile.
	ZoomMin(info *FileInfo) int
	ZoomMax(info *FileInfo) int
}

// inputAxisLen derives the grid side length from the file size:
// sqrt(size/2) − 1.
func inputAxisLen(info *FileInfo) int {
	return int(math.Sqrt(float64(info.Size()/2))) - 1
}

// cacheTag combines tile identity, padding and an algorithm-specific bin.
func cacheTag(info *FileInfo, padding int, bin int) int64 {
	tag := info.Hash()
	tag = 31*tag + int64(padding)
	tag = 31*tag + int64(bin)
	return tag
}
