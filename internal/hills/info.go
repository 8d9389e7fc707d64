package hills

import (
	"fmt"
	"hash/fnv"
	"sync"
	"weak"

	"hillshade/internal/dem"
)

// FileInfo couples a DEM file with its bounding box and the per-zoom table
// of load futures. Futures are held weakly: the LRU owns the only strong
// references, so an evicted render can be collected and a later request
// will allocate a fresh future.
type FileInfo struct {
	file dem.File
	key  TileKey
	size int64

	mu      sync.Mutex
	futures map[int]weak.Pointer[loadFuture]
}

func newFileInfo(file dem.File, key TileKey, size int64) *FileInfo {
	return &FileInfo{
		file:    file,
		key:     key,
		size:    size,
		futures: make(map[int]weak.Pointer[loadFuture]),
	}
}

func (fi *FileInfo) File() dem.File {
	return fi.file
}

func (fi *FileInfo) Key() TileKey {
	return fi.key
}

// Size is the DEM payload size in bytes.
func (fi *FileInfo) Size() int64 {
	return fi.size
}

// The bounding box is [north−1, east] × [north, east+1].

func (fi *FileInfo) NorthLat() float64 {
	return float64(fi.key.North)
}

func (fi *FileInfo) SouthLat() float64 {
	return float64(fi.key.North - 1)
}

func (fi *FileInfo) WestLon() float64 {
	return float64(fi.key.East)
}

func (fi *FileInfo) EastLon() float64 {
	return float64(fi.key.East + 1)
}

// Hash fingerprints the tile identity for cache tags.
func (fi *FileInfo) Hash() int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%d:%s", fi.key.North, fi.key.East, fi.file.Name())
	return int64(h.Sum64())
}

// getOrCreateFuture returns the current load future for the given zoom,
// replacing it when it is missing, was reclaimed, or its cache tag no
// longer matches the display parameters. Two overlapping requests with a
// matching tag always receive the same future.
func (fi *FileInfo) getOrCreateFuture(cache *HgtCache, padding, zoom int, pxPerLat, pxPerLon float64) *loadFuture {
	fi.mu.Lock()
	defer fi.mu.Unlock()

	var candidate *loadFuture
	if ref, ok := fi.futures[zoom]; ok {
		candidate = ref.Value()
	}

	tag := cache.algorithm.CacheTag(fi, padding, zoom, pxPerLat, pxPerLon)
	if candidate == nil || candidate.cacheTag != tag {
		candidate = cache.newLoadFuture(fi, padding, zoom, pxPerLat, pxPerLon, tag)
		fi.futures[zoom] = weak.Make(candidate)
	}

	return candidate
}

func (fi *FileInfo) String() string {
	return fmt.Sprintf("[lt:%.0f-%.0f ln:%.0f-%.0f %s]", fi.SouthLat(), fi.NorthLat(), fi.WestLon(), fi.EastLon(), fi.file.Name())
}
