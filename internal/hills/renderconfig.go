package hills

import (
	"math"
	"sync/atomic"
)

// RenderConfig is the stable facade the map renderer talks to. All
// configuration changes are applied lazily on the next tile request; a
// full reindex can be triggered eagerly with IndexOnThread.
type RenderConfig struct {
	source *TileSource

	// magnitudeBits holds a float64; the scale factor is a pass-through
	// knob for the higher-level renderer and takes no part in cache
	// identity.
	magnitudeBits atomic.Uint64
}

func NewRenderConfig(source *TileSource) *RenderConfig {
	c := &RenderConfig{source: source}
	c.SetMagnitudeScaleFactor(1)
	return c
}

// IndexOnThread applies pending configuration and starts background
// indexing, e.g. after setup or a configuration change.
func (c *RenderConfig) IndexOnThread() *RenderConfig {
	if c.source != nil {
		c.source.ApplyConfiguration(true)
	}
	return c
}

// GetShadingTile returns the shade bitmap for the tile whose south-west
// corner is at the given integer coordinates, or nil when no DEM covers
// it. Near the antimeridian an absent tile is retried once with the
// longitude wrapped, to paper over boundary-tile naming differences.
func (c *RenderConfig) GetShadingTile(latitude, longitude, zoomLevel int, pxPerLat, pxPerLon float64) *ShadeBitmap {
	source := c.source
	if source == nil {
		return nil
	}

	bitmap := source.ShadeTile(latitude, longitude, zoomLevel, pxPerLat, pxPerLon)

	if bitmap == nil && math.Abs(float64(longitude)) > 178 {
		wrapped := longitude + 180
		if longitude > 0 {
			wrapped = longitude - 180
		}
		bitmap = source.ShadeTile(latitude, wrapped, zoomLevel, pxPerLat, pxPerLon)
	}

	return bitmap
}

func (c *RenderConfig) MagnitudeScaleFactor() float64 {
	return math.Float64frombits(c.magnitudeBits.Load())
}

// SetMagnitudeScaleFactor raises (>1) or lowers (<1) the shading strength
// relative to the theme value. Theme authors should design at 1.
func (c *RenderConfig) SetMagnitudeScaleFactor(factor float64) {
	c.magnitudeBits.Store(math.Float64bits(factor))
}

// IsWideZoomRange reports whether the configured algorithm adapts its
// output to the zoom level.
func (c *RenderConfig) IsWideZoomRange() bool {
	if c.source == nil {
		return false
	}

	_, ok := c.source.Algorithm().(AdaptiveShading)
	return ok
}
