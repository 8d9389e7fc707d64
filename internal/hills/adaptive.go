package hills

import (
	"math"
	"sync"

	"go.uber.org/zap"
)

const (
	// hgtWidthBase is the axis length of a 1" HGT file, the resolution
	// the zoom envelope is anchored to.
	hgtWidthBase = 3600

	// zoomMaxBase is the max zoom for a 1" file with high quality
	// enabled.
	zoomMaxBase = 17

	// Quality factor extremes: one super-sampling step, and sub-sampling
	// floors guarded by the even-divisor rule.
	hqFactor = 2

	minEffectivePx = 4
)

// AdaptiveShading marks algorithms that pick their output resolution from
// the display parameters.
type AdaptiveShading interface {
	IsHqEnabled() bool
}

// AdaptiveAlgorithm selects a signed quality factor per tile from zoom and
// pixel density, renders through the threaded pipeline, and shades unit
// elements with a simple diffuse slope kernel. A positive factor
// super-samples (output axis = input × factor), a negative one sub-samples
// through source decimation (output axis = input ÷ |factor|); only
// divisors of the input axis length are admitted.
type AdaptiveAlgorithm struct {
	threadedShader

	hqEnabled   bool
	customScale float64

	mu      sync.Mutex
	factors map[factorKey]int
}

type factorKey struct {
	axisLen     int
	effectivePx float64
}

// NewAdaptiveAlgorithm builds the adaptive shader. customScale scales the
// effective pixel density and must be in (0, 1]; out-of-range values fall
// back to 1. Disabling hq lowers the max zoom by one and never
// super-samples.
func NewAdaptiveAlgorithm(readingThreads, computingThreads int, hqEnabled bool, customScale float64, logger *zap.Logger) *AdaptiveAlgorithm {
	if customScale <= 0 || customScale > 1 {
		customScale = 1
	}

	a := &AdaptiveAlgorithm{
		hqEnabled:   hqEnabled,
		customScale: customScale,
		factors:     make(map[factorKey]int),
	}
	a.init(readingThreads, computingThreads, logger)
	return a
}

func (a *AdaptiveAlgorithm) IsHqEnabled() bool {
	return a.hqEnabled
}

// QualityFactor maps the display parameters to the signed quality factor
// for a tile with the given input axis length.
func (a *AdaptiveAlgorithm) QualityFactor(axisLen int, pxPerLat float64) int {
	effectivePx := math.Max(minEffectivePx, pxPerLat*a.customScale)
	scale := float64(axisLen) / effectivePx

	switch {
	case scale >= 2.0:
		return a.strideFactor(axisLen, effectivePx, scale)
	case scale > 1/1.25 || !a.hqEnabled:
		return 1
	default:
		return hqFactor
	}
}

// strideFactor picks the sub-sampling stride: the integer closest to the
// scale whose divisor evenly tiles the axis, searched downwards. Results
// are memoised per (axis length, effective pixels).
func (a *AdaptiveAlgorithm) strideFactor(axisLen int, effectivePx, scale float64) int {
	key := factorKey{axisLen: axisLen, effectivePx: effectivePx}

	a.mu.Lock()
	defer a.mu.Unlock()

	if factor, ok := a.factors[key]; ok {
		return factor
	}

	divisor := int(math.Round(float64(axisLen) / scale))
	if divisor < 1 {
		divisor = 1
	}

	stride := axisLen / divisor
	if stride > 1 && axisLen%stride != 0 {
		found := 1
		for s := stride; s >= 2; s-- {
			if axisLen%s == 0 {
				found = s
				break
			}
		}
		stride = found
	}

	factor := 1
	if stride > 1 {
		factor = -stride
	}

	a.factors[key] = factor
	return factor
}

// scaleBy applies a signed quality factor to an axis length.
func scaleBy(value, factor int) int {
	if factor > 0 {
		return value * factor
	}
	return value / -factor
}

func (a *AdaptiveAlgorithm) InputAxisLen(info *FileInfo) int {
	return inputAxisLen(info)
}

func (a *AdaptiveAlgorithm) OutputAxisLen(info *FileInfo, zoom int, pxPerLat, pxPerLon float64) int {
	axisLen := inputAxisLen(info)
	return scaleBy(axisLen, a.QualityFactor(axisLen, pxPerLat))
}

func (a *AdaptiveAlgorithm) OutputWidth(info *FileInfo, padding, zoom int, pxPerLat, pxPerLon float64) int {
	return a.OutputAxisLen(info, zoom, pxPerLat, pxPerLon) + 2*padding
}

func (a *AdaptiveAlgorithm) OutputSizeBytes(info *FileInfo, padding, zoom int, pxPerLat, pxPerLon float64) int64 {
	width := int64(a.OutputWidth(info, padding, zoom, pxPerLat, pxPerLon))
	return width * width
}

func (a *AdaptiveAlgorithm) CacheTag(info *FileInfo, padding, zoom int, pxPerLat, pxPerLon float64) int64 {
	return cacheTag(info, padding, a.QualityFactor(inputAxisLen(info), pxPerLat))
}

func (a *AdaptiveAlgorithm) ZoomMin(info *FileInfo) int {
	return 0
}

// ZoomMax anchors at zoomMaxBase for 1" files: one less per halving of
// the resolution, one more per doubling, one less without hq.
func (a *AdaptiveAlgorithm) ZoomMax(info *FileInfo) int {
	zoomMax := zoomMaxBase
	if !a.hqEnabled {
		zoomMax--
	}

	axisLen := inputAxisLen(info)
	if axisLen < hgtWidthBase {
		for res := hgtWidthBase; axisLen < res; res /= 2 {
			zoomMax--
		}
	} else if axisLen > hgtWidthBase {
		for res := hgtWidthBase; axisLen > res; res *= 2 {
			zoomMax++
		}
	}

	return zoomMax
}

func (a *AdaptiveAlgorithm) TransformToRaw(info *FileInfo, padding, zoom int, pxPerLat, pxPerLon float64) (*RawResult, error) {
	axisLen := inputAxisLen(info)
	if axisLen <= 0 {
		return nil, nil
	}

	factor := a.QualityFactor(axisLen, pxPerLat)

	stride := 1
	effectiveAxisLen := axisLen
	outputAxisLen := axisLen
	switch {
	case factor < 0:
		stride = -factor
		effectiveAxisLen = axisLen / stride
		outputAxisLen = effectiveAxisLen
	case factor > 1:
		outputAxisLen = axisLen * factor
	}

	bytes := a.shade(info.File(), a, effectiveAxisLen, outputAxisLen, padding, stride, info.NorthLat(), info.SouthLat())

	width := outputAxisLen + 2*padding
	return &RawResult{Bytes: bytes, Width: width, Height: width, Padding: padding}, nil
}

// shadeMagnitude controls how strongly slopes move the shade away from
// the neutral grey.
const shadeMagnitude = 128.0

// ProcessUnitElement shades one unit element with a diffuse light from
// the north-west and writes a resolution-factor-sized block.
func (a *AdaptiveAlgorithm) ProcessUnitElement(nw, sw, se, ne, metersPerElement float64, outputIx int, params *ComputingParams) int {
	dzdx := ((ne + se) - (nw + sw)) / 2 / metersPerElement
	dzdy := ((sw + se) - (nw + ne)) / 2 / metersPerElement

	value := 127 - (dzdx-dzdy)*shadeMagnitude
	switch {
	case value < 0:
		value = 0
	case value > 255:
		value = 255
	}
	shade := byte(value)

	factor := params.ResolutionFactor
	if factor <= 1 {
		params.Output[outputIx] = shade
		return outputIx + 1
	}

	for row := 0; row < factor; row++ {
		base := outputIx + row*params.OutputWidth
		for col := 0; col < factor; col++ {
			params.Output[base+col] = shade
		}
	}

	return outputIx + factor
}
