package hills

import (
	"testing"

	"hillshade/internal/dem"
)

func TestRenderConfigAntimeridianWrap(t *testing.T) {
	// Only the wrapped tile exists; a request on the far side of the
	// antimeridian must land on it.
	folder := &memFolder{files: []dem.File{
		&memFile{name: "N10W001.hgt", data: flatHgt(4, 100), skippable: true},
	}}

	algorithm := &countingAlgorithm{size: 4}
	source := NewTileSource(folder, algorithm, MonoGraphicsFactory{}, true, 256, testLogger())
	config := NewRenderConfig(source)

	if got := config.GetShadingTile(10, 179, 12, 1000, 1000); got == nil {
		t.Error("request at longitude 179 did not wrap to -1")
	}

	// Far from the antimeridian no wrapping happens.
	if got := config.GetShadingTile(10, 44, 12, 1000, 1000); got != nil {
		t.Error("request at longitude 44 unexpectedly found a tile")
	}
}

func TestRenderConfigMagnitude(t *testing.T) {
	config := NewRenderConfig(nil)

	if got := config.MagnitudeScaleFactor(); got != 1 {
		t.Errorf("default magnitude = %v, want 1", got)
	}

	config.SetMagnitudeScaleFactor(1.5)
	if got := config.MagnitudeScaleFactor(); got != 1.5 {
		t.Errorf("magnitude = %v, want 1.5", got)
	}

	if config.GetShadingTile(0, 0, 10, 100, 100) != nil {
		t.Error("nil source produced a bitmap")
	}
}

func TestRenderConfigWideZoomRange(t *testing.T) {
	folder := &memFolder{}

	adaptive := NewTileSource(folder, NewAdaptiveAlgorithm(1, 1, true, 1, testLogger()), MonoGraphicsFactory{}, true, 256, testLogger())
	if !NewRenderConfig(adaptive).IsWideZoomRange() {
		t.Error("adaptive algorithm not reported as wide zoom range")
	}

	fixed := NewTileSource(folder, &countingAlgorithm{size: 4}, MonoGraphicsFactory{}, true, 256, testLogger())
	if NewRenderConfig(fixed).IsWideZoomRange() {
		t.Error("fixed algorithm reported as wide zoom range")
	}
}

func TestTileSourceRebuildsCacheOnConfigChange(t *testing.T) {
	folder := &memFolder{files: []dem.File{
		&memFile{name: "N10E020.hgt", data: flatHgt(4, 100), skippable: true},
	}}

	source := NewTileSource(folder, &countingAlgorithm{size: 4}, MonoGraphicsFactory{}, true, 256, testLogger())

	source.ApplyConfiguration(false)
	first := source.Current()
	if first == nil {
		t.Fatal("no cache after ApplyConfiguration")
	}

	source.ApplyConfiguration(false)
	if source.Current() != first {
		t.Error("unchanged configuration rebuilt the cache")
	}

	source.SetAlgorithm(&countingAlgorithm{size: 8})
	source.ApplyConfiguration(false)
	if source.Current() == first {
		t.Error("algorithm change did not rebuild the cache")
	}

	source.SetFolder(nil)
	if source.ShadeTile(10, 20, 12, 1000, 1000) != nil {
		t.Error("nil folder still served tiles")
	}
}

func TestTileSourcePadding(t *testing.T) {
	folder := &memFolder{}

	overlapped := NewTileSource(folder, &countingAlgorithm{size: 4}, MonoGraphicsFactory{}, true, 256, testLogger())
	if got := overlapped.Padding(); got != PaddingDefault {
		t.Errorf("padding = %d, want %d", got, PaddingDefault)
	}

	plain := NewTileSource(folder, &countingAlgorithm{size: 4}, MonoGraphicsFactory{}, false, 256, testLogger())
	if got := plain.Padding(); got != 0 {
		t.Errorf("padding = %d, want 0", got)
	}

	if got := overlapped.CacheMaxBytes(); got != 256*125000 {
		t.Errorf("cache byte budget = %d, want %d", got, 256*125000)
	}
}
