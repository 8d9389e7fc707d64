package hills

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"

	"go.uber.org/zap"

	"hillshade/internal/dem"
)

// memFile is an in-memory dem.File for tests.
type memFile struct {
	name      string
	data      []byte
	size      int64 // reported size; len(data) if 0
	skippable bool
}

func (f *memFile) Name() string { return f.name }

func (f *memFile) Size() int64 {
	if f.size > 0 {
		return f.size
	}
	return int64(len(f.data))
}

func (f *memFile) SupportsSkip() bool { return f.skippable }

func (f *memFile) Stream() (dem.SampleStream, error) {
	return &memStream{r: bytes.NewReader(f.data)}, nil
}

type memStream struct {
	r *bytes.Reader
}

func (s *memStream) Read(p []byte) (int, error) { return s.r.Read(p) }

func (s *memStream) Skip(n int64) error {
	_, err := s.r.Seek(n, io.SeekCurrent)
	return err
}

func (s *memStream) Close() error { return nil }

// memFolder is an in-memory dem.Folder.
type memFolder struct {
	files []dem.File
	subs  []dem.Folder
}

func (f *memFolder) Files() ([]dem.File, error) { return f.files, nil }
func (f *memFolder) Subs() ([]dem.Folder, error) { return f.subs, nil }

// hgtBytes builds an HGT payload for a (rawAxisLen+1)² grid, sampling
// elevations from fn(row, col).
func hgtBytes(rawAxisLen int, fn func(row, col int) int16) []byte {
	rowLen := rawAxisLen + 1
	buf := make([]byte, 0, rowLen*rowLen*2)
	for row := 0; row < rowLen; row++ {
		for col := 0; col < rowLen; col++ {
			buf = binary.BigEndian.AppendUint16(buf, uint16(fn(row, col)))
		}
	}
	return buf
}

// flatHgt is a constant-elevation payload.
func flatHgt(rawAxisLen int, elevation int16) []byte {
	return hgtBytes(rawAxisLen, func(int, int) int16 { return elevation })
}

func testFileInfo(name string, north, east int, data []byte) *FileInfo {
	file := &memFile{name: name, data: data, skippable: true}
	return newFileInfo(file, TileKey{North: north, East: east}, file.Size())
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// stampKernel records which output indices each unit element touched.
// Recording is serialised so multi-threaded runs stay race-free.
type stampKernel struct {
	mu   sync.Mutex
	hits map[int]int
}

func newStampKernel() *stampKernel {
	return &stampKernel{hits: make(map[int]int)}
}

func (k *stampKernel) ProcessUnitElement(nw, sw, se, ne, metersPerElement float64, outputIx int, params *ComputingParams) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	factor := params.ResolutionFactor
	if factor <= 1 {
		k.hits[outputIx]++
		return outputIx + 1
	}

	for row := 0; row < factor; row++ {
		for col := 0; col < factor; col++ {
			k.hits[outputIx+row*params.OutputWidth+col]++
		}
	}
	return outputIx + factor
}

// valueKernel maps each output index to the nw sample seen there.
type valueKernel struct {
	mu     sync.Mutex
	values map[int]float64
}

func newValueKernel() *valueKernel {
	return &valueKernel{values: make(map[int]float64)}
}

func (k *valueKernel) ProcessUnitElement(nw, sw, se, ne, metersPerElement float64, outputIx int, params *ComputingParams) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.values[outputIx] = nw
	return outputIx + 1
}
