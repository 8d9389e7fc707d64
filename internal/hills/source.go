package hills

import (
	"bufio"
	"fmt"

	"hillshade/internal/dem"
)

// noDataValue is the HGT sentinel for a missing sample.
const noDataValue = -32768

// sampleSource yields decoded elevation samples one at a time. Both read
// variants substitute a fallback when the sample is the no-data sentinel
// or the stream ran out of bytes.
type sampleSource interface {
	// ReadValue returns the next sample, or fallback.
	ReadValue(fallback int16) int16

	// ReadIndexed returns the next sample, or arr[ix-delta]. A delta of
	// lineBufferSize substitutes the sample one row up; a delta of 0 with
	// the previous row's buffer does the same across task boundaries.
	ReadIndexed(arr []int16, ix, delta int) int16

	Close() error
}

// openSource opens a stream over the DEM file, positions it at the start
// of the given effective row, and wraps it in a decoding source. With a
// stride above 1 the source decimates: it keeps every stride-th column and
// row, which maps effective row r to raw row r*stride.
func openSource(file dem.File, rawAxisLen, stride, skipEffRows int) (sampleSource, error) {
	stream, err := file.Stream()
	if err != nil {
		return nil, err
	}

	if skipEffRows > 0 {
		skipBytes := int64(skipEffRows) * int64(stride) * int64(rawAxisLen+1) * 2
		if err := stream.Skip(skipBytes); err != nil {
			stream.Close()
			return nil, fmt.Errorf("failed to seek DEM stream: %w", err)
		}
	}

	plain := &plainSource{stream: stream, r: bufio.NewReaderSize(stream, 1<<16)}
	if stride <= 1 {
		return plain, nil
	}

	return &decimatedSource{
		plain:     plain,
		stride:    stride,
		rawRowLen: rawAxisLen + 1,
		axisLen:   rawAxisLen / stride,
	}, nil
}

// plainSource decodes big-endian signed 16-bit samples from a buffered
// stream.
type plainSource struct {
	stream dem.SampleStream
	r      *bufio.Reader
}

func (s *plainSource) readRaw() (int16, bool) {
	hi, err1 := s.r.ReadByte()
	lo, err2 := s.r.ReadByte()
	if err1 != nil || err2 != nil {
		return 0, false
	}
	return int16(uint16(hi)<<8 | uint16(lo)), true
}

func (s *plainSource) ReadValue(fallback int16) int16 {
	v, ok := s.readRaw()
	if !ok || v == noDataValue {
		return fallback
	}
	return v
}

func (s *plainSource) ReadIndexed(arr []int16, ix, delta int) int16 {
	v, ok := s.readRaw()
	if !ok || v == noDataValue {
		return arr[ix-delta]
	}
	return v
}

func (s *plainSource) discard(samples int) {
	for i := 0; i < samples; i++ {
		if _, ok := s.readRaw(); !ok {
			return
		}
	}
}

func (s *plainSource) Close() error {
	return s.stream.Close()
}

// decimatedSource keeps every stride-th sample of every stride-th row.
// The even-divisor rule upstream guarantees stride divides the raw axis
// length, so decimated rows stay aligned with raw rows.
type decimatedSource struct {
	plain     *plainSource
	stride    int
	rawRowLen int
	axisLen   int // effective axis length
	col       int // position within the current effective row
}

// advance discards the raw samples between this kept sample and the next.
func (s *decimatedSource) advance() {
	if s.col < s.axisLen {
		s.plain.discard(s.stride - 1)
		s.col++
	} else {
		// The overlap column ends the raw row: skip the rows the stride
		// steps over.
		s.plain.discard((s.stride - 1) * s.rawRowLen)
		s.col = 0
	}
}

func (s *decimatedSource) ReadValue(fallback int16) int16 {
	v := s.plain.ReadValue(fallback)
	s.advance()
	return v
}

func (s *decimatedSource) ReadIndexed(arr []int16, ix, delta int) int16 {
	v := s.plain.ReadIndexed(arr, ix, delta)
	s.advance()
	return v
}

func (s *decimatedSource) Close() error {
	return s.plain.Close()
}
