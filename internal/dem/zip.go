package dem

import (
	"archive/zip"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ZipFile is a File wrapping a single .hgt entry inside a ZIP archive.
// The entry is decompressed on the fly, so skipping means reading and
// discarding; SupportsSkip is therefore false and the pipeline degrades
// to a single reader for these sources.
type ZipFile struct {
	path      string
	entryName string
	size      int64
}

// NewZipFile inspects the archive and binds to its .hgt entry.
func NewZipFile(path string) (*ZipFile, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ZIP archive: %w", err)
	}
	defer r.Close()

	for _, entry := range r.File {
		if strings.HasSuffix(strings.ToLower(entry.Name), ".hgt") {
			return &ZipFile{
				path:      path,
				entryName: entry.Name,
				size:      int64(entry.UncompressedSize64),
			}, nil
		}
	}

	return nil, fmt.Errorf("no .hgt entry in %s", path)
}

// Name returns the archive file name, not the entry name: tile
// coordinates are conventionally encoded in the archive name.
func (f *ZipFile) Name() string {
	return filepath.Base(f.path)
}

func (f *ZipFile) Size() int64 {
	return f.size
}

func (f *ZipFile) SupportsSkip() bool {
	return false
}

func (f *ZipFile) Stream() (SampleStream, error) {
	r, err := zip.OpenReader(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ZIP archive: %w", err)
	}

	for _, entry := range r.File {
		if entry.Name == f.entryName {
			rc, err := entry.Open()
			if err != nil {
				r.Close()
				return nil, fmt.Errorf("failed to open ZIP entry: %w", err)
			}
			return &zipStream{archive: r, entry: rc}, nil
		}
	}

	r.Close()
	return nil, fmt.Errorf("ZIP entry %s vanished from %s", f.entryName, f.path)
}

func (f *ZipFile) String() string {
	return f.path
}

type zipStream struct {
	archive *zip.ReadCloser
	entry   io.ReadCloser
}

func (s *zipStream) Read(p []byte) (int, error) {
	return s.entry.Read(p)
}

// Skip reads and discards, as flate streams cannot seek.
func (s *zipStream) Skip(n int64) error {
	_, err := io.CopyN(io.Discard, s.entry, n)
	return err
}

func (s *zipStream) Close() error {
	err := s.entry.Close()
	if cerr := s.archive.Close(); err == nil {
		err = cerr
	}
	return err
}
