package dem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSFolder is a Folder backed by a directory on the local filesystem.
type FSFolder struct {
	dir string
}

// NewFSFolder returns a Folder for the given directory.
func NewFSFolder(dir string) *FSFolder {
	return &FSFolder{dir: dir}
}

func (f *FSFolder) Files() ([]File, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read DEM directory: %w", err)
	}

	var files []File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(f.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}

		if strings.HasSuffix(strings.ToLower(entry.Name()), ".zip") {
			zf, err := NewZipFile(path)
			if err != nil {
				continue
			}
			files = append(files, zf)
			continue
		}

		files = append(files, &FSFile{path: path, size: info.Size()})
	}

	return files, nil
}

func (f *FSFolder) Subs() ([]Folder, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read DEM directory: %w", err)
	}

	var subs []Folder
	for _, entry := range entries {
		if entry.IsDir() {
			subs = append(subs, NewFSFolder(filepath.Join(f.dir, entry.Name())))
		}
	}

	return subs, nil
}

func (f *FSFolder) String() string {
	return f.dir
}

// FSFile is a File backed by a plain file on disk. Plain files seek
// natively, so any number of concurrent readers can skip cheaply.
type FSFile struct {
	path string
	size int64
}

func NewFSFile(path string, size int64) *FSFile {
	return &FSFile{path: path, size: size}
}

func (f *FSFile) Name() string {
	return filepath.Base(f.path)
}

func (f *FSFile) Size() int64 {
	return f.size
}

func (f *FSFile) SupportsSkip() bool {
	return true
}

func (f *FSFile) Stream() (SampleStream, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DEM file: %w", err)
	}
	return &fileStream{file: file}, nil
}

func (f *FSFile) String() string {
	return f.path
}

type fileStream struct {
	file *os.File
}

func (s *fileStream) Read(p []byte) (int, error) {
	return s.file.Read(p)
}

func (s *fileStream) Skip(n int64) error {
	_, err := s.file.Seek(n, io.SeekCurrent)
	return err
}

func (s *fileStream) Close() error {
	return s.file.Close()
}
