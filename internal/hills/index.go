package hills

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"hillshade/internal/dem"
)

const (
	HgtFileExtension = "hgt"
	ZipFileExtension = "zip"
)

// TileKey identifies a 1°×1° DEM tile by the integer latitude and
// longitude of its south-west corner.
type TileKey struct {
	North int
	East  int
}

func (k TileKey) String() string {
	return fmt.Sprintf("(%d,%d)", k.North, k.East)
}

// tileNameRegex parses hemisphere letters and coordinates out of DEM file
// names like N47E013.hgt or s05w123.zip.
var tileNameRegex = regexp.MustCompile(`(?i)^.*([ns])(\d{1,2})([ew])(\d{1,3})\.(?:` + HgtFileExtension + `|` + ZipFileExtension + `)$`)

// IsNameHgt reports whether the file name has the .hgt extension.
func IsNameHgt(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), "."+HgtFileExtension)
}

// IsNameZip reports whether the file name has the .zip extension.
func IsNameZip(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), "."+ZipFileExtension)
}

// demIndex lazily maps tile keys to the files that cover them. A single
// unreadable or malformed file never prevents the rest of the catalog from
// indexing; such files are recorded as problems and skipped.
type demIndex struct {
	future *lazyFuture[map[TileKey]*FileInfo]

	mu       sync.Mutex
	problems []string
}

func newDemIndex(folder dem.Folder, logger *zap.Logger) *demIndex {
	idx := &demIndex{}

	idx.future = newLazyFuture(func() map[TileKey]*FileInfo {
		m := make(map[TileKey]*FileInfo)
		idx.indexFolder(folder, m, logger)
		logger.Info("DEM index built", zap.Int("tiles", len(m)), zap.Int("problems", len(idx.Problems())))
		return m
	})

	return idx
}

// Await blocks until the index is built and returns it. The first caller
// performs the folder walk.
func (idx *demIndex) Await() map[TileKey]*FileInfo {
	return idx.future.Await()
}

func (idx *demIndex) IsDone() bool {
	return idx.future.IsDone()
}

// Background builds the index on a separate goroutine.
func (idx *demIndex) Background() {
	idx.future.Background()
}

// Problems returns a snapshot of the per-file indexing problems.
func (idx *demIndex) Problems() []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	out := make([]string, len(idx.problems))
	copy(out, idx.problems)
	return out
}

func (idx *demIndex) addProblem(problem string) {
	idx.mu.Lock()
	idx.problems = append(idx.problems, problem)
	idx.mu.Unlock()
}

func (idx *demIndex) indexFolder(folder dem.Folder, m map[TileKey]*FileInfo, logger *zap.Logger) {
	files, err := folder.Files()
	if err != nil {
		idx.addProblem(fmt.Sprintf("%v: %v", folder, err))
		logger.Warn("Failed to list DEM folder", zap.Error(err))
	}
	for _, file := range files {
		idx.indexFile(file, m)
	}

	subs, err := folder.Subs()
	if err != nil {
		idx.addProblem(fmt.Sprintf("%v: %v", folder, err))
		logger.Warn("Failed to list DEM subfolders", zap.Error(err))
	}
	for _, sub := range subs {
		idx.indexFolder(sub, m, logger)
	}
}

func (idx *demIndex) indexFile(file dem.File, m map[TileKey]*FileInfo) {
	groups := tileNameRegex.FindStringSubmatch(file.Name())
	if groups == nil {
		return
	}

	northSouth, _ := strconv.Atoi(groups[2])
	eastWest, _ := strconv.Atoi(groups[4])

	north := northSouth
	if !strings.EqualFold(groups[1], "n") {
		north = -northSouth
	}
	east := eastWest
	if !strings.EqualFold(groups[3], "e") {
		east = -eastWest
	}

	size := file.Size()
	heights := size / 2
	sqrt := int64(math.Sqrt(float64(heights)))
	if heights == 0 || sqrt*sqrt != heights {
		idx.addProblem(fmt.Sprintf("%s length in shorts (%d) is not a square number", file.Name(), heights))
		return
	}

	key := TileKey{North: north, East: east}
	if existing, ok := m[key]; ok && existing.size >= size {
		// Larger file wins on duplicate keys.
		return
	}
	m[key] = newFileInfo(file, key, size)
}
