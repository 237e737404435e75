package frames

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Result describes the frames a run wrote to the output directory.
type Result struct {
	OutputDir string
	// Frames are the JPEG paths written by this run, ordered by frame index.
	Frames []string
	// Stale counts frame files left in OutputDir by an earlier run and not
	// rewritten by this one. They are not part of Frames.
	Stale    int
	Strategy string
	Elapsed  time.Duration
}

// Count returns the number of frames written.
func (r *Result) Count() int {
	return len(r.Frames)
}

type frameFile struct {
	path    string
	index   int
	modTime time.Time
}

// Snapshot maps frame file names already in a directory to their modification times.
type Snapshot map[string]time.Time

// SnapshotFrames records the frame files in dir. A missing dir yields an
// empty snapshot.
func SnapshotFrames(dir string) (Snapshot, error) {
	files, err := listFrames(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}
	snap := make(Snapshot, len(files))
	for _, f := range files {
		snap[filepath.Base(f.path)] = f.modTime
	}
	return snap, nil
}

// CollectFrames lists frame_<n>.jpg files in dir ordered by n. Files that do
// not match the pattern are ignored. Names are matched literally, so the
// directory may contain any characters.
func CollectFrames(dir string) ([]string, error) {
	files, err := listFrames(dir)
	if err != nil {
		return nil, err
	}
	return paths(files), nil
}

// CollectNewFrames is CollectFrames limited to files that are absent from
// before or were rewritten since it was taken. It also reports how many
// untouched files were skipped.
func CollectNewFrames(dir string, before Snapshot) (frames []string, stale int, err error) {
	files, err := listFrames(dir)
	if err != nil {
		return nil, 0, err
	}
	fresh := files[:0]
	for _, f := range files {
		if old, ok := before[filepath.Base(f.path)]; ok && old.Equal(f.modTime) {
			stale++
			continue
		}
		fresh = append(fresh, f)
	}
	return paths(fresh), stale, nil
}

func listFrames(dir string) ([]frameFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &FilesystemError{Op: "list frames", Path: dir, Err: err}
	}

	found := make([]frameFile, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		idx, ok := frameIndex(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		found = append(found, frameFile{
			path:    filepath.Join(dir, entry.Name()),
			index:   idx,
			modTime: info.ModTime(),
		})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].index < found[j].index })
	return found, nil
}

func paths(files []frameFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out
}

func frameIndex(name string) (int, bool) {
	digits, ok := strings.CutPrefix(name, "frame_")
	if !ok {
		return 0, false
	}
	digits, ok = strings.CutSuffix(digits, ".jpg")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
