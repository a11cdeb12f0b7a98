package catalog

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "go.uber.org/zap"
	"gopkg.in/vansante/go-ffprobe.v2"
)

// Extensions is the allow-list of video container formats, matched
// case-insensitively against file suffixes.
var Extensions = map[string]bool{
	".mp4": true, ".m4v": true, ".mkv": true, ".avi": true, ".mov": true,
	".mpg": true, ".mpeg": true, ".webm": true, ".flv": true, ".ogv": true,
	".vob": true, ".wmv": true, ".3gp": true, ".3g2": true, ".f4v": true,
	".ts": true, ".m2ts": true, ".mts": true, ".divx": true,
}

// IsVideo reports whether the path carries a supported video extension.
func IsVideo(path string) bool {
	return Extensions[strings.ToLower(filepath.Ext(path))]
}

// Scan recursively enumerates video files under the given directories.
// Directories that do not exist or cannot be read are skipped, so an empty
// result means "no videos found", never "scan failed".
func Scan(paths []string) []string {
	var out []string
	for _, root := range paths {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				log.S().Debugf("scan %q: %v", p, err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if !d.IsDir() && IsVideo(p) {
				if abs, err := filepath.Abs(p); err == nil {
					p = abs
				}
				out = append(out, p)
			}
			return nil
		})
		if err != nil {
			log.S().Debugf("scan %q: %v", root, err)
		}
	}
	return out
}

// Catalog is the set of playable files plus a duration cache filled in the
// background by an ffprobe worker. Durations let the selector plan a clip
// before the decoder has opened the file; entries without a cached duration
// are planned once the decoder reports one.
type Catalog struct {
	sync.RWMutex
	files     []string
	durations map[string]int64
	pending   chan string
}

func New() *Catalog {
	return &Catalog{
		durations: make(map[string]int64),
		pending:   make(chan string, 512),
	}
}

// Rescan rebuilds the file set from the given folders and queues files with
// unknown durations for probing.
func (c *Catalog) Rescan(paths []string) {
	files := Scan(paths)
	c.Lock()
	c.files = files
	for _, f := range files {
		if _, ok := c.durations[f]; ok {
			continue
		}
		select {
		case c.pending <- f:
		default:
			// Probe queue is full, the file will be queued on a later
			// rescan or planned from the decoder-reported duration.
		}
	}
	c.Unlock()
	log.S().Debugf("catalog: %d files across %d folders", len(files), len(paths))
}

// Files returns a snapshot of the current catalog.
func (c *Catalog) Files() []string {
	c.RLock()
	defer c.RUnlock()
	out := make([]string, len(c.files))
	copy(out, c.files)
	return out
}

func (c *Catalog) Len() int {
	c.RLock()
	defer c.RUnlock()
	return len(c.files)
}

// DurationMS returns the probed duration for a file, if known yet.
func (c *Catalog) DurationMS(path string) (int64, bool) {
	c.RLock()
	defer c.RUnlock()
	d, ok := c.durations[path]
	return d, ok
}

// Worker drains the probe queue until the context is cancelled. Probe
// failures leave the duration unknown; the file stays selectable since the
// decoder gets the final say on whether it plays.
func (c *Catalog) Worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case path := <-c.pending:
			ms, err := probeDurationMS(ctx, path)
			if err != nil {
				log.S().Debugf("probe %q: %v", path, err)
				continue
			}
			c.Lock()
			c.durations[path] = ms
			c.Unlock()
		}
	}
}

func probeDurationMS(ctx context.Context, path string) (int64, error) {
	ctxPlusTimeout, cancelFn := context.WithTimeout(ctx, 5*time.Second)
	defer cancelFn()

	data, err := ffprobe.ProbeURL(ctxPlusTimeout, path)
	if err != nil {
		return 0, err
	}
	return int64(data.Format.DurationSeconds * 1000), nil
}
