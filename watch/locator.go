package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"vodcutter/logger"
)

// ProcessedIndex is the part of the processed ledger the locator needs.
type ProcessedIndex interface {
	Contains(path string) (bool, error)
}

// Candidate is one file under the watch directory that might be a finished
// recording. Recomputed on every scan, never persisted.
type Candidate struct {
	Path       string
	Size       int64
	ModifiedAt time.Time
}

// Locator finds finished recordings under a watch directory.
type Locator struct {
	WatchDir     string
	Extensions   []string // lowercase, dot-prefixed
	MinSize      int64
	Window       time.Duration
	PollInterval time.Duration
}

// ListCandidates walks the watch directory tree and returns files with an
// allowed extension, most recently modified first.
func (l *Locator) ListCandidates() []Candidate {
	var out []Candidate
	err := filepath.WalkDir(l.WatchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A subtree going away mid-walk is not fatal to the scan.
			return nil
		}
		if d.IsDir() || !l.allowedExt(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out = append(out, Candidate{Path: path, Size: info.Size(), ModifiedAt: info.ModTime()})
		return nil
	})
	if err != nil {
		logger.Warnf("Watch directory walk failed: %v", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModifiedAt.After(out[j].ModifiedAt) })
	return out
}

// Scan returns the newest stable, sufficiently large, not-yet-processed
// candidate, or "" if nothing is ready on this cycle.
func (l *Locator) Scan(ctx context.Context, set ProcessedIndex) (string, error) {
	candidates := l.ListCandidates()
	logger.Debugf("Scan found %d candidate file(s) in %s", len(candidates), l.WatchDir)

	for _, c := range candidates {
		key := Canonical(c.Path)
		seen, err := set.Contains(key)
		if err != nil {
			return "", err
		}
		if seen {
			continue
		}
		if c.Size < l.MinSize {
			continue
		}
		if time.Since(c.ModifiedAt) < l.Window {
			continue
		}
		stable, err := Stable(ctx, c.Path, l.Window)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			// File vanished or became unreadable mid-check; try again
			// next cycle.
			logger.Warnf("Stability check failed for %s: %v", c.Path, err)
			continue
		}
		if stable {
			logger.Infof("Selected stable VOD for processing: %s", c.Path)
			return c.Path, nil
		}
	}
	return "", nil
}

// WaitForVOD scans repeatedly until a ready candidate appears or ctx is
// cancelled.
func (l *Locator) WaitForVOD(ctx context.Context, set ProcessedIndex) (string, error) {
	cycle := 0
	for {
		cycle++
		path, err := l.Scan(ctx, set)
		if err != nil {
			return "", err
		}
		if path != "" {
			return path, nil
		}
		logger.Infof("Poll cycle #%d: no ready VOD yet, sleeping %s", cycle, l.PollInterval)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.PollInterval):
		}
	}
}

// LargestMedia returns the biggest allowed-extension file in dir, or "".
// Used when a webhook hands us a playlist reference instead of the media
// file itself.
func (l *Locator) LargestMedia(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestSize int64 = -1
	for _, e := range entries {
		if e.IsDir() || !l.allowedExt(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best = filepath.Join(dir, e.Name())
			bestSize = info.Size()
		}
	}
	return best
}

func (l *Locator) allowedExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range l.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
