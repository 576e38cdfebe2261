package webhook

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vodcutter/logger"
	"vodcutter/watch"
)

// Resolver maps a recorder event to a local VOD file. It never blocks: every
// probe is a plain stat or directory listing.
type Resolver struct {
	Locator     *watch.Locator
	RewriteFrom string
	RewriteTo   string
}

// playlistExts are reference formats a recorder may report instead of the
// media file itself.
var playlistExts = map[string]bool{".m3u8": true, ".txt": true}

// Resolve returns the local path for the event's VOD, or "" when the event
// is not a download-completion or nothing on disk matches it.
func (rs *Resolver) Resolve(ev Event, set watch.ProcessedIndex) string {
	if ev.Action != ActionEndDownload {
		logger.Debugf("Webhook action is not %s: %q", ActionEndDownload, ev.Action)
		return ""
	}

	for _, raw := range []string{ev.Data.VOD.PathDownloaded, ev.Data.VOD.PathPlaylist} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p := rs.rewrite(raw)
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(p))
		if rs.allowedExt(ext) {
			logger.Infof("Resolved VOD from webhook direct path: %s", p)
			return p
		}
		if playlistExts[ext] {
			if media := rs.Locator.LargestMedia(filepath.Dir(p)); media != "" {
				logger.Infof("Resolved VOD from playlist reference: %s", media)
				return media
			}
		}
	}

	if chosen := rs.byBasename(ev.Data.VOD.Basename, set); chosen != "" {
		logger.Infof("Resolved VOD by basename fallback: %s", chosen)
		return chosen
	}

	logger.Warn("Could not resolve VOD file from webhook payload")
	return ""
}

// rewrite translates a recorder-host path into the local mount, when a
// prefix pair is configured.
func (rs *Resolver) rewrite(raw string) string {
	if rs.RewriteFrom != "" && rs.RewriteTo != "" && strings.HasPrefix(raw, rs.RewriteFrom) {
		raw = rs.RewriteTo + raw[len(rs.RewriteFrom):]
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return raw
	}
	return abs
}

// byBasename searches the watch directory for media files whose name
// contains the recorder's basename, preferring files not yet processed,
// otherwise the most recently modified match.
func (rs *Resolver) byBasename(basename string, set watch.ProcessedIndex) string {
	basename = strings.TrimSpace(basename)
	if basename == "" {
		return ""
	}

	var matches []watch.Candidate
	filepath.WalkDir(rs.Locator.WatchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !rs.allowedExt(strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		if !strings.Contains(filepath.Base(path), basename) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		matches = append(matches, watch.Candidate{Path: path, Size: info.Size(), ModifiedAt: info.ModTime()})
		return nil
	})
	if len(matches) == 0 {
		return ""
	}

	var unseen []watch.Candidate
	for _, m := range matches {
		seen, err := set.Contains(watch.Canonical(m.Path))
		if err == nil && !seen {
			unseen = append(unseen, m)
		}
	}
	use := unseen
	if len(use) == 0 {
		use = matches
	}
	sort.Slice(use, func(i, j int) bool { return use[i].ModifiedAt.After(use[j].ModifiedAt) })
	return use[0].Path
}

func (rs *Resolver) allowedExt(ext string) bool {
	for _, allowed := range rs.Locator.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
