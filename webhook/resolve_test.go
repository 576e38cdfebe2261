package webhook

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"vodcutter/watch"
)

type stubIndex map[string]bool

func (s stubIndex) Contains(path string) (bool, error) { return s[path], nil }

func testResolver(watchDir string) *Resolver {
	return &Resolver{
		Locator: &watch.Locator{
			WatchDir:   watchDir,
			Extensions: []string{".ts", ".mp4"},
		},
	}
}

func writeTestFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestResolveIgnoresOtherActions(t *testing.T) {
	rs := testResolver(t.TempDir())
	ev := Event{Action: "start_download"}
	if got := rs.Resolve(ev, stubIndex{}); got != "" {
		t.Errorf("Expected no resolution for non-completion action, got %q", got)
	}
}

func TestResolveDirectPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stream.ts")
	writeTestFile(t, path, 64)

	rs := testResolver(dir)
	ev := Event{Action: ActionEndDownload}
	ev.Data.VOD.PathDownloaded = path

	if got := rs.Resolve(ev, stubIndex{}); got != path {
		t.Errorf("Expected direct path %s, got %q", path, got)
	}
}

func TestResolveRewritesPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stream.ts")
	writeTestFile(t, path, 64)

	rs := testResolver(dir)
	rs.RewriteFrom = "/recorder/vods"
	rs.RewriteTo = dir
	ev := Event{Action: ActionEndDownload}
	ev.Data.VOD.PathDownloaded = "/recorder/vods/stream.ts"

	if got := rs.Resolve(ev, stubIndex{}); got != path {
		t.Errorf("Expected rewritten path %s, got %q", path, got)
	}
}

func TestResolvePlaylistFallsBackToLargestMedia(t *testing.T) {
	dir := t.TempDir()
	playlist := filepath.Join(dir, "stream.m3u8")
	writeTestFile(t, playlist, 200)
	writeTestFile(t, filepath.Join(dir, "part1.ts"), 1000)
	big := filepath.Join(dir, "full.ts")
	writeTestFile(t, big, 9000)

	rs := testResolver(dir)
	ev := Event{Action: ActionEndDownload}
	ev.Data.VOD.PathDownloaded = playlist

	if got := rs.Resolve(ev, stubIndex{}); got != big {
		t.Errorf("Expected largest media %s, got %q", big, got)
	}
}

func TestResolveBasenameFallback(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "stream_20260101.ts")
	writeTestFile(t, older, 64)
	past := time.Now().Add(-time.Hour)
	os.Chtimes(older, past, past)

	newer := filepath.Join(dir, "stream_20260102.ts")
	writeTestFile(t, newer, 64)

	rs := testResolver(dir)
	ev := Event{Action: ActionEndDownload}
	ev.Data.VOD.Basename = "stream"

	// Newest match wins when nothing is processed yet.
	if got := rs.Resolve(ev, stubIndex{}); got != newer {
		t.Errorf("Expected newest match %s, got %q", newer, got)
	}

	// An unprocessed older match beats a processed newer one.
	set := stubIndex{watch.Canonical(newer): true}
	if got := rs.Resolve(ev, set); got != older {
		t.Errorf("Expected unprocessed match %s, got %q", older, got)
	}
}

func TestResolveNothingMatches(t *testing.T) {
	rs := testResolver(t.TempDir())
	ev := Event{Action: ActionEndDownload}
	ev.Data.VOD.PathDownloaded = "/nonexistent/stream.ts"
	ev.Data.VOD.Basename = "stream"

	if got := rs.Resolve(ev, stubIndex{}); got != "" {
		t.Errorf("Expected no resolution, got %q", got)
	}
}
