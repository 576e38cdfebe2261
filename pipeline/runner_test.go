package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"vodcutter/clipjob"
	"vodcutter/config"
	"vodcutter/processed"
	"vodcutter/watch"
)

type fakeLedger struct {
	entries map[string]processed.Record
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[string]processed.Record)}
}

func (l *fakeLedger) Contains(path string) (bool, error) {
	_, ok := l.entries[path]
	return ok, nil
}

func (l *fakeLedger) Add(rec processed.Record) error {
	l.entries[rec.Path] = rec
	return nil
}

type fakePublisher struct {
	calls int
	url   string
	err   error
}

func (p *fakePublisher) Publish(ctx context.Context, localPath string) (string, error) {
	p.calls++
	return p.url, p.err
}

type fakeClips struct {
	submitCalls int
	awaitErr    error
	clips       []clipjob.Clip
	downloadDir string
}

func (c *fakeClips) Submit(ctx context.Context, videoURL string) (string, error) {
	c.submitCalls++
	return "p1", nil
}

func (c *fakeClips) AwaitClips(ctx context.Context, projectID string) ([]clipjob.Clip, error) {
	if c.awaitErr != nil {
		return nil, c.awaitErr
	}
	return c.clips, nil
}

func (c *fakeClips) DownloadClips(ctx context.Context, clips []clipjob.Clip, dir string) ([]string, []clipjob.Clip, error) {
	c.downloadDir = dir
	var paths []string
	var kept []clipjob.Clip
	for _, clip := range clips {
		if clip.PreviewURL == "" {
			continue
		}
		paths = append(paths, filepath.Join(dir, clip.ID+".mp4"))
		kept = append(kept, clip)
	}
	return paths, kept, nil
}

type fakeUploader struct {
	calls  int
	failAt int // 1-based index of the upload that fails, 0 = never
	titles []string
	descs  []string
}

func (u *fakeUploader) Upload(ctx context.Context, path, title, description string, tags []string) (string, error) {
	u.calls++
	if u.failAt > 0 && u.calls == u.failAt {
		return "", errors.New("quota exceeded")
	}
	u.titles = append(u.titles, title)
	u.descs = append(u.descs, description)
	return fmt.Sprintf("video-%d", u.calls), nil
}

func testSettings(t *testing.T) *config.Settings {
	return &config.Settings{
		DownloadDir:   t.TempDir(),
		YTTitlePrefix: "Short clip",
		YTDefaultTags: []string{"shorts"},
	}
}

func writeVOD(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream.ts")
	if err := os.WriteFile(path, make([]byte, 1024), 0o644); err != nil {
		t.Fatalf("Failed to write VOD: %v", err)
	}
	return path
}

func TestRunHappyPath(t *testing.T) {
	vod := writeVOD(t)
	ledger := newFakeLedger()
	pub := &fakePublisher{url: "https://host/abc.ts"}
	clips := &fakeClips{clips: []clipjob.Clip{
		{ID: "c1", PreviewURL: "http://x/c1", Title: "Great moment", Description: "desc", Hashtags: "#a #b"},
		{ID: "c2", PreviewURL: "http://x/c2"},
	}}
	up := &fakeUploader{}

	r := &Runner{Settings: testSettings(t), Set: ledger, Publisher: pub, Clips: clips, Uploader: up}
	if err := r.Run(context.Background(), vod); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if up.calls != 2 {
		t.Errorf("Expected 2 uploads, got %d", up.calls)
	}
	if up.titles[0] != "Great moment" {
		t.Errorf("Expected clip title to win, got %q", up.titles[0])
	}
	if up.descs[0] != "desc\n\n#a #b" {
		t.Errorf("Unexpected description: %q", up.descs[0])
	}
	if up.titles[1] != "Short clip #2" {
		t.Errorf("Expected fallback title with 1-based index, got %q", up.titles[1])
	}

	rec, ok := ledger.entries[watch.Canonical(vod)]
	if !ok {
		t.Fatal("Expected VOD to be committed to the ledger")
	}
	if rec.ClipJobID != "p1" {
		t.Errorf("Expected clip job id p1, got %s", rec.ClipJobID)
	}
	if len(rec.VideoIDs) != 2 {
		t.Errorf("Expected 2 video ids, got %v", rec.VideoIDs)
	}
}

func TestRunAlreadyProcessed(t *testing.T) {
	vod := writeVOD(t)
	ledger := newFakeLedger()
	ledger.Add(processed.Record{Path: watch.Canonical(vod)})

	pub := &fakePublisher{url: "https://host/abc.ts"}
	clips := &fakeClips{}
	up := &fakeUploader{}

	r := &Runner{Settings: testSettings(t), Set: ledger, Publisher: pub, Clips: clips, Uploader: up}
	err := r.Run(context.Background(), vod)
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("Expected ErrAlreadyProcessed, got %v", err)
	}

	// No boundary may be touched for a committed VOD.
	if pub.calls != 0 || clips.submitCalls != 0 || up.calls != 0 {
		t.Errorf("Expected no boundary calls, got publish=%d submit=%d upload=%d",
			pub.calls, clips.submitCalls, up.calls)
	}
}

func TestRunMissingFile(t *testing.T) {
	r := &Runner{Settings: testSettings(t), Set: newFakeLedger(),
		Publisher: &fakePublisher{}, Clips: &fakeClips{}, Uploader: &fakeUploader{}}
	if err := r.Run(context.Background(), "/no/such/file.ts"); err == nil {
		t.Error("Expected error for missing VOD")
	}
}

func TestRunTimeoutLeavesLedgerUnchanged(t *testing.T) {
	vod := writeVOD(t)
	ledger := newFakeLedger()
	clips := &fakeClips{awaitErr: fmt.Errorf("waiting: %w", clipjob.ErrTimeout)}

	r := &Runner{Settings: testSettings(t), Set: ledger,
		Publisher: &fakePublisher{url: "https://host/abc.ts"}, Clips: clips, Uploader: &fakeUploader{}}
	err := r.Run(context.Background(), vod)
	if !errors.Is(err, clipjob.ErrTimeout) {
		t.Fatalf("Expected timeout error, got %v", err)
	}
	if len(ledger.entries) != 0 {
		t.Error("Expected ledger to stay empty after timeout")
	}
}

func TestRunUploadFailureAbortsRun(t *testing.T) {
	vod := writeVOD(t)
	ledger := newFakeLedger()
	clips := &fakeClips{clips: []clipjob.Clip{
		{ID: "c1", PreviewURL: "http://x/c1"},
		{ID: "c2", PreviewURL: "http://x/c2"},
		{ID: "c3", PreviewURL: "http://x/c3"},
	}}
	up := &fakeUploader{failAt: 2}

	r := &Runner{Settings: testSettings(t), Set: ledger,
		Publisher: &fakePublisher{url: "https://host/abc.ts"}, Clips: clips, Uploader: up}
	if err := r.Run(context.Background(), vod); err == nil {
		t.Fatal("Expected run to fail on upload error")
	}
	if up.calls != 2 {
		t.Errorf("Expected remaining uploads to be aborted, got %d calls", up.calls)
	}
	if len(ledger.entries) != 0 {
		t.Error("Expected ledger to stay empty after failed run")
	}
}

func TestRunIdempotentSecondInvocation(t *testing.T) {
	vod := writeVOD(t)
	ledger := newFakeLedger()
	pub := &fakePublisher{url: "https://host/abc.ts"}
	clips := &fakeClips{clips: []clipjob.Clip{{ID: "c1", PreviewURL: "http://x/c1"}}}
	up := &fakeUploader{}

	r := &Runner{Settings: testSettings(t), Set: ledger, Publisher: pub, Clips: clips, Uploader: up}
	if err := r.Run(context.Background(), vod); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if err := r.Run(context.Background(), vod); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("Expected ErrAlreadyProcessed on second run, got %v", err)
	}
	if pub.calls != 1 || clips.submitCalls != 1 || up.calls != 1 {
		t.Errorf("Second run must make no network calls: publish=%d submit=%d upload=%d",
			pub.calls, clips.submitCalls, up.calls)
	}
}
