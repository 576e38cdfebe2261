package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vodcutter/clipjob"
	"vodcutter/config"
	"vodcutter/logger"
	"vodcutter/processed"
	"vodcutter/publish"
	"vodcutter/watch"
)

// ErrAlreadyProcessed marks the benign skip of a VOD whose canonical path is
// already in the ledger. Callers log it as a skip, not a failure.
var ErrAlreadyProcessed = errors.New("VOD already processed")

// Ledger is the slice of the processed store the orchestrator uses.
type Ledger interface {
	Contains(path string) (bool, error)
	Add(rec processed.Record) error
}

// ClipService is the remote clip-job boundary.
type ClipService interface {
	Submit(ctx context.Context, videoURL string) (string, error)
	AwaitClips(ctx context.Context, projectID string) ([]clipjob.Clip, error)
	DownloadClips(ctx context.Context, clips []clipjob.Clip, dir string) ([]string, []clipjob.Clip, error)
}

// VideoUploader is the publish-to-video-host boundary.
type VideoUploader interface {
	Upload(ctx context.Context, path, title, description string, tags []string) (string, error)
}

// Runner sequences one VOD through the whole pipeline. It processes at most
// one run at a time; all concurrency lives in the webhook intake.
type Runner struct {
	Settings  *config.Settings
	Set       Ledger
	Publisher publish.Publisher
	Clips     ClipService
	Uploader  VideoUploader
}

// Run executes the full job for one VOD: validate, publish, submit the clip
// job, wait for clips, download, upload, commit. Any stage failure aborts
// without touching the ledger, so the VOD stays eligible for a future
// trigger.
func (r *Runner) Run(ctx context.Context, vodPath string) error {
	logger.Infof("Pipeline started for VOD: %s", vodPath)

	if _, err := os.Stat(vodPath); err != nil {
		return fmt.Errorf("VOD file not found: %s: %w", vodPath, err)
	}
	canonical := watch.Canonical(vodPath)
	seen, err := r.Set.Contains(canonical)
	if err != nil {
		return fmt.Errorf("failed to query processed ledger: %w", err)
	}
	if seen {
		return fmt.Errorf("%w: %s", ErrAlreadyProcessed, canonical)
	}

	videoURL, err := r.Publisher.Publish(ctx, vodPath)
	if err != nil {
		return fmt.Errorf("publish stage failed: %w", err)
	}
	logger.Infof("Published VOD URL: %s", videoURL)

	projectID, err := r.Clips.Submit(ctx, videoURL)
	if err != nil {
		return fmt.Errorf("clip job submit failed: %w", err)
	}

	clips, err := r.Clips.AwaitClips(ctx, projectID)
	if err != nil {
		return fmt.Errorf("waiting for clips failed: %w", err)
	}
	logger.Infof("Clips ready: %d (project=%s)", len(clips), projectID)

	clipsDir := filepath.Join(r.Settings.DownloadDir, clipjob.SafeName(projectID))
	paths, kept, err := r.Clips.DownloadClips(ctx, clips, clipsDir)
	if err != nil {
		return fmt.Errorf("clip download failed: %w", err)
	}
	logger.Infof("Downloaded clips: %d -> %s", len(paths), clipsDir)

	var videoIDs []string
	for i, path := range paths {
		title, description := clipText(kept[i], r.Settings.YTTitlePrefix, i+1)
		videoID, err := r.Uploader.Upload(ctx, path, title, description, r.Settings.YTDefaultTags)
		if err != nil {
			// No per-clip retry: one failed upload fails the whole run.
			return fmt.Errorf("upload of clip %d/%d failed: %w", i+1, len(paths), err)
		}
		logger.Infof("Uploaded to video host: %s (%s)", videoID, filepath.Base(path))
		videoIDs = append(videoIDs, videoID)
	}

	if err := r.Set.Add(processed.Record{
		Path:      canonical,
		ClipJobID: projectID,
		VideoIDs:  videoIDs,
	}); err != nil {
		return fmt.Errorf("failed to commit processed record: %w", err)
	}
	logger.Infof("Pipeline completed successfully: %s (%d video(s))", canonical, len(videoIDs))
	return nil
}

// clipText derives the video title and description for a clip. Title falls
// back to "<prefix> #<n>"; description joins the clip's description and
// hashtags.
func clipText(clip clipjob.Clip, titlePrefix string, n int) (string, string) {
	title := strings.TrimSpace(clip.Title)
	if title == "" {
		title = fmt.Sprintf("%s #%d", titlePrefix, n)
	}
	var parts []string
	if d := strings.TrimSpace(clip.Description); d != "" {
		parts = append(parts, d)
	}
	if h := strings.TrimSpace(clip.Hashtags); h != "" {
		parts = append(parts, h)
	}
	return title, strings.Join(parts, "\n\n")
}
