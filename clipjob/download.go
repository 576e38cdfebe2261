package clipjob

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"vodcutter/logger"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SafeName replaces filesystem-hostile characters so a remote clip id can be
// used as a local filename.
func SafeName(name string) string {
	return strings.Trim(unsafeNameChars.ReplaceAllString(name, "_"), "_")
}

// DownloadClips fetches every clip's preview media into dir and returns the
// local paths, index-aligned with the clips that were actually downloaded.
// A clip without a retrievable URL is skipped with a warning.
func (c *Client) DownloadClips(ctx context.Context, clips []Clip, dir string) ([]string, []Clip, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create clip download directory: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	var paths []string
	var kept []Clip
	for idx, clip := range clips {
		id := clip.ID
		if id == "" {
			id = fmt.Sprintf("clip_%d", idx+1)
		}
		if clip.PreviewURL == "" {
			logger.Warnf("Clip %s has no preview URL, skipping", id)
			continue
		}
		target := filepath.Join(dir, SafeName(id)+".mp4")
		logger.Infof("Downloading clip #%d: %s -> %s", idx+1, clip.PreviewURL, target)
		if err := downloadFile(ctx, client, clip.PreviewURL, target); err != nil {
			return nil, nil, fmt.Errorf("failed to download clip %s: %w", id, err)
		}
		paths = append(paths, target)
		kept = append(kept, clip)
	}
	return paths, kept, nil
}

func downloadFile(ctx context.Context, client *http.Client, url, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(target)
		return err
	}
	return f.Close()
}
