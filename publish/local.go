package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"vodcutter/logger"
)

// LocalPublisher copies the VOD into a directory served by a static HTTP
// server and returns the URL under the configured base.
type LocalPublisher struct {
	Dir     string
	BaseURL string
}

func (p *LocalPublisher) Publish(ctx context.Context, localPath string) (string, error) {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create public directory: %w", err)
	}
	name := objectName(localPath)
	dst := filepath.Join(p.Dir, name)
	logger.Infof("Publishing VOD via local serve: %s -> %s", localPath, dst)

	if err := copyFile(localPath, dst); err != nil {
		return "", fmt.Errorf("failed to copy VOD to public directory: %w", err)
	}
	return p.BaseURL + "/" + name, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
