package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"vodcutter/logger"
)

// GCSPublisher streams the VOD into a Google Cloud Storage bucket and hands
// back a V4 signed GET URL so the object stays private otherwise.
type GCSPublisher struct {
	Bucket          string
	CredentialsFile string
	URLTTL          time.Duration
}

func (p *GCSPublisher) Publish(ctx context.Context, localPath string) (string, error) {
	client, err := storage.NewClient(ctx, option.WithCredentialsFile(p.CredentialsFile))
	if err != nil {
		return "", fmt.Errorf("storage.NewClient: %w", err)
	}
	defer client.Close()

	name := objectName(localPath)
	logger.Infof("Publishing VOD to GCS bucket %s as %s", p.Bucket, name)

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open VOD: %w", err)
	}
	defer f.Close()

	obj := client.Bucket(p.Bucket).Object(name)
	wc := obj.NewWriter(ctx)
	// 16 MiB chunks keep memory bounded on multi-gigabyte recordings.
	wc.ChunkSize = 16 << 20
	if _, err := io.Copy(wc, f); err != nil {
		wc.Close()
		return "", fmt.Errorf("io.Copy: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("Writer.Close: %w", err)
	}

	url, err := client.Bucket(p.Bucket).SignedURL(name, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(p.URLTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign GCS URL: %w", err)
	}
	return url, nil
}
