package publish

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"vodcutter/config"
)

// Publisher turns a local VOD file into a publicly fetchable URL the clip
// service can download from. Implementations are selected by configuration;
// the orchestrator only sees this interface.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// New builds the Publisher selected by PUBLISH_MODE.
func New(s *config.Settings) (Publisher, error) {
	switch s.PublishMode {
	case "local":
		return &LocalPublisher{Dir: s.PublicDir, BaseURL: s.PublicBaseURL}, nil
	case "gcs":
		return &GCSPublisher{
			Bucket:          s.GCSBucket,
			CredentialsFile: s.GCSCredentialsFile,
			URLTTL:          s.SignedURLTTL,
		}, nil
	case "s3":
		return &S3Publisher{
			Bucket:    s.S3Bucket,
			Region:    s.S3Region,
			AccessKey: s.S3AccessKey,
			SecretKey: s.S3SecretKey,
			URLTTL:    s.SignedURLTTL,
		}, nil
	case "sftp":
		return &SFTPPublisher{
			Host:      s.SFTPHost,
			Port:      s.SFTPPort,
			User:      s.SFTPUser,
			Password:  s.SFTPPassword,
			KeyFile:   s.SFTPKeyFile,
			RemoteDir: s.SFTPRemoteDir,
			BaseURL:   s.SFTPBaseURL,
		}, nil
	default:
		return nil, fmt.Errorf("unknown publish mode: %s", s.PublishMode)
	}
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// objectName derives a collision-free public name for a VOD: UTC timestamp,
// random suffix, then the sanitized original basename.
func objectName(localPath string) string {
	base := strings.Trim(unsafeNameChars.ReplaceAllString(filepath.Base(localPath), "_"), "_")
	return fmt.Sprintf("%s_%s_%s", time.Now().UTC().Format("20060102_150405"), randomHex(4), base)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the platform randomness source is
		// broken; object names must not silently lose their entropy.
		panic(err)
	}
	return hex.EncodeToString(b)
}
