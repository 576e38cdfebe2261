package videohost

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"vodcutter/logger"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 5000
)

// Uploader publishes clips to a YouTube channel with resumable media
// transfer.
type Uploader struct {
	service     *youtube.Service
	tokenSource oauth2.TokenSource
	tokenFile   string

	Privacy     string
	CategoryID  string
	DefaultTags []string
}

// NewUploader builds the YouTube client from an installed-app client secret
// and a cached OAuth token. The token must have been generated beforehand
// (this process is headless and cannot run a consent flow); expired access
// tokens are refreshed automatically and written back to the token file.
func NewUploader(ctx context.Context, clientSecretFile, tokenFile string) (*Uploader, error) {
	secret, err := os.ReadFile(clientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client secret file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(secret, youtube.YoutubeUploadScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client secret file: %w", err)
	}

	tokenBytes, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("OAuth token file not found (generate it on a machine with a browser and copy it here): %w", err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(tokenBytes, tok); err != nil {
		return nil, fmt.Errorf("failed to parse OAuth token file: %w", err)
	}
	if tok.RefreshToken == "" && !tok.Valid() {
		return nil, fmt.Errorf("OAuth token is expired and has no refresh token: %s", tokenFile)
	}

	ts := cfg.TokenSource(ctx, tok)
	svc, err := youtube.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to build YouTube service: %w", err)
	}
	return &Uploader{service: svc, tokenSource: ts, tokenFile: tokenFile}, nil
}

// Upload sends one clip and returns the remote video id. Title and
// description are clamped to the platform limits.
func (u *Uploader) Upload(ctx context.Context, path, title, description string, tags []string) (string, error) {
	if len(tags) == 0 {
		tags = u.DefaultTags
	}
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       clamp(title, maxTitleLen),
			Description: clamp(description, maxDescriptionLen),
			Tags:        tags,
			CategoryId:  u.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           u.Privacy,
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open clip: %w", err)
	}
	defer f.Close()

	logger.Infof("Uploading clip to YouTube: %s", path)
	resp, err := u.service.Videos.Insert([]string{"snippet", "status"}, video).
		Media(f, googleapi.ChunkSize(16<<20)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("YouTube upload failed: %w", err)
	}
	logger.Infof("YouTube upload complete: video_id=%s", resp.Id)

	u.persistRefreshedToken()
	return resp.Id, nil
}

// persistRefreshedToken writes the current token back to disk so a refresh
// performed during an upload survives restarts. Best effort only.
func (u *Uploader) persistRefreshedToken() {
	tok, err := u.tokenSource.Token()
	if err != nil {
		return
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return
	}
	if err := os.WriteFile(u.tokenFile, data, 0o600); err != nil {
		logger.Warnf("Failed to persist refreshed OAuth token: %v", err)
	}
}

// clamp shortens s to max characters. The platform limits count characters,
// not bytes, so the cut must never split a multi-byte rune.
func clamp(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
