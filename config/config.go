package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Settings is the full configuration surface of the pipeline, resolved once
// at startup from environment variables. Handlers and loops receive it by
// reference instead of reading the environment themselves.
type Settings struct {
	// Trigger
	TriggerMode  string // "webhook" or "poll"
	WebhookHost  string
	WebhookPort  int
	WebhookPath  string
	WebhookToken string

	// VOD detection
	WatchDir        string
	VODExtensions   []string // lowercase, dot-prefixed
	PollInterval    time.Duration
	StabilityWindow time.Duration
	MinVODSize      int64 // bytes
	ProcessedDBPath string
	RewriteFrom     string
	RewriteTo       string

	// Publish backend
	PublishMode   string // "local", "gcs", "s3" or "sftp"
	PublicDir     string
	PublicBaseURL string
	SignedURLTTL  time.Duration

	GCSBucket          string
	GCSCredentialsFile string

	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string

	SFTPHost      string
	SFTPPort      string
	SFTPUser      string
	SFTPPassword  string
	SFTPKeyFile   string
	SFTPRemoteDir string
	SFTPBaseURL   string

	// Clip service
	ClipAPIBase         string
	ClipBearerToken     string
	ClipOrgID           string
	ClipUserID          string
	ClipLang            string
	ClipSourceLang      string
	ClipMinSec          int
	ClipMaxSec          int
	ClipAspectRatio     string
	ClipCustomPrompt    string
	ClipBrandTemplateID string
	ClipWaitTimeout     time.Duration
	ClipPollInterval    time.Duration
	DownloadDir         string

	// Video host
	YTClientSecretFile string
	YTTokenFile        string
	YTPrivacy          string
	YTCategoryID       string
	YTTitlePrefix      string
	YTDefaultTags      []string

	// Runtime
	RunOnce bool
	// CountUnresolved controls whether a webhook event that resolved to no
	// local file still counts as the one handled job in run-once mode.
	CountUnresolved bool
	ExplicitVODFile string
}

// Load resolves Settings from the environment. It never fails; required
// values are enforced by Validate so all missing-config errors surface
// together at startup.
func Load() *Settings {
	watchDir := absPath(envStr("WATCH_DIR", "./data/storage/vods"))

	webhookPath := envStr("WEBHOOK_PATH", "/webhook/recorder")
	if !strings.HasPrefix(webhookPath, "/") {
		webhookPath = "/" + webhookPath
	}

	return &Settings{
		TriggerMode:  strings.ToLower(envStr("TRIGGER_MODE", "webhook")),
		WebhookHost:  envStr("WEBHOOK_HOST", "127.0.0.1"),
		WebhookPort:  envInt("WEBHOOK_PORT", 8090),
		WebhookPath:  webhookPath,
		WebhookToken: envStr("WEBHOOK_TOKEN", ""),

		WatchDir:        watchDir,
		VODExtensions:   splitExtensions(envStr("VOD_EXTENSIONS", ".ts,.mp4,.mkv")),
		PollInterval:    envSeconds("POLL_INTERVAL_SEC", 20),
		StabilityWindow: envSeconds("STABLE_FOR_SEC", 120),
		MinVODSize:      int64(envInt("MIN_VOD_SIZE_MB", 200)) << 20,
		ProcessedDBPath: absPath(envStr("PROCESSED_DB_PATH", "./data/processed.db")),
		RewriteFrom:     envStr("SOURCE_PATH_REWRITE_FROM", ""),
		RewriteTo:       envStr("SOURCE_PATH_REWRITE_TO", ""),

		PublishMode:   strings.ToLower(envStr("PUBLISH_MODE", "local")),
		PublicDir:     absPath(envStr("PUBLIC_OUTPUT_DIR", "./public_vods")),
		PublicBaseURL: strings.TrimRight(envStr("PUBLIC_BASE_URL", ""), "/"),
		SignedURLTTL:  envSeconds("SIGNED_URL_TTL_SEC", 6*3600),

		GCSBucket:          envStr("GCS_BUCKET", ""),
		GCSCredentialsFile: envStr("GCS_CREDENTIALS_FILE", ""),

		S3Bucket:    envStr("S3_BUCKET", ""),
		S3Region:    envStr("S3_REGION", "us-east-1"),
		S3AccessKey: envStr("S3_ACCESS_KEY", ""),
		S3SecretKey: envStr("S3_SECRET_KEY", ""),

		SFTPHost:      envStr("SFTP_HOST", ""),
		SFTPPort:      envStr("SFTP_PORT", "22"),
		SFTPUser:      envStr("SFTP_USER", ""),
		SFTPPassword:  envStr("SFTP_PASSWORD", ""),
		SFTPKeyFile:   envStr("SFTP_KEY_FILE", ""),
		SFTPRemoteDir: strings.TrimRight(envStr("SFTP_REMOTE_DIR", "/vods"), "/"),
		SFTPBaseURL:   strings.TrimRight(envStr("SFTP_BASE_URL", ""), "/"),

		ClipAPIBase:         strings.TrimRight(envStr("CLIP_API_BASE", "https://api.opus.pro"), "/"),
		ClipBearerToken:     envStr("CLIP_BEARER_TOKEN", ""),
		ClipOrgID:           envStr("CLIP_ORG_ID", ""),
		ClipUserID:          envStr("CLIP_USER_ID", ""),
		ClipLang:            envStr("CLIP_LANG", "en"),
		ClipSourceLang:      envStr("CLIP_SOURCE_LANG", "en"),
		ClipMinSec:          envInt("CLIP_MIN_SEC", 15),
		ClipMaxSec:          envInt("CLIP_MAX_SEC", 30),
		ClipAspectRatio:     envStr("CLIP_LAYOUT_ASPECT_RATIO", "portrait"),
		ClipCustomPrompt:    envStr("CLIP_CUSTOM_PROMPT", ""),
		ClipBrandTemplateID: envStr("CLIP_BRAND_TEMPLATE_ID", ""),
		ClipWaitTimeout:     envSeconds("CLIP_WAIT_TIMEOUT_SEC", 300),
		ClipPollInterval:    envSeconds("CLIP_POLL_INTERVAL_SEC", 15),
		DownloadDir:         absPath(envStr("DOWNLOAD_DIR", "./downloads")),

		YTClientSecretFile: absPath(envStr("YT_CLIENT_SECRET_FILE", "./youtube_client_secret.json")),
		YTTokenFile:        absPath(envStr("YT_TOKEN_FILE", "./youtube_token.json")),
		YTPrivacy:          envStr("YT_PRIVACY_STATUS", "public"),
		YTCategoryID:       envStr("YT_CATEGORY_ID", "22"),
		YTTitlePrefix:      envStr("YT_TITLE_PREFIX", "Short clip"),
		YTDefaultTags:      splitList(envStr("YT_DEFAULT_TAGS", "shorts,twitch,clips")),

		RunOnce:         envBool("RUN_ONCE", true),
		CountUnresolved: envBool("RUN_ONCE_COUNTS_UNRESOLVED", false),
		ExplicitVODFile: maybeAbsPath(envStr("VOD_FILE", "")),
	}
}

// Validate enforces the configuration rules that must hold before the
// pipeline starts. Any error returned here is fatal.
func (s *Settings) Validate() error {
	if s.TriggerMode != "webhook" && s.TriggerMode != "poll" {
		return fmt.Errorf("TRIGGER_MODE must be 'webhook' or 'poll', got %q", s.TriggerMode)
	}
	if s.ClipBearerToken == "" {
		return fmt.Errorf("CLIP_BEARER_TOKEN is required")
	}
	if s.ExplicitVODFile == "" && s.TriggerMode == "poll" {
		if _, err := os.Stat(s.WatchDir); err != nil {
			return fmt.Errorf("WATCH_DIR not found: %s", s.WatchDir)
		}
	}
	switch s.PublishMode {
	case "local":
		if s.PublicBaseURL == "" {
			return fmt.Errorf("PUBLIC_BASE_URL is required for local publish mode")
		}
	case "gcs":
		if s.GCSBucket == "" || s.GCSCredentialsFile == "" {
			return fmt.Errorf("GCS_BUCKET and GCS_CREDENTIALS_FILE are required for gcs publish mode")
		}
	case "s3":
		if s.S3Bucket == "" || s.S3AccessKey == "" || s.S3SecretKey == "" {
			return fmt.Errorf("S3_BUCKET, S3_ACCESS_KEY and S3_SECRET_KEY are required for s3 publish mode")
		}
	case "sftp":
		if s.SFTPHost == "" || s.SFTPUser == "" || s.SFTPBaseURL == "" {
			return fmt.Errorf("SFTP_HOST, SFTP_USER and SFTP_BASE_URL are required for sftp publish mode")
		}
		if s.SFTPPassword == "" && s.SFTPKeyFile == "" {
			return fmt.Errorf("one of SFTP_PASSWORD or SFTP_KEY_FILE is required for sftp publish mode")
		}
	default:
		return fmt.Errorf("PUBLISH_MODE must be one of local, gcs, s3, sftp; got %q", s.PublishMode)
	}
	if _, err := os.Stat(s.YTClientSecretFile); err != nil {
		return fmt.Errorf("YouTube client secret file not found: %s", s.YTClientSecretFile)
	}
	if s.ClipMinSec <= 0 || s.ClipMaxSec < s.ClipMinSec {
		return fmt.Errorf("clip duration range invalid: min=%d max=%d", s.ClipMinSec, s.ClipMaxSec)
	}
	return nil
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envSeconds(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Second
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// splitExtensions normalizes a comma-separated extension list to lowercase
// dot-prefixed form, e.g. "ts, MP4" -> [".ts", ".mp4"].
func splitExtensions(raw string) []string {
	var exts []string
	for _, e := range strings.Split(raw, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return exts
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

func maybeAbsPath(p string) string {
	if p == "" {
		return ""
	}
	return absPath(p)
}
