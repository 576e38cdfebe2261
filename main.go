package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"vodcutter/clipjob"
	"vodcutter/config"
	"vodcutter/logger"
	"vodcutter/pipeline"
	"vodcutter/processed"
	"vodcutter/publish"
	"vodcutter/videohost"
)

func main() {
	if err := logger.Init(os.Getenv("LOG_FILE"), true); err != nil {
		logger.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Close()

	settings := config.Load()
	if err := settings.Validate(); err != nil {
		logger.Fatalf("Configuration error: %v", err)
	}

	logger.Debug("Opening processed ledger")
	set, err := processed.Open(settings.ProcessedDBPath)
	if err != nil {
		logger.Fatalf("Failed to open processed ledger: %v", err)
	}
	defer set.Close()

	publisher, err := publish.New(settings)
	if err != nil {
		logger.Fatalf("Failed to build publisher: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	uploader, err := videohost.NewUploader(ctx, settings.YTClientSecretFile, settings.YTTokenFile)
	if err != nil {
		logger.Fatalf("Failed to build video host uploader: %v", err)
	}
	uploader.Privacy = settings.YTPrivacy
	uploader.CategoryID = settings.YTCategoryID
	uploader.DefaultTags = settings.YTDefaultTags

	clips := &clipjob.Client{
		BaseURL:         settings.ClipAPIBase,
		BearerToken:     settings.ClipBearerToken,
		OrgID:           settings.ClipOrgID,
		UserID:          settings.ClipUserID,
		Lang:            settings.ClipLang,
		SourceLang:      settings.ClipSourceLang,
		MinSec:          settings.ClipMinSec,
		MaxSec:          settings.ClipMaxSec,
		AspectRatio:     settings.ClipAspectRatio,
		CustomPrompt:    settings.ClipCustomPrompt,
		BrandTemplateID: settings.ClipBrandTemplateID,
		WaitTimeout:     settings.ClipWaitTimeout,
		PollInterval:    settings.ClipPollInterval,
	}

	runner := &pipeline.Runner{
		Settings:  settings,
		Set:       set,
		Publisher: publisher,
		Clips:     clips,
		Uploader:  uploader,
	}

	logStartupSummary(settings, set)

	if err := runner.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Trigger loop failed: %v", err)
	}
	logger.Info("Shutdown complete")
}

func logStartupSummary(s *config.Settings, set *processed.Store) {
	logger.Info("Starting VOD cutter pipeline")
	logger.Infof("Trigger mode: %s", s.TriggerMode)
	logger.Infof("Publish mode: %s", s.PublishMode)
	logger.Infof("Run once: %t", s.RunOnce)
	logger.Infof("Watch dir: %s", s.WatchDir)
	if s.TriggerMode == "webhook" {
		logger.Infof("Webhook endpoint: http://%s:%d%s", s.WebhookHost, s.WebhookPort, s.WebhookPath)
	}
	logger.Infof("Processed ledger: %s", s.ProcessedDBPath)
	if n, err := set.Count(); err == nil {
		logger.Infof("Already processed files: %d", n)
	}
}
