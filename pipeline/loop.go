package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"vodcutter/logger"
	"vodcutter/watch"
	"vodcutter/webhook"
)

// heartbeatInterval is how long the webhook consumer waits before logging
// that it is still alive and idle.
const heartbeatInterval = 60 * time.Second

// Start runs the configured trigger mode until ctx is cancelled or, in
// run-once mode, one job has been handled. An explicit VOD_FILE bypasses
// both modes and runs exactly once.
func (r *Runner) Start(ctx context.Context) error {
	if f := r.Settings.ExplicitVODFile; f != "" {
		logger.Infof("Explicit VOD file mode enabled: %s", f)
		err := r.Run(ctx, f)
		if errors.Is(err, ErrAlreadyProcessed) {
			logger.Warnf("Skip already processed VOD: %s", f)
			return nil
		}
		return err
	}
	if r.Settings.TriggerMode == "webhook" {
		return r.runWebhookLoop(ctx)
	}
	return r.runPollLoop(ctx)
}

// runLogged invokes Run and folds its outcome into the loop's logging
// policy: already-processed is a benign skip, everything else is logged and
// swallowed so the loop survives.
func (r *Runner) runLogged(ctx context.Context, vodPath string) {
	err := r.Run(ctx, vodPath)
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyProcessed):
		logger.Warnf("Skip already processed VOD: %s", vodPath)
	default:
		logger.Errorf("Pipeline error for %s: %v", vodPath, err)
	}
}

func (r *Runner) locator() *watch.Locator {
	s := r.Settings
	return &watch.Locator{
		WatchDir:     s.WatchDir,
		Extensions:   s.VODExtensions,
		MinSize:      s.MinVODSize,
		Window:       s.StabilityWindow,
		PollInterval: s.PollInterval,
	}
}

// runWebhookLoop serves the intake endpoint and consumes its queue one
// event at a time. Producers (HTTP handlers) may run concurrently; this
// consumer is strictly serial, so pipeline runs never overlap.
func (r *Runner) runWebhookLoop(ctx context.Context) error {
	s := r.Settings
	queue := make(chan webhook.Event, 64)
	intake := webhook.NewIntake(s.WebhookPath, s.WebhookToken, queue)
	resolver := &webhook.Resolver{
		Locator:     r.locator(),
		RewriteFrom: s.RewriteFrom,
		RewriteTo:   s.RewriteTo,
	}

	addr := net.JoinHostPort(s.WebhookHost, strconv.Itoa(s.WebhookPort))
	srv := &http.Server{Addr: addr, Handler: intake}

	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		logger.Infof("Webhook listener started on http://%s%s", addr, s.WebhookPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook listener failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-done:
		}
		logger.Info("Shutting down webhook listener")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		defer close(done)
		return r.consumeEvents(gctx, queue, resolver)
	})

	return g.Wait()
}

// consumeEvents is the single consumer of the webhook queue. Events are
// handled strictly in arrival order.
func (r *Runner) consumeEvents(ctx context.Context, queue <-chan webhook.Event, resolver *webhook.Resolver) error {
	handled := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(heartbeatInterval):
			logger.Infof("Still waiting for webhook event (action=%s), none in last %s",
				webhook.ActionEndDownload, heartbeatInterval)
			continue
		case ev := <-queue:
			vodPath := resolver.Resolve(ev, r.Set)
			if vodPath == "" {
				// Whether an end_download event that resolved to nothing
				// counts as the one handled job is configurable; other
				// actions are always ignored.
				if r.Settings.CountUnresolved && ev.Action == webhook.ActionEndDownload {
					handled++
				}
			} else {
				r.runLogged(ctx, vodPath)
				handled++
			}
			if r.Settings.RunOnce && handled >= 1 {
				logger.Info("Run-once mode: one job handled, exiting")
				return nil
			}
		}
	}
}

// runPollLoop scans the watch directory until a stable VOD appears, runs the
// pipeline on it, and either exits (run-once) or keeps cycling with a
// minimum inter-cycle delay.
func (r *Runner) runPollLoop(ctx context.Context) error {
	locator := r.locator()
	for {
		logger.Info("Waiting for finished VOD in poll mode")
		vodPath, err := locator.WaitForVOD(ctx, r.Set)
		if err != nil {
			return err
		}
		r.runLogged(ctx, vodPath)
		if r.Settings.RunOnce {
			logger.Info("Run-once mode: poll cycle completed, exiting")
			return nil
		}
		delay := r.Settings.PollInterval
		if delay < 10*time.Second {
			delay = 10 * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
