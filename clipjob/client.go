package clipjob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"vodcutter/logger"
)

// ErrTimeout reports that the clip service did not produce clips before the
// configured ceiling. The run that hit it stays eligible for a full retry
// because the processed ledger was not touched.
var ErrTimeout = errors.New("clips not ready before timeout")

// Clip is one exportable short produced by the clip service.
type Clip struct {
	ID          string `json:"id"`
	PreviewURL  string `json:"uriForPreview"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Hashtags    string `json:"hashtags"`
}

// Client talks to the remote clip-generation service.
type Client struct {
	BaseURL         string
	BearerToken     string
	OrgID           string
	UserID          string
	Lang            string
	SourceLang      string
	MinSec          int
	MaxSec          int
	AspectRatio     string
	CustomPrompt    string
	BrandTemplateID string
	WaitTimeout     time.Duration
	PollInterval    time.Duration

	HTTPClient *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 90 * time.Second}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("x-clip-lang", c.Lang)
	if c.OrgID != "" {
		req.Header.Set("x-clip-org-id", c.OrgID)
	}
	if c.UserID != "" {
		req.Header.Set("x-clip-user-id", c.UserID)
	}
}

// Submit sends the published VOD URL to the clip service and returns the
// opaque project id of the created clip job.
func (c *Client) Submit(ctx context.Context, videoURL string) (string, error) {
	logger.Infof("Creating clip project for URL: %s", videoURL)

	payload := map[string]interface{}{
		"videoUrl":   videoURL,
		"utm":        map[string]string{"source": "vodcutter"},
		"importPref": map[string]string{"sourceLang": c.SourceLang},
		"curationPref": map[string]interface{}{
			"model":          "Auto",
			"clipDurations":  [][]int{{c.MinSec, c.MaxSec}},
			"topicKeywords":  []string{},
			"skipSlicing":    false,
			"skipCurate":     false,
			"genre":          "Auto",
			"customPrompt":   c.CustomPrompt,
			"enableAutoHook": true,
		},
		"renderPref": map[string]string{"layoutAspectRatio": c.AspectRatio},
	}
	if c.BrandTemplateID != "" {
		payload["brandTemplateId"] = c.BrandTemplateID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal clip project payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/clip-projects", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create clip project request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("clip project request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("clip project request returned status %d", resp.StatusCode)
	}

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode clip project response: %w", err)
	}
	id, err := extractProjectID(decoded)
	if err != nil {
		return "", err
	}
	logger.Infof("Clip project created: %s", id)
	return id, nil
}

// extractProjectID digs the project id out of the service response, which
// has carried it under several names across API versions.
func extractProjectID(body map[string]interface{}) (string, error) {
	candidates := []interface{}{body["projectId"], body["id"]}
	if data, ok := body["data"].(map[string]interface{}); ok {
		candidates = append(candidates, data["projectId"], data["id"])
	}
	for _, c := range candidates {
		if s, ok := c.(string); ok && s != "" {
			return s, nil
		}
	}
	return "", fmt.Errorf("cannot find project id in clip service response: %v", body)
}

// AwaitClips polls the clip service until the project has at least one
// exportable clip, the wait ceiling elapses (ErrTimeout), or ctx is
// cancelled.
func (c *Client) AwaitClips(ctx context.Context, projectID string) ([]Clip, error) {
	started := time.Now()
	pollNo := 0
	for {
		pollNo++
		clips, err := c.listClips(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if len(clips) > 0 {
			logger.Infof("Clip service returned %d clip(s) on poll #%d", len(clips), pollNo)
			return clips, nil
		}

		elapsed := time.Since(started)
		if elapsed > c.WaitTimeout {
			return nil, fmt.Errorf("%w: project=%s waited=%s", ErrTimeout, projectID, elapsed.Round(time.Second))
		}
		logger.Infof("Clips not ready yet (poll #%d, elapsed=%s), sleeping %s",
			pollNo, elapsed.Round(time.Second), c.PollInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.PollInterval):
		}
	}
}

func (c *Client) listClips(ctx context.Context, projectID string) ([]Clip, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/exportable-clips", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create clips request: %w", err)
	}
	q := req.URL.Query()
	q.Set("projectId", projectID)
	req.URL.RawQuery = q.Encode()
	c.setHeaders(req)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("clips request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("clips request returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Data []Clip `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode clips response: %w", err)
	}
	return decoded.Data, nil
}
