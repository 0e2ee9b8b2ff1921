// Package veo generates scene clips through the Veo video model's
// long-running-operation API.
package veo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scivid/scivid/internal/config"
	"github.com/scivid/scivid/internal/provider"
	"github.com/scivid/scivid/pkg/models"
)

// Client implements models.VideoGenerator against the Veo API.
type Client struct {
	cfg    config.VeoConfig
	client *http.Client
}

// NewClient creates a new Veo client.
func NewClient(cfg config.VeoConfig) *Client {
	return &Client{
		cfg: cfg,
		// The overall operation can outlive any single HTTP call; per-call
		// timeouts come from the request context.
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *Client) Name() string { return "veo" }

// GenerateClip starts a generation operation for one scene prompt and polls it
// to completion, returning the clip bytes.
func (c *Client) GenerateClip(ctx context.Context, req models.ClipRequest) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var opName string
	err := provider.RetryTransient(ctx, func() error {
		var startErr error
		opName, startErr = c.startOperation(ctx, req.Prompt)
		return startErr
	})
	if err != nil {
		return nil, &provider.GenerationError{
			Provider:     c.Name(),
			SceneIndices: []int{req.SceneIndex},
			Err:          err,
		}
	}

	videoURI, err := c.pollOperation(ctx, opName)
	if err != nil {
		return nil, &provider.GenerationError{
			Provider:     c.Name(),
			SceneIndices: []int{req.SceneIndex},
			Err:          err,
		}
	}

	var clip []byte
	err = provider.RetryTransient(ctx, func() error {
		var dlErr error
		clip, dlErr = c.download(ctx, videoURI)
		return dlErr
	})
	if err != nil {
		return nil, &provider.GenerationError{
			Provider:     c.Name(),
			SceneIndices: []int{req.SceneIndex},
			Err:          err,
		}
	}
	return clip, nil
}

type operationResponse struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI          string `json:"uri"`
					EncodedVideo string `json:"encodedVideo"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response"`
}

func (c *Client) startOperation(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"instances": []map[string]any{{"prompt": prompt}},
		"parameters": map[string]any{
			"aspectRatio": "9:16",
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	u := fmt.Sprintf("%s/models/%s:predictLongRunning?key=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.Model), url.QueryEscape(c.cfg.APIKey))

	var op operationResponse
	if err := c.doJSON(ctx, http.MethodPost, u, body, &op); err != nil {
		return "", err
	}
	if op.Name == "" {
		return "", fmt.Errorf("%w: operation has no name", provider.ErrInvalidResponse)
	}
	return op.Name, nil
}

// pollOperation polls the operation until it reports done, the context
// expires, or the operation fails.
func (c *Client) pollOperation(ctx context.Context, opName string) (string, error) {
	u := fmt.Sprintf("%s/%s?key=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), opName, url.QueryEscape(c.cfg.APIKey))

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for video operation: %w", ctx.Err())
		case <-ticker.C:
		}

		var op operationResponse
		err := provider.RetryTransient(ctx, func() error {
			return c.doJSON(ctx, http.MethodGet, u, nil, &op)
		})
		if err != nil {
			return "", err
		}
		if !op.Done {
			continue
		}
		if op.Error != nil {
			return "", fmt.Errorf("video operation failed: %s (code %d)", op.Error.Message, op.Error.Code)
		}
		if op.Response == nil || len(op.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
			return "", fmt.Errorf("%w: operation done with no samples", provider.ErrInvalidResponse)
		}
		video := op.Response.GenerateVideoResponse.GeneratedSamples[0].Video
		if video.URI != "" {
			return video.URI, nil
		}
		if video.EncodedVideo != "" {
			return "data:" + video.EncodedVideo, nil
		}
		return "", fmt.Errorf("%w: sample has no video content", provider.ErrInvalidResponse)
	}
}

func (c *Client) download(ctx context.Context, uri string) ([]byte, error) {
	if encoded, ok := strings.CutPrefix(uri, "data:"); ok {
		clip, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding inline video: %v", provider.ErrInvalidResponse, err)
		}
		return clip, nil
	}

	// File URIs require the API key as a query parameter.
	sep := "?"
	if strings.Contains(uri, "?") {
		sep = "&"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri+sep+"key="+url.QueryEscape(c.cfg.APIKey), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, provider.Transient(fmt.Errorf("video download returned status %d", resp.StatusCode))
	}
	clip, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.Transient(fmt.Errorf("reading video body: %w", err))
	}
	if len(clip) == 0 {
		return nil, fmt.Errorf("%w: empty video download", provider.ErrInvalidResponse)
	}
	return clip, nil
}

func (c *Client) doJSON(ctx context.Context, method, u string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return provider.Transient(fmt.Errorf("%w: veo returned status 429", provider.ErrRateLimited))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: veo returned status %d", provider.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode >= 500:
		return provider.Transient(fmt.Errorf("veo returned status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("veo returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding veo response: %w", err)
	}
	return nil
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return provider.Transient(fmt.Errorf("veo request timed out: %w", err))
	}
	return provider.Transient(fmt.Errorf("veo unreachable: %w", err))
}

var _ models.VideoGenerator = (*Client)(nil)
