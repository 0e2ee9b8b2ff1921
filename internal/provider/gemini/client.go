// Package gemini calls the Gemini generative language API for script
// generation and narration synthesis.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/scivid/scivid/internal/config"
	"github.com/scivid/scivid/internal/provider"
)

// Provider implements models.ScriptGenerator and models.SpeechSynthesizer.
type Provider struct {
	cfg    config.GeminiConfig
	client *http.Client
}

// NewProvider creates a new Gemini provider.
func NewProvider(cfg config.GeminiConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *Provider) Name() string { return "gemini" }

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type generationConfig struct {
	ResponseMimeType   string        `json:"responseMimeType,omitempty"`
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// generateContent posts a generateContent request to the given model and
// returns the first candidate's parts. Transient HTTP failures are marked for
// retry; the caller wraps the call in provider.RetryTransient.
func (p *Provider) generateContent(ctx context.Context, model string, req generateRequest) ([]part, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	u := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(p.cfg.BaseURL, "/"), url.PathEscape(model), url.QueryEscape(p.cfg.APIKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, provider.Transient(fmt.Errorf("%w: gemini returned status 429", provider.ErrRateLimited))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: gemini returned status %d", provider.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, provider.Transient(fmt.Errorf("gemini returned status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("gemini returned status %d", resp.StatusCode)
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("decoding gemini response: %w", err)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: no candidates returned", provider.ErrInvalidResponse)
	}
	return genResp.Candidates[0].Content.Parts, nil
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return provider.Transient(fmt.Errorf("gemini request timed out: %w", err))
	}
	return provider.Transient(fmt.Errorf("gemini unreachable: %w", err))
}
