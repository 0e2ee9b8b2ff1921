// Package pubmed fetches open-access papers from PubMed Central through the
// BioC REST API.
package pubmed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scivid/scivid/internal/config"
	"github.com/scivid/scivid/internal/provider"
	"github.com/scivid/scivid/pkg/models"
)

// Client implements models.PaperSource against PubMed Central.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a new PubMed Central client.
func NewClient(cfg config.PubMedConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) Name() string { return "pubmed" }

// Fetch retrieves the paper for a PMC identifier and returns it as a
// structured document. Returns provider.ErrNotFound when the identifier has no
// retrievable open-access document.
func (c *Client) Fetch(ctx context.Context, paperID string) (*models.Paper, error) {
	var paper *models.Paper
	err := provider.RetryTransient(ctx, func() error {
		p, err := c.fetchOnce(ctx, paperID)
		if err != nil {
			return err
		}
		paper = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paper, nil
}

func (c *Client) fetchOnce(ctx context.Context, paperID string) (*models.Paper, error) {
	u := fmt.Sprintf("%s/pmcoa.cgi/BioC_json/%s/unicode", c.baseURL, url.PathEscape(paperID))
	if c.apiKey != "" {
		u += "?api_key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", provider.ErrNotFound, paperID)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, provider.Transient(fmt.Errorf("%w: pubmed returned status 429", provider.ErrRateLimited))
	case resp.StatusCode >= 500:
		return nil, provider.Transient(fmt.Errorf("pubmed returned status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("pubmed returned status %d", resp.StatusCode)
	}

	var collections []biocCollection
	if err := json.NewDecoder(resp.Body).Decode(&collections); err != nil {
		return nil, fmt.Errorf("decoding pubmed response: %w", err)
	}

	paper := flatten(paperID, collections)
	if paper.FullText == "" {
		// The API answers 200 with an empty collection for identifiers that
		// exist but are not in the open-access subset.
		return nil, fmt.Errorf("%w: %s has no retrievable full text", provider.ErrNotFound, paperID)
	}
	paper.FetchedAt = time.Now().UTC()
	return paper, nil
}

type biocCollection struct {
	Documents []biocDocument `json:"documents"`
}

type biocDocument struct {
	ID       string        `json:"id"`
	Passages []biocPassage `json:"passages"`
}

type biocPassage struct {
	Infons map[string]string `json:"infons"`
	Text   string            `json:"text"`
}

func flatten(paperID string, collections []biocCollection) *models.Paper {
	paper := &models.Paper{PaperID: paperID}

	var parts []string
	for _, col := range collections {
		for _, doc := range col.Documents {
			for _, p := range doc.Passages {
				if p.Text == "" {
					continue
				}
				if paper.Title == "" && p.Infons["section_type"] == "TITLE" {
					paper.Title = p.Text
				}
				if paper.Journal == "" {
					if j := p.Infons["journal"]; j != "" {
						paper.Journal = j
					}
				}
				parts = append(parts, p.Text)
			}
		}
	}
	paper.FullText = strings.Join(parts, "\n\n")
	return paper
}

// classifyError maps network-level failures to the retry taxonomy.
func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return provider.Transient(fmt.Errorf("pubmed request timed out: %w", err))
	}
	return provider.Transient(fmt.Errorf("pubmed unreachable: %w", err))
}
