package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/scivid/scivid/internal/provider"
	"github.com/scivid/scivid/pkg/models"
)

// maxPaperLength caps the paper text sent to the model to stay inside context
// limits.
const maxPaperLength = 50000

const (
	minScenes = 4
	maxScenes = 10
)

const scriptPromptTemplate = `You are creating a short social media video script (TikTok/Instagram style) that tells the story of a scientific paper.

Paper Title: %s

Paper Content:
%s

Create %d-%d scenes that tell a compelling story: open with the real-world problem, introduce the study and who did it (mention the journal or institution for credibility), present the key findings, and close with the impact and what remains unknown.

Guidelines:
- Short, punchy sentences; conversational, no jargon
- For each scene, write a detailed video generation prompt describing the visual
- Avoid medical imagery, identifiable people, brands, and copyrighted material in the visual prompts

Return ONLY a JSON object with this structure:
{"scenes": [{"text": "narration sentence", "visual_type": "generated", "visual_content": "video generation prompt"}]}`

// GenerateScript produces a scene-by-scene narration script from the paper.
// Model output is validated against the scene schema before being returned; a
// malformed response surfaces as a GenerationError.
func (p *Provider) GenerateScript(ctx context.Context, paper *models.Paper) (*models.Script, error) {
	text := paper.FullText
	if len(text) > maxPaperLength {
		text = text[:maxPaperLength]
	}
	prompt := fmt.Sprintf(scriptPromptTemplate, paper.Title, text, minScenes, maxScenes)

	var parts []part
	err := provider.RetryTransient(ctx, func() error {
		var callErr error
		parts, callErr = p.generateContent(ctx, p.cfg.ScriptModel, generateRequest{
			Contents: []content{{Parts: []part{{Text: prompt}}}},
			GenerationConfig: &generationConfig{
				ResponseMimeType: "application/json",
			},
		})
		return callErr
	})
	if err != nil {
		return nil, &provider.GenerationError{Provider: p.Name(), Err: err}
	}

	script, err := parseScript(parts[0].Text)
	if err != nil {
		return nil, &provider.GenerationError{Provider: p.Name(), Err: err}
	}
	return script, nil
}

func parseScript(raw string) (*models.Script, error) {
	var payload struct {
		Scenes []models.Scene `json:"scenes"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrInvalidResponse, err)
	}
	if len(payload.Scenes) == 0 {
		return nil, fmt.Errorf("%w: script has no scenes", provider.ErrInvalidResponse)
	}
	for i, s := range payload.Scenes {
		if strings.TrimSpace(s.Text) == "" {
			return nil, fmt.Errorf("%w: scene %d has empty narration", provider.ErrInvalidResponse, i)
		}
		if strings.TrimSpace(s.VisualContent) == "" {
			return nil, fmt.Errorf("%w: scene %d has empty visual prompt", provider.ErrInvalidResponse, i)
		}
		if payload.Scenes[i].VisualType == "" {
			payload.Scenes[i].VisualType = models.VisualTypeGenerated
		}
	}
	return &models.Script{
		Scenes:      payload.Scenes,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

var _ models.ScriptGenerator = (*Provider)(nil)
