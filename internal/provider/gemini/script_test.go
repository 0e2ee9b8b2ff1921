package gemini_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scivid/scivid/internal/config"
	"github.com/scivid/scivid/internal/provider"
	"github.com/scivid/scivid/internal/provider/gemini"
	"github.com/scivid/scivid/pkg/models"
)

func scriptJSON(scenes int) string {
	payload := map[string]any{"scenes": []map[string]string{}}
	list := payload["scenes"].([]map[string]string)
	for i := 0; i < scenes; i++ {
		list = append(list, map[string]string{
			"text":           fmt.Sprintf("Narration %d.", i),
			"visual_type":    "generated",
			"visual_content": fmt.Sprintf("visual prompt %d", i),
		})
	}
	payload["scenes"] = list
	data, _ := json.Marshal(payload)
	return string(data)
}

func candidateResponse(text string) string {
	resp := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func newScriptProvider(t *testing.T, handler http.Handler) *gemini.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return gemini.NewProvider(config.GeminiConfig{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		ScriptModel: "gemini-2.5-flash",
		TTSModel:    "gemini-2.5-flash-preview-tts",
		Timeout:     5 * time.Second,
	})
}

func testPaper() *models.Paper {
	return &models.Paper{
		PaperID:  "PMC1234567",
		Title:    "A Study",
		FullText: "Full text of the study.",
	}
}

func TestGenerateScript_ParsesScenes(t *testing.T) {
	var gotModel string
	p := newScriptProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotModel = r.URL.Path
		w.Write([]byte(candidateResponse(scriptJSON(5))))
	}))

	script, err := p.GenerateScript(context.Background(), testPaper())
	require.NoError(t, err)

	assert.Contains(t, gotModel, "gemini-2.5-flash")
	require.Len(t, script.Scenes, 5)
	assert.Equal(t, "Narration 0.", script.Scenes[0].Text)
	assert.Equal(t, models.VisualTypeGenerated, script.Scenes[0].VisualType)
	assert.False(t, script.GeneratedAt.IsZero())
}

func TestGenerateScript_DefaultsVisualType(t *testing.T) {
	raw := `{"scenes":[{"text":"One.","visual_content":"a visual"}]}`
	p := newScriptProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(candidateResponse(raw)))
	}))

	script, err := p.GenerateScript(context.Background(), testPaper())
	require.NoError(t, err)
	assert.Equal(t, models.VisualTypeGenerated, script.Scenes[0].VisualType)
}

func TestGenerateScript_MalformedOutputIsGenerationError(t *testing.T) {
	p := newScriptProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(candidateResponse("this is prose, not JSON")))
	}))

	_, err := p.GenerateScript(context.Background(), testPaper())
	require.Error(t, err)

	var genErr *provider.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "gemini", genErr.Provider)
	assert.ErrorIs(t, err, provider.ErrInvalidResponse)
}

func TestGenerateScript_EmptySceneNarrationRejected(t *testing.T) {
	raw := `{"scenes":[{"text":"  ","visual_content":"a visual"}]}`
	p := newScriptProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(candidateResponse(raw)))
	}))

	_, err := p.GenerateScript(context.Background(), testPaper())
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrInvalidResponse)
}

func TestGenerateScript_UnauthorizedNotRetried(t *testing.T) {
	var calls atomic.Int64
	p := newScriptProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := p.GenerateScript(context.Background(), testPaper())
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrUnauthorized)
	assert.Equal(t, int64(1), calls.Load())
}

func TestGenerateScript_RetriesServerError(t *testing.T) {
	var calls atomic.Int64
	p := newScriptProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(candidateResponse(scriptJSON(4))))
	}))

	script, err := p.GenerateScript(context.Background(), testPaper())
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
	assert.Len(t, script.Scenes, 4)
}

func TestGenerateScript_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int64
	p := newScriptProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(candidateResponse(scriptJSON(4))))
	}))

	_, err := p.GenerateScript(context.Background(), testPaper())
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestGenerateScript_NoCandidates(t *testing.T) {
	p := newScriptProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))

	_, err := p.GenerateScript(context.Background(), testPaper())
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrInvalidResponse)
}
