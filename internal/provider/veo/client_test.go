package veo_test

import (
	"context"
	"encoding/base64"
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
	"github.com/scivid/scivid/internal/provider/veo"
	"github.com/scivid/scivid/pkg/models"
)

const opName = "operations/abc123"

func newClient(t *testing.T, handler http.Handler) *veo.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return veo.NewClient(config.VeoConfig{
		BaseURL:      srv.URL,
		APIKey:       "test-key",
		Model:        "veo-3.0-generate-001",
		Timeout:      10 * time.Second,
		PollInterval: 10 * time.Millisecond,
	})
}

func clipRequest() models.ClipRequest {
	return models.ClipRequest{SceneIndex: 0, Prompt: "a lab bench", Duration: 6}
}

func doneOperation(videoURI, encoded string) string {
	op := map[string]any{
		"name": opName,
		"done": true,
		"response": map[string]any{
			"generateVideoResponse": map[string]any{
				"generatedSamples": []map[string]any{
					{"video": map[string]string{"uri": videoURI, "encodedVideo": encoded}},
				},
			},
		},
	}
	data, _ := json.Marshal(op)
	return string(data)
}

// veoServer serves the start, poll, and download phases of one operation.
type veoServer struct {
	pollsUntilDone int
	polls          atomic.Int64
	clip           []byte
	srvURL         string
}

func (s *veoServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			fmt.Fprintf(w, `{"name":%q}`, opName)
		case r.URL.Path == "/"+opName:
			if int(s.polls.Add(1)) <= s.pollsUntilDone {
				fmt.Fprintf(w, `{"name":%q,"done":false}`, opName)
				return
			}
			w.Write([]byte(doneOperation(s.srvURL+"/files/clip.mp4", "")))
		case r.URL.Path == "/files/clip.mp4":
			w.Write(s.clip)
		default:
			http.NotFound(w, r)
		}
	}
}

func TestGenerateClip_PollsUntilDoneAndDownloads(t *testing.T) {
	server := &veoServer{pollsUntilDone: 2, clip: []byte("mp4-bytes")}
	srv := httptest.NewServer(server.handler())
	t.Cleanup(srv.Close)
	server.srvURL = srv.URL

	client := veo.NewClient(config.VeoConfig{
		BaseURL:      srv.URL,
		APIKey:       "test-key",
		Model:        "veo-3.0-generate-001",
		Timeout:      10 * time.Second,
		PollInterval: 10 * time.Millisecond,
	})

	clip, err := client.GenerateClip(context.Background(), clipRequest())
	require.NoError(t, err)
	assert.Equal(t, []byte("mp4-bytes"), clip)
	assert.Equal(t, int64(3), server.polls.Load())
}

func TestGenerateClip_InlineVideoDecoded(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("inline-mp4"))
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprintf(w, `{"name":%q}`, opName)
			return
		}
		w.Write([]byte(doneOperation("", encoded)))
	}))

	clip, err := client.GenerateClip(context.Background(), clipRequest())
	require.NoError(t, err)
	assert.Equal(t, []byte("inline-mp4"), clip)
}

func TestGenerateClip_OperationFailure(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprintf(w, `{"name":%q}`, opName)
			return
		}
		fmt.Fprintf(w, `{"name":%q,"done":true,"error":{"code":3,"message":"prompt rejected"}}`, opName)
	}))

	_, err := client.GenerateClip(context.Background(), clipRequest())
	require.Error(t, err)

	var genErr *provider.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "veo", genErr.Provider)
	assert.Equal(t, []int{0}, genErr.SceneIndices)
	assert.Contains(t, err.Error(), "prompt rejected")
}

func TestGenerateClip_UnauthorizedIsPermanent(t *testing.T) {
	var calls atomic.Int64
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.GenerateClip(context.Background(), clipRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrUnauthorized)
	assert.Equal(t, int64(1), calls.Load())
}

func TestGenerateClip_MissingOperationName(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))

	_, err := client.GenerateClip(context.Background(), clipRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrInvalidResponse)
}

func TestGenerateClip_DoneWithNoSamples(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprintf(w, `{"name":%q}`, opName)
			return
		}
		fmt.Fprintf(w, `{"name":%q,"done":true,"response":{"generateVideoResponse":{"generatedSamples":[]}}}`, opName)
	}))

	_, err := client.GenerateClip(context.Background(), clipRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrInvalidResponse)
}

func TestGenerateClip_TimeoutWhilePolling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprintf(w, `{"name":%q}`, opName)
			return
		}
		fmt.Fprintf(w, `{"name":%q,"done":false}`, opName)
	}))
	t.Cleanup(srv.Close)

	client := veo.NewClient(config.VeoConfig{
		BaseURL:      srv.URL,
		APIKey:       "test-key",
		Model:        "veo-3.0-generate-001",
		Timeout:      200 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	})

	_, err := client.GenerateClip(context.Background(), clipRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
