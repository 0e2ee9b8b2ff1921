package gemini

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/scivid/scivid/internal/provider"
	"github.com/scivid/scivid/pkg/models"
)

// The TTS model streams 16-bit mono PCM at 24 kHz.
const (
	sampleRate     = 24000
	bytesPerSample = 2
)

// Synthesize narrates every scene with the given voice and returns one
// combined WAV track with per-scene boundaries. A failure on any scene fails
// the whole call; partial narration is never returned.
func (p *Provider) Synthesize(ctx context.Context, scenes []models.Scene, voice string) (*models.SynthesisResult, error) {
	if len(scenes) == 0 {
		return nil, &provider.GenerationError{Provider: p.Name(),
			Err: fmt.Errorf("%w: no scenes to narrate", provider.ErrInvalidResponse)}
	}

	var pcm []byte
	boundaries := make([]models.SceneBoundary, 0, len(scenes))
	offset := 0.0

	for i, scene := range scenes {
		segment, err := p.synthesizeScene(ctx, scene.Text, voice)
		if err != nil {
			return nil, &provider.GenerationError{
				Provider:     p.Name(),
				SceneIndices: []int{i},
				Err:          err,
			}
		}
		duration := float64(len(segment)) / float64(sampleRate*bytesPerSample)
		boundaries = append(boundaries, models.SceneBoundary{
			Index: i,
			Start: offset,
			End:   offset + duration,
		})
		offset += duration
		pcm = append(pcm, segment...)
	}

	return &models.SynthesisResult{
		Audio:           pcmToWAV(pcm),
		SceneBoundaries: boundaries,
		TotalDuration:   offset,
	}, nil
}

func (p *Provider) synthesizeScene(ctx context.Context, text, voice string) ([]byte, error) {
	var parts []part
	err := provider.RetryTransient(ctx, func() error {
		var callErr error
		parts, callErr = p.generateContent(ctx, p.cfg.TTSModel, generateRequest{
			Contents: []content{{Parts: []part{{Text: text}}}},
			GenerationConfig: &generationConfig{
				ResponseModalities: []string{"AUDIO"},
				SpeechConfig: &speechConfig{
					VoiceConfig: voiceConfig{
						PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: voice},
					},
				},
			},
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}

	data := parts[0].InlineData
	if data == nil || data.Data == "" {
		return nil, fmt.Errorf("%w: no audio data returned", provider.ErrInvalidResponse)
	}
	pcm, err := base64.StdEncoding.DecodeString(data.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding audio data: %v", provider.ErrInvalidResponse, err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: empty audio data", provider.ErrInvalidResponse)
	}
	return pcm, nil
}

// pcmToWAV wraps raw 16-bit mono PCM in a RIFF/WAVE header.
func pcmToWAV(pcm []byte) []byte {
	dataLen := uint32(len(pcm))
	byteRate := uint32(sampleRate * bytesPerSample)

	header := make([]byte, 0, 44)
	header = append(header, []byte("RIFF")...)
	header = appendUint32(header, 36+dataLen)
	header = append(header, []byte("WAVE")...)
	header = append(header, []byte("fmt ")...)
	header = appendUint32(header, 16)               // fmt chunk size
	header = appendUint16(header, 1)                // PCM
	header = appendUint16(header, 1)                // mono
	header = appendUint32(header, sampleRate)       // sample rate
	header = appendUint32(header, byteRate)         // byte rate
	header = appendUint16(header, bytesPerSample)   // block align
	header = appendUint16(header, bytesPerSample*8) // bits per sample
	header = append(header, []byte("data")...)
	header = appendUint32(header, dataLen)

	return append(header, pcm...)
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v), byte(v>>8))
}

var _ models.SpeechSynthesizer = (*Provider)(nil)
