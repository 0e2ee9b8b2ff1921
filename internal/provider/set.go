package provider

import "github.com/scivid/scivid/pkg/models"

// Set bundles one implementation of every provider interface the pipeline
// needs. Production wiring happens in cmd/server; tests substitute members
// with fakes from provider/mock.
type Set struct {
	Source   models.PaperSource
	Script   models.ScriptGenerator
	Speech   models.SpeechSynthesizer
	Video    models.VideoGenerator
	Renderer models.CaptionRenderer
}
