// Package ffmpeg burns captions into clips and concatenates them using the
// local ffmpeg binary.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/scivid/scivid/internal/config"
	"github.com/scivid/scivid/pkg/models"
)

// Renderer implements models.CaptionRenderer with ffmpeg subprocesses.
type Renderer struct {
	cfg config.FFmpegConfig
}

// NewRenderer creates a new Renderer.
func NewRenderer(cfg config.FFmpegConfig) *Renderer {
	return &Renderer{cfg: cfg}
}

func (r *Renderer) Name() string { return "ffmpeg" }

// Caption burns the narration text into the lower third of clipPath and writes
// the result to outPath. outPath is written directly by ffmpeg; callers pass a
// temporary name and rename on success.
func (r *Renderer) Caption(ctx context.Context, clipPath, text, outPath string) error {
	filter := fmt.Sprintf(
		"drawtext=text='%s':fontcolor=white:fontsize=48:box=1:boxcolor=black@0.5:boxborderw=16:x=(w-text_w)/2:y=h-th-120",
		escapeDrawtext(text))

	return r.run(ctx,
		"-y",
		"-i", clipPath,
		"-vf", filter,
		"-c:a", "copy",
		outPath,
	)
}

// Concat concatenates the clips in order into outPath using the concat demuxer.
func (r *Renderer) Concat(ctx context.Context, clipPaths []string, outPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}

	listFile, err := writeConcatList(filepath.Dir(outPath), clipPaths)
	if err != nil {
		return err
	}
	defer os.Remove(listFile)

	return r.run(ctx,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		outPath,
	)
}

func (r *Renderer) run(ctx context.Context, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.cfg.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, lastLines(stderr.String(), 5))
	}
	return nil
}

func writeConcatList(dir string, clipPaths []string) (string, error) {
	f, err := os.CreateTemp(dir, "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create concat list: %w", err)
	}
	for _, p := range clipPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("resolve clip path: %w", err)
		}
		fmt.Fprintf(f, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close concat list: %w", err)
	}
	return f.Name(), nil
}

// escapeDrawtext escapes the characters the drawtext filter treats specially.
func escapeDrawtext(text string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`%`, `\%`,
	)
	return replacer.Replace(text)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

var _ models.CaptionRenderer = (*Renderer)(nil)
