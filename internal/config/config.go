package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the SciVid server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
	PubMed   PubMedConfig
	Gemini   GeminiConfig
	Veo      VeoConfig
	FFmpeg   FFmpegConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// StorageConfig locates the media root; each job owns the
// <MediaRoot>/<job_id> artifact directory beneath it.
type StorageConfig struct {
	MediaRoot string
}

type PipelineConfig struct {
	Voice      string
	MaxWorkers int
	Merge      bool
	Timeout    time.Duration
	LockTTL    time.Duration
}

type PubMedConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type GeminiConfig struct {
	BaseURL     string
	APIKey      string
	ScriptModel string
	TTSModel    string
	Timeout     time.Duration
}

type VeoConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	PollInterval time.Duration
}

type FFmpegConfig struct {
	Binary  string
	Timeout time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("SCIVID_PORT", 8080),
			Env:  envString("SCIVID_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Storage: StorageConfig{
			MediaRoot: os.Getenv("MEDIA_ROOT"),
		},
		Pipeline: PipelineConfig{
			Voice:      envString("PIPELINE_VOICE", "Kore"),
			MaxWorkers: envInt("PIPELINE_MAX_WORKERS", 2),
			Merge:      envBool("PIPELINE_MERGE", true),
			Timeout:    envDuration("PIPELINE_TIMEOUT", 30*time.Minute),
			LockTTL:    envDuration("PIPELINE_LOCK_TTL", 45*time.Minute),
		},
		PubMed: PubMedConfig{
			BaseURL: envString("PUBMED_BASE_URL", "https://www.ncbi.nlm.nih.gov/research/bionlp/RESTful"),
			APIKey:  os.Getenv("PUBMED_API_KEY"),
			Timeout: envDuration("PUBMED_TIMEOUT", 30*time.Second),
		},
		Gemini: GeminiConfig{
			BaseURL:     envString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			APIKey:      os.Getenv("GEMINI_API_KEY"),
			ScriptModel: envString("GEMINI_SCRIPT_MODEL", "gemini-2.5-flash"),
			TTSModel:    envString("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
			Timeout:     envDuration("GEMINI_TIMEOUT", 2*time.Minute),
		},
		Veo: VeoConfig{
			BaseURL:      envString("VEO_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			APIKey:       envString("VEO_API_KEY", os.Getenv("GEMINI_API_KEY")),
			Model:        envString("VEO_MODEL", "veo-3.0-generate-001"),
			Timeout:      envDuration("VEO_TIMEOUT", 10*time.Minute),
			PollInterval: envDuration("VEO_POLL_INTERVAL", time.Second),
		},
		FFmpeg: FFmpegConfig{
			Binary:  envString("FFMPEG_BINARY", "ffmpeg"),
			Timeout: envDuration("FFMPEG_TIMEOUT", 5*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Storage.MediaRoot == "" {
		return fmt.Errorf("MEDIA_ROOT is required")
	}

	if c.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}

	if !strings.HasPrefix(c.PubMed.BaseURL, "http://") && !strings.HasPrefix(c.PubMed.BaseURL, "https://") {
		return fmt.Errorf("PUBMED_BASE_URL must start with http:// or https://, got %q", c.PubMed.BaseURL)
	}

	if c.Pipeline.MaxWorkers < 1 {
		return fmt.Errorf("PIPELINE_MAX_WORKERS must be at least 1, got %d", c.Pipeline.MaxWorkers)
	}

	if c.Pipeline.LockTTL < c.Pipeline.Timeout {
		return fmt.Errorf("PIPELINE_LOCK_TTL (%s) must not be shorter than PIPELINE_TIMEOUT (%s)",
			c.Pipeline.LockTTL, c.Pipeline.Timeout)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
