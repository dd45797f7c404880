// Package config loads the service configuration from a TOML file,
// CURADOR_* environment variables and a secrets file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/kalambet/curador/internal/composer"
)

type Config struct {
	Server     ServerConfig
	Generation GenerationConfig
	Cloud      BackendConfig
	Local      BackendConfig
	Ollama     OllamaConfig
	Storage    StorageConfig
	Knowledge  KnowledgeConfig
	Curation   CurationConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
	// APIToken guards the knowledge base management routes when set.
	APIToken string
}

type GenerationConfig struct {
	Backend           string
	Timeout           time.Duration
	RequestsPerMinute int
}

// BackendConfig is one OpenAI-compatible generation endpoint.
type BackendConfig struct {
	BaseURL string
	Model   string
	APIKey  string
}

type OllamaConfig struct {
	BaseURL    string
	EmbedModel string
}

type StorageConfig struct {
	DataDir string
}

type KnowledgeConfig struct {
	Enabled    bool
	Collection string
	TopK       int
	RedisURL   string
	CacheTTL   time.Duration
}

type CurationConfig struct {
	Partition           string
	DefaultDomain       string
	MaxPDFPages         int
	QueryChars          int
	SnippetChars        int
	ExcerptChars        int
	CurateMaxTokens     int
	CategorizeMaxTokens int
	CurateMinChars      int
	CategorizeMinChars  int
	StrictSchema        bool
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8000,
		},
		Generation: GenerationConfig{
			Backend: "cloud",
			Timeout: 120 * time.Second,
		},
		Cloud: BackendConfig{
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.1-8b-instant",
		},
		Local: BackendConfig{
			BaseURL: "http://127.0.0.1:11434/v1",
			Model:   "llama3.1:8b",
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			EmbedModel: "nomic-embed-text",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Knowledge: KnowledgeConfig{
			Enabled:    true,
			Collection: "BaseCurador",
			TopK:       3,
			CacheTTL:   7 * 24 * time.Hour,
		},
		Curation: CurationConfig{
			Partition:           composer.PartitionAgro,
			MaxPDFPages:         10,
			QueryChars:          1000,
			SnippetChars:        500,
			ExcerptChars:        6000,
			CurateMaxTokens:     4000,
			CategorizeMaxTokens: 50,
			CurateMinChars:      150,
			CategorizeMinChars:  100,
			StrictSchema:        true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the TOML file at
// $XDG_CONFIG_HOME/curador/config.toml, then applies CURADOR_* environment
// overrides, then fills secrets from the secrets file when the environment
// leaves them empty. The result is validated.
func Load() (Config, error) {
	return loadFromPath(configFilePath(), fileSecrets{path: secretsFilePath()})
}

// secretStore abstracts the secrets file for testing.
type secretStore interface {
	Get(key string) (string, error)
}

func loadFromPath(path string, secrets secretStore) (Config, error) {
	b, err := openTOMLBackend(path)
	if err != nil {
		return Config{}, err
	}
	return loadWith(b, secrets)
}

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, secrets)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every value that would otherwise fail late.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch strings.ToLower(c.Generation.Backend) {
	case "cloud", "local":
	default:
		errs = append(errs, fmt.Errorf("generation.backend %q: want cloud or local", c.Generation.Backend))
	}
	if c.Generation.Timeout <= 0 {
		errs = append(errs, errors.New("generation.timeout must be positive"))
	}
	if c.Generation.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("generation.requests_per_minute must not be negative"))
	}
	for key, raw := range map[string]string{
		"cloud.base_url":  c.Cloud.BaseURL,
		"local.base_url":  c.Local.BaseURL,
		"ollama.base_url": c.Ollama.BaseURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s %q is not an absolute URL", key, raw))
		}
	}

	p, err := composer.PartitionByName(c.Curation.Partition)
	if err != nil {
		errs = append(errs, fmt.Errorf("curation.partition: %w", err))
	} else if c.Curation.DefaultDomain != "" && !p.Has(c.Curation.DefaultDomain) {
		errs = append(errs, fmt.Errorf("curation.default_domain %q is not part of partition %q", c.Curation.DefaultDomain, p.Name))
	}

	for key, v := range map[string]int{
		"knowledge.top_k":                c.Knowledge.TopK,
		"curation.max_pdf_pages":         c.Curation.MaxPDFPages,
		"curation.query_chars":           c.Curation.QueryChars,
		"curation.snippet_chars":         c.Curation.SnippetChars,
		"curation.excerpt_chars":         c.Curation.ExcerptChars,
		"curation.curate_max_tokens":     c.Curation.CurateMaxTokens,
		"curation.categorize_max_tokens": c.Curation.CategorizeMaxTokens,
		"curation.curate_min_chars":      c.Curation.CurateMinChars,
		"curation.categorize_min_chars":  c.Curation.CategorizeMinChars,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", key, v))
		}
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ActiveBackend returns the endpoint settings of the selected generation
// backend.
func (c Config) ActiveBackend() BackendConfig {
	if strings.ToLower(c.Generation.Backend) == "local" {
		return c.Local
	}
	return c.Cloud
}

// ParseLevel maps log.level to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level %q: want debug, info, warn or error", s)
}
