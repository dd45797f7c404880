package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "CURADOR_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "CURADOR_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "CURADOR_SERVER_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "generation.backend", typ: kString, env: "CURADOR_GENERATION_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Generation.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.Backend },
	},
	{
		key: "generation.timeout", typ: kDuration, env: "CURADOR_GENERATION_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Generation.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Generation.Timeout },
	},
	{
		key: "generation.requests_per_minute", typ: kInt, env: "CURADOR_GENERATION_REQUESTS_PER_MINUTE",
		apply:   func(cfg *Config, v any) { cfg.Generation.RequestsPerMinute = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.RequestsPerMinute },
	},
	{
		key: "cloud.base_url", typ: kString, env: "CURADOR_CLOUD_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Cloud.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Cloud.BaseURL },
	},
	{
		key: "cloud.model", typ: kString, env: "CURADOR_CLOUD_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Cloud.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Cloud.Model },
	},
	{
		key: "cloud.api_key", typ: kString, env: "CURADOR_CLOUD_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Cloud.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Cloud.APIKey },
	},
	{
		key: "local.base_url", typ: kString, env: "CURADOR_LOCAL_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Local.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Local.BaseURL },
	},
	{
		key: "local.model", typ: kString, env: "CURADOR_LOCAL_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Local.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Local.Model },
	},
	{
		key: "local.api_key", typ: kString, env: "CURADOR_LOCAL_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Local.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Local.APIKey },
	},
	{
		key: "ollama.base_url", typ: kString, env: "CURADOR_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "CURADOR_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "storage.data_dir", typ: kString, env: "CURADOR_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "knowledge.enabled", typ: kBool, env: "CURADOR_KNOWLEDGE_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Knowledge.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Knowledge.Enabled },
	},
	{
		key: "knowledge.collection", typ: kString, env: "CURADOR_KNOWLEDGE_COLLECTION",
		apply:   func(cfg *Config, v any) { cfg.Knowledge.Collection = v.(string) },
		extract: func(cfg Config) any { return cfg.Knowledge.Collection },
	},
	{
		key: "knowledge.top_k", typ: kInt, env: "CURADOR_KNOWLEDGE_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Knowledge.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Knowledge.TopK },
	},
	{
		key: "knowledge.redis_url", typ: kString, env: "CURADOR_KNOWLEDGE_REDIS_URL",
		apply:   func(cfg *Config, v any) { cfg.Knowledge.RedisURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Knowledge.RedisURL },
	},
	{
		key: "knowledge.cache_ttl", typ: kDuration, env: "CURADOR_KNOWLEDGE_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Knowledge.CacheTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Knowledge.CacheTTL },
	},
	{
		key: "curation.partition", typ: kString, env: "CURADOR_CURATION_PARTITION",
		apply:   func(cfg *Config, v any) { cfg.Curation.Partition = v.(string) },
		extract: func(cfg Config) any { return cfg.Curation.Partition },
	},
	{
		key: "curation.default_domain", typ: kString, env: "CURADOR_CURATION_DEFAULT_DOMAIN",
		apply:   func(cfg *Config, v any) { cfg.Curation.DefaultDomain = v.(string) },
		extract: func(cfg Config) any { return cfg.Curation.DefaultDomain },
	},
	{
		key: "curation.max_pdf_pages", typ: kInt, env: "CURADOR_CURATION_MAX_PDF_PAGES",
		apply:   func(cfg *Config, v any) { cfg.Curation.MaxPDFPages = v.(int) },
		extract: func(cfg Config) any { return cfg.Curation.MaxPDFPages },
	},
	{
		key: "curation.query_chars", typ: kInt, env: "CURADOR_CURATION_QUERY_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Curation.QueryChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Curation.QueryChars },
	},
	{
		key: "curation.snippet_chars", typ: kInt, env: "CURADOR_CURATION_SNIPPET_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Curation.SnippetChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Curation.SnippetChars },
	},
	{
		key: "curation.excerpt_chars", typ: kInt, env: "CURADOR_CURATION_EXCERPT_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Curation.ExcerptChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Curation.ExcerptChars },
	},
	{
		key: "curation.curate_max_tokens", typ: kInt, env: "CURADOR_CURATION_CURATE_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Curation.CurateMaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Curation.CurateMaxTokens },
	},
	{
		key: "curation.categorize_max_tokens", typ: kInt, env: "CURADOR_CURATION_CATEGORIZE_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Curation.CategorizeMaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Curation.CategorizeMaxTokens },
	},
	{
		key: "curation.curate_min_chars", typ: kInt, env: "CURADOR_CURATION_CURATE_MIN_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Curation.CurateMinChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Curation.CurateMinChars },
	},
	{
		key: "curation.categorize_min_chars", typ: kInt, env: "CURADOR_CURATION_CATEGORIZE_MIN_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Curation.CategorizeMinChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Curation.CategorizeMinChars },
	},
	{
		key: "curation.strict_schema", typ: kBool, env: "CURADOR_CURATION_STRICT_SCHEMA",
		apply:   func(cfg *Config, v any) { cfg.Curation.StrictSchema = v.(bool) },
		extract: func(cfg Config) any { return cfg.Curation.StrictSchema },
	},
	{
		key: "log.level", typ: kString, env: "CURADOR_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parseValue converts raw into the Go type of s.
func parseValue(s keySpec, raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		default:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok || (s.typ != kString && v == "") {
				continue
			}
			pv, err := parseValue(s, v)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			s.apply(cfg, pv)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using configured value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}

// applySecrets fills secret keys the environment left empty.
func applySecrets(cfg *Config, store secretStore) {
	if store == nil {
		return
	}
	for _, s := range specs {
		if !s.secret {
			continue
		}
		if cur, _ := s.extract(*cfg).(string); cur != "" {
			continue
		}
		if v, err := store.Get(s.key); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}
