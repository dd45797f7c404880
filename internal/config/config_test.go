package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// mockSecrets is a test double for the secrets file.
type mockSecrets map[string]string

func (m mockSecrets) Get(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `# empty config`)

	cfg, err := loadFromPath(path, mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Generation.Backend != "cloud" {
		t.Errorf("Generation.Backend = %q, want cloud", cfg.Generation.Backend)
	}
	if cfg.Generation.Timeout != 120*time.Second {
		t.Errorf("Generation.Timeout = %v, want 120s", cfg.Generation.Timeout)
	}
	if cfg.Cloud.BaseURL != "https://api.groq.com/openai/v1" {
		t.Errorf("Cloud.BaseURL = %q", cfg.Cloud.BaseURL)
	}
	if cfg.Cloud.Model != "llama-3.1-8b-instant" {
		t.Errorf("Cloud.Model = %q", cfg.Cloud.Model)
	}
	if cfg.Local.BaseURL != "http://127.0.0.1:11434/v1" {
		t.Errorf("Local.BaseURL = %q", cfg.Local.BaseURL)
	}
	if cfg.Local.Model != "llama3.1:8b" {
		t.Errorf("Local.Model = %q", cfg.Local.Model)
	}
	if cfg.Knowledge.Collection != "BaseCurador" {
		t.Errorf("Knowledge.Collection = %q", cfg.Knowledge.Collection)
	}
	if cfg.Curation.Partition != "agro" {
		t.Errorf("Curation.Partition = %q", cfg.Curation.Partition)
	}
	if cfg.Curation.MaxPDFPages != 10 || cfg.Curation.ExcerptChars != 6000 {
		t.Errorf("Curation limits = %d pages, %d chars", cfg.Curation.MaxPDFPages, cfg.Curation.ExcerptChars)
	}
	if cfg.Curation.CurateMinChars != 150 || cfg.Curation.CategorizeMinChars != 100 {
		t.Errorf("min chars = %d/%d, want 150/100", cfg.Curation.CurateMinChars, cfg.Curation.CategorizeMinChars)
	}
	if !cfg.Curation.StrictSchema {
		t.Error("StrictSchema should default to true")
	}
	if cfg.Cloud.APIKey != "" {
		t.Errorf("Cloud.APIKey = %q, want empty", cfg.Cloud.APIKey)
	}
}

// TestMissingFile verifies that a missing config file means defaults.
func TestMissingFile(t *testing.T) {
	clearEnv(t)
	cfg, err := loadFromPath(filepath.Join(t.TempDir(), "nope.toml"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
}

// TestTOMLParsing verifies that all fields are correctly read from a TOML file.
func TestTOMLParsing(t *testing.T) {
	clearEnv(t)
	content := `
[server]
host = "0.0.0.0"
port = 5000

[generation]
backend = "local"
timeout = "45s"
requests_per_minute = 30

[local]
base_url = "http://gpu-box:11434/v1"
model = "qwen2.5:7b"

[ollama]
embed_model = "custom-embed"

[storage]
data_dir = "/tmp/curador-test"

[knowledge]
enabled = false
top_k = 5
redis_url = "redis://localhost:6379/2"
cache_ttl = "1h"

[curation]
partition = "bioinsumos"
default_domain = "BIOINSUMOS"
strict_schema = false
excerpt_chars = 7000

[log]
level = "debug"
`
	path := writeTempConfig(t, content)

	cfg, err := loadFromPath(path, mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 5000 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Generation.Backend != "local" || cfg.Generation.Timeout != 45*time.Second || cfg.Generation.RequestsPerMinute != 30 {
		t.Errorf("Generation = %+v", cfg.Generation)
	}
	if got := cfg.ActiveBackend(); got.BaseURL != "http://gpu-box:11434/v1" || got.Model != "qwen2.5:7b" {
		t.Errorf("ActiveBackend = %+v", got)
	}
	if cfg.Ollama.EmbedModel != "custom-embed" {
		t.Errorf("Ollama.EmbedModel = %q", cfg.Ollama.EmbedModel)
	}
	if cfg.Storage.DataDir != "/tmp/curador-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Knowledge.Enabled || cfg.Knowledge.TopK != 5 || cfg.Knowledge.CacheTTL != time.Hour {
		t.Errorf("Knowledge = %+v", cfg.Knowledge)
	}
	if cfg.Knowledge.RedisURL != "redis://localhost:6379/2" {
		t.Errorf("Knowledge.RedisURL = %q", cfg.Knowledge.RedisURL)
	}
	if cfg.Curation.Partition != "bioinsumos" || cfg.Curation.DefaultDomain != "BIOINSUMOS" {
		t.Errorf("Curation = %+v", cfg.Curation)
	}
	if cfg.Curation.StrictSchema {
		t.Error("StrictSchema should be false")
	}
	if cfg.Curation.ExcerptChars != 7000 {
		t.Errorf("ExcerptChars = %d", cfg.Curation.ExcerptChars)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "[server]\nport = 5000\n")

	t.Setenv("CURADOR_SERVER_PORT", "6000")
	t.Setenv("CURADOR_CURATION_STRICT_SCHEMA", "false")
	t.Setenv("CURADOR_GENERATION_TIMEOUT", "2m")
	t.Setenv("CURADOR_CLOUD_API_KEY", "env-key")

	cfg, err := loadFromPath(path, mockSecrets{"cloud.api_key": "file-key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Curation.StrictSchema {
		t.Error("StrictSchema should be overridden to false")
	}
	if cfg.Generation.Timeout != 2*time.Minute {
		t.Errorf("Generation.Timeout = %v, want 2m", cfg.Generation.Timeout)
	}
	if cfg.Cloud.APIKey != "env-key" {
		t.Errorf("Cloud.APIKey = %q, want env-key", cfg.Cloud.APIKey)
	}
}

// TestInvalidEnvIgnored verifies an unparseable env var keeps the configured value.
func TestInvalidEnvIgnored(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "[server]\nport = 5000\n")
	t.Setenv("CURADOR_SERVER_PORT", "not-a-number")

	cfg, err := loadFromPath(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
}

// TestSecretsFallback verifies the secrets file is consulted when the env is empty.
func TestSecretsFallback(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `# no secrets in file`)

	cfg, err := loadFromPath(path, mockSecrets{"cloud.api_key": "gsk-secret", "local.api_key": "ollama"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cloud.APIKey != "gsk-secret" {
		t.Errorf("Cloud.APIKey = %q, want gsk-secret", cfg.Cloud.APIKey)
	}
	if cfg.Local.APIKey != "ollama" {
		t.Errorf("Local.APIKey = %q, want ollama", cfg.Local.APIKey)
	}
}

// TestSecretsNotReadFromConfigFile verifies secrets in config.toml are ignored.
func TestSecretsNotReadFromConfigFile(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "[cloud]\napi_key = \"leaked\"\n")

	cfg, err := loadFromPath(path, mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cloud.APIKey != "" {
		t.Errorf("Cloud.APIKey = %q, want empty", cfg.Cloud.APIKey)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad backend", "[generation]\nbackend = \"mlx\"\n", "generation.backend"},
		{"bad port", "[server]\nport = 70000\n", "server.port"},
		{"bad partition", "[curation]\npartition = \"fruticultura\"\n", "curation.partition"},
		{"domain outside partition", "[curation]\ndefault_domain = \"BIOINSUMOS\"\n", "curation.default_domain"},
		{"bad url", "[cloud]\nbase_url = \"groq\"\n", "cloud.base_url"},
		{"zero limit", "[curation]\nexcerpt_chars = 0\n", "curation.excerpt_chars"},
		{"bad level", "[log]\nlevel = \"loud\"\n", "log.level"},
		{"bad duration", "[generation]\ntimeout = \"soon\"\n", "generation.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := loadFromPath(writeTempConfig(t, tt.content), nil)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "", "warn", "error"} {
		if _, err := ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q): %v", s, err)
		}
	}
}

func TestShowAll_MasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Cloud.APIKey = "gsk-very-secret"

	var sawCloudKey bool
	for _, ki := range ShowAll(cfg) {
		if strings.Contains(ki.Value, "gsk-very-secret") {
			t.Fatalf("secret leaked via %s", ki.Key)
		}
		switch ki.Key {
		case "cloud.api_key":
			sawCloudKey = true
			if ki.Value != "(set)" {
				t.Errorf("cloud.api_key = %q, want (set)", ki.Value)
			}
		case "local.api_key":
			if ki.Value != "(unset)" {
				t.Errorf("local.api_key = %q, want (unset)", ki.Value)
			}
		case "generation.timeout":
			if ki.Value != "2m0s" {
				t.Errorf("generation.timeout = %q, want 2m0s", ki.Value)
			}
		}
	}
	if !sawCloudKey {
		t.Error("cloud.api_key not listed")
	}
}

func TestSetKey_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	b, err := openTOMLBackend(path)
	if err != nil {
		t.Fatal(err)
	}

	for k, v := range map[string]string{
		"server.port":             "9100",
		"curation.strict_schema":  "false",
		"generation.timeout":      "30s",
		"curation.default_domain": "solos",
	} {
		if err := setKeyIn(b, k, v); err != nil {
			t.Fatalf("setKeyIn(%s): %v", k, err)
		}
	}

	cfg, err := loadFromPath(path, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Curation.StrictSchema {
		t.Error("StrictSchema should be false")
	}
	if cfg.Generation.Timeout != 30*time.Second {
		t.Errorf("Generation.Timeout = %v", cfg.Generation.Timeout)
	}
	if cfg.Curation.DefaultDomain != "solos" {
		t.Errorf("DefaultDomain = %q", cfg.Curation.DefaultDomain)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[server]") {
		t.Errorf("config file should be written as nested tables:\n%s", data)
	}
}

func TestSetKey_Rejects(t *testing.T) {
	b, err := openTOMLBackend(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range map[string]string{
		"server.nope":        "1",
		"server.port":        "abc",
		"generation.backend": "mlx",
		"cloud.api_key":      "x",
	} {
		if err := setKeyIn(b, k, v); err == nil {
			t.Errorf("setKeyIn(%s=%s) should fail", k, v)
		}
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	if len(keys) != len(specs) {
		t.Errorf("got %d keys, want %d", len(keys), len(specs))
	}
	seen := map[string]bool{}
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key %s", k)
		}
		seen[k] = true
	}
}
