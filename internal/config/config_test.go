package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MinChunkChars != 200 || cfg.MaxChunkChars != 1200 {
		t.Errorf("expected chunk sizes 200/1200, got %d/%d", cfg.MinChunkChars, cfg.MaxChunkChars)
	}
	if cfg.VariantCount != 3 || cfg.SearchTopK != 25 || cfg.RerankTopM != 12 {
		t.Errorf("unexpected retrieval defaults: %d/%d/%d", cfg.VariantCount, cfg.SearchTopK, cfg.RerankTopM)
	}
}

func TestLoadFile_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.yaml")
	yaml := `
min_chunk_chars: 100
max_chunk_chars: 400
search_top_k: 10
subject_keywords: [SUBJECT, TOPIC]
expand_timeout: 3s
index: memory
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SEARCH_TOP_K", "40")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MinChunkChars != 100 || cfg.MaxChunkChars != 400 {
		t.Errorf("file values not applied: %d/%d", cfg.MinChunkChars, cfg.MaxChunkChars)
	}
	if cfg.SearchTopK != 40 {
		t.Errorf("expected env to override file, got %d", cfg.SearchTopK)
	}
	if cfg.ExpandTimeout != 3*time.Second {
		t.Errorf("expected 3s expand timeout, got %s", cfg.ExpandTimeout)
	}
	if len(cfg.SubjectKeywords) != 2 || cfg.SubjectKeywords[1] != "TOPIC" {
		t.Errorf("unexpected keywords %v", cfg.SubjectKeywords)
	}
	if cfg.Index != "memory" {
		t.Errorf("expected memory index, got %q", cfg.Index)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected lowercased log level, got %q", cfg.LogLevel)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFile_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("WORKER_COUNT", "lots")
	t.Setenv("RERANK_TOP_M", "-3")
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected fallback worker count 4, got %d", cfg.WorkerCount)
	}
	if cfg.RerankTopM != 12 {
		t.Errorf("expected clamped rerank top m 12, got %d", cfg.RerankTopM)
	}
}

func TestEnvList(t *testing.T) {
	t.Setenv("SUBJECT_KEYWORDS", " SUBJECT , COURSE ,,")
	got := envList("SUBJECT_KEYWORDS", nil)
	if strings.Join(got, "|") != "SUBJECT|COURSE" {
		t.Errorf("unexpected list %v", got)
	}
}

func TestValidate(t *testing.T) {
	offline := Defaults()
	offline.Offline()
	offline.Store = "memory"

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "offline ok", mutate: func(*Config) {}},
		{name: "max below min", mutate: func(c *Config) { c.MaxChunkChars = 100 }, wantErr: "MaxChunkChars"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "LogLevel"},
		{name: "unknown index", mutate: func(c *Config) { c.Index = "faiss" }, wantErr: "Index"},
		{name: "llm key required", mutate: func(c *Config) { c.LLM = "openai" }, wantErr: "LLM_API_KEY"},
		{name: "qdrant url required", mutate: func(c *Config) { c.Index = "qdrant"; c.QdrantURL = "" }, wantErr: "QDRANT_URL"},
		{name: "zero timeout", mutate: func(c *Config) { c.SearchTimeout = 0 }, wantErr: "SearchTimeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := offline
			cfg.SubjectKeywords = append([]string(nil), offline.SubjectKeywords...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateServer_RequiresAPIKey(t *testing.T) {
	cfg := Defaults()
	cfg.Offline()
	if err := cfg.ValidateServer(); err == nil || !strings.Contains(err.Error(), "RAG_API_KEY") {
		t.Fatalf("expected RAG_API_KEY error, got %v", err)
	}
	cfg.APIKey = "secret"
	if err := cfg.ValidateServer(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
