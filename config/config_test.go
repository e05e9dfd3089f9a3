package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ChunkWindowSize != DefaultChunkWindowSize {
		t.Errorf("ChunkWindowSize = %d, want %d", cfg.ChunkWindowSize, DefaultChunkWindowSize)
	}
	if cfg.ChunkOverlap != DefaultChunkOverlap {
		t.Errorf("ChunkOverlap = %d, want %d", cfg.ChunkOverlap, DefaultChunkOverlap)
	}
	if cfg.TopK != DefaultTopK {
		t.Errorf("TopK = %d, want %d", cfg.TopK, DefaultTopK)
	}
	if cfg.VectorStore != VectorStoreSQLite {
		t.Errorf("VectorStore = %q, want sqlite", cfg.VectorStore)
	}
	if cfg.ECFRTitle != 21 || cfg.ECFRPart != "11" {
		t.Errorf("locator defaults = title %d part %q", cfg.ECFRTitle, cfg.ECFRPart)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHUNK_WINDOW_SIZE", "400")
	t.Setenv("CHUNK_OVERLAP", "40")
	t.Setenv("RETRIEVAL_TOP_K", "3")
	t.Setenv("VECTOR_STORE", "postgres")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ChunkWindowSize != 400 || cfg.ChunkOverlap != 40 || cfg.TopK != 3 {
		t.Errorf("overrides not applied: window=%d overlap=%d k=%d",
			cfg.ChunkWindowSize, cfg.ChunkOverlap, cfg.TopK)
	}
	if cfg.VectorStore != VectorStorePostgres {
		t.Errorf("VectorStore = %q", cfg.VectorStore)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"overlap equals window", "CHUNK_OVERLAP", "800"},
		{"zero top-k", "RETRIEVAL_TOP_K", "0"},
		{"unknown backend", "VECTOR_STORE", "chroma"},
		{"malformed window size", "CHUNK_WINDOW_SIZE", "80O"},
		{"malformed top-k", "RETRIEVAL_TOP_K", "five"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
