package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8082", cfg.Addr())
	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
	assert.Equal(t, ReferenceSourceFile, cfg.ReferenceSource)
	assert.Equal(t, EmbeddingNone, cfg.EmbeddingProvider)
	assert.Equal(t, 30*time.Second, cfg.RecordTimeout)
	assert.InDelta(t, 0.85, cfg.Matching.DuplicateThreshold, 1e-9)
	assert.InDelta(t, 0.72, cfg.Matching.PotentialDuplicateThreshold, 1e-9)
	assert.InDelta(t, 0.75, cfg.Matching.SemanticThreshold, 1e-9)
	assert.Equal(t, 10, cfg.Matching.EmbeddingBatchSize)
	assert.Equal(t, 5, cfg.Matching.MaxMatches)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOW_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DUPLICATE_THRESHOLD", "0.9")
	t.Setenv("EMBEDDING_PROVIDER", "HASH")
	t.Setenv("RECORD_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowOrigins)
	assert.InDelta(t, 0.9, cfg.Matching.DuplicateThreshold, 1e-9)
	assert.Equal(t, EmbeddingHash, cfg.EmbeddingProvider)
	assert.Equal(t, 5*time.Second, cfg.RecordTimeout)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dedup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
max_matches: 3
acronyms:
  ICRAF:
    - World Agroforestry Centre
`), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Matching.MaxMatches)
	assert.Equal(t, []string{"World Agroforestry Centre"}, cfg.Matching.Acronyms["icraf"])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"threshold out of range", map[string]string{"SEMANTIC_THRESHOLD": "1.5"}, "semantic_threshold"},
		{"weights do not sum to one", map[string]string{"WEIGHT_RATIO": "0.5"}, "weights sum"},
		{"postgres without url", map[string]string{"REFERENCE_SOURCE": "postgres"}, "DATABASE_URL"},
		{"unknown provider", map[string]string{"EMBEDDING_PROVIDER": "openai"}, "EMBEDDING_PROVIDER"},
		{"tiers inverted", map[string]string{"POTENTIAL_DUPLICATE_THRESHOLD": "0.9"}, "above duplicate_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
