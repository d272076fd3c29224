package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dedup-service/internal/config"
	"dedup-service/internal/dedup/model"
	"dedup-service/internal/observability"
	"dedup-service/internal/store"
)

func TestReferences_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "refs.json")
	want := []model.ReferenceEntry{{InstitutionRecord: model.InstitutionRecord{ID: "1", Name: "Wageningen University"}, ReferenceID: "r1"}}
	require.NoError(t, store.WriteSnapshot(path, want))

	refs, pg, closeFn, err := References(context.Background(), config.Config{ReferenceSource: config.ReferenceSourceFile, ReferenceFile: path}, zerolog.Nop())
	require.NoError(t, err)
	defer closeFn()
	assert.Nil(t, pg)

	got, err := refs.LoadReferences(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReferences_Unknown(t *testing.T) {
	t.Parallel()

	_, _, closeFn, err := References(context.Background(), config.Config{ReferenceSource: "s3"}, zerolog.Nop())
	require.Error(t, err)
	closeFn()
}

func TestEmbedder(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		p, err := Embedder(context.Background(), config.Config{EmbeddingProvider: config.EmbeddingNone}, nil)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("hash is cached and instrumented", func(t *testing.T) {
		m := observability.NewMetrics("test", prometheus.NewRegistry())
		cfg := config.Config{EmbeddingProvider: config.EmbeddingHash, EmbeddingDimensions: 16, EmbeddingCacheSize: 8}
		p, err := Embedder(context.Background(), cfg, m)
		require.NoError(t, err)

		a, err := p.Embed(context.Background(), "CIMMYT")
		require.NoError(t, err)
		b, err := p.Embed(context.Background(), "CIMMYT")
		require.NoError(t, err)
		assert.Len(t, a, 16)
		assert.Equal(t, a, b)
		assert.InDelta(t, 1, testutil.ToFloat64(m.EmbeddingRequests.WithLabelValues("hash", "ok")), 1e-9)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := Embedder(context.Background(), config.Config{EmbeddingProvider: "openai"}, nil)
		assert.Error(t, err)
	})
}

func TestRunnerOptions(t *testing.T) {
	t.Parallel()

	o := RunnerOptions(config.Config{Workers: 3, WithAlternatives: true})
	assert.Equal(t, 3, o.Workers)
	assert.True(t, o.WithAlternatives)
}
