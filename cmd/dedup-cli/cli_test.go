package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dedup-service/internal/dedup/model"
	"dedup-service/internal/fileio"
	"dedup-service/internal/store"
)

func writeRegistry(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "refs.json")
	require.NoError(t, store.WriteSnapshot(path, []model.ReferenceEntry{
		{InstitutionRecord: model.InstitutionRecord{ID: "10", Name: "International Maize and Wheat Improvement Center", Acronym: "CIMMYT"}, ReferenceID: "r1"},
		{InstitutionRecord: model.InstitutionRecord{ID: "11", Name: "Wageningen University", Acronym: "WUR"}, ReferenceID: "r2"},
	}))
	return path
}

func TestCLI(t *testing.T) {
	dir := t.TempDir()
	refs := writeRegistry(t, dir)
	csv := filepath.Join(dir, "partners.csv")
	require.NoError(t, os.WriteFile(csv, []byte(`id,partner_name,acronym,institution_type,web_page,country_id
1,International Maize and Wheat Improvement Center,CIMMYT,Research,,MX
2,,,Research,,MX
`), 0o600))

	t.Run("classify writes an xlsx report", func(t *testing.T) {
		out := filepath.Join(dir, "report.xlsx")
		var stderr bytes.Buffer
		rootCmd.SetErr(&stderr)
		rootCmd.SetArgs([]string{"classify", csv, "--references", refs, "--embeddings", "none", "--out", out})
		require.NoError(t, rootCmd.Execute())
		assert.Contains(t, stderr.String(), "2 records: 1 duplicates")

		f, err := os.Open(out)
		require.NoError(t, err)
		defer f.Close()
		table, err := fileio.Read(f, out, 1)
		require.NoError(t, err)
		assert.Equal(t, reportHeaders, table.Headers)
		require.Len(t, table.Rows, 2)
		assert.Equal(t, "duplicate", table.Rows[0].Values["status"])
		assert.Equal(t, "r1", table.Rows[0].Values["matched_reference_id"])
		assert.Equal(t, "error", table.Rows[1].Values["status"])
	})

	t.Run("embed-references fills the snapshot", func(t *testing.T) {
		out := filepath.Join(dir, "embedded.json")
		rootCmd.SetErr(&bytes.Buffer{})
		rootCmd.SetArgs([]string{"embed-references", "--references", refs, "--embeddings", "hash", "--out", out})
		require.NoError(t, rootCmd.Execute())

		entries, err := store.FileSource{Path: out}.LoadReferences(t.Context())
		require.NoError(t, err)
		require.Len(t, entries, 2)
		for _, e := range entries {
			assert.True(t, e.HasEmbedding(), e.ReferenceID)
		}
	})
}

func TestPending(t *testing.T) {
	t.Parallel()

	entries := []model.ReferenceEntry{
		{ReferenceID: "a", Embedding: []float32{1}},
		{ReferenceID: "b"},
	}
	assert.Equal(t, []int{1}, pending(entries, false))
	assert.Equal(t, []int{0, 1}, pending(entries, true))
}
