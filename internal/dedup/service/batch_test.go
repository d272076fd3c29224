package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dedup-service/internal/dedup/model"
)

type staticRefs struct {
	entries []model.ReferenceEntry
	err     error
}

func (s staticRefs) LoadReferences(context.Context) ([]model.ReferenceEntry, error) {
	return s.entries, s.err
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) { return f.vec, f.err }

type panickyEmbedder struct{ trigger string }

func (p panickyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == p.trigger {
		panic("embedding exploded")
	}
	return nil, nil
}

type recordingAuditor struct {
	mu         sync.Mutex
	started    int
	classified int
	failed     []model.RowError
	finished   int
}

func (a *recordingAuditor) BatchStarted(string, string, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.started++
}

func (a *recordingAuditor) RecordClassified(string, model.RecordResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.classified++
}

func (a *recordingAuditor) RecordFailed(_ string, e model.RowError) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failed = append(a.failed, e)
}

func (a *recordingAuditor) BatchFinished(string, model.Progress, time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finished++
}

func registry() []model.ReferenceEntry {
	return []model.ReferenceEntry{
		ref("1", "International Rice Research Institute", "IRRI"),
		ref("2", "International Maize and Wheat Improvement Center", "CIMMYT"),
		ref("3", "Madagascar Gas Authority", ""),
	}
}

func uploadRows(n int) []model.UploadRow {
	rows := make([]model.UploadRow, n)
	for i := range rows {
		rows[i] = model.UploadRow{
			Line: i + 2,
			Record: model.InstitutionRecord{
				ID:              fmt.Sprintf("u%d", i),
				Name:            fmt.Sprintf("Partner Organisation Number %d", i),
				InstitutionType: "NGO",
				CountryID:       "KE",
			},
		}
	}
	return rows
}

func newTestRunner(t *testing.T, refs ReferenceSource, emb Embedder, audit Auditor) *Runner {
	t.Helper()
	return NewRunner(newTestDetector(t), refs, emb, audit, nil, zerolog.Nop(), RunnerOptions{Workers: 3})
}

func TestRunReportsMalformedRowsWithoutFailing(t *testing.T) {
	t.Parallel()

	audit := &recordingAuditor{}
	r := newTestRunner(t, staticRefs{entries: registry()}, fakeEmbedder{}, audit)

	rows := uploadRows(10)
	rows[3].Record.Name = "  "
	rows[0].Record.Name = "International Rice Research Institute"
	rows[1].Record.Name = "CIMMYT"
	rows[1].Record.Acronym = "CIMMYT"

	res, err := r.Run(context.Background(), Batch{Filename: "partners.xlsx", Rows: rows})
	require.NoError(t, err)

	assert.NotEmpty(t, res.FileID)
	assert.Equal(t, 10, res.TotalRecords)
	assert.Len(t, res.Results, 9)
	require.Len(t, res.Progress.Errors, 1)
	assert.Equal(t, "Row 5: Missing or empty 'partner_name'", res.Progress.Errors[0].String())
	assert.Equal(t, 9, res.Progress.Processed)
	assert.Equal(t, 9, res.Progress.Duplicates+res.Progress.PotentialDuplicates+res.Progress.NoMatch)

	assert.Equal(t, "u0", res.Results[0].ID)
	assert.Equal(t, model.StatusDuplicate, res.Results[0].Status)
	assert.Equal(t, "ref-1", res.Results[0].MatchedReferenceID)
	assert.Equal(t, model.StatusDuplicate, res.Results[1].Status)
	assert.Equal(t, "ref-2", res.Results[1].MatchedReferenceID)
	assert.Equal(t, "u2", res.Results[2].ID)
	assert.Equal(t, "u4", res.Results[3].ID, "input order kept, failed row removed")
	assert.Equal(t, 2, res.Results[0].Row)
	assert.Equal(t, 6, res.Results[3].Row)

	assert.Equal(t, 1, audit.started)
	assert.Equal(t, 9, audit.classified)
	assert.Len(t, audit.failed, 1)
	assert.Equal(t, 1, audit.finished)
}

func TestRunCarriesIngestionErrors(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, staticRefs{entries: registry()}, nil, nil)
	res, err := r.Run(context.Background(), Batch{
		Rows:   uploadRows(2),
		Errors: []model.RowError{{Row: 4, Message: "Missing or empty 'country_id'"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalRecords)
	assert.Equal(t, 2, res.Progress.Processed)
	require.Len(t, res.Progress.Errors, 1)
	assert.Equal(t, 4, res.Progress.Errors[0].Row)
}

func TestRunFailsWithoutReferences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		refs ReferenceSource
	}{
		{"source error", staticRefs{err: errors.New("connection refused")}},
		{"empty registry", staticRefs{}},
		{"only malformed entries", staticRefs{entries: []model.ReferenceEntry{ref("1", "", "")}}},
		{"no source", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := newTestRunner(t, tt.refs, nil, nil)
			_, err := r.Run(context.Background(), Batch{Rows: uploadRows(1)})
			assert.ErrorIs(t, err, model.ErrNoReferences)
		})
	}
}

func TestRunDegradesOnEmbeddingFailure(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, staticRefs{entries: registry()}, fakeEmbedder{err: errors.New("bedrock unavailable")}, nil)
	rows := uploadRows(1)
	rows[0].Record.Name = "international rice research institute"

	res, err := r.Run(context.Background(), Batch{Rows: rows})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, model.StatusDuplicate, res.Results[0].Status)
	assert.Empty(t, res.Progress.Errors)
}

func TestRunRecoversRecordPanics(t *testing.T) {
	t.Parallel()

	rows := uploadRows(3)
	trigger := "Partner_name: " + rows[1].Record.Name + ", institution_type: NGO, country: KE"
	r := newTestRunner(t, staticRefs{entries: registry()}, panickyEmbedder{trigger: trigger}, nil)

	res, err := r.Run(context.Background(), Batch{Rows: rows})
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
	require.Len(t, res.Progress.Errors, 1)
	assert.Equal(t, 3, res.Progress.Errors[0].Row)
	assert.Contains(t, res.Progress.Errors[0].Message, "internal error")
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, staticRefs{entries: registry()}, nil, nil)
	corpus, err := r.LoadCorpus(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.RunWithCorpus(ctx, Batch{Rows: uploadRows(5)}, corpus)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessRecordAlternatives(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t)
	r := NewRunner(d, staticRefs{entries: registry()}, nil, nil, nil, zerolog.Nop(), RunnerOptions{WithAlternatives: true})
	corpus, err := r.LoadCorpus(context.Background())
	require.NoError(t, err)

	res := r.ProcessRecord(context.Background(), model.InstitutionRecord{ID: "x", Name: "International Rice Research Institute"}, corpus)
	require.NotEmpty(t, res.Alternatives)
	assert.Equal(t, "ref-1", res.Alternatives[0].ReferenceID)
}

func TestRunBatchAlternatives(t *testing.T) {
	t.Parallel()

	d := newTestDetector(t)
	r := NewRunner(d, staticRefs{entries: registry()}, nil, nil, nil, zerolog.Nop(), RunnerOptions{Workers: 2})
	rows := []model.UploadRow{{Line: 2, Record: model.InstitutionRecord{ID: "a", Name: "International Maize and Wheat Improvement Center"}}}

	plain, err := r.Run(context.Background(), Batch{Rows: rows})
	require.NoError(t, err)
	assert.Nil(t, plain.Results[0].Alternatives)

	ranked, err := r.Run(context.Background(), Batch{Rows: rows, Alternatives: true})
	require.NoError(t, err)
	require.NotEmpty(t, ranked.Results[0].Alternatives)
	assert.Equal(t, "ref-2", ranked.Results[0].Alternatives[0].ReferenceID)
}
