package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"dedup-service/internal/dedup/model"
	"dedup-service/internal/embedding"
	"dedup-service/internal/observability"
)

// Embedder maps text to a vector. A nil vector with a nil error means the
// provider has nothing for this text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ReferenceSource loads the reference registry with precomputed embeddings.
type ReferenceSource interface {
	LoadReferences(ctx context.Context) ([]model.ReferenceEntry, error)
}

// Auditor receives batch lifecycle events.
type Auditor interface {
	BatchStarted(fileID, filename string, total int)
	RecordClassified(fileID string, res model.RecordResult)
	RecordFailed(fileID string, rowErr model.RowError)
	BatchFinished(fileID string, progress model.Progress, elapsed time.Duration)
}

type RunnerOptions struct {
	Workers          int
	RecordTimeout    time.Duration
	WithAlternatives bool
}

// Batch is one upload: the parsed rows plus the rows ingestion already rejected.
// Alternatives requests ranked registry matches for every result.
type Batch struct {
	Filename     string
	Rows         []model.UploadRow
	Errors       []model.RowError
	Alternatives bool
}

// Runner classifies batches of uploaded records against the reference registry.
type Runner struct {
	det     *Detector
	refs    ReferenceSource
	emb     Embedder
	audit   Auditor
	metrics *observability.Metrics
	log     zerolog.Logger
	opts    RunnerOptions
}

// NewRunner builds a runner. emb, audit and metrics may be nil.
func NewRunner(det *Detector, refs ReferenceSource, emb Embedder, audit Auditor, metrics *observability.Metrics, log zerolog.Logger, opts RunnerOptions) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Runner{det: det, refs: refs, emb: emb, audit: audit, metrics: metrics, log: log, opts: opts}
}

func (r *Runner) Detector() *Detector { return r.det }

// LoadCorpus fetches and prepares the registry. No reference data at all is a
// batch-level failure wrapped in model.ErrNoReferences.
func (r *Runner) LoadCorpus(ctx context.Context) (*Corpus, error) {
	if r.refs == nil {
		return nil, model.ErrNoReferences
	}
	entries, err := r.refs.LoadReferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrNoReferences, err)
	}
	corpus := r.det.Prepare(entries)
	if corpus.Len() == 0 {
		return nil, fmt.Errorf("%w: no usable entries (%d skipped)", model.ErrNoReferences, corpus.Skipped())
	}
	if corpus.Skipped() > 0 {
		r.log.Warn().Int("skipped", corpus.Skipped()).Msg("reference entries without name or id skipped")
	}
	r.metrics.SetReferenceEntries(corpus.Len())
	return corpus, nil
}

// Run loads the registry and classifies every row. Row failures are reported
// in the progress error list; only a missing registry or a cancelled context
// fails the batch.
func (r *Runner) Run(ctx context.Context, b Batch) (model.BatchResult, error) {
	start := time.Now()
	corpus, err := r.LoadCorpus(ctx)
	if err != nil {
		r.metrics.RecordBatch(false, time.Since(start).Seconds())
		return model.BatchResult{}, err
	}
	res, err := r.RunWithCorpus(ctx, b, corpus)
	r.metrics.RecordBatch(err == nil, time.Since(start).Seconds())
	return res, err
}

// RunWithCorpus classifies a batch against an already prepared corpus.
func (r *Runner) RunWithCorpus(ctx context.Context, b Batch, corpus *Corpus) (model.BatchResult, error) {
	start := time.Now()
	fileID := uuid.NewString()
	total := len(b.Rows) + len(b.Errors)
	log := r.log.With().Str("file_id", fileID).Str("filename", b.Filename).Logger()

	if r.audit != nil {
		r.audit.BatchStarted(fileID, b.Filename, total)
	}
	log.Info().Int("records", total).Int("references", corpus.Len()).Msg("batch started")

	type slot struct {
		res    model.RecordResult
		rowErr *model.RowError
	}
	slots := make([]slot, len(b.Rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, row := range b.Rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, rowErr := r.processRow(gctx, row, corpus)
			slots[i] = slot{res: res, rowErr: rowErr}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("batch aborted")
		return model.BatchResult{}, fmt.Errorf("batch %s: %w", fileID, err)
	}

	out := model.BatchResult{
		FileID:       fileID,
		Filename:     b.Filename,
		TotalRecords: total,
		Results:      make([]model.RecordResult, 0, len(b.Rows)),
		Progress: model.Progress{
			Total:  total,
			Errors: append([]model.RowError{}, b.Errors...),
		},
	}
	for _, e := range b.Errors {
		if r.audit != nil {
			r.audit.RecordFailed(fileID, e)
		}
	}
	for _, s := range slots {
		if s.rowErr != nil {
			out.Progress.Errors = append(out.Progress.Errors, *s.rowErr)
			if r.audit != nil {
				r.audit.RecordFailed(fileID, *s.rowErr)
			}
			continue
		}
		if b.Alternatives && s.res.Alternatives == nil {
			s.res.Alternatives = r.det.Rank(s.res.InstitutionName, corpus, r.det.opts.MaxMatches)
		}
		out.Results = append(out.Results, s.res)
		switch s.res.Status {
		case model.StatusDuplicate:
			out.Progress.Duplicates++
		case model.StatusPotentialDuplicate:
			out.Progress.PotentialDuplicates++
		default:
			out.Progress.NoMatch++
		}
		if r.audit != nil {
			r.audit.RecordClassified(fileID, s.res)
		}
	}
	out.Progress.Processed = len(out.Results)
	r.metrics.RecordRowErrors(len(out.Progress.Errors))

	elapsed := time.Since(start)
	if r.audit != nil {
		r.audit.BatchFinished(fileID, out.Progress, elapsed)
	}
	log.Info().
		Int("processed", out.Progress.Processed).
		Int("duplicates", out.Progress.Duplicates).
		Int("potential_duplicates", out.Progress.PotentialDuplicates).
		Int("no_match", out.Progress.NoMatch).
		Int("errors", len(out.Progress.Errors)).
		Dur("elapsed", elapsed).
		Msg("batch finished")
	return out, nil
}

func (r *Runner) processRow(ctx context.Context, row model.UploadRow, corpus *Corpus) (res model.RecordResult, rowErr *model.RowError) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Int("row", row.Line).Str("id", row.Record.ID).Interface("panic", p).Msg("record processing panicked")
			res, rowErr = model.RecordResult{}, &model.RowError{Row: row.Line, ID: row.Record.ID, Message: fmt.Sprintf("internal error: %v", p)}
		}
	}()

	in := row.Record
	rec, err := model.NewInstitutionRecord(in.ID, in.Name, in.Acronym, in.InstitutionType, in.Website, in.CountryID)
	if err != nil {
		return model.RecordResult{}, &model.RowError{Row: row.Line, ID: in.ID, Message: rowMessage(err)}
	}
	res = r.ProcessRecord(ctx, rec, corpus)
	res.Row = row.Line
	return res, nil
}

// ProcessRecord embeds the record once, scans the corpus and classifies the
// best candidate. Embedding failures fall back to symbolic matching.
func (r *Runner) ProcessRecord(ctx context.Context, rec model.InstitutionRecord, corpus *Corpus) model.RecordResult {
	vec := r.embed(ctx, rec)

	start := time.Now()
	cls, best := r.det.Evaluate(rec, vec, corpus)
	matchType := ""
	if cls.Status != model.StatusNoMatch {
		matchType = string(best.MatchType)
	}
	r.metrics.RecordClassification(string(cls.Status), matchType, time.Since(start).Seconds())

	res := model.RecordResult{
		ID:                 rec.ID,
		InstitutionName:    rec.Name,
		Acronym:            rec.Acronym,
		Status:             cls.Status,
		Similarity:         cls.Similarity,
		MatchedReferenceID: cls.MatchedReferenceID,
		Reason:             cls.Reason,
		WebPage:            rec.Website,
		Type:               rec.InstitutionType,
		Country:            rec.CountryID,
	}
	if r.opts.WithAlternatives {
		res.Alternatives = r.det.Rank(rec.Name, corpus, r.det.opts.MaxMatches)
	}
	return res
}

func (r *Runner) embed(ctx context.Context, rec model.InstitutionRecord) []float32 {
	if r.emb == nil {
		return nil
	}
	if r.opts.RecordTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.RecordTimeout)
		defer cancel()
	}
	vec, err := r.emb.Embed(ctx, embedding.BuildText(rec))
	if err != nil {
		r.log.Warn().Err(err).Str("id", rec.ID).Msg("embedding failed, using symbolic matching only")
		return nil
	}
	return vec
}

func rowMessage(err error) string {
	var mf *model.MissingFieldError
	if errors.As(err, &mf) {
		quoted := make([]string, len(mf.Fields))
		for i, f := range mf.Fields {
			quoted[i] = "'" + f + "'"
		}
		return "Missing or empty " + strings.Join(quoted, ", ")
	}
	return err.Error()
}
