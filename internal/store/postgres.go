package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"dedup-service/internal/dedup/model"
)

// DB is satisfied by *pgxpool.Pool and pgxmock pools.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const Schema = `
CREATE TABLE IF NOT EXISTS reference_institutions (
	reference_id     TEXT PRIMARY KEY,
	id               TEXT NOT NULL,
	partner_name     TEXT NOT NULL,
	acronym          TEXT,
	institution_type TEXT,
	web_page         TEXT,
	country_id       TEXT
);
CREATE TABLE IF NOT EXISTS reference_embeddings (
	reference_id     TEXT PRIMARY KEY REFERENCES reference_institutions(reference_id) ON DELETE CASCADE,
	embedding_vector REAL[] NOT NULL,
	model            TEXT NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS analysis_files (
	file_id              UUID PRIMARY KEY,
	filename             TEXT,
	total_records        INT NOT NULL,
	processed            INT NOT NULL,
	duplicates           INT NOT NULL,
	potential_duplicates INT NOT NULL,
	no_match             INT NOT NULL,
	errors               INT NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS analysis_records (
	file_id              UUID NOT NULL REFERENCES analysis_files(file_id) ON DELETE CASCADE,
	seq                  INT NOT NULL,
	row_no               INT NOT NULL,
	record_id            TEXT NOT NULL,
	partner_name         TEXT NOT NULL,
	acronym              TEXT,
	status               TEXT NOT NULL,
	similarity           DOUBLE PRECISION NOT NULL,
	matched_reference_id TEXT,
	reason               TEXT NOT NULL,
	web_page             TEXT,
	institution_type     TEXT,
	country_id           TEXT,
	PRIMARY KEY (file_id, seq)
);
CREATE INDEX IF NOT EXISTS analysis_records_record_id ON analysis_records (file_id, record_id);
CREATE TABLE IF NOT EXISTS analysis_errors (
	file_id   UUID NOT NULL REFERENCES analysis_files(file_id) ON DELETE CASCADE,
	seq       INT NOT NULL,
	row_no    INT NOT NULL,
	record_id TEXT,
	message   TEXT NOT NULL,
	PRIMARY KEY (file_id, seq)
);
`

const loadReferencesSQL = `SELECT r.reference_id, r.id, r.partner_name,
	COALESCE(r.acronym, ''), COALESCE(r.institution_type, ''), COALESCE(r.web_page, ''), COALESCE(r.country_id, ''),
	COALESCE(e.embedding_vector, '{}'::real[])
FROM reference_institutions r
LEFT JOIN reference_embeddings e ON e.reference_id = r.reference_id
ORDER BY r.reference_id`

const upsertEmbeddingSQL = `INSERT INTO reference_embeddings (reference_id, embedding_vector, model, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (reference_id) DO UPDATE SET embedding_vector = EXCLUDED.embedding_vector, model = EXCLUDED.model, updated_at = now()`

const insertFileSQL = `INSERT INTO analysis_files
	(file_id, filename, total_records, processed, duplicates, potential_duplicates, no_match, errors)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

const insertRecordSQL = `INSERT INTO analysis_records
	(file_id, seq, row_no, record_id, partner_name, acronym, status, similarity, matched_reference_id, reason,
	web_page, institution_type, country_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12, $13)`

const insertErrorSQL = `INSERT INTO analysis_errors (file_id, seq, row_no, record_id, message)
VALUES ($1, $2, $3, NULLIF($4, ''), $5)`

const listAnalysesSQL = `SELECT file_id::text, COALESCE(filename, ''), total_records, processed,
	duplicates, potential_duplicates, no_match, errors, created_at
FROM analysis_files
ORDER BY created_at DESC, file_id
LIMIT $1`

const getAnalysisSQL = `SELECT file_id::text, COALESCE(filename, ''), total_records, processed,
	duplicates, potential_duplicates, no_match, errors, created_at
FROM analysis_files
WHERE file_id = $1`

const analysisRecordsSQL = `SELECT row_no, record_id, partner_name, COALESCE(acronym, ''), status, similarity,
	COALESCE(matched_reference_id, ''), reason, COALESCE(web_page, ''), COALESCE(institution_type, ''), COALESCE(country_id, '')
FROM analysis_records
WHERE file_id = $1
ORDER BY seq`

const analysisErrorsSQL = `SELECT row_no, COALESCE(record_id, ''), message
FROM analysis_errors
WHERE file_id = $1
ORDER BY seq`

// ErrAnalysisNotFound is returned by GetAnalysis for an unknown file id.
var ErrAnalysisNotFound = errors.New("analysis not found")

// Postgres stores the reference registry and analysis results.
type Postgres struct {
	db  DB
	log zerolog.Logger
}

func NewPostgres(db DB, log zerolog.Logger) *Postgres {
	return &Postgres{db: db, log: log}
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, errors.New("database url is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// LoadReferences returns every registry entry with its embedding, if any.
// Rows without a name are skipped.
func (p *Postgres) LoadReferences(ctx context.Context) ([]model.ReferenceEntry, error) {
	rows, err := p.db.Query(ctx, loadReferencesSQL)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()

	var (
		out     []model.ReferenceEntry
		skipped int
	)
	for rows.Next() {
		var (
			refID string
			rec   model.InstitutionRecord
			vec   []float32
		)
		if err := rows.Scan(&refID, &rec.ID, &rec.Name, &rec.Acronym, &rec.InstitutionType, &rec.Website, &rec.CountryID, &vec); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		e, err := model.NewReferenceEntry(rec, refID, vec)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}
	if skipped > 0 {
		p.log.Warn().Int("skipped", skipped).Msg("malformed reference rows skipped")
	}
	return out, nil
}

func (p *Postgres) SaveEmbedding(ctx context.Context, referenceID string, vec []float32, modelID string) error {
	if _, err := p.db.Exec(ctx, upsertEmbeddingSQL, referenceID, vec, modelID); err != nil {
		return fmt.Errorf("save embedding %s: %w", referenceID, err)
	}
	return nil
}

// SaveAnalysis stores a batch summary, its records and its row errors in one
// transaction. Records are kept in upload order, repeated ids included.
func (p *Postgres) SaveAnalysis(ctx context.Context, res model.BatchResult) (err error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	pr := res.Progress
	if _, err = tx.Exec(ctx, insertFileSQL, res.FileID, res.Filename, res.TotalRecords,
		pr.Processed, pr.Duplicates, pr.PotentialDuplicates, pr.NoMatch, len(pr.Errors)); err != nil {
		return fmt.Errorf("insert analysis file: %w", err)
	}
	for i, r := range res.Results {
		if _, err = tx.Exec(ctx, insertRecordSQL, res.FileID, i+1, r.Row, r.ID, r.InstitutionName, r.Acronym,
			string(r.Status), r.Similarity, r.MatchedReferenceID, r.Reason, r.WebPage, r.Type, r.Country); err != nil {
			return fmt.Errorf("insert analysis record %s: %w", r.ID, err)
		}
	}
	for i, e := range pr.Errors {
		if _, err = tx.Exec(ctx, insertErrorSQL, res.FileID, i+1, e.Row, e.ID, e.Message); err != nil {
			return fmt.Errorf("insert analysis error: %w", err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func scanSummary(row pgx.Row) (model.AnalysisSummary, error) {
	var a model.AnalysisSummary
	err := row.Scan(&a.FileID, &a.Filename, &a.TotalRecords, &a.Processed,
		&a.Duplicates, &a.PotentialDuplicates, &a.NoMatch, &a.Errors, &a.CreatedAt)
	return a, err
}

// ListAnalyses returns the most recent stored analyses, newest first.
func (p *Postgres) ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisSummary, error) {
	rows, err := p.db.Query(ctx, listAnalysesSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	out := []model.AnalysisSummary{}
	for rows.Next() {
		a, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analyses: %w", err)
	}
	return out, nil
}

// GetAnalysis rebuilds a stored batch result. It returns ErrAnalysisNotFound
// when no analysis has the file id.
func (p *Postgres) GetAnalysis(ctx context.Context, fileID string) (model.BatchResult, error) {
	sum, err := scanSummary(p.db.QueryRow(ctx, getAnalysisSQL, fileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.BatchResult{}, ErrAnalysisNotFound
		}
		return model.BatchResult{}, fmt.Errorf("get analysis %s: %w", fileID, err)
	}
	res := model.BatchResult{
		FileID:       sum.FileID,
		Filename:     sum.Filename,
		TotalRecords: sum.TotalRecords,
		Results:      []model.RecordResult{},
		Progress: model.Progress{
			Processed:           sum.Processed,
			Total:               sum.TotalRecords,
			Duplicates:          sum.Duplicates,
			PotentialDuplicates: sum.PotentialDuplicates,
			NoMatch:             sum.NoMatch,
			Errors:              []model.RowError{},
		},
	}

	rows, err := p.db.Query(ctx, analysisRecordsSQL, fileID)
	if err != nil {
		return model.BatchResult{}, fmt.Errorf("query analysis records: %w", err)
	}
	for rows.Next() {
		var (
			r      model.RecordResult
			status string
		)
		if err := rows.Scan(&r.Row, &r.ID, &r.InstitutionName, &r.Acronym, &status, &r.Similarity,
			&r.MatchedReferenceID, &r.Reason, &r.WebPage, &r.Type, &r.Country); err != nil {
			rows.Close()
			return model.BatchResult{}, fmt.Errorf("scan analysis record: %w", err)
		}
		r.Status = model.Status(status)
		res.Results = append(res.Results, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return model.BatchResult{}, fmt.Errorf("iterate analysis records: %w", err)
	}

	rows, err = p.db.Query(ctx, analysisErrorsSQL, fileID)
	if err != nil {
		return model.BatchResult{}, fmt.Errorf("query analysis errors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e model.RowError
		if err := rows.Scan(&e.Row, &e.ID, &e.Message); err != nil {
			return model.BatchResult{}, fmt.Errorf("scan analysis error: %w", err)
		}
		res.Progress.Errors = append(res.Progress.Errors, e)
	}
	if err := rows.Err(); err != nil {
		return model.BatchResult{}, fmt.Errorf("iterate analysis errors: %w", err)
	}
	return res, nil
}
