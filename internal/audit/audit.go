// Package audit records upload, decision and row-error events as structured
// log entries on a dedicated logger.
package audit

import (
	"time"

	"github.com/rs/zerolog"

	"dedup-service/internal/dedup/model"
)

type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{log: log.With().Str("component", "audit").Logger()}
}

func (a *Logger) BatchStarted(fileID, filename string, total int) {
	a.log.Info().
		Str("event", "upload").
		Str("file_id", fileID).
		Str("filename", filename).
		Int("records", total).
		Msg("file uploaded for duplicate analysis")
}

func (a *Logger) RecordClassified(fileID string, res model.RecordResult) {
	ev := a.log.Info()
	if res.Status == model.StatusNoMatch {
		ev = a.log.Debug()
	}
	ev.Str("event", "decision").
		Str("file_id", fileID).
		Str("id", res.ID).
		Str("status", string(res.Status)).
		Float64("similarity", res.Similarity).
		Str("matched_reference_id", res.MatchedReferenceID).
		Str("reason", res.Reason).
		Msg("record classified")
}

func (a *Logger) RecordFailed(fileID string, rowErr model.RowError) {
	a.log.Warn().
		Str("event", "row_error").
		Str("file_id", fileID).
		Int("row", rowErr.Row).
		Str("id", rowErr.ID).
		Str("error", rowErr.Message).
		Msg("record rejected")
}

func (a *Logger) BatchFinished(fileID string, p model.Progress, elapsed time.Duration) {
	a.log.Info().
		Str("event", "analysis_complete").
		Str("file_id", fileID).
		Int("processed", p.Processed).
		Int("total", p.Total).
		Int("duplicates", p.Duplicates).
		Int("potential_duplicates", p.PotentialDuplicates).
		Int("no_match", p.NoMatch).
		Int("errors", len(p.Errors)).
		Dur("elapsed", elapsed).
		Msg("duplicate analysis finished")
}
