package embedding

import (
	"context"
	"errors"
	"time"

	"dedup-service/internal/observability"
)

var ErrEmptyText = errors.New("embedding: empty text")

// Provider maps text to a fixed-dimension vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Instrumented records latency and outcome of every call.
type Instrumented struct {
	Provider
	Name    string
	Metrics *observability.Metrics
}

func (p Instrumented) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := p.Provider.Embed(ctx, text)
	p.Metrics.RecordEmbedding(p.Name, err, time.Since(start).Seconds())
	return vec, err
}
