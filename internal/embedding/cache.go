package embedding

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached memoizes a provider by exact input text. Failures are not cached.
type Cached struct {
	next  Provider
	cache *lru.Cache[string, []float32]
}

func NewCached(next Provider, size int) (*Cached, error) {
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: c}, nil
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}

func (c *Cached) Len() int { return c.cache.Len() }
