package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"dedup-service/internal/dedup/model"
)

// FileSource reads the registry from a JSON snapshot: an array of reference
// entries with their embeddings.
type FileSource struct {
	Path string
}

func (f FileSource) LoadReferences(_ context.Context) ([]model.ReferenceEntry, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var entries []model.ReferenceEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", f.Path, err)
	}
	return entries, nil
}

// WriteSnapshot replaces path atomically.
func WriteSnapshot(path string, entries []model.ReferenceEntry) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
