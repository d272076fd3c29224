package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dedup-service/internal/app"
	"dedup-service/internal/config"
	"dedup-service/internal/dedup/model"
	"dedup-service/internal/embedding"
	"dedup-service/internal/store"
)

var (
	embedForce bool
	embedOut   string
)

var embedCmd = &cobra.Command{
	Use:   "embed-references",
	Short: "Compute missing reference embeddings",
	Long: `Embed every reference entry that has no vector yet and store the result.

With --references the snapshot file is rewritten (or --out is written);
with the postgres reference source vectors are upserted into
reference_embeddings.

Examples:
  dedup-cli embed-references --references refs.json --embeddings hash
  REFERENCE_SOURCE=postgres DATABASE_URL=... dedup-cli embed-references --embeddings bedrock`,
	Args: cobra.NoArgs,
	RunE: runEmbed,
}

func init() {
	embedCmd.Flags().BoolVar(&embedForce, "force", false, "re-embed entries that already have a vector")
	embedCmd.Flags().StringVarP(&embedOut, "out", "o", "", "snapshot output path (default: overwrite --references)")
}

func runEmbed(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.EmbeddingProvider == config.EmbeddingNone {
		return fmt.Errorf("embedding provider is %q; pass --embeddings", cfg.EmbeddingProvider)
	}
	ctx := cmd.Context()

	refs, pg, closeRefs, err := app.References(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRefs()
	provider, err := app.Embedder(ctx, cfg, nil)
	if err != nil {
		return err
	}

	entries, err := refs.LoadReferences(ctx)
	if err != nil {
		return err
	}
	todo := pending(entries, embedForce)
	texts := make([]string, len(todo))
	for i, idx := range todo {
		texts[i] = embedding.BuildText(entries[idx].InstitutionRecord)
	}
	vecs, err := embedding.EmbedAll(ctx, provider, texts, cfg.Matching.EmbeddingBatchSize)
	if err != nil {
		return err
	}

	for i, idx := range todo {
		entries[idx].Embedding = vecs[i]
		if pg != nil {
			if err := pg.SaveEmbedding(ctx, entries[idx].ReferenceID, vecs[i], cfg.EmbeddingModel); err != nil {
				return err
			}
		}
	}
	if pg == nil {
		path := embedOut
		if path == "" {
			path = cfg.ReferenceFile
		}
		if err := store.WriteSnapshot(path, entries); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "embedded %d of %d reference entries\n", len(todo), len(entries))
	return nil
}

// pending returns the positions of entries that need a vector.
func pending(entries []model.ReferenceEntry, force bool) []int {
	var out []int
	for i, e := range entries {
		if force || !e.HasEmbedding() {
			out = append(out, i)
		}
	}
	return out
}
