// Package main implements dedup-cli, an offline front end to the duplicate
// detection engine.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dedup-service/internal/config"
)

var (
	referencesPath string
	providerFlag   string
	verbose        bool

	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dedup-cli",
	Short: "Institution duplicate detection from the command line",
	Long: `dedup-cli classifies institution spreadsheets against the reference
registry without running the HTTP server, and maintains reference embeddings.

Matching thresholds and data sources are read from the same environment
variables and CONFIG_FILE as the server.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&referencesPath, "references", "", "JSON reference snapshot (default: configured reference source)")
	rootCmd.PersistentFlags().StringVar(&providerFlag, "embeddings", "", "embedding provider: bedrock, hash or none (default: EMBEDDING_PROVIDER)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(embedCmd)
}

// loadConfig applies persistent flags on top of the environment.
func loadConfig() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	if referencesPath != "" {
		cfg.ReferenceSource = config.ReferenceSourceFile
		cfg.ReferenceFile = referencesPath
	}
	if providerFlag != "" {
		cfg.EmbeddingProvider = providerFlag
	}
	lvl := zerolog.WarnLevel
	if verbose {
		lvl = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).With().Timestamp().Logger()
	return cfg, log, cfg.Validate()
}
