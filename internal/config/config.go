package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"dedup-service/internal/dedup/model"
)

const (
	ReferenceSourcePostgres = "postgres"
	ReferenceSourceFile     = "file"

	EmbeddingBedrock = "bedrock"
	EmbeddingHash    = "hash"
	EmbeddingNone    = "none"
)

type Config struct {
	Host         string
	Port         int
	AllowOrigins []string
	LogLevel     string
	MaxUploadMB  int
	LogFile      string

	Workers          int
	RecordTimeout    time.Duration
	WithAlternatives bool

	ReferenceSource string
	DatabaseURL     string
	ReferenceFile   string
	SaveAnalysis    bool

	EmbeddingProvider   string
	AWSRegion           string
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbeddingCacheSize  int

	MetricsNamespace string

	Matching model.Options
}

// Load reads defaults, an optional CONFIG_FILE and the environment, in
// increasing priority.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if f := v.GetString("CONFIG_FILE"); f != "" {
		v.SetConfigFile(f)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", f, err)
		}
	}
	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	m := model.DefaultOptions()

	v.SetDefault("HOST", "127.0.0.1")
	v.SetDefault("PORT", 8082)
	v.SetDefault("ALLOW_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_UPLOAD_MB", 256)
	v.SetDefault("LOG_FILE", "logs/dedup-service.log")

	v.SetDefault("WORKERS", runtime.NumCPU())
	v.SetDefault("RECORD_TIMEOUT", 30*time.Second)
	v.SetDefault("WITH_ALTERNATIVES", false)

	v.SetDefault("REFERENCE_SOURCE", ReferenceSourceFile)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REFERENCE_FILE", "data/references.json")
	v.SetDefault("SAVE_ANALYSIS", true)

	v.SetDefault("EMBEDDING_PROVIDER", EmbeddingNone)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("EMBEDDING_MODEL", "amazon.titan-embed-text-v2:0")
	v.SetDefault("EMBEDDING_DIMENSIONS", 1024)
	v.SetDefault("EMBEDDING_CACHE_SIZE", 10000)

	v.SetDefault("METRICS_NAMESPACE", "dedup")

	v.SetDefault("EXACT_MATCH_THRESHOLD", m.ExactMatchThreshold)
	v.SetDefault("DUPLICATE_THRESHOLD", m.DuplicateThreshold)
	v.SetDefault("POTENTIAL_DUPLICATE_THRESHOLD", m.PotentialDuplicateThreshold)
	v.SetDefault("SEMANTIC_THRESHOLD", m.SemanticThreshold)
	v.SetDefault("ACRONYM_DUPLICATE_THRESHOLD", m.AcronymDuplicateThreshold)
	v.SetDefault("CONCLUSIVE_THRESHOLD", m.ConclusiveThreshold)
	v.SetDefault("VARIANT_FLOOR", m.VariantFloor)
	v.SetDefault("URL_ACRONYM_THRESHOLD", m.URLAcronymThreshold)
	v.SetDefault("URL_FLOOR", m.URLFloor)
	v.SetDefault("FUZZY_THRESHOLD", m.FuzzyThreshold)
	v.SetDefault("FUZZY_FLOOR", m.FuzzyFloor)
	v.SetDefault("KEYWORD_THRESHOLD", m.KeywordThreshold)
	v.SetDefault("KEYWORD_MIN_OVERLAP", m.KeywordMinOverlap)
	v.SetDefault("COMBINED_KEYWORD_TRIGGER", m.CombinedKeywordTrigger)
	v.SetDefault("COMBINED_THRESHOLD", m.CombinedThreshold)
	v.SetDefault("ACRONYM_NAME_SUPPORT", m.AcronymNameSupport)
	v.SetDefault("ACRONYM_RAW_SUPPORT", m.AcronymRawSupport)
	v.SetDefault("UNVERIFIED_ACRONYM_SCORE", m.UnverifiedAcronymScore)
	v.SetDefault("ACRONYM_EXPANSION_THRESHOLD", m.AcronymExpansionThreshold)
	v.SetDefault("WEIGHT_TOKEN_SET", m.Weights.TokenSet)
	v.SetDefault("WEIGHT_TOKEN_SORT", m.Weights.TokenSort)
	v.SetDefault("WEIGHT_PARTIAL", m.Weights.Partial)
	v.SetDefault("WEIGHT_RATIO", m.Weights.Ratio)
	v.SetDefault("EMBEDDING_BATCH_SIZE", m.EmbeddingBatchSize)
	v.SetDefault("MAX_MATCHES", m.MaxMatches)
	v.SetDefault("NORMALIZE_CACHE_SIZE", m.NormalizeCacheSize)
}

func fromViper(v *viper.Viper) Config {
	m := model.DefaultOptions()
	m.ExactMatchThreshold = v.GetFloat64("EXACT_MATCH_THRESHOLD")
	m.DuplicateThreshold = v.GetFloat64("DUPLICATE_THRESHOLD")
	m.PotentialDuplicateThreshold = v.GetFloat64("POTENTIAL_DUPLICATE_THRESHOLD")
	m.SemanticThreshold = v.GetFloat64("SEMANTIC_THRESHOLD")
	m.AcronymDuplicateThreshold = v.GetFloat64("ACRONYM_DUPLICATE_THRESHOLD")
	m.ConclusiveThreshold = v.GetFloat64("CONCLUSIVE_THRESHOLD")
	m.VariantFloor = v.GetFloat64("VARIANT_FLOOR")
	m.URLAcronymThreshold = v.GetFloat64("URL_ACRONYM_THRESHOLD")
	m.URLFloor = v.GetFloat64("URL_FLOOR")
	m.FuzzyThreshold = v.GetFloat64("FUZZY_THRESHOLD")
	m.FuzzyFloor = v.GetFloat64("FUZZY_FLOOR")
	m.KeywordThreshold = v.GetFloat64("KEYWORD_THRESHOLD")
	m.KeywordMinOverlap = v.GetInt("KEYWORD_MIN_OVERLAP")
	m.CombinedKeywordTrigger = v.GetFloat64("COMBINED_KEYWORD_TRIGGER")
	m.CombinedThreshold = v.GetFloat64("COMBINED_THRESHOLD")
	m.AcronymNameSupport = v.GetFloat64("ACRONYM_NAME_SUPPORT")
	m.AcronymRawSupport = v.GetFloat64("ACRONYM_RAW_SUPPORT")
	m.UnverifiedAcronymScore = v.GetFloat64("UNVERIFIED_ACRONYM_SCORE")
	m.AcronymExpansionThreshold = v.GetFloat64("ACRONYM_EXPANSION_THRESHOLD")
	m.Weights = model.Weights{
		TokenSet:  v.GetFloat64("WEIGHT_TOKEN_SET"),
		TokenSort: v.GetFloat64("WEIGHT_TOKEN_SORT"),
		Partial:   v.GetFloat64("WEIGHT_PARTIAL"),
		Ratio:     v.GetFloat64("WEIGHT_RATIO"),
	}
	m.EmbeddingBatchSize = v.GetInt("EMBEDDING_BATCH_SIZE")
	m.MaxMatches = v.GetInt("MAX_MATCHES")
	m.NormalizeCacheSize = v.GetInt("NORMALIZE_CACHE_SIZE")
	// only a config file can carry a nested map
	if acr := v.GetStringMapStringSlice("acronyms"); len(acr) > 0 {
		m.Acronyms = acr
	}

	return Config{
		Host:         v.GetString("HOST"),
		Port:         v.GetInt("PORT"),
		AllowOrigins: splitList(v.GetString("ALLOW_ORIGINS")),
		LogLevel:     v.GetString("LOG_LEVEL"),
		MaxUploadMB:  v.GetInt("MAX_UPLOAD_MB"),
		LogFile:      v.GetString("LOG_FILE"),

		Workers:          v.GetInt("WORKERS"),
		RecordTimeout:    v.GetDuration("RECORD_TIMEOUT"),
		WithAlternatives: v.GetBool("WITH_ALTERNATIVES"),

		ReferenceSource: strings.ToLower(v.GetString("REFERENCE_SOURCE")),
		DatabaseURL:     v.GetString("DATABASE_URL"),
		ReferenceFile:   v.GetString("REFERENCE_FILE"),
		SaveAnalysis:    v.GetBool("SAVE_ANALYSIS"),

		EmbeddingProvider:   strings.ToLower(v.GetString("EMBEDDING_PROVIDER")),
		AWSRegion:           v.GetString("AWS_REGION"),
		EmbeddingModel:      v.GetString("EMBEDDING_MODEL"),
		EmbeddingDimensions: v.GetInt("EMBEDDING_DIMENSIONS"),
		EmbeddingCacheSize:  v.GetInt("EMBEDDING_CACHE_SIZE"),

		MetricsNamespace: v.GetString("METRICS_NAMESPACE"),

		Matching: m,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_MB must be positive"))
	}
	switch c.ReferenceSource {
	case ReferenceSourcePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres reference source"))
		}
	case ReferenceSourceFile:
		if c.ReferenceFile == "" {
			errs = append(errs, errors.New("REFERENCE_FILE is required for the file reference source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown REFERENCE_SOURCE %q", c.ReferenceSource))
	}
	switch c.EmbeddingProvider {
	case EmbeddingBedrock, EmbeddingHash, EmbeddingNone:
	default:
		errs = append(errs, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider))
	}
	if c.EmbeddingProvider != EmbeddingNone && c.EmbeddingDimensions <= 0 {
		errs = append(errs, errors.New("EMBEDDING_DIMENSIONS must be positive"))
	}
	if err := c.Matching.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
