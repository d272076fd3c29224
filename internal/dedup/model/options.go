package model

import (
	"errors"
	"fmt"
	"math"
)

// Weights of the string-similarity strategies in a combined score. They must sum to 1.
type Weights struct {
	TokenSet  float64 `mapstructure:"token_set" json:"token_set"`
	TokenSort float64 `mapstructure:"token_sort" json:"token_sort"`
	Partial   float64 `mapstructure:"partial" json:"partial"`
	Ratio     float64 `mapstructure:"ratio" json:"ratio"`
}

func DefaultWeights() Weights {
	return Weights{TokenSet: 0.4, Partial: 0.3, Ratio: 0.3}
}

func (w Weights) Sum() float64 { return w.TokenSet + w.TokenSort + w.Partial + w.Ratio }

func (w Weights) Validate() error {
	for _, v := range []float64{w.TokenSet, w.TokenSort, w.Partial, w.Ratio} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("weight %v out of [0,1]", v)
		}
	}
	if math.Abs(w.Sum()-1) > 1e-6 {
		return fmt.Errorf("weights sum to %.4f, want 1.0", w.Sum())
	}
	return nil
}

// Options holds every tunable of the matching engine.
type Options struct {
	// classification tiers
	ExactMatchThreshold         float64 `mapstructure:"exact_match_threshold" json:"exact_match_threshold"`                 // name ratio treated as exact (1.0 = identical only)
	DuplicateThreshold          float64 `mapstructure:"duplicate_threshold" json:"duplicate_threshold"`                     // overall similarity => duplicate
	PotentialDuplicateThreshold float64 `mapstructure:"potential_duplicate_threshold" json:"potential_duplicate_threshold"` // overall similarity => potential duplicate
	SemanticThreshold           float64 `mapstructure:"semantic_threshold" json:"semantic_threshold"`                       // cosine needed for a semantic candidate
	AcronymDuplicateThreshold   float64 `mapstructure:"acronym_duplicate_threshold" json:"acronym_duplicate_threshold"`
	ConclusiveThreshold         float64 `mapstructure:"conclusive_threshold" json:"conclusive_threshold"` // exact/acronym confidence that stops the scan
	VariantFloor                float64 `mapstructure:"variant_floor" json:"variant_floor"`               // similarity reported for core/variant name matches
	URLAcronymThreshold         float64 `mapstructure:"url_acronym_threshold" json:"url_acronym_threshold"`
	URLFloor                    float64 `mapstructure:"url_floor" json:"url_floor"`

	// multi-strategy cascade
	FuzzyThreshold            float64 `mapstructure:"fuzzy_threshold" json:"fuzzy_threshold"`
	FuzzyFloor                float64 `mapstructure:"fuzzy_floor" json:"fuzzy_floor"`
	KeywordThreshold          float64 `mapstructure:"keyword_threshold" json:"keyword_threshold"`
	KeywordMinOverlap         int     `mapstructure:"keyword_min_overlap" json:"keyword_min_overlap"`
	CombinedKeywordTrigger    float64 `mapstructure:"combined_keyword_trigger" json:"combined_keyword_trigger"`
	CombinedThreshold         float64 `mapstructure:"combined_threshold" json:"combined_threshold"`
	AcronymNameSupport        float64 `mapstructure:"acronym_name_support" json:"acronym_name_support"`
	AcronymRawSupport         float64 `mapstructure:"acronym_raw_support" json:"acronym_raw_support"`
	UnverifiedAcronymScore    float64 `mapstructure:"unverified_acronym_score" json:"unverified_acronym_score"` // same acronym, not in the knowledge base
	AcronymExpansionThreshold float64 `mapstructure:"acronym_expansion_threshold" json:"acronym_expansion_threshold"`

	Weights Weights `mapstructure:"weights" json:"weights"`

	EmbeddingBatchSize int `mapstructure:"embedding_batch_size" json:"embedding_batch_size"`
	MaxMatches         int `mapstructure:"max_matches" json:"max_matches"`
	NormalizeCacheSize int `mapstructure:"normalize_cache_size" json:"normalize_cache_size"`

	// extra knowledge-base entries: acronym -> full names
	Acronyms map[string][]string `mapstructure:"acronyms" json:"acronyms,omitempty"`
}

func DefaultOptions() Options {
	return Options{
		ExactMatchThreshold:         1.0,
		DuplicateThreshold:          0.85,
		PotentialDuplicateThreshold: 0.72,
		SemanticThreshold:           0.75,
		AcronymDuplicateThreshold:   0.90,
		ConclusiveThreshold:         0.90,
		VariantFloor:                0.95,
		URLAcronymThreshold:         0.70,
		URLFloor:                    0.75,

		FuzzyThreshold:            0.85,
		FuzzyFloor:                0.75,
		KeywordThreshold:          0.70,
		KeywordMinOverlap:         2,
		CombinedKeywordTrigger:    0.60,
		CombinedThreshold:         0.72,
		AcronymNameSupport:        0.70,
		AcronymRawSupport:         0.65,
		UnverifiedAcronymScore:    0.80,
		AcronymExpansionThreshold: 0.80,

		Weights: DefaultWeights(),

		EmbeddingBatchSize: 10,
		MaxMatches:         5,
		NormalizeCacheSize: 50000,
	}
}

// Validate checks that every threshold is a probability and the tiers are ordered.
func (o Options) Validate() error {
	unit := map[string]float64{
		"exact_match_threshold":         o.ExactMatchThreshold,
		"duplicate_threshold":           o.DuplicateThreshold,
		"potential_duplicate_threshold": o.PotentialDuplicateThreshold,
		"semantic_threshold":            o.SemanticThreshold,
		"acronym_duplicate_threshold":   o.AcronymDuplicateThreshold,
		"conclusive_threshold":          o.ConclusiveThreshold,
		"variant_floor":                 o.VariantFloor,
		"url_acronym_threshold":         o.URLAcronymThreshold,
		"url_floor":                     o.URLFloor,
		"fuzzy_threshold":               o.FuzzyThreshold,
		"fuzzy_floor":                   o.FuzzyFloor,
		"keyword_threshold":             o.KeywordThreshold,
		"combined_keyword_trigger":      o.CombinedKeywordTrigger,
		"combined_threshold":            o.CombinedThreshold,
		"acronym_name_support":          o.AcronymNameSupport,
		"acronym_raw_support":           o.AcronymRawSupport,
		"unverified_acronym_score":      o.UnverifiedAcronymScore,
		"acronym_expansion_threshold":   o.AcronymExpansionThreshold,
	}
	var errs []error
	for name, v := range unit {
		if v < 0 || v > 1 || math.IsNaN(v) {
			errs = append(errs, fmt.Errorf("%s=%v out of [0,1]", name, v))
		}
	}
	if o.PotentialDuplicateThreshold > o.DuplicateThreshold {
		errs = append(errs, fmt.Errorf("potential_duplicate_threshold %.2f above duplicate_threshold %.2f",
			o.PotentialDuplicateThreshold, o.DuplicateThreshold))
	}
	if o.KeywordMinOverlap < 1 {
		errs = append(errs, errors.New("keyword_min_overlap must be >= 1"))
	}
	if o.EmbeddingBatchSize < 1 {
		errs = append(errs, errors.New("embedding_batch_size must be >= 1"))
	}
	if o.MaxMatches < 0 {
		errs = append(errs, errors.New("max_matches must be >= 0"))
	}
	if err := o.Weights.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
