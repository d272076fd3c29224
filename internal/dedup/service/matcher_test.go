package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dedup-service/internal/dedup/model"
)

func newTestMatcher() *Matcher {
	opts := model.DefaultOptions()
	n := NewNormalizer(64)
	s := NewScorer(n, opts.Weights)
	a := NewAcronymMatcher(n, s, DefaultKnowledgeBase(), opts.AcronymExpansionThreshold)
	return NewMatcher(n, s, a, opts)
}

func TestMatcherCascade(t *testing.T) {
	t.Parallel()

	m := newTestMatcher()
	tests := []struct {
		name                       string
		upName, upAcr, refName, rA string
		wantType                   model.MatchType
		wantMin, wantMax           float64
		wantExplanation            string
	}{
		{
			name: "exact", upName: "International Rice Research Institute", refName: "international rice research institute",
			wantType: model.MatchExact, wantMin: 1, wantMax: 1, wantExplanation: "Exact name match",
		},
		{
			name: "known acronym with similar names", upName: "International Rice Research Inst", upAcr: "IRRI",
			refName: "International Rice Research Institute", rA: "IRRI",
			wantType: model.MatchAcronym, wantMin: 0.92, wantMax: 0.93, wantExplanation: "Same acronym 'IRRI' with similar names",
		},
		{
			name: "acronym against expansion", upName: "CIMMYT", upAcr: "CIMMYT",
			refName: "International Maize and Wheat Improvement Center", rA: "CIMMYT",
			wantType: model.MatchAcronym, wantMin: 0.92, wantMax: 0.92,
			wantExplanation: "Acronym 'CIMMYT' matches reference name (known expansion)",
		},
		{
			name: "reference acronym against uploaded name", upName: "Kenya Agricultural Research Institute",
			refName: "KARI Headquarters", rA: "KARI",
			wantType: model.MatchAcronym, wantMin: 0.85, wantMax: 0.85,
			wantExplanation: "Reference acronym 'KARI' matches uploaded name (initials)",
		},
		{
			name: "fuzzy", upName: "International Rice Research Institut", refName: "International Rice Research Institute",
			wantType: model.MatchFuzzy, wantMin: 0.85, wantMax: 0.99,
		},
		{
			name: "keyword", upName: "Maize Wheat Improvement", refName: "Improvement of Wheat and Maize",
			wantType: model.MatchKeyword, wantMin: 1, wantMax: 1,
		},
		{
			name: "combined fuzzy and keyword", upName: "Wageningen Plant Breeding", refName: "Wageningen Plant Breeding Station Lab",
			wantType: model.MatchFuzzy, wantMin: 0.72, wantMax: 0.73,
		},
		{
			name: "generic words only", upName: "International Research Center", refName: "International Training Center",
			wantType: model.MatchNone, wantExplanation: "No matching signals detected",
		},
		{
			name: "empty name", upName: "", refName: "IRRI",
			wantType: model.MatchNone, wantExplanation: "No matching signals detected",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := m.Match(tt.upName, tt.upAcr, tt.refName, tt.rA)
			assert.Equal(t, tt.wantType, c.MatchType)
			assert.GreaterOrEqual(t, c.Similarity, tt.wantMin)
			assert.LessOrEqual(t, c.Similarity, tt.wantMax)
			assert.NotEmpty(t, c.Explanation)
			if tt.wantExplanation != "" {
				assert.Equal(t, tt.wantExplanation, c.Explanation)
			}
		})
	}
}

func TestMatcherUnknownAcronymNeedsEvidence(t *testing.T) {
	t.Parallel()

	m := newTestMatcher()
	c := m.Match("Alpha Holdings", "XYZ", "Beta Trust", "XYZ")
	assert.Equal(t, model.MatchNone, c.MatchType)
	assert.Zero(t, c.Similarity)
	assert.Equal(t, 0.80, c.Signals.AcronymSimilarity)
}

func TestMatcherShortCodeRegression(t *testing.T) {
	t.Parallel()

	m := newTestMatcher()
	c := m.Match("TIL", "TIL", "Madagascar Gas Authority", "")
	assert.Equal(t, model.MatchNone, c.MatchType)
	assert.Zero(t, c.Signals.AcronymSimilarity)
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{0.3, -1.2, 4}, []float32{0.3, -1.2, 4}, 1},
		{"scaled", []float32{1, 2}, []float32{2, 4}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"partial", []float32{1, 0}, []float32{0.8, 0.6}, 0.8},
		{"empty", nil, []float32{1}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
	assert.Equal(t, 1.0, CosineSimilarity([]float32{0.1, 0.7, 0.3}, []float32{0.1, 0.7, 0.3}))
}
