package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dedup-service/internal/dedup/model"
)

func newTestAcronymMatcher(kb KnowledgeBase) *AcronymMatcher {
	n := NewNormalizer(64)
	s := NewScorer(n, model.DefaultWeights())
	return NewAcronymMatcher(n, s, kb, 0.8)
}

func TestAcronymMatch(t *testing.T) {
	t.Parallel()

	m := newTestAcronymMatcher(DefaultKnowledgeBase())
	tests := []struct {
		name     string
		instName string
		acronym  string
		wantOK   bool
		wantConf float64
	}{
		{"explicit marker", "International Maize and Wheat Improvement Center (CIMMYT)", "cimmyt", true, 0.95},
		{"explicit marker in brackets", "Kenya Agricultural Research Institute [K.A.R.I]", "KARI", true, 0.95},
		{"knowledge base expansion", "International Rice Research Institute", "IRRI", true, 0.92},
		{"spanish expansion", "Centro Internacional de Agricultura Tropical", "CIAT", true, 0.92},
		{"generated initials", "Kenya Agricultural Research Institute", "KARI", true, 0.85},
		{"substring is not a marker", "Madagascar Gas Authority", "GAS", false, 0},
		{"unknown short code", "Madagascar Gas Authority", "TIL", false, 0},
		{"bracket content must be equal", "Uganda Gas Board (UGAS)", "GAS", false, 0},
		{"single word has no initials", "Bioversity", "B", false, 0},
		{"empty acronym", "International Rice Research Institute", "", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ok, conf := m.Match(tt.instName, tt.acronym)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantConf, conf)
		})
	}
}

func TestKnowledgeBase(t *testing.T) {
	t.Parallel()

	kb := DefaultKnowledgeBase()
	assert.True(t, kb.Known("C.I.M.M.Y.T"))
	assert.False(t, kb.Known("TIL"))
	assert.NotEmpty(t, kb.Expansions("cimmyt"))
	assert.Nil(t, kb.Expansions("GA"))
	assert.Contains(t, kb.Expansions("ICRAF-ESA"), "world agroforestry centre")

	extended := kb.With(map[string][]string{
		"KALRO": {"Kenya Agricultural and Livestock Research Organization"},
		"irri":  {"IRRI Philippines"},
	})
	assert.True(t, extended.Known("kalro"))
	assert.False(t, kb.Known("kalro"), "original untouched")
	assert.Contains(t, extended["irri"], "irri philippines")
	assert.Len(t, kb["irri"], 1)

	m := newTestAcronymMatcher(extended)
	ok, conf := m.Match("Kenya Agricultural & Livestock Research Organization", "KALRO")
	assert.True(t, ok)
	assert.Equal(t, 0.92, conf)
}

func TestKeywordOverlap(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(64)
	tests := []struct {
		name   string
		a, b   string
		min    int
		wantOK bool
		want   float64
	}{
		{"generic words only", "International Research Center", "International Training Center", 2, false, 0},
		{"distinctive vocabulary", "Wheat and Maize Research Institute", "Maize Wheat Improvement Center", 2, true, 2.0 / 3.0},
		{"below minimum overlap", "Wheat and Maize Research Institute", "Maize Wheat Improvement Center", 3, false, 0},
		{"empty side", "", "Maize Wheat", 1, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ok, j := n.KeywordOverlap(tt.a, tt.b, tt.min)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, j, 1e-9)
		})
	}
}
