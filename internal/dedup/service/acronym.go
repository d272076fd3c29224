package service

import (
	"regexp"
	"sort"
	"strings"
)

const (
	confidenceExplicitAcronym  = 0.95
	confidenceKnownExpansion   = 0.92
	confidenceGeneratedInitial = 0.85
)

var bracketed = regexp.MustCompile(`[\(\[]([^\)\]]+)[\)\]]`)

// KnowledgeBase maps lower-case acronyms to the full names they stand for.
type KnowledgeBase map[string][]string

// DefaultKnowledgeBase returns the curated research-institution acronyms.
func DefaultKnowledgeBase() KnowledgeBase {
	return KnowledgeBase{
		"cimmyt":     {"international maize and wheat improvement center", "centro internacional de mejoramiento de maiz y trigo"},
		"icrisat":    {"international crops research institute for the semi-arid tropics"},
		"irri":       {"international rice research institute"},
		"ciat":       {"international center for tropical agriculture", "centro internacional de agricultura tropical"},
		"icraf":      {"world agroforestry centre", "international council for research in agroforestry"},
		"worldfish":  {"worldfish centre", "world fish center"},
		"bioversity": {"bioversity international"},
		"cgiar":      {"consultative group on international agricultural research"},
		"fao":        {"food and agriculture organization"},
		"undp":       {"united nations development programme"},
		"unep":       {"united nations environment programme"},
		"icarda":     {"international center for agricultural research in the dry areas"},
		"wur":        {"wageningen university", "wageningen university and research"},
		"eth":        {"swiss federal institute of technology", "eth zurich"},
		"cornell":    {"cornell university"},
		"berkeley":   {"university of california", "uc berkeley"},
	}
}

// With returns a copy of kb extended by extra; extra entries are appended to existing keys.
func (kb KnowledgeBase) With(extra map[string][]string) KnowledgeBase {
	out := make(KnowledgeBase, len(kb)+len(extra))
	for k, v := range kb {
		out[k] = append([]string(nil), v...)
	}
	for k, v := range extra {
		key := strings.ToLower(normalizeAcronym(k))
		if key == "" {
			continue
		}
		for _, name := range v {
			if n := normalizeText(name); n != "" {
				out[key] = append(out[key], n)
			}
		}
	}
	return out
}

// Known reports an exact knowledge-base entry for the acronym.
func (kb KnowledgeBase) Known(acronym string) bool {
	_, ok := kb[strings.ToLower(normalizeAcronym(acronym))]
	return ok
}

// Expansions returns the full names of every entry whose key equals the
// acronym or contains/is contained in it. Fragments shorter than three
// letters never match by containment.
func (kb KnowledgeBase) Expansions(acronym string) []string {
	a := strings.ToLower(normalizeAcronym(acronym))
	if a == "" {
		return nil
	}
	keys := make([]string, 0, len(kb))
	for k := range kb {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		hit := k == a
		if !hit && len(a) >= 3 && len(k) >= 3 {
			hit = strings.Contains(a, k) || strings.Contains(k, a)
		}
		if hit {
			out = append(out, kb[k]...)
		}
	}
	return out
}

// AcronymMatcher decides whether a short code denotes an institution name.
// Only explicit markers, curated expansions and exact initials are accepted.
type AcronymMatcher struct {
	norm      *Normalizer
	scorer    *Scorer
	kb        KnowledgeBase
	expansion float64
}

func NewAcronymMatcher(n *Normalizer, s *Scorer, kb KnowledgeBase, expansionThreshold float64) *AcronymMatcher {
	return &AcronymMatcher{norm: n, scorer: s, kb: kb, expansion: expansionThreshold}
}

func (m *AcronymMatcher) KnowledgeBase() KnowledgeBase { return m.kb }

// Match evaluates, in order: a bracketed acronym equal to the code, a
// knowledge-base expansion similar to the name, and the name's initials.
func (m *AcronymMatcher) Match(name, acronym string) (bool, float64) {
	code := m.norm.Acronym(acronym)
	normalized := m.norm.Text(name)
	if code == "" || normalized == "" {
		return false, 0
	}

	for _, sub := range bracketed.FindAllStringSubmatch(normalized, -1) {
		if m.norm.Acronym(sub[1]) == code {
			return true, confidenceExplicitAcronym
		}
	}

	for _, exp := range m.kb.Expansions(code) {
		if m.scorer.Ratio(exp, normalized) >= m.expansion {
			return true, confidenceKnownExpansion
		}
	}

	if gen := initials(strings.Fields(alnumOnly(normalized))); gen != "" && strings.ToUpper(gen) == code {
		return true, confidenceGeneratedInitial
	}
	return false, 0
}
