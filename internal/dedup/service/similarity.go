package service

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"

	"dedup-service/internal/dedup/model"
)

type Strategy string

const (
	StrategyRatio     Strategy = "ratio"
	StrategyTokenSet  Strategy = "token_set"
	StrategyTokenSort Strategy = "token_sort"
	StrategyPartial   Strategy = "partial"
)

// Scorer computes string similarity between institution names. Inputs are
// normalized before scoring; every method is total and returns values in [0,1].
type Scorer struct {
	norm    *Normalizer
	weights model.Weights
}

func NewScorer(n *Normalizer, w model.Weights) *Scorer {
	return &Scorer{norm: n, weights: w}
}

func (s *Scorer) Similarity(a, b string, strategy Strategy) float64 {
	na, nb := s.norm.Text(a), s.norm.Text(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return scoreNormalized(na, nb, strategy)
}

// Ratio is the character ratio of the normalized strings.
func (s *Scorer) Ratio(a, b string) float64 { return s.Similarity(a, b, StrategyRatio) }

// Combined blends the strategies with the scorer's weights and reports the
// strategy with the highest individual score.
func (s *Scorer) Combined(a, b string) (float64, Strategy) {
	score, dominant, _ := s.combined(a, b, s.weights)
	return score, dominant
}

// CombinedWith is Combined with caller-supplied weights.
func (s *Scorer) CombinedWith(a, b string, w model.Weights) (float64, Strategy, error) {
	if err := w.Validate(); err != nil {
		return 0, "", err
	}
	return s.combined(a, b, w)
}

func (s *Scorer) combined(a, b string, w model.Weights) (float64, Strategy, error) {
	na, nb := s.norm.Text(a), s.norm.Text(b)
	if na == "" || nb == "" {
		return 0, StrategyRatio, nil
	}
	if na == nb {
		return 1, dominantOf(w), nil
	}

	parts := []struct {
		strategy Strategy
		weight   float64
	}{
		{StrategyTokenSet, w.TokenSet},
		{StrategyTokenSort, w.TokenSort},
		{StrategyPartial, w.Partial},
		{StrategyRatio, w.Ratio},
	}
	var total, best float64
	dominant := StrategyRatio
	for _, p := range parts {
		if p.weight == 0 {
			continue
		}
		v := scoreNormalized(na, nb, p.strategy)
		total += p.weight * v
		if v > best {
			best, dominant = v, p.strategy
		}
	}
	return clamp01(total), dominant, nil
}

// dominantOf picks the heaviest weighted strategy, used when every score is 1.
func dominantOf(w model.Weights) Strategy {
	out, top := StrategyRatio, w.Ratio
	for _, c := range []struct {
		s Strategy
		v float64
	}{{StrategyTokenSet, w.TokenSet}, {StrategyTokenSort, w.TokenSort}, {StrategyPartial, w.Partial}} {
		if c.v > top {
			out, top = c.s, c.v
		}
	}
	return out
}

func scoreNormalized(a, b string, strategy Strategy) float64 {
	switch strategy {
	case StrategyTokenSet:
		return tokenSetRatio(a, b)
	case StrategyTokenSort:
		return tokenSortRatio(a, b)
	case StrategyPartial:
		return partialRatio(a, b)
	default:
		return ratio(a, b)
	}
}

// ratio is the indel similarity 2*LCS/(|a|+|b|) over runes.
func ratio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la+lb == 0 {
		return 1
	}
	if la == 0 || lb == 0 {
		return 0
	}
	if a == b {
		return 1
	}
	return clamp01(2 * float64(edlib.LCS(a, b)) / float64(la+lb))
}

func tokenSortRatio(a, b string) float64 {
	return ratio(sortedTokens(a), sortedTokens(b))
}

// tokenSetRatio compares the shared tokens against each side's remainder;
// a name whose tokens are all contained in the other scores 1.
func tokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	var common, onlyA, onlyB []string
	for t := range ta {
		if _, ok := tb[t]; ok {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	if len(common) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 1
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(common, " ")
	withA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	best := ratio(withA, withB)
	if sect != "" {
		best = max(best, ratio(sect, withA), ratio(sect, withB))
	}
	return best
}

// partialRatio slides the shorter string over the longer and keeps the best window.
func partialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	short := string(ra)
	if strings.Contains(string(rb), short) {
		return 1
	}
	best := 0.0
	for i := 0; i+len(ra) <= len(rb); i++ {
		if v := ratio(short, string(rb[i:i+len(ra)])); v > best {
			best = v
			if best == 1 {
				break
			}
		}
	}
	return best
}

func sortedTokens(s string) string {
	t := strings.Fields(s)
	sort.Strings(t)
	return strings.Join(t, " ")
}

func tokenSet(s string) map[string]struct{} {
	return wordSet(strings.Fields(s)...)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
