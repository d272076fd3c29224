package service

import (
	"fmt"
	"strings"

	"dedup-service/internal/dedup/model"
)

// Matcher compares one uploaded name/acronym pair against one reference pair
// through an ordered cascade: exact, acronym, fuzzy, keyword, combined.
type Matcher struct {
	norm     *Normalizer
	scorer   *Scorer
	acronyms *AcronymMatcher
	opts     model.Options
}

func NewMatcher(n *Normalizer, s *Scorer, a *AcronymMatcher, opts model.Options) *Matcher {
	return &Matcher{norm: n, scorer: s, acronyms: a, opts: opts}
}

// Match returns the first confident hit of the cascade. The candidate's
// ReferenceID is left for the caller.
func (m *Matcher) Match(upName, upAcronym, refName, refAcronym string) model.MatchCandidate {
	o := m.opts
	c := model.MatchCandidate{MatchType: model.MatchNone}

	nu, nr := m.norm.Text(upName), m.norm.Text(refName)
	if nu == "" || nr == "" {
		c.Explanation = "No matching signals detected"
		return c
	}

	fz := m.scorer.Ratio(nu, nr)
	if nu == nr || (o.ExactMatchThreshold < 1 && fz >= o.ExactMatchThreshold) {
		c.MatchType = model.MatchExact
		c.Similarity = 1
		c.Signals.ExactName = true
		c.Explanation = "Exact name match"
		return c
	}

	if hit, ok := m.matchAcronyms(upName, upAcronym, refName, refAcronym, fz, &c.Signals); ok {
		c.MatchType = model.MatchAcronym
		c.Similarity = hit.score
		c.Signals.AcronymSimilarity = max(c.Signals.AcronymSimilarity, hit.score)
		c.Explanation = hit.explanation
		return c
	}

	if fz >= o.FuzzyThreshold {
		c.MatchType = model.MatchFuzzy
		c.Similarity = fz
		c.Explanation = fmt.Sprintf("Fuzzy name match (%.2f)", fz)
		return c
	}

	_, jac := m.norm.KeywordOverlap(nu, nr, o.KeywordMinOverlap)
	c.Signals.KeywordScore = jac
	if jac >= o.KeywordThreshold && jac > 0 {
		c.MatchType = model.MatchKeyword
		c.Similarity = jac
		c.Explanation = fmt.Sprintf("Keyword overlap (%.2f)", jac)
		return c
	}

	if fz >= o.FuzzyFloor || (jac > 0 && jac >= o.CombinedKeywordTrigger) {
		blend := 0.6*fz + 0.4*jac
		if blend >= o.CombinedThreshold {
			c.MatchType = model.MatchFuzzy
			c.Similarity = clamp01(blend)
			c.Explanation = fmt.Sprintf("Combined fuzzy (%.2f) and keyword (%.2f) similarity", fz, jac)
			return c
		}
	}

	c.Explanation = "No matching signals detected"
	return c
}

type acronymHit struct {
	score       float64
	explanation string
}

// matchAcronyms handles the acronym stage. Equal acronyms need a known
// knowledge-base entry plus similar names; otherwise each side's acronym is
// checked against the other side's name. Equal but unknown acronyms are only
// recorded as a signal.
func (m *Matcher) matchAcronyms(upName, upAcronym, refName, refAcronym string, fz float64, sig *model.MatchSignals) (acronymHit, bool) {
	o := m.opts
	ua, ra := m.norm.Acronym(upAcronym), m.norm.Acronym(refAcronym)

	if ua != "" && ua == ra {
		raw := ratio(strings.ToLower(strings.TrimSpace(upName)), strings.ToLower(strings.TrimSpace(refName)))
		if m.acronyms.KnowledgeBase().Known(ua) && (fz >= o.AcronymNameSupport || raw > o.AcronymRawSupport) {
			return acronymHit{
				score:       max(o.AcronymDuplicateThreshold, fz),
				explanation: fmt.Sprintf("Same acronym '%s' with similar names", ua),
			}, true
		}
		sig.AcronymSimilarity = max(sig.AcronymSimilarity, o.UnverifiedAcronymScore)
	}

	var best acronymHit
	if ua != "" {
		if ok, conf := m.acronyms.Match(refName, ua); ok && conf > best.score {
			best = acronymHit{conf, fmt.Sprintf("Acronym '%s' matches reference name (%s)", ua, acronymEvidence(conf))}
		}
	}
	if ra != "" {
		if ok, conf := m.acronyms.Match(upName, ra); ok && conf > best.score {
			best = acronymHit{conf, fmt.Sprintf("Reference acronym '%s' matches uploaded name (%s)", ra, acronymEvidence(conf))}
		}
	}
	return best, best.score > 0
}

func acronymEvidence(conf float64) string {
	switch conf {
	case confidenceExplicitAcronym:
		return "explicit marker"
	case confidenceKnownExpansion:
		return "known expansion"
	default:
		return "initials"
	}
}
