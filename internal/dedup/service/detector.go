package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"dedup-service/internal/dedup/model"
)

// Detector finds the best reference candidate for an uploaded record and
// classifies it. It holds no per-record state and is safe for concurrent use.
type Detector struct {
	norm     *Normalizer
	scorer   *Scorer
	acronyms *AcronymMatcher
	matcher  *Matcher
	opts     model.Options
}

// NewDetector wires the matching components for opts.
func NewDetector(opts model.Options) (*Detector, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching options: %w", err)
	}
	n := NewNormalizer(opts.NormalizeCacheSize)
	s := NewScorer(n, opts.Weights)
	a := NewAcronymMatcher(n, s, DefaultKnowledgeBase().With(opts.Acronyms), opts.AcronymExpansionThreshold)
	return &Detector{
		norm:     n,
		scorer:   s,
		acronyms: a,
		matcher:  NewMatcher(n, s, a, opts),
		opts:     opts,
	}, nil
}

func (d *Detector) Options() model.Options { return d.opts }

func (d *Detector) Normalizer() *Normalizer { return d.norm }

// prepared holds the per-record normalization shared by every comparison.
type prepared struct {
	name      string
	acronym   string
	extracted string // found in the name when the acronym column is empty
	core      string
	variants  map[string]struct{}
	url       string
	country   string
}

func (d *Detector) prepare(rec model.InstitutionRecord) prepared {
	p := prepared{
		name:    d.norm.Text(rec.Name),
		acronym: d.norm.Acronym(rec.Acronym),
		url:     d.norm.URL(rec.Website),
		country: strings.ToLower(strings.TrimSpace(rec.CountryID)),
	}
	if p.acronym == "" {
		p.extracted = d.norm.Acronym(explicitAcronym(rec.Name))
	}
	if core := d.norm.CoreName(rec.Name); d.distinctive(core) {
		p.core = core
	}
	all, _ := d.norm.variants(rec.Name)
	p.variants = make(map[string]struct{}, len(all))
	for v := range all {
		if d.distinctive(v) {
			p.variants[v] = struct{}{}
		}
	}
	return p
}

// distinctive rejects names made only of generic institutional words.
func (d *Detector) distinctive(s string) bool {
	return s != "" && len(d.norm.Keywords(s)) > 0
}

// Corpus is a reference registry prepared for one detection session. It is
// read-only once built.
type Corpus struct {
	entries   []model.ReferenceEntry
	prep      []prepared
	index     *Index
	byAcronym map[string][]int
	skipped   int
}

// Prepare normalizes the registry once. Entries without a name or reference id
// are skipped and counted.
func (d *Detector) Prepare(entries []model.ReferenceEntry) *Corpus {
	c := &Corpus{byAcronym: make(map[string][]int)}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Name) == "" || strings.TrimSpace(e.ReferenceID) == "" {
			c.skipped++
			continue
		}
		p := d.prepare(e.InstitutionRecord)
		if p.name == "" {
			c.skipped++
			continue
		}
		if p.acronym != "" {
			c.byAcronym[p.acronym] = append(c.byAcronym[p.acronym], len(c.entries))
		}
		c.entries = append(c.entries, e)
		c.prep = append(c.prep, p)
		names = append(names, p.name)
	}
	c.index = buildIndex(names)
	return c
}

func (c *Corpus) Len() int { return len(c.entries) }

func (c *Corpus) Skipped() int { return c.skipped }

// Entry returns the reference entry at position i.
func (c *Corpus) Entry(i int) model.ReferenceEntry { return c.entries[i] }

// Detect scans the corpus for the best candidate. A conclusive exact or
// acronym match is returned at once; otherwise a candidate replaces the
// current best only with a strictly higher score. found is false when no
// entry scored.
func (d *Detector) Detect(rec model.InstitutionRecord, embedding []float32, corpus *Corpus) (best model.MatchCandidate, found bool) {
	if corpus == nil {
		return best, false
	}
	up := d.prepare(rec)
	if up.name == "" {
		return best, false
	}
	for i := range corpus.entries {
		c := d.compare(rec, up, embedding, corpus.entries[i], corpus.prep[i])
		if c.Similarity <= 0 && !d.hasIdentity(c.Signals) {
			continue
		}
		if d.conclusive(c) {
			return c, true
		}
		if !found || c.Similarity > best.Similarity {
			best, found = c, true
		}
	}
	return best, found
}

func (d *Detector) conclusive(c model.MatchCandidate) bool {
	switch c.MatchType {
	case model.MatchExact:
		return true
	case model.MatchAcronym:
		return c.Similarity >= d.opts.ConclusiveThreshold
	}
	return false
}

func (d *Detector) hasIdentity(s model.MatchSignals) bool {
	return s.ExactName || s.CoreName || s.VariantName
}

func (d *Detector) compare(rec model.InstitutionRecord, up prepared, embedding []float32, ref model.ReferenceEntry, rp prepared) model.MatchCandidate {
	o := d.opts
	c := d.matcher.Match(rec.Name, up.acronym, ref.Name, rp.acronym)
	c.ReferenceID = ref.ReferenceID

	sig := &c.Signals
	sig.CoreName = up.core != "" && up.core == rp.core && (up.core != up.name || rp.core != rp.name)
	sig.VariantName = sharesAny(up.variants, rp.variants)
	sig.URLExact = up.url != "" && up.url == rp.url
	sig.SameCountry = up.country != "" && up.country == rp.country
	if a := d.extractedAcronymScore(rec, up, ref, rp); a > sig.AcronymSimilarity {
		sig.AcronymSimilarity = a
	}
	if len(embedding) > 0 && ref.HasEmbedding() {
		sig.SemanticSimilarity = max(CosineSimilarity(embedding, ref.Embedding), 0)
	}

	if c.MatchType == model.MatchNone {
		c.Similarity = 0
	}
	symbolic := c.MatchType
	if sig.SemanticSimilarity >= o.SemanticThreshold && sig.SemanticSimilarity > c.Similarity {
		c.MatchType, c.Similarity = model.MatchSemantic, sig.SemanticSimilarity
	}
	if sig.URLExact && sig.AcronymSimilarity > o.URLAcronymThreshold {
		if u := max(sig.AcronymSimilarity, o.URLFloor); u > c.Similarity {
			c.MatchType, c.Similarity = model.MatchURL, u
		}
	}
	if (sig.CoreName || sig.VariantName) && o.VariantFloor > c.Similarity {
		c.MatchType, c.Similarity = model.MatchCore, o.VariantFloor
	}
	if c.MatchType != symbolic {
		c.Explanation = synthesize(c)
	}
	c.Similarity = clamp01(c.Similarity)
	return c
}

// extractedAcronymScore scores acronyms pulled out of names. They never enter
// the cascade, and the score stays below both duplicate tiers so on its own it
// can only support the website tier.
func (d *Detector) extractedAcronymScore(rec model.InstitutionRecord, up prepared, ref model.ReferenceEntry, rp prepared) float64 {
	if up.extracted == "" && rp.extracted == "" {
		return 0
	}
	ua, ra := up.acronym, rp.acronym
	if ua == "" {
		ua = up.extracted
	}
	if ra == "" {
		ra = rp.extracted
	}
	var conf float64
	switch {
	case ua != "" && ua == ra:
		conf = d.opts.UnverifiedAcronymScore
	default:
		if ua != "" {
			if ok, c := d.acronyms.Match(ref.Name, ua); ok {
				conf = c
			}
		}
		if ra != "" {
			if ok, c := d.acronyms.Match(rec.Name, ra); ok {
				conf = max(conf, c)
			}
		}
	}
	ceiling := math.Nextafter(min(d.opts.AcronymDuplicateThreshold, d.opts.DuplicateThreshold), 0)
	return min(conf, d.opts.UnverifiedAcronymScore, ceiling)
}

func sharesAny(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for v := range a {
		if _, ok := b[v]; ok {
			return true
		}
	}
	return false
}

// Classify applies the tiered decision policy to the best candidate.
func (d *Detector) Classify(best model.MatchCandidate, found bool) model.ClassificationResult {
	o := d.opts
	if !found {
		return noMatch()
	}
	s := best.Signals
	sim := best.Similarity

	var (
		status model.Status
		score  float64
	)
	switch {
	case s.ExactName || s.CoreName || s.VariantName:
		status, score = model.StatusDuplicate, max(sim, o.VariantFloor)
	case s.AcronymSimilarity >= o.AcronymDuplicateThreshold:
		status, score = model.StatusDuplicate, max(sim, s.AcronymSimilarity)
	case sim >= o.DuplicateThreshold:
		status, score = model.StatusDuplicate, sim
	case sim >= o.PotentialDuplicateThreshold:
		status, score = model.StatusPotentialDuplicate, sim
	case s.URLExact && s.AcronymSimilarity > o.URLAcronymThreshold:
		status, score = model.StatusPotentialDuplicate, max(s.AcronymSimilarity, o.URLFloor)
	default:
		return noMatch()
	}
	return model.ClassificationResult{
		Status:             status,
		Similarity:         Round4(clamp01(score)),
		Reason:             reasonFor(best),
		MatchedReferenceID: best.ReferenceID,
	}
}

// Evaluate runs Detect and Classify for one record.
func (d *Detector) Evaluate(rec model.InstitutionRecord, embedding []float32, corpus *Corpus) (model.ClassificationResult, model.MatchCandidate) {
	best, found := d.Detect(rec, embedding, corpus)
	return d.Classify(best, found), best
}

func noMatch() model.ClassificationResult {
	return model.ClassificationResult{Status: model.StatusNoMatch, Reason: "No matching institutions found"}
}

// reasonFor passes cascade explanations through, with context signals
// appended. Semantic, url and core candidates already carry a synthesized one.
func reasonFor(c model.MatchCandidate) string {
	switch c.MatchType {
	case model.MatchSemantic, model.MatchURL, model.MatchCore:
		if c.Explanation != "" {
			return c.Explanation
		}
		return synthesize(c)
	}
	var ctx []string
	if c.Signals.URLExact {
		ctx = append(ctx, "website match")
	}
	if c.Signals.SameCountry {
		ctx = append(ctx, "same country")
	}
	if len(ctx) == 0 {
		return c.Explanation
	}
	return c.Explanation + "; " + strings.Join(ctx, ", ")
}

func synthesize(c model.MatchCandidate) string {
	s := c.Signals
	var title string
	switch c.MatchType {
	case model.MatchSemantic:
		title = "Semantic similarity"
	case model.MatchURL:
		title = "Website and acronym match"
	case model.MatchCore:
		if s.CoreName {
			title = "Core name match"
		} else {
			title = "Name variant match"
		}
	default:
		title = "Combined signals"
	}
	var parts []string
	if s.URLExact {
		parts = append(parts, "website match")
	}
	if s.AcronymSimilarity > 0 {
		parts = append(parts, fmt.Sprintf("acronym similarity (%.2f)", s.AcronymSimilarity))
	}
	if s.SemanticSimilarity > 0 {
		parts = append(parts, fmt.Sprintf("semantic similarity (%.2f)", s.SemanticSimilarity))
	}
	if s.KeywordScore > 0 {
		parts = append(parts, fmt.Sprintf("keyword score (%.2f)", s.KeywordScore))
	}
	if s.SameCountry {
		parts = append(parts, "same country")
	}
	if len(parts) == 0 {
		return title
	}
	return title + " - " + strings.Join(parts, ", ")
}

// Rank scores a free-text name against the registry and returns the best
// limit entries at or above the potential-duplicate threshold. Equal scores are
// ordered by Jaro-Winkler similarity, then by name.
func (d *Detector) Rank(name string, corpus *Corpus, limit int) []model.RankedMatch {
	if corpus == nil || limit <= 0 {
		return nil
	}
	nn := d.norm.Text(name)
	if nn == "" {
		return nil
	}
	pos := corpus.index.Candidates(nn, 2)
	pos = append(pos, corpus.byAcronym[d.norm.Acronym(name)]...)

	seen := make(map[int]struct{}, len(pos))
	out := make([]model.RankedMatch, 0, limit)
	tie := make(map[string]float32, len(pos))
	for _, i := range pos {
		if _, dup := seen[i]; dup {
			continue
		}
		seen[i] = struct{}{}

		e := corpus.entries[i]
		score, strategy := d.scorer.Combined(nn, corpus.prep[i].name)
		if corpus.prep[i].acronym != "" && corpus.prep[i].acronym == d.norm.Acronym(name) {
			score, strategy = 1, "acronym"
		}
		if score < d.opts.PotentialDuplicateThreshold {
			continue
		}
		tie[e.ReferenceID] = edlib.JaroWinklerSimilarity(nn, corpus.prep[i].name)
		out = append(out, model.RankedMatch{
			ReferenceID: e.ReferenceID,
			Name:        e.Name,
			Score:       Round4(score),
			Strategy:    string(strategy),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if ti, tj := tie[out[i].ReferenceID], tie[out[j].ReferenceID]; ti != tj {
			return ti > tj
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Round4 rounds to four decimals.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
