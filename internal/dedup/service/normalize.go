package service

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NFD, drop combining marks, recompose what is left
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// "(KE)", "... regional office"
var branchMarkers = []*regexp.Regexp{
	regexp.MustCompile(`\s*[\(\[]\s*[\p{L}\p{N}]+\s*[\)\]]\s*$`),
	regexp.MustCompile(`\s+(branch|regional office|country office)\s*$`),
}

// "Plan International-Bangladesh", "CIMMYT - Latin America"
var hyphenSuffix = regexp.MustCompile(`\s*-\s*((?:[\p{L}\p{N}]+\s+){0,2}[\p{L}\p{N}]+)\s*$`)

var legalSuffixes = wordSet(
	"ltd", "limited", "inc", "incorporated", "llc", "llp", "lp", "co", "corp", "corporation",
	"sa", "gmbh", "ag", "bv", "nv",
	"foundation", "institute", "university", "college", "school", "academy", "center", "centre",
	"association", "society", "organization", "organisation", "bureau", "agency", "department",
	"ministry", "authority", "board", "service", "office", "division", "branch",
)

var namePrefixes = []string{"the ", "peoples republic of ", "people's republic of ", "republic of ", "kingdom of "}

var (
	wwwPrefix = regexp.MustCompile(`^www\d*\.`)
	urlScheme = regexp.MustCompile(`^([a-z][a-z0-9+.\-]*):(.*)$`)
)

var (
	parenAcronym = regexp.MustCompile(`\(([A-Z]{2,})\)`)
	capsWord     = regexp.MustCompile(`\b[A-Z]{2,}\b`)
)

var acronymFiller = wordSet("of", "the", "and", "for", "de", "del", "la", "le")

// Normalizer canonicalizes institution text. Results of Text and CoreName are
// memoized by raw input; the caches are safe for concurrent use.
type Normalizer struct {
	text *lru.Cache[string, string]
	core *lru.Cache[string, string]
}

// NewNormalizer returns a normalizer memoizing up to cacheSize inputs per
// operation. cacheSize <= 0 disables memoization.
func NewNormalizer(cacheSize int) *Normalizer {
	n := &Normalizer{}
	if cacheSize > 0 {
		n.text, _ = lru.New[string, string](cacheSize)
		n.core, _ = lru.New[string, string](cacheSize)
	}
	return n
}

func (n *Normalizer) Text(s string) string {
	return memo(n.text, s, normalizeText)
}

func (n *Normalizer) Acronym(s string) string { return normalizeAcronym(s) }

func (n *Normalizer) URL(s string) string { return normalizeURL(s) }

func (n *Normalizer) CoreName(s string) string {
	return memo(n.core, s, func(s string) string { return coreOf(n.Text(s)) })
}

// Variants returns the distinct name forms used for variant matching, sorted.
func (n *Normalizer) Variants(s string) []string {
	set, abbr := n.variants(s)
	if abbr != "" {
		set[abbr] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// variants returns every form except the initials, which come back separately.
func (n *Normalizer) variants(s string) (map[string]struct{}, string) {
	set := make(map[string]struct{})
	normalized := n.Text(s)
	if normalized == "" {
		return set, ""
	}
	add := func(v string) {
		if utf8.RuneCountInString(v) > 1 {
			set[v] = struct{}{}
		}
	}
	add(normalized)
	add(n.CoreName(s))
	add(alnumOnly(normalized))
	for _, p := range namePrefixes {
		if rest, ok := strings.CutPrefix(normalized, p); ok {
			add(strings.TrimSpace(rest))
		}
	}

	abbr := initials(strings.Fields(alnumOnly(normalized)))
	if utf8.RuneCountInString(abbr) <= 1 {
		abbr = ""
	}
	if _, dup := set[abbr]; dup {
		abbr = ""
	}
	return set, abbr
}

// ExtractAcronym finds an acronym inside a raw name: a parenthesised all-caps
// token, the first all-caps word, or the initials of a short name.
func (n *Normalizer) ExtractAcronym(name string) string {
	if a := explicitAcronym(name); a != "" {
		return a
	}
	words := strings.Fields(name)
	if len(words) > 5 {
		return ""
	}
	var letters []rune
	for _, w := range words {
		if utf8.RuneCountInString(w) < 2 {
			continue
		}
		if _, skip := acronymFiller[strings.ToLower(w)]; skip {
			continue
		}
		r, _ := utf8.DecodeRuneInString(w)
		letters = append(letters, unicode.ToUpper(r))
	}
	if len(letters) < 2 || len(letters) > 5 {
		return ""
	}
	return string(letters)
}

// explicitAcronym only trusts acronyms written out in the name itself.
func explicitAcronym(name string) string {
	if m := parenAcronym.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return capsWord.FindString(name)
}

func normalizeText(s string) string {
	if s == "" {
		return ""
	}
	out := strings.ToLower(strings.TrimSpace(s))
	if t, _, err := transform.String(stripMarks, out); err == nil {
		out = t
	}
	out = collapseSpaces(out)
	return strings.TrimFunc(out, isEdgeJunk)
}

// isEdgeJunk keeps brackets so trailing "(KE)" markers survive for coreOf.
func isEdgeJunk(r rune) bool {
	switch r {
	case '(', ')', '[', ']':
		return false
	}
	return unicode.IsPunct(r) || unicode.IsSpace(r)
}

func normalizeAcronym(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '.' || r == '-' {
			return -1
		}
		return r
	}, strings.ToUpper(s))
}

func normalizeURL(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "@") {
		return ""
	}
	if m := urlScheme.FindStringSubmatch(s); m != nil {
		switch {
		case m[1] == "http" || m[1] == "https":
			if !strings.HasPrefix(m[2], "//") {
				return ""
			}
			s = m[2]
		case strings.HasPrefix(m[2], "//"):
			return ""
		case m[2] == "" || !unicode.IsDigit(rune(m[2][0])):
			// mailto:, tel: and friends; "host:8080" is not a scheme
			return ""
		}
	}
	s = "https://" + strings.TrimPrefix(s, "//")
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimSuffix(wwwPrefix.ReplaceAllString(u.Host, ""), ".")
	if host == "" {
		return ""
	}
	return "https://" + host
}

// coreOf strips branch markers, then trailing legal/institutional words.
func coreOf(normalized string) string {
	out := normalized
	for _, re := range branchMarkers {
		out = re.ReplaceAllString(out, "")
	}
	out = stripBranchSuffix(out)
	words := strings.Fields(out)
	for len(words) > 0 {
		last := strings.Trim(words[len(words)-1], ".,;:&")
		if _, ok := legalSuffixes[last]; !ok && last != "" {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.TrimFunc(strings.Join(words, " "), isEdgeJunk)
}

// stripBranchSuffix drops a hyphenated trailing segment when it names a
// country or region, or when it is a single word and the rest of the name
// still has two distinctive words. "Bio-Innovate" and "Agro-Tech" stay whole.
func stripBranchSuffix(s string) string {
	m := hyphenSuffix.FindStringSubmatchIndex(s)
	if m == nil {
		return s
	}
	rest, segment := s[:m[0]], s[m[2]:m[3]]
	if _, ok := regionNames[segment]; ok {
		return rest
	}
	if !strings.ContainsFunc(segment, unicode.IsSpace) && distinctiveWords(rest) >= 2 {
		return rest
	}
	return s
}

func distinctiveWords(s string) int {
	n := 0
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if _, stop := stopWords[w]; stop || len([]rune(w)) < 2 {
			continue
		}
		if _, legal := legalSuffixes[w]; legal {
			continue
		}
		n++
	}
	return n
}

func alnumOnly(s string) string {
	return collapseSpaces(strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s))
}

func initials(words []string) string {
	if len(words) < 2 {
		return ""
	}
	var b strings.Builder
	for _, w := range words {
		for _, r := range w {
			if unicode.IsLetter(r) {
				b.WriteRune(r)
				break
			}
		}
	}
	return b.String()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func memo(c *lru.Cache[string, string], key string, f func(string) string) string {
	if c == nil {
		return f(key)
	}
	if v, ok := c.Get(key); ok {
		return v
	}
	v := f(key)
	c.Add(key, v)
	return v
}
