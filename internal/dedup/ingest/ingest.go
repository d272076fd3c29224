package ingest

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"dedup-service/internal/dedup/model"
	"dedup-service/internal/fileio"
)

var ErrMissingColumns = errors.New("missing required columns")

// Columns names the spreadsheet header for each field. Alternatives are
// separated by "|"; matching ignores case, spacing and punctuation.
type Columns struct {
	ID              string
	Name            string
	InstitutionType string
	CountryID       string
	Acronym         string
	Website         string
}

func DefaultColumns() Columns {
	return Columns{
		ID:              "id",
		Name:            "partner_name|institution_name|name",
		InstitutionType: "institution_type|type",
		CountryID:       "country_id|country",
		Acronym:         "acronym",
		Website:         "web_page|website|url",
	}
}

// Result is the outcome of reading one upload.
type Result struct {
	Rows   []model.UploadRow
	Errors []model.RowError
}

func (r Result) Total() int { return len(r.Rows) + len(r.Errors) }

// FromTable maps spreadsheet rows onto institution records. A missing required
// column fails the whole file; a row with an empty required cell is reported
// and skipped.
func FromTable(t *fileio.Table, cols Columns) (Result, error) {
	if t == nil {
		return Result{}, fmt.Errorf("%w: empty file", ErrMissingColumns)
	}
	required := []struct {
		field string
		want  string
	}{
		{"id", cols.ID},
		{"partner_name", cols.Name},
		{"institution_type", cols.InstitutionType},
		{"country_id", cols.CountryID},
	}
	keys := make(map[string]string, 6)
	var missing []string
	for _, r := range required {
		k := resolveKey(t.Headers, r.want)
		if k == "" {
			missing = append(missing, r.field)
			continue
		}
		keys[r.field] = k
	}
	if len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	keys["acronym"] = resolveKey(t.Headers, cols.Acronym)
	keys["web_page"] = resolveKey(t.Headers, cols.Website)

	var res Result
	for _, row := range t.Rows {
		if looksLikeHeader(row.Values, keys) {
			continue
		}
		get := func(field string) string {
			if k := keys[field]; k != "" {
				return strings.TrimSpace(row.Values[k])
			}
			return ""
		}
		rec := model.InstitutionRecord{
			ID:              normalizeID(get("id")),
			Name:            get("partner_name"),
			InstitutionType: get("institution_type"),
			CountryID:       normalizeID(get("country_id")),
			Acronym:         get("acronym"),
			Website:         get("web_page"),
		}
		var empty []string
		for _, f := range []struct{ name, v string }{
			{"id", rec.ID},
			{"partner_name", rec.Name},
			{"institution_type", rec.InstitutionType},
			{"country_id", rec.CountryID},
		} {
			if f.v == "" {
				empty = append(empty, "'"+f.name+"'")
			}
		}
		if len(empty) > 0 {
			res.Errors = append(res.Errors, model.RowError{
				Row:     row.Line,
				ID:      rec.ID,
				Message: "Missing or empty " + strings.Join(empty, ", "),
			})
			continue
		}
		res.Rows = append(res.Rows, model.UploadRow{Line: row.Line, Record: rec})
	}
	return res, nil
}

// looksLikeHeader catches header lines repeated inside the data.
func looksLikeHeader(values map[string]string, keys map[string]string) bool {
	hits := 0
	for _, k := range keys {
		if k != "" && normHeaderKey(values[k]) == normHeaderKey(k) {
			hits++
		}
	}
	return hits >= 2
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}]+`)

func normHeaderKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonWord.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// resolveKey finds the header matching want ("a|b|c" alternatives): exact
// first, then normalized, then the longest containment.
func resolveKey(headers []string, want string) string {
	want = strings.TrimSpace(want)
	if want == "" {
		return ""
	}
	alts := strings.Split(want, "|")
	for i := range alts {
		alts[i] = strings.TrimSpace(alts[i])
	}
	for _, a := range alts {
		for _, h := range headers {
			if h == a {
				return h
			}
		}
	}

	nAlts := make([]string, 0, len(alts))
	for _, a := range alts {
		if n := normHeaderKey(a); n != "" {
			nAlts = append(nAlts, n)
		}
	}
	for _, n := range nAlts {
		for _, h := range headers {
			if normHeaderKey(h) == n {
				return h
			}
		}
	}

	bestKey, bestScore := "", 0
	for _, h := range headers {
		nh := normHeaderKey(h)
		if nh == "" {
			continue
		}
		for _, n := range nAlts {
			if len(n) < 5 {
				continue
			}
			if strings.Contains(nh, n) && len(n) > bestScore {
				bestScore, bestKey = len(n), h
			}
		}
	}
	return bestKey
}

// normalizeID turns numeric cells such as "1234.0" or "1 234" into "1234".
// Plain strings, leading zeros included, are kept.
func normalizeID(s string) string {
	s = strings.TrimSpace(s)
	if !strings.ContainsAny(s, ". \u00A0\u202F") {
		return s
	}
	compact := strings.NewReplacer(" ", "", "\u00A0", "", "\u202F", "").Replace(s)
	f, err := strconv.ParseFloat(compact, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return s
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}
