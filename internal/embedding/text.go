package embedding

import (
	"strings"

	"dedup-service/internal/dedup/model"
)

// BuildText renders the record in the labelled form the reference embeddings
// were computed from. Empty fields are left out.
func BuildText(rec model.InstitutionRecord) string {
	parts := make([]string, 0, 5)
	add := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, label+": "+v)
		}
	}
	add("acronym", rec.Acronym)
	add("Partner_name", rec.Name)
	add("institution_type", rec.InstitutionType)
	add("website", rec.Website)
	add("country", rec.CountryID)
	return strings.Join(parts, ", ")
}
