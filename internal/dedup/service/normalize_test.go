package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(16)
	tests := []struct {
		in, want string
	}{
		{"Café", "cafe"},
		{"  International   Rice\tResearch Institute. ", "international rice research institute"},
		{"Centre de Coopération Internationale", "centre de cooperation internationale"},
		{"-- ICRISAT, ", "icrisat"},
		{"WorldFish (Malaysia)", "worldfish (malaysia)"},
		{"!!Hello!!", "hello"},
		{"\"Acme Seeds\"", "acme seeds"},
		{"«Centro Agronómico»", "centro agronomico"},
		{"'Farmers' Union'", "farmers' union"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := n.Text(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, n.Text(got), "idempotent")
		})
	}
}

func TestNormalizeAcronym(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(0)
	assert.Equal(t, "CIAT", n.Acronym(" c.i.a-t "))
	assert.Equal(t, "CIMMYT", n.Acronym("CIMMYT"))
	assert.Equal(t, n.Acronym("w u r"), n.Acronym(n.Acronym("w u r")))
	assert.Equal(t, "", n.Acronym(""))
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(0)
	tests := []struct {
		in, want string
	}{
		{"http://WWW.Example.org/", "https://example.org"},
		{"https://example.org", "https://example.org"},
		{"www2.cgiar.org/about?x=1#top", "https://cgiar.org"},
		{"//www.cimmyt.org", "https://cimmyt.org"},
		{"example.org", "https://example.org"},
		{"www.example.org:8080/home", "https://example.org:8080"},
		{"ftp://irri.org/files", ""},
		{"mailto:x@y.com", ""},
		{"info@cgiar.org", ""},
		{"http://user@cgiar.org", ""},
		{"tel:+254 20 422 3000", ""},
		{"javascript:void(0)", ""},
		{"http:cgiar.org", ""},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, n.URL(tt.in))
		})
	}
	assert.Equal(t, n.URL("http://WWW.Example.org/"), n.URL("https://example.org"))
}

func TestCoreName(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(16)
	tests := []struct {
		in, want string
	}{
		{"CIMMYT - Bangladesh", "cimmyt"},
		{"Plan International-Bangladesh", "plan international"},
		{"CIMMYT - Latin America", "cimmyt"},
		{"Wageningen Plant Research-Lelystad", "wageningen plant research"},
		{"Bio-Innovate", "bio-innovate"},
		{"Agro-Tech", "agro-tech"},
		{"Acme - Seed House", "acme - seed house"},
		{"ILRI (KE)", "ilri"},
		{"Acme Seeds Foundation Ltd.", "acme seeds"},
		{"WorldFish Regional Office", "worldfish"},
		{"International Rice Research Institute", "international rice research"},
		{"University", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, n.CoreName(tt.in))
		})
	}
}

func TestVariants(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(16)
	got := n.Variants("The International Rice Research Institute")
	assert.Contains(t, got, "the international rice research institute")
	assert.Contains(t, got, "international rice research institute")
	assert.Contains(t, got, "the international rice research")
	assert.Contains(t, got, "tirri")
	assert.IsIncreasing(t, got)

	assert.Equal(t, []string{"c.i.a.t", "ciat"}, n.Variants("C.I.A.T"))
	assert.Empty(t, n.Variants("A"))
	assert.Empty(t, n.Variants(""))
}

func TestExtractAcronym(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(0)
	tests := []struct {
		in, want string
	}{
		{"International Maize and Wheat Improvement Center (CIMMYT)", "CIMMYT"},
		{"ICRISAT research unit", "ICRISAT"},
		{"Food and Agriculture Organization", "FAO"},
		{"Wageningen University", "WU"},
		{"one two three four five six", ""},
		{"Bioversity", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, n.ExtractAcronym(tt.in))
		})
	}
}
