package models

// Facet names one classification dimension of Tags.
type Facet string

const (
	FacetSystems           Facet = "systems"
	FacetTopics            Facet = "topics"
	FacetKeywords          Facet = "keywords"
	FacetClinicalRelevance Facet = "clinicalRelevance"
	FacetExamRelevance     Facet = "examRelevance"
)

// ValidFacets is the set of all valid tag facets.
var ValidFacets = []Facet{
	FacetSystems,
	FacetTopics,
	FacetKeywords,
	FacetClinicalRelevance,
	FacetExamRelevance,
}

// IsValid returns true if the facet is recognized.
func (f Facet) IsValid() bool {
	for _, v := range ValidFacets {
		if f == v {
			return true
		}
	}
	return false
}

// Tags is the flat classification of an entry. Every facet is optional.
type Tags struct {
	Systems           []string `json:"systems"`
	Topics            []string `json:"topics"`
	Keywords          []string `json:"keywords"`
	ClinicalRelevance string   `json:"clinicalRelevance,omitempty"`
	ExamRelevance     []string `json:"examRelevance"`
}

// Values returns the values recorded under facet. Single-valued facets yield at most one value.
func (t Tags) Values(f Facet) []string {
	switch f {
	case FacetSystems:
		return t.Systems
	case FacetTopics:
		return t.Topics
	case FacetKeywords:
		return t.Keywords
	case FacetClinicalRelevance:
		if t.ClinicalRelevance == "" {
			return nil
		}
		return []string{t.ClinicalRelevance}
	case FacetExamRelevance:
		return t.ExamRelevance
	}
	return nil
}

// Contains reports whether value is recorded under facet.
func (t Tags) Contains(f Facet, value string) bool {
	for _, v := range t.Values(f) {
		if v == value {
			return true
		}
	}
	return false
}

func (t Tags) clone() Tags {
	return Tags{
		Systems:           cloneSlice(t.Systems),
		Topics:            cloneSlice(t.Topics),
		Keywords:          cloneSlice(t.Keywords),
		ClinicalRelevance: t.ClinicalRelevance,
		ExamRelevance:     cloneSlice(t.ExamRelevance),
	}
}
