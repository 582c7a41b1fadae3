package models

// Relationship labels a directed cross-reference edge.
type Relationship string

const (
	RelationshipParent  Relationship = "parent"
	RelationshipSibling Relationship = "sibling"
	RelationshipRelated Relationship = "related"
	RelationshipSeeAlso Relationship = "see-also"
)

// ValidRelationships is the set of all valid relationship kinds.
var ValidRelationships = []Relationship{
	RelationshipParent,
	RelationshipSibling,
	RelationshipRelated,
	RelationshipSeeAlso,
}

// IsValid returns true if the relationship is recognized.
func (r Relationship) IsValid() bool {
	for _, v := range ValidRelationships {
		if r == v {
			return true
		}
	}
	return false
}

// CrossReference is a directed edge from the owning entry to TargetID.
// TargetType is a denormalized copy of the target's type and may be stale.
type CrossReference struct {
	TargetID     string       `json:"targetId"`
	TargetType   EntryType    `json:"targetType,omitempty"`
	Relationship Relationship `json:"relationship"`
	Label        string       `json:"label,omitempty"`
}

// Citation is a bibliographic record. It carries no cross-entry invariants.
type Citation struct {
	ID           string   `json:"id"`
	Type         string   `json:"type,omitempty"`
	Title        string   `json:"title"`
	Source       string   `json:"source,omitempty"`
	Authors      []string `json:"authors"`
	URL          string   `json:"url,omitempty"`
	AccessedDate string   `json:"accessedDate,omitempty"`
	Chapter      string   `json:"chapter,omitempty"`
}

// MediaRef points at an asset owned by an external store; existence is not checked.
type MediaRef struct {
	ID          string `json:"id"`
	Type        string `json:"type,omitempty"`
	Filename    string `json:"filename"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}
