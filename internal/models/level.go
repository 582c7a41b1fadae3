package models

// LevelContent is one rung of the explanation ladder for one entry.
// Explanation is opaque text; any headings or tables inside it belong to the renderer.
type LevelContent struct {
	Level                   int       `json:"level"`
	Summary                 string    `json:"summary"`
	Explanation             string    `json:"explanation"`
	KeyTerms                []KeyTerm `json:"keyTerms"`
	Analogies               []string  `json:"analogies"`
	Examples                []string  `json:"examples"`
	PatientCounselingPoints []string  `json:"patientCounselingPoints"`
	ClinicalNotes           string    `json:"clinicalNotes,omitempty"`
}

// KeyTerm is a glossary item. Order within a level is display order and terms may
// repeat across levels with a more advanced definition.
type KeyTerm struct {
	Term          string `json:"term"`
	Definition    string `json:"definition"`
	Pronunciation string `json:"pronunciation,omitempty"`
}

// Clone returns a deep copy of the rung.
func (lc LevelContent) Clone() LevelContent {
	out := lc
	out.KeyTerms = cloneSlice(lc.KeyTerms)
	out.Analogies = cloneSlice(lc.Analogies)
	out.Examples = cloneSlice(lc.Examples)
	out.PatientCounselingPoints = cloneSlice(lc.PatientCounselingPoints)
	return out
}
