package entities

// ScoredMolecule is a recommended molecule with its score and the display data
// resolved from the catalog. Derived, never persisted.
type ScoredMolecule struct {
	Molecule
	Score           int              `json:"score"`
	CommercialNames []CommercialName `json:"commercialNames"`
	Indications     string           `json:"indications"`
	Precautions     string           `json:"precautions"`
	MedicalClasses  string           `json:"medicalClasses"`
}
