package entities

type PrescriptionLine struct {
	ID                 string `json:"id"`
	MoleculeID         string `json:"moleculeId"`
	MoleculeName       string `json:"moleculeName"`
	CommercialNameID   string `json:"commercialNameId,omitempty"`
	CommercialName     string `json:"commercialName"`
	Dosage             string `json:"dosage"`
	PharmaceuticalForm string `json:"pharmaceuticalForm"`
	Packaging          string `json:"packaging"`
	Frequency          string `json:"frequency"`
	Duration           string `json:"duration"`
}
