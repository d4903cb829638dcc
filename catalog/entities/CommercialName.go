package entities

// CommercialName is a marketed product of a molecule. MoleculeID is empty when the
// DCI of the import row did not match any molecule.
type CommercialName struct {
	ID                 string `json:"id"`
	MoleculeID         string `json:"moleculeId"`
	MoleculeName       string `json:"moleculeName"`
	Name               string `json:"name"`
	Dosage             string `json:"dosage"`
	PharmaceuticalForm string `json:"pharmaceuticalForm"`
	Packaging          string `json:"packaging"`
}
