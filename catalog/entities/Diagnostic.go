package entities

// Diagnostic maps a diagnosis to the therapeutic classes recommended for it
type Diagnostic struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	MedicalClassIDs []string `json:"medicalClassIds"`
}
