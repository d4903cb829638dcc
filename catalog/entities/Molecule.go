package entities

// Molecule is the scored entity of the catalog. Every relation is a list of opaque ids
// resolved through the catalog lookups.
type Molecule struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	IndicationIDs        []string `json:"indicationIds"`
	AllergyIDs           []string `json:"allergyIds"`
	AntecedentIDs        []string `json:"antecedentIds"`
	CurrentMedicationIDs []string `json:"currentMedicationIds"`
	MedicalClassIDs      []string `json:"medicalClassIds"`
	PrecautionIDs        []string `json:"precautionIds"`
	PregnancyUnsafe      bool     `json:"pregnancyUnsafe"`
	BreastfeedingUnsafe  bool     `json:"breastfeedingUnsafe"`
	MajorSideEffects     string   `json:"majorSideEffects"`
	AgeCategory          string   `json:"ageCategory,omitempty"`
}
