package entities

type PatientType string

const (
	PatientAdult PatientType = "adulte"
	PatientChild PatientType = "enfant"
)

// ConsultationContext is the query input of the recommendation engine, built by the
// caller from a patient consultation.
type ConsultationContext struct {
	PatientType          PatientType `json:"patientType,omitempty"`
	Pregnant             bool        `json:"pregnant"`
	Breastfeeding        bool        `json:"breastfeeding"`
	DiagnosticIDs        []string    `json:"diagnosticIds"`
	IndicationIDs        []string    `json:"indicationIds"`
	AllergyIDs           []string    `json:"allergyIds"`
	AntecedentIDs        []string    `json:"antecedentIds"`
	CurrentMedicationIDs []string    `json:"currentMedicationIds"`
	PrecautionIDs        []string    `json:"precautionIds"`
}
