package entities

// Lookup-only reference lists. They only give a display name to an id.

type MedicalClass struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Indication struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Allergy struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Precaution struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AntecedentMedical struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CurrentMedication struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
