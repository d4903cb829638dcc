package entities

// Interaction is stored directionally: one first drug and the drugs it interacts with.
// The relationship itself is symmetric, see package interaction.
type Interaction struct {
	ID               string   `json:"id"`
	FirstDrug        string   `json:"firstDrug"`
	SecondDrugs      []string `json:"secondDrugs"`
	TherapeuticClass string   `json:"therapeuticClass"`
	Type             string   `json:"type"`
}
