// Package interaction decides whether a drug may join a prescription given the drugs
// already on it. Interaction records are stored with one first drug and a list of
// partners, but every lookup is done in both directions.
package interaction

import (
	"slices"

	"github.com/giygas/dynamed-api/catalog/entities"
)

// Conflict is one selected drug that interacts with the candidate
type Conflict struct {
	Selected    string               `json:"selected"`
	Interaction entities.Interaction `json:"interaction"`
	// Reversed is true when the matching record lists the selected drug first
	Reversed bool `json:"reversed"`
}

// Check reports whether candidate is blocked by an interaction with any of selected.
// Names are compared exactly. A table with no matching record never blocks.
func Check(candidate string, selected []string, table []entities.Interaction) bool {
	for _, s := range selected {
		if _, _, found := match(candidate, s, table); found {
			return true
		}
	}
	return false
}

// Conflicts returns, in the order of selected, every selected drug that interacts with
// candidate along with the first record matching the pair.
func Conflicts(candidate string, selected []string, table []entities.Interaction) []Conflict {
	conflicts := []Conflict{}
	for _, s := range selected {
		in, reversed, found := match(candidate, s, table)
		if !found {
			continue
		}
		in.SecondDrugs = slices.Clone(in.SecondDrugs)
		conflicts = append(conflicts, Conflict{Selected: s, Interaction: in, Reversed: reversed})
	}
	return conflicts
}

func match(candidate, selected string, table []entities.Interaction) (entities.Interaction, bool, bool) {
	for _, in := range table {
		if in.FirstDrug == candidate && slices.Contains(in.SecondDrugs, selected) {
			return in, false, true
		}
		if in.FirstDrug == selected && slices.Contains(in.SecondDrugs, candidate) {
			return in, true, true
		}
	}
	return entities.Interaction{}, false, false
}
