package interaction

import (
	"testing"

	"github.com/giygas/dynamed-api/catalog/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var table = []entities.Interaction{
	{ID: "i1", FirstDrug: "Warfarin", SecondDrugs: []string{"Aspirin", "Ibuprofen"}, TherapeuticClass: "Anticoagulants", Type: "Contre-indication"},
	{ID: "i2", FirstDrug: "Tramadol", SecondDrugs: []string{"Sertraline"}, Type: "Association déconseillée"},
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		selected  []string
		table     []entities.Interaction
		want      bool
	}{
		{"forward match", "Warfarin", []string{"Aspirin"}, table, true},
		{"reverse match", "Aspirin", []string{"Warfarin"}, table, true},
		{"one of several selected", "Ibuprofen", []string{"Paracetamol", "Warfarin"}, table, true},
		{"no match", "Paracetamol", []string{"Warfarin", "Tramadol"}, table, false},
		{"partners do not interact with each other", "Aspirin", []string{"Ibuprofen"}, table, false},
		{"empty selection", "Warfarin", nil, table, false},
		{"empty table", "Warfarin", []string{"Aspirin"}, nil, false},
		{"names are exact", "warfarin", []string{"Aspirin"}, table, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Check(tt.candidate, tt.selected, tt.table))
		})
	}
}

func TestCheckIsSymmetric(t *testing.T) {
	names := []string{"Warfarin", "Aspirin", "Ibuprofen", "Tramadol", "Sertraline", "Paracetamol"}
	for _, a := range names {
		for _, b := range names {
			assert.Equal(t, Check(a, []string{b}, table), Check(b, []string{a}, table), "%s / %s", a, b)
		}
	}
}

func TestCheckRemovedDrugNoLongerBlocks(t *testing.T) {
	selected := []string{"Aspirin", "Omeprazole"}
	require.True(t, Check("Warfarin", selected, table))

	selected = selected[1:]
	assert.False(t, Check("Warfarin", selected, table))
}

func TestConflicts(t *testing.T) {
	conflicts := Conflicts("Warfarin", []string{"Paracetamol", "Ibuprofen", "Aspirin"}, table)

	require.Len(t, conflicts, 2)
	assert.Equal(t, "Ibuprofen", conflicts[0].Selected)
	assert.Equal(t, "Aspirin", conflicts[1].Selected)
	assert.Equal(t, "Contre-indication", conflicts[0].Interaction.Type)
	assert.False(t, conflicts[0].Reversed)

	reversed := Conflicts("Sertraline", []string{"Tramadol"}, table)
	require.Len(t, reversed, 1)
	assert.True(t, reversed[0].Reversed)
	assert.Equal(t, "i2", reversed[0].Interaction.ID)

	none := Conflicts("Paracetamol", []string{"Warfarin"}, table)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestConflictsDoNotShareTable(t *testing.T) {
	conflicts := Conflicts("Warfarin", []string{"Aspirin"}, table)
	require.Len(t, conflicts, 1)

	conflicts[0].Interaction.SecondDrugs[0] = "mutated"
	assert.Equal(t, "Aspirin", table[0].SecondDrugs[0])
}

func TestCheckAgreesWithConflicts(t *testing.T) {
	selections := [][]string{nil, {"Aspirin"}, {"Tramadol", "Aspirin"}, {"Paracetamol"}}
	for _, candidate := range []string{"Warfarin", "Sertraline", "Paracetamol"} {
		for _, sel := range selections {
			assert.Equal(t, len(Conflicts(candidate, sel, table)) > 0, Check(candidate, sel, table))
		}
	}
}

func TestCheckCandidateStoredAsFirstDrug(t *testing.T) {
	directional := []entities.Interaction{{ID: "yx", FirstDrug: "Y", SecondDrugs: []string{"X"}, Type: "Contre-indication"}}

	assert.True(t, Check("Y", []string{"X"}, directional))
	assert.True(t, Check("X", []string{"Y"}, directional))
}
