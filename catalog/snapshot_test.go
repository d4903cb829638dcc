package catalog

import (
	"slices"
	"testing"

	"github.com/giygas/dynamed-api/catalog/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() Data {
	return Data{
		Molecules: []entities.Molecule{
			{ID: "amoxicilline", Name: "Amoxicilline", MedicalClassIDs: []string{"antibiotiques"}},
			{ID: "paracetamol", Name: "Paracétamol", MedicalClassIDs: []string{"antalgiques"}},
		},
		Diagnostics: []entities.Diagnostic{
			{ID: "angine", Name: "Angine", MedicalClassIDs: []string{"antibiotiques"}},
		},
		MedicalClasses: []entities.MedicalClass{{ID: "antibiotiques", Name: "Antibiotiques"}},
		Indications:    []entities.Indication{{ID: "fievre", Name: "Fièvre"}},
		Precautions:    []entities.Precaution{{ID: "insuffisance-renale", Name: "Insuffisance rénale"}},
		CommercialNames: []entities.CommercialName{
			{ID: "clamoxyl", MoleculeID: "amoxicilline", Name: "Clamoxyl"},
			{ID: "orphan", Name: "Orphan"},
			{ID: "amoxi-gé", MoleculeID: "amoxicilline", Name: "Amoxicilline Biogaran"},
		},
		Interactions: []entities.Interaction{
			{ID: "i1", FirstDrug: "Warfarine", SecondDrugs: []string{"Aspirine"}, Type: "Contre-indication"},
		},
	}
}

func TestEmptySnapshot(t *testing.T) {
	s := Empty()

	assert.Equal(t, uint64(0), s.Version())
	assert.Equal(t, Counts{}, s.Counts())

	_, ok := s.Molecule("anything")
	assert.False(t, ok)
	assert.Empty(t, s.CommercialNames("anything"))
	assert.Empty(t, s.Interactions())
}

func TestSnapshotLookups(t *testing.T) {
	s := NewSnapshot(3, sampleData())

	m, ok := s.Molecule("amoxicilline")
	require.True(t, ok)
	assert.Equal(t, "Amoxicilline", m.Name)

	_, ok = s.Molecule("unknown")
	assert.False(t, ok)

	d, ok := s.Diagnostic("angine")
	require.True(t, ok)
	assert.Equal(t, []string{"antibiotiques"}, d.MedicalClassIDs)

	name, ok := s.MedicalClassName("antibiotiques")
	assert.True(t, ok)
	assert.Equal(t, "Antibiotiques", name)

	_, ok = s.IndicationName("toux")
	assert.False(t, ok)

	names := s.CommercialNames("amoxicilline")
	require.Len(t, names, 2)
	assert.Equal(t, "Clamoxyl", names[0].Name)
	assert.Equal(t, "Amoxicilline Biogaran", names[1].Name)

	cn, ok := s.CommercialName("orphan")
	require.True(t, ok)
	assert.Empty(t, cn.MoleculeID)
}

func TestSnapshotDuplicateIDsResolveToFirst(t *testing.T) {
	d := sampleData()
	d.Molecules = append(d.Molecules, entities.Molecule{ID: "amoxicilline", Name: "Second"})
	s := NewSnapshot(1, d)

	m, ok := s.Molecule("amoxicilline")
	require.True(t, ok)
	assert.Equal(t, "Amoxicilline", m.Name)
	assert.Equal(t, 3, s.Counts().Molecules)

	var names []string
	for m := range s.Molecules() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"Amoxicilline", "Paracétamol"}, names, "later rows with a known id are not iterated")
}

func TestSnapshotLookupLists(t *testing.T) {
	d := sampleData()
	d.Allergies = []entities.Allergy{{ID: "penicillines", Name: "Pénicillines"}}
	d.Antecedents = []entities.AntecedentMedical{{ID: "ulcere", Name: "Ulcère"}}
	d.CurrentMedications = []entities.CurrentMedication{{ID: "warfarine", Name: "Warfarine"}}
	s := NewSnapshot(1, d)

	assert.Equal(t, d.MedicalClasses, s.MedicalClasses())
	assert.Equal(t, d.Indications, s.Indications())
	assert.Equal(t, d.Allergies, s.Allergies())
	assert.Equal(t, d.Precautions, s.Precautions())
	assert.Equal(t, d.Antecedents, s.Antecedents())
	assert.Equal(t, d.CurrentMedications, s.CurrentMedications())

	name, ok := s.AllergyName("penicillines")
	assert.True(t, ok)
	assert.Equal(t, "Pénicillines", name)
	name, ok = s.AntecedentName("ulcere")
	assert.True(t, ok)
	assert.Equal(t, "Ulcère", name)
	_, ok = s.CurrentMedicationName("aspirine")
	assert.False(t, ok)

	allergies := s.Allergies()
	allergies[0].Name = "changed"
	assert.Equal(t, "Pénicillines", s.Allergies()[0].Name)

	empty := Empty()
	assert.NotNil(t, empty.Antecedents())
	assert.Empty(t, empty.Antecedents())
	assert.False(t, empty.CreatedAt().IsZero())
}

func TestSnapshotIsolatedFromSource(t *testing.T) {
	d := sampleData()
	s := NewSnapshot(1, d)

	d.Molecules[0].Name = "Changed"
	d.Molecules[0].MedicalClassIDs[0] = "changed"
	d.Interactions[0].SecondDrugs[0] = "changed"

	m, _ := s.Molecule("amoxicilline")
	assert.Equal(t, "Amoxicilline", m.Name)
	assert.Equal(t, []string{"antibiotiques"}, m.MedicalClassIDs)
	assert.Equal(t, []string{"Aspirine"}, s.Interactions()[0].SecondDrugs)

	// Copies handed out do not write through either
	m.MedicalClassIDs[0] = "mutated"
	again, _ := s.Molecule("amoxicilline")
	assert.Equal(t, []string{"antibiotiques"}, again.MedicalClassIDs)
}

func TestSnapshotWithProducesNewVersion(t *testing.T) {
	base := NewSnapshot(1, sampleData())
	next := base.With(Data{
		Molecules:   []entities.Molecule{{ID: "ibuprofene", Name: "Ibuprofène"}},
		Precautions: []entities.Precaution{{ID: "ulcere", Name: "Ulcère"}},
	})

	assert.Equal(t, uint64(2), next.Version())
	assert.Equal(t, 3, next.Counts().Molecules)
	assert.Equal(t, 2, base.Counts().Molecules, "base snapshot must not change")

	_, ok := base.Molecule("ibuprofene")
	assert.False(t, ok)
	_, ok = next.PrecautionName("ulcere")
	assert.True(t, ok)

	order := slices.Collect(next.Molecules())
	assert.Equal(t, "ibuprofene", order[2].ID)
}

func TestSnapshotReplace(t *testing.T) {
	base := NewSnapshot(4, sampleData())
	next := base.Replace(Data{Molecules: []entities.Molecule{{ID: "x", Name: "X"}}})

	assert.Equal(t, uint64(5), next.Version())
	assert.Equal(t, 1, next.Counts().Molecules)
	assert.Equal(t, 0, next.Counts().Diagnostics)
}

func TestMoleculesPage(t *testing.T) {
	s := NewSnapshot(1, sampleData())

	assert.Len(t, s.MoleculesPage(0, 1), 1)
	assert.Len(t, s.MoleculesPage(1, 10), 1)
	assert.Empty(t, s.MoleculesPage(2, 10))
	assert.Empty(t, s.MoleculesPage(-1, 10))
	assert.Empty(t, s.MoleculesPage(0, 0))
}
