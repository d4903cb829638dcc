package importer

import (
	"strconv"
	"strings"

	"github.com/giygas/dynamed-api/catalog"
	"github.com/giygas/dynamed-api/catalog/entities"
	"github.com/giygas/dynamed-api/interfaces"
)

// Column headers of the datasets
const (
	colMoleculeName       = "Nom de la molécule"
	colIndications        = "Indications principales"
	colClasses            = "Classes thérapeutiques"
	colAllergies          = "Allergies"
	colAntecedents        = "Antécédents médicaux"
	colCurrentMedications = "Médicaments actuels"
	colAgeCategories      = "Catégories d'âge"
	colPregnancy          = "Grossesse"
	colBreastfeeding      = "Allaitement"
	colPrecautions        = "Précautions"
	colSideEffects        = "Effets secondaires majeurs"

	colDiagnostic   = "Diagnostic"
	colMedicalClass = "Classe médicale"

	colDCI                = "DCI (Dénomination Commune Internationale)"
	colCommercialName     = "Nom Commercial"
	colDosage             = "Dosage"
	colPharmaceuticalForm = "Forme Pharmaceutique"
	colPackaging          = "Conditionnement"

	colFirstDrug        = "Médicaments 1"
	colTherapeuticClass = "Classe"
	colPartners         = "Médicaments"
	colInteractionType  = "Type d'Interaction"

	colPrecautionName = "Nom de la précaution"
)

// registry collects lookup entities by slug, keeping the first spelling seen
type registry struct {
	ids   []string
	names map[string]string
}

func newRegistry() *registry {
	return &registry{names: make(map[string]string)}
}

// add registers the names and returns their ids, unnamed values dropped
func (r *registry) add(names ...string) []string {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		id := Slug(name)
		if id == "" {
			continue
		}
		if _, exists := r.names[id]; !exists {
			r.names[id] = name
			r.ids = append(r.ids, id)
		}
		ids = append(ids, id)
	}
	return ids
}

func collect[T any](r *registry, build func(id, name string) T) []T {
	out := make([]T, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, build(id, r.names[id]))
	}
	return out
}

// tables holds the parsed datasets, nil when the file was absent
type tables struct {
	molecules       *table
	diagnostics     *table
	commercialNames *table
	interactions    *table
	precautions     *table
}

// assemble resolves the datasets into one catalog batch and fills the per-file counters
func assemble(t tables, stats map[string]*interfaces.FileStats) catalog.Data {
	var d catalog.Data

	classes := newRegistry()
	indications := newRegistry()
	allergies := newRegistry()
	antecedents := newRegistry()
	currentMeds := newRegistry()
	precautions := newRegistry()

	if t.precautions != nil {
		s := stats[PrecautionsFile]
		for _, row := range t.precautions.rows {
			s.Rows++
			name := t.precautions.get(row, colPrecautionName)
			if !t.precautions.has(colPrecautionName) {
				name = first(row)
			}
			if len(precautions.add(name)) == 0 {
				if !blank(row) {
					s.Skipped++
				}
				continue
			}
			s.Imported++
		}
	}

	moleculeIDs := make(map[string]struct{})
	if t.molecules != nil {
		s := stats[MoleculesFile]
		tb := t.molecules
		for _, row := range tb.rows {
			s.Rows++
			name := tb.get(row, colMoleculeName)
			id := Slug(name)
			if id == "" {
				if !blank(row) {
					s.Skipped++
				}
				continue
			}

			if _, exists := moleculeIDs[id]; exists {
				s.Duplicates++
				continue
			}

			m := entities.Molecule{
				ID:                   id,
				Name:                 name,
				IndicationIDs:        indications.add(splitValues(tb.get(row, colIndications), listSeparators)...),
				AllergyIDs:           allergies.add(splitValues(tb.get(row, colAllergies), listSeparators)...),
				AntecedentIDs:        antecedents.add(splitValues(tb.get(row, colAntecedents), listSeparators)...),
				CurrentMedicationIDs: currentMeds.add(splitValues(tb.get(row, colCurrentMedications), listSeparators)...),
				MedicalClassIDs:      classes.add(splitValues(tb.get(row, colClasses), listSeparators)...),
				PrecautionIDs:        precautions.add(splitValues(tb.get(row, colPrecautions), listSeparators)...),
				PregnancyUnsafe:      parseBool(tb.get(row, colPregnancy)),
				BreastfeedingUnsafe:  parseBool(tb.get(row, colBreastfeeding)),
				MajorSideEffects:     tb.get(row, colSideEffects),
			}
			if ages := splitValues(tb.get(row, colAgeCategories), listSeparators); len(ages) > 0 {
				m.AgeCategory = ages[0]
			}

			moleculeIDs[id] = struct{}{}
			d.Molecules = append(d.Molecules, m)
			s.Imported++
		}
	}

	if t.diagnostics != nil {
		s := stats[DiagnosticsFile]
		tb := t.diagnostics
		diagnosticIDs := make(map[string]struct{})
		for _, row := range tb.rows {
			s.Rows++
			name := tb.get(row, colDiagnostic)
			id := Slug(name)
			if id == "" {
				if !blank(row) {
					s.Skipped++
				}
				continue
			}
			if _, exists := diagnosticIDs[id]; exists {
				s.Duplicates++
				continue
			}
			diagnosticIDs[id] = struct{}{}
			d.Diagnostics = append(d.Diagnostics, entities.Diagnostic{
				ID:              id,
				Name:            name,
				MedicalClassIDs: classes.add(splitValues(tb.get(row, colMedicalClass), diagnosticSeparator)...),
			})
			s.Imported++
		}
	}

	if t.commercialNames != nil {
		s := stats[CommercialNamesFile]
		tb := t.commercialNames
		seen := make(map[string]int)
		for _, row := range tb.rows {
			s.Rows++
			name := tb.get(row, colCommercialName)
			if Slug(name) == "" {
				if !blank(row) {
					s.Skipped++
				}
				continue
			}
			cn := entities.CommercialName{
				MoleculeName:       tb.get(row, colDCI),
				Name:               name,
				Dosage:             tb.get(row, colDosage),
				PharmaceuticalForm: tb.get(row, colPharmaceuticalForm),
				Packaging:          tb.get(row, colPackaging),
			}
			cn.ID = Slug(strings.Join([]string{cn.Name, cn.Dosage, cn.PharmaceuticalForm}, " "))
			// other packagings of the same product get a numbered id
			seen[cn.ID]++
			if n := seen[cn.ID]; n > 1 {
				cn.ID += "-" + strconv.Itoa(n)
			}
			if moleculeID := Slug(cn.MoleculeName); moleculeID != "" {
				if _, ok := moleculeIDs[moleculeID]; ok {
					cn.MoleculeID = moleculeID
				}
			}
			if cn.MoleculeID == "" {
				s.Unresolved++
			}
			d.CommercialNames = append(d.CommercialNames, cn)
			s.Imported++
		}
	}

	if t.interactions != nil {
		s := stats[InteractionsFile]
		tb := t.interactions
		for _, row := range tb.rows {
			s.Rows++
			firstDrug := tb.get(row, colFirstDrug)
			kind := tb.get(row, colInteractionType)
			if firstDrug == "" || kind == "" {
				if !blank(row) {
					s.Skipped++
				}
				continue
			}
			d.Interactions = append(d.Interactions, entities.Interaction{
				ID:               Slug(firstDrug) + "-" + strconv.Itoa(len(d.Interactions)+1),
				FirstDrug:        firstDrug,
				SecondDrugs:      splitValues(tb.get(row, colPartners), listSeparators),
				TherapeuticClass: tb.get(row, colTherapeuticClass),
				Type:             kind,
			})
			s.Imported++
		}
	}

	d.MedicalClasses = collect(classes, func(id, name string) entities.MedicalClass {
		return entities.MedicalClass{ID: id, Name: name}
	})
	d.Indications = collect(indications, func(id, name string) entities.Indication {
		return entities.Indication{ID: id, Name: name}
	})
	d.Allergies = collect(allergies, func(id, name string) entities.Allergy {
		return entities.Allergy{ID: id, Name: name}
	})
	d.Antecedents = collect(antecedents, func(id, name string) entities.AntecedentMedical {
		return entities.AntecedentMedical{ID: id, Name: name}
	})
	d.CurrentMedications = collect(currentMeds, func(id, name string) entities.CurrentMedication {
		return entities.CurrentMedication{ID: id, Name: name}
	})
	d.Precautions = collect(precautions, func(id, name string) entities.Precaution {
		return entities.Precaution{ID: id, Name: name}
	})
	return d
}
