// Package recommendation turns a consultation context into a ranked list of admissible
// molecules read from a catalog snapshot.
//
// The computation has four stages: resolve the medical classes of the selected diagnostics,
// keep the molecules of those classes, drop every molecule hit by an exclusion rule, then
// score the survivors (+2 on an indication match, -1 on a precaution match) and keep the
// positive ones, best score first. It is a pure function of its inputs: nothing is cached
// between calls and the snapshot is only read.
package recommendation

import (
	"cmp"
	"slices"
	"strings"

	"github.com/giygas/dynamed-api/catalog"
	"github.com/giygas/dynamed-api/catalog/entities"
)

const (
	// IndicationBonus is added once when any indication of the molecule is in the context
	IndicationBonus = 2
	// PrecautionPenalty is subtracted once when any precaution of the molecule is in the context
	PrecautionPenalty = 1
	// DisplaySeparator joins resolved names in the enriched display fields
	DisplaySeparator = ", "
)

// ExclusionReason names the contraindication that removed a molecule
type ExclusionReason string

const (
	NotExcluded               ExclusionReason = ""
	ExcludedAllergy           ExclusionReason = "allergy"
	ExcludedAntecedent        ExclusionReason = "antecedent"
	ExcludedCurrentMedication ExclusionReason = "current_medication"
	ExcludedPregnancy         ExclusionReason = "pregnancy"
	ExcludedBreastfeeding     ExclusionReason = "breastfeeding"
)

// Assessment is the outcome of the engine stages for one class-matching molecule
type Assessment struct {
	MoleculeID      string          `json:"moleculeId"`
	MoleculeName    string          `json:"moleculeName"`
	Excluded        ExclusionReason `json:"excluded,omitempty"`
	IndicationMatch bool            `json:"indicationMatch"`
	PrecautionMatch bool            `json:"precautionMatch"`
	Score           int             `json:"score"`
	Kept            bool            `json:"kept"`
}

type idSet map[string]struct{}

func newIDSet(ids []string) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s idSet) intersects(ids []string) bool {
	if len(s) == 0 {
		return false
	}
	for _, id := range ids {
		if _, ok := s[id]; ok {
			return true
		}
	}
	return false
}

// query is a consultation context turned into sets, built once per call
type query struct {
	pregnant      bool
	breastfeeding bool
	classes       idSet
	indications   idSet
	allergies     idSet
	antecedents   idSet
	currentMeds   idSet
	precautions   idSet
}

func newQuery(ctx entities.ConsultationContext, snap *catalog.Snapshot) query {
	return query{
		pregnant:      ctx.Pregnant,
		breastfeeding: ctx.Breastfeeding,
		classes:       resolveClasses(ctx, snap),
		indications:   newIDSet(ctx.IndicationIDs),
		allergies:     newIDSet(ctx.AllergyIDs),
		antecedents:   newIDSet(ctx.AntecedentIDs),
		currentMeds:   newIDSet(ctx.CurrentMedicationIDs),
		precautions:   newIDSet(ctx.PrecautionIDs),
	}
}

// resolveClasses returns the union of the medical classes of the known diagnostics of ctx
func resolveClasses(ctx entities.ConsultationContext, snap *catalog.Snapshot) idSet {
	classes := make(idSet)
	for _, id := range ctx.DiagnosticIDs {
		d, ok := snap.Diagnostic(id)
		if !ok {
			continue
		}
		for _, classID := range d.MedicalClassIDs {
			classes[classID] = struct{}{}
		}
	}
	return classes
}

func (q query) isCandidate(m entities.Molecule) bool {
	return q.classes.intersects(m.MedicalClassIDs)
}

// exclusion returns the first contraindication hit by m
func (q query) exclusion(m entities.Molecule) ExclusionReason {
	switch {
	case q.allergies.intersects(m.AllergyIDs):
		return ExcludedAllergy
	case q.antecedents.intersects(m.AntecedentIDs):
		return ExcludedAntecedent
	case q.currentMeds.intersects(m.CurrentMedicationIDs):
		return ExcludedCurrentMedication
	case q.pregnant && m.PregnancyUnsafe:
		return ExcludedPregnancy
	case q.breastfeeding && m.BreastfeedingUnsafe:
		return ExcludedBreastfeeding
	}
	return NotExcluded
}

// score applies the flat indication bonus and the flat precaution penalty
func (q query) score(m entities.Molecule) (score int, indication, precaution bool) {
	indication = q.indications.intersects(m.IndicationIDs)
	precaution = q.precautions.intersects(m.PrecautionIDs)
	if indication {
		score += IndicationBonus
	}
	if precaution {
		score -= PrecautionPenalty
	}
	return score, indication, precaution
}

// Recommend returns the admissible molecules for ctx, highest score first, catalog order
// on equal scores. An empty result is not an error: it means no diagnosis resolved to a
// medical class or no molecule survived.
func Recommend(ctx entities.ConsultationContext, snap *catalog.Snapshot) []entities.ScoredMolecule {
	results := []entities.ScoredMolecule{}
	if snap == nil {
		return results
	}

	q := newQuery(ctx, snap)
	if len(q.classes) == 0 {
		return results
	}

	for m := range snap.Molecules() {
		if !q.isCandidate(m) || q.exclusion(m) != NotExcluded {
			continue
		}
		score, _, _ := q.score(m)
		if score <= 0 {
			continue
		}
		results = append(results, enrich(m, score, snap))
	}

	slices.SortStableFunc(results, func(a, b entities.ScoredMolecule) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return results
}

// Assess runs the same stages as Recommend and reports the outcome for every
// class-matching molecule, in catalog order, including the excluded and dropped ones.
func Assess(ctx entities.ConsultationContext, snap *catalog.Snapshot) []Assessment {
	assessments := []Assessment{}
	if snap == nil {
		return assessments
	}

	q := newQuery(ctx, snap)
	if len(q.classes) == 0 {
		return assessments
	}

	for m := range snap.Molecules() {
		if !q.isCandidate(m) {
			continue
		}
		a := Assessment{MoleculeID: m.ID, MoleculeName: m.Name}
		if a.Excluded = q.exclusion(m); a.Excluded == NotExcluded {
			a.Score, a.IndicationMatch, a.PrecautionMatch = q.score(m)
			a.Kept = a.Score > 0
		}
		assessments = append(assessments, a)
	}
	return assessments
}

// BestPerClass narrows a ranked list to one molecule per resolved medical class: a
// molecule is kept only when it is the first of the list to cover one of the classes
// resolved from the diagnostics of ctx. The input order is preserved.
func BestPerClass(ranked []entities.ScoredMolecule, ctx entities.ConsultationContext, snap *catalog.Snapshot) []entities.ScoredMolecule {
	out := []entities.ScoredMolecule{}
	if snap == nil {
		return out
	}

	classes := resolveClasses(ctx, snap)
	covered := make(idSet, len(classes))
	for _, sm := range ranked {
		coversNew := false
		for _, classID := range sm.MedicalClassIDs {
			if _, relevant := classes[classID]; !relevant {
				continue
			}
			if _, done := covered[classID]; !done {
				covered[classID] = struct{}{}
				coversNew = true
			}
		}
		if coversNew {
			out = append(out, sm)
		}
	}
	return out
}

func enrich(m entities.Molecule, score int, snap *catalog.Snapshot) entities.ScoredMolecule {
	return entities.ScoredMolecule{
		Molecule:        detach(m),
		Score:           score,
		CommercialNames: snap.CommercialNames(m.ID),
		Indications:     joinNames(m.IndicationIDs, snap.IndicationName),
		Precautions:     joinNames(m.PrecautionIDs, snap.PrecautionName),
		MedicalClasses:  joinNames(m.MedicalClassIDs, snap.MedicalClassName),
	}
}

// joinNames resolves ids to names, silently dropping the unknown ones
func joinNames(ids []string, lookup func(string) (string, bool)) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := lookup(id); ok && name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, DisplaySeparator)
}

// detach copies the id slices shared with the snapshot
func detach(m entities.Molecule) entities.Molecule {
	m.IndicationIDs = slices.Clone(m.IndicationIDs)
	m.AllergyIDs = slices.Clone(m.AllergyIDs)
	m.AntecedentIDs = slices.Clone(m.AntecedentIDs)
	m.CurrentMedicationIDs = slices.Clone(m.CurrentMedicationIDs)
	m.MedicalClassIDs = slices.Clone(m.MedicalClassIDs)
	m.PrecautionIDs = slices.Clone(m.PrecautionIDs)
	return m
}
