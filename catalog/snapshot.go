// Package catalog holds the reference data read by the recommendation engine and the
// interaction screener. The data is published as immutable, versioned snapshots: an
// update never touches a published snapshot, it builds the next one.
package catalog

import (
	"iter"
	"slices"
	"time"

	"github.com/giygas/dynamed-api/catalog/entities"
)

// Data is a complete batch of reference entities, in catalog order
type Data struct {
	Molecules          []entities.Molecule          `json:"molecules"`
	Diagnostics        []entities.Diagnostic        `json:"diagnostics"`
	MedicalClasses     []entities.MedicalClass      `json:"medicalClasses"`
	Indications        []entities.Indication        `json:"indications"`
	Allergies          []entities.Allergy           `json:"allergies"`
	Precautions        []entities.Precaution        `json:"precautions"`
	Antecedents        []entities.AntecedentMedical `json:"antecedents"`
	CurrentMedications []entities.CurrentMedication `json:"currentMedications"`
	CommercialNames    []entities.CommercialName    `json:"commercialNames"`
	Interactions       []entities.Interaction       `json:"interactions"`
}

// Counts is the number of entities of each kind in a batch or snapshot
type Counts struct {
	Molecules          int `json:"molecules"`
	Diagnostics        int `json:"diagnostics"`
	MedicalClasses     int `json:"medicalClasses"`
	Indications        int `json:"indications"`
	Allergies          int `json:"allergies"`
	Precautions        int `json:"precautions"`
	Antecedents        int `json:"antecedents"`
	CurrentMedications int `json:"currentMedications"`
	CommercialNames    int `json:"commercialNames"`
	Interactions       int `json:"interactions"`
}

// Counts returns the size of every list of the batch
func (d Data) Counts() Counts {
	return Counts{
		Molecules:          len(d.Molecules),
		Diagnostics:        len(d.Diagnostics),
		MedicalClasses:     len(d.MedicalClasses),
		Indications:        len(d.Indications),
		Allergies:          len(d.Allergies),
		Precautions:        len(d.Precautions),
		Antecedents:        len(d.Antecedents),
		CurrentMedications: len(d.CurrentMedications),
		CommercialNames:    len(d.CommercialNames),
		Interactions:       len(d.Interactions),
	}
}

// Snapshot is a read-only view of the catalog. All lookups return an explicit found flag;
// an id that is not in the catalog simply contributes nothing.
//
// A Snapshot is safe for concurrent use. Values yielded by the iterators share their
// id slices with the snapshot and must not be modified.
type Snapshot struct {
	version   uint64
	createdAt time.Time
	data      Data

	moleculesByID   map[string]int
	diagnosticsByID map[string]int
	commercialByID  map[string]int
	commercialByMol map[string][]int

	medicalClasses     map[string]string
	indications        map[string]string
	allergies          map[string]string
	precautions        map[string]string
	antecedents        map[string]string
	currentMedications map[string]string
}

// Empty returns the version 0 snapshot with no data
func Empty() *Snapshot {
	return NewSnapshot(0, Data{})
}

// NewSnapshot builds a snapshot from a deep copy of d, so later changes to d are not visible.
// When an id appears twice, lookups resolve to the first occurrence.
func NewSnapshot(version uint64, d Data) *Snapshot {
	s := &Snapshot{
		version:   version,
		createdAt: time.Now(),
		data:      cloneData(d),
	}
	s.index()
	return s
}

func (s *Snapshot) index() {
	s.moleculesByID = make(map[string]int, len(s.data.Molecules))
	for i, m := range s.data.Molecules {
		if _, exists := s.moleculesByID[m.ID]; !exists {
			s.moleculesByID[m.ID] = i
		}
	}

	s.diagnosticsByID = make(map[string]int, len(s.data.Diagnostics))
	for i, d := range s.data.Diagnostics {
		if _, exists := s.diagnosticsByID[d.ID]; !exists {
			s.diagnosticsByID[d.ID] = i
		}
	}

	s.commercialByID = make(map[string]int, len(s.data.CommercialNames))
	s.commercialByMol = make(map[string][]int)
	for i, cn := range s.data.CommercialNames {
		if _, exists := s.commercialByID[cn.ID]; !exists {
			s.commercialByID[cn.ID] = i
		}
		if cn.MoleculeID != "" {
			s.commercialByMol[cn.MoleculeID] = append(s.commercialByMol[cn.MoleculeID], i)
		}
	}

	s.medicalClasses = namesByID(s.data.MedicalClasses, func(c entities.MedicalClass) (string, string) { return c.ID, c.Name })
	s.indications = namesByID(s.data.Indications, func(i entities.Indication) (string, string) { return i.ID, i.Name })
	s.allergies = namesByID(s.data.Allergies, func(a entities.Allergy) (string, string) { return a.ID, a.Name })
	s.precautions = namesByID(s.data.Precautions, func(p entities.Precaution) (string, string) { return p.ID, p.Name })
	s.antecedents = namesByID(s.data.Antecedents, func(a entities.AntecedentMedical) (string, string) { return a.ID, a.Name })
	s.currentMedications = namesByID(s.data.CurrentMedications, func(c entities.CurrentMedication) (string, string) { return c.ID, c.Name })
}

func namesByID[T any](items []T, key func(T) (string, string)) map[string]string {
	m := make(map[string]string, len(items))
	for _, item := range items {
		id, name := key(item)
		if _, exists := m[id]; !exists {
			m[id] = name
		}
	}
	return m
}

// Version returns the snapshot version, incremented on every publication
func (s *Snapshot) Version() uint64 {
	return s.version
}

// CreatedAt returns the time the snapshot was built
func (s *Snapshot) CreatedAt() time.Time {
	return s.createdAt
}

// Counts returns the number of entities of each kind
func (s *Snapshot) Counts() Counts {
	return s.data.Counts()
}

// Data returns a deep copy of the whole batch behind the snapshot
func (s *Snapshot) Data() Data {
	return cloneData(s.data)
}

// With returns the next snapshot: the current data followed by batch.
// The receiver is left untouched.
func (s *Snapshot) With(batch Data) *Snapshot {
	merged := cloneData(s.data)
	merged.Molecules = append(merged.Molecules, batch.Molecules...)
	merged.Diagnostics = append(merged.Diagnostics, batch.Diagnostics...)
	merged.MedicalClasses = append(merged.MedicalClasses, batch.MedicalClasses...)
	merged.Indications = append(merged.Indications, batch.Indications...)
	merged.Allergies = append(merged.Allergies, batch.Allergies...)
	merged.Precautions = append(merged.Precautions, batch.Precautions...)
	merged.Antecedents = append(merged.Antecedents, batch.Antecedents...)
	merged.CurrentMedications = append(merged.CurrentMedications, batch.CurrentMedications...)
	merged.CommercialNames = append(merged.CommercialNames, batch.CommercialNames...)
	merged.Interactions = append(merged.Interactions, batch.Interactions...)
	return NewSnapshot(s.version+1, merged)
}

// Replace returns the next snapshot holding only d
func (s *Snapshot) Replace(d Data) *Snapshot {
	return NewSnapshot(s.version+1, d)
}

// Molecules yields the molecules in catalog order. A molecule whose id was already
// yielded is skipped, so every id is seen once.
func (s *Snapshot) Molecules() iter.Seq[entities.Molecule] {
	return func(yield func(entities.Molecule) bool) {
		for i, m := range s.data.Molecules {
			if s.moleculesByID[m.ID] != i {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

// MoleculesPage returns a copy of at most limit molecules starting at offset
func (s *Snapshot) MoleculesPage(offset, limit int) []entities.Molecule {
	if offset < 0 || limit <= 0 || offset >= len(s.data.Molecules) {
		return []entities.Molecule{}
	}
	end := min(offset+limit, len(s.data.Molecules))
	page := make([]entities.Molecule, 0, end-offset)
	for _, m := range s.data.Molecules[offset:end] {
		page = append(page, cloneMolecule(m))
	}
	return page
}

// Molecule looks a molecule up by id
func (s *Snapshot) Molecule(id string) (entities.Molecule, bool) {
	i, ok := s.moleculesByID[id]
	if !ok {
		return entities.Molecule{}, false
	}
	return cloneMolecule(s.data.Molecules[i]), true
}

// Diagnostic looks a diagnostic up by id
func (s *Snapshot) Diagnostic(id string) (entities.Diagnostic, bool) {
	i, ok := s.diagnosticsByID[id]
	if !ok {
		return entities.Diagnostic{}, false
	}
	d := s.data.Diagnostics[i]
	d.MedicalClassIDs = slices.Clone(d.MedicalClassIDs)
	return d, true
}

// Diagnostics returns a copy of the diagnostics in catalog order
func (s *Snapshot) Diagnostics() []entities.Diagnostic {
	out := make([]entities.Diagnostic, len(s.data.Diagnostics))
	for i, d := range s.data.Diagnostics {
		d.MedicalClassIDs = slices.Clone(d.MedicalClassIDs)
		out[i] = d
	}
	return out
}

// CommercialNames returns the commercial names resolved to moleculeID, in catalog order
func (s *Snapshot) CommercialNames(moleculeID string) []entities.CommercialName {
	idx := s.commercialByMol[moleculeID]
	out := make([]entities.CommercialName, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.data.CommercialNames[i])
	}
	return out
}

// CommercialName looks a commercial name up by id
func (s *Snapshot) CommercialName(id string) (entities.CommercialName, bool) {
	i, ok := s.commercialByID[id]
	if !ok {
		return entities.CommercialName{}, false
	}
	return s.data.CommercialNames[i], true
}

// Interactions returns a copy of the interaction table
func (s *Snapshot) Interactions() []entities.Interaction {
	out := make([]entities.Interaction, len(s.data.Interactions))
	for i, in := range s.data.Interactions {
		in.SecondDrugs = slices.Clone(in.SecondDrugs)
		out[i] = in
	}
	return out
}

// MedicalClasses returns a copy of the medical classes in catalog order
func (s *Snapshot) MedicalClasses() []entities.MedicalClass {
	return cloneList(s.data.MedicalClasses)
}

func (s *Snapshot) Indications() []entities.Indication {
	return cloneList(s.data.Indications)
}

func (s *Snapshot) Allergies() []entities.Allergy {
	return cloneList(s.data.Allergies)
}

func (s *Snapshot) Precautions() []entities.Precaution {
	return cloneList(s.data.Precautions)
}

func (s *Snapshot) Antecedents() []entities.AntecedentMedical {
	return cloneList(s.data.Antecedents)
}

func (s *Snapshot) CurrentMedications() []entities.CurrentMedication {
	return cloneList(s.data.CurrentMedications)
}

func (s *Snapshot) MedicalClassName(id string) (string, bool) {
	name, ok := s.medicalClasses[id]
	return name, ok
}

func (s *Snapshot) IndicationName(id string) (string, bool) {
	name, ok := s.indications[id]
	return name, ok
}

func (s *Snapshot) AllergyName(id string) (string, bool) {
	name, ok := s.allergies[id]
	return name, ok
}

func (s *Snapshot) PrecautionName(id string) (string, bool) {
	name, ok := s.precautions[id]
	return name, ok
}

func (s *Snapshot) AntecedentName(id string) (string, bool) {
	name, ok := s.antecedents[id]
	return name, ok
}

func (s *Snapshot) CurrentMedicationName(id string) (string, bool) {
	name, ok := s.currentMedications[id]
	return name, ok
}

// cloneList copies a lookup list, never returning nil
func cloneList[T any](items []T) []T {
	return append(make([]T, 0, len(items)), items...)
}

func cloneMolecule(m entities.Molecule) entities.Molecule {
	m.IndicationIDs = slices.Clone(m.IndicationIDs)
	m.AllergyIDs = slices.Clone(m.AllergyIDs)
	m.AntecedentIDs = slices.Clone(m.AntecedentIDs)
	m.CurrentMedicationIDs = slices.Clone(m.CurrentMedicationIDs)
	m.MedicalClassIDs = slices.Clone(m.MedicalClassIDs)
	m.PrecautionIDs = slices.Clone(m.PrecautionIDs)
	return m
}

func cloneData(d Data) Data {
	out := Data{
		Molecules:          make([]entities.Molecule, len(d.Molecules)),
		Diagnostics:        make([]entities.Diagnostic, len(d.Diagnostics)),
		MedicalClasses:     slices.Clone(d.MedicalClasses),
		Indications:        slices.Clone(d.Indications),
		Allergies:          slices.Clone(d.Allergies),
		Precautions:        slices.Clone(d.Precautions),
		Antecedents:        slices.Clone(d.Antecedents),
		CurrentMedications: slices.Clone(d.CurrentMedications),
		CommercialNames:    slices.Clone(d.CommercialNames),
		Interactions:       make([]entities.Interaction, len(d.Interactions)),
	}
	for i, m := range d.Molecules {
		out.Molecules[i] = cloneMolecule(m)
	}
	for i, diag := range d.Diagnostics {
		diag.MedicalClassIDs = slices.Clone(diag.MedicalClassIDs)
		out.Diagnostics[i] = diag
	}
	for i, in := range d.Interactions {
		in.SecondDrugs = slices.Clone(in.SecondDrugs)
		out.Interactions[i] = in
	}
	return out
}
