// Package prescription builds the lines of an in-progress prescription from ranked
// molecules. Every addition is screened against the molecules already on the draft.
package prescription

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/giygas/dynamed-api/catalog/entities"
	"github.com/giygas/dynamed-api/interaction"
	"github.com/google/uuid"
)

const (
	DefaultFrequency = "1 fois par jour"
	DefaultDuration  = "7 jours"
)

var (
	ErrInteraction            = errors.New("molecule interacts with the prescription")
	ErrDuplicateMolecule      = errors.New("molecule already on the prescription")
	ErrLineNotFound           = errors.New("prescription line not found")
	ErrCommercialNameMismatch = errors.New("commercial name belongs to another molecule")
)

// InteractionError is returned by Add when the molecule is blocked. It matches ErrInteraction.
type InteractionError struct {
	MoleculeName string
	Conflicts    []interaction.Conflict
}

func (e *InteractionError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s (%s)", c.Selected, c.Interaction.Type))
	}
	return fmt.Sprintf("%s: %s with %s", ErrInteraction, e.MoleculeName, strings.Join(parts, ", "))
}

func (e *InteractionError) Unwrap() error {
	return ErrInteraction
}

// Draft is an ordered list of prescription lines. It is not safe for concurrent use.
type Draft struct {
	lines []entities.PrescriptionLine
}

func NewDraft() *Draft {
	return &Draft{}
}

// Add screens sm against the molecules on the draft and appends a line for it. The line
// uses the first commercial name of sm, if any, and the default posology.
// On error the draft is left untouched.
func (d *Draft) Add(sm entities.ScoredMolecule, table []entities.Interaction) (entities.PrescriptionLine, error) {
	if slices.ContainsFunc(d.lines, func(l entities.PrescriptionLine) bool { return l.MoleculeID == sm.ID }) {
		return entities.PrescriptionLine{}, fmt.Errorf("%w: %s", ErrDuplicateMolecule, sm.Name)
	}

	if conflicts := interaction.Conflicts(sm.Name, d.MoleculeNames(), table); len(conflicts) > 0 {
		return entities.PrescriptionLine{}, &InteractionError{MoleculeName: sm.Name, Conflicts: conflicts}
	}

	line := entities.PrescriptionLine{
		ID:           uuid.NewString(),
		MoleculeID:   sm.ID,
		MoleculeName: sm.Name,
		Frequency:    DefaultFrequency,
		Duration:     DefaultDuration,
	}
	if len(sm.CommercialNames) > 0 {
		applyCommercialName(&line, sm.CommercialNames[0])
	}

	d.lines = append(d.lines, line)
	return line, nil
}

// Remove deletes a line. Its molecule no longer takes part in later screenings.
func (d *Draft) Remove(lineID string) error {
	i := d.index(lineID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, lineID)
	}
	d.lines = slices.Delete(d.lines, i, i+1)
	return nil
}

// SelectCommercialName sets the product of a line and copies its dosage, form and packaging
func (d *Draft) SelectCommercialName(lineID string, cn entities.CommercialName) (entities.PrescriptionLine, error) {
	i := d.index(lineID)
	if i < 0 {
		return entities.PrescriptionLine{}, fmt.Errorf("%w: %s", ErrLineNotFound, lineID)
	}
	if cn.MoleculeID != d.lines[i].MoleculeID {
		return entities.PrescriptionLine{}, fmt.Errorf("%w: %s is not a product of %s",
			ErrCommercialNameMismatch, cn.Name, d.lines[i].MoleculeName)
	}
	applyCommercialName(&d.lines[i], cn)
	return d.lines[i], nil
}

// SetPosology changes frequency and duration of a line. Empty values keep the current ones.
func (d *Draft) SetPosology(lineID, frequency, duration string) (entities.PrescriptionLine, error) {
	i := d.index(lineID)
	if i < 0 {
		return entities.PrescriptionLine{}, fmt.Errorf("%w: %s", ErrLineNotFound, lineID)
	}
	if f := strings.TrimSpace(frequency); f != "" {
		d.lines[i].Frequency = f
	}
	if du := strings.TrimSpace(duration); du != "" {
		d.lines[i].Duration = du
	}
	return d.lines[i], nil
}

// Lines returns a copy of the lines in insertion order
func (d *Draft) Lines() []entities.PrescriptionLine {
	return slices.Clone(d.lines)
}

// MoleculeNames returns the molecule names on the draft, the names the screener compares
func (d *Draft) MoleculeNames() []string {
	names := make([]string, len(d.lines))
	for i, l := range d.lines {
		names[i] = l.MoleculeName
	}
	return names
}

func (d *Draft) index(lineID string) int {
	return slices.IndexFunc(d.lines, func(l entities.PrescriptionLine) bool { return l.ID == lineID })
}

func applyCommercialName(line *entities.PrescriptionLine, cn entities.CommercialName) {
	line.CommercialNameID = cn.ID
	line.CommercialName = cn.Name
	line.Dosage = cn.Dosage
	line.PharmaceuticalForm = cn.PharmaceuticalForm
	line.Packaging = cn.Packaging
}
