// Package validation provides data validation functionality for the dynamed API:
// quality reports over imported catalog batches and checks of client input.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/giygas/dynamed-api/catalog"
	"github.com/giygas/dynamed-api/catalog/entities"
	"github.com/giygas/dynamed-api/interfaces"
	"github.com/giygas/dynamed-api/logging"
)

// DefaultMaxIDsPerField bounds each id list of a consultation context
const DefaultMaxIDsPerField = 200

// maxIDLength bounds any id sent by a client
const maxIDLength = 128

// reportSampleSize bounds the id lists stored in a quality report
const reportSampleSize = 10

var (
	ErrInvalidID          = errors.New("invalid id")
	ErrTooManyIDs         = errors.New("too many ids")
	ErrInvalidPatientType = errors.New("invalid patient type")
)

// Pre-compiled regex patterns, compiled once at package initialization
var (
	// Catalog ids are slugs: letters and digits separated by single hyphens
	idRegex = regexp.MustCompile(`^[\p{L}\p{N}]+(-[\p{L}\p{N}]+)*$`)

	// Drug names: letters in any script, digits, spaces and the punctuation found in DCI names,
	// including combinations (Amoxicilline/Acide clavulanique) and strengths (0,5 %)
	inputRegex = regexp.MustCompile(`^[\p{L}\p{N}\s\-\.\+',()/%]+$`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"eval(", "expression(", "url(", "@import",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"--", "/*", "*/", "exec(",
		// Command injection patterns
		"`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
	}
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct {
	maxIDsPerField int
}

// NewDataValidator creates a new data validator with the default id list limit
func NewDataValidator() interfaces.DataValidator {
	return NewDataValidatorWithLimit(DefaultMaxIDsPerField)
}

// NewDataValidatorWithLimit creates a data validator accepting at most maxIDsPerField ids per list
func NewDataValidatorWithLimit(maxIDsPerField int) interfaces.DataValidator {
	if maxIDsPerField <= 0 {
		maxIDsPerField = DefaultMaxIDsPerField
	}
	return &DataValidatorImpl{maxIDsPerField: maxIDsPerField}
}

// ReportDataQuality lists what is missing or inconsistent in a catalog batch. Nothing in it
// blocks publication: unresolved references simply never match.
func (v *DataValidatorImpl) ReportDataQuality(d catalog.Data) *interfaces.DataQualityReport {
	report := &interfaces.DataQualityReport{
		GeneratedAt:             time.Now(),
		DuplicateMoleculeIDs:    []string{},
		DuplicateDiagnosticIDs:  []string{},
		UnknownInteractionDrugs: []string{},
		UnreachableClasses:      []string{},
	}

	// Check 1: duplicate ids, lookups resolve to the first occurrence
	moleculeIDs := make(map[string]bool, len(d.Molecules))
	moleculeNames := make(map[string]bool, len(d.Molecules))
	for _, m := range d.Molecules {
		if moleculeIDs[m.ID] {
			report.DuplicateMoleculeIDs = append(report.DuplicateMoleculeIDs, m.ID)
		}
		moleculeIDs[m.ID] = true
		moleculeNames[m.Name] = true
	}

	diagnosticIDs := make(map[string]bool, len(d.Diagnostics))
	for _, diag := range d.Diagnostics {
		if diagnosticIDs[diag.ID] {
			report.DuplicateDiagnosticIDs = append(report.DuplicateDiagnosticIDs, diag.ID)
		}
		diagnosticIDs[diag.ID] = true
	}

	// Check 2: references to lookup entries that do not exist
	classes := idsOf(d.MedicalClasses, func(c entities.MedicalClass) string { return c.ID })
	indications := idsOf(d.Indications, func(i entities.Indication) string { return i.ID })
	allergies := idsOf(d.Allergies, func(a entities.Allergy) string { return a.ID })
	precautions := idsOf(d.Precautions, func(p entities.Precaution) string { return p.ID })
	antecedents := idsOf(d.Antecedents, func(a entities.AntecedentMedical) string { return a.ID })
	currentMeds := idsOf(d.CurrentMedications, func(c entities.CurrentMedication) string { return c.ID })

	withCommercialName := make(map[string]bool)
	for _, cn := range d.CommercialNames {
		if cn.MoleculeID == "" || !moleculeIDs[cn.MoleculeID] {
			report.UnresolvedCommercialNames++
			continue
		}
		withCommercialName[cn.MoleculeID] = true
	}

	for _, m := range d.Molecules {
		if len(m.MedicalClassIDs) == 0 {
			report.MoleculesWithoutClasses++
		}
		if len(m.IndicationIDs) == 0 {
			report.MoleculesWithoutIndications++
		}
		if !withCommercialName[m.ID] {
			report.MoleculesWithoutCommercialNames++
		}
		report.DanglingReferences += countMissing(m.MedicalClassIDs, classes) +
			countMissing(m.IndicationIDs, indications) +
			countMissing(m.AllergyIDs, allergies) +
			countMissing(m.PrecautionIDs, precautions) +
			countMissing(m.AntecedentIDs, antecedents) +
			countMissing(m.CurrentMedicationIDs, currentMeds)
	}

	// Check 3: classes no diagnostic leads to, their molecules are never recommended
	reachable := make(map[string]bool)
	for _, diag := range d.Diagnostics {
		if len(diag.MedicalClassIDs) == 0 {
			report.DiagnosticsWithoutClasses++
		}
		report.DanglingReferences += countMissing(diag.MedicalClassIDs, classes)
		for _, id := range diag.MedicalClassIDs {
			reachable[id] = true
		}
	}
	for _, c := range d.MedicalClasses {
		if !reachable[c.ID] && len(report.UnreachableClasses) < reportSampleSize {
			report.UnreachableClasses = append(report.UnreachableClasses, c.ID)
		}
	}

	// Check 4: interaction drugs are matched by name, report the names no molecule carries
	seen := make(map[string]bool)
	for _, in := range d.Interactions {
		for _, name := range append([]string{in.FirstDrug}, in.SecondDrugs...) {
			if moleculeNames[name] || seen[name] {
				continue
			}
			seen[name] = true
			if len(report.UnknownInteractionDrugs) < reportSampleSize {
				report.UnknownInteractionDrugs = append(report.UnknownInteractionDrugs, name)
			}
		}
	}

	if len(report.DuplicateMoleculeIDs) > 0 || len(report.DuplicateDiagnosticIDs) > 0 {
		logging.Warn("Duplicate catalog ids detected",
			"molecules", report.DuplicateMoleculeIDs,
			"diagnostics", report.DuplicateDiagnosticIDs,
		)
	}

	return report
}

func idsOf[T any](items []T, id func(T) string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[id(item)] = true
	}
	return set
}

func countMissing(ids []string, known map[string]bool) int {
	n := 0
	for _, id := range ids {
		if !known[id] {
			n++
		}
	}
	return n
}

// ValidateInput validates a drug name sent by a client
func (v *DataValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if utf8.RuneCountInString(input) < 2 {
		return fmt.Errorf("input too short: minimum 2 characters")
	}

	if len(input) > 150 {
		return fmt.Errorf("input too long: maximum 150 characters")
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters. Only letters, numbers, spaces and the punctuation - ' . , ( ) + / % are allowed")
	}

	if v.hasExcessiveRepetition(input) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateID validates a catalog id
func (v *DataValidatorImpl) ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidID, maxIDLength)
	}
	if !idRegex.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// ValidateConsultation checks the patient type and bounds every id list of ctx.
// Unknown ids are valid: they never match anything.
func (v *DataValidatorImpl) ValidateConsultation(ctx entities.ConsultationContext) error {
	switch ctx.PatientType {
	case "", entities.PatientAdult, entities.PatientChild:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPatientType, ctx.PatientType)
	}

	fields := []struct {
		name string
		ids  []string
	}{
		{"diagnosticIds", ctx.DiagnosticIDs},
		{"indicationIds", ctx.IndicationIDs},
		{"allergyIds", ctx.AllergyIDs},
		{"antecedentIds", ctx.AntecedentIDs},
		{"currentMedicationIds", ctx.CurrentMedicationIDs},
		{"precautionIds", ctx.PrecautionIDs},
	}
	for _, f := range fields {
		if len(f.ids) > v.maxIDsPerField {
			return fmt.Errorf("%w: %s has %d entries, maximum %d", ErrTooManyIDs, f.name, len(f.ids), v.maxIDsPerField)
		}
		// context ids are opaque tokens: any spelling is accepted and simply never matches
		for _, id := range f.ids {
			if len(id) > maxIDLength || strings.IndexFunc(id, unicode.IsControl) >= 0 {
				return fmt.Errorf("%s: %w: %q", f.name, ErrInvalidID, truncate(id))
			}
		}
	}
	return nil
}

func truncate(id string) string {
	if len(id) <= 32 {
		return id
	}
	return id[:32] + "..."
}

// ValidateIDs checks the size of an id list and each of its ids
func (v *DataValidatorImpl) ValidateIDs(field string, ids []string) error {
	if len(ids) > v.maxIDsPerField {
		return fmt.Errorf("%w: %s has %d entries, maximum %d", ErrTooManyIDs, field, len(ids), v.maxIDsPerField)
	}
	for _, id := range ids {
		if err := v.ValidateID(id); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	return nil
}

// hasExcessiveRepetition checks for potential DoS patterns with excessive character repetition
func (v *DataValidatorImpl) hasExcessiveRepetition(input string) bool {
	// Check for the same character repeated more than 10 times consecutively
	for i := 0; i < len(input)-10; i++ {
		allSame := true
		for j := 1; j <= 10; j++ {
			if input[i] != input[i+j] {
				allSame = false
				break
			}
		}
		if allSame {
			return true
		}
	}
	return false
}
