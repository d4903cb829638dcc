// Package interfaces defines core abstractions for the dynamed API
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/dynamed-api/catalog"
	"github.com/giygas/dynamed-api/catalog/entities"
)

// DataQualityReport provides a summary of data quality issues in a catalog batch
type DataQualityReport struct {
	CatalogVersion uint64    `json:"catalogVersion"`
	GeneratedAt    time.Time `json:"generatedAt"`

	DuplicateMoleculeIDs   []string `json:"duplicateMoleculeIds"`
	DuplicateDiagnosticIDs []string `json:"duplicateDiagnosticIds"`

	MoleculesWithoutClasses         int `json:"moleculesWithoutClasses"`
	MoleculesWithoutIndications     int `json:"moleculesWithoutIndications"`
	MoleculesWithoutCommercialNames int `json:"moleculesWithoutCommercialNames"`
	DiagnosticsWithoutClasses       int `json:"diagnosticsWithoutClasses"`
	UnresolvedCommercialNames       int `json:"unresolvedCommercialNames"`

	// DanglingReferences counts ids used by molecules or diagnostics that have no lookup entry
	DanglingReferences int `json:"danglingReferences"`
	// UnknownInteractionDrugs lists interaction drug names that match no molecule name
	UnknownInteractionDrugs []string `json:"unknownInteractionDrugs"`
	// UnreachableClasses lists medical classes no diagnostic resolves to
	UnreachableClasses []string `json:"unreachableClasses"`
}

// FileStats counts what happened to the rows of one dataset file
type FileStats struct {
	File       string `json:"file"`
	Missing    bool   `json:"missing"`
	Downloaded bool   `json:"downloaded"`
	Rows       int    `json:"rows"`
	Imported   int    `json:"imported"`
	Skipped    int    `json:"skipped"`
	Unresolved int    `json:"unresolved"`
	// Duplicates counts rows dropped because an earlier row has the same id
	Duplicates int `json:"duplicates"`
}

// ImportStats summarises a catalog load
type ImportStats struct {
	Files    []FileStats   `json:"files"`
	Duration time.Duration `json:"duration"`
}

// DataStore defines the contract for catalog storage.
// It publishes whole snapshots atomically for zero-downtime updates.
type DataStore interface {
	// Snapshot returns the current catalog, never nil
	Snapshot() *catalog.Snapshot
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time
	GetReport() *DataQualityReport

	// Replace publishes d as the next catalog version
	Replace(d catalog.Data) *catalog.Snapshot
	// Append publishes the current catalog followed by batch as the next version
	Append(batch catalog.Data) *catalog.Snapshot
	SetReport(report *DataQualityReport)
	BeginUpdate() bool
	EndUpdate()
}

// CatalogLoader defines the contract for reading the reference datasets
type CatalogLoader interface {
	Load(ctx context.Context) (catalog.Data, ImportStats, error)
}

// Scheduler defines the contract for job scheduling.
// It manages automated catalog reloads.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	// HealthCheck returns the status, the details to render and the HTTP status code
	HealthCheck() (status string, data map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled catalog reload
	CalculateNextUpdate() time.Time
}

// DataValidator defines the contract for data validation operations.
type DataValidator interface {
	// ReportDataQuality generates a data quality report with all issues found
	ReportDataQuality(d catalog.Data) *DataQualityReport

	// ValidateInput validates user input strings
	ValidateInput(input string) error

	// ValidateID validates a catalog id
	ValidateID(id string) error

	// ValidateIDs validates the size of an id list and each of its ids
	ValidateIDs(field string, ids []string) error

	// ValidateConsultation validates every id list of a consultation context
	ValidateConsultation(ctx entities.ConsultationContext) error
}

// HTTPHandler defines the contract for the HTTP endpoints of the API
type HTTPHandler interface {
	ServeRecommendations(w http.ResponseWriter, r *http.Request)
	ServeRecommendationExplain(w http.ResponseWriter, r *http.Request)
	CheckInteractions(w http.ResponseWriter, r *http.Request)
	AddPrescriptionLine(w http.ResponseWriter, r *http.Request)

	ServeMolecules(w http.ResponseWriter, r *http.Request)
	ServeMoleculeByID(w http.ResponseWriter, r *http.Request)
	ServeDiagnostics(w http.ResponseWriter, r *http.Request)
	ServeInteractions(w http.ResponseWriter, r *http.Request)
	ServeReport(w http.ResponseWriter, r *http.Request)

	// Lookup lists a consultation context picks its ids from
	ServeMedicalClasses(w http.ResponseWriter, r *http.Request)
	ServeIndications(w http.ResponseWriter, r *http.Request)
	ServeAllergies(w http.ResponseWriter, r *http.Request)
	ServeAntecedents(w http.ResponseWriter, r *http.Request)
	ServeCurrentMedications(w http.ResponseWriter, r *http.Request)
	ServePrecautions(w http.ResponseWriter, r *http.Request)

	HealthCheck(w http.ResponseWriter, r *http.Request)
}
