// Package importer builds the reference catalog from the CSV datasets of the data directory,
// optionally refreshing them from a remote location first.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/giygas/dynamed-api/catalog"
	"github.com/giygas/dynamed-api/interfaces"
	"github.com/giygas/dynamed-api/logging"
	"github.com/sony/gobreaker"
)

// Compile-time check to ensure Importer implements CatalogLoader interface
var _ interfaces.CatalogLoader = (*Importer)(nil)

const (
	MoleculesFile       = "molecules.csv"
	DiagnosticsFile     = "diagnostics.csv"
	CommercialNamesFile = "commercial_names.csv"
	InteractionsFile    = "interactions.csv"
	PrecautionsFile     = "precautions.csv"
)

// Files lists the datasets in import order
var Files = []string{MoleculesFile, DiagnosticsFile, CommercialNamesFile, InteractionsFile, PrecautionsFile}

var requiredColumns = map[string][]string{
	MoleculesFile:       {colMoleculeName},
	DiagnosticsFile:     {colDiagnostic, colMedicalClass},
	CommercialNamesFile: {colDCI, colCommercialName},
	InteractionsFile:    {colFirstDrug, colPartners, colInteractionType},
	PrecautionsFile:     nil,
}

// Options configures an Importer
type Options struct {
	// DataDir holds the datasets
	DataDir string
	// BaseURL, when set, is where the datasets are downloaded from before each load
	BaseURL string
	// HTTPClient defaults to a client with a 2 minute timeout
	HTTPClient *http.Client
	// FailureThreshold is the number of consecutive download failures that opens the breaker
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open
	OpenTimeout time.Duration
}

// Importer loads the catalog datasets. It is safe for concurrent use.
type Importer struct {
	dataDir string
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func New(opts Options) *Importer {
	if opts.DataDir == "" {
		opts.DataDir = "files"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout == 0 {
		opts.OpenTimeout = 60 * time.Second
	}

	threshold := opts.FailureThreshold
	return &Importer{
		dataDir: opts.DataDir,
		baseURL: opts.BaseURL,
		client:  opts.HTTPClient,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "catalog-download",
			MaxRequests: 1,
			Timeout:     opts.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logging.Warn("Circuit breaker state changed", "circuit_breaker", name, "from_state", from.String(), "to_state", to.String())
			},
		}),
	}
}

// Load reads every dataset and returns the resolved batch. Missing files give empty lists;
// a file that exists but cannot be parsed fails the whole load.
func (im *Importer) Load(ctx context.Context) (catalog.Data, interfaces.ImportStats, error) {
	start := time.Now()

	downloaded := map[string]bool{}
	if im.baseURL != "" {
		downloaded = im.downloadAll(ctx)
	}

	stats := make(map[string]*interfaces.FileStats, len(Files))
	for _, f := range Files {
		stats[f] = &interfaces.FileStats{File: f, Downloaded: downloaded[f]}
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		errs   []error
		parsed = make(map[string]*table, len(Files))
	)
	for _, f := range Files {
		wg.Go(func() {
			t, err := readTableFile(filepath.Join(im.dataDir, f), requiredColumns[f]...)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, fs.ErrNotExist):
				stats[f].Missing = true
			case err != nil:
				errs = append(errs, fmt.Errorf("%s: %w", f, err))
			default:
				parsed[f] = t
			}
		})
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return catalog.Data{}, interfaces.ImportStats{}, err
	}
	if len(errs) > 0 {
		return catalog.Data{}, interfaces.ImportStats{}, fmt.Errorf("failed to parse datasets: %w", errors.Join(errs...))
	}

	for _, f := range Files {
		if stats[f].Missing {
			logging.Warn("Dataset not found, importing it as empty", "file", f, "dir", im.dataDir)
		}
	}

	d := assemble(tables{
		molecules:       parsed[MoleculesFile],
		diagnostics:     parsed[DiagnosticsFile],
		commercialNames: parsed[CommercialNamesFile],
		interactions:    parsed[InteractionsFile],
		precautions:     parsed[PrecautionsFile],
	}, stats)

	result := interfaces.ImportStats{Duration: time.Since(start)}
	for _, f := range Files {
		s := *stats[f]
		if s.Skipped > 0 || s.Unresolved > 0 || s.Duplicates > 0 {
			logging.Info(f+" skip statistics",
				"total_rows", s.Rows,
				"records_parsed", s.Imported,
				"skipped", s.Skipped,
				"unresolved", s.Unresolved,
				"duplicates", s.Duplicates)
		}
		result.Files = append(result.Files, s)
	}

	logging.Info("Catalog datasets imported",
		"molecules", len(d.Molecules),
		"diagnostics", len(d.Diagnostics),
		"commercial_names", len(d.CommercialNames),
		"interactions", len(d.Interactions),
		"duration", result.Duration)
	return d, result, nil
}
