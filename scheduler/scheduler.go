// Package scheduler reloads the reference catalog on a daily schedule and watches
// for a catalog that stopped being refreshed.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/giygas/dynamed-api/interfaces"
	"github.com/giygas/dynamed-api/logging"
	"github.com/giygas/dynamed-api/metrics"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// ErrEmptyCatalog is returned when a reload yields no molecule while a populated catalog is published
var ErrEmptyCatalog = errors.New("loaded catalog has no molecules")

const (
	defaultStaleAfter      = 25 * time.Hour
	defaultMonitorInterval = time.Hour
)

// Scheduler runs catalog reloads at fixed times of day
type Scheduler struct {
	dataStore    interfaces.DataStore
	loader       interfaces.CatalogLoader
	validator    interfaces.DataValidator
	refreshTimes []string
	scheduler    *gocron.Scheduler

	staleAfter      time.Duration
	monitorInterval time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	monitor  sync.WaitGroup
	stopOnce sync.Once
}

// NewScheduler creates a scheduler reloading the catalog at each "HH:MM" of refreshTimes
func NewScheduler(dataStore interfaces.DataStore, loader interfaces.CatalogLoader, validator interfaces.DataValidator, refreshTimes []string) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		dataStore:       dataStore,
		loader:          loader,
		validator:       validator,
		refreshTimes:    refreshTimes,
		scheduler:       gocron.NewScheduler(time.Local),
		staleAfter:      defaultStaleAfter,
		monitorInterval: defaultMonitorInterval,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Start loads the catalog once, then schedules the daily reloads and the staleness monitor
func (s *Scheduler) Start() error {
	if err := s.Reload(s.ctx); err != nil {
		logging.Error("Failed to perform initial catalog load", "error", err)
		return fmt.Errorf("initial catalog load failed: %w", err)
	}

	_, err := s.scheduler.Every(1).Days().At(strings.Join(s.refreshTimes, ";")).Do(func() {
		if err := s.Reload(s.ctx); err != nil {
			logging.Error("Failed to reload catalog", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule catalog reloads", "error", err, "times", s.refreshTimes)
		return fmt.Errorf("failed to schedule catalog reloads: %w", err)
	}

	s.scheduler.StartAsync()
	logging.Info("Catalog reloads scheduled", "times", s.refreshTimes)

	s.startHealthMonitoring()
	return nil
}

// Stop cancels a running reload and stops scheduling new ones
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.scheduler.Stop()
		s.monitor.Wait()
	})
}

// NextRun returns the next scheduled reload, zero before Start
func (s *Scheduler) NextRun() time.Time {
	_, next := s.scheduler.NextRun()
	if next.IsZero() {
		return time.Time{}
	}
	return next
}

// Reload imports the catalog and publishes it as the next snapshot together with its
// quality report. It does nothing while another reload runs.
func (s *Scheduler) Reload(ctx context.Context) error {
	if !s.dataStore.BeginUpdate() {
		logging.Info("Catalog update already in progress, skipping")
		return nil
	}
	defer s.dataStore.EndUpdate()

	logging.Info("Starting catalog update")
	start := time.Now()

	d, stats, err := s.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	current := s.dataStore.Snapshot()
	if len(d.Molecules) == 0 && current.Counts().Molecules > 0 {
		logging.Warn("Keeping the published catalog, the new one is empty",
			"version", current.Version(),
			"files", len(stats.Files),
		)
		return ErrEmptyCatalog
	}

	report := s.validator.ReportDataQuality(d)
	logReport(report)

	snap := s.dataStore.Replace(d)
	report.CatalogVersion = snap.Version()
	s.dataStore.SetReport(report)

	elapsed := time.Since(start)
	metrics.ObserveCatalog(snap, elapsed)

	counts := snap.Counts()
	logging.Info("Catalog update completed",
		"version", snap.Version(),
		"duration", elapsed.String(),
		"molecules", counts.Molecules,
		"diagnostics", counts.Diagnostics,
		"commercial_names", counts.CommercialNames,
		"interactions", counts.Interactions,
	)
	return nil
}

func logReport(report *interfaces.DataQualityReport) {
	if report.UnresolvedCommercialNames > 0 {
		logging.Warn("Commercial names without a known molecule", "count", report.UnresolvedCommercialNames)
	}
	if report.DanglingReferences > 0 {
		logging.Warn("Catalog ids without a lookup entry", "count", report.DanglingReferences)
	}
	if len(report.UnknownInteractionDrugs) > 0 {
		logging.Warn("Interaction drugs matching no molecule name", "sample", report.UnknownInteractionDrugs)
	}
	if len(report.UnreachableClasses) > 0 {
		logging.Info("Medical classes no diagnostic leads to", "sample", report.UnreachableClasses)
	}
}

// startHealthMonitoring warns when the catalog has not been refreshed for too long
func (s *Scheduler) startHealthMonitoring() {
	s.monitor.Go(func() {
		ticker := time.NewTicker(s.monitorInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case now := <-ticker.C:
				if s.isStale(now) {
					logging.Warn("Catalog hasn't been updated recently",
						"last_update", s.dataStore.GetLastUpdated().Format(time.RFC3339),
						"threshold", s.staleAfter.String(),
					)
				}
			}
		}
	})
}

func (s *Scheduler) isStale(now time.Time) bool {
	return now.Sub(s.dataStore.GetLastUpdated()) > s.staleAfter
}
