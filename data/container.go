// Package data provides thread-safe storage of the reference catalog.
// The DataContainer publishes whole snapshots with a single atomic store, so readers
// always see a complete catalog and updates cause no downtime.
package data

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/giygas/dynamed-api/catalog"
	"github.com/giygas/dynamed-api/interfaces"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// DataContainer holds the current catalog snapshot and the state of its updates
type DataContainer struct {
	snapshot        atomic.Pointer[catalog.Snapshot]
	report          atomic.Pointer[interfaces.DataQualityReport]
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time

	// publishMu orders publications so versions are strictly increasing
	publishMu sync.Mutex
}

// NewDataContainer creates a new DataContainer holding the empty catalog
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.snapshot.Store(catalog.Empty())
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// Snapshot returns the current catalog
func (dc *DataContainer) Snapshot() *catalog.Snapshot {
	if s := dc.snapshot.Load(); s != nil {
		return s
	}
	return catalog.Empty()
}

// Replace publishes d as the next catalog version
func (dc *DataContainer) Replace(d catalog.Data) *catalog.Snapshot {
	dc.publishMu.Lock()
	defer dc.publishMu.Unlock()

	next := dc.Snapshot().Replace(d)
	dc.publish(next)
	return next
}

// Append publishes the current catalog followed by batch as the next version
func (dc *DataContainer) Append(batch catalog.Data) *catalog.Snapshot {
	dc.publishMu.Lock()
	defer dc.publishMu.Unlock()

	next := dc.Snapshot().With(batch)
	dc.publish(next)
	return next
}

func (dc *DataContainer) publish(next *catalog.Snapshot) {
	// Atomic swap (zero downtime replacement)
	dc.snapshot.Store(next)
	dc.lastUpdated.Store(time.Now())
}

// GetReport returns the data quality report of the last import, nil before the first one
func (dc *DataContainer) GetReport() *interfaces.DataQualityReport {
	return dc.report.Load()
}

func (dc *DataContainer) SetReport(report *interfaces.DataQualityReport) {
	dc.report.Store(report)
}

// GetLastUpdated returns the timestamp of the last publication
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v, ok := dc.lastUpdated.Load().(time.Time); ok {
		return v
	}
	return time.Time{}
}

// IsUpdating returns true if a catalog update is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v, ok := dc.serverStartTime.Load().(time.Time); ok {
		return v
	}
	return time.Time{}
}

// BeginUpdate marks the start of a catalog update.
// Returns true if update can proceed, false if another update is in progress
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a catalog update
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
