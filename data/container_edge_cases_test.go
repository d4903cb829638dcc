package data

import (
	"testing"
	"time"

	"github.com/giygas/dynamed-api/catalog"
	"github.com/giygas/dynamed-api/interfaces"
)

func TestDataContainer_ZeroValue(t *testing.T) {
	var container DataContainer

	if container.Snapshot() == nil {
		t.Fatal("Zero value container should return an empty snapshot")
	}
	if !container.GetLastUpdated().IsZero() {
		t.Error("Zero value container should have zero lastUpdated")
	}
	if !container.GetServerStartTime().IsZero() {
		t.Error("Zero value container should have zero server start time")
	}

	snap := container.Replace(catalog.Data{})
	if snap.Version() != 1 {
		t.Errorf("Expected version 1, got %d", snap.Version())
	}
}

func TestDataContainer_GetServerStartTime(t *testing.T) {
	container := NewDataContainer()

	startTime := time.Now().Add(-time.Hour)
	container.SetServerStartTime(startTime)

	if !container.GetServerStartTime().Equal(startTime) {
		t.Errorf("Expected %v, got %v", startTime, container.GetServerStartTime())
	}
}

func TestDataContainer_ReplaceWithEmptyData(t *testing.T) {
	container := NewDataContainer()
	container.Replace(batch("a", 5))

	snap := container.Replace(catalog.Data{})

	if snap.Counts() != (catalog.Counts{}) {
		t.Errorf("Expected empty catalog, got %+v", snap.Counts())
	}
	if _, ok := snap.Molecule("a-0"); ok {
		t.Error("Old molecules should be gone")
	}
}

func TestDataContainer_Report(t *testing.T) {
	container := NewDataContainer()

	report := &interfaces.DataQualityReport{CatalogVersion: 3, UnresolvedCommercialNames: 2}
	container.SetReport(report)

	got := container.GetReport()
	if got == nil {
		t.Fatal("Expected a report")
	}
	if got.CatalogVersion != 3 || got.UnresolvedCommercialNames != 2 {
		t.Errorf("Unexpected report: %+v", got)
	}

	container.SetReport(nil)
	if container.GetReport() != nil {
		t.Error("Report should be cleared")
	}
}

func TestDataContainer_SourceDataIsCopied(t *testing.T) {
	container := NewDataContainer()
	d := batch("a", 1)

	container.Replace(d)
	d.Molecules[0].Name = "mutated"

	m, ok := container.Snapshot().Molecule("a-0")
	if !ok {
		t.Fatal("Molecule should be found")
	}
	if m.Name != "a-0" {
		t.Errorf("Published catalog changed through the source batch: %s", m.Name)
	}
}
