// Package health provides health checking functionality for the dynamed API.
package health

import (
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/giygas/dynamed-api/interfaces"
)

// DefaultRefreshTimes are the daily catalog reloads used when none are configured
var DefaultRefreshTimes = []string{"06:00", "18:00"}

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore    interfaces.DataStore
	refreshTimes []time.Duration // offsets from midnight, sorted
	now          func() time.Time
}

// NewHealthChecker creates a health checker reporting on dataStore. refreshTimes are the
// "HH:MM" reload times of the scheduler; invalid entries are ignored.
func NewHealthChecker(dataStore interfaces.DataStore, refreshTimes []string) interfaces.HealthChecker {
	offsets := parseOffsets(refreshTimes)
	if len(offsets) == 0 {
		offsets = parseOffsets(DefaultRefreshTimes)
	}
	return &HealthCheckerImpl{
		dataStore:    dataStore,
		refreshTimes: offsets,
		now:          time.Now,
	}
}

func parseOffsets(times []string) []time.Duration {
	var offsets []time.Duration
	for _, s := range times {
		t, err := time.Parse("15:04", s)
		if err != nil {
			continue
		}
		offsets = append(offsets, time.Duration(t.Hour())*time.Hour+time.Duration(t.Minute())*time.Minute)
	}
	slices.Sort(offsets)
	return slices.Compact(offsets)
}

// HealthCheck returns the catalog health with the HTTP status the /health endpoint answers
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	snap := h.dataStore.Snapshot()
	counts := snap.Counts()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()

	dataAge := h.now().Sub(lastUpdate)

	switch {
	case counts.Molecules == 0 || lastUpdate.IsZero():
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 48*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 24*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case isUpdating && dataAge > 6*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"catalogVersion": snap.Version(),
		"counts":         counts,
		"isUpdating":     isUpdating,
		"nextUpdate":     h.CalculateNextUpdate().Format(time.RFC3339),
	}
	if !lastUpdate.IsZero() {
		data["lastUpdate"] = lastUpdate.Format(time.RFC3339)
		data["dataAgeHours"] = math.Round(dataAge.Hours()*10) / 10
	}
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		data["uptimeSeconds"] = int64(h.now().Sub(start).Seconds())
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the first configured reload time strictly after now
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	return nextUpdateAfter(h.now(), h.refreshTimes)
}

func nextUpdateAfter(now time.Time, offsets []time.Duration) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, off := range offsets {
		if at := atOffset(midnight, off); at.After(now) {
			return at
		}
	}
	return atOffset(midnight.AddDate(0, 0, 1), offsets[0])
}

// atOffset adds wall-clock hours and minutes so DST days keep the configured time
func atOffset(midnight time.Time, off time.Duration) time.Time {
	h := int(off / time.Hour)
	m := int((off % time.Hour) / time.Minute)
	return time.Date(midnight.Year(), midnight.Month(), midnight.Day(), h, m, 0, 0, midnight.Location())
}
