package health

import (
	"net/http"
	"testing"
	"time"

	"github.com/giygas/dynamed-api/catalog"
	"github.com/giygas/dynamed-api/catalog/entities"
	"github.com/giygas/dynamed-api/interfaces"
)

// MockHealthDataStore is a DataStore with a fixed snapshot and update time
type MockHealthDataStore struct {
	snapshot    *catalog.Snapshot
	lastUpdated time.Time
	startTime   time.Time
	isUpdating  bool
}

func (m *MockHealthDataStore) Snapshot() *catalog.Snapshot {
	if m.snapshot == nil {
		return catalog.Empty()
	}
	return m.snapshot
}

func (m *MockHealthDataStore) GetLastUpdated() time.Time { return m.lastUpdated }
func (m *MockHealthDataStore) IsUpdating() bool { return m.isUpdating }
func (m *MockHealthDataStore) GetServerStartTime() time.Time { return m.startTime }
func (m *MockHealthDataStore) GetReport() *interfaces.DataQualityReport { return nil }
func (m *MockHealthDataStore) Replace(catalog.Data) *catalog.Snapshot { return m.Snapshot() }
func (m *MockHealthDataStore) Append(catalog.Data) *catalog.Snapshot { return m.Snapshot() }
func (m *MockHealthDataStore) SetReport(*interfaces.DataQualityReport) {}
func (m *MockHealthDataStore) BeginUpdate() bool { return true }
func (m *MockHealthDataStore) EndUpdate() {}

func populated() *catalog.Snapshot {
	return catalog.Empty().Replace(catalog.Data{
		Molecules: []entities.Molecule{
			{ID: "amoxicilline", Name: "Amoxicilline"},
			{ID: "paracetamol", Name: "Paracétamol"},
		},
		Diagnostics: []entities.Diagnostic{{ID: "angine", Name: "Angine"}},
	})
}

func checkerAt(store interfaces.DataStore, now time.Time, times ...string) *HealthCheckerImpl {
	h := NewHealthChecker(store, times).(*HealthCheckerImpl)
	h.now = func() time.Time { return now }
	return h
}

func TestNewHealthChecker(t *testing.T) {
	healthChecker := NewHealthChecker(&MockHealthDataStore{}, nil)

	impl, ok := healthChecker.(*HealthCheckerImpl)
	if !ok {
		t.Fatal("NewHealthChecker should return *HealthCheckerImpl")
	}
	if len(impl.refreshTimes) != 2 {
		t.Errorf("Expected the default refresh times, got %v", impl.refreshTimes)
	}

	impl = NewHealthChecker(&MockHealthDataStore{}, []string{"bogus", "12:30", "12:30", "03:15"}).(*HealthCheckerImpl)
	want := []time.Duration{3*time.Hour + 15*time.Minute, 12*time.Hour + 30*time.Minute}
	if len(impl.refreshTimes) != len(want) || impl.refreshTimes[0] != want[0] || impl.refreshTimes[1] != want[1] {
		t.Errorf("Expected sorted unique offsets %v, got %v", want, impl.refreshTimes)
	}
}

func TestHealthCheck(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		store      *MockHealthDataStore
		wantStatus string
		wantCode   int
	}{
		{
			name:       "healthy",
			store:      &MockHealthDataStore{snapshot: populated(), lastUpdated: now.Add(-time.Hour)},
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
		},
		{
			name:       "empty catalog",
			store:      &MockHealthDataStore{lastUpdated: now.Add(-time.Hour)},
			wantStatus: "unhealthy",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name:       "never published",
			store:      &MockHealthDataStore{snapshot: populated()},
			wantStatus: "unhealthy",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name:       "stale over 48h",
			store:      &MockHealthDataStore{snapshot: populated(), lastUpdated: now.Add(-50 * time.Hour)},
			wantStatus: "unhealthy",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name:       "stale over 24h",
			store:      &MockHealthDataStore{snapshot: populated(), lastUpdated: now.Add(-30 * time.Hour)},
			wantStatus: "degraded",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name:       "long running update",
			store:      &MockHealthDataStore{snapshot: populated(), lastUpdated: now.Add(-7 * time.Hour), isUpdating: true},
			wantStatus: "degraded",
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name:       "recent update in progress",
			store:      &MockHealthDataStore{snapshot: populated(), lastUpdated: now.Add(-2 * time.Hour), isUpdating: true},
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, code := checkerAt(tt.store, now).HealthCheck()
			if status != tt.wantStatus {
				t.Errorf("Expected status %s, got %s", tt.wantStatus, status)
			}
			if code != tt.wantCode {
				t.Errorf("Expected HTTP %d, got %d", tt.wantCode, code)
			}
		})
	}
}

func TestHealthCheck_Data(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	store := &MockHealthDataStore{
		snapshot:    populated(),
		lastUpdated: now.Add(-90 * time.Minute),
		startTime:   now.Add(-time.Hour),
	}

	_, data, _ := checkerAt(store, now, "06:00", "18:00").HealthCheck()

	if data["catalogVersion"] != store.snapshot.Version() {
		t.Errorf("Unexpected catalogVersion %v", data["catalogVersion"])
	}
	counts, ok := data["counts"].(catalog.Counts)
	if !ok || counts.Molecules != 2 || counts.Diagnostics != 1 {
		t.Errorf("Unexpected counts %v", data["counts"])
	}
	if data["dataAgeHours"] != 1.5 {
		t.Errorf("Expected dataAgeHours 1.5, got %v", data["dataAgeHours"])
	}
	if data["lastUpdate"] != now.Add(-90*time.Minute).Format(time.RFC3339) {
		t.Errorf("Unexpected lastUpdate %v", data["lastUpdate"])
	}
	if data["nextUpdate"] != "2026-03-10T18:00:00Z" {
		t.Errorf("Unexpected nextUpdate %v", data["nextUpdate"])
	}
	if data["uptimeSeconds"] != int64(3600) {
		t.Errorf("Expected uptimeSeconds 3600, got %v", data["uptimeSeconds"])
	}
	if data["isUpdating"] != false {
		t.Errorf("Expected isUpdating false, got %v", data["isUpdating"])
	}
}

func TestHealthCheck_ZeroTimeLastUpdate(t *testing.T) {
	_, data, _ := checkerAt(&MockHealthDataStore{}, time.Now()).HealthCheck()

	if _, ok := data["lastUpdate"]; ok {
		t.Error("lastUpdate should be absent before the first publication")
	}
	if _, ok := data["dataAgeHours"]; ok {
		t.Error("dataAgeHours should be absent before the first publication")
	}
	if _, ok := data["uptimeSeconds"]; ok {
		t.Error("uptimeSeconds should be absent without a start time")
	}
}

func TestCalculateNextUpdate(t *testing.T) {
	day := func(h, m int) time.Time { return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC) }

	tests := []struct {
		name  string
		now   time.Time
		times []string
		want  time.Time
	}{
		{"before first", day(5, 59), nil, day(6, 0)},
		{"exactly at first", day(6, 0), nil, day(18, 0)},
		{"between", day(12, 0), nil, day(18, 0)},
		{"after last", day(18, 30), nil, time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC)},
		{"single time", day(23, 0), []string{"02:30"}, time.Date(2026, 3, 11, 2, 30, 0, 0, time.UTC)},
		{"three times", day(13, 0), []string{"22:00", "12:00", "04:00"}, day(22, 0)},
		{"month end", time.Date(2026, 3, 31, 20, 0, 0, 0, time.UTC), nil, time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkerAt(&MockHealthDataStore{}, tt.now, tt.times...).CalculateNextUpdate()
			if !got.Equal(tt.want) {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCalculateNextUpdate_DSTKeepsWallClock(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skip("time zone database unavailable")
	}
	// clocks move forward at 02:00 on 2026-03-29
	now := time.Date(2026, 3, 28, 20, 0, 0, 0, paris)

	got := checkerAt(&MockHealthDataStore{}, now).CalculateNextUpdate()

	if got.Hour() != 6 || got.Minute() != 0 || got.Day() != 29 {
		t.Errorf("Expected 06:00 on the 29th, got %s", got)
	}
}
