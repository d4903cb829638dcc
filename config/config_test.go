package config

import (
	"os"
	"slices"
	"strings"
	"testing"
)

// setBaseEnv sets a valid environment and clears every other variable Load reads
func setBaseEnv(t *testing.T) {
	t.Helper()
	for _, key := range GetEnvVars() {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
	t.Setenv("PORT", "8002")
	t.Setenv("ADDRESS", "127.0.0.1")
	t.Setenv("ENV", "dev")
	t.Setenv("LOG_LEVEL", "info")
}

func TestLoadValidConfig(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATA_DIR", "/srv/dynamed/files")
	t.Setenv("CATALOG_BASE_URL", "https://data.example.org/catalog/")
	t.Setenv("CATALOG_REFRESH_TIMES", "05:30; 17:45")
	t.Setenv("MAX_IDS_PER_FIELD", "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.Port != "8002" {
		t.Errorf("Expected port 8002, got %s", cfg.Port)
	}
	if cfg.Address != "127.0.0.1" {
		t.Errorf("Expected address 127.0.0.1, got %s", cfg.Address)
	}
	if cfg.Env != EnvDevelopment {
		t.Errorf("Expected env dev, got %s", cfg.Env)
	}
	if cfg.DataDir != "/srv/dynamed/files" {
		t.Errorf("Expected data dir from env, got %s", cfg.DataDir)
	}
	if cfg.CatalogBaseURL != "https://data.example.org/catalog/" {
		t.Errorf("Unexpected base URL %s", cfg.CatalogBaseURL)
	}
	if got := cfg.RefreshTimes(); !slices.Equal(got, []string{"05:30", "17:45"}) {
		t.Errorf("Unexpected refresh times %v", got)
	}
	if cfg.MaxIDsPerField != 50 {
		t.Errorf("Expected 50 ids per field, got %d", cfg.MaxIDsPerField)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	setBaseEnv(t)
	_ = os.Unsetenv("PORT")
	_ = os.Unsetenv("ADDRESS")
	_ = os.Unsetenv("ENV")
	_ = os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("Expected default port 8000, got %s", cfg.Port)
	}
	if cfg.Address != "127.0.0.1" {
		t.Errorf("Expected default address 127.0.0.1, got %s", cfg.Address)
	}
	if cfg.Env != EnvDevelopment {
		t.Errorf("Expected default env dev, got %s", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.DataDir != "files" || cfg.LogDir != "logs" {
		t.Errorf("Unexpected default dirs: data=%s logs=%s", cfg.DataDir, cfg.LogDir)
	}
	if cfg.CatalogBaseURL != "" {
		t.Errorf("Expected no base URL by default, got %s", cfg.CatalogBaseURL)
	}
	if got := cfg.RefreshTimes(); !slices.Equal(got, []string{"06:00", "18:00"}) {
		t.Errorf("Unexpected default refresh times %v", got)
	}
	if cfg.RateLimitRate != 3 || cfg.RateLimitCapacity != 1000 || cfg.RateLimitClients != 10000 {
		t.Errorf("Unexpected rate limit defaults: %d/%d/%d", cfg.RateLimitRate, cfg.RateLimitCapacity, cfg.RateLimitClients)
	}
	if cfg.MaxIDsPerField != 200 {
		t.Errorf("Expected 200 ids per field, got %d", cfg.MaxIDsPerField)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		key      string
		value    string
		expected string
	}{
		{"PORT", "abc", "PORT must be a valid number"},
		{"PORT", "0", "PORT must be between 1 and 65535"},
		{"PORT", "65536", "PORT must be between 1 and 65535"},
		{"PORT", "80", "PORT 80 is privileged"},
		{"ADDRESS", "invalid", "ADDRESS must be a valid IP address"},
		{"ADDRESS", "8.8.8.8", "is a public IP"},
		{"ENV", "invalid", "ENV must be one of"},
		{"LOG_LEVEL", "verbose", "LOG_LEVEL must be one of"},
		{"MAX_REQUEST_BODY", "-1", "MAX_REQUEST_BODY must be positive"},
		{"MAX_HEADER_SIZE", "209715200", "too large (max 100MB)"},
		{"LOG_RETENTION_WEEKS", "53", "max 52 weeks"},
		{"MAX_LOG_FILE_SIZE", "1024", "too small (min 1MB)"},
		{"CATALOG_BASE_URL", "ftp://data.example.org", "must use http or https"},
		{"CATALOG_BASE_URL", "https://", "must have a host"},
		{"CATALOG_REFRESH_TIMES", "6h", "is not a HH:MM time"},
		{"CATALOG_REFRESH_TIMES", " ; ", "needs at least one HH:MM time"},
		{"RATE_LIMIT_RATE", "0", "RATE_LIMIT_RATE: must be positive"},
		{"RATE_LIMIT_CLIENTS", "-5", "RATE_LIMIT_CLIENTS: must be positive"},
		{"MAX_IDS_PER_FIELD", "0", "MAX_IDS_PER_FIELD: must be positive"},
	}

	for _, tc := range testCases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			if err == nil {
				t.Fatalf("Expected error for %s=%s, got nil", tc.key, tc.value)
			}
			if !strings.Contains(err.Error(), tc.expected) {
				t.Errorf("Expected error containing %q, got %q", tc.expected, err.Error())
			}
		})
	}
}

func TestValidateAddress(t *testing.T) {
	for _, address := range []string{"localhost", "127.0.0.1", "::1", "10.0.0.4", "192.168.1.20", "0.0.0.0"} {
		if err := validateAddress(address); err != nil {
			t.Errorf("Expected %s to be accepted, got %v", address, err)
		}
	}
}

func TestParseEnvironment(t *testing.T) {
	tests := []struct {
		input    string
		expected Environment
		hasError bool
	}{
		{"dev", EnvDevelopment, false},
		{"development", EnvDevelopment, false},
		{"staging", EnvStaging, false},
		{"prod", EnvProduction, false},
		{"PRODUCTION", EnvProduction, false},
		{"test", EnvTest, false},
		{"invalid", EnvDevelopment, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			env, err := ParseEnvironment(tt.input)
			if tt.hasError {
				if err == nil {
					t.Errorf("Expected error for %s, got none", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error for %s: %v", tt.input, err)
			}
			if env != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, env)
			}
		})
	}
}

func TestEnvironmentString(t *testing.T) {
	tests := []struct {
		env      Environment
		expected string
	}{
		{EnvDevelopment, "dev"},
		{EnvStaging, "staging"},
		{EnvProduction, "prod"},
		{EnvTest, "test"},
	}

	for _, tt := range tests {
		if got := tt.env.String(); got != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, got)
		}
	}
}
