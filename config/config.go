// Package config loads the service configuration from the environment
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment environment of the service
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

var validEnvs = []Environment{EnvDevelopment, EnvStaging, EnvProduction, EnvTest}

func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment accepts the short environment names and their long spellings
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: %v, got: %s", validEnvs, s)
}

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	DataDir             string // Directory of the catalog CSV datasets
	CatalogBaseURL      string // Remote location of the datasets, empty to read DataDir only
	CatalogRefreshTimes string // Daily reload times, "HH:MM" separated by ';'

	RateLimitRate     int64 // Tokens refilled per second and client
	RateLimitCapacity int64 // Bucket size per client
	RateLimitClients  int   // Number of client buckets kept in memory
	MaxIDsPerField    int   // Maximum ids in one list of a request body
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          strings.ToLower(getEnvWithDefault("LOG_LEVEL", "info")),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 100*1024*1024),
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1024*1024),
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1024*1024),

		DataDir:             getEnvWithDefault("DATA_DIR", "files"),
		CatalogBaseURL:      os.Getenv("CATALOG_BASE_URL"),
		CatalogRefreshTimes: getEnvWithDefault("CATALOG_REFRESH_TIMES", "06:00;18:00"),

		RateLimitRate:     getInt64EnvWithDefault("RATE_LIMIT_RATE", 3),
		RateLimitCapacity: getInt64EnvWithDefault("RATE_LIMIT_CAPACITY", 1000),
		RateLimitClients:  getIntEnvWithDefault("RATE_LIMIT_CLIENTS", 10000),
		MaxIDsPerField:    getIntEnvWithDefault("MAX_IDS_PER_FIELD", 200),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// RefreshTimes returns the daily catalog reload times
func (c *Config) RefreshTimes() []string {
	return splitTimes(c.CatalogRefreshTimes)
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	if err := validateEnv(cfg.Env); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("invalid DATA_DIR: DATA_DIR cannot be empty")
	}

	if err := validateBaseURL(cfg.CatalogBaseURL); err != nil {
		return fmt.Errorf("invalid CATALOG_BASE_URL: %w", err)
	}

	if err := validateRefreshTimes(cfg.CatalogRefreshTimes); err != nil {
		return fmt.Errorf("invalid CATALOG_REFRESH_TIMES: %w", err)
	}

	if err := validatePositive(cfg.RateLimitRate, "RATE_LIMIT_RATE"); err != nil {
		return err
	}
	if err := validatePositive(cfg.RateLimitCapacity, "RATE_LIMIT_CAPACITY"); err != nil {
		return err
	}
	if err := validatePositive(int64(cfg.RateLimitClients), "RATE_LIMIT_CLIENTS"); err != nil {
		return err
	}
	if err := validatePositive(int64(cfg.MaxIDsPerField), "MAX_IDS_PER_FIELD"); err != nil {
		return err
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress accepts loopback and private network addresses only
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	if !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

func validateEnv(env Environment) error {
	if env == "" {
		return fmt.Errorf("ENV cannot be empty")
	}
	if !slices.Contains(validEnvs, env) {
		return fmt.Errorf("ENV must be one of: %v, got: %s", validEnvs, env)
	}
	return nil
}

func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(logLevel)) {
		return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
	}
	return nil
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 {
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 {
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize accepts sizes between 1MB and 1GB
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateBaseURL accepts an empty value or an absolute http(s) URL
func validateBaseURL(raw string) error {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("CATALOG_BASE_URL must be a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("CATALOG_BASE_URL must use http or https, got: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("CATALOG_BASE_URL must have a host")
	}
	return nil
}

func validateRefreshTimes(raw string) error {
	times := splitTimes(raw)
	if len(times) == 0 {
		return fmt.Errorf("CATALOG_REFRESH_TIMES needs at least one HH:MM time")
	}
	for _, t := range times {
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("CATALOG_REFRESH_TIMES entry %q is not a HH:MM time", t)
		}
	}
	return nil
}

func validatePositive(value int64, configName string) error {
	if value <= 0 {
		return fmt.Errorf("invalid %s: must be positive, got: %d", configName, value)
	}
	return nil
}

func splitTimes(raw string) []string {
	var times []string
	for t := range strings.SplitSeq(raw, ";") {
		if t = strings.TrimSpace(t); t != "" {
			times = append(times, t)
		}
	}
	return times
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"DATA_DIR",
		"CATALOG_BASE_URL",
		"CATALOG_REFRESH_TIMES",
		"RATE_LIMIT_RATE",
		"RATE_LIMIT_CAPACITY",
		"RATE_LIMIT_CLIENTS",
		"MAX_IDS_PER_FIELD",
	}
}
