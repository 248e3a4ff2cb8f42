// Package config provides unified configuration for the accesstrail pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// InputFormat identifies the wire format of the input log.
type InputFormat string

const (
	// FormatCSV is one delimited record per line, no header row.
	FormatCSV InputFormat = "csv"

	// FormatJSON is one JSON object per line.
	FormatJSON InputFormat = "json"
)

// Compression identifies the compression applied to report artifacts.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

// Config holds the unified configuration for a pipeline run.
type Config struct {
	// DataDir is the base directory for the run manifest and scratch files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Input configuration
	Input InputConfig `json:"input" yaml:"input"`

	// Reports configuration
	Reports ReportsConfig `json:"reports" yaml:"reports"`

	// Output configuration
	Output OutputConfig `json:"output" yaml:"output"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`
}

// InputConfig holds input source configuration.
type InputConfig struct {
	// Path is the input log file. Plain files, .zst files, and s3:// URIs
	// are accepted.
	Path string `json:"path" yaml:"path"`

	// Format is the input format: csv, json
	Format InputFormat `json:"format" yaml:"format"`

	// Delimiter separates fields in csv input
	Delimiter string `json:"delimiter" yaml:"delimiter"`
}

// ReportsConfig holds the fixed-report knobs.
type ReportsConfig struct {
	// PartitionKey is the record field used to route records to partitions.
	// Only "status" is supported.
	PartitionKey string `json:"partition_key" yaml:"partition_key"`

	// SuspiciousThreshold is the failed-request count an IP must strictly
	// exceed to appear in the suspicious-IPs report
	SuspiciousThreshold int `json:"suspicious_threshold" yaml:"suspicious_threshold"`

	// TopPagesLimit is the number of rows in the top-pages report
	TopPagesLimit int `json:"top_pages_limit" yaml:"top_pages_limit"`

	// FailureStatuses are the status codes counted as failed requests
	FailureStatuses []int `json:"failure_statuses" yaml:"failure_statuses"`

	// MinuteTruncationLength is the timestamp prefix length that yields
	// minute granularity
	MinuteTruncationLength int `json:"minute_truncation_length" yaml:"minute_truncation_length"`

	// DetailStatus is the partition emitted verbatim by the detail report
	DetailStatus int `json:"detail_status" yaml:"detail_status"`

	// Concurrency is the number of reports computed in parallel
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// OutputConfig holds report destination configuration.
type OutputConfig struct {
	// Dir is the root output directory; each report gets its own
	// subdirectory underneath it
	Dir string `json:"dir" yaml:"dir"`

	// Compression applied to report artifacts: none, zstd
	Compression Compression `json:"compression" yaml:"compression"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// Archive controls whether report artifacts are copied to object
	// storage after a successful run
	Archive bool `json:"archive" yaml:"archive"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/accesstrail",
		Input: InputConfig{
			Format:    FormatCSV,
			Delimiter: ",",
		},
		Reports: ReportsConfig{
			PartitionKey:           "status",
			SuspiciousThreshold:    3,
			TopPagesLimit:          3,
			FailureStatuses:        []int{404, 500},
			MinuteTruncationLength: 16,
			DetailStatus:           404,
			Concurrency:            4,
		},
		Output: OutputConfig{
			Dir:         "",
			Compression: CompressionNone,
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/accesstrail"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = filepath.Join(c.DataDir, "reports")
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "archive")
	}
}

// ManifestPath returns the path to the run manifest database.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.DataDir, "manifest.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Input.Path == "" {
		return fmt.Errorf("input.path is required")
	}

	switch c.Input.Format {
	case FormatCSV, FormatJSON:
		// Valid formats
	default:
		return fmt.Errorf("invalid input format: %s (must be csv or json)", c.Input.Format)
	}

	if c.Input.Format == FormatCSV && c.Input.Delimiter == "" {
		return fmt.Errorf("input.delimiter is required for csv input")
	}

	if c.Reports.PartitionKey != "status" {
		return fmt.Errorf("invalid partition key: %s (only status is supported)", c.Reports.PartitionKey)
	}

	if c.Reports.SuspiciousThreshold < 0 {
		return fmt.Errorf("reports.suspicious_threshold must be >= 0, got %d", c.Reports.SuspiciousThreshold)
	}

	if c.Reports.TopPagesLimit < 1 {
		return fmt.Errorf("reports.top_pages_limit must be >= 1, got %d", c.Reports.TopPagesLimit)
	}

	if len(c.Reports.FailureStatuses) == 0 {
		return fmt.Errorf("reports.failure_statuses must not be empty")
	}

	if c.Reports.MinuteTruncationLength < 1 {
		return fmt.Errorf("reports.minute_truncation_length must be >= 1, got %d", c.Reports.MinuteTruncationLength)
	}

	if c.Reports.Concurrency < 1 {
		return fmt.Errorf("reports.concurrency must be >= 1, got %d", c.Reports.Concurrency)
	}

	switch c.Output.Compression {
	case CompressionNone, CompressionZstd:
		// Valid compressions
	default:
		return fmt.Errorf("invalid output compression: %s (must be none or zstd)", c.Output.Compression)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	return nil
}

// IsFailureStatus reports whether the status counts as a failed request.
func (c *ReportsConfig) IsFailureStatus(status int) bool {
	for _, s := range c.FailureStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the ACCESSTRAIL_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("ACCESSTRAIL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Input configuration
	if v := os.Getenv("ACCESSTRAIL_INPUT_PATH"); v != "" {
		cfg.Input.Path = v
	}
	if v := os.Getenv("ACCESSTRAIL_INPUT_FORMAT"); v != "" {
		cfg.Input.Format = InputFormat(v)
	}
	if v := os.Getenv("ACCESSTRAIL_INPUT_DELIMITER"); v != "" {
		cfg.Input.Delimiter = v
	}

	// Reports configuration
	if v := os.Getenv("ACCESSTRAIL_SUSPICIOUS_THRESHOLD"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Reports.SuspiciousThreshold)
	}
	if v := os.Getenv("ACCESSTRAIL_TOP_PAGES_LIMIT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Reports.TopPagesLimit)
	}
	if v := os.Getenv("ACCESSTRAIL_FAILURE_STATUSES"); v != "" {
		if statuses, err := parseStatusList(v); err == nil {
			cfg.Reports.FailureStatuses = statuses
		}
	}
	if v := os.Getenv("ACCESSTRAIL_REPORT_CONCURRENCY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Reports.Concurrency)
	}

	// Output configuration
	if v := os.Getenv("ACCESSTRAIL_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("ACCESSTRAIL_OUTPUT_COMPRESSION"); v != "" {
		cfg.Output.Compression = Compression(v)
	}

	// Storage configuration
	if v := os.Getenv("ACCESSTRAIL_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("ACCESSTRAIL_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("ACCESSTRAIL_STORAGE_ARCHIVE"); v != "" {
		cfg.Storage.Archive = v == "true" || v == "1"
	}
	if v := os.Getenv("ACCESSTRAIL_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("ACCESSTRAIL_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("ACCESSTRAIL_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}
}

// parseStatusList parses a comma-separated list of status codes.
func parseStatusList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	statuses := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid status code %q: %w", p, err)
		}
		statuses = append(statuses, n)
	}
	return statuses, nil
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Output.Dir,
	}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
