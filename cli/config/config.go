package config

import (
	"fmt"
	"time"

	"github.com/slipway-dev/slipway/types"
)

// Config represents a slipway.yaml configuration file.
// All values act as defaults for slipway release flags.
// CLI flags always override config values.
type Config struct {
	PackageName string `yaml:"package_name"`
	BinaryName  string `yaml:"binary_name"`
	WorkDir     string `yaml:"work_dir"`
	// UseLargeFileStorage is a checkout-time hint recorded in plan and
	// report output; slipway itself never touches the checkout.
	UseLargeFileStorage bool `yaml:"use_large_file_storage"`
	UploadToRelease     bool `yaml:"upload_to_release"`

	Toolchain    ToolchainConfig      `yaml:"toolchain"`
	Release      ReleaseConfig        `yaml:"release"`
	Distribution DistributionConfig   `yaml:"distribution"`
	Store        StoreConfig          `yaml:"store"`
	Retry        RetryConfig          `yaml:"retry"`
	Journal      JournalConfig        `yaml:"journal"`
	Platforms    []types.PlatformSpec `yaml:"platforms"`
}

// ToolchainConfig holds build tool defaults.
type ToolchainConfig struct {
	Command string `yaml:"command"`
	OutRoot string `yaml:"out_root"`
}

// ReleaseConfig holds release-host defaults.
type ReleaseConfig struct {
	BaseURL string `yaml:"base_url"`
	// TokenEnv names the env var holding the bearer token.
	TokenEnv string `yaml:"token_env"`
}

// DistributionConfig holds distribution-service defaults.
type DistributionConfig struct {
	// Target is "organization/project"; empty disables distribution.
	Target        string `yaml:"target"`
	Tool          string `yaml:"tool"`
	CredentialEnv string `yaml:"credential_env"`
}

// StoreConfig holds artifact-store defaults.
type StoreConfig struct {
	// Backend is "fs" (default) or "s3".
	Backend string `yaml:"backend"`
	// Path is the FS root, or "bucket/prefix" for s3.
	Path        string   `yaml:"path"`
	Region      string   `yaml:"region"`
	Endpoint    string   `yaml:"endpoint"`
	S3PathStyle bool     `yaml:"s3_path_style"`
	Retention   Duration `yaml:"retention"`
}

// RetryConfig bounds retries for external publish/attach/push calls.
type RetryConfig struct {
	Attempts   int      `yaml:"attempts"`
	Backoff    Duration `yaml:"backoff"`
	MaxBackoff Duration `yaml:"max_backoff"`
}

// JournalConfig holds run-history defaults.
type JournalConfig struct {
	// Path is the SQLite database file; empty disables the journal.
	Path string `yaml:"path"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
