// Package config provides loading, validation, and convenient access to the
// sync engine configuration.
//
// Configuration is read from YAML files, S3SYNC_ environment variables and
// command line flags, in increasing order of precedence, and validated with
// struct tags before use.
//
// # Basic Usage
//
//	cfg, err := config.Load([]string{"s3sync.yaml"}, cmd.Flags())
//	if err != nil {
//	    return err
//	}
//	creds := cfg.Credentials()
//
// Environment variables map to keys with dots replaced by underscores, so
// S3SYNC_STORAGE_BUCKET sets storage.bucket.
package config

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, stderrors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Sync     SyncConfig     `mapstructure:"sync" yaml:"sync"`
	Transfer TransferConfig `mapstructure:"transfer" yaml:"transfer"`
	URL      URLConfig      `mapstructure:"url" yaml:"url"`
	Deletion DeletionConfig `mapstructure:"deletion" yaml:"deletion"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// StorageConfig holds the credential set. When SecretID is set the
// credentials are read from AWS Secrets Manager instead of these fields.
type StorageConfig struct {
	Provider        string `mapstructure:"provider" yaml:"provider" validate:"required,oneof=aws r2 minio custom"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	Region          string `mapstructure:"region" yaml:"region"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket" validate:"omitempty,bucket_name"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint" validate:"omitempty,url"`

	SecretID       string `mapstructure:"secret_id" yaml:"secret_id"`
	SecretRegion   string `mapstructure:"secret_region" yaml:"secret_region"`
	SecretEndpoint string `mapstructure:"secret_endpoint" yaml:"secret_endpoint" validate:"omitempty,url"`
}

// SyncConfig holds key naming and orchestration settings.
type SyncConfig struct {
	Prefix             string        `mapstructure:"prefix" yaml:"prefix" validate:"required"`
	UseHierarchy       bool          `mapstructure:"use_hierarchy" yaml:"use_hierarchy"`
	CheckDuplicates    bool          `mapstructure:"check_duplicates" yaml:"check_duplicates"`
	VerifyIntegrity    bool          `mapstructure:"verify_integrity" yaml:"verify_integrity"`
	IgnoreContentTypes []string      `mapstructure:"ignore_content_types" yaml:"ignore_content_types"`
	RecentWindow       time.Duration `mapstructure:"recent_window" yaml:"recent_window" validate:"min=0"`
	DedupConcurrency   int           `mapstructure:"dedup_concurrency" yaml:"dedup_concurrency" validate:"min=1,max=64"`
}

// TransferConfig holds storage client settings.
type TransferConfig struct {
	Concurrency               int           `mapstructure:"concurrency" yaml:"concurrency" validate:"min=1,max=32"`
	PartSize                  int64         `mapstructure:"part_size" yaml:"part_size" validate:"min=0"`
	MultipartThreshold        int64         `mapstructure:"multipart_threshold" yaml:"multipart_threshold" validate:"min=0"`
	MaxRetries                int           `mapstructure:"max_retries" yaml:"max_retries" validate:"min=0,max=20"`
	Timeout                   time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=0"`
	DisableChecksumValidation bool          `mapstructure:"disable_checksum_validation" yaml:"disable_checksum_validation"`
}

// URLConfig holds public URL resolution settings.
type URLConfig struct {
	Strategy     string        `mapstructure:"strategy" yaml:"strategy" validate:"required,oneof=auto custom providerDev disabled"`
	CustomDomain string        `mapstructure:"custom_domain" yaml:"custom_domain" validate:"omitempty,custom_domain"`
	APIToken     string        `mapstructure:"api_token" yaml:"api_token"`
	APIBaseURL   string        `mapstructure:"api_base_url" yaml:"api_base_url" validate:"omitempty,url"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl" validate:"min=0"`
}

// DeletionConfig holds delete-confirm settings.
type DeletionConfig struct {
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries" validate:"min=1,max=20"`
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay" validate:"min=0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
}

// MetricsConfig holds the Prometheus endpoint address. Empty disables it.
type MetricsConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen" validate:"omitempty,hostname_port"`
}

// Credentials returns the static credential set.
func (c *Config) Credentials() s3types.Credentials {
	return s3types.Credentials{
		Provider:        s3types.Provider(strings.ToLower(c.Storage.Provider)),
		AccessKeyID:     c.Storage.AccessKeyID,
		SecretAccessKey: c.Storage.SecretAccessKey,
		Region:          c.Storage.Region,
		BucketName:      c.Storage.Bucket,
		Endpoint:        c.Storage.Endpoint,
	}
}

// URLStrategy returns the configured strategy.
func (c *Config) URLStrategy() s3types.URLStrategy {
	return s3types.URLStrategy(c.URL.Strategy)
}

const redacted = "********"

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Sync.IgnoreContentTypes = append([]string(nil), c.Sync.IgnoreContentTypes...)
	if out.Storage.AccessKeyID != "" {
		out.Storage.AccessKeyID = mask(out.Storage.AccessKeyID)
	}
	if out.Storage.SecretAccessKey != "" {
		out.Storage.SecretAccessKey = redacted
	}
	if out.URL.APIToken != "" {
		out.URL.APIToken = redacted
	}
	return &out
}

// mask keeps the first four characters of an identifier.
func mask(s string) string {
	if len(s) <= 4 {
		return redacted
	}
	return s[:4] + redacted
}
