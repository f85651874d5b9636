package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/config"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// Load with no config files should use defaults
	cfg, err := config.Load(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "aws", cfg.Storage.Provider)
	assert.Equal(t, "zotero-attachments", cfg.Sync.Prefix)
	assert.True(t, cfg.Sync.CheckDuplicates)
	assert.True(t, cfg.Sync.VerifyIntegrity)
	assert.Equal(t, 30*time.Second, cfg.Sync.RecentWindow)
	assert.Equal(t, 8, cfg.Sync.DedupConcurrency)
	assert.Equal(t, 4, cfg.Transfer.Concurrency)
	assert.Equal(t, int64(5*1024*1024), cfg.Transfer.PartSize)
	assert.Equal(t, int64(5*1024*1024), cfg.Transfer.MultipartThreshold)
	assert.False(t, cfg.Transfer.DisableChecksumValidation)
	assert.Equal(t, s3types.StrategyAuto, cfg.URLStrategy())
	assert.Equal(t, 5*time.Minute, cfg.URL.CacheTTL)
	assert.Equal(t, 3, cfg.Deletion.MaxRetries)
	assert.Equal(t, time.Second, cfg.Deletion.RetryDelay)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Metrics.Listen)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := writeConfig(t, "s3sync.yaml", `
storage:
  provider: R2
  access_key_id: AKIDEXAMPLE
  secret_access_key: secret
  bucket: papers
  endpoint: https://0123456789abcdef0123456789abcdef.r2.cloudflarestorage.com
sync:
  prefix: library
  use_hierarchy: true
  ignore_content_types:
    - video/mp4
    - image/png
  recent_window: 1m
transfer:
  concurrency: 2
  disable_checksum_validation: true
url:
  strategy: providerDev
  custom_domain: files.example.com
  api_token: token
deletion:
  retry_delay: 250ms
log:
  level: debug
  format: json
metrics:
  listen: ":9090"
`)

	cfg, err := config.Load([]string{path}, nil)
	require.NoError(t, err)

	creds := cfg.Credentials()
	assert.Equal(t, s3types.ProviderR2, creds.Provider)
	assert.Equal(t, "papers", creds.BucketName)
	assert.True(t, creds.Complete())

	assert.Equal(t, "library", cfg.Sync.Prefix)
	assert.True(t, cfg.Sync.UseHierarchy)
	assert.Equal(t, []string{"video/mp4", "image/png"}, cfg.Sync.IgnoreContentTypes)
	assert.Equal(t, time.Minute, cfg.Sync.RecentWindow)
	assert.Equal(t, 2, cfg.Transfer.Concurrency)
	assert.True(t, cfg.Transfer.DisableChecksumValidation)
	assert.Equal(t, s3types.StrategyProviderDev, cfg.URLStrategy())
	assert.Equal(t, "files.example.com", cfg.URL.CustomDomain)
	assert.Equal(t, 250*time.Millisecond, cfg.Deletion.RetryDelay)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":9090", cfg.Metrics.Listen)
}

func TestLoad_ConfigFileMerge(t *testing.T) {
	base := writeConfig(t, "base.yaml", `
storage:
  provider: minio
  bucket: base
  endpoint: http://localhost:9000
log:
  level: warn
`)
	override := writeConfig(t, "override.yaml", `
storage:
  bucket: override
`)

	cfg, err := config.Load([]string{base, override}, nil)
	require.NoError(t, err)

	assert.Equal(t, "minio", cfg.Storage.Provider)
	assert.Equal(t, "override", cfg.Storage.Bucket)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load([]string{filepath.Join(t.TempDir(), "absent.yaml")}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "s3sync.yaml", `
storage:
  bucket: from-file
`)
	t.Setenv("S3SYNC_STORAGE_BUCKET", "from-env")
	t.Setenv("S3SYNC_STORAGE_ACCESS_KEY_ID", "AKID")
	t.Setenv("S3SYNC_TRANSFER_CONCURRENCY", "8")
	t.Setenv("S3SYNC_SYNC_RECENT_WINDOW", "10s")

	cfg, err := config.Load([]string{path}, nil)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Storage.Bucket)
	assert.Equal(t, "AKID", cfg.Storage.AccessKeyID)
	assert.Equal(t, 8, cfg.Transfer.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Sync.RecentWindow)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("S3SYNC_STORAGE_BUCKET", "from-env")
	t.Setenv("S3SYNC_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("bucket", "", "")
	flags.String("log-level", "info", "")
	flags.String("strategy", "auto", "")
	require.NoError(t, flags.Parse([]string{"--bucket", "from-flag", "--strategy", "disabled"}))

	cfg, err := config.Load(nil, flags)
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.Storage.Bucket)
	assert.Equal(t, s3types.StrategyDisabled, cfg.URLStrategy())
	// Unchanged flags do not shadow the environment.
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown provider", content: "storage:\n  provider: gcs\n"},
		{name: "unknown strategy", content: "url:\n  strategy: cdn\n"},
		{name: "bad log level", content: "log:\n  level: verbose\n"},
		{name: "bad log format", content: "log:\n  format: xml\n"},
		{name: "zero concurrency", content: "transfer:\n  concurrency: 0\n"},
		{name: "negative recent window", content: "sync:\n  recent_window: -1s\n"},
		{name: "malformed custom domain", content: "url:\n  custom_domain: localhost\n"},
		{name: "malformed endpoint", content: "storage:\n  provider: aws\n  endpoint: not a url\n"},
		{name: "r2 without endpoint", content: "storage:\n  provider: r2\n  bucket: papers\n"},
		{name: "invalid bucket name", content: "storage:\n  provider: aws\n  bucket: My_Bucket\n"},
		{name: "empty prefix", content: "sync:\n  prefix: \"\"\n"},
		{name: "bad metrics address", content: "metrics:\n  listen: nowhere\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "s3sync.yaml", tt.content)
			_, err := config.Load([]string{path}, nil)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidInput(err), err.Error())
		})
	}
}

func TestLoad_SecretIDSkipsStaticChecks(t *testing.T) {
	path := writeConfig(t, "s3sync.yaml", `
storage:
  provider: r2
  bucket: papers
  secret_id: s3sync/credentials
`)
	cfg, err := config.Load([]string{path}, nil)
	require.NoError(t, err)
	assert.Equal(t, "s3sync/credentials", cfg.Storage.SecretID)
}

func TestContext(t *testing.T) {
	_, err := config.FromContext(context.Background())
	require.Error(t, err)

	cfg := &config.Config{}
	got, err := config.FromContext(config.WithContext(context.Background(), cfg))
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}

func TestRedacted(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.AccessKeyID = "AKIDEXAMPLE"
	cfg.Storage.SecretAccessKey = "secret"
	cfg.URL.APIToken = "token"
	cfg.Sync.IgnoreContentTypes = []string{"video/mp4"}

	r := cfg.Redacted()
	assert.Equal(t, "AKID********", r.Storage.AccessKeyID)
	assert.Equal(t, "********", r.Storage.SecretAccessKey)
	assert.Equal(t, "********", r.URL.APIToken)

	r.Sync.IgnoreContentTypes[0] = "changed"
	assert.Equal(t, "secret", cfg.Storage.SecretAccessKey)
	assert.Equal(t, "video/mp4", cfg.Sync.IgnoreContentTypes[0])
}
