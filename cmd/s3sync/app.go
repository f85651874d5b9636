package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/config"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/credentials"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/dedup"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/deletion"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/keys"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/providerapi"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/publicurl"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/storage"
)

// newSyncer builds a Syncer from the configuration stored in ctx.
func newSyncer(ctx context.Context) (*s3sync.Syncer, *config.Config, error) {
	cfg, err := config.FromContext(ctx)
	if err != nil {
		return nil, nil, err
	}

	provider, err := credentialProvider(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.Default()
	urlOpts := []publicurl.Option{
		publicurl.WithCustomDomain(cfg.URL.CustomDomain),
		publicurl.WithCacheTTL(cfg.URL.CacheTTL),
	}
	if cfg.URL.APIToken != "" {
		apiOpts := []providerapi.Option{providerapi.WithLogger(logger)}
		if cfg.URL.APIBaseURL != "" {
			apiOpts = append(apiOpts, providerapi.WithBaseURL(cfg.URL.APIBaseURL))
		}
		urlOpts = append(urlOpts, publicurl.WithAPIToken(cfg.URL.APIToken, apiOpts...))
	}

	syncer := s3sync.New(provider,
		s3sync.WithLogger(logger),
		s3sync.WithPrefix(cfg.Sync.Prefix),
		s3sync.WithKeyNamer(keys.Namer{Prefix: cfg.Sync.Prefix, UseHierarchy: cfg.Sync.UseHierarchy}),
		s3sync.WithIgnoreContentTypes(cfg.Sync.IgnoreContentTypes...),
		s3sync.WithRecentWindow(cfg.Sync.RecentWindow),
		s3sync.WithDefaultStrategy(cfg.URLStrategy()),
		s3sync.WithURLOptions(urlOpts...),
		s3sync.WithStorageOptions(
			storage.WithConcurrency(cfg.Transfer.Concurrency),
			storage.WithPartSize(cfg.Transfer.PartSize),
			storage.WithMultipartThreshold(cfg.Transfer.MultipartThreshold),
			storage.WithMaxRetries(cfg.Transfer.MaxRetries),
			storage.WithTimeout(cfg.Transfer.Timeout),
			storage.WithDisableChecksumValidation(cfg.Transfer.DisableChecksumValidation),
		),
		s3sync.WithDedupOptions(dedup.WithConcurrency(cfg.Sync.DedupConcurrency)),
		s3sync.WithDeletionOptions(
			deletion.WithMaxRetries(cfg.Deletion.MaxRetries),
			deletion.WithRetryDelay(cfg.Deletion.RetryDelay),
		),
	)
	return syncer, cfg, nil
}

// credentialProvider reads credentials from Secrets Manager when a secret is
// configured and from the static configuration otherwise.
func credentialProvider(ctx context.Context, cfg *config.Config) (s3types.CredentialProvider, error) {
	if cfg.Storage.SecretID == "" {
		return credentials.NewStore(cfg.Credentials()), nil
	}

	var opts []credentials.SecretsOption
	if cfg.Storage.SecretRegion != "" {
		opts = append(opts, credentials.WithRegion(cfg.Storage.SecretRegion))
	}
	if cfg.Storage.SecretEndpoint != "" {
		opts = append(opts, credentials.WithEndpoint(cfg.Storage.SecretEndpoint))
	}
	return credentials.NewSecretsManager(ctx, cfg.Storage.SecretID, opts...)
}

// absPath resolves p against the working directory; the syncer reads the
// host filesystem from its root.
func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", p, err)
	}
	return abs, nil
}

// progressBar returns a progress callback drawing a bar on stderr and a
// function finishing it. Both are no-ops with --no-progress or --json.
func progressBar(description string) (s3types.ProgressFunc, func()) {
	if noProgress || jsonOutput {
		return nil, func() {}
	}

	var (
		once sync.Once
		bar  *progressbar.ProgressBar
	)
	update := func(p s3types.Progress) {
		once.Do(func() {
			bar = progressbar.NewOptions64(p.Total,
				progressbar.OptionSetDescription(description),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprint(os.Stderr, "\n")
				}),
				progressbar.OptionSetRenderBlankState(true),
			)
		})
		_ = bar.Set64(p.Loaded)
	}
	finish := func() {
		if bar != nil {
			_ = bar.Finish()
		}
	}
	return update, finish
}

// output writes v as indented JSON with --json and calls text otherwise.
func output(w io.Writer, v any, text func(io.Writer) error) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(w)
}
