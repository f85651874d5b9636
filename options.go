package s3sync

import (
	"log/slog"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/dedup"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/deletion"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/publicurl"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

// Option configures a Syncer.
type Option func(*Syncer)

// WithFilesystem sets the filesystem local files are read from and written
// to. The default is the host filesystem rooted at "/".
func WithFilesystem(fs billy.Filesystem) Option {
	return func(s *Syncer) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// WithStorageOptions passes options to every storage client the syncer
// builds.
func WithStorageOptions(opts ...s3types.Option) Option {
	return func(s *Syncer) {
		s.storageOpts = append(s.storageOpts, opts...)
	}
}

// WithStorageFactory replaces how storage clients are built from credentials.
// Tests use it to put a fake behind the syncer.
func WithStorageFactory(f StorageFactory) Option {
	return func(s *Syncer) {
		if f != nil {
			s.factory = f
		}
	}
}

// WithKeyNamer sets the key-naming policy used by KeyFor.
func WithKeyNamer(n s3types.KeyNamer) Option {
	return func(s *Syncer) {
		if n != nil {
			s.namer = n
		}
	}
}

// WithPrefix sets the key prefix duplicate detection scans. A trailing slash
// is added when missing.
func WithPrefix(prefix string) Option {
	return func(s *Syncer) {
		s.prefix = normalizePrefix(prefix)
	}
}

// WithContentTypes replaces the content-type guesser.
func WithContentTypes(g s3types.ContentTypeGuesser) Option {
	return func(s *Syncer) {
		if g != nil {
			s.contentTypes = g
		}
	}
}

// WithIgnoreContentTypes sets MIME types whose files ShouldSkipUpload rejects.
func WithIgnoreContentTypes(types ...string) Option {
	return func(s *Syncer) {
		s.ignore = append(s.ignore, types...)
	}
}

// WithURLOptions passes options to the public URL resolver.
func WithURLOptions(opts ...publicurl.Option) Option {
	return func(s *Syncer) {
		s.urlOpts = append(s.urlOpts, opts...)
	}
}

// WithDefaultStrategy sets the strategy ResolvePublicURL uses when none is
// given. The default is StrategyAuto.
func WithDefaultStrategy(strategy s3types.URLStrategy) Option {
	return func(s *Syncer) {
		if strategy != "" {
			s.strategy = strategy
		}
	}
}

// WithDedupOptions passes options to every duplicate detector.
func WithDedupOptions(opts ...dedup.Option) Option {
	return func(s *Syncer) {
		s.dedupOpts = append(s.dedupOpts, opts...)
	}
}

// WithDeletionOptions passes options to every delete confirmer.
func WithDeletionOptions(opts ...deletion.Option) Option {
	return func(s *Syncer) {
		s.deletionOpts = append(s.deletionOpts, opts...)
	}
}

// WithRecentWindow sets how long a downloaded file name blocks a re-upload.
// Zero disables the window.
func WithRecentWindow(window time.Duration) Option {
	return func(s *Syncer) {
		s.recentWindow = window
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock used for upload timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		if now != nil {
			s.now = now
		}
	}
}

// Upload options

// WithUploadProgress sets a progress callback for the transfer.
func WithUploadProgress(fn s3types.ProgressFunc) s3types.UploadOption {
	return func(cfg *s3types.UploadOptionConfig) {
		cfg.Progress = fn
	}
}

// WithCheckDuplicates controls the duplicate lookup before the transfer.
// Enabled by default.
func WithCheckDuplicates(check bool) s3types.UploadOption {
	return func(cfg *s3types.UploadOptionConfig) {
		cfg.CheckDuplicates = check
	}
}

// WithContentType overrides the guessed content type.
func WithContentType(contentType string) s3types.UploadOption {
	return func(cfg *s3types.UploadOptionConfig) {
		cfg.ContentType = contentType
	}
}

// Download options

// WithDownloadProgress sets a progress callback for the transfer.
func WithDownloadProgress(fn s3types.ProgressFunc) s3types.DownloadOption {
	return func(cfg *s3types.DownloadOptionConfig) {
		cfg.Progress = fn
	}
}

// WithVerifyIntegrity controls verification of the written file against the
// stored hash. Enabled by default.
func WithVerifyIntegrity(verify bool) s3types.DownloadOption {
	return func(cfg *s3types.DownloadOptionConfig) {
		cfg.VerifyIntegrity = verify
	}
}
