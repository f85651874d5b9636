package s3sync

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/contenttype"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/dedup"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/deletion"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/integrity"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/internal/registry"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/keys"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/publicurl"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/storage"
)

// StorageFactory builds a storage client for a complete credential set.
type StorageFactory func(ctx context.Context, creds *s3types.Credentials, opts ...s3types.Option) (*storage.Client, error)

// Syncer orchestrates uploads, downloads and deletions against the bucket
// named by the active credentials. It is safe for concurrent use; operations
// on different keys run independently.
type Syncer struct {
	creds        s3types.CredentialProvider
	fs           billy.Filesystem
	verifier     *integrity.Verifier
	namer        s3types.KeyNamer
	prefix       string
	contentTypes s3types.ContentTypeGuesser
	ignore       []string
	ignored      *contenttype.Guesser
	strategy     s3types.URLStrategy
	recentWindow time.Duration
	logger       *slog.Logger
	now          func() time.Time

	factory      StorageFactory
	storageOpts  []s3types.Option
	dedupOpts    []dedup.Option
	deletionOpts []deletion.Option
	urlOpts      []publicurl.Option

	resolver  *publicurl.Resolver
	inflight  *registry.InFlight
	downloads *registry.Downloads

	mu      sync.Mutex
	backend *backend
}

// backend is everything built from one credential set.
type backend struct {
	creds     s3types.Credentials
	store     *storage.Client
	detector  *dedup.Detector
	confirmer *deletion.Confirmer
}

// New returns a Syncer reading credentials from creds on every operation.
// Storage clients are rebuilt only when the credentials change.
func New(creds s3types.CredentialProvider, opts ...Option) *Syncer {
	s := &Syncer{
		creds:        creds,
		fs:           osfs.New("/"),
		namer:        keys.Namer{},
		prefix:       keys.Namer{}.SyncPrefix(),
		strategy:     s3types.StrategyAuto,
		recentWindow: registry.DefaultRecentWindow,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:          time.Now,
		factory:      storage.New,
		inflight:     registry.NewInFlight(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With("component", "syncer")
	s.verifier = integrity.NewVerifier(s.fs)
	if s.contentTypes == nil {
		s.contentTypes = &contenttype.Guesser{Filesystem: s.fs}
	}
	s.ignored = &contenttype.Guesser{Ignore: normalizeTypes(s.ignore)}
	s.downloads = registry.NewDownloads(s.recentWindow)
	s.resolver = publicurl.New(creds, append([]publicurl.Option{publicurl.WithLogger(s.logger)}, s.urlOpts...)...)
	return s
}

// backendFor returns the storage stack for the current credentials, building it
// when they changed since the last call.
func (s *Syncer) backendFor(ctx context.Context) (*backend, error) {
	if s.creds == nil {
		return nil, errors.NewError("init", errors.ErrInitialization).
			WithMessage("no credential provider configured")
	}
	creds, err := s.creds.GetCompleteCredentials(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Classified(err) {
			return nil, err
		}
		return nil, errors.NewError("init", errors.Kind(errors.ErrInitialization, err))
	}
	if creds == nil || !creds.Complete() {
		return nil, errors.NewError("init", errors.ErrInitialization).
			WithMessage("storage credentials are incomplete")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.backend != nil && s.backend.creds == *creds {
		return s.backend, nil
	}

	storageOpts := append([]s3types.Option{storage.WithLogger(s.logger)}, s.storageOpts...)
	store, err := s.factory(ctx, creds, storageOpts...)
	if err != nil {
		return nil, err
	}

	dedupOpts := append([]dedup.Option{dedup.WithFilesystem(s.fs), dedup.WithLogger(s.logger)}, s.dedupOpts...)
	deletionOpts := append([]deletion.Option{deletion.WithLogger(s.logger)}, s.deletionOpts...)
	s.backend = &backend{
		creds:     *creds,
		store:     store,
		detector:  dedup.New(store, s.prefix, dedupOpts...),
		confirmer: deletion.NewConfirmer(store, deletionOpts...),
	}
	s.logger.Debug("storage client initialized",
		"provider", creds.Provider,
		"bucket", creds.BucketName,
		"endpoint", creds.Endpoint,
	)
	return s.backend, nil
}

// Prefix returns the key prefix duplicate detection scans.
func (s *Syncer) Prefix() string {
	return s.prefix
}

// KeyFor returns the storage key for a file belonging to itemID. hierarchy
// is only used by namers that group by it.
func (s *Syncer) KeyFor(itemID int64, filePath, hierarchy string) string {
	return s.namer.Generate(itemID, baseName(filePath), hierarchy)
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func normalizeTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// baseName returns the last element of a Unix or Windows path.
func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
