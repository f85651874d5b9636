// Package dedup finds stored objects whose content matches a local file.
//
// Matching is content addressed: an object is a duplicate when its stored
// size and the MD5 recorded in its metadata equal the candidate's. Objects
// without readable metadata are skipped rather than treated as errors, so a
// partially readable bucket degrades to fewer matches, never a failed scan.
package dedup

import (
	"context"
	"io"
	"log/slog"

	"github.com/go-git/go-billy/v5"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/integrity"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/metadata"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

const (
	// DefaultConcurrency bounds metadata requests issued by Scan.
	DefaultConcurrency = 8

	// DefaultCacheSize is the number of ETag to MD5 entries remembered.
	DefaultCacheSize = 4096
)

// ObjectStore is the part of the storage client the detector reads from.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]s3types.StoredObject, error)
	Head(ctx context.Context, key string) (*s3types.StoredObject, error)
}

// Detector looks for duplicates under a single key prefix.
// It is safe for concurrent use.
type Detector struct {
	store       ObjectStore
	prefix      string
	verifier    *integrity.Verifier
	cache       *lru.Cache[string, string]
	concurrency int
	logger      *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithFilesystem sets the filesystem candidate files are hashed from.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(d *Detector) {
		d.verifier = integrity.NewVerifier(fs)
	}
}

// WithConcurrency bounds the metadata requests in flight during Scan.
func WithConcurrency(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithCacheSize sets how many ETag to MD5 lookups are cached. Zero disables
// the cache.
func WithCacheSize(n int) Option {
	return func(d *Detector) {
		if n <= 0 {
			d.cache = nil
			return
		}
		if cache, err := lru.New[string, string](n); err == nil {
			d.cache = cache
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New returns a Detector scanning objects under prefix.
func New(store ObjectStore, prefix string, opts ...Option) *Detector {
	// lru.New only fails on a non-positive size.
	cache, _ := lru.New[string, string](DefaultCacheSize)
	d := &Detector{
		store:       store,
		prefix:      prefix,
		verifier:    integrity.NewVerifier(nil),
		cache:       cache,
		concurrency: DefaultConcurrency,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dedup")
	return d
}

// Prefix returns the key prefix the detector scans.
func (d *Detector) Prefix() string {
	return d.prefix
}

// FindFast returns the key of a stored object with the same content as the
// file at filePath. Only objects whose size equals size are considered, and
// the file is hashed only when at least one such object exists.
func (d *Detector) FindFast(ctx context.Context, filePath string, size int64) (string, bool, error) {
	objects, err := d.list(ctx)
	if err != nil {
		return "", false, err
	}

	var candidates []s3types.StoredObject
	for _, obj := range objects {
		if obj.Size == size {
			candidates = append(candidates, obj)
		}
	}
	if len(candidates) == 0 {
		return "", false, nil
	}

	hash, err := d.verifier.HashFile(filePath)
	if err != nil {
		return "", false, err
	}
	return d.match(ctx, candidates, hash)
}

// FindExact is FindFast without the size filter. It may fetch metadata for
// every object under the prefix.
func (d *Detector) FindExact(ctx context.Context, filePath string) (string, bool, error) {
	hash, err := d.verifier.HashFile(filePath)
	if err != nil {
		return "", false, err
	}
	objects, err := d.list(ctx)
	if err != nil {
		return "", false, err
	}
	return d.match(ctx, objects, hash)
}

// FindByHash looks for an object with the given MD5. A negative size
// disables the size filter.
func (d *Detector) FindByHash(ctx context.Context, hash string, size int64) (string, bool, error) {
	objects, err := d.list(ctx)
	if err != nil {
		return "", false, err
	}
	if size >= 0 {
		var filtered []s3types.StoredObject
		for _, obj := range objects {
			if obj.Size == size {
				filtered = append(filtered, obj)
			}
		}
		objects = filtered
	}
	return d.match(ctx, objects, hash)
}

func (d *Detector) list(ctx context.Context) ([]s3types.StoredObject, error) {
	objects, err := d.store.List(ctx, d.prefix)
	if err != nil {
		return nil, errors.NewError("dedupList", err)
	}
	return objects, nil
}

// match walks candidates in listing order and returns the first whose
// stored MD5 equals hash.
func (d *Detector) match(ctx context.Context, candidates []s3types.StoredObject, hash string) (string, bool, error) {
	for _, obj := range candidates {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		stored, reason := d.storedMD5(ctx, obj)
		if reason != "" {
			d.logger.Debug("skipping candidate", "key", obj.Key, "reason", reason)
			continue
		}
		if integrity.Match(stored, hash) {
			d.logger.Info("duplicate found", "key", obj.Key, "md5", hash)
			return obj.Key, true, nil
		}
	}
	return "", false, nil
}

// storedMD5 returns the MD5 recorded in obj's metadata, or a non-empty skip
// reason when it cannot be read.
func (d *Detector) storedMD5(ctx context.Context, obj s3types.StoredObject) (string, string) {
	if d.cache != nil && obj.ETag != "" {
		if hash, ok := d.cache.Get(obj.ETag); ok {
			return hash, ""
		}
	}

	head, err := d.store.Head(ctx, obj.Key)
	switch {
	case err != nil:
		return "", "metadata unreadable: " + err.Error()
	case head == nil:
		return "", "object vanished"
	}

	hash := metadata.MD5(head.Metadata)
	if hash == "" {
		return "", "no md5 in metadata"
	}
	if d.cache != nil && obj.ETag != "" {
		d.cache.Add(obj.ETag, hash)
	}
	return hash, ""
}
