package s3sync

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/dedup"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/deletion"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/metadata"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/publicurl"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

// ObjectMetadata is a stored object with its decoded custom metadata.
type ObjectMetadata struct {
	Object s3types.StoredObject
	Custom s3types.CustomMetadata

	// Valid reports whether every custom field is present and well formed
	Valid bool
}

// String returns a one-line summary.
func (m *ObjectMetadata) String() string {
	return fmt.Sprintf("%s (%s)", m.Object.Key, metadata.Describe(m.Object.Metadata))
}

// SkipReason explains why ShouldSkipUpload rejected a file.
type SkipReason string

// Skip reasons
const (
	SkipUploadInProgress   SkipReason = "upload in progress"
	SkipDownloading        SkipReason = "being downloaded"
	SkipRecentlyDownloaded SkipReason = "recently downloaded"
	SkipIgnoredType        SkipReason = "ignored content type"
)

// Delete removes key and waits until the backend stops returning it.
// Deleting a missing object succeeds. The Result records every state the
// deletion passed through.
func (s *Syncer) Delete(ctx context.Context, key string) (*deletion.Result, error) {
	if err := checkKey("delete", key); err != nil {
		return nil, err
	}
	b, err := s.backendFor(ctx)
	if err != nil {
		return nil, wrap("delete", key, "", err)
	}

	res, err := b.confirmer.Delete(ctx, key)
	if err != nil {
		return res, wrap("delete", key, "", err)
	}
	s.logger.Info("deleted", "key", key, "existed", res.Existed, "attempts", res.Deletes)
	return res, nil
}

// GetMetadata returns key's attributes and decoded custom metadata. A missing
// object is reported as ErrNotFound.
func (s *Syncer) GetMetadata(ctx context.Context, key string) (*ObjectMetadata, error) {
	if err := checkKey("head", key); err != nil {
		return nil, err
	}
	b, err := s.backendFor(ctx)
	if err != nil {
		return nil, wrap("head", key, "", err)
	}

	obj, err := b.store.Head(ctx, key)
	if err != nil {
		return nil, wrap("head", key, "", err)
	}
	if obj == nil {
		return nil, errors.NewObjectError("head", b.creds.BucketName, key, errors.ErrNotFound)
	}
	return &ObjectMetadata{
		Object: *obj,
		Custom: metadata.Parse(obj.Metadata),
		Valid:  metadata.Valid(obj.Metadata),
	}, nil
}

// List returns the objects under prefix, or under the sync prefix when
// prefix is empty.
func (s *Syncer) List(ctx context.Context, prefix string) ([]s3types.StoredObject, error) {
	if prefix == "" {
		prefix = s.prefix
	}
	b, err := s.backendFor(ctx)
	if err != nil {
		return nil, wrap("list", "", "", err)
	}
	objects, err := b.store.List(ctx, prefix)
	if err != nil {
		return nil, wrap("list", "", "", err)
	}
	return objects, nil
}

// ResolvePublicURL returns a public URL for key. An empty strategy uses the
// syncer's default. Failing strategies fall through to the next one, so an
// error means the context was cancelled.
func (s *Syncer) ResolvePublicURL(ctx context.Context, key string, strategy s3types.URLStrategy) (string, error) {
	if strategy == "" {
		strategy = s.strategy
	}
	return s.resolver.Resolve(ctx, key, strategy)
}

// ExtractKeyFromURL recovers the key from a URL returned by
// ResolvePublicURL.
func (s *Syncer) ExtractKeyFromURL(ctx context.Context, rawURL string) (string, bool) {
	return s.resolver.ExtractKey(ctx, rawURL)
}

// EnableDevDomain turns on the provider managed development domain for the
// bucket and returns key's URL under it.
func (s *Syncer) EnableDevDomain(ctx context.Context, key string) (string, error) {
	return s.resolver.EnableDevDomain(ctx, key)
}

// CustomDomainStatus reports whether domain, or the configured custom domain
// when empty, is connected to the bucket.
func (s *Syncer) CustomDomainStatus(ctx context.Context, domain string) (publicurl.DomainReport, error) {
	return s.resolver.CustomDomainStatus(ctx, domain)
}

// FindDuplicate returns the key of a stored object under the sync prefix
// with the same content as the file at filePath.
func (s *Syncer) FindDuplicate(ctx context.Context, filePath string) (string, bool, error) {
	info, err := s.fs.Stat(filePath)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return "", false, errors.NewError("dedup", errors.Kind(errors.ErrNotFound, err)).WithPath(filePath)
		}
		return "", false, wrap("dedup", "", filePath, err)
	}
	b, err := s.backendFor(ctx)
	if err != nil {
		return "", false, wrap("dedup", "", filePath, err)
	}

	key, found, err := b.detector.FindFast(ctx, filePath, info.Size())
	if err != nil {
		return "", false, wrap("dedup", "", filePath, err)
	}
	return key, found, nil
}

// DuplicateStatistics summarizes duplicated content under the sync prefix.
func (s *Syncer) DuplicateStatistics(ctx context.Context) (s3types.DuplicateStats, error) {
	b, err := s.backendFor(ctx)
	if err != nil {
		return s3types.DuplicateStats{}, wrap("dedup", "", "", err)
	}
	stats, err := b.detector.Statistics(ctx)
	if err != nil {
		return s3types.DuplicateStats{}, wrap("dedup", "", "", err)
	}
	return stats, nil
}

// DuplicateGroups returns every set of two or more objects sharing content.
func (s *Syncer) DuplicateGroups(ctx context.Context) ([]dedup.Group, error) {
	b, err := s.backendFor(ctx)
	if err != nil {
		return nil, wrap("dedup", "", "", err)
	}
	groups, err := b.detector.Groups(ctx)
	if err != nil {
		return nil, wrap("dedup", "", "", err)
	}
	return groups, nil
}

// ShouldSkipUpload tells a file watcher whether the file at filePath should
// be left alone. key is the key the file would be uploaded to; an empty key
// skips the in-flight check.
func (s *Syncer) ShouldSkipUpload(filePath, key string) (SkipReason, bool) {
	name := baseName(filePath)
	switch {
	case key != "" && s.inflight.Active(key):
		return SkipUploadInProgress, true
	case s.downloads.Downloading(name):
		return SkipDownloading, true
	case s.ignored.ShouldIgnore(filePath):
		return SkipIgnoredType, true
	}
	if age, ok := s.downloads.RecentlyDownloaded(name); ok {
		s.logger.Debug("skipping recently downloaded file", "name", name, "age", age.Round(time.Millisecond))
		return SkipRecentlyDownloaded, true
	}
	return "", false
}

// IsDownloading reports whether a download is writing a file named name.
func (s *Syncer) IsDownloading(name string) bool {
	return s.downloads.Downloading(baseName(name))
}

// TestConnection checks that the credentials can list the bucket.
func (s *Syncer) TestConnection(ctx context.Context) error {
	b, err := s.backendFor(ctx)
	if err != nil {
		return wrap("ping", "", "", err)
	}
	if err := b.store.Ping(ctx); err != nil {
		return wrap("ping", "", "", err)
	}
	return nil
}
