package s3sync

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/integrity"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/metadata"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/storage"
)

// Upload stores the file at filePath under key.
//
// The file is hashed once. Unless duplicate checks are disabled, an object
// under the sync prefix with the same size and hash short-circuits the
// transfer and the outcome points at that object instead. Fresh uploads carry
// the original file name, upload date, MD5 and size as user metadata and are
// read back afterwards; a stored hash that differs from the local one fails
// with an integrity error and the object is left in place.
//
// A second Upload of the same key while the first is running fails with
// ErrUploadInProgress. Cancelling ctx yields a StatusCanceled outcome and a
// nil error.
//
// Errors:
//   - ErrInvalidInput: empty path or key, or filePath is a directory
//   - ErrNotFound: filePath does not exist
//   - ErrIntegrity: the stored hash does not match after upload
//   - ErrInitialization: no complete credentials
//   - ErrSync: any other failure, wrapping the cause
func (s *Syncer) Upload(
	ctx context.Context,
	filePath, key string,
	opts ...s3types.UploadOption,
) (*s3types.UploadOutcome, error) {
	outcome, err := s.upload(ctx, filePath, key, opts...)
	switch {
	case err == nil:
		metrics.Get().RecordSync("upload", string(outcome.Status))
	case ctx.Err() != nil:
		metrics.Get().RecordSync("upload", string(s3types.StatusCanceled))
		return &s3types.UploadOutcome{Status: s3types.StatusCanceled, Key: key}, nil
	default:
		metrics.Get().RecordSync("upload", "error")
	}
	return outcome, err
}

func (s *Syncer) upload(
	ctx context.Context,
	filePath, key string,
	opts ...s3types.UploadOption,
) (*s3types.UploadOutcome, error) {
	if filePath == "" {
		return nil, invalid("upload", "file path cannot be empty")
	}
	if err := checkKey("upload", key); err != nil {
		return nil, err
	}

	cfg := &s3types.UploadOptionConfig{CheckDuplicates: true}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := validation.ContentType(cfg.ContentType); err != nil {
		return nil, errors.NewError("upload", err).WithKey(key)
	}

	logger := s.logger.With("upload_id", uuid.NewString(), "key", key, "path", filePath)

	release, err := s.inflight.Acquire(key)
	if err != nil {
		logger.Warn("upload already in progress")
		return nil, wrap("upload", key, filePath, err)
	}
	metrics.Get().SetUploadsInFlight(s.inflight.Len())
	defer func() {
		release()
		metrics.Get().SetUploadsInFlight(s.inflight.Len())
	}()

	b, err := s.backendFor(ctx)
	if err != nil {
		return nil, wrap("upload", key, filePath, err)
	}

	info, err := s.fs.Stat(filePath)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.NewError("upload", errors.Kind(errors.ErrNotFound, err)).
				WithKey(key).
				WithPath(filePath).
				WithMessage("source file does not exist")
		}
		return nil, wrap("upload", key, filePath, err)
	}
	if info.IsDir() {
		return nil, errors.NewError("upload", errors.ErrInvalidInput).
			WithKey(key).
			WithPath(filePath).
			WithMessage("path is a directory")
	}

	data, err := util.ReadFile(s.fs, filePath)
	if err != nil {
		return nil, wrap("upload", key, filePath, errors.Kind(errors.ErrIntegrity, err))
	}
	size := int64(len(data))
	hash := integrity.HashBytes(data)
	logger.Debug("file hashed", "size", size, "md5", hash)

	if cfg.CheckDuplicates {
		if outcome, ok := s.duplicateOutcome(ctx, b, hash, size, logger); ok {
			return outcome, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	contentType := cfg.ContentType
	if contentType == "" {
		contentType = s.contentTypes.Guess(filePath)
	}

	md := metadata.Build(filePath, size, hash, s.now())
	if err := validation.Metadata(md); err != nil {
		return nil, wrap("upload", key, filePath, err)
	}

	start := time.Now()
	res, err := b.store.Upload(ctx, storage.PutInput{
		Key:         key,
		Data:        data,
		ContentType: contentType,
		Metadata:    md,
		Progress:    cfg.Progress,
	})
	if err != nil {
		return nil, wrap("upload", key, filePath, err)
	}
	logger.Debug("object written",
		"content_type", contentType,
		"multipart", size > b.store.MultipartThreshold(),
		"duration", time.Since(start),
	)

	if err := s.verifyUpload(ctx, b, key, filePath, hash); err != nil {
		return nil, err
	}

	logger.Info("uploaded", "size", size, "etag", res.ETag)
	return &s3types.UploadOutcome{
		Status:   s3types.StatusUploaded,
		Key:      key,
		ETag:     res.ETag,
		Location: res.Location,
		MD5Hash:  hash,
		Size:     size,
	}, nil
}

// duplicateOutcome looks for stored content matching hash and size. Lookup
// failures count as no duplicate so the upload goes ahead.
func (s *Syncer) duplicateOutcome(
	ctx context.Context,
	b *backend,
	hash string,
	size int64,
	logger *slog.Logger,
) (*s3types.UploadOutcome, bool) {
	dupKey, found, err := b.detector.FindByHash(ctx, hash, size)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("duplicate check failed, uploading anyway", "error", err)
		}
		return nil, false
	}
	if !found {
		return nil, false
	}

	outcome := &s3types.UploadOutcome{
		Status:       s3types.StatusDuplicate,
		Key:          dupKey,
		MD5Hash:      hash,
		Size:         size,
		IsDuplicate:  true,
		DuplicateKey: dupKey,
	}
	if obj, err := b.store.Head(ctx, dupKey); err == nil && obj != nil {
		outcome.ETag = obj.ETag
	}
	if loc, err := b.store.Location(dupKey); err == nil {
		outcome.Location = loc
	} else {
		logger.Debug("no location for duplicate", "error", err)
	}

	logger.Info("duplicate found, skipping transfer", "duplicate_key", dupKey)
	return outcome, true
}

// verifyUpload reads back key's metadata and compares the stored hash with
// the one computed before the transfer.
func (s *Syncer) verifyUpload(ctx context.Context, b *backend, key, filePath, hash string) error {
	obj, err := b.store.Head(ctx, key)
	if err != nil {
		return wrap("upload", key, filePath, err)
	}

	var reason string
	switch {
	case obj == nil:
		reason = "object missing after upload"
	case !integrity.Match(metadata.MD5(obj.Metadata), hash):
		reason = fmt.Sprintf("stored md5 %q does not match local %q", metadata.MD5(obj.Metadata), hash)
	default:
		return nil
	}

	metrics.Get().RecordIntegrityFailure("upload")
	s.logger.Error("upload verification failed", "key", key, "path", filePath, "reason", reason)
	return errors.NewError("upload", errors.Kind(errors.ErrIntegrity, stderrors.New(reason))).
		WithKey(key).
		WithPath(filePath).
		WithMessage("upload verification failed")
}
