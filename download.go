package s3sync

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/keys"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/metadata"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

// Download writes the object stored under key to destPath, creating parent
// directories as needed.
//
// With integrity verification enabled (the default) the stored MD5 is read
// first and the written file is hashed against it. A mismatch removes the
// file before the integrity error is returned, so a corrupt download never
// stays on disk. When the stored MD5 cannot be read, or the bytes came from
// the checksum fallback retry, the file is kept unverified.
//
// While the download runs, and for the recent window after it succeeds,
// ShouldSkipUpload reports the destination file name as not to be uploaded.
// Cancelling ctx yields a StatusCanceled outcome and a nil error.
//
// Errors:
//   - ErrInvalidInput: empty key or destination
//   - ErrNotFound: the object does not exist
//   - ErrIntegrity: the written file does not match the stored hash
//   - ErrInitialization: no complete credentials
//   - ErrSync: any other failure, wrapping the cause
func (s *Syncer) Download(
	ctx context.Context,
	key, destPath string,
	opts ...s3types.DownloadOption,
) (*s3types.DownloadOutcome, error) {
	if err := checkKey("download", key); err != nil {
		return nil, err
	}
	if destPath == "" {
		return nil, invalid("download", "destination path cannot be empty")
	}

	done := s.downloads.Start(baseName(destPath))
	outcome, err := s.download(ctx, key, destPath, opts...)
	done(err == nil)

	switch {
	case err == nil:
		metrics.Get().RecordSync("download", string(outcome.Status))
	case ctx.Err() != nil:
		metrics.Get().RecordSync("download", string(s3types.StatusCanceled))
		return &s3types.DownloadOutcome{Status: s3types.StatusCanceled, Key: key, Path: destPath}, nil
	default:
		metrics.Get().RecordSync("download", "error")
	}
	return outcome, err
}

// DownloadToDir downloads key into dir under a file name derived from the
// key, and returns the outcome naming the chosen path.
func (s *Syncer) DownloadToDir(
	ctx context.Context,
	key, dir string,
	opts ...s3types.DownloadOption,
) (*s3types.DownloadOutcome, error) {
	if dir == "" {
		return nil, invalid("download", "destination directory cannot be empty")
	}
	return s.Download(ctx, key, filepath.Join(dir, keys.SafeFileName(key, "")), opts...)
}

func (s *Syncer) download(
	ctx context.Context,
	key, destPath string,
	opts ...s3types.DownloadOption,
) (*s3types.DownloadOutcome, error) {
	cfg := &s3types.DownloadOptionConfig{VerifyIntegrity: true}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := s.logger.With("download_id", uuid.NewString(), "key", key, "path", destPath)

	b, err := s.backendFor(ctx)
	if err != nil {
		return nil, wrap("download", key, destPath, err)
	}

	var expected string
	if cfg.VerifyIntegrity {
		obj, err := b.store.Head(ctx, key)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("could not read stored metadata, skipping verification", "error", err)
		case obj != nil:
			expected = metadata.MD5(obj.Metadata)
			if expected == "" {
				logger.Debug("object carries no md5, skipping verification")
			}
		}
	}

	res, err := b.store.Get(ctx, key, cfg.Progress)
	if err != nil {
		return nil, wrap("download", key, destPath, err)
	}
	if res.ChecksumRetried && expected != "" {
		logger.Warn("data came from checksum fallback, skipping verification")
		expected = ""
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.fs.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, wrap("download", key, destPath, err)
	}
	if err := util.WriteFile(s.fs, destPath, res.Data, 0o644); err != nil {
		s.removeQuietly(destPath)
		return nil, wrap("download", key, destPath, err)
	}

	outcome := &s3types.DownloadOutcome{
		Status: s3types.StatusDownloaded,
		Key:    key,
		Path:   destPath,
		Size:   int64(len(res.Data)),
	}
	if expected == "" {
		logger.Info("downloaded", "size", outcome.Size, "verified", false)
		return outcome, nil
	}

	result := s.verifier.Verify(destPath, expected)
	if !result.Valid {
		s.removeQuietly(destPath)
		metrics.Get().RecordIntegrityFailure("download")
		logger.Error("download verification failed, file removed", "expected", expected, "actual", result.Hash)
		return nil, errors.NewError("download", errors.ErrIntegrity).
			WithKey(key).
			WithPath(destPath).
			WithMessage(fmt.Sprintf("expected md5 %s, got %q", expected, result.Hash))
	}

	outcome.MD5Hash = result.Hash
	outcome.Verified = true
	logger.Info("downloaded", "size", outcome.Size, "verified", true)
	return outcome, nil
}

func (s *Syncer) removeQuietly(path string) {
	if err := s.fs.Remove(path); err != nil {
		s.logger.Debug("could not remove file", "path", path, "error", err)
	}
}
