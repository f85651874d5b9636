package multipart

import (
	"bytes"
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

const (
	// DefaultPartSize is the largest part the uploader sends.
	DefaultPartSize int64 = 5 * 1024 * 1024

	// DefaultConcurrency is the number of parts in flight at once.
	DefaultConcurrency = 4

	// MaxParts is the most parts a single upload may have.
	MaxParts = 10000
)

// Config describes a single multipart upload.
type Config struct {
	Bucket      string
	Key         string
	ContentType string
	Metadata    map[string]string
	PartSize    int64
	Concurrency int
	Progress    s3types.ProgressFunc
}

// Result is returned after the upload is completed server side.
type Result struct {
	ETag     string
	Size     int64
	Parts    int
	UploadID string
}

// Uploader handles multipart upload operations
type Uploader struct {
	s3Client s3api.S3API
}

// NewUploader creates a new multipart uploader
func NewUploader(s3Client s3api.S3API) *Uploader {
	return &Uploader{
		s3Client: s3Client,
	}
}

// Upload splits data into parts and uploads them with at most
// cfg.Concurrency parts in flight. Any part failure aborts the upload.
func (u *Uploader) Upload(ctx context.Context, data []byte, cfg Config) (*Result, error) {
	size := int64(len(data))
	partSize := PartSizeFor(cfg.PartSize, size)
	numParts := CalculateParts(size, partSize)

	uploadID, err := u.createMultipartUpload(ctx, cfg)
	if err != nil {
		return nil, err
	}

	parts, err := u.uploadParts(ctx, data, uploadID, partSize, numParts, cfg)
	if err != nil {
		u.abortMultipartUpload(ctx, cfg.Bucket, cfg.Key, uploadID)
		return nil, err
	}

	output, err := u.s3Client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(cfg.Bucket),
		Key:      aws.String(cfg.Key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{
			Parts: parts,
		},
	})
	if err != nil {
		u.abortMultipartUpload(ctx, cfg.Bucket, cfg.Key, uploadID)
		return nil, errors.NewObjectError("completeMultipartUpload", cfg.Bucket, cfg.Key, errors.Network(err))
	}

	return &Result{
		ETag:     aws.ToString(output.ETag),
		Size:     size,
		Parts:    numParts,
		UploadID: uploadID,
	}, nil
}

// PartSize returns the configured part size or the default, never exceeding the default.
func PartSize(configured int64) int64 {
	if configured > 0 && configured < DefaultPartSize {
		return configured
	}
	return DefaultPartSize
}

// PartSizeFor returns the part size used for an upload of size bytes: the
// configured part size, raised when it would need more than MaxParts parts.
func PartSizeFor(configured, size int64) int64 {
	partSize := PartSize(configured)
	if CalculateParts(size, partSize) > MaxParts {
		partSize = (size + MaxParts - 1) / MaxParts
	}
	return partSize
}

// CalculateParts calculates the number of parts needed for the given size and part size
func CalculateParts(size, partSize int64) int {
	if size == 0 {
		return 1
	}
	return int((size + partSize - 1) / partSize)
}

func concurrency(configured int) int {
	if configured > 0 {
		return configured
	}
	return DefaultConcurrency
}

func (u *Uploader) createMultipartUpload(ctx context.Context, cfg Config) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(cfg.Bucket),
		Key:    aws.String(cfg.Key),
	}
	if cfg.ContentType != "" {
		input.ContentType = aws.String(cfg.ContentType)
	}
	if len(cfg.Metadata) > 0 {
		input.Metadata = cfg.Metadata
	}

	output, err := u.s3Client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", errors.NewObjectError("createMultipartUpload", cfg.Bucket, cfg.Key, errors.Network(err))
	}

	return aws.ToString(output.UploadId), nil
}

// progressTracker serializes part completions into monotonic progress updates.
type progressTracker struct {
	mu     sync.Mutex
	loaded int64
	total  int64
	fn     s3types.ProgressFunc
}

func (p *progressTracker) add(n int64) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded += n
	p.fn(s3types.NewProgress(p.loaded, p.total))
}

func (u *Uploader) uploadParts(
	ctx context.Context,
	data []byte,
	uploadID string,
	partSize int64,
	numParts int,
	cfg Config,
) ([]awstypes.CompletedPart, error) {
	parts := make([]awstypes.CompletedPart, numParts)
	tracker := &progressTracker{total: int64(len(data)), fn: cfg.Progress}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency(cfg.Concurrency))

	for i := 0; i < numParts; i++ {
		partNumber := int32(i + 1)
		offset := int64(i) * partSize
		end := offset + partSize
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		body := data[offset:end]

		g.Go(func() error {
			output, err := u.s3Client.UploadPart(gctx, &s3.UploadPartInput{
				Bucket:     aws.String(cfg.Bucket),
				Key:        aws.String(cfg.Key),
				UploadId:   aws.String(uploadID),
				PartNumber: aws.Int32(partNumber),
				Body:       bytes.NewReader(body),
			})
			if err != nil {
				return errors.NewObjectError("uploadPart", cfg.Bucket, cfg.Key, errors.Network(err))
			}

			parts[partNumber-1] = awstypes.CompletedPart{
				ETag:       output.ETag,
				PartNumber: aws.Int32(partNumber),
			}
			tracker.add(int64(len(body)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

// abortMultipartUpload cleans up a failed multipart upload. It runs detached
// from ctx so a cancelled upload still releases its parts.
func (u *Uploader) abortMultipartUpload(ctx context.Context, bucket, key, uploadID string) {
	input := &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	}
	// Ignore errors during cleanup
	_, _ = u.s3Client.AbortMultipartUpload(context.WithoutCancel(ctx), input)
}
