package storage

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/internal/transfer/multipart"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

// PutInput describes an object to write.
type PutInput struct {
	Key         string
	Data        []byte
	ContentType string
	Metadata    map[string]string
	Progress    s3types.ProgressFunc
}

// GetResult is a downloaded object.
type GetResult struct {
	Data        []byte
	ETag        string
	ContentType string
	Metadata    map[string]string

	// ChecksumRetried is set when the first attempt failed checksum
	// validation in transport and the data came from the unvalidated retry.
	ChecksumRetried bool
}

// Upload writes in.Data with a single PUT when it fits under the multipart
// threshold and with a multipart upload otherwise.
func (c *Client) Upload(ctx context.Context, in PutInput) (*s3types.PutResult, error) {
	if int64(len(in.Data)) > c.cfg.MultipartThreshold {
		return c.PutMultipart(ctx, in)
	}
	return c.Put(ctx, in)
}

// Put writes in.Data with a single PutObject request.
func (c *Client) Put(ctx context.Context, in PutInput) (*s3types.PutResult, error) {
	if in.Key == "" {
		return nil, errors.NewError("put", errors.ErrInvalidInput).
			WithBucket(c.creds.BucketName).
			WithMessage("key cannot be empty")
	}

	body := newProgressReader(in.Data, in.Progress)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.creds.BucketName),
		Key:           aws.String(in.Key),
		Body:          body,
		ContentLength: aws.Int64(int64(len(in.Data))),
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}
	if len(in.Metadata) > 0 {
		input.Metadata = in.Metadata
	}

	start := time.Now()
	output, err := c.api.PutObject(ctx, input)
	c.observe("put", start, err)
	if err != nil {
		return nil, errors.NewObjectError("put", c.creds.BucketName, in.Key, errors.Network(err))
	}
	body.finish()
	metrics.Get().RecordUpload(int64(len(in.Data)))

	c.logger.Debug("object stored", "key", in.Key, "size", len(in.Data))
	return &s3types.PutResult{
		ETag:     aws.ToString(output.ETag),
		Location: c.location(in.Key),
	}, nil
}

// PutMultipart writes in.Data as a multipart upload with parts of at most
// 5 MiB and a bounded number of parts in flight.
func (c *Client) PutMultipart(ctx context.Context, in PutInput) (*s3types.PutResult, error) {
	if in.Key == "" {
		return nil, errors.NewError("putMultipart", errors.ErrInvalidInput).
			WithBucket(c.creds.BucketName).
			WithMessage("key cannot be empty")
	}

	start := time.Now()
	result, err := c.uploader.Upload(ctx, in.Data, multipart.Config{
		Bucket:      c.creds.BucketName,
		Key:         in.Key,
		ContentType: in.ContentType,
		Metadata:    in.Metadata,
		PartSize:    c.cfg.PartSize,
		Concurrency: c.cfg.Concurrency,
		Progress:    in.Progress,
	})
	c.observe("putMultipart", start, err)
	if err != nil {
		return nil, err
	}
	metrics.Get().RecordUpload(result.Size)
	metrics.Get().RecordParts(result.Parts)

	c.logger.Debug("multipart object stored", "key", in.Key, "size", result.Size, "parts", result.Parts)
	return &s3types.PutResult{
		ETag:     result.ETag,
		Location: c.location(in.Key),
	}, nil
}

// Get downloads key. The first attempt requests response checksum
// validation; if that fails in transport the request is retried exactly
// once with validation only when required.
func (c *Client) Get(ctx context.Context, key string, progress s3types.ProgressFunc) (*GetResult, error) {
	start := time.Now()
	progress = forwardOnly(progress)
	res, err := c.get(ctx, key, progress, !c.cfg.DisableChecksumValidation)
	if err != nil && errors.IsChecksumTransport(err) && ctx.Err() == nil {
		c.logger.Warn("checksum validation failed in transport, retrying without it", "key", key, "error", err)
		metrics.Get().RecordChecksumRetry()
		res, err = c.get(ctx, key, progress, false, func(o *s3.Options) {
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		})
		if res != nil {
			res.ChecksumRetried = true
		}
	}
	c.observe("get", start, err)
	if err != nil {
		return nil, err
	}
	metrics.Get().RecordDownload(int64(len(res.Data)))
	return res, nil
}

func (c *Client) get(
	ctx context.Context,
	key string,
	progress s3types.ProgressFunc,
	checksum bool,
	optFns ...func(*s3.Options),
) (*GetResult, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.creds.BucketName),
		Key:    aws.String(key),
	}
	if checksum {
		input.ChecksumMode = awstypes.ChecksumModeEnabled
	}

	output, err := c.api.GetObject(ctx, input, optFns...)
	if err != nil {
		return nil, c.classify("get", key, err)
	}
	if output.Body == nil {
		return nil, errors.NewObjectError("get", c.creds.BucketName, key, errors.ErrNotFound).
			WithMessage("response body is empty")
	}
	defer output.Body.Close()

	total := aws.ToInt64(output.ContentLength)
	data, err := io.ReadAll(&countingReader{r: output.Body, total: total, fn: progress})
	if err != nil {
		return nil, c.classify("get", key, err)
	}
	if progress != nil {
		progress(s3types.NewProgress(int64(len(data)), int64(len(data))))
	}

	return &GetResult{
		Data:        data,
		ETag:        aws.ToString(output.ETag),
		ContentType: aws.ToString(output.ContentType),
		Metadata:    output.Metadata,
	}, nil
}

// Head returns key's attributes and user metadata, or nil when the object
// does not exist.
func (c *Client) Head(ctx context.Context, key string) (*s3types.StoredObject, error) {
	start := time.Now()
	output, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.creds.BucketName),
		Key:    aws.String(key),
	})
	if err != nil && isNotFound(err) {
		c.observe("head", start, nil)
		return nil, nil
	}
	c.observe("head", start, err)
	if err != nil {
		return nil, errors.NewObjectError("head", c.creds.BucketName, key, errors.Network(err))
	}

	return &s3types.StoredObject{
		Key:          key,
		Size:         aws.ToInt64(output.ContentLength),
		LastModified: aws.ToTime(output.LastModified),
		ETag:         aws.ToString(output.ETag),
		ContentType:  aws.ToString(output.ContentType),
		Metadata:     output.Metadata,
	}, nil
}

// Exists reports whether key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	obj, err := c.Head(ctx, key)
	if err != nil {
		return false, err
	}
	return obj != nil, nil
}

// Delete issues a single DeleteObject request. It does not wait for the
// deletion to become visible.
func (c *Client) Delete(ctx context.Context, key string) error {
	start := time.Now()
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.creds.BucketName),
		Key:    aws.String(key),
	})
	c.observe("delete", start, err)
	if err != nil {
		return errors.NewObjectError("delete", c.creds.BucketName, key, errors.Network(err))
	}
	return nil
}

// List returns every object under prefix, following continuation tokens.
// Listing entries carry no content type or metadata.
func (c *Client) List(ctx context.Context, prefix string) ([]s3types.StoredObject, error) {
	start := time.Now()
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.creds.BucketName),
		Prefix: aws.String(prefix),
	})

	var objects []s3types.StoredObject
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			c.observe("list", start, err)
			return nil, errors.NewError("list", errors.Network(err)).
				WithBucket(c.creds.BucketName).
				WithMessage("prefix " + prefix)
		}
		for _, obj := range page.Contents {
			objects = append(objects, s3types.StoredObject{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         aws.ToString(obj.ETag),
			})
		}
	}
	c.observe("list", start, nil)
	return objects, nil
}

func (c *Client) location(key string) string {
	loc, err := c.Location(key)
	if err != nil {
		c.logger.Debug("no location for key", "key", key, "error", err)
		return ""
	}
	return loc
}

func (c *Client) classify(op, key string, err error) error {
	switch {
	case isNotFound(err):
		err = errors.Kind(errors.ErrNotFound, err)
	case isChecksumTransport(err):
		err = errors.Kind(errors.ErrChecksumTransport, err)
	default:
		err = errors.Network(err)
	}
	return errors.NewObjectError(op, c.creds.BucketName, key, err)
}

func (c *Client) observe(op string, start time.Time, err error) {
	metrics.Get().ObserveRequest(op, start, err)
}

// progressReader reports upload progress while the SDK reads the body. It
// stays seekable so the SDK can rewind for signing and retries, and only
// reports forward movement.
type progressReader struct {
	*bytes.Reader
	total    int64
	reported int64
	fn       s3types.ProgressFunc
}

func newProgressReader(data []byte, fn s3types.ProgressFunc) *progressReader {
	return &progressReader{Reader: bytes.NewReader(data), total: int64(len(data)), reported: -1, fn: fn}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.Reader.Read(b)
	if p.fn != nil && n > 0 {
		if pos := p.total - int64(p.Reader.Len()); pos > p.reported && pos < p.total {
			p.reported = pos
			p.fn(s3types.NewProgress(pos, p.total))
		}
	}
	return n, err
}

// finish reports completion once the request succeeded.
func (p *progressReader) finish() {
	if p.fn != nil && p.reported < p.total {
		p.reported = p.total
		p.fn(s3types.NewProgress(p.total, p.total))
	}
}

// forwardOnly drops updates whose Loaded is below the last one passed on,
// so a retried download restarting from zero does not move progress back.
func forwardOnly(fn s3types.ProgressFunc) s3types.ProgressFunc {
	if fn == nil {
		return nil
	}
	last := int64(-1)
	return func(p s3types.Progress) {
		if p.Loaded < last {
			return
		}
		last = p.Loaded
		fn(p)
	}
}

type countingReader struct {
	r      io.Reader
	loaded int64
	total  int64
	fn     s3types.ProgressFunc
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.loaded += int64(n)
	if c.fn != nil && n > 0 && c.total > 0 && c.loaded < c.total {
		c.fn(s3types.NewProgress(c.loaded, c.total))
	}
	return n, err
}
