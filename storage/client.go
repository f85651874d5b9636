// Package storage provides a thin client over the S3-compatible wire protocol.
//
// The Client is bound to a single credential set and bucket. It carries no
// business logic: callers decide what to upload and how to verify it.
package storage

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/internal/transfer/multipart"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/keys"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

// DefaultMultipartThreshold is the largest payload sent with a single PUT.
const DefaultMultipartThreshold int64 = 5 * 1024 * 1024

// Client represents a storage client bound to one bucket.
// It is safe for concurrent use.
type Client struct {
	// api is the underlying S3 wire client
	api s3api.S3API

	// creds is a copy of the credential set the client was built from
	creds s3types.Credentials

	// cfg holds the resolved client options
	cfg s3types.ClientConfig

	uploader *multipart.Uploader
	logger   *slog.Logger
}

func defaultConfig() *s3types.ClientConfig {
	return &s3types.ClientConfig{
		MaxRetries:         3,
		Concurrency:        multipart.DefaultConcurrency,
		PartSize:           multipart.DefaultPartSize,
		MultipartThreshold: DefaultMultipartThreshold,
	}
}

// New creates a client for creds. It fails with an initialization error when
// the credential set is incomplete. Custom endpoints always use path-style
// addressing because most S3-compatible backends lack virtual hosting.
//
// Example:
//
//	client, err := storage.New(ctx, creds,
//	    storage.WithMaxRetries(5),
//	    storage.WithLogger(logger),
//	)
func New(ctx context.Context, creds *s3types.Credentials, opts ...s3types.Option) (*Client, error) {
	if !creds.Complete() {
		return nil, errors.NewError("init", errors.ErrInitialization).
			WithMessage("storage credentials are incomplete")
	}

	clientCfg := defaultConfig()
	for _, opt := range opts {
		opt(clientCfg)
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(creds.RegionOrDefault()),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, ""),
		),
	}
	if clientCfg.MaxRetries > 0 {
		loadOpts = append(loadOpts, config.WithRetryMaxAttempts(clientCfg.MaxRetries))
	}
	if clientCfg.DisableChecksumValidation {
		loadOpts = append(loadOpts,
			config.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
			config.WithResponseChecksumValidation(aws.ResponseChecksumValidationWhenRequired),
		)
	}

	// Handle custom HTTP client or timeout
	switch {
	case clientCfg.CustomHTTPClient != nil:
		loadOpts = append(loadOpts, config.WithHTTPClient(clientCfg.CustomHTTPClient))
	case clientCfg.Timeout > 0:
		loadOpts = append(loadOpts, config.WithHTTPClient(&http.Client{Timeout: clientCfg.Timeout}))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.NewError("init", errors.Kind(errors.ErrInitialization, err))
	}

	var s3Opts []func(*s3.Options)
	if creds.Endpoint != "" {
		endpoint, err := keys.ParseEndpoint(creds.Endpoint)
		if err != nil {
			return nil, errors.NewError("init", errors.Kind(errors.ErrInitialization, err))
		}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint.String())
			o.UsePathStyle = true
		})
	}

	return newClient(s3.NewFromConfig(cfg, s3Opts...), creds, clientCfg), nil
}

// NewWithAPI creates a client over a custom S3API implementation.
// This is primarily used for testing with mocked clients.
func NewWithAPI(api s3api.S3API, creds *s3types.Credentials, opts ...s3types.Option) *Client {
	clientCfg := defaultConfig()
	for _, opt := range opts {
		opt(clientCfg)
	}
	return newClient(api, creds, clientCfg)
}

func newClient(api s3api.S3API, creds *s3types.Credentials, cfg *s3types.ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var c s3types.Credentials
	if creds != nil {
		c = *creds
	}
	return &Client{
		api:      api,
		creds:    c,
		cfg:      *cfg,
		uploader: multipart.NewUploader(api),
		logger:   logger.With("component", "storage", "bucket", c.BucketName),
	}
}

// Bucket returns the bucket every operation targets.
func (c *Client) Bucket() string {
	return c.creds.BucketName
}

// Credentials returns a copy of the credential set the client was built from.
func (c *Client) Credentials() s3types.Credentials {
	return c.creds
}

// MultipartThreshold returns the payload size above which Upload uses multipart.
func (c *Client) MultipartThreshold() int64 {
	return c.cfg.MultipartThreshold
}

// Location returns the canonical URL of key for the configured provider.
func (c *Client) Location(key string) (string, error) {
	loc, err := keys.ObjectURL(&c.creds, key)
	if err != nil {
		return "", errors.NewObjectError("location", c.creds.BucketName, key, errors.Kind(errors.ErrInitialization, err))
	}
	return loc, nil
}

// Ping verifies the credentials by listing at most one key.
func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	_, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.creds.BucketName),
		MaxKeys: aws.Int32(1),
	})
	c.observe("ping", start, err)
	if err != nil {
		return errors.NewError("ping", errors.Network(err)).WithBucket(c.creds.BucketName)
	}
	return nil
}
