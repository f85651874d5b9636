package storage

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

// WithMaxRetries sets the maximum number of attempts the SDK makes per request.
// Default is 3.
func WithMaxRetries(maxRetries int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout sets the timeout for individual requests.
// Default is no timeout (0). Ignored when a custom HTTP client is set.
func WithTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithConcurrency sets the number of multipart parts in flight.
// Default is 4.
func WithConcurrency(concurrency int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithPartSize sets the multipart part size. Values above 5 MiB are clamped,
// and the size is raised for any upload that would otherwise need more than
// 10,000 parts.
func WithPartSize(partSize int64) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithMultipartThreshold sets the largest payload sent with a single PUT.
// Default is 5 MiB.
func WithMultipartThreshold(threshold int64) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if threshold > 0 {
			c.MultipartThreshold = threshold
		}
	}
}

// WithDisableChecksumValidation turns off flexible checksums for every
// request instead of retrying reactively when a download trips over them.
func WithDisableChecksumValidation(disable bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.DisableChecksumValidation = disable
	}
}

// WithCustomHTTPClient allows providing a custom HTTP client.
func WithCustomHTTPClient(client *http.Client) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomHTTPClient = client
	}
}

// WithLogger sets the logger. Default discards.
func WithLogger(logger *slog.Logger) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Logger = logger
	}
}
