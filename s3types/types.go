// Package s3types provides shared type definitions for the sync engine.
package s3types

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Provider identifies the S3-compatible backend behind a credential set.
type Provider string

// Known providers
const (
	// ProviderAWS is Amazon S3
	ProviderAWS Provider = "aws"

	// ProviderR2 is Cloudflare R2
	ProviderR2 Provider = "r2"

	// ProviderMinIO is a MinIO deployment
	ProviderMinIO Provider = "minio"

	// ProviderCustom is any other S3-compatible endpoint
	ProviderCustom Provider = "custom"
)

// DefaultRegion is used when a credential set carries no region.
const DefaultRegion = "us-east-1"

// Credentials is the active storage credential set.
type Credentials struct {
	// Provider identifies the backend
	Provider Provider `json:"provider" yaml:"provider"`

	// AccessKeyID is the access key
	AccessKeyID string `json:"accessKeyId" yaml:"access_key_id"`

	// SecretAccessKey is the secret key
	SecretAccessKey string `json:"secretAccessKey" yaml:"secret_access_key"`

	// Region is optional and defaults to DefaultRegion
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// BucketName is the bucket every operation targets
	BucketName string `json:"bucketName" yaml:"bucket_name"`

	// Endpoint is required for every provider except AWS
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// Complete reports whether every required field is present.
func (c *Credentials) Complete() bool {
	if c == nil {
		return false
	}
	if c.Provider == "" || c.AccessKeyID == "" || c.SecretAccessKey == "" || c.BucketName == "" {
		return false
	}
	if c.Provider != ProviderAWS && c.Endpoint == "" {
		return false
	}
	return true
}

// RegionOrDefault returns the configured region or DefaultRegion.
func (c *Credentials) RegionOrDefault() string {
	if c.Region == "" {
		return DefaultRegion
	}
	return c.Region
}

// StoredObject represents an object in the bucket.
type StoredObject struct {
	// Key is the object key (path)
	Key string

	// Size is the object size in bytes
	Size int64

	// LastModified is when the object was last modified
	LastModified time.Time

	// ETag is the entity tag for the object
	ETag string

	// ContentType is only populated by HEAD
	ContentType string

	// Metadata holds user metadata with lower-cased keys; only populated by HEAD
	Metadata map[string]string
}

// CustomMetadata is the decoded user metadata written on every uploaded object.
type CustomMetadata struct {
	// OriginalFileName is the decoded base name of the uploaded file
	OriginalFileName string

	// UploadDate is the ISO-8601 upload timestamp as stored
	UploadDate string

	// MD5Hash is the lowercase hex MD5 of the content
	MD5Hash string

	// FileSize is the decimal byte count as stored
	FileSize string
}

// Progress describes how far a transfer has advanced.
type Progress struct {
	Loaded     int64
	Total      int64
	Percentage int
}

// ProgressFunc receives transfer progress updates.
type ProgressFunc func(Progress)

// NewProgress builds a Progress with a rounded percentage.
func NewProgress(loaded, total int64) Progress {
	p := Progress{Loaded: loaded, Total: total}
	if total > 0 {
		p.Percentage = int((loaded*100 + total/2) / total)
	} else {
		p.Percentage = 100
	}
	return p
}

// PutResult is returned by the storage client after a successful upload.
type PutResult struct {
	ETag     string
	Location string
}

// OutcomeStatus tells callers how an upload or download ended.
type OutcomeStatus string

// Outcome statuses
const (
	// StatusUploaded means bytes were transferred to a fresh object
	StatusUploaded OutcomeStatus = "uploaded"

	// StatusDuplicate means an existing object already holds the content
	StatusDuplicate OutcomeStatus = "duplicate"

	// StatusDownloaded means the object was written to disk
	StatusDownloaded OutcomeStatus = "downloaded"

	// StatusCanceled means the caller cancelled the operation
	StatusCanceled OutcomeStatus = "canceled"
)

// UploadOutcome is the result of an upload request.
type UploadOutcome struct {
	Status       OutcomeStatus
	Key          string
	ETag         string
	Location     string
	MD5Hash      string
	Size         int64
	IsDuplicate  bool
	DuplicateKey string
}

// DownloadOutcome is the result of a download request.
type DownloadOutcome struct {
	Status OutcomeStatus
	Key    string
	Path   string
	Size   int64

	// MD5Hash is the verified hash; empty when verification was skipped
	MD5Hash string

	// Verified reports whether the written file was checked against stored metadata
	Verified bool
}

// URLStrategy selects how a public URL is built.
type URLStrategy string

// URL strategies
const (
	// StrategyCustom uses the configured custom domain
	StrategyCustom URLStrategy = "custom"

	// StrategyProviderDev uses the provider-hosted development domain
	StrategyProviderDev URLStrategy = "providerDev"

	// StrategyDisabled uses the canonical endpoint/bucket/key URL
	StrategyDisabled URLStrategy = "disabled"

	// StrategyAuto tries custom, providerDev and disabled in order
	StrategyAuto URLStrategy = "auto"
)

// DuplicateStats summarizes duplicated content under the sync prefix.
type DuplicateStats struct {
	TotalFiles      int
	DuplicateGroups int
	DuplicateFiles  int
	SavedSpace      int64
	Skipped         int
}

// CredentialProvider supplies the active credential set on demand.
// An incomplete set is reported as (nil, nil).
type CredentialProvider interface {
	GetCompleteCredentials(ctx context.Context) (*Credentials, error)
}

// KeyNamer maps a logical item and file name to a storage key.
type KeyNamer interface {
	Generate(itemID int64, fileName, hierarchy string) string
}

// ContentTypeGuesser returns a MIME type for a file path.
type ContentTypeGuesser interface {
	Guess(path string) string
}

// Configuration types for functional options

// ClientConfig holds configuration for the storage client.
type ClientConfig struct {
	MaxRetries                int
	Timeout                   time.Duration
	Concurrency               int
	PartSize                  int64
	MultipartThreshold        int64
	DisableChecksumValidation bool
	CustomHTTPClient          *http.Client
	Logger                    *slog.Logger
}

// UploadOptionConfig holds configuration for sync uploads.
type UploadOptionConfig struct {
	Progress        ProgressFunc
	CheckDuplicates bool
	ContentType     string
}

// DownloadOptionConfig holds configuration for sync downloads.
type DownloadOptionConfig struct {
	Progress        ProgressFunc
	VerifyIntegrity bool
}

type (
	// Option is a functional option for configuring the storage client.
	Option func(*ClientConfig)
	// UploadOption is a functional option for configuring sync uploads.
	UploadOption func(*UploadOptionConfig)
	// DownloadOption is a functional option for configuring sync downloads.
	DownloadOption func(*DownloadOptionConfig)
)
