// Package errors provides the error taxonomy shared by every sync component.
//
// Kinds are sentinel values matched with errors.Is. Operations attach context
// through *Error, which keeps the kind reachable through Unwrap.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error represents a sync operation error with context about the operation that failed.
type Error struct {
	// Op is the operation that failed (e.g., "upload", "download", "delete")
	Op string

	// Code classifies the failure; derived from the wrapped kind when empty
	Code ErrorCode

	// Bucket is the bucket name (if applicable)
	Bucket string

	// Key is the object key (if applicable)
	Key string

	// Path is the local file path (if applicable)
	Path string

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	switch {
	case e.Bucket != "" && e.Key != "":
		return fmt.Sprintf("s3sync.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	case e.Key != "" && e.Path != "":
		return fmt.Sprintf("s3sync.%s %s (%s): %v", e.Op, e.Key, e.Path, e.Err)
	case e.Key != "":
		return fmt.Sprintf("s3sync.%s object %s: %v", e.Op, e.Key, e.Err)
	case e.Path != "":
		return fmt.Sprintf("s3sync.%s file %s: %v", e.Op, e.Path, e.Err)
	case e.Bucket != "":
		return fmt.Sprintf("s3sync.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("s3sync.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithPath adds local file path context to an existing error.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithCode overrides the derived error code.
func (e *Error) WithCode(code ErrorCode) *Error {
	e.Code = code
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// Sentinel errors naming each failure kind.
var (
	// ErrInitialization indicates missing or invalid credentials
	ErrInitialization = errors.New("s3sync: initialization failed")

	// ErrNotFound indicates that a local file or stored object is absent
	ErrNotFound = errors.New("s3sync: not found")

	// ErrIntegrity indicates a hash mismatch before or after a transfer
	ErrIntegrity = errors.New("s3sync: integrity check failed")

	// ErrDeletionConsistency indicates the object is still present after all delete-confirm retries
	ErrDeletionConsistency = errors.New("s3sync: object still present after delete")

	// ErrProviderAPI indicates the provider management API failed
	ErrProviderAPI = errors.New("s3sync: provider api error")

	// ErrNetwork indicates a transport failure
	ErrNetwork = errors.New("s3sync: network error")

	// ErrSync indicates a transfer failure without a more specific kind
	ErrSync = errors.New("s3sync: sync failed")

	// ErrUploadInProgress indicates another upload of the same key is in flight
	ErrUploadInProgress = errors.New("s3sync: upload already in progress")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("s3sync: invalid input")

	// ErrChecksumTransport marks the backend quirk where response checksum validation fails in transport
	ErrChecksumTransport = errors.New("s3sync: checksum validation transport failure")
)

// kinds lists the sentinels that count as an already-classified error.
var kinds = []struct {
	err  error
	code ErrorCode
}{
	{ErrInitialization, CodeInitialization},
	{ErrNotFound, CodeNotFound},
	{ErrIntegrity, CodeIntegrity},
	{ErrDeletionConsistency, CodeDeletionConsistency},
	{ErrProviderAPI, CodeProviderAPI},
	{ErrUploadInProgress, CodeUploadInProgress},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrNetwork, CodeNetwork},
	{ErrSync, CodeSync},
}

// CodeOf returns the ErrorCode for err. An explicit Code on an *Error wins;
// otherwise the first matching kind decides.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCanceled
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return CodeUnknown
}

// Classified reports whether err already carries a distinct kind that callers
// see unwrapped. Network and sync failures do not count.
func Classified(err error) bool {
	for _, k := range kinds {
		if k.err == ErrNetwork || k.err == ErrSync {
			continue
		}
		if errors.Is(err, k.err) {
			return true
		}
	}
	return false
}

// Kind joins a sentinel kind with its cause so both stay reachable.
func Kind(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// Network marks err as a transport failure when it is one, leaving other
// errors untouched.
func Network(err error) error {
	if err == nil || errors.Is(err, ErrNetwork) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Kind(ErrNetwork, err)
	}
	return err
}

// IsInitialization checks if an error indicates missing or invalid credentials.
func IsInitialization(err error) bool {
	return errors.Is(err, ErrInitialization)
}

// IsNotFound checks if an error indicates that a file or object was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsIntegrity checks if an error indicates a hash mismatch.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

// IsDeletionConsistency checks if an error indicates an object outlived its deletion.
func IsDeletionConsistency(err error) bool {
	return errors.Is(err, ErrDeletionConsistency)
}

// IsProviderAPI checks if an error came from the provider management API.
func IsProviderAPI(err error) bool {
	return errors.Is(err, ErrProviderAPI)
}

// IsNetwork checks if an error is a transport failure.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsSync checks if an error is a generic sync failure.
func IsSync(err error) bool {
	return errors.Is(err, ErrSync)
}

// IsUploadInProgress checks if an error indicates a concurrent upload of the same key.
func IsUploadInProgress(err error) bool {
	return errors.Is(err, ErrUploadInProgress)
}

// IsInvalidInput checks if an error indicates invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsChecksumTransport checks if an error is the checksum-validation transport quirk.
func IsChecksumTransport(err error) bool {
	return errors.Is(err, ErrChecksumTransport)
}

// IsCanceled checks if an error was caused by context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
