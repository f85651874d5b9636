package errors

// ErrorCode represents a specific error condition in the sync engine.
// Error codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Resource errors.

	// CodeNotFound indicates a local file or stored object does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeUploadInProgress indicates another upload of the same key is in flight.
	CodeUploadInProgress ErrorCode = "UPLOAD_IN_PROGRESS"

	// Validation errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInitialization indicates credentials are missing or the client could not be built.
	CodeInitialization ErrorCode = "INITIALIZATION_FAILED"

	// Consistency errors.

	// CodeIntegrity indicates a content hash did not match its expected value.
	CodeIntegrity ErrorCode = "INTEGRITY_MISMATCH"

	// CodeDeletionConsistency indicates an object survived every delete-confirm attempt.
	CodeDeletionConsistency ErrorCode = "DELETION_NOT_CONFIRMED"

	// Infrastructure errors.

	// CodeNetwork indicates a transport-level failure talking to a remote endpoint.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeProviderAPI indicates the provider management API failed or returned an error envelope.
	CodeProviderAPI ErrorCode = "PROVIDER_API_ERROR"

	// CodeSync indicates a transfer failed for a reason without a more specific code.
	CodeSync ErrorCode = "SYNC_FAILED"

	// CodeCanceled indicates the caller cancelled the operation.
	CodeCanceled ErrorCode = "CANCELED"

	// Generic errors.

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)
