// Package multipart handles multipart upload operations.
// Parts are uploaded concurrently with a bounded number in flight, and a
// failed part or completion aborts the upload so no orphaned parts remain.
package multipart
