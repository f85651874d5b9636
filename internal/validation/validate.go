// Package validation checks object keys, bucket names and request headers
// before they reach the storage backend.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
)

const (
	maxKeyLength           = 1024
	maxMetadataKeyLength   = 128
	maxMetadataValueLength = 2048
)

var mimePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9!#$&^_.+-]*/[a-zA-Z0-9][a-zA-Z0-9!#$&^_.+-]*(\s*;.*)?$`)

// ObjectKey rejects keys the backend would refuse or that escape the bucket
// root when mapped to a local path.
func ObjectKey(key string) error {
	switch {
	case key == "":
		return invalidKey(key, "key cannot be empty")
	case len(key) > maxKeyLength:
		return invalidKey(key, fmt.Sprintf("key cannot exceed %d bytes", maxKeyLength))
	case strings.HasPrefix(key, "/"):
		return invalidKey(key, "key cannot start with a slash")
	case hasTraversal(key):
		return invalidKey(key, "key cannot contain '..' segments")
	case hasControl(key):
		return invalidKey(key, "key cannot contain control characters")
	}
	return nil
}

// BucketName applies the DNS-compatible naming rules shared by S3, R2 and
// MinIO.
func BucketName(bucket string) error {
	if len(bucket) < 3 || len(bucket) > 63 {
		return invalidBucket(bucket, "bucket name must be between 3 and 63 characters long")
	}
	for _, r := range bucket {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.' || r == '-') {
			return invalidBucket(bucket, "bucket name can only contain lowercase letters, numbers, dots and hyphens")
		}
	}
	first, last := bucket[0], bucket[len(bucket)-1]
	if first == '.' || first == '-' || last == '.' || last == '-' {
		return invalidBucket(bucket, "bucket name must start and end with a letter or number")
	}
	if strings.Contains(bucket, "..") {
		return invalidBucket(bucket, "bucket name cannot contain adjacent dots")
	}
	if looksLikeIPv4(bucket) {
		return invalidBucket(bucket, "bucket name cannot be formatted as an IP address")
	}
	return nil
}

// ContentType accepts an empty value or a type/subtype pair with optional
// parameters.
func ContentType(contentType string) error {
	if contentType == "" || mimePattern.MatchString(contentType) {
		return nil
	}
	return errors.NewError("validate", errors.ErrInvalidInput).
		WithMessage(fmt.Sprintf("invalid content type %q", contentType))
}

// Metadata checks user metadata headers. Values must already be
// header-safe ASCII.
func Metadata(md map[string]string) error {
	for k, v := range md {
		if k == "" || len(k) > maxMetadataKeyLength {
			return invalidMetadata(fmt.Sprintf("metadata key %q must be 1-%d characters", k, maxMetadataKeyLength))
		}
		lower := strings.ToLower(k)
		if strings.HasPrefix(lower, "x-amz-") || strings.HasPrefix(lower, "aws:") {
			return invalidMetadata(fmt.Sprintf("metadata key %q uses a reserved prefix", k))
		}
		if !printableASCII(k, false) {
			return invalidMetadata(fmt.Sprintf("metadata key %q must be printable ASCII without spaces", k))
		}
		if len(v) > maxMetadataValueLength {
			return invalidMetadata(fmt.Sprintf("metadata value for %q cannot exceed %d bytes", k, maxMetadataValueLength))
		}
		if !printableASCII(v, true) {
			return invalidMetadata(fmt.Sprintf("metadata value for %q must be printable ASCII", k))
		}
	}
	return nil
}

func hasTraversal(key string) bool {
	for _, seg := range strings.FieldsFunc(key, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

func printableASCII(s string, allowSpace bool) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' && allowSpace {
			continue
		}
		if c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}

func looksLikeIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 || strings.Trim(p, "0123456789") != "" {
			return false
		}
	}
	return true
}

func invalidKey(key, msg string) error {
	return errors.NewError("validate", errors.ErrInvalidInput).WithKey(key).WithMessage(msg)
}

func invalidBucket(bucket, msg string) error {
	return errors.NewError("validate", errors.ErrInvalidInput).WithBucket(bucket).WithMessage(msg)
}

func invalidMetadata(msg string) error {
	return errors.NewError("validate", errors.ErrInvalidInput).WithMessage(msg)
}
