// Package metadata builds and reads the user metadata attached to every
// object the sync engine writes.
//
// Keys travel as x-amz-meta-* headers and come back lower-cased, so lookups
// are case-insensitive. The original file name is base64 encoded because
// header values must be ASCII.
package metadata

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

// Metadata keys as written.
const (
	KeyOriginalFileName = "originalfilename"
	KeyUploadDate       = "uploaddate"
	KeyMD5Hash          = "md5hash"
	KeyFileSize         = "filesize"
)

// UnknownFileName is stored when the source path has no base name.
const UnknownFileName = "unknown"

// uploadDateLayout matches ISO-8601 with millisecond precision.
const uploadDateLayout = "2006-01-02T15:04:05.000Z07:00"

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)

// Build returns the header map for a file at filePath.
func Build(filePath string, size int64, md5Hash string, now time.Time) map[string]string {
	name := baseName(filePath)
	if name == "" {
		name = UnknownFileName
	}
	return map[string]string{
		KeyOriginalFileName: EncodeHeaderValue(name),
		KeyUploadDate:       now.UTC().Format(uploadDateLayout),
		KeyMD5Hash:          md5Hash,
		KeyFileSize:         strconv.FormatInt(size, 10),
	}
}

// Parse decodes a header map. Missing fields are left empty.
func Parse(m map[string]string) s3types.CustomMetadata {
	return s3types.CustomMetadata{
		OriginalFileName: OriginalFileName(m),
		UploadDate:       UploadDate(m),
		MD5Hash:          MD5(m),
		FileSize:         FileSize(m),
	}
}

// MD5 returns the stored content hash.
func MD5(m map[string]string) string {
	return lookup(m, KeyMD5Hash)
}

// OriginalFileName returns the decoded original file name.
func OriginalFileName(m map[string]string) string {
	v := lookup(m, KeyOriginalFileName)
	if v == "" {
		return ""
	}
	return DecodeHeaderValue(v)
}

// UploadDate returns the stored upload timestamp.
func UploadDate(m map[string]string) string {
	return lookup(m, KeyUploadDate)
}

// FileSize returns the stored decimal byte count.
func FileSize(m map[string]string) string {
	return lookup(m, KeyFileSize)
}

// Valid reports whether all four fields are present and non-empty.
func Valid(m map[string]string) bool {
	if m == nil {
		return false
	}
	c := Parse(m)
	return c.MD5Hash != "" && c.OriginalFileName != "" && c.UploadDate != "" && c.FileSize != ""
}

// Equal reports whether two header maps describe the same content.
func Equal(a, b map[string]string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return MD5(a) == MD5(b) && FileSize(a) == FileSize(b)
}

// Describe renders a one-line summary for logs and the CLI.
func Describe(m map[string]string) string {
	if m == nil {
		return "no metadata"
	}
	c := Parse(m)
	return fmt.Sprintf("file: %s, uploaded: %s, size: %s bytes, md5: %s",
		c.OriginalFileName, c.UploadDate, c.FileSize, c.MD5Hash)
}

// EncodeHeaderValue base64 encodes the UTF-8 bytes of s.
func EncodeHeaderValue(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// DecodeHeaderValue reverses EncodeHeaderValue. Values that are not
// base64, or that do not decode to UTF-8 text, are returned unchanged so
// metadata written by older clients still reads back.
func DecodeHeaderValue(s string) string {
	if !base64Pattern.MatchString(s) {
		return s
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil || !utf8.Valid(decoded) || hasControl(decoded) {
		return s
	}
	return string(decoded)
}

func hasControl(b []byte) bool {
	for _, r := range string(b) {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}

// lookup finds key exactly, then case-insensitively to cover the legacy
// camelCase spelling.
func lookup(m map[string]string, key string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	for k, v := range m {
		if v != "" && strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func baseName(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
