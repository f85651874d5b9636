// Package integrity computes and compares MD5 digests of local files and
// in-memory buffers.
package integrity

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/internal/pool"
)

// Result describes a verified file.
type Result struct {
	// Hash is the lowercase hex MD5; empty when the file could not be read
	Hash string

	// Size is the number of bytes hashed
	Size int64

	// Valid is true when the file was hashed and matched the expectation, if any
	Valid bool
}

// Verifier hashes files on a billy filesystem.
type Verifier struct {
	fs billy.Filesystem
}

// NewVerifier returns a Verifier over fs, or over the OS filesystem rooted
// at "/" when fs is nil.
func NewVerifier(fs billy.Filesystem) *Verifier {
	if fs == nil {
		fs = osfs.New("/")
	}
	return &Verifier{fs: fs}
}

// HashFile returns the MD5 of the file at path.
func (v *Verifier) HashFile(path string) (string, error) {
	hash, _, err := v.hashFile(path)
	if err != nil {
		return "", errors.NewError("hashFile", errors.Kind(errors.ErrIntegrity, err)).WithPath(path)
	}
	return hash, nil
}

func (v *Verifier) hashFile(path string) (string, int64, error) {
	f, err := v.fs.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	return HashReader(f)
}

// Verify hashes the file at path and compares it to expected when expected
// is non-empty. Read failures are reported as an invalid result, never as
// an error.
func (v *Verifier) Verify(path, expected string) Result {
	hash, size, err := v.hashFile(path)
	if err != nil {
		return Result{}
	}
	return Result{
		Hash:  hash,
		Size:  size,
		Valid: expected == "" || Match(hash, expected),
	}
}

// HashBytes returns the MD5 of data.
func HashBytes(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// HashReader consumes r and returns its MD5 and length.
func HashReader(r io.Reader) (string, int64, error) {
	h := md5.New()
	n, err := pool.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Match compares two hex digests, ignoring case and any surrounding quotes.
func Match(a, b string) bool {
	return strings.EqualFold(strings.Trim(a, `"`), strings.Trim(b, `"`))
}
