package testutil

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

// GenerateRandomData generates size pseudo-random bytes from seed.
// The same seed always yields the same bytes.
func GenerateRandomData(seed int64, size int) []byte {
	r := rand.New(rand.NewSource(seed))
	data := make([]byte, size)
	_, _ = r.Read(data)
	return data
}

// CalculateMD5 returns the lowercase hex MD5 of data.
func CalculateMD5(data []byte) string {
	return fmt.Sprintf("%x", md5.Sum(data))
}

// CalculateETag returns the quoted single-part ETag for data.
func CalculateETag(data []byte) string {
	return fmt.Sprintf(`"%x"`, md5.Sum(data))
}

// CreateGetObjectOutput creates a GET response streaming data.
func CreateGetObjectOutput(data []byte, contentType string) *s3.GetObjectOutput {
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ETag:          aws.String(CalculateETag(data)),
		LastModified:  aws.Time(time.Now()),
	}
}

// NotFoundError is what HeadObject returns for a missing key.
func NotFoundError() error {
	return &types.NotFound{Message: aws.String("Not Found")}
}

// NoSuchKeyError is what GetObject returns for a missing key.
func NoSuchKeyError() error {
	return &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
}

// ProgressRecorder collects progress updates from concurrent transfers.
type ProgressRecorder struct {
	mu      sync.Mutex
	updates []s3types.Progress
}

// Func returns the callback to hand to a transfer.
func (r *ProgressRecorder) Func() s3types.ProgressFunc {
	return func(p s3types.Progress) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.updates = append(r.updates, p)
	}
}

// Updates returns a copy of every update received so far.
func (r *ProgressRecorder) Updates() []s3types.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]s3types.Progress(nil), r.updates...)
}

// Last returns the most recent update, or the zero value.
func (r *ProgressRecorder) Last() s3types.Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return s3types.Progress{}
	}
	return r.updates[len(r.updates)-1]
}

// Monotonic reports whether Loaded never decreased.
func (r *ProgressRecorder) Monotonic() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 1; i < len(r.updates); i++ {
		if r.updates[i].Loaded < r.updates[i-1].Loaded {
			return false
		}
	}
	return true
}
