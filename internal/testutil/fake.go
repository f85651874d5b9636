package testutil

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/internal/s3api"
)

// FakeObject is an object held by FakeS3.
type FakeObject struct {
	Data         []byte
	ContentType  string
	Metadata     map[string]string
	ETag         string
	LastModified time.Time
}

type fakeUpload struct {
	key         string
	contentType string
	metadata    map[string]string
	parts       map[int32][]byte
}

// FakeS3 is an in-memory, single-bucket S3API. Metadata keys are lower-cased
// on write the way real backends return them.
type FakeS3 struct {
	// DeleteLag keeps a deleted object visible to this many HEAD requests.
	DeleteLag int

	// PartDelay is slept inside every UploadPart to expose concurrency.
	PartDelay time.Duration

	// GetHook runs before every GetObject; a non-nil error is returned as is.
	GetHook func(key string, call int, optFns []func(*s3.Options)) error

	// HeadHook runs before every HeadObject; a non-nil error is returned as is.
	HeadHook func(key string) error

	// ListHook runs before every ListObjectsV2 page.
	ListHook func(prefix string) error

	// PutHook runs before every PutObject.
	PutHook func(key string) error

	// UploadPartHook runs before every UploadPart.
	UploadPartHook func(partNumber int32) error

	mu          sync.Mutex
	objects     map[string]*FakeObject
	ghosts      map[string]int
	ghostObjs   map[string]*FakeObject
	uploads     map[string]*fakeUpload
	nextUpload  int
	calls       map[string]int
	getCalls    map[string]int
	inflight    int
	maxInflight int
}

var _ s3api.S3API = (*FakeS3)(nil)

// NewFakeS3 returns an empty fake bucket.
func NewFakeS3() *FakeS3 {
	return &FakeS3{
		objects:   make(map[string]*FakeObject),
		ghosts:    make(map[string]int),
		ghostObjs: make(map[string]*FakeObject),
		uploads:   make(map[string]*fakeUpload),
		calls:     make(map[string]int),
		getCalls:  make(map[string]int),
	}
}

// Seed stores an object directly, bypassing hooks and counters.
func (f *FakeS3) Seed(key string, data []byte, meta map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = &FakeObject{
		Data:         append([]byte(nil), data...),
		Metadata:     lowerKeys(meta),
		ETag:         CalculateETag(data),
		LastModified: time.Now(),
	}
}

// Object returns a stored object, or nil.
func (f *FakeS3) Object(key string) *FakeObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key]
}

// Keys returns every stored key in order.
func (f *FakeS3) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Calls returns how many times op was invoked.
func (f *FakeS3) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// MaxConcurrentParts returns the highest number of UploadPart calls seen in flight.
func (f *FakeS3) MaxConcurrentParts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInflight
}

// PendingUploads returns how many multipart uploads are neither completed nor aborted.
func (f *FakeS3) PendingUploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func (f *FakeS3) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
}

// PutObject stores the body under the key.
func (f *FakeS3) PutObject(
	ctx context.Context,
	params *s3.PutObjectInput,
	_ ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	f.record("PutObject")
	key := aws.ToString(params.Key)
	if f.PutHook != nil {
		if err := f.PutHook(key); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	if params.Body != nil {
		var err error
		if data, err = io.ReadAll(params.Body); err != nil {
			return nil, err
		}
	}

	obj := &FakeObject{
		Data:         data,
		ContentType:  aws.ToString(params.ContentType),
		Metadata:     lowerKeys(params.Metadata),
		ETag:         CalculateETag(data),
		LastModified: time.Now(),
	}

	f.mu.Lock()
	f.objects[key] = obj
	delete(f.ghosts, key)
	f.mu.Unlock()

	return &s3.PutObjectOutput{ETag: aws.String(obj.ETag)}, nil
}

// GetObject streams a stored object.
func (f *FakeS3) GetObject(
	ctx context.Context,
	params *s3.GetObjectInput,
	optFns ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	f.record("GetObject")
	key := aws.ToString(params.Key)

	f.mu.Lock()
	f.getCalls[key]++
	call := f.getCalls[key]
	f.mu.Unlock()

	if f.GetHook != nil {
		if err := f.GetHook(key, call, optFns); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	obj, ok := f.objects[key]
	f.mu.Unlock()
	if !ok {
		return nil, NoSuchKeyError()
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.Data)),
		ContentLength: aws.Int64(int64(len(obj.Data))),
		ContentType:   aws.String(obj.ContentType),
		ETag:          aws.String(obj.ETag),
		LastModified:  aws.Time(obj.LastModified),
		Metadata:      copyMap(obj.Metadata),
	}, nil
}

// DeleteObject removes a key. Deleting a missing key succeeds.
func (f *FakeS3) DeleteObject(
	ctx context.Context,
	params *s3.DeleteObjectInput,
	_ ...func(*s3.Options),
) (*s3.DeleteObjectOutput, error) {
	f.record("DeleteObject")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := aws.ToString(params.Key)

	f.mu.Lock()
	defer f.mu.Unlock()
	if obj, ok := f.objects[key]; ok {
		delete(f.objects, key)
		if f.DeleteLag > 0 {
			f.ghosts[key] = f.DeleteLag
			f.ghostObjs[key] = obj
		}
	}
	return &s3.DeleteObjectOutput{}, nil
}

// ListObjectsV2 lists keys under the prefix in lexical order, honoring
// MaxKeys and continuation tokens.
func (f *FakeS3) ListObjectsV2(
	ctx context.Context,
	params *s3.ListObjectsV2Input,
	_ ...func(*s3.Options),
) (*s3.ListObjectsV2Output, error) {
	f.record("ListObjectsV2")
	prefix := aws.ToString(params.Prefix)
	if f.ListHook != nil {
		if err := f.ListHook(prefix); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	after := aws.ToString(params.ContinuationToken)
	if after != "" {
		i := sort.SearchStrings(keys, after)
		for i < len(keys) && keys[i] <= after {
			i++
		}
		keys = keys[i:]
	}

	maxKeys := int(aws.ToInt32(params.MaxKeys))
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	var next string
	if len(keys) > maxKeys {
		keys = keys[:maxKeys]
		next = keys[len(keys)-1]
	}

	contents := make([]types.Object, 0, len(keys))
	for _, k := range keys {
		obj := f.objects[k]
		contents = append(contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(obj.Data))),
			ETag:         aws.String(obj.ETag),
			LastModified: aws.Time(obj.LastModified),
		})
	}

	out := &s3.ListObjectsV2Output{
		Contents:    contents,
		KeyCount:    aws.Int32(int32(len(contents))),
		Prefix:      params.Prefix,
		IsTruncated: aws.Bool(next != ""),
	}
	if next != "" {
		out.NextContinuationToken = aws.String(next)
	}
	return out, nil
}

// HeadObject returns object attributes and metadata.
func (f *FakeS3) HeadObject(
	ctx context.Context,
	params *s3.HeadObjectInput,
	_ ...func(*s3.Options),
) (*s3.HeadObjectOutput, error) {
	f.record("HeadObject")
	key := aws.ToString(params.Key)
	if f.HeadHook != nil {
		if err := f.HeadHook(key); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	obj, ok := f.objects[key]
	if !ok && f.ghosts[key] > 0 {
		f.ghosts[key]--
		obj, ok = f.ghostObjs[key], true
	}
	f.mu.Unlock()
	if !ok {
		return nil, NotFoundError()
	}

	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.Data))),
		ContentType:   aws.String(obj.ContentType),
		ETag:          aws.String(obj.ETag),
		LastModified:  aws.Time(obj.LastModified),
		Metadata:      copyMap(obj.Metadata),
	}, nil
}

// CreateMultipartUpload starts a multipart upload.
func (f *FakeS3) CreateMultipartUpload(
	ctx context.Context,
	params *s3.CreateMultipartUploadInput,
	_ ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	f.record("CreateMultipartUpload")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextUpload++
	id := fmt.Sprintf("upload-%d", f.nextUpload)
	f.uploads[id] = &fakeUpload{
		key:         aws.ToString(params.Key),
		contentType: aws.ToString(params.ContentType),
		metadata:    lowerKeys(params.Metadata),
		parts:       make(map[int32][]byte),
	}
	return &s3.CreateMultipartUploadOutput{
		Bucket:   params.Bucket,
		Key:      params.Key,
		UploadId: aws.String(id),
	}, nil
}

// UploadPart stores one part.
func (f *FakeS3) UploadPart(
	ctx context.Context,
	params *s3.UploadPartInput,
	_ ...func(*s3.Options),
) (*s3.UploadPartOutput, error) {
	f.record("UploadPart")

	f.mu.Lock()
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()

	partNumber := aws.ToInt32(params.PartNumber)
	if f.UploadPartHook != nil {
		if err := f.UploadPartHook(partNumber); err != nil {
			return nil, err
		}
	}
	if f.PartDelay > 0 {
		select {
		case <-time.After(f.PartDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	up, ok := f.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{Message: aws.String("no such upload")}
	}
	up.parts[partNumber] = data
	return &s3.UploadPartOutput{ETag: aws.String(CalculateETag(data))}, nil
}

// CompleteMultipartUpload assembles the listed parts into the object.
func (f *FakeS3) CompleteMultipartUpload(
	ctx context.Context,
	params *s3.CompleteMultipartUploadInput,
	_ ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	f.record("CompleteMultipartUpload")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	id := aws.ToString(params.UploadId)
	up, ok := f.uploads[id]
	if !ok {
		return nil, &types.NoSuchUpload{Message: aws.String("no such upload")}
	}

	var buf bytes.Buffer
	for i, p := range params.MultipartUpload.Parts {
		n := aws.ToInt32(p.PartNumber)
		if n != int32(i+1) {
			return nil, fmt.Errorf("InvalidPartOrder: part %d at position %d", n, i)
		}
		data, ok := up.parts[n]
		if !ok {
			return nil, fmt.Errorf("InvalidPart: part %d was not uploaded", n)
		}
		buf.Write(data)
	}

	data := buf.Bytes()
	etag := fmt.Sprintf(`"%x-%d"`, md5.Sum(data), len(params.MultipartUpload.Parts))
	f.objects[up.key] = &FakeObject{
		Data:         data,
		ContentType:  up.contentType,
		Metadata:     up.metadata,
		ETag:         etag,
		LastModified: time.Now(),
	}
	delete(f.uploads, id)

	return &s3.CompleteMultipartUploadOutput{
		Bucket: params.Bucket,
		Key:    params.Key,
		ETag:   aws.String(etag),
	}, nil
}

// AbortMultipartUpload discards an upload and its parts.
func (f *FakeS3) AbortMultipartUpload(
	_ context.Context,
	params *s3.AbortMultipartUploadInput,
	_ ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	f.record("AbortMultipartUpload")
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.uploads, aws.ToString(params.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

func lowerKeys(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
