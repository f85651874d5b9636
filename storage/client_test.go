package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

const mib = 1024 * 1024

func testCreds() *s3types.Credentials {
	return &s3types.Credentials{
		Provider:        s3types.ProviderR2,
		AccessKeyID:     "ak",
		SecretAccessKey: "sk",
		BucketName:      "bucket",
		Endpoint:        "https://0123456789abcdef0123456789abcdef.r2.cloudflarestorage.com",
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		creds   *s3types.Credentials
		wantErr bool
	}{
		{name: "nil credentials", creds: nil, wantErr: true},
		{name: "missing secret", creds: &s3types.Credentials{Provider: s3types.ProviderAWS, AccessKeyID: "a", BucketName: "b"}, wantErr: true},
		{name: "r2 without endpoint", creds: &s3types.Credentials{Provider: s3types.ProviderR2, AccessKeyID: "a", SecretAccessKey: "s", BucketName: "b"}, wantErr: true},
		{name: "complete r2", creds: testCreds()},
		{name: "complete aws", creds: &s3types.Credentials{Provider: s3types.ProviderAWS, AccessKeyID: "a", SecretAccessKey: "s", BucketName: "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(context.Background(), tt.creds, WithTimeout(time.Second))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInitialization(err))
				assert.Equal(t, errors.CodeInitialization, errors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.creds.BucketName, client.Bucket())
		})
	}
}

func TestUploadPathSelection(t *testing.T) {
	tests := []struct {
		name          string
		size          int
		wantMultipart bool
		wantParts     int
	}{
		{name: "empty", size: 0},
		{name: "exactly threshold", size: 5 * mib},
		{name: "one byte over threshold", size: 5*mib + 1, wantMultipart: true, wantParts: 2},
		{name: "three parts", size: 12 * mib, wantMultipart: true, wantParts: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeS3()
			client := NewWithAPI(fake, testCreds())
			data := testutil.GenerateRandomData(int64(tt.size), tt.size)
			var rec testutil.ProgressRecorder

			res, err := client.Upload(context.Background(), PutInput{
				Key:         "k/file.bin",
				Data:        data,
				ContentType: "application/octet-stream",
				Metadata:    map[string]string{"md5hash": testutil.CalculateMD5(data)},
				Progress:    rec.Func(),
			})
			require.NoError(t, err)
			assert.NotEmpty(t, res.ETag)
			assert.Equal(t, "https://0123456789abcdef0123456789abcdef.r2.cloudflarestorage.com/bucket/k/file.bin", res.Location)

			if tt.wantMultipart {
				assert.Equal(t, 0, fake.Calls("PutObject"))
				assert.Equal(t, 1, fake.Calls("CreateMultipartUpload"))
				assert.Equal(t, tt.wantParts, fake.Calls("UploadPart"))
			} else {
				assert.Equal(t, 1, fake.Calls("PutObject"))
				assert.Equal(t, 0, fake.Calls("CreateMultipartUpload"))
			}

			obj := fake.Object("k/file.bin")
			require.NotNil(t, obj)
			assert.True(t, bytes.Equal(data, obj.Data))
			assert.Equal(t, testutil.CalculateMD5(data), obj.Metadata["md5hash"])

			assert.True(t, rec.Monotonic())
			assert.Equal(t, 100, rec.Last().Percentage)
			assert.Equal(t, int64(tt.size), rec.Last().Loaded)
		})
	}
}

func TestPutMultipartBoundedConcurrency(t *testing.T) {
	fake := testutil.NewFakeS3()
	fake.PartDelay = 20 * time.Millisecond
	client := NewWithAPI(fake, testCreds())

	data := testutil.GenerateRandomData(1, 40*mib)
	_, err := client.PutMultipart(context.Background(), PutInput{Key: "big", Data: data})
	require.NoError(t, err)

	assert.Equal(t, 8, fake.Calls("UploadPart"))
	assert.LessOrEqual(t, fake.MaxConcurrentParts(), 4)
	assert.Greater(t, fake.MaxConcurrentParts(), 1)
	assert.True(t, bytes.Equal(data, fake.Object("big").Data))
}

func TestPutMultipartAbortsOnFailure(t *testing.T) {
	fake := testutil.NewFakeS3()
	fake.UploadPartHook = func(partNumber int32) error {
		if partNumber == 2 {
			return fmt.Errorf("connection reset")
		}
		return nil
	}
	client := NewWithAPI(fake, testCreds())

	_, err := client.PutMultipart(context.Background(), PutInput{
		Key:  "big",
		Data: testutil.GenerateRandomData(2, 11*mib),
	})
	require.Error(t, err)
	assert.Equal(t, 1, fake.Calls("AbortMultipartUpload"))
	assert.Equal(t, 0, fake.PendingUploads())
	assert.Nil(t, fake.Object("big"))
}

func TestPutRejectsEmptyKey(t *testing.T) {
	client := NewWithAPI(testutil.NewFakeS3(), testCreds())
	_, err := client.Put(context.Background(), PutInput{Data: []byte("x")})
	assert.True(t, errors.IsInvalidInput(err))
}

func TestGet(t *testing.T) {
	checksumErr := fmt.Errorf("read body: checksum did not match: algorithm CRC32")

	tests := []struct {
		name        string
		seed        bool
		hook        func(key string, call int, optFns []func(*s3.Options)) error
		wantErr     func(error) bool
		wantRetried bool
		wantCalls   int
	}{
		{
			name:      "plain download",
			seed:      true,
			wantCalls: 1,
		},
		{
			name:      "missing object",
			wantErr:   errors.IsNotFound,
			wantCalls: 1,
		},
		{
			name: "checksum quirk retried once",
			seed: true,
			hook: func(_ string, call int, optFns []func(*s3.Options)) error {
				if call == 1 {
					return checksumErr
				}
				if len(optFns) != 1 {
					return fmt.Errorf("retry should relax checksum validation")
				}
				return nil
			},
			wantRetried: true,
			wantCalls:   2,
		},
		{
			name: "checksum quirk persists",
			seed: true,
			hook: func(string, int, []func(*s3.Options)) error {
				return checksumErr
			},
			wantErr:   errors.IsChecksumTransport,
			wantCalls: 2,
		},
		{
			name: "other failures are not retried",
			seed: true,
			hook: func(string, int, []func(*s3.Options)) error {
				return fmt.Errorf("access denied")
			},
			wantErr:   func(err error) bool { return err != nil && !errors.IsNotFound(err) },
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := testutil.NewFakeS3()
			fake.GetHook = tt.hook
			if tt.seed {
				fake.Seed("k", []byte("payload"), map[string]string{"md5hash": "x"})
			}
			client := NewWithAPI(fake, testCreds())
			var rec testutil.ProgressRecorder

			res, err := client.Get(context.Background(), "k", rec.Func())
			assert.Equal(t, tt.wantCalls, fake.Calls("GetObject"))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), "unexpected error %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "payload", string(res.Data))
			assert.Equal(t, "x", res.Metadata["md5hash"])
			assert.Equal(t, tt.wantRetried, res.ChecksumRetried)
			assert.Equal(t, 100, rec.Last().Percentage)
		})
	}
}

func TestGetRetryKeepsProgressMonotonic(t *testing.T) {
	checksumErr := stderrors.New("checksum did not match: algorithm CRC32")
	calls := 0
	mock := testutil.NewMockBuilder().
		WithGetObject(func(context.Context, *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
			calls++
			// The retry streams one byte per read, so it restarts from 1/7.
			body := iotest.OneByteReader(strings.NewReader("payload"))
			if calls == 1 {
				body = io.MultiReader(strings.NewReader("payl"), iotest.ErrReader(checksumErr))
			}
			return &s3.GetObjectOutput{Body: io.NopCloser(body), ContentLength: aws.Int64(7)}, nil
		}).
		Build()
	client := NewWithAPI(mock, testCreds())
	var rec testutil.ProgressRecorder

	res, err := client.Get(context.Background(), "k", rec.Func())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, res.ChecksumRetried)
	assert.Equal(t, "payload", string(res.Data))

	updates := rec.Updates()
	require.NotEmpty(t, updates)
	assert.Equal(t, int64(4), updates[0].Loaded)
	assert.True(t, rec.Monotonic(), "progress went backwards: %+v", updates)
	assert.Equal(t, 100, rec.Last().Percentage)
}

func TestGetRequestsChecksumMode(t *testing.T) {
	tests := []struct {
		name    string
		opts    []s3types.Option
		wantSet bool
	}{
		{name: "enabled by default", wantSet: true},
		{name: "disabled permanently", opts: []s3types.Option{WithDisableChecksumValidation(true)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockBuilder().
				WithGetObject(func(_ context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
					assert.Equal(t, tt.wantSet, in.ChecksumMode == awstypes.ChecksumModeEnabled)
					return testutil.CreateGetObjectOutput([]byte("abc"), "text/plain"), nil
				}).
				Build()
			client := NewWithAPI(mock, testCreds(), tt.opts...)
			res, err := client.Get(context.Background(), "k", nil)
			require.NoError(t, err)
			assert.Equal(t, "abc", string(res.Data))
		})
	}
}

func TestGetEmptyBody(t *testing.T) {
	mock := testutil.NewMockBuilder().
		WithGetObject(func(context.Context, *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
			return &s3.GetObjectOutput{}, nil
		}).
		Build()
	client := NewWithAPI(mock, testCreds())

	_, err := client.Get(context.Background(), "k", nil)
	assert.True(t, errors.IsNotFound(err))
}

func TestHead(t *testing.T) {
	fake := testutil.NewFakeS3()
	fake.Seed("present", []byte("abc"), map[string]string{"MD5Hash": "ff"})
	client := NewWithAPI(fake, testCreds())
	ctx := context.Background()

	obj, err := client.Head(ctx, "present")
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, int64(3), obj.Size)
	assert.Equal(t, "ff", obj.Metadata["md5hash"])

	obj, err = client.Head(ctx, "absent")
	require.NoError(t, err)
	assert.Nil(t, obj)

	ok, err := client.Exists(ctx, "present")
	require.NoError(t, err)
	assert.True(t, ok)

	fake.HeadHook = func(string) error { return fmt.Errorf("forbidden") }
	_, err = client.Head(ctx, "present")
	require.Error(t, err)
	assert.False(t, errors.IsNotFound(err))
}

func TestIsNotFound(t *testing.T) {
	status404 := &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusNotFound}},
		Err:      stderrors.New("opaque"),
	}
	status403 := &smithyhttp.ResponseError{
		Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusForbidden}},
		Err:      stderrors.New("opaque"),
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed not found", testutil.NotFoundError(), true},
		{"typed no such key", fmt.Errorf("op: %w", testutil.NoSuchKeyError()), true},
		{"api error code", &smithy.GenericAPIError{Code: "NotFound"}, true},
		{"http 404", status404, true},
		{"http 403", status403, false},
		{"message", stderrors.New("api error NoSuchKey: gone"), true},
		{"unrelated", stderrors.New("timeout"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFound(tt.err))
		})
	}
}

func TestIsChecksumTransport(t *testing.T) {
	assert.True(t, isChecksumTransport(stderrors.New("ChecksumStream error occurred")))
	assert.True(t, isChecksumTransport(stderrors.New("checksum did not match")))
	assert.False(t, isChecksumTransport(&smithy.GenericAPIError{Code: "BadDigest", Message: "checksum mismatch"}))
	assert.False(t, isChecksumTransport(stderrors.New("timeout")))
	assert.False(t, isChecksumTransport(nil))
}

func TestDeleteAndList(t *testing.T) {
	fake := testutil.NewFakeS3()
	for i := 0; i < 2500; i++ {
		fake.Seed(fmt.Sprintf("p/%05d", i), []byte{byte(i)}, nil)
	}
	fake.Seed("other/x", []byte("x"), nil)
	client := NewWithAPI(fake, testCreds())
	ctx := context.Background()

	objs, err := client.List(ctx, "p/")
	require.NoError(t, err)
	assert.Len(t, objs, 2500)
	assert.Equal(t, 3, fake.Calls("ListObjectsV2"))
	assert.Equal(t, int64(1), objs[0].Size)

	require.NoError(t, client.Delete(ctx, "other/x"))
	require.NoError(t, client.Delete(ctx, "other/x"))
	assert.Nil(t, fake.Object("other/x"))

	fake.ListHook = func(string) error { return fmt.Errorf("denied") }
	_, err = client.List(ctx, "p/")
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	mock := testutil.NewMockBuilder().
		WithListObjectsV2(func(_ context.Context, in *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error) {
			assert.Equal(t, int32(1), aws.ToInt32(in.MaxKeys))
			assert.Equal(t, "bucket", aws.ToString(in.Bucket))
			return &s3.ListObjectsV2Output{}, nil
		}).
		Build()
	require.NoError(t, NewWithAPI(mock, testCreds()).Ping(context.Background()))

	failing := testutil.NewMockBuilder().WithAccessDenied().Build()
	assert.Error(t, NewWithAPI(failing, testCreds()).Ping(context.Background()))
}

func TestLocation(t *testing.T) {
	awsCreds := &s3types.Credentials{Provider: s3types.ProviderAWS, BucketName: "b"}
	loc, err := NewWithAPI(testutil.NewFakeS3(), awsCreds).Location("dir/a b.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://b.s3.amazonaws.com/dir/a%20b.pdf", loc)

	custom := &s3types.Credentials{Provider: s3types.ProviderCustom, BucketName: "b"}
	_, err = NewWithAPI(testutil.NewFakeS3(), custom).Location("k")
	assert.True(t, errors.IsInitialization(err))
}
