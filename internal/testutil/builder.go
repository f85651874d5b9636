package testutil

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// MockBuilder assembles a MockS3Client one operation at a time.
type MockBuilder struct {
	client *MockS3Client
}

// NewMockBuilder returns a builder for a mock with no behavior configured.
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{client: &MockS3Client{}}
}

// Build returns the configured mock.
func (b *MockBuilder) Build() *MockS3Client {
	return b.client
}

// WithGetObject answers GetObject with fn.
func (b *MockBuilder) WithGetObject(
	fn func(context.Context, *s3.GetObjectInput) (*s3.GetObjectOutput, error),
) *MockBuilder {
	b.client.GetObjectFunc = func(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return fn(ctx, in)
	}
	return b
}

// WithListObjectsV2 answers ListObjectsV2 with fn.
func (b *MockBuilder) WithListObjectsV2(
	fn func(context.Context, *s3.ListObjectsV2Input) (*s3.ListObjectsV2Output, error),
) *MockBuilder {
	b.client.ListObjectsV2Func = func(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
		return fn(ctx, in)
	}
	return b
}

// WithObjectNotFound makes every read report a missing key the way S3 does:
// NotFound for HEAD and NoSuchKey for GET.
func (b *MockBuilder) WithObjectNotFound() *MockBuilder {
	b.client.HeadObjectFunc = func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return nil, NotFoundError()
	}
	b.client.GetObjectFunc = func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return nil, NoSuchKeyError()
	}
	return b
}

// WithAccessDenied makes every operation fail with an AccessDenied API error.
func (b *MockBuilder) WithAccessDenied() *MockBuilder {
	denied := &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}

	b.client.PutObjectFunc = func(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, denied
	}
	b.client.GetObjectFunc = func(context.Context, *s3.GetObjectInput, ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
		return nil, denied
	}
	b.client.HeadObjectFunc = func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return nil, denied
	}
	b.client.DeleteObjectFunc = func(context.Context, *s3.DeleteObjectInput, ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
		return nil, denied
	}
	b.client.ListObjectsV2Func = func(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
		return nil, denied
	}
	return b
}
