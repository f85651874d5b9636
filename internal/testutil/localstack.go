package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

const (
	localStackImage  = "localstack/localstack:3.8"
	localStackRegion = "us-east-1"
)

// LocalStackContainer is a running LocalStack instance serving S3.
type LocalStackContainer struct {
	container *localstack.LocalStackContainer
	endpoint  string
}

// Credentials returns a complete custom-provider credential set pointing at
// the container, so tests build clients the way production code does.
func (c *LocalStackContainer) Credentials(bucket string) *s3types.Credentials {
	return &s3types.Credentials{
		Provider:        s3types.ProviderCustom,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Region:          localStackRegion,
		BucketName:      bucket,
		Endpoint:        c.endpoint,
	}
}

// SetupLocalStackTest starts LocalStack and returns the container, a raw S3
// client for fixture setup, and a cleanup function. It skips under -short.
func SetupLocalStackTest(t *testing.T) (*LocalStackContainer, *s3.Client, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := localstack.Run(ctx, localStackImage,
		testcontainers.WithEnv(map[string]string{"SERVICES": "s3"}),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/_localstack/health").
				WithPort("4566/tcp").
				WithStartupTimeout(2*time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("start LocalStack: %v", err)
	}
	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate LocalStack: %v", err)
		}
	}

	endpoint, err := container.PortEndpoint(ctx, "4566/tcp", "http")
	if err != nil {
		cleanup()
		t.Fatalf("resolve LocalStack endpoint: %v", err)
	}

	client := s3.New(s3.Options{
		Region:       localStackRegion,
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
		Credentials:  aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "test", SecretAccessKey: "test"}, nil
		}),
	})

	return &LocalStackContainer{container: container, endpoint: endpoint}, client, cleanup
}

// CreateTestBucketInLocalStack creates bucketName.
func CreateTestBucketInLocalStack(ctx context.Context, client *s3.Client, bucketName string) error {
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucketName)}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucketName, err)
	}
	return nil
}

// CleanupTestBucketInLocalStack empties and removes bucketName.
func CleanupTestBucketInLocalStack(ctx context.Context, client *s3.Client, bucketName string) error {
	pages := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{Bucket: aws.String(bucketName)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list %s: %w", bucketName, err)
		}
		if len(page.Contents) == 0 {
			continue
		}
		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		if _, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucketName),
			Delete: &types.Delete{Objects: ids},
		}); err != nil {
			return fmt.Errorf("empty %s: %w", bucketName, err)
		}
	}
	if _, err := client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucketName)}); err != nil {
		return fmt.Errorf("delete bucket %s: %w", bucketName, err)
	}
	return nil
}
