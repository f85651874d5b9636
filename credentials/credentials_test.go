package credentials

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

// mockSecretsManagerClient implements SecretsManagerAPI for testing
type mockSecretsManagerClient struct {
	getSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

func (m *mockSecretsManagerClient) GetSecretValue(
	ctx context.Context,
	params *secretsmanager.GetSecretValueInput,
	optFns ...func(*secretsmanager.Options),
) (*secretsmanager.GetSecretValueOutput, error) {
	if m.getSecretValueFunc != nil {
		return m.getSecretValueFunc(ctx, params, optFns...)
	}
	return nil, stderrors.New("GetSecretValue not implemented")
}

func r2Creds() s3types.Credentials {
	return s3types.Credentials{
		Provider:        s3types.ProviderR2,
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		BucketName:      "bucket",
		Endpoint:        "https://0123456789abcdef0123456789abcdef.r2.cloudflarestorage.com",
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	s := NewStore(s3types.Credentials{})

	got, err := s.GetCompleteCredentials(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, Complete(ctx, s))

	s.Set(r2Creds())
	got, err = s.GetCompleteCredentials(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "bucket", got.BucketName)
	assert.True(t, Complete(ctx, s))

	// Callers get a copy.
	got.BucketName = "changed"
	assert.Equal(t, "bucket", s.Get().BucketName)

	s.Clear()
	assert.False(t, Complete(ctx, s))
}

func TestStoreCompleteness(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *s3types.Credentials)
		want   bool
	}{
		{name: "complete r2", mutate: func(*s3types.Credentials) {}, want: true},
		{name: "missing access key", mutate: func(c *s3types.Credentials) { c.AccessKeyID = "" }},
		{name: "missing secret", mutate: func(c *s3types.Credentials) { c.SecretAccessKey = "" }},
		{name: "missing bucket", mutate: func(c *s3types.Credentials) { c.BucketName = "" }},
		{name: "r2 without endpoint", mutate: func(c *s3types.Credentials) { c.Endpoint = "" }},
		{
			name: "aws without endpoint",
			mutate: func(c *s3types.Credentials) {
				c.Provider = s3types.ProviderAWS
				c.Endpoint = ""
			},
			want: true,
		},
		{name: "missing provider", mutate: func(c *s3types.Credentials) { c.Provider = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := r2Creds()
			tt.mutate(&c)
			assert.Equal(t, tt.want, Complete(context.Background(), NewStore(c)))
		})
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore(r2Creds())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Set(r2Creds())
		}()
		go func() {
			defer wg.Done()
			_, err := s.GetCompleteCredentials(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestStoreCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStore(r2Creds()).GetCompleteCredentials(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompleteNilProvider(t *testing.T) {
	assert.False(t, Complete(context.Background(), nil))
}

func TestNewSecretsManager(t *testing.T) {
	_, err := NewSecretsManager(context.Background(), " ")
	assert.True(t, errors.IsInvalidInput(err))
}

func TestSecretsManager(t *testing.T) {
	tests := []struct {
		name      string
		version   string
		output    *secretsmanager.GetSecretValueOutput
		err       error
		wantNil   bool
		wantErr   func(error) bool
		wantStage string
		wantID    string
	}{
		{
			name: "string secret",
			output: &secretsmanager.GetSecretValueOutput{
				SecretString: aws.String(`{"provider":"R2","accessKeyId":"AKID","secretAccessKey":"SECRET",` +
					`"bucketName":"bucket","endpoint":"https://0123456789abcdef0123456789abcdef.r2.cloudflarestorage.com"}`),
			},
		},
		{
			name: "binary secret",
			output: &secretsmanager.GetSecretValueOutput{
				SecretBinary: []byte(`{"provider":"aws","accessKeyId":"AKID","secretAccessKey":"SECRET","bucketName":"bucket"}`),
			},
		},
		{
			name:    "incomplete document",
			output:  &secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"provider":"r2","bucketName":"bucket"}`)},
			wantNil: true,
		},
		{
			name:    "malformed document",
			output:  &secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{not json`)},
			wantErr: errors.IsInitialization,
		},
		{
			name:    "empty secret",
			output:  &secretsmanager.GetSecretValueOutput{},
			wantErr: errors.IsInitialization,
		},
		{
			name:    "missing secret",
			err:     &types.ResourceNotFoundException{Message: aws.String("no such secret")},
			wantErr: errors.IsInitialization,
		},
		{
			name:    "cancelled",
			err:     context.Canceled,
			wantErr: errors.IsCanceled,
		},
		{
			name:      "version stage",
			version:   "AWSPREVIOUS",
			output:    &secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{}`)},
			wantNil:   true,
			wantStage: "AWSPREVIOUS",
		},
		{
			name:    "version id",
			version: "v-123",
			output:  &secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{}`)},
			wantNil: true,
			wantID:  "v-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var input *secretsmanager.GetSecretValueInput
			mock := &mockSecretsManagerClient{
				getSecretValueFunc: func(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
					input = params
					return tt.output, tt.err
				},
			}

			sm, err := NewSecretsManager(context.Background(), "s3sync/creds",
				WithSecretsClient(mock), WithVersion(tt.version))
			require.NoError(t, err)

			creds, err := sm.GetCompleteCredentials(context.Background())
			require.NotNil(t, input)
			assert.Equal(t, "s3sync/creds", aws.ToString(input.SecretId))
			assert.Equal(t, tt.wantStage, aws.ToString(input.VersionStage))
			assert.Equal(t, tt.wantID, aws.ToString(input.VersionId))

			switch {
			case tt.wantErr != nil:
				require.Error(t, err)
				assert.True(t, tt.wantErr(err), err.Error())
			case tt.wantNil:
				require.NoError(t, err)
				assert.Nil(t, creds)
			default:
				require.NoError(t, err)
				require.NotNil(t, creds)
				assert.True(t, creds.Complete())
				assert.Equal(t, "bucket", creds.BucketName)
			}
		})
	}
}

func TestSecretsManagerNormalizesProvider(t *testing.T) {
	mock := &mockSecretsManagerClient{
		getSecretValueFunc: func(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
			return &secretsmanager.GetSecretValueOutput{
				SecretString: aws.String(`{"provider":"MinIO","accessKeyId":"a","secretAccessKey":"b",` +
					`"bucketName":"c","endpoint":"http://localhost:9000"}`),
			}, nil
		},
	}
	sm, err := NewSecretsManager(context.Background(), "id", WithSecretsClient(mock))
	require.NoError(t, err)

	creds, err := sm.GetCompleteCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, s3types.ProviderMinIO, creds.Provider)
}
