package credentials

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

// SecretsManagerAPI is the part of the AWS Secrets Manager client used here.
// It allows for mocking AWS SDK calls in unit tests.
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// Version stages accepted by WithVersion besides version ids.
var versionStages = map[string]bool{
	"AWSCURRENT":  true,
	"AWSPREVIOUS": true,
	"AWSPENDING":  true,
}

// SecretsManager reads the credential set from a JSON secret. The document
// uses the field names of s3types.Credentials:
//
//	{"provider":"r2","accessKeyId":"...","secretAccessKey":"...",
//	 "bucketName":"...","endpoint":"https://<account>.r2.cloudflarestorage.com"}
//
// The secret is read on every call.
type SecretsManager struct {
	client   SecretsManagerAPI
	secretID string
	version  string
}

type secretsConfig struct {
	region   string
	endpoint string
	version  string
	client   SecretsManagerAPI
}

// SecretsOption configures a SecretsManager.
type SecretsOption func(*secretsConfig)

// WithRegion sets the Secrets Manager region.
// Default: AWS SDK default region resolution.
func WithRegion(region string) SecretsOption {
	return func(c *secretsConfig) {
		c.region = region
	}
}

// WithEndpoint points the client at a custom endpoint such as LocalStack.
// Anonymous credentials are used with it.
func WithEndpoint(endpoint string) SecretsOption {
	return func(c *secretsConfig) {
		c.endpoint = endpoint
	}
}

// WithVersion reads a version id or a stage such as AWSPREVIOUS instead of
// the current version.
func WithVersion(version string) SecretsOption {
	return func(c *secretsConfig) {
		c.version = version
	}
}

// WithSecretsClient injects the Secrets Manager client.
func WithSecretsClient(client SecretsManagerAPI) SecretsOption {
	return func(c *secretsConfig) {
		c.client = client
	}
}

// NewSecretsManager creates a provider reading secretID.
func NewSecretsManager(ctx context.Context, secretID string, opts ...SecretsOption) (*SecretsManager, error) {
	if strings.TrimSpace(secretID) == "" {
		return nil, errors.NewError("credentials", errors.ErrInvalidInput).WithMessage("secret id is required")
	}

	cfg := &secretsConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	client := cfg.client
	if client == nil {
		var err error
		client, err = newSecretsClient(ctx, cfg)
		if err != nil {
			return nil, errors.NewError("credentials", errors.Kind(errors.ErrInitialization, err)).
				WithMessage("load AWS config")
		}
	}

	return &SecretsManager{
		client:   client,
		secretID: secretID,
		version:  cfg.version,
	}, nil
}

func newSecretsClient(ctx context.Context, cfg *secretsConfig) (*secretsmanager.Client, error) {
	if cfg.endpoint != "" {
		region := cfg.region
		if region == "" {
			region = s3types.DefaultRegion
		}
		awsCfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(aws.AnonymousCredentials{}),
		)
		if err != nil {
			return nil, err
		}
		return secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.endpoint)
		}), nil
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	return secretsmanager.NewFromConfig(awsCfg), nil
}

// GetCompleteCredentials reads and decodes the secret. A decodable but
// incomplete document yields (nil, nil).
func (s *SecretsManager) GetCompleteCredentials(ctx context.Context) (*s3types.Credentials, error) {
	input := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretID),
	}
	if s.version != "" {
		if versionStages[s.version] {
			input.VersionStage = aws.String(s.version)
		} else {
			input.VersionId = aws.String(s.version)
		}
	}

	out, err := s.client.GetSecretValue(ctx, input)
	if err != nil {
		return nil, s.mapError(err)
	}

	var raw []byte
	switch {
	case out.SecretString != nil:
		raw = []byte(*out.SecretString)
	case out.SecretBinary != nil:
		raw = out.SecretBinary
	default:
		return nil, errors.NewError("getCredentials", errors.ErrInitialization).
			WithMessage(fmt.Sprintf("secret %q has no value", s.secretID))
	}

	var creds s3types.Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, errors.NewError("getCredentials", errors.Kind(errors.ErrInitialization, err)).
			WithMessage(fmt.Sprintf("decode secret %q", s.secretID))
	}
	creds.Provider = s3types.Provider(strings.ToLower(string(creds.Provider)))
	if !creds.Complete() {
		return nil, nil
	}
	return &creds, nil
}

func (s *SecretsManager) mapError(err error) error {
	var rnf *types.ResourceNotFoundException
	if stderrors.As(err, &rnf) {
		return errors.NewError("getCredentials", errors.Kind(errors.ErrInitialization, err)).
			WithMessage(fmt.Sprintf("secret %q not found", s.secretID))
	}
	return errors.NewError("getCredentials", errors.Kind(errors.ErrInitialization, errors.Network(err))).
		WithMessage(fmt.Sprintf("read secret %q", s.secretID))
}
