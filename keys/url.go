package keys

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

// ParseEndpoint parses a credential endpoint, assuming https when the
// scheme is missing.
func ParseEndpoint(endpoint string) (*url.URL, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is empty")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return u, nil
}

// ObjectURL returns the provider's canonical location for key:
// virtual-hosted style for AWS and endpoint/bucket/key for everything else.
func ObjectURL(creds *s3types.Credentials, key string) (string, error) {
	encoded := EncodeForURL(key)
	if creds.Provider == s3types.ProviderAWS {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", creds.BucketName, encoded), nil
	}
	if creds.Endpoint == "" {
		return "", fmt.Errorf("provider %q requires an endpoint", creds.Provider)
	}
	u, err := ParseEndpoint(creds.Endpoint)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s://%s/%s/%s", u.Scheme, u.Host, creds.BucketName, encoded), nil
}
