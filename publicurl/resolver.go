// Package publicurl builds externally reachable URLs for stored objects.
//
// Resolution walks an ordered strategy chain: the configured custom domain,
// then the provider's managed development domain, then the canonical
// endpoint/bucket/key URL. A failing strategy is logged and the next one is
// tried; when all fail a generic URL is built from whatever is known.
package publicurl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/keys"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/providerapi"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/s3types"
)

const (
	// DefaultCacheTTL is how long a managed domain lookup is reused.
	DefaultCacheTTL = 5 * time.Minute

	// UnknownBucket stands in for a missing bucket name in the generic URL.
	UnknownBucket = "unknown-bucket"

	cacheSize = 64
)

var (
	accountHostPattern = regexp.MustCompile(`^([a-f0-9]{32})\.r2\.cloudflarestorage\.com$`)
	domainPattern      = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
)

// DomainAPI is the part of the provider management API the resolver calls.
type DomainAPI interface {
	GetManagedDomain(ctx context.Context, bucket string) (*providerapi.ManagedDomain, error)
	SetManagedDomain(ctx context.Context, bucket string, enabled bool) (*providerapi.ManagedDomain, error)
	GetCustomDomain(ctx context.Context, bucket, domain string) (*providerapi.CustomDomain, error)
}

// APIFactory builds a DomainAPI for an account.
type APIFactory func(accountID string) (DomainAPI, error)

// Resolver resolves public URLs. It reads credentials on every call so
// credential changes take effect without rebuilding it.
type Resolver struct {
	creds        s3types.CredentialProvider
	customDomain string
	apiFactory   APIFactory
	cache        *expirable.LRU[string, *providerapi.ManagedDomain]
	logger       *slog.Logger
}

type resolverConfig struct {
	customDomain string
	apiFactory   APIFactory
	cacheTTL     time.Duration
	logger       *slog.Logger
}

// Option configures a Resolver.
type Option func(*resolverConfig)

// WithCustomDomain sets the custom domain used by the custom strategy.
func WithCustomDomain(domain string) Option {
	return func(c *resolverConfig) {
		c.customDomain = strings.TrimSpace(domain)
	}
}

// WithAPIToken enables the providerDev strategy with a management API
// bearer token. opts are passed to every providerapi client.
func WithAPIToken(token string, opts ...providerapi.Option) Option {
	return func(c *resolverConfig) {
		if strings.TrimSpace(token) == "" {
			c.apiFactory = nil
			return
		}
		c.apiFactory = func(accountID string) (DomainAPI, error) {
			return providerapi.New(token, accountID, opts...)
		}
	}
}

// WithAPIFactory enables the providerDev strategy with a custom API client.
func WithAPIFactory(f APIFactory) Option {
	return func(c *resolverConfig) {
		c.apiFactory = f
	}
}

// WithCacheTTL sets how long managed domain lookups are cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *resolverConfig) {
		c.cacheTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *resolverConfig) {
		c.logger = logger
	}
}

// New returns a Resolver reading credentials from creds.
func New(creds s3types.CredentialProvider, opts ...Option) *Resolver {
	cfg := &resolverConfig{cacheTTL: DefaultCacheTTL}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{
		creds:        creds,
		customDomain: cfg.customDomain,
		apiFactory:   cfg.apiFactory,
		cache:        expirable.NewLRU[string, *providerapi.ManagedDomain](cacheSize, nil, cfg.cacheTTL),
		logger:       logger.With("component", "publicurl"),
	}
}

// chain returns the strategies tried for s.
func chain(s s3types.URLStrategy) []s3types.URLStrategy {
	switch s {
	case s3types.StrategyCustom, s3types.StrategyProviderDev, s3types.StrategyDisabled:
		return []s3types.URLStrategy{s}
	default:
		return []s3types.URLStrategy{s3types.StrategyCustom, s3types.StrategyProviderDev, s3types.StrategyDisabled}
	}
}

// Resolve returns a URL for key. Strategy failures fall through to the next
// strategy and finally to a generic URL, so only a cancelled context makes
// it fail. An empty strategy means auto.
func (r *Resolver) Resolve(ctx context.Context, key string, strategy s3types.URLStrategy) (string, error) {
	for _, s := range chain(strategy) {
		u, err := r.resolveWith(ctx, key, s)
		metrics.Get().RecordURLStrategy(string(s), err)
		if err == nil {
			r.logger.Debug("url resolved", "key", key, "strategy", s, "url", u)
			return u, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		r.logger.Info("url strategy failed", "key", key, "strategy", s, "error", err)
	}

	u := r.fallbackURL(ctx, key)
	r.logger.Info("using fallback url", "key", key, "url", u)
	return u, nil
}

// ResolveStrict runs only strategy and returns its error instead of falling
// back. Auto is not accepted.
func (r *Resolver) ResolveStrict(ctx context.Context, key string, strategy s3types.URLStrategy) (string, error) {
	if strategy == s3types.StrategyAuto || strategy == "" {
		return "", errors.NewError("resolveStrict", errors.ErrInvalidInput).
			WithKey(key).
			WithMessage("strict resolution needs a concrete strategy")
	}
	u, err := r.resolveWith(ctx, key, strategy)
	metrics.Get().RecordURLStrategy(string(strategy), err)
	if err != nil {
		return "", errors.NewError("resolve."+string(strategy), err).WithKey(key)
	}
	return u, nil
}

func (r *Resolver) resolveWith(ctx context.Context, key string, s s3types.URLStrategy) (string, error) {
	switch s {
	case s3types.StrategyCustom:
		return r.customURL(key)
	case s3types.StrategyProviderDev:
		return r.devURL(ctx, key)
	case s3types.StrategyDisabled:
		return r.standardURL(ctx, key)
	}
	return "", fmt.Errorf("%w: unknown url strategy %q", errors.ErrInvalidInput, s)
}

func (r *Resolver) customURL(key string) (string, error) {
	if r.customDomain == "" {
		return "", fmt.Errorf("%w: no custom domain configured", errors.ErrInitialization)
	}
	if !ValidCustomDomain(r.customDomain) {
		return "", fmt.Errorf("%w: custom domain %q is malformed", errors.ErrInvalidInput, r.customDomain)
	}
	base := r.customDomain
	if !hasScheme(base) {
		base = "https://" + base
	}
	return strings.TrimSuffix(base, "/") + "/" + keys.EncodeForURL(key), nil
}

// devTarget is everything the providerDev strategy needs.
type devTarget struct {
	api       DomainAPI
	accountID string
	bucket    string
}

func (r *Resolver) devTarget(ctx context.Context) (*devTarget, error) {
	creds, err := r.credentials(ctx)
	if err != nil {
		return nil, err
	}
	if creds.Provider != s3types.ProviderR2 {
		return nil, fmt.Errorf("%w: provider %q has no development domain", errors.ErrInitialization, creds.Provider)
	}
	if r.apiFactory == nil {
		return nil, fmt.Errorf("%w: no management api token configured", errors.ErrInitialization)
	}
	accountID, ok := AccountIDFromEndpoint(creds.Endpoint)
	if !ok {
		return nil, fmt.Errorf("%w: no account id in endpoint %q", errors.ErrInitialization, creds.Endpoint)
	}
	api, err := r.apiFactory(accountID)
	if err != nil {
		return nil, err
	}
	return &devTarget{api: api, accountID: accountID, bucket: creds.BucketName}, nil
}

// devURL asks the management API for the bucket's managed domain and falls
// back to the account-derived development URL when the API cannot help.
func (r *Resolver) devURL(ctx context.Context, key string) (string, error) {
	t, err := r.devTarget(ctx)
	if err != nil {
		return "", err
	}
	encoded := keys.EncodeForURL(key)

	domain, err := r.managedDomain(ctx, t)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.logger.Warn("managed domain lookup failed, using account url", "bucket", t.bucket, "error", err)
	case !domain.Enabled:
		r.logger.Info("managed domain is not enabled, using account url", "bucket", t.bucket)
	default:
		return domain.URL() + "/" + encoded, nil
	}
	return AccountDevURL(t.accountID, key), nil
}

func (r *Resolver) managedDomain(ctx context.Context, t *devTarget) (*providerapi.ManagedDomain, error) {
	cacheKey := t.accountID + "/" + t.bucket
	if d, ok := r.cache.Get(cacheKey); ok {
		return d, nil
	}
	d, err := t.api.GetManagedDomain(ctx, t.bucket)
	if err != nil {
		return nil, err
	}
	r.cache.Add(cacheKey, d)
	return d, nil
}

func (r *Resolver) standardURL(ctx context.Context, key string) (string, error) {
	creds, err := r.credentials(ctx)
	if err != nil {
		return "", err
	}
	if creds.Provider == s3types.ProviderAWS && creds.Endpoint == "" && creds.BucketName != "" {
		u, err := keys.ObjectURL(creds, key)
		if err != nil {
			return "", fmt.Errorf("%w: %w", errors.ErrInitialization, err)
		}
		return u, nil
	}
	if creds.Endpoint == "" || creds.BucketName == "" {
		return "", fmt.Errorf("%w: standard url needs an endpoint and a bucket", errors.ErrInitialization)
	}
	u, err := keys.ParseEndpoint(creds.Endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrInitialization, err)
	}
	return fmt.Sprintf("%s://%s/%s/%s", u.Scheme, u.Host, creds.BucketName, keys.EncodeForURL(key)), nil
}

// fallbackURL never fails: it prefers the standard URL and otherwise builds
// a generic one with a placeholder bucket when needed.
func (r *Resolver) fallbackURL(ctx context.Context, key string) string {
	if u, err := r.standardURL(ctx, key); err == nil {
		return u
	}
	bucket := UnknownBucket
	if r.creds != nil {
		if creds, err := r.creds.GetCompleteCredentials(ctx); err == nil && creds != nil && creds.BucketName != "" {
			bucket = creds.BucketName
		}
	}
	return fmt.Sprintf("https://s3.amazonaws.com/%s/%s", bucket, keys.EncodeForURL(key))
}

func (r *Resolver) credentials(ctx context.Context) (*s3types.Credentials, error) {
	if r.creds == nil {
		return nil, fmt.Errorf("%w: no credential provider", errors.ErrInitialization)
	}
	creds, err := r.creds.GetCompleteCredentials(ctx)
	if err != nil {
		return nil, err
	}
	if creds == nil {
		return nil, fmt.Errorf("%w: storage credentials are incomplete", errors.ErrInitialization)
	}
	return creds, nil
}

// EnableDevDomain turns on the bucket's managed development domain and
// returns key's URL on it.
func (r *Resolver) EnableDevDomain(ctx context.Context, key string) (string, error) {
	t, err := r.devTarget(ctx)
	if err != nil {
		return "", errors.NewError("enableDevDomain", err).WithKey(key)
	}
	d, err := t.api.SetManagedDomain(ctx, t.bucket, true)
	if err != nil {
		return "", errors.NewError("enableDevDomain", err).WithBucket(t.bucket)
	}
	if !d.Enabled {
		return "", errors.NewError("enableDevDomain", errors.ErrProviderAPI).
			WithBucket(t.bucket).
			WithMessage("managed domain still disabled")
	}
	r.cache.Add(t.accountID+"/"+t.bucket, d)
	r.logger.Info("development domain enabled", "bucket", t.bucket, "domain", d.Domain)
	return r.ResolveStrict(ctx, key, s3types.StrategyProviderDev)
}

// DomainReport describes the state of a custom domain. Status is either one
// of the Status* reasons below or the provider's state summary.
type DomainReport struct {
	Connected bool
	Status    string
	Domain    *providerapi.CustomDomain
	Errors    []string
}

// Custom domain report statuses
const (
	StatusNoDomain       = "no_domain_configured"
	StatusInvalidFormat  = "invalid_domain_format"
	StatusNoCredentials  = "no_r2_credentials"
	StatusAPIError       = "api_error"
	StatusDomainNotFound = "not_found"
)

// CustomDomainStatus asks the management API whether domain is connected to
// the bucket. An empty domain means the configured custom domain. Failures
// are reported in the DomainReport; only a cancelled context is an error.
func (r *Resolver) CustomDomainStatus(ctx context.Context, domain string) (DomainReport, error) {
	if domain == "" {
		domain = r.customDomain
	}
	if domain == "" {
		return DomainReport{Status: StatusNoDomain}, nil
	}
	if !ValidCustomDomain(domain) {
		return DomainReport{Status: StatusInvalidFormat}, nil
	}
	t, err := r.devTarget(ctx)
	if err != nil {
		return DomainReport{Status: StatusNoCredentials, Errors: []string{err.Error()}}, nil
	}

	d, err := t.api.GetCustomDomain(ctx, t.bucket, domain)
	switch {
	case ctx.Err() != nil:
		return DomainReport{}, ctx.Err()
	case errors.IsNotFound(err):
		return DomainReport{Status: StatusDomainNotFound}, nil
	case err != nil:
		return DomainReport{Status: StatusAPIError, Errors: []string{err.Error()}}, nil
	}
	return DomainReport{Connected: d.Connected(), Status: d.Summary(), Domain: d}, nil
}

// ValidCustomDomain reports whether domain is a well-formed hostname,
// optionally with an http or https scheme. localhost is rejected.
func ValidCustomDomain(domain string) bool {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return false
	}
	if !hasScheme(domain) {
		domain = "https://" + domain
	}
	u, err := url.Parse(domain)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "" || host == "localhost" {
		return false
	}
	return domainPattern.MatchString(host)
}

// AccountIDFromEndpoint extracts the 32 hex digit account id from an R2
// endpoint.
func AccountIDFromEndpoint(endpoint string) (string, bool) {
	u, err := keys.ParseEndpoint(endpoint)
	if err != nil {
		return "", false
	}
	m := accountHostPattern.FindStringSubmatch(u.Hostname())
	if m == nil {
		return "", false
	}
	return m[1], true
}

// AccountDevURL is the development URL derived from the account id alone.
func AccountDevURL(accountID, key string) string {
	return fmt.Sprintf("https://pub-%s.r2.dev/%s", accountID, keys.EncodeForURL(key))
}

func hasScheme(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
