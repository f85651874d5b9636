package providerapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
)

// ManagedDomain is the provider-hosted development domain of a bucket.
type ManagedDomain struct {
	BucketID string `json:"bucketId"`
	Domain   string `json:"domain"`
	Enabled  bool   `json:"enabled"`
}

// URL returns the https origin of the domain.
func (d *ManagedDomain) URL() string {
	return "https://" + d.Domain
}

// DomainStatus is the verification state of a custom domain.
type DomainStatus struct {
	Ownership   string `json:"ownership"`
	SSL         string `json:"ssl"`
	Certificate string `json:"certificate,omitempty"`
}

// ValidationRecord is a DNS or HTTP record proving domain ownership.
type ValidationRecord struct {
	Status   string `json:"status"`
	TXTName  string `json:"txt_name,omitempty"`
	TXTValue string `json:"txt_value,omitempty"`
	HTTPURL  string `json:"http_url,omitempty"`
	HTTPBody string `json:"http_body,omitempty"`
}

// CustomDomain is a customer hostname attached to a bucket.
type CustomDomain struct {
	Domain            string             `json:"domain"`
	Enabled           bool               `json:"enabled"`
	Status            DomainStatus       `json:"status"`
	ValidationRecords []ValidationRecord `json:"validation_records,omitempty"`
	MinTLS            string             `json:"minTLS,omitempty"`
	ZoneID            string             `json:"zoneId,omitempty"`
	ZoneName          string             `json:"zoneName,omitempty"`
}

// Connected reports whether the domain is enabled, owned and serving TLS.
// A missing certificate state does not block the domain.
func (d *CustomDomain) Connected() bool {
	return d.Enabled &&
		d.Status.Ownership == "active" &&
		d.Status.SSL == "active" &&
		(d.Status.Certificate == "" || d.Status.Certificate == "active")
}

// Summary is a one-line description of the domain state.
func (d *CustomDomain) Summary() string {
	cert := d.Status.Certificate
	if cert == "" {
		cert = "N/A"
	}
	return fmt.Sprintf("enabled:%t, ownership:%s, ssl:%s, certificate:%s",
		d.Enabled, d.Status.Ownership, d.Status.SSL, cert)
}

// GetManagedDomain returns the development domain of bucket.
func (c *Client) GetManagedDomain(ctx context.Context, bucket string) (*ManagedDomain, error) {
	var out ManagedDomain
	if err := c.do(ctx, "getManagedDomain", http.MethodGet, c.bucketPath(bucket, "managed"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetManagedDomain enables or disables the development domain of bucket.
func (c *Client) SetManagedDomain(ctx context.Context, bucket string, enabled bool) (*ManagedDomain, error) {
	body := map[string]bool{"enabled": enabled}
	var out ManagedDomain
	if err := c.do(ctx, "setManagedDomain", http.MethodPut, c.bucketPath(bucket, "managed"), body, &out); err != nil {
		return nil, err
	}
	c.logger.Info("managed domain updated", "bucket", bucket, "enabled", out.Enabled, "domain", out.Domain)
	return &out, nil
}

// ListCustomDomains returns every custom domain attached to bucket.
func (c *Client) ListCustomDomains(ctx context.Context, bucket string) ([]CustomDomain, error) {
	var out struct {
		Domains []CustomDomain `json:"domains"`
	}
	if err := c.do(ctx, "listCustomDomains", http.MethodGet, c.bucketPath(bucket, "custom"), nil, &out); err != nil {
		return nil, err
	}
	return out.Domains, nil
}

// GetCustomDomain returns the custom domain named domain. A scheme prefix on
// domain is ignored. It fails with ErrNotFound when the bucket has no such
// domain.
func (c *Client) GetCustomDomain(ctx context.Context, bucket, domain string) (*CustomDomain, error) {
	domains, err := c.ListCustomDomains(ctx, bucket)
	if err != nil {
		return nil, err
	}
	host := StripScheme(domain)
	for i := range domains {
		if strings.EqualFold(domains[i].Domain, host) {
			return &domains[i], nil
		}
	}
	return nil, errors.NewError("getCustomDomain", errors.ErrNotFound).
		WithBucket(bucket).
		WithMessage("custom domain " + host)
}

// StripScheme removes an http or https prefix and any trailing slash.
func StripScheme(domain string) string {
	d := strings.TrimSpace(domain)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	return strings.TrimSuffix(d, "/")
}
