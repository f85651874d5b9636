package publicurl

import (
	"context"
	"net/url"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/keys"
)

// ExtractKey recovers the object key from a URL produced by Resolve, using
// the active bucket name to strip path-style prefixes. URLs on the configured
// custom domain carry the key as their whole path below the domain base.
func (r *Resolver) ExtractKey(ctx context.Context, rawURL string) (string, bool) {
	if base := r.customBase(); base != nil {
		if u, ok := parseURL(rawURL); ok && strings.EqualFold(u.Host, base.Host) {
			prefix := strings.TrimSuffix(base.EscapedPath(), "/") + "/"
			path := u.EscapedPath()
			if !strings.HasPrefix(path, prefix) || path == prefix {
				return "", false
			}
			return keys.DecodeFromURL(strings.TrimPrefix(path, prefix)), true
		}
	}

	bucket := ""
	if creds, err := r.credentials(ctx); err == nil {
		bucket = creds.BucketName
	}
	return ExtractKey(rawURL, bucket)
}

// customBase parses the configured custom domain, or returns nil when none
// is usable.
func (r *Resolver) customBase() *url.URL {
	if r.customDomain == "" || !ValidCustomDomain(r.customDomain) {
		return nil
	}
	base := r.customDomain
	if !hasScheme(base) {
		base = "https://" + base
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return nil
	}
	return u
}

// ExtractKey recovers the object key from a public URL.
//
// Development domain URLs carry the key as their whole path. Storage
// endpoint URLs carry the bucket as the first segment. Any other host is
// treated as a custom domain or path-style endpoint, and a leading bucket
// segment is stripped when bucket is known. Segments are percent-decoded
// individually and empty segments are kept, so keys like "a//b" and "dir/"
// survive. Unparseable URLs and URLs without a path yield false.
func ExtractKey(rawURL, bucket string) (string, bool) {
	u, ok := parseURL(rawURL)
	if !ok {
		return "", false
	}

	path := strings.TrimPrefix(u.EscapedPath(), "/")
	if path == "" {
		return "", false
	}
	parts := strings.Split(path, "/")

	host := strings.ToLower(u.Hostname())
	switch {
	case strings.HasSuffix(host, ".r2.dev"):
	case strings.HasSuffix(host, ".r2.cloudflarestorage.com"):
		if len(parts) < 2 {
			return "", false
		}
		parts = parts[1:]
	case strings.HasSuffix(host, ".s3.amazonaws.com"):
	default:
		if bucket != "" && len(parts) > 1 && keys.DecodeFromURL(parts[0]) == bucket {
			parts = parts[1:]
		}
	}

	key := keys.DecodeFromURL(strings.Join(parts, "/"))
	if key == "" {
		return "", false
	}
	return key, true
}

func parseURL(rawURL string) (*url.URL, bool) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, false
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	return u, true
}
