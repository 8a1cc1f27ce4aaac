package backend

import (
	"net/url"
	"strings"

	"github.com/cfadata/cfa/internal/cfaerr"
	"github.com/cfadata/cfa/internal/config"
)

// Locator is a parsed dataset/subarray address:
// scheme://host[:port]/bucket/key... for remote, a plain filesystem
// path for local.
type Locator struct {
	Raw string
	Remote bool

	// Remote fields.
	Endpoint string // scheme://host[:port]
	Bucket string
	Key string
	Alias string // config host alias this resolved against, if any

	// Local field.
	Path string
}

// ParseLocator parses raw according to the locator syntax. An
// unrecognized scheme with a matching alias in cfg falls back to that
// alias's backend; everything else is treated as local.
func ParseLocator(raw string, cfg config.Config) (Locator, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return Locator{Raw: raw, Remote: false, Path: raw}, nil
	}

	if host, ok := cfg.HostFor(u.Scheme); ok {
		return locatorFromAliasedURL(raw, u, u.Scheme, host)
	}

	if u.Scheme == "http" || u.Scheme == "https" {
		bucket, key, err := splitBucketKey(u.Path)
		if err != nil {
			return Locator{}, cfaerr.Locator(raw, err.Error())
		}
		return Locator{
			Raw: raw,
			Remote: true,
			Endpoint: u.Scheme + "://" + u.Host,
			Bucket: bucket,
			Key: key,
		}, nil
	}

	// Unknown scheme, no matching alias: treat as local.
	return Locator{Raw: raw, Remote: false, Path: raw}, nil
}

func locatorFromAliasedURL(raw string, u *url.URL, alias string, host config.Host) (Locator, error) {
	if host.Backend == "local" {
		return Locator{Raw: raw, Remote: false, Path: u.Path, Alias: alias}, nil
	}
	bucket, key, err := splitBucketKey(u.Path)
	if err != nil {
		return Locator{}, cfaerr.Locator(raw, err.Error())
	}
	endpoint := host.URL
	if endpoint == "" {
		endpoint = u.Scheme + "://" + u.Host
	}
	return Locator{
		Raw: raw,
		Remote: true,
		Endpoint: endpoint,
		Bucket: bucket,
		Key: key,
		Alias: alias,
	}, nil
}

func splitBucketKey(path string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(path, "/")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errLocatorShape
	}
	return parts[0], parts[1], nil
}

var errLocatorShape = locatorShapeError{}

type locatorShapeError struct{}

func (locatorShapeError) Error() string {
	return "remote locator must be scheme://host[:port]/bucket/key"
}
