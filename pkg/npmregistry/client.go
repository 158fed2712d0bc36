// Package npmregistry downloads package metadata and tarballs from an npm
// registry.
package npmregistry

import (
	"context"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	DefaultRegistry   = "https://registry.npmjs.org"
	httpClientTimeout = 60 * time.Second
	defaultUserAgent  = "openpkg/0.1.0"
	maxPackumentSize  = 64 * 1024 * 1024
	maxTarballSize    = 256 * 1024 * 1024
)

// ErrNotFound is returned when the registry has no such package or version.
var ErrNotFound = errors.New("not found in npm registry")

// Packument is the registry document listing every version of a package.
type Packument struct {
	Name     string                      `json:"name"`
	DistTags map[string]string           `json:"dist-tags"`
	Versions map[string]*VersionManifest `json:"versions"`
}

// VersionManifest is the package.json of one published version plus its
// distribution info.
type VersionManifest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Types   string `json:"types,omitempty"`
	Typings string `json:"typings,omitempty"`
	Dist    Dist   `json:"dist"`
}

// Dist locates and checksums a version's tarball.
type Dist struct {
	Tarball   string `json:"tarball"`
	Shasum    string `json:"shasum"`
	Integrity string `json:"integrity,omitempty"`
}

// Client talks to a single npm registry.
type Client struct {
	httpClient *http.Client
	userAgent  string
	registry   string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a Client for registry. An empty registry falls back to
// the npm_config_registry environment variable and then the public registry.
func NewClient(registry string, opts ...Option) *Client {
	if strings.TrimSpace(registry) == "" {
		registry = os.Getenv("npm_config_registry")
	}
	if strings.TrimSpace(registry) == "" {
		registry = DefaultRegistry
	}

	c := &Client{
		httpClient: &http.Client{Timeout: httpClientTimeout},
		userAgent:  defaultUserAgent,
		registry:   strings.TrimRight(strings.TrimSpace(registry), "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Registry returns the base URL requests are sent to.
func (c *Client) Registry() string {
	return c.registry
}

// Packument fetches the version index of a package. Scoped names keep their
// "@" and have the slash escaped, as the registry expects.
func (c *Client) Packument(ctx context.Context, name string) (*Packument, error) {
	if name == "" {
		return nil, errors.New("empty package name")
	}
	u := c.registry + "/" + escapeName(name)

	data, err := c.fetch(ctx, u, maxPackumentSize)
	if err != nil {
		return nil, err
	}
	var p Packument
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding packument for %s: %w", name, err)
	}
	return &p, nil
}

// Resolve returns the manifest for version, which may be an exact version
// (with or without a leading "v") or a dist-tag such as "latest".
func (p *Packument) Resolve(version string) (*VersionManifest, error) {
	v := strings.TrimPrefix(strings.TrimSpace(version), "v")
	if v == "" {
		v = "latest"
	}
	if m, ok := p.Versions[v]; ok {
		return m, nil
	}
	if tagged, ok := p.DistTags[v]; ok {
		if m, ok := p.Versions[tagged]; ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%s@%s: %w", p.Name, version, ErrNotFound)
}

// LatestVersion returns the "latest" dist-tag, or the highest published
// version when the tag is missing.
func (p *Packument) LatestVersion() string {
	if v, ok := p.DistTags["latest"]; ok {
		return v
	}
	best := ""
	for v := range p.Versions {
		if !semver.IsValid("v" + v) {
			continue
		}
		if best == "" || semver.Compare("v"+v, "v"+best) > 0 {
			best = v
		}
	}
	return best
}

// DownloadTarball resolves name@version and returns the verified .tgz bytes
// along with the manifest it was resolved to.
func (c *Client) DownloadTarball(ctx context.Context, name, version string) ([]byte, *VersionManifest, error) {
	p, err := c.Packument(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	m, err := p.Resolve(version)
	if err != nil {
		return nil, nil, err
	}
	if m.Dist.Tarball == "" {
		return nil, nil, fmt.Errorf("%s@%s has no tarball", name, m.Version)
	}

	c.logger.Debug("downloading tarball", "package", name, "version", m.Version, "url", m.Dist.Tarball)
	data, err := c.fetch(ctx, m.Dist.Tarball, maxTarballSize)
	if err != nil {
		return nil, nil, err
	}
	if err := verify(data, m.Dist); err != nil {
		return nil, nil, fmt.Errorf("%s@%s: %w", name, m.Version, err)
	}
	return data, m, nil
}

// fetch performs a single HTTP GET for the given URL.
func (c *Client) fetch(ctx context.Context, u string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", u, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, fmt.Errorf("%s: %w", u, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, u)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body from %s: %w", u, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", u, limit)
	}
	return data, nil
}

func escapeName(name string) string {
	if strings.HasPrefix(name, "@") {
		return "@" + url.PathEscape(name[1:])
	}
	return url.PathEscape(name)
}

// verify checks the sha512 integrity when present, otherwise the sha1
// shasum. A manifest with neither is accepted.
func verify(data []byte, d Dist) error {
	if sri, ok := strings.CutPrefix(d.Integrity, "sha512-"); ok {
		sum := sha512.Sum512(data)
		if base64.StdEncoding.EncodeToString(sum[:]) != sri {
			return errors.New("tarball integrity mismatch")
		}
		return nil
	}
	if d.Shasum != "" {
		sum := sha1.Sum(data)
		if !strings.EqualFold(hex.EncodeToString(sum[:]), d.Shasum) {
			return errors.New("tarball shasum mismatch")
		}
	}
	return nil
}
