package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"stagehand/internal/adapter/checksum"
	"stagehand/internal/domain"
)

// maxManifestBytes bounds how much of a checksum manifest is read.
const maxManifestBytes = 1 << 20

// ManifestResolver looks up a resource's expected digest in its checksum
// manifest. The manifest itself is not verified: it is trusted because it is
// served next to the resource over the same channel.
type ManifestResolver struct {
	client *http.Client
}

// NewManifestResolver creates a resolver using client.
func NewManifestResolver(client *http.Client) *ManifestResolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &ManifestResolver{client: client}
}

// Resolve fetches src.ManifestURL and returns the lowercase hex digest listed
// for the file named by the last path segment of src.ResourceURL.
func (r *ManifestResolver) Resolve(ctx context.Context, src domain.ChecksumSource) (string, error) {
	body, err := r.fetch(ctx, src.ManifestURL)
	if err != nil {
		return "", err
	}

	digest, err := checksum.ParseManifest(body, urlFileName(src.ManifestURL), urlFileName(src.ResourceURL), src.Algorithm)
	if err != nil {
		return "", fmt.Errorf("checksum manifest %s: %w", src.ManifestURL, err)
	}
	return digest, nil
}

func (r *ManifestResolver) fetch(ctx context.Context, manifestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %s: %w", domain.ErrNetwork, manifestURL, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch checksum manifest: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: checksum manifest %s returned HTTP %d", domain.ErrNetwork, manifestURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read checksum manifest: %w", domain.ErrNetwork, err)
	}
	return body, nil
}

// urlFileName returns the unescaped last path segment of raw, ignoring any
// query string.
func urlFileName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return path.Base(raw)
	}
	return path.Base(u.Path)
}
