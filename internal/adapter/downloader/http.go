package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stagehand/internal/adapter/checksum"
	"stagehand/internal/domain"
)

// HTTPFetcher downloads resources over HTTP(S) and verifies them by digest.
// The destination file doubles as the cache: a valid copy is never fetched
// again.
type HTTPFetcher struct {
	client    *http.Client
	manifests *ManifestResolver
	logger    domain.Logger
}

// NewHTTPFetcher creates a fetcher. A nil client uses http.DefaultClient.
func NewHTTPFetcher(client *http.Client, logger domain.Logger) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{
		client:    client,
		manifests: NewManifestResolver(client),
		logger:    logger,
	}
}

// Fetch makes sure d.Dest holds the resource at d.URL with the expected
// digest. An existing file with a matching digest is left alone and no
// request is made. After a download the file is hashed again; on mismatch a
// *domain.IntegrityError is returned and the file is left in place.
//
// Fetch does no locking. Two concurrent calls for the same Dest race.
func (f *HTTPFetcher) Fetch(ctx context.Context, d domain.Download) error {
	if err := validate(d); err != nil {
		return err
	}
	algorithm := checksum.Canonical(d.Algorithm)

	expected, err := f.expectedDigest(ctx, d, algorithm)
	if err != nil {
		return err
	}

	if ok, err := f.cached(d.Dest, algorithm, expected); err != nil {
		return err
	} else if ok {
		f.logger.Info("using cached resource", "path", d.Dest)
		return f.ensureMode(d)
	}

	if err := os.MkdirAll(filepath.Dir(d.Dest), 0o755); err != nil {
		return fmt.Errorf("%w: create destination dir: %w", domain.ErrFilesystem, err)
	}

	f.logger.Info("downloading", "url", d.URL, "dest", d.Dest)
	start := time.Now()
	n, err := f.download(ctx, d.URL, d.Dest)
	if err != nil {
		return err
	}

	if _, err := checksum.Verify(d.Dest, algorithm, expected); err != nil {
		var ie *domain.IntegrityError
		if errors.As(err, &ie) {
			f.logger.Error("checksum mismatch", "path", d.Dest, "expected", ie.Expected, "actual", ie.Actual)
			return err
		}
		return fmt.Errorf("%w: verify %s: %w", domain.ErrFilesystem, d.Dest, err)
	}

	f.logger.Info("download complete", "path", d.Dest, "bytes", n, "elapsed", time.Since(start))
	return f.ensureMode(d)
}

func validate(d domain.Download) error {
	switch {
	case strings.TrimSpace(d.URL) == "":
		return fmt.Errorf("%w: missing url", domain.ErrInvalidDownload)
	case strings.TrimSpace(d.Dest) == "":
		return fmt.Errorf("%w: missing destination for %s", domain.ErrInvalidDownload, d.URL)
	case strings.TrimSpace(d.Algorithm) == "":
		return fmt.Errorf("%w: missing checksum algorithm for %s", domain.ErrInvalidDownload, d.URL)
	case d.Expected == "" && (d.Manifest == nil || d.Manifest.ManifestURL == ""):
		return fmt.Errorf("%w: %s has neither a checksum nor a checksum manifest", domain.ErrInvalidDownload, d.URL)
	}
	if _, err := checksum.New(d.Algorithm); err != nil {
		return err
	}
	return nil
}

func (f *HTTPFetcher) expectedDigest(ctx context.Context, d domain.Download, algorithm string) (string, error) {
	if d.Expected != "" {
		return checksum.Normalize(d.Expected, algorithm)
	}
	src := *d.Manifest
	if src.ResourceURL == "" {
		src.ResourceURL = d.URL
	}
	if src.Algorithm == "" {
		src.Algorithm = algorithm
	}
	f.logger.Debug("resolving checksum from manifest", "manifest", src.ManifestURL)
	return f.manifests.Resolve(ctx, src)
}

// cached reports whether dest already holds a file with the expected digest.
func (f *HTTPFetcher) cached(dest, algorithm, expected string) (bool, error) {
	info, err := os.Stat(dest)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %w", domain.ErrFilesystem, dest, err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("%w: %s exists and is not a regular file", domain.ErrFilesystem, dest)
	}

	got, err := checksum.File(dest, algorithm)
	if err != nil {
		return false, fmt.Errorf("%w: hash %s: %w", domain.ErrFilesystem, dest, err)
	}
	if got != expected {
		f.logger.Warn("cached resource does not match, downloading again", "path", dest, "actual", got)
		return false, nil
	}
	return true, nil
}

// download streams url into dest without buffering the body in memory.
func (f *HTTPFetcher) download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request for %s: %w", domain.ErrNetwork, url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: GET %s: %w", domain.ErrNetwork, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: GET %s returned HTTP %d", domain.ErrNetwork, url, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %w", domain.ErrFilesystem, dest, err)
	}
	n, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil {
		return n, fmt.Errorf("%w: write %s: %w", domain.ErrNetwork, dest, copyErr)
	}
	if closeErr != nil {
		return n, fmt.Errorf("%w: close %s: %w", domain.ErrFilesystem, dest, closeErr)
	}
	return n, nil
}

// ensureMode sets the permission bits d.Mode requires on the destination,
// keeping any bits it already has.
func (f *HTTPFetcher) ensureMode(d domain.Download) error {
	if d.Mode == 0 {
		return nil
	}
	info, err := os.Stat(d.Dest)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", domain.ErrFilesystem, d.Dest, err)
	}
	perm := info.Mode().Perm()
	want := perm | d.Mode.Perm()
	if want == perm {
		return nil
	}
	if err := os.Chmod(d.Dest, want); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", domain.ErrFilesystem, d.Dest, err)
	}
	f.logger.Debug("adjusted permissions", "path", d.Dest, "mode", want.String())
	return nil
}
