package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/voaccess/vocloud/transfer"
)

// ensure interface is implemented
var _ AccessPoint = (*PremAccessPoint)(nil)

// defaultHTTPClient is shared by all on-prem access points. No global timeout
// is set; callers bound slow transfers through the request context.
var defaultHTTPClient = &http.Client{}

// PremAccessPoint serves a dataset over HTTP(S) from an on-prem server.
type PremAccessPoint struct {
	url    string
	client *http.Client

	probeOnce sync.Once
	reachable bool
	message   string
}

// NewPremAccessPoint creates an on-prem access point for the given URL.
// The URL must use the http or https scheme.
func NewPremAccessPoint(rawURL string) (*PremAccessPoint, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("on-prem url is required: %w", ErrConfiguration)
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return nil, fmt.Errorf("%q is not an http(s) url: %w", rawURL, ErrMalformedUID)
	}
	return &PremAccessPoint{url: rawURL, client: defaultHTTPClient}, nil
}

func newPremFromParams(params map[string]string, _ Meta) (AccessPoint, error) {
	return NewPremAccessPoint(params["url"])
}

// WithClient overrides the HTTP client, mainly for tests.
func (a *PremAccessPoint) WithClient(c *http.Client) *PremAccessPoint {
	a.client = c
	return a
}

// Provider returns the provider ID.
func (a *PremAccessPoint) Provider() ID { return Prem }

// UID returns the URL.
func (a *PremAccessPoint) UID() string { return a.url }

func (a *PremAccessPoint) String() string {
	return fmt.Sprintf("|%-5s| %s", Prem, a.url)
}

// Accessible probes the URL with a HEAD request. The result is memoized.
func (a *PremAccessPoint) Accessible(ctx context.Context) (bool, string) {
	a.probeOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, a.url, http.NoBody)
		if err != nil {
			a.reachable, a.message = false, err.Error()
			return
		}
		resp, err := a.client.Do(req)
		if err != nil {
			a.reachable, a.message = false, err.Error()
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			a.reachable, a.message = true, ""
		} else {
			a.reachable, a.message = false, resp.Status
		}
	})
	return a.reachable, a.message
}

// Download streams the URL to a local file. With opts.Cache, an existing file
// whose size matches the declared content length is reused without a
// transfer. The final local path is returned.
func (a *PremAccessPoint) Download(ctx context.Context, opts DownloadOptions) (string, error) {
	localPath := opts.LocalPath
	if localPath == "" {
		u, err := url.Parse(a.url)
		if err != nil {
			return "", fmt.Errorf("parse %q: %v: %w", a.url, err, ErrDownload)
		}
		localPath = filepath.Join(opts.Dir, path.Base(u.Path))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("get %s: %v: %w", a.url, err, ErrDownload)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %v: %w", a.url, err, ErrDownload)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get %s: unexpected status %s: %w", a.url, resp.Status, ErrDownload)
	}

	length := int64(-1)
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if v, err := strconv.ParseInt(cl, 10, 64); err == nil {
			length = v
		}
	}

	if opts.Cache && transfer.SizeMatches(localPath, length) {
		return localPath, nil
	}

	if err := writeStream(resp.Body, localPath, length, opts.Progress); err != nil {
		return "", fmt.Errorf("get %s: %v: %w", a.url, err, ErrDownload)
	}
	return localPath, nil
}

// writeStream copies body to localPath through a temp file in the same
// directory, renaming on success so a failed transfer never leaves a partial
// file at the destination.
func writeStream(body io.Reader, localPath string, length int64, progress transfer.Progress) error {
	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "dl-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := transfer.NewCountingWriter(tmp, length, progress)
	pool := transfer.NewBufferPool(0)
	buf := pool.Get()
	_, err = io.CopyBuffer(w, body, *buf)
	pool.Put(buf)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmpPath, localPath)
}
