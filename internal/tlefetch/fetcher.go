// Package tlefetch downloads two-line element catalogues and imports them
// into the persistent frame graph as orbital frames.
package tlefetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/signalsfoundry/skyframe/core"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultMaxBytes = 50 << 20
)

// Fetcher retrieves catalogue text from one URL.
type Fetcher struct {
	sourceURL  string
	httpClient *http.Client
	maxBytes   int64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.httpClient = c
		}
	}
}

// WithMaxBytes caps the response body size.
func WithMaxBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// NewFetcher creates a Fetcher for sourceURL.
func NewFetcher(sourceURL string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		sourceURL:  sourceURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxBytes:   defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// FetchRaw performs the GET and returns the body.
func (f *Fetcher) FetchRaw(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching TLE data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.sourceURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("response from %s exceeds %d byte limit", f.sourceURL, f.maxBytes)
	}
	return body, nil
}

// Fetch downloads and parses the catalogue. A malformed entry fails the
// whole fetch with a *core.FormatError in the chain.
func (f *Fetcher) Fetch(ctx context.Context) ([]core.TLEEntry, error) {
	body, err := f.FetchRaw(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := core.ParseTLESet(string(body))
	if err != nil {
		return nil, fmt.Errorf("parsing catalogue from %s: %w", f.sourceURL, err)
	}
	return entries, nil
}
