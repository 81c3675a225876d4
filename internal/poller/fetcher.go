package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultFetchTimeout = 10 * time.Second
	maxBodyBytes        = 5 << 20
)

// ContentFetcher retrieves the raw content behind a source URL.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetchError marks a transient failure to reach a source. The source is
// skipped for this run and its record is left untouched.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPFetcher fetches pages over HTTP with a bounded per-request timeout.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher constructs a fetcher whose requests never outlive timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch returns the body of url. Transport errors and non-2xx statuses are
// reported as *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return "", &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	return string(body), nil
}

// CloseIdleConnections drops keep-alive connections held by the client.
func (f *HTTPFetcher) CloseIdleConnections() {
	f.client.CloseIdleConnections()
}

// MockFetcher stands in for real scraping: every fetch returns fixed content
// derived from the URL, so repeated polls observe no change.
type MockFetcher struct{}

// Fetch returns deterministic placeholder content for url.
func (MockFetcher) Fetch(_ context.Context, url string) (string, error) {
	return "mock content for " + url, nil
}
