package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RequestTimeout bounds every upstream request, including reading the body.
const RequestTimeout = 10 * time.Second

// apiKeyHeader is the credential header WMATA expects
const apiKeyHeader = "api_key"

// Source names one upstream GTFS-RT endpoint
type Source struct {
	Name string
	URL  string
}

// Fetcher retrieves raw GTFS-RT payloads. It performs no retries and no
// caching; the caller decides what to do with a failure.
type Fetcher struct {
	apiKey string
	client *http.Client
}

// NewFetcher creates a fetcher with the default request timeout
func NewFetcher(apiKey string) *Fetcher {
	return NewFetcherWithClient(apiKey, &http.Client{Timeout: RequestTimeout})
}

// NewFetcherWithClient creates a fetcher around an existing client.
// A client without a timeout gets RequestTimeout.
func NewFetcherWithClient(apiKey string, client *http.Client) *Fetcher {
	if client.Timeout == 0 {
		client.Timeout = RequestTimeout
	}
	return &Fetcher{apiKey: apiKey, client: client}
}

// Fetch downloads the feed body from src.
// Network failures are returned as *TransportError, non-2xx responses as
// *UpstreamError.
func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", src.Name, err)
	}
	req.Header.Set(apiKeyHeader, f.apiKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{Source: src.Name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &UpstreamError{Source: src.Name, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Source: src.Name, Err: err}
	}

	return body, nil
}
