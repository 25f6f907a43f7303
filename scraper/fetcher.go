package scraper

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"pricewatch/models"

	"github.com/codeGROOVE-dev/retry-go"
)

// Browser-like identity; several retailers reject the default Go user agent.
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const defaultFetchTimeout = 15 * time.Second

// Fetcher retrieves raw page content over HTTP. Redirects are followed,
// every request carries its own timeout, and transient failures are retried
// with bounded backoff. Client errors (4xx) are never retried.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher with the given request timeout.
// A zero timeout falls back to the 15s default.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch returns the textual content of the page at pageURL, or a FetchError.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	var body string

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(&models.FetchError{URL: pageURL, Err: err})
			}
			req.Header.Set("User-Agent", userAgent)
			req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
			req.Header.Set("Accept-Language", "en-US,en;q=0.9")

			resp, err := f.client.Do(req)
			if err != nil {
				return &models.FetchError{URL: pageURL, Err: err}
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				ferr := &models.FetchError{URL: pageURL, StatusCode: resp.StatusCode}
				// Server-side and throttling statuses are worth another try.
				if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
					return ferr
				}
				return retry.Unrecoverable(ferr)
			}

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return &models.FetchError{URL: pageURL, Err: err}
			}

			body = string(data)
			return nil
		},
		retry.Attempts(3),
		retry.Delay(2*time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("Retrying fetch for %s (attempt %d): %v", pageURL, n+1, err)
		}),
	)
	if err != nil {
		if !models.IsFetchError(err) {
			err = &models.FetchError{URL: pageURL, Err: err}
		}
		return "", err
	}

	return body, nil
}
