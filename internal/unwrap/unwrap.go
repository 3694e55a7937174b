// Package unwrap follows an HTTP redirect chain to find the final destination
// of a submitted URL before it is shortened.
package unwrap

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/linkcut/linkcut/internal/models"
)

const (
	DefaultMaxHops    = 10
	DefaultHopTimeout = 5 * time.Second
)

type Resolver struct {
	client     *http.Client
	maxHops    int
	hopTimeout time.Duration
}

func NewResolver(maxHops int, hopTimeout time.Duration) *Resolver {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	if hopTimeout <= 0 {
		hopTimeout = DefaultHopTimeout
	}

	return &Resolver{
		client: &http.Client{
			// Redirects are walked manually so each hop lands in the chain.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		maxHops:    maxHops,
		hopTimeout: hopTimeout,
	}
}

// Unwrap walks the redirect chain starting at rawURL. It always returns a
// usable result: a hop that errors terminates the walk with the best-known
// final URL and the error recorded as a string. One HEAD request per hop,
// no retries.
func (r *Resolver) Unwrap(ctx context.Context, rawURL string) *models.UnwrapResult {
	start := time.Now()
	result := &models.UnwrapResult{
		OriginalURL:   rawURL,
		UnwrappedURL:  rawURL,
		RedirectChain: []string{rawURL},
	}

	current, err := url.Parse(rawURL)
	if err != nil {
		result.Err = err.Error()
		result.ElapsedMs = time.Since(start).Milliseconds()
		return result
	}

	for result.HopCount < r.maxHops {
		next, stop, hopErr := r.hop(ctx, current)
		if hopErr != nil {
			result.Err = hopErr.Error()
			break
		}
		if stop {
			break
		}

		if contains(result.RedirectChain, next.String()) {
			// Redirect loop: treat the repeated URL as final.
			result.UnwrappedURL = next.String()
			break
		}

		current = next
		result.HopCount++
		result.RedirectChain = append(result.RedirectChain, current.String())
		result.UnwrappedURL = current.String()
	}

	result.ElapsedMs = time.Since(start).Milliseconds()
	return result
}

// hop issues a single HEAD request. It returns the resolved next URL for a
// redirect response, or stop=true when the current URL is final.
func (r *Resolver) hop(ctx context.Context, current *url.URL) (next *url.URL, stop bool, err error) {
	hopCtx, cancel := context.WithTimeout(ctx, r.hopTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(hopCtx, http.MethodHead, current.String(), nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return nil, true, nil
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, true, nil
	}

	loc, err := url.Parse(location)
	if err != nil {
		return nil, false, err
	}

	// Relative Location headers resolve against the URL that issued them.
	return current.ResolveReference(loc), false, nil
}

func contains(chain []string, u string) bool {
	for _, c := range chain {
		if c == u {
			return true
		}
	}
	return false
}
