// Package resolve finds where a URL ends up after redirects.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tkrehbiel/activitysift/server/telemetry"
)

var ErrTooManyRedirects = errors.New("too many redirects")

// Resolver returns the final URL for a URL after following redirects
type Resolver interface {
	Resolve(ctx context.Context, url string) (string, error)
}

// ResolverFunc adapts a plain function to a Resolver
type ResolverFunc func(ctx context.Context, url string) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

const (
	DefaultMaxRedirects = 10
	DefaultTimeout      = 5 * time.Second
	DefaultUserAgent    = "activitysift (+https://github.com/tkrehbiel/activitysift)"
)

// HTTPResolver resolves URLs with a single HEAD request.
// The redirect chain is bounded by MaxRedirects.
type HTTPResolver struct {
	Client       *http.Client
	MaxRedirects int
	Timeout      time.Duration
	UserAgent    string
	RequireHTML  bool // non-html targets resolve to themselves
}

func NewHTTPResolver() *HTTPResolver {
	return &HTTPResolver{
		Client:       &http.Client{},
		MaxRedirects: DefaultMaxRedirects,
		Timeout:      DefaultTimeout,
		UserAgent:    DefaultUserAgent,
	}
}

func (h *HTTPResolver) Resolve(ctx context.Context, url string) (string, error) {
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", err
	}
	if h.UserAgent != "" {
		r.Header.Set("User-Agent", h.UserAgent)
	}

	// copy the client so the redirect policy doesn't leak into a shared one
	client := http.Client{}
	if h.Client != nil {
		client = *h.Client
	}
	limit := h.MaxRedirects
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) > limit {
			return ErrTooManyRedirects
		}
		return nil
	}

	telemetry.Increment("redirect_fetches", 1)
	resp, err := client.Do(r)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", url, err)
	}
	defer resp.Body.Close()

	final := resp.Request.URL.String()
	if h.RequireHTML && final != url {
		if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
			telemetry.Trace("ignoring non-html redirect %s => %s", url, final)
			return url, nil
		}
	}
	return final, nil
}
