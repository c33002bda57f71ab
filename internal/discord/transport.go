package discord

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// rewriteTransport sends requests aimed at discordgo's built-in API base to a
// configured base instead (another API version, a proxy, or a test server).
type rewriteTransport struct {
	from *url.URL
	to   *url.URL
	next http.RoundTripper
}

func newRewriteTransport(base string, next http.RoundTripper) (http.RoundTripper, error) {
	if base == discordgo.EndpointAPI {
		return next, nil
	}

	from, err := url.Parse(discordgo.EndpointAPI)
	if err != nil {
		return nil, err
	}
	to, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid API base %q: %w", base, err)
	}
	if !strings.HasSuffix(to.Path, "/") {
		to.Path += "/"
	}

	return &rewriteTransport{from: from, to: to, next: next}, nil
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host != t.from.Host || !strings.HasPrefix(req.URL.Path, t.from.Path) {
		return t.next.RoundTrip(req)
	}

	u := *req.URL
	u.Scheme = t.to.Scheme
	u.Host = t.to.Host
	u.Path = t.to.Path + strings.TrimPrefix(req.URL.Path, t.from.Path)
	u.RawPath = ""

	out := req.Clone(req.Context())
	out.URL = &u
	out.Host = u.Host
	return t.next.RoundTrip(out)
}

type statusKey struct{}

// responseStatus holds the status of the last response seen for one call
type responseStatus struct {
	mu   sync.Mutex
	code int
}

func (s *responseStatus) set(code int) {
	s.mu.Lock()
	s.code = code
	s.mu.Unlock()
}

func (s *responseStatus) get() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// trackStatus returns a context whose requests report their response status
// back through the returned responseStatus.
func trackStatus(ctx context.Context) (context.Context, *responseStatus) {
	status := &responseStatus{}
	return context.WithValue(ctx, statusKey{}, status), status
}

// statusTransport records response statuses for requests made with a
// trackStatus context. discordgo reports some failures (a 502 with retries
// exhausted) as plain errors that no longer carry the response.
type statusTransport struct {
	next http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if status, ok := req.Context().Value(statusKey{}).(*responseStatus); ok {
		status.set(resp.StatusCode)
	}
	return resp, nil
}
