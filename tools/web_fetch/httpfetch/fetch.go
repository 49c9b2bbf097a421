package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/uniqa/internal/helpers"
	"github.com/mohammad-safakhou/uniqa/tools/web_fetch"
)

// Backend fetches pages with plain HTTP GETs.
type Backend struct {
	opts web_fetch.Options
	base *http.Transport
}

func New(opts web_fetch.Options) *Backend {
	return &Backend{opts: opts.Normalized(), base: newTransport()}
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// NewSession gives the fan-out its own connection pool so that closing the
// session drops every socket it opened.
func (b *Backend) NewSession(context.Context) (web_fetch.Session, error) {
	tr := b.base.Clone()
	return &session{
		opts:      b.opts,
		transport: tr,
		client: &http.Client{
			Transport: tr,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after %d redirects", len(via))
				}
				return nil
			},
		},
	}, nil
}

type session struct {
	opts      web_fetch.Options
	transport *http.Transport
	client    *http.Client
}

func (s *session) Fetch(ctx context.Context, url string, deadline time.Duration) web_fetch.Outcome {
	if deadline <= 0 {
		deadline = web_fetch.DefaultDeadline
	}
	if strings.TrimSpace(url) == "" {
		return web_fetch.Failure(url, "invalid url", 0)
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	t0 := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return web_fetch.Failure(url, fmt.Sprintf("build request: %v", err), time.Since(t0))
	}
	if s.opts.UserAgent != "" {
		req.Header.Set("User-Agent", s.opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,text/plain;q=0.8,*/*;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return web_fetch.FailureFromError(ctx, url, err, time.Since(t0))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return web_fetch.Failure(url, fmt.Sprintf("HTTP %d", resp.StatusCode), time.Since(t0))
	}
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if contentType != "" && !strings.HasPrefix(contentType, "text/") && !strings.Contains(contentType, "xhtml") {
		return web_fetch.Failure(url, "unsupported content type: "+contentType, time.Since(t0))
	}

	// The body read is bound to ctx as well, so a slow body hits the deadline.
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.opts.MaxBytes))
	if err != nil {
		return web_fetch.FailureFromError(ctx, url, err, time.Since(t0))
	}

	var text string
	if strings.HasPrefix(contentType, "text/plain") {
		text = helpers.CollapseWhitespace(helpers.StripMarkup(string(body)))
	} else {
		text, err = web_fetch.ExtractText(body, url, s.opts.Extractor)
		if err != nil {
			return web_fetch.Failure(url, err.Error(), time.Since(t0))
		}
	}
	if text == "" {
		return web_fetch.Empty(url, time.Since(t0))
	}
	return web_fetch.Success(url, text, time.Since(t0))
}

func (s *session) Close() error {
	s.transport.CloseIdleConnections()
	return nil
}
