package chromedp

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/mohammad-safakhou/uniqa/tools/web_fetch"
)

// Backend renders pages in headless Chrome. Slower than plain HTTP but sees
// script-generated content.
type Backend struct {
	opts web_fetch.Options
}

func New(opts web_fetch.Options) *Backend {
	return &Backend{opts: opts.Normalized()}
}

// NewSession starts one browser shared by every fetch of the fan-out. Each
// fetch gets its own tab.
func (b *Backend) NewSession(ctx context.Context) (web_fetch.Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	if b.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.opts.UserAgent))
	}
	// The browser must outlive the caller's request-scoped ctx only until Close.
	actx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	bctx, cancelBrowser := chromedp.NewContext(actx)
	if err := chromedp.Run(bctx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}
	return &session{opts: b.opts, browser: bctx, cancel: func() {
		cancelBrowser()
		cancelAlloc()
	}}, nil
}

type session struct {
	opts    web_fetch.Options
	browser context.Context
	cancel  context.CancelFunc
}

func (s *session) Fetch(ctx context.Context, url string, deadline time.Duration) web_fetch.Outcome {
	if deadline <= 0 {
		deadline = web_fetch.DefaultDeadline
	}
	if strings.TrimSpace(url) == "" {
		return web_fetch.Failure(url, "invalid url", 0)
	}
	t0 := time.Now()

	tabCtx, closeTab := chromedp.NewContext(s.browser)
	defer closeTab()
	// Tie the tab to the caller: cancellation or the deadline closes it.
	tabCtx, cancel := context.WithTimeout(tabCtx, deadline)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return web_fetch.FailureFromError(ctx, url, err, time.Since(t0))
		}
		if errors.Is(tabCtx.Err(), context.DeadlineExceeded) {
			return web_fetch.Failure(url, web_fetch.ReasonTimeout, time.Since(t0))
		}
		return web_fetch.FailureFromError(tabCtx, url, err, time.Since(t0))
	}

	text, err := web_fetch.ExtractText([]byte(html), url, s.opts.Extractor)
	if err != nil {
		return web_fetch.Failure(url, err.Error(), time.Since(t0))
	}
	if int64(len(text)) > s.opts.MaxBytes {
		text = strings.ToValidUTF8(text[:s.opts.MaxBytes], "")
	}
	if text == "" {
		return web_fetch.Empty(url, time.Since(t0))
	}
	return web_fetch.Success(url, text, time.Since(t0))
}

func (s *session) Close() error {
	s.cancel()
	return nil
}
