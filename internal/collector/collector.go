// Package collector fetches candidate pages concurrently and keeps the first
// few that produce text.
package collector

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mohammad-safakhou/uniqa/internal/metrics"
	"github.com/mohammad-safakhou/uniqa/tools/web_fetch"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxConcurrent = 5
	DefaultTargetCount   = 3
)

// Page is one accepted fetch. Index is the URL's position in the input.
type Page struct {
	Index int
	URL   string
	Text  string
}

type Config struct {
	MaxConcurrent int
	TargetCount   int
	Deadline      time.Duration
}

// Collector runs a bounded fan-out over a fetch backend.
type Collector struct {
	backend web_fetch.Backend
	cfg     Config
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func New(backend web_fetch.Backend, cfg Config, log zerolog.Logger, m *metrics.Metrics) *Collector {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.TargetCount <= 0 {
		cfg.TargetCount = DefaultTargetCount
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = web_fetch.DefaultDeadline
	}
	return &Collector{backend: backend, cfg: cfg, log: log, metrics: m}
}

// Collect fetches at most MaxConcurrent urls at once and returns the first
// TargetCount pages with text, in completion order. URLs past MaxConcurrent
// are ignored. Once the target is met the remaining fetches are cancelled;
// Collect returns after they have let go of their connections. Fewer pages,
// or none, is a normal result.
func (c *Collector) Collect(ctx context.Context, urls []string) []Page {
	if len(urls) > c.cfg.MaxConcurrent {
		urls = urls[:c.cfg.MaxConcurrent]
	}
	if len(urls) == 0 {
		return nil
	}
	start := time.Now()

	sess, err := c.backend.NewSession(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("fetch session unavailable")
		return nil
	}
	defer func() {
		if err := sess.Close(); err != nil {
			c.log.Debug().Err(err).Msg("close fetch session")
		}
	}()

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type completion struct {
		index   int
		outcome web_fetch.Outcome
	}
	// Buffered so that cancelled workers never block on send.
	done := make(chan completion, len(urls))
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			done <- completion{index: i, outcome: sess.Fetch(fetchCtx, u, c.cfg.Deadline)}
		}(i, u)
	}

	pages := make([]Page, 0, c.cfg.TargetCount)
	for received := 0; received < len(urls) && len(pages) < c.cfg.TargetCount; received++ {
		res := <-done
		out := res.outcome
		c.metrics.ObserveFetch(out.Status.String())
		if out.Status != web_fetch.StatusSuccess || strings.TrimSpace(out.Text) == "" {
			c.log.Debug().Str("url", out.URL).Str("status", out.Status.String()).Str("reason", out.Reason).
				Dur("elapsed", out.Elapsed).Msg("page skipped")
			continue
		}
		c.log.Debug().Str("url", out.URL).Int("chars", len(out.Text)).Dur("elapsed", out.Elapsed).Msg("page accepted")
		pages = append(pages, Page{Index: res.index, URL: out.URL, Text: out.Text})
	}

	// Stragglers observe the cancellation, abort their I/O and report into the
	// buffer; their outcomes are dropped.
	cancel()
	wg.Wait()

	c.metrics.ObserveCollection(time.Since(start).Seconds(), len(pages))
	c.log.Info().Int("candidates", len(urls)).Int("pages", len(pages)).
		Dur("elapsed", time.Since(start)).Msg("collection finished")
	return pages
}

// Texts returns the page texts in collection order.
func Texts(pages []Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.Text
	}
	return out
}
