package server

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/uniqa/config"
	"github.com/mohammad-safakhou/uniqa/internal/collector"
	"github.com/mohammad-safakhou/uniqa/internal/condense"
	"github.com/mohammad-safakhou/uniqa/internal/logging"
	"github.com/mohammad-safakhou/uniqa/internal/metrics"
	"github.com/mohammad-safakhou/uniqa/internal/pipeline"
	"github.com/mohammad-safakhou/uniqa/internal/store"
	"github.com/mohammad-safakhou/uniqa/provider"
	"github.com/mohammad-safakhou/uniqa/tools/web_fetch"
	chromefetch "github.com/mohammad-safakhou/uniqa/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/uniqa/tools/web_fetch/httpfetch"
	"github.com/mohammad-safakhou/uniqa/tools/web_search"
	"github.com/mohammad-safakhou/uniqa/tools/web_search/cache"
	"github.com/rs/zerolog"
)

const defaultCacheTTL = time.Hour

// Deps holds the long-lived collaborators built from config.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Journal  *store.Store // nil when postgres is not configured
	closers  []func() error
}

// Close releases connections opened by Build.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

// Build constructs the answer pipeline and optional storage from cfg.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger, m *metrics.Metrics) (*Deps, error) {
	deps := &Deps{}
	prompts, err := config.LoadPrompts(cfg.LLM.PromptsFile, cfg.General.University)
	if err != nil {
		return nil, err
	}

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}
	model := provider.NewSoftModel(llm, logging.Component(log, "llm"), m)

	searcher, err := NewSearcher(ctx, cfg, log, deps)
	if err != nil {
		return nil, err
	}

	backend, err := NewFetchBackend(cfg.Fetch)
	if err != nil {
		return nil, err
	}
	coll := collector.New(backend, collector.Config{
		MaxConcurrent: cfg.Fetch.MaxConcurrent,
		TargetCount:   cfg.Fetch.TargetCount,
		Deadline:      cfg.Fetch.Deadline,
	}, logging.Component(log, "collector"), m)

	if cfg.Storage.Postgres.Enabled() {
		st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("answer journal: %w", err)
		}
		deps.Journal = st
		deps.closers = append(deps.closers, st.Close)
	}

	deps.Pipeline = pipeline.New(pipeline.Deps{
		Searcher:  searcher,
		Collector: coll,
		Condenser: condense.New(condense.Window{
			Start: cfg.Condense.WindowStart,
			End:   cfg.Condense.WindowEnd,
		}, logging.Component(log, "condense")),
		Model:   model,
		Prompts: prompts,
		Log:     logging.Component(log, "pipeline"),
		Metrics: m,
	})
	return deps, nil
}

// NewSearcher builds the fail-soft searcher, caching provider replies in Redis
// when it is configured and reachable.
func NewSearcher(ctx context.Context, cfg *config.Config, log zerolog.Logger, deps *Deps) (*web_search.Soft, error) {
	searcher, err := web_search.NewWebSearcher(cfg.Search)
	if err != nil {
		return nil, err
	}
	searchLog := logging.Component(log, "search")

	if rc := cfg.Storage.Redis; rc.Enabled() {
		rdb := cache.NewRedisClient(rc.Addr(), rc.Password, rc.DB)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			searchLog.Warn().Err(err).Str("addr", rc.Addr()).Msg("redis unavailable, search cache disabled")
			_ = rdb.Close()
		} else {
			ttl := cfg.Search.CacheTTL
			if ttl <= 0 {
				ttl = defaultCacheTTL
			}
			searcher = cache.NewCached(searcher, rdb, ttl, searchLog)
			deps.closers = append(deps.closers, rdb.Close)
		}
	}
	return web_search.NewSoft(searcher, cfg.Search.MaxResults, cfg.Search.Policy.Allows, searchLog), nil
}

// NewFetchBackend selects the page fetcher named by cfg.Backend.
func NewFetchBackend(cfg config.FetchConfig) (web_fetch.Backend, error) {
	opts := web_fetch.Options{
		UserAgent: cfg.UserAgent,
		MaxBytes:  cfg.MaxBytes,
		Extractor: web_fetch.Extractor(cfg.Extractor),
	}
	switch web_fetch.BackendType(cfg.Backend) {
	case web_fetch.HTTPBackendType, "":
		return httpfetch.New(opts), nil
	case web_fetch.ChromedpBackendType:
		return chromefetch.New(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", web_fetch.ErrUnsupportedBackend, cfg.Backend)
	}
}
