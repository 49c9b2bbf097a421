package web_search

import (
	"context"
	"strings"

	"github.com/mohammad-safakhou/uniqa/internal/helpers"
	"github.com/rs/zerolog"
)

// Soft turns a WebSearcher into a search that never fails: errors and empty
// replies become an empty URL list.
type Soft struct {
	searcher WebSearcher
	limit    int
	allow    func(string) bool
	log      zerolog.Logger
}

// NewSoft caps results at limit. allow filters URLs and may be nil.
func NewSoft(s WebSearcher, limit int, allow func(string) bool, log zerolog.Logger) *Soft {
	return &Soft{searcher: s, limit: limit, allow: allow, log: log}
}

// Search returns at most limit distinct http(s) URLs, in ranking order.
func (s *Soft) Search(ctx context.Context, q string) []string {
	q = strings.TrimSpace(q)
	if q == "" {
		return []string{}
	}
	results, err := s.searcher.Discover(ctx, q, s.limit)
	if err != nil {
		s.log.Warn().Err(err).Str("query", q).Msg("web search failed")
		return []string{}
	}
	raw := make([]string, 0, len(results))
	for _, r := range results {
		raw = append(raw, r.URL)
	}
	urls := helpers.FetchableURLs(raw, s.allow, s.limit)
	s.log.Info().Str("query", q).Int("results", len(results)).Strs("urls", urls).Msg("web search")
	return urls
}
