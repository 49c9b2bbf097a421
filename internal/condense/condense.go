// Package condense trims fetched pages and reduces each one to the facts a
// summarizer finds relevant.
package condense

import (
	"context"
	"strings"

	"github.com/mohammad-safakhou/uniqa/internal/helpers"
	"github.com/rs/zerolog"
)

// Summarizer extracts the relevant content from one page excerpt.
type Summarizer interface {
	Summarize(ctx context.Context, excerpt string) (string, error)
}

// SummarizerFunc adapts a function to Summarizer.
type SummarizerFunc func(ctx context.Context, excerpt string) (string, error)

func (f SummarizerFunc) Summarize(ctx context.Context, excerpt string) (string, error) {
	return f(ctx, excerpt)
}

// PageSummary is the condensed text of the page at SourceIndex.
type PageSummary struct {
	SourceIndex int
	Text        string
}

// Window is the [Start, End) rune range forwarded to the summarizer. End <= 0
// keeps everything after Start.
type Window struct {
	Start int
	End   int
}

type Condenser struct {
	window Window
	log    zerolog.Logger
}

func New(window Window, log zerolog.Logger) *Condenser {
	return &Condenser{window: window, log: log}
}

// Excerpt normalizes a page and cuts the configured window out of it.
func (c *Condenser) Excerpt(page string) string {
	text := helpers.CollapseWhitespace(helpers.StripMarkup(page))
	return helpers.RuneWindow(text, c.window.Start, c.window.End)
}

// Condense summarizes pages one after another, in input order. A page whose
// excerpt is empty is still summarized. A summarizer error leaves that page's
// summary empty and the batch carries on.
func (c *Condenser) Condense(ctx context.Context, pages []string, s Summarizer) []PageSummary {
	out := make([]PageSummary, 0, len(pages))
	for i, page := range pages {
		summary, err := s.Summarize(ctx, c.Excerpt(page))
		if err != nil {
			c.log.Warn().Err(err).Int("page", i).Msg("page summary failed")
			summary = ""
		}
		summary = strings.TrimSpace(summary)
		c.log.Debug().Int("page", i).Int("chars", len(summary)).Msg("page condensed")
		out = append(out, PageSummary{SourceIndex: i, Text: summary})
	}
	return out
}

// Join builds the combined context, one blank line between summaries.
func Join(summaries []PageSummary) string {
	texts := make([]string, len(summaries))
	for i, s := range summaries {
		texts[i] = s.Text
	}
	return strings.Join(texts, "\n\n")
}
