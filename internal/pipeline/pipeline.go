// Package pipeline answers a question by refining it, searching the web,
// condensing the best pages and asking the language model for a verdict.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mohammad-safakhou/uniqa/config"
	"github.com/mohammad-safakhou/uniqa/internal/collector"
	"github.com/mohammad-safakhou/uniqa/internal/condense"
	"github.com/mohammad-safakhou/uniqa/internal/helpers"
	"github.com/mohammad-safakhou/uniqa/internal/metrics"
	"github.com/mohammad-safakhou/uniqa/models"
	"github.com/mohammad-safakhou/uniqa/provider"
	"github.com/rs/zerolog"
)

// ErrInvalidRequest is the only error Answer returns.
var ErrInvalidRequest = errors.New("invalid request")

// Searcher returns candidate page URLs and never fails.
type Searcher interface {
	Search(ctx context.Context, q string) []string
}

// Collector fetches pages concurrently and keeps the first successes.
type Collector interface {
	Collect(ctx context.Context, urls []string) []collector.Page
}

// Model is a chat model. Ask never fails; Raw exposes errors.
type Model interface {
	Ask(ctx context.Context, messages []models.Message) string
	Raw(ctx context.Context, messages []models.Message) (string, error)
}

// Result is the outcome of one question.
type Result struct {
	Variant        *int
	Explanation    string
	Sources        []string
	RefinedQuery   string
	MultipleChoice bool
	PagesUsed      int
}

type Deps struct {
	Searcher  Searcher
	Collector Collector
	Condenser *condense.Condenser
	Model     Model
	Prompts   config.Prompts
	Log       zerolog.Logger
	Metrics   *metrics.Metrics
}

type Pipeline struct {
	searcher    Searcher
	collector   Collector
	condenser   *condense.Condenser
	model       Model
	prompts     config.Prompts
	affirmative map[string]struct{}
	log         zerolog.Logger
	metrics     *metrics.Metrics
}

func New(d Deps) *Pipeline {
	affirmative := make(map[string]struct{}, len(d.Prompts.Affirmative))
	for _, tok := range d.Prompts.Affirmative {
		affirmative[normalizeReply(tok)] = struct{}{}
	}
	return &Pipeline{
		searcher:    d.Searcher,
		collector:   d.Collector,
		condenser:   d.Condenser,
		model:       d.Model,
		prompts:     d.Prompts,
		affirmative: affirmative,
		log:         d.Log,
		metrics:     d.Metrics,
	}
}

// Answer runs every stage for req. Collaborator failures degrade the inputs of
// later stages and never abort the request.
func (p *Pipeline) Answer(ctx context.Context, req models.Request) (Result, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return Result{}, fmt.Errorf("%w: query must not be blank", ErrInvalidRequest)
	}
	log := p.log.With().Int("request_id", req.ID).Logger()

	// Stage 1: refinement and multiple-choice detection run side by side.
	var (
		refined string
		multi   bool
	)
	stage := time.Now()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		refined = p.refine(ctx, query)
	}()
	go func() {
		defer wg.Done()
		multi = p.isMultipleChoice(ctx, query)
	}()
	wg.Wait()
	p.observe("refine", stage)
	log.Info().Str("refined_query", refined).Bool("multiple_choice", multi).Msg("query refined")

	// Stage 2
	stage = time.Now()
	urls := p.searcher.Search(ctx, refined)
	p.observe("search", stage)

	// Stage 3
	stage = time.Now()
	pages := p.collector.Collect(ctx, urls)
	p.observe("fetch", stage)
	stage = time.Now()
	summaries := p.condenser.Condense(ctx, collector.Texts(pages), p.summarizer())
	pageContext := condense.Join(summaries)
	p.observe("condense", stage)
	log.Info().Int("urls", len(urls)).Int("pages", len(pages)).Int("context_chars", len(pageContext)).Msg("context assembled")

	// Stage 4
	var variant *int
	if multi {
		stage = time.Now()
		variant = ParseVariant(p.model.Ask(ctx, []models.Message{
			models.SystemMessage(p.prompts.Variant),
			models.UserMessage(fmt.Sprintf("Вопрос: %s\n\nКонтекст:\n%s", query, pageContext)),
		}))
		p.observe("variant", stage)
		log.Info().Interface("variant", variant).Msg("variant chosen")
	}

	// Stage 5
	stage = time.Now()
	explanation := strings.TrimSpace(p.model.Ask(ctx, []models.Message{
		models.SystemMessage(p.prompts.Explanation),
		models.UserMessage(explanationPrompt(query, pageContext, variant)),
	}))
	p.observe("explanation", stage)

	sources := make([]string, len(urls))
	copy(sources, urls)
	return Result{
		Variant:        variant,
		Explanation:    explanation,
		Sources:        sources,
		RefinedQuery:   refined,
		MultipleChoice: multi,
		PagesUsed:      len(pages),
	}, nil
}

// refine returns a one-line search query, or query itself when the model
// produced nothing usable.
func (p *Pipeline) refine(ctx context.Context, query string) string {
	reply := helpers.CleanLine(p.model.Ask(ctx, []models.Message{
		models.SystemMessage(p.prompts.Refine),
		models.UserMessage(query),
	}))
	if reply == "" || reply == provider.FallbackAnswer {
		return query
	}
	return reply
}

func (p *Pipeline) isMultipleChoice(ctx context.Context, query string) bool {
	reply := p.model.Ask(ctx, []models.Message{
		models.SystemMessage(p.prompts.MultipleChoice),
		models.UserMessage(query),
	})
	_, ok := p.affirmative[normalizeReply(reply)]
	return ok
}

// summarizer condenses one excerpt with the raw model so that a failure leaves
// an empty summary instead of the fallback text.
func (p *Pipeline) summarizer() condense.Summarizer {
	return condense.SummarizerFunc(func(ctx context.Context, excerpt string) (string, error) {
		return p.model.Raw(ctx, []models.Message{
			models.SystemMessage(p.prompts.Condense),
			models.UserMessage(excerpt),
		})
	})
}

func (p *Pipeline) observe(stage string, start time.Time) {
	p.metrics.ObserveStage(stage, time.Since(start).Seconds())
}

func explanationPrompt(query, pageContext string, variant *int) string {
	chosen := ""
	if variant != nil {
		chosen = fmt.Sprintf("(Выбранный вариант: %d)", *variant)
	}
	return fmt.Sprintf("%s\n\nКонтекст:\n%s\n\n%s", query, pageContext, chosen)
}

func normalizeReply(s string) string {
	return strings.TrimRight(strings.ToLower(helpers.CleanLine(s)), ".!?,;: ")
}

// ParseVariant reads the option number from the first line of reply. Options
// are numbered from 1; anything other than a plain positive decimal yields nil.
func ParseVariant(reply string) *int {
	first, _, _ := strings.Cut(strings.TrimSpace(reply), "\n")
	first = strings.TrimSpace(first)
	if first == "" {
		return nil
	}
	for _, r := range first {
		if r < '0' || r > '9' {
			return nil
		}
	}
	n, err := strconv.Atoi(first)
	if err != nil || n < 1 {
		return nil
	}
	return &n
}
