package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/uniqa/config"
	"github.com/mohammad-safakhou/uniqa/internal/collector"
	"github.com/mohammad-safakhou/uniqa/internal/condense"
	"github.com/mohammad-safakhou/uniqa/models"
	"github.com/mohammad-safakhou/uniqa/provider"
	"github.com/mohammad-safakhou/uniqa/tools/web_fetch"
	"github.com/mohammad-safakhou/uniqa/tools/web_fetch/httpfetch"
	"github.com/rs/zerolog"
)

var testPrompts = config.Prompts{
	Refine:         "REFINE",
	MultipleChoice: "MULTI",
	Condense:       "CONDENSE",
	Variant:        "VARIANT",
	Explanation:    "EXPLAIN",
	Affirmative:    []string{"да", "yes"},
}

// scriptedModel answers by system prompt and records every user message.
type scriptedModel struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   map[string][]string
	hook    func(system string)
}

func newScriptedModel(replies map[string]string) *scriptedModel {
	return &scriptedModel{replies: replies, errs: map[string]error{}, calls: map[string][]string{}}
}

func (m *scriptedModel) Raw(_ context.Context, messages []models.Message) (string, error) {
	system, user := messages[0].Text, messages[len(messages)-1].Text
	if m.hook != nil {
		m.hook(system)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[system] = append(m.calls[system], user)
	if err := m.errs[system]; err != nil {
		return "", err
	}
	return m.replies[system], nil
}

func (m *scriptedModel) Ask(ctx context.Context, messages []models.Message) string {
	reply, err := m.Raw(ctx, messages)
	if err != nil || strings.TrimSpace(reply) == "" {
		return provider.FallbackAnswer
	}
	return reply
}

func (m *scriptedModel) callsFor(system string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls[system]...)
}

type staticSearcher struct {
	mu    sync.Mutex
	urls  []string
	query string
}

func (s *staticSearcher) Search(_ context.Context, q string) []string {
	s.mu.Lock()
	s.query = q
	s.mu.Unlock()
	return append([]string(nil), s.urls...)
}

func newPipeline(s Searcher, m Model) *Pipeline {
	coll := collector.New(httpfetch.New(web_fetch.Options{}), collector.Config{
		MaxConcurrent: 5,
		TargetCount:   3,
		Deadline:      time.Second,
	}, zerolog.Nop(), nil)
	return New(Deps{
		Searcher:  s,
		Collector: coll,
		Condenser: condense.New(condense.Window{Start: 0, End: 2000}, zerolog.Nop()),
		Model:     m,
		Prompts:   testPrompts,
		Log:       zerolog.Nop(),
	})
}

func TestParseVariant(t *testing.T) {
	t.Parallel()
	intp := func(n int) *int { return &n }
	cases := []struct {
		reply string
		want  *int
	}{
		{"3\nbecause", intp(3)},
		{"null", nil},
		{"", nil},
		{"  2  ", intp(2)},
		{"4", intp(4)},
		{"\n1\nsecond line", intp(1)},
		{"2\r\nexplained", intp(2)},
		{"Вариант 2", nil},
		{"-1", nil},
		{"0", nil},
		{"00", nil},
		{"007", intp(7)},
		{"2.", nil},
		{provider.FallbackAnswer, nil},
		{"99999999999999999999999", nil},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(fmt.Sprintf("%q", tc.reply), func(t *testing.T) {
			t.Parallel()
			got := ParseVariant(tc.reply)
			switch {
			case tc.want == nil && got != nil:
				t.Fatalf("ParseVariant(%q) = %d, want nil", tc.reply, *got)
			case tc.want != nil && (got == nil || *got != *tc.want):
				t.Fatalf("ParseVariant(%q) = %v, want %d", tc.reply, got, *tc.want)
			}
		})
	}
}

func TestAnswerMultipleChoiceEndToEnd(t *testing.T) {
	t.Parallel()
	page := func(title string) string {
		return "<html><head><title>" + title + "</title></head><body><p>" + title +
			" Университет ИТМО входит в рейтинг QS.</p></body></html>"
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page(strings.TrimPrefix(r.URL.Path, "/"))))
	}))
	defer srv.Close()

	searcher := &staticSearcher{urls: []string{srv.URL + "/one", srv.URL + "/two", srv.URL + "/three"}}
	model := newScriptedModel(map[string]string{
		"REFINE":   "ИТМО рейтинг QS",
		"MULTI":    "Да.",
		"CONDENSE": "ИТМО в рейтинге QS",
		"VARIANT":  "3\nпотому что так написано",
		"EXPLAIN":  "  ИТМО входит в рейтинг QS. Источник: itmo.ru  ",
	})
	query := "В каком рейтинге состоит ИТМО?\n1. A\n2. B\n3. QS\n4. D"

	res, err := newPipeline(searcher, model).Answer(context.Background(), models.Request{ID: 1, Query: query})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Variant == nil || *res.Variant < 1 || *res.Variant > 4 {
		t.Fatalf("expected a variant within 1..4, got %v", res.Variant)
	}
	if *res.Variant != 3 {
		t.Fatalf("variant = %d", *res.Variant)
	}
	if !res.MultipleChoice || res.PagesUsed != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Explanation != "ИТМО входит в рейтинг QS. Источник: itmo.ru" {
		t.Fatalf("explanation = %q", res.Explanation)
	}
	if len(res.Sources) != 3 || res.Sources[0] != searcher.urls[0] {
		t.Fatalf("sources = %v", res.Sources)
	}
	if searcher.query != "ИТМО рейтинг QS" || res.RefinedQuery != "ИТМО рейтинг QS" {
		t.Fatalf("search ran with %q", searcher.query)
	}

	excerpts := model.callsFor("CONDENSE")
	if len(excerpts) != 3 {
		t.Fatalf("expected 3 condense calls, got %d", len(excerpts))
	}
	for _, ex := range excerpts {
		if !strings.Contains(ex, "Университет ИТМО") || strings.Contains(ex, "<p>") {
			t.Fatalf("excerpt not normalized: %q", ex)
		}
	}
	variantCalls := model.callsFor("VARIANT")
	wantContext := "ИТМО в рейтинге QS\n\nИТМО в рейтинге QS\n\nИТМО в рейтинге QS"
	if len(variantCalls) != 1 || !strings.Contains(variantCalls[0], wantContext) {
		t.Fatalf("variant prompt missing context: %q", variantCalls)
	}
	explainCalls := model.callsFor("EXPLAIN")
	if len(explainCalls) != 1 || !strings.Contains(explainCalls[0], "(Выбранный вариант: 3)") {
		t.Fatalf("explanation prompt missing variant: %q", explainCalls)
	}
}

func TestAnswerZeroSearchResults(t *testing.T) {
	t.Parallel()
	searcher := &staticSearcher{}
	model := newScriptedModel(map[string]string{
		"REFINE":  "ИТМО основан",
		"MULTI":   "нет",
		"EXPLAIN": "ИТМО основан в 1900 году.",
	})
	res, err := newPipeline(searcher, model).Answer(context.Background(), models.Request{ID: 2, Query: "Когда основан ИТМО?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Variant != nil {
		t.Fatalf("expected no variant, got %d", *res.Variant)
	}
	if res.Explanation == "" {
		t.Fatal("explanation must always be produced")
	}
	if res.Sources == nil || len(res.Sources) != 0 || res.PagesUsed != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if n := len(model.callsFor("CONDENSE")); n != 0 {
		t.Fatalf("condense should not run without pages, got %d calls", n)
	}
	if n := len(model.callsFor("VARIANT")); n != 0 {
		t.Fatalf("variant should not run for open questions, got %d calls", n)
	}
}

func TestAnswerBlankQuery(t *testing.T) {
	t.Parallel()
	model := newScriptedModel(nil)
	_, err := newPipeline(&staticSearcher{}, model).Answer(context.Background(), models.Request{ID: 3, Query: " \n\t"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if len(model.callsFor("REFINE")) != 0 {
		t.Fatal("model must not be called for invalid requests")
	}
}

func TestAnswerDegradesOnModelFailure(t *testing.T) {
	t.Parallel()
	searcher := &staticSearcher{}
	model := newScriptedModel(map[string]string{"EXPLAIN": "ok"})
	model.errs["REFINE"] = errors.New("model down")
	model.errs["MULTI"] = errors.New("model down")

	res, err := newPipeline(searcher, model).Answer(context.Background(), models.Request{ID: 4, Query: "Кто ректор ИТМО?"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if searcher.query != "Кто ректор ИТМО?" {
		t.Fatalf("failed refinement should fall back to the query, got %q", searcher.query)
	}
	if res.MultipleChoice {
		t.Fatal("failed detection must not count as multiple choice")
	}
}

func TestAnswerRunsStageOneConcurrently(t *testing.T) {
	t.Parallel()
	var (
		arrived sync.WaitGroup
		mu      sync.Mutex
		serial  bool
	)
	arrived.Add(2)
	model := newScriptedModel(map[string]string{"REFINE": "q", "MULTI": "нет", "EXPLAIN": "ok"})
	model.hook = func(system string) {
		if system != "REFINE" && system != "MULTI" {
			return
		}
		arrived.Done()
		done := make(chan struct{})
		go func() { arrived.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			mu.Lock()
			serial = true
			mu.Unlock()
		}
	}
	if _, err := newPipeline(&staticSearcher{}, model).Answer(context.Background(), models.Request{Query: "q"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if serial {
		t.Fatal("refinement and detection did not overlap")
	}
}

func TestAnswerCleansDecoratedReplies(t *testing.T) {
	t.Parallel()
	searcher := &staticSearcher{}
	model := newScriptedModel(map[string]string{
		"REFINE":  "«ИТМО кампусы»\nЭтот запрос найдёт список кампусов.",
		"MULTI":   "«Да»",
		"VARIANT": "null",
		"EXPLAIN": "ok",
	})
	res, err := newPipeline(searcher, model).Answer(context.Background(), models.Request{Query: "Сколько кампусов у ИТМО?\n1. 1\n2. 3"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if searcher.query != "ИТМО кампусы" {
		t.Fatalf("search ran with %q", searcher.query)
	}
	if !res.MultipleChoice || res.Variant != nil {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAnswerDetectsQuotedAffirmativeWithTrailingText(t *testing.T) {
	t.Parallel()
	model := newScriptedModel(map[string]string{
		"REFINE":  "«ИТМО общежития»\nпояснение к запросу",
		"MULTI":   "«Да»\nв вопросе перечислены варианты",
		"VARIANT": "2",
		"EXPLAIN": "ok",
	})
	searcher := &staticSearcher{}
	res, err := newPipeline(searcher, model).Answer(context.Background(), models.Request{Query: "Сколько общежитий у ИТМО?\n1. 5\n2. 9"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if searcher.query != "ИТМО общежития" {
		t.Fatalf("search ran with %q", searcher.query)
	}
	if !res.MultipleChoice || res.Variant == nil || *res.Variant != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAnswerOmitsZeroVariantFromExplanation(t *testing.T) {
	t.Parallel()
	model := newScriptedModel(map[string]string{
		"REFINE":  "q",
		"MULTI":   "да",
		"VARIANT": "0",
		"EXPLAIN": "ok",
	})
	res, err := newPipeline(&staticSearcher{}, model).Answer(context.Background(), models.Request{Query: "q\n1. a\n2. b"})
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Variant != nil {
		t.Fatalf("variant = %d, want nil", *res.Variant)
	}
	calls := model.callsFor("EXPLAIN")
	if len(calls) != 1 || strings.Contains(calls[0], "Выбранный вариант") {
		t.Fatalf("explanation prompt should not name a variant: %q", calls)
	}
}
