package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/uniqa/internal/pipeline"
	"github.com/mohammad-safakhou/uniqa/internal/store"
	"github.com/mohammad-safakhou/uniqa/models"
	"github.com/rs/zerolog"
)

// Answerer runs the question pipeline.
type Answerer interface {
	Answer(ctx context.Context, req models.Request) (pipeline.Result, error)
}

// Journal persists answered requests.
type Journal interface {
	RecordAnswer(ctx context.Context, rec store.AnswerRecord) error
	RecentAnswers(ctx context.Context, limit int) ([]store.AnswerRecord, error)
}

type AnswerHandler struct {
	Pipeline Answerer
	Journal  Journal // optional
	Timeout  time.Duration
	Log      zerolog.Logger
}

func (h *AnswerHandler) Register(g *echo.Group) {
	g.POST("/request", h.answer)
	g.GET("/answers", h.recent)
}

// answerRequest keeps both fields as pointers so a missing field is told
// apart from a zero value.
type answerRequest struct {
	ID    *int    `json:"id"`
	Query *string `json:"query"`
}

type answerRecordResponse struct {
	ID             string    `json:"id"`
	RequestID      int       `json:"request_id"`
	Query          string    `json:"query"`
	RefinedQuery   string    `json:"refined_query"`
	MultipleChoice bool      `json:"multiple_choice"`
	Answer         *int      `json:"answer"`
	Reasoning      string    `json:"reasoning"`
	Sources        []string  `json:"sources"`
	PagesUsed      int       `json:"pages_used"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *AnswerHandler) answer(c echo.Context) error {
	var body answerRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.ID == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is required")
	}
	if body.Query == nil || strings.TrimSpace(*body.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	req := models.Request{ID: *body.ID, Query: *body.Query}

	ctx := c.Request().Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	start := time.Now()
	h.Log.Info().Int("id", req.ID).Str("query", req.Query).Msg("processing request")
	res, err := h.Pipeline.Answer(ctx, req)
	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	elapsed := time.Since(start)

	sources := res.Sources
	if sources == nil {
		sources = []string{}
	}
	resp := models.Response{
		ID:        req.ID,
		Answer:    res.Variant,
		Reasoning: res.Explanation,
		Sources:   sources,
	}
	h.record(c.Request().Context(), req, res, elapsed)
	h.Log.Info().Int("id", req.ID).Interface("answer", resp.Answer).Int("sources", len(sources)).
		Dur("elapsed", elapsed).Msg("request answered")
	return c.JSON(http.StatusOK, resp)
}

// record writes the journal entry. Failures are logged and never reach the
// caller.
func (h *AnswerHandler) record(ctx context.Context, req models.Request, res pipeline.Result, elapsed time.Duration) {
	if h.Journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := h.Journal.RecordAnswer(ctx, store.AnswerRecord{
		RequestID:      req.ID,
		Query:          req.Query,
		RefinedQuery:   res.RefinedQuery,
		MultipleChoice: res.MultipleChoice,
		Variant:        res.Variant,
		Reasoning:      res.Explanation,
		Sources:        res.Sources,
		PagesUsed:      res.PagesUsed,
		Duration:       elapsed,
	})
	if err != nil {
		h.Log.Warn().Err(err).Int("id", req.ID).Msg("journal write failed")
	}
}

func (h *AnswerHandler) recent(c echo.Context) error {
	if h.Journal == nil {
		return echo.NewHTTPError(http.StatusNotFound, "answer journal is not configured")
	}
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 200")
		}
		limit = n
	}
	recs, err := h.Journal.RecentAnswers(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	out := make([]answerRecordResponse, 0, len(recs))
	for _, r := range recs {
		sources := r.Sources
		if sources == nil {
			sources = []string{}
		}
		out = append(out, answerRecordResponse{
			ID:             r.ID,
			RequestID:      r.RequestID,
			Query:          r.Query,
			RefinedQuery:   r.RefinedQuery,
			MultipleChoice: r.MultipleChoice,
			Answer:         r.Variant,
			Reasoning:      r.Reasoning,
			Sources:        sources,
			PagesUsed:      r.PagesUsed,
			DurationMS:     r.Duration.Milliseconds(),
			CreatedAt:      r.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, out)
}
