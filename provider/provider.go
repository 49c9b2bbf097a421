package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/uniqa/config"
	"github.com/mohammad-safakhou/uniqa/internal/metrics"
	"github.com/mohammad-safakhou/uniqa/models"
	openai_provider "github.com/mohammad-safakhou/uniqa/provider/openai"
	yandex_provider "github.com/mohammad-safakhou/uniqa/provider/yandex"
	"github.com/rs/zerolog"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI Client = "openai"
	Yandex Client = "yandex"
)

// FallbackAnswer is returned by SoftModel whenever the model yields nothing.
const FallbackAnswer = "no model information"

var (
	ErrUnsupportedProvider = errors.New("unsupported LLM provider")
	// ErrEmptyReply is returned when the model answered without any alternative.
	ErrEmptyReply = errors.New("model returned no alternatives")
)

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	Complete(ctx context.Context, messages []models.Message) (string, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	switch Client(cfg.Provider) {
	case OpenAI:
		return openai_provider.New(openai_provider.Options{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
		}, ErrEmptyReply), nil
	case Yandex:
		return yandex_provider.New(yandex_provider.Options{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			FolderID:    cfg.FolderID,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
		}, ErrEmptyReply), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}

// SoftModel never fails: any provider error or blank reply becomes
// FallbackAnswer.
type SoftModel struct {
	provider Provider
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

func NewSoftModel(p Provider, log zerolog.Logger, m *metrics.Metrics) *SoftModel {
	return &SoftModel{provider: p, log: log, metrics: m}
}

// Ask sends messages and returns the first alternative.
func (s *SoftModel) Ask(ctx context.Context, messages []models.Message) string {
	text, err := s.Raw(ctx, messages)
	if err != nil {
		s.log.Warn().Err(err).Msg("language model request failed")
		return FallbackAnswer
	}
	if strings.TrimSpace(text) == "" {
		return FallbackAnswer
	}
	return text
}

// Raw calls the provider directly, recording the outcome.
func (s *SoftModel) Raw(ctx context.Context, messages []models.Message) (string, error) {
	start := time.Now()
	text, err := s.provider.Complete(ctx, messages)
	outcome := "ok"
	switch {
	case errors.Is(err, ErrEmptyReply):
		outcome = "empty"
	case err != nil:
		outcome = "error"
	}
	s.metrics.ObserveLLM(outcome)
	s.log.Debug().Int("messages", len(messages)).Dur("elapsed", time.Since(start)).Str("outcome", outcome).Msg("language model call")
	return text, err
}
