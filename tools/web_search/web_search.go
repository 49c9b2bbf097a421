package web_search

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mohammad-safakhou/uniqa/config"
	"github.com/mohammad-safakhou/uniqa/tools/web_search/brave"
	"github.com/mohammad-safakhou/uniqa/tools/web_search/google"
	"github.com/mohammad-safakhou/uniqa/tools/web_search/models"
	"github.com/mohammad-safakhou/uniqa/tools/web_search/serper"
	"github.com/mohammad-safakhou/uniqa/tools/web_search/serpstack"
)

type WebSearcher interface {
	Discover(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	SerpstackProvider Provider = "serpstack"
	GoogleProvider    Provider = "google"
	SerperProvider    Provider = "serper"
	BraveProvider     Provider = "brave"
)

// Error is a search configuration error.
type Error struct {
	msg string
}

func (e *Error) Error() string { return "web_search: " + e.msg }

var ErrUnsupportedProvider = &Error{"unsupported provider"}

func NewWebSearcher(cfg config.SearchConfig) (WebSearcher, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	switch Provider(cfg.Provider) {
	case SerpstackProvider:
		return serpstack.Search{ApiKey: cfg.APIKey, Endpoint: cfg.Endpoint, Client: client}, nil
	case GoogleProvider:
		return google.Search{ApiKey: cfg.APIKey, CX: cfg.CX, Endpoint: cfg.Endpoint, Client: client}, nil
	case SerperProvider:
		return serper.Search{ApiKey: cfg.APIKey, Endpoint: cfg.Endpoint, Client: client}, nil
	case BraveProvider:
		return brave.Search{ApiKey: cfg.APIKey, Endpoint: cfg.Endpoint, Client: client}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
}
