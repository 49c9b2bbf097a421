package yandex_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/uniqa/models"
)

const (
	completionURL = "https://llm.api.cloud.yandex.net/foundationModels/v1/completion"
)

// Options configures the YandexGPT client.
type Options struct {
	APIKey      string
	BaseURL     string
	FolderID    string
	Model       string // e.g. "yandexgpt-32k/rc"
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// client implements provider.Provider using the foundation models API
type client struct {
	opts       Options
	endpoint   string
	httpClient *http.Client
	errEmpty   error
}

type completionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   string  `json:"maxTokens,omitempty"`
}

// request represents a request to the completion endpoint
type request struct {
	ModelURI          string            `json:"modelUri"`
	CompletionOptions completionOptions `json:"completionOptions"`
	Messages          []models.Message  `json:"messages"`
}

// response represents a response from the completion endpoint
type response struct {
	Result struct {
		Alternatives []struct {
			Message models.Message `json:"message"`
			Status  string         `json:"status"`
		} `json:"alternatives"`
	} `json:"result"`
}

// New creates a new YandexGPT client. errEmpty is returned when the API
// answers without alternatives.
func New(opts Options, errEmpty error) *client {
	endpoint := completionURL
	if opts.BaseURL != "" {
		endpoint = strings.TrimRight(opts.BaseURL, "/") + "/foundationModels/v1/completion"
	}
	return &client{
		opts:       opts,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: opts.Timeout},
		errEmpty:   errEmpty,
	}
}

// ModelURI is the folder scoped model identifier.
func (c *client) ModelURI() string {
	return fmt.Sprintf("gpt://%s/%s", c.opts.FolderID, c.opts.Model)
}

func (c *client) Complete(ctx context.Context, messages []models.Message) (string, error) {
	body := request{
		ModelURI: c.ModelURI(),
		CompletionOptions: completionOptions{
			Temperature: c.opts.Temperature,
		},
		Messages: messages,
	}
	if c.opts.MaxTokens > 0 {
		body.CompletionOptions.MaxTokens = strconv.Itoa(c.opts.MaxTokens)
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+c.opts.APIKey)
	req.Header.Set("x-folder-id", c.opts.FolderID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Result.Alternatives) == 0 {
		return "", c.errEmpty
	}
	return out.Result.Alternatives[0].Message.Text, nil
}
