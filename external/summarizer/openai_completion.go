package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/foxseedlab/kikitori/internal/summarizer"
	"github.com/sashabaranov/go-openai"
)

type OpenAIConfig struct {
	// Endpoint is the full completions URL, e.g. https://api.openai.com/v1/completions.
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

type OpenAIClient struct {
	cfg    OpenAIConfig
	client *openai.Client
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = baseURL(cfg.Endpoint)
	return &OpenAIClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

// baseURL strips the completions path; the client appends it per call.
func baseURL(endpoint string) string {
	return strings.TrimSuffix(strings.TrimRight(strings.TrimSpace(endpoint), "/"), "/completions")
}

func (c *OpenAIClient) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := c.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       c.cfg.Model,
		Prompt:      summarizer.Prompt(text),
		Temperature: float32(c.cfg.Temperature),
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", classifyCompletionError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &summarizer.Error{Kind: summarizer.MalformedResponse, Err: errors.New("completion response has no choices")}
	}
	summary := strings.TrimSpace(resp.Choices[0].Text)
	if summary == "" {
		return "", &summarizer.Error{Kind: summarizer.MalformedResponse, Err: errors.New("completion choice has no text")}
	}
	slog.Info("summary received", "model", c.cfg.Model, "input_chars", len(text), "summary_chars", len(summary))
	return summary, nil
}

func classifyCompletionError(err error) error {
	if status, ok := httpStatusOf(err); ok {
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return &summarizer.Error{Kind: summarizer.Unauthorized, Err: err}
		}
		return &summarizer.Error{Kind: summarizer.NetworkFailure, Err: err}
	}

	// A 2xx body that does not decode.
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &summarizer.Error{Kind: summarizer.MalformedResponse, Err: err}
	}
	return &summarizer.Error{Kind: summarizer.NetworkFailure, Err: err}
}

func httpStatusOf(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}
