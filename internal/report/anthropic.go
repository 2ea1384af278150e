package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/datachat/datachat/internal/config"
)

// Anthropic generates reports with the Anthropic messages API.
type Anthropic struct {
	client      *anthropic.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

// NewAnthropic creates an Anthropic generator. A configured endpoint
// overrides the API base URL.
func NewAnthropic(cfg config.LLMConfig, logger *slog.Logger) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.Endpoint))
	}

	return &Anthropic{
		client:      anthropic.NewClient(cfg.APIKey, opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger.With("component", "llm", "provider", config.ProviderAnthropic),
	}, nil
}

func (a *Anthropic) Model() string {
	return a.model
}

func (a *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	a.logger.Debug("LLM request", "model", a.model, "prompt_len", len(prompt))
	start := time.Now()

	system := systemMessage
	temperature := a.temperature
	resp, err := a.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		System:      system,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		a.logger.Error("LLM request failed", "elapsed", time.Since(start), "error", err)
		return "", fmt.Errorf("creating message: %w", err)
	}

	text := textFromResponse(resp)
	if text == "" {
		return "", fmt.Errorf("no text in response")
	}

	a.logger.Info("LLM request completed",
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"elapsed", time.Since(start))
	return text, nil
}

func textFromResponse(resp anthropic.MessagesResponse) string {
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text
		}
	}
	return ""
}
