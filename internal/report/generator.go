package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/datachat/datachat/internal/config"
)

var (
	// ErrNotConfigured is returned when no LLM provider is configured.
	ErrNotConfigured = errors.New("no LLM provider configured")
	// ErrGeneration wraps failures reported by the model provider.
	ErrGeneration = errors.New("generating report")
)

// Generator turns a prompt into report text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Model names the model used, for the report record.
	Model() string
}

// NewGenerator creates the generator selected by cfg.Provider.
func NewGenerator(cfg config.LLMConfig, logger *slog.Logger) (Generator, error) {
	switch cfg.Provider {
	case "":
		return nil, ErrNotConfigured
	case config.ProviderOpenAI:
		return NewOpenAI(cfg, logger)
	case config.ProviderAnthropic:
		return NewAnthropic(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
