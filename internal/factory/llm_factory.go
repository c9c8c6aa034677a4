package factory

import (
	"fmt"

	"github.com/mikey/llm-mail-sorter/internal/adapters/bedrock"
	"github.com/mikey/llm-mail-sorter/internal/adapters/gemini"
	"github.com/mikey/llm-mail-sorter/internal/adapters/openai"
	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/ports"
	"go.uber.org/zap"
)

// LLMFactory creates LLM completers
type LLMFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger) *LLMFactory {
	return &LLMFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCompleter creates a new completer based on the configured provider
func (f *LLMFactory) CreateCompleter() (ports.Completer, error) {
	provider := f.cfg.GetLLM().Provider

	var completer ports.Completer
	var err error
	switch provider {
	case "bedrock":
		completer, err = bedrock.NewFactory(f.cfg, f.logger).CreateCompleter()
	case "gemini":
		completer, err = gemini.NewFactory(f.cfg, f.logger).CreateCompleter()
	case "openai":
		completer, err = openai.NewFactory(f.cfg, f.logger).CreateCompleter()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", provider, err)
	}

	f.logger.Info("Created LLM client", zap.String("client", completer.Name()))
	return completer, nil
}

// MaxContextSize returns the per-sender context budget of the configured provider
func (f *LLMFactory) MaxContextSize() int {
	switch f.cfg.GetLLM().Provider {
	case "bedrock":
		return f.cfg.GetBedrock().MaxContextSize
	case "openai":
		return f.cfg.GetOpenAI().MaxContextSize
	default:
		return f.cfg.GetGemini().MaxContextSize
	}
}
