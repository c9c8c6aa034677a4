package factory

import (
	"github.com/mikey/llm-mail-sorter/internal/config"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/mikey/llm-mail-sorter/internal/oracle"
	"github.com/mikey/llm-mail-sorter/internal/ports"
	"github.com/mikey/llm-mail-sorter/internal/utils"
	"go.uber.org/zap"
)

// ClassifierFactory builds the classification pipeline from configuration
type ClassifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateRuleTable loads the configured rule table, or the built-in one when none is set
func (f *ClassifierFactory) CreateRuleTable() (*core.RuleTable, error) {
	path := f.cfg.GetClassifier().RuleTable
	if path == "" {
		return core.DefaultRuleTable()
	}
	table, err := core.LoadRuleTable(path)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Loaded rule table",
		zap.String("path", path),
		zap.String("version", table.Version),
		zap.Strings("categories", table.CategoryNames()))
	return table, nil
}

// LifecyclePolicy returns the learned rule lifecycle thresholds
func (f *ClassifierFactory) LifecyclePolicy() core.LifecyclePolicy {
	l := f.cfg.GetLearning()
	return core.LifecyclePolicy{
		MinConfidence:     l.MinConfidence,
		StaleAfter:        l.StaleAfter,
		CorrectionPenalty: l.CorrectionPenalty,
	}
}

// ServiceConfig returns the classification pass settings
func (f *ClassifierFactory) ServiceConfig() core.ServiceConfig {
	c := f.cfg.GetClassifier()
	return core.ServiceConfig{
		SubjectsPerSender: c.SubjectsPerSender,
		ReuseAIVerdicts:   c.ReuseAIVerdicts,
		MatchTimeout:      c.MatchTimeout,
		Lifecycle:         f.LifecyclePolicy(),
	}
}

// SynthesisConfig returns the example budget for rule synthesis
func (f *ClassifierFactory) SynthesisConfig() core.SynthesisConfig {
	l := f.cfg.GetLearning()
	return core.SynthesisConfig{
		Positives: l.Positives,
		Negatives: l.Negatives,
	}
}

// CreatePacer creates the pacer that spaces oracle calls
func (f *ClassifierFactory) CreatePacer() core.Pacer {
	return core.NewIntervalPacer(f.cfg.GetOracle().RequestDelay)
}

// CreateOracle wraps a completer as a classification oracle
func (f *ClassifierFactory) CreateOracle(
	completer ports.Completer,
	table *core.RuleTable,
	text *utils.TextProcessor,
	maxContextSize int,
) core.Oracle {
	return oracle.NewLLMOracle(completer, table, text, maxContextSize, f.logger)
}

// CreateBatcher creates the chunking oracle batcher
func (f *ClassifierFactory) CreateBatcher(o core.Oracle, pacer core.Pacer, observer core.Observer) *core.Batcher {
	return core.NewBatcher(o, pacer, f.cfg.GetOracle().BatchSize, f.logger, observer)
}
