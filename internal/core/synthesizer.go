package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SynthesisConfig sizes the example sets handed to the oracle
type SynthesisConfig struct {
	Positives int
	Negatives int
}

// DefaultSynthesisConfig returns the standard example set sizes
func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{Positives: 50, Negatives: 50}
}

// SynthesisReport summarizes one learning step
type SynthesisReport struct {
	Positives int
	Negatives int
	Proposed  int
	Created   int
	Rejected  []string
}

// Synthesizer turns recent human corrections into learned rules
type Synthesizer struct {
	records RecordStore
	rules   LearnedRuleStore
	oracle  Oracle
	pacer   Pacer
	table   *RuleTable
	config  SynthesisConfig
	logger  *zap.Logger
}

// NewSynthesizer creates a synthesizer
func NewSynthesizer(
	records RecordStore,
	rules LearnedRuleStore,
	oracle Oracle,
	pacer Pacer,
	table *RuleTable,
	config SynthesisConfig,
	logger *zap.Logger,
) *Synthesizer {
	if pacer == nil {
		pacer = NoPacer{}
	}
	return &Synthesizer{
		records: records,
		rules:   rules,
		oracle:  oracle,
		pacer:   pacer,
		table:   table,
		config:  config,
		logger:  logger,
	}
}

// Learn asks the oracle for patterns generalizing the recent manual decisions and
// stores the ones that compile and name a known category. Existing patterns are
// never overwritten. Oracle failures are logged and yield an empty report; only
// storage failures and cancellation are returned.
func (s *Synthesizer) Learn(ctx context.Context) (*SynthesisReport, error) {
	report := &SynthesisReport{}

	manual, err := s.records.RecentManual(ctx, s.config.Positives)
	if err != nil {
		return nil, fmt.Errorf("failed to load manual decisions: %w", err)
	}
	if len(manual) == 0 {
		s.logger.Debug("No manual decisions to learn from")
		return report, nil
	}

	positives := make([]Example, 0, len(manual))
	categories := make(map[string]bool)
	for _, r := range manual {
		positives = append(positives, Example{Sender: r.Sender, Subject: r.Subject, Category: r.Category})
		categories[r.Category] = true
	}
	exclude := make([]string, 0, len(categories))
	for c := range categories {
		exclude = append(exclude, c)
	}

	sample, err := s.records.SampleClassified(ctx, exclude, s.config.Negatives)
	if err != nil {
		return nil, fmt.Errorf("failed to sample negatives: %w", err)
	}
	negatives := make([]Example, 0, len(sample))
	for _, r := range sample {
		negatives = append(negatives, Example{Sender: r.Sender, Subject: r.Subject, Category: r.Category})
	}
	report.Positives = len(positives)
	report.Negatives = len(negatives)

	if err := s.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	proposals, err := s.oracle.ProposePatterns(ctx, positives, negatives)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error("Pattern proposal failed", zap.Error(err))
		return report, nil
	}
	report.Proposed = len(proposals)

	for pattern, category := range proposals {
		if !ValidPattern(pattern) {
			s.logger.Warn("Rejecting proposed pattern that does not compile",
				zap.String("pattern", pattern))
			report.Rejected = append(report.Rejected, pattern)
			continue
		}
		if !s.table.HasCategory(category) {
			s.logger.Warn("Rejecting proposed pattern with unknown category",
				zap.String("pattern", pattern),
				zap.String("category", category))
			report.Rejected = append(report.Rejected, pattern)
			continue
		}
		created, err := s.rules.Upsert(ctx, pattern, category)
		if err != nil {
			return nil, fmt.Errorf("failed to store learned rule %q: %w", pattern, err)
		}
		if created {
			report.Created++
			s.logger.Info("Learned new rule",
				zap.String("pattern", pattern),
				zap.String("category", category))
		}
	}
	return report, nil
}
