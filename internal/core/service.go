package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ServiceConfig tunes the classification pass
type ServiceConfig struct {
	SubjectsPerSender int
	ReuseAIVerdicts   bool
	MatchTimeout      time.Duration
	Lifecycle         LifecyclePolicy
}

// PassOptions selects what one pass does; TopN 0 classifies every sender
type PassOptions struct {
	TopN  int
	Learn bool
}

// PassReport summarizes one classification pass
type PassReport struct {
	PassID     string
	StartedAt  time.Time
	Collected  []LearnedRule
	Synthesis  *SynthesisReport
	Senders    int
	BySource   map[Source]int
	Unresolved int
	RuleSet    RuleSet
}

// ClassificationService runs classification passes and persists their rule-set
type ClassificationService struct {
	records     RecordStore
	rules       LearnedRuleStore
	repo        RuleSetRepository
	table       *RuleTable
	static      *StaticMatcher
	batcher     *Batcher
	synthesizer *Synthesizer
	clock       Clock
	config      ServiceConfig
	logger      *zap.Logger
	observer    Observer
}

// NewClassificationService creates a classification service
func NewClassificationService(
	records RecordStore,
	rules LearnedRuleStore,
	repo RuleSetRepository,
	table *RuleTable,
	batcher *Batcher,
	synthesizer *Synthesizer,
	clock Clock,
	config ServiceConfig,
	logger *zap.Logger,
	observer Observer,
) (*ClassificationService, error) {
	static, err := NewStaticMatcher(table, config.MatchTimeout, logger)
	if err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &ClassificationService{
		records:     records,
		rules:       rules,
		repo:        repo,
		table:       table,
		static:      static,
		batcher:     batcher,
		synthesizer: synthesizer,
		clock:       clock,
		config:      config,
		logger:      logger,
		observer:    observer,
	}, nil
}

// RunPass garbage-collects learned rules, optionally learns new ones, classifies
// the top senders and saves the resulting rule-set. Nothing is saved if the pass
// fails or ctx is cancelled.
func (s *ClassificationService) RunPass(ctx context.Context, opts PassOptions) (report *PassReport, err error) {
	now := s.clock.Now()
	report = &PassReport{
		PassID:    uuid.NewString(),
		StartedAt: now,
		BySource:  make(map[Source]int),
	}
	logger := s.logger.With(zap.String("pass_id", report.PassID))

	s.observer.PassStarted(report.PassID)
	defer func() {
		s.observer.PassFinished(report, err)
	}()

	deleted, err := s.rules.GarbageCollect(ctx, now, s.config.Lifecycle)
	if err != nil {
		return report, fmt.Errorf("failed to garbage collect learned rules: %w", err)
	}
	for _, r := range deleted {
		logger.Info("Deleted learned rule",
			zap.String("pattern", r.Pattern),
			zap.String("category", r.Category),
			zap.Float64("confidence", r.Confidence),
			zap.Time("last_used", r.LastUsed()))
	}
	report.Collected = deleted
	s.observer.GCCompleted(deleted)

	if opts.Learn && s.synthesizer != nil {
		synthesis, err := s.synthesizer.Learn(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to learn rules: %w", err)
		}
		report.Synthesis = synthesis
		s.observer.RulesLearned(synthesis)
	}

	prior, err := s.repo.Load(ctx)
	if errors.Is(err, ErrRuleSetNotFound) {
		prior = RuleSet{}
	} else if err != nil {
		return report, fmt.Errorf("failed to load rule-set: %w", err)
	}

	aggs, err := s.records.AggregateSenders(ctx, opts.TopN, s.config.SubjectsPerSender)
	if err != nil {
		return report, fmt.Errorf("failed to aggregate senders: %w", err)
	}
	report.Senders = len(aggs)

	active, err := s.rules.ActiveRules(ctx, s.config.Lifecycle.MinConfidence)
	if err != nil {
		return report, fmt.Errorf("failed to load learned rules: %w", err)
	}
	chain := MatchChain{
		NewLearnedMatcher(active, s.rules, now, s.config.MatchTimeout, logger),
		s.static,
	}

	ruleSet := make(RuleSet, len(aggs))
	var pending []BatchItem
	for _, agg := range aggs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if p, ok := prior[agg.Sender]; ok && s.carryForward(p) {
			carried := *p
			carried.Count = agg.Count
			carried.LastDate = agg.LastDate
			if p.Source == SourceAIGenerated {
				carried.Subjects = agg.Subjects
			}
			ruleSet[agg.Sender] = &carried
			continue
		}

		entry := &RuleSetEntry{
			Count:    agg.Count,
			LastDate: agg.LastDate,
			Subjects: agg.Subjects,
		}
		match, err := chain.Match(ctx, SearchText(agg.Sender, agg.Subjects, s.config.SubjectsPerSender))
		if err != nil {
			return report, err
		}
		if match != nil {
			entry.Category = match.Category
			entry.Source = match.Source
			entry.Pattern = match.Pattern
			entry.Rationale = match.Rationale()
		} else {
			entry.Category = CategoryUnclassified
			entry.Source = SourceAIPending
			pending = append(pending, BatchItem{ID: agg.Sender, Context: batchContext(agg)})
		}
		ruleSet[agg.Sender] = entry
	}

	if len(pending) > 0 && s.batcher != nil {
		logger.Info("Sending unmatched senders to oracle", zap.Int("senders", len(pending)))
		verdicts, err := s.batcher.Classify(ctx, pending)
		if err != nil {
			return report, err
		}
		s.mergeVerdicts(ruleSet, verdicts, logger)
	}

	for sender, p := range prior {
		if _, ok := ruleSet[sender]; !ok && p.Source.IsManual() {
			ruleSet[sender] = p
		}
	}

	for _, e := range ruleSet {
		report.BySource[e.Source]++
		if e.Source == SourceAIPending {
			report.Unresolved++
		}
	}
	report.RuleSet = ruleSet

	if err := s.repo.Save(ctx, ruleSet); err != nil {
		return report, fmt.Errorf("failed to save rule-set: %w", err)
	}
	logger.Info("Classification pass completed",
		zap.Int("senders", report.Senders),
		zap.Int("entries", len(ruleSet)),
		zap.Int("unresolved", report.Unresolved))
	return report, nil
}

func (s *ClassificationService) carryForward(prior *RuleSetEntry) bool {
	if prior.Source.IsManual() {
		return true
	}
	return s.config.ReuseAIVerdicts && prior.Source == SourceAIGenerated
}

// mergeVerdicts resolves pending entries; verdicts naming no known category are ignored
func (s *ClassificationService) mergeVerdicts(ruleSet RuleSet, verdicts map[string]Verdict, logger *zap.Logger) {
	for sender, v := range verdicts {
		entry, ok := ruleSet[sender]
		if !ok || entry.Source != SourceAIPending {
			continue
		}
		if v.Category == CategoryUnclassified || !s.table.HasCategory(v.Category) {
			logger.Warn("Oracle returned unknown category",
				zap.String("sender", sender),
				zap.String("category", v.Category))
			continue
		}
		entry.Category = v.Category
		entry.Source = SourceAIGenerated
		entry.Rationale = v.Rationale
	}
}

func batchContext(agg SenderAggregate) string {
	return strings.Join(agg.Subjects, " | ")
}
