package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// ApplyReport counts the records an apply actually changed
type ApplyReport struct {
	Changed   map[string]int
	Total     int
	Penalized []string
}

// RuleApplier replays the persisted rule-set onto stored records
type RuleApplier struct {
	records  RecordStore
	repo     RuleSetRepository
	policy   LifecyclePolicy
	logger   *zap.Logger
	observer Observer
}

// NewRuleApplier creates a rule applier
func NewRuleApplier(
	records RecordStore,
	repo RuleSetRepository,
	policy LifecyclePolicy,
	logger *zap.Logger,
	observer Observer,
) *RuleApplier {
	if observer == nil {
		observer = NopObserver{}
	}
	return &RuleApplier{
		records:  records,
		repo:     repo,
		policy:   policy,
		logger:   logger,
		observer: observer,
	}
}

// Apply writes every rule-set decision onto the records of its sender in one
// transaction. Records already carrying the decided category are left alone, so
// applying the same rule-set twice changes nothing the second time. A missing
// rule-set is not an error.
func (a *RuleApplier) Apply(ctx context.Context) (*ApplyReport, error) {
	report := &ApplyReport{Changed: make(map[string]int)}

	ruleSet, err := a.repo.Load(ctx)
	if errors.Is(err, ErrRuleSetNotFound) {
		a.logger.Warn("No rule-set to apply")
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule-set: %w", err)
	}

	err = a.records.InTx(ctx, func(tx RecordTx) error {
		for _, sender := range ruleSet.Senders() {
			entry := ruleSet[sender]
			if !entry.Source.IsDecision() {
				continue
			}
			if err := a.applyEntry(ctx, tx, sender, entry, report); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply rule-set: %w", err)
	}

	a.logger.Info("Rule-set applied",
		zap.Int("changed", report.Total),
		zap.Any("by_category", report.Changed),
		zap.Strings("penalized", report.Penalized))
	a.observer.RulesApplied(report)
	return report, nil
}

func (a *RuleApplier) applyEntry(ctx context.Context, tx RecordTx, sender string, entry *RuleSetEntry, report *ApplyReport) error {
	recs, err := tx.RecordsBySender(ctx, sender)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if rec.Source.IsManual() && !entry.Source.IsManual() {
			continue
		}
		if rec.Classified && rec.Category == entry.Category {
			continue
		}

		if rec.Source == SourceLearned && entry.Source.IsManual() && rec.Category != entry.Category {
			if err := a.penalize(ctx, tx, rec, report); err != nil {
				return err
			}
		}

		c := Classification{
			Category:    entry.Category,
			Source:      entry.Source,
			Rationale:   entry.Rationale,
			RulePattern: entry.Pattern,
		}
		if err := tx.UpdateClassification(ctx, rec.ID, c); err != nil {
			return err
		}
		report.Changed[entry.Category]++
		report.Total++
	}
	return nil
}

// penalize lowers the confidence of the learned rule a human just overrode
func (a *RuleApplier) penalize(ctx context.Context, tx RecordTx, rec EmailRecord, report *ApplyReport) error {
	pattern := rec.RulePattern
	if pattern == "" {
		var ok bool
		if pattern, ok = PatternFromRationale(rec.Rationale); !ok {
			a.logger.Debug("Cannot recover originating rule",
				zap.String("id", rec.ID),
				zap.String("rationale", rec.Rationale))
			return nil
		}
	}
	// one correction per rule per apply, however many of the sender's records it labelled
	if slices.Contains(report.Penalized, pattern) {
		return nil
	}
	found, err := tx.Penalize(ctx, pattern, a.policy.CorrectionPenalty)
	if err != nil {
		return err
	}
	if found {
		a.logger.Info("Penalized learned rule",
			zap.String("pattern", pattern),
			zap.String("id", rec.ID),
			zap.Float64("penalty", a.policy.CorrectionPenalty))
		report.Penalized = append(report.Penalized, pattern)
	}
	return nil
}
