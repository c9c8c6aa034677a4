package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrUnknownCategory is returned when a correction names a category outside the rule table
var ErrUnknownCategory = errors.New("unknown category")

// Corrections records human decisions in the rule-set
type Corrections struct {
	repo   RuleSetRepository
	table  *RuleTable
	logger *zap.Logger
}

// NewCorrections creates a corrections service
func NewCorrections(repo RuleSetRepository, table *RuleTable, logger *zap.Logger) *Corrections {
	return &Corrections{repo: repo, table: table, logger: logger}
}

// SetManual pins sender to category. Existing metadata is kept.
func (c *Corrections) SetManual(ctx context.Context, sender, category string) (*RuleSetEntry, error) {
	sender = strings.ToLower(strings.TrimSpace(sender))
	if sender == "" {
		return nil, fmt.Errorf("sender is required")
	}
	if !c.table.HasCategory(category) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}

	rs, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	entry := &RuleSetEntry{}
	if prior, ok := rs[sender]; ok {
		*entry = *prior
	}
	entry.Category = category
	entry.Source = SourceManual
	entry.Rationale = "Set manually"
	entry.Pattern = ""
	rs[sender] = entry

	if err := c.repo.Save(ctx, rs); err != nil {
		return nil, fmt.Errorf("failed to save rule-set: %w", err)
	}
	c.logger.Info("Manual rule set",
		zap.String("sender", sender),
		zap.String("category", category))
	return entry, nil
}

// Delete removes the entry for sender; it reports whether one existed
func (c *Corrections) Delete(ctx context.Context, sender string) (bool, error) {
	sender = strings.ToLower(strings.TrimSpace(sender))
	rs, err := c.load(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := rs[sender]; !ok {
		return false, nil
	}
	delete(rs, sender)
	if err := c.repo.Save(ctx, rs); err != nil {
		return false, fmt.Errorf("failed to save rule-set: %w", err)
	}
	c.logger.Info("Rule deleted", zap.String("sender", sender))
	return true, nil
}

// List returns the current rule-set, empty if none was saved yet
func (c *Corrections) List(ctx context.Context) (RuleSet, error) {
	return c.load(ctx)
}

func (c *Corrections) load(ctx context.Context) (RuleSet, error) {
	rs, err := c.repo.Load(ctx)
	if errors.Is(err, ErrRuleSetNotFound) {
		return RuleSet{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule-set: %w", err)
	}
	return rs, nil
}
