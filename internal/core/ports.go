package core

import (
	"context"
	"errors"
	"time"
)

// ErrRuleSetNotFound is returned when no rule-set has been persisted yet
var ErrRuleSetNotFound = errors.New("rule-set not found")

// Oracle is the external batch categorization service
type Oracle interface {
	// ClassifyBatch returns a verdict per item id, or fails the whole batch
	ClassifyBatch(ctx context.Context, items []BatchItem) (map[string]Verdict, error)

	// ProposePatterns returns generalized patterns (pattern -> category) that match
	// the positives and none of the negatives
	ProposePatterns(ctx context.Context, positives, negatives []Example) (map[string]string, error)
}

// LearnedRuleStore persists learned rules and their lifecycle counters
type LearnedRuleStore interface {
	// Upsert creates the rule if the pattern is unknown; an existing rule is left untouched
	Upsert(ctx context.Context, pattern, category string) (bool, error)

	// ActiveRules returns rules above the confidence floor, most hit first
	ActiveRules(ctx context.Context, minConfidence float64) ([]LearnedRule, error)

	// RecordHit increments the hit counter and stamps the last hit time
	RecordHit(ctx context.Context, pattern string, at time.Time) error

	// GarbageCollect deletes low-confidence or stale rules and returns them
	GarbageCollect(ctx context.Context, now time.Time, policy LifecyclePolicy) ([]LearnedRule, error)

	// Penalize lowers the confidence of a rule; a missing rule is not an error
	Penalize(ctx context.Context, pattern string, amount float64) (bool, error)

	// List returns every stored rule
	List(ctx context.Context) ([]LearnedRule, error)
}

// RecordStore is the source and sink of email records
type RecordStore interface {
	// InsertRecords stores new records, ignoring ids already present
	InsertRecords(ctx context.Context, records []EmailRecord) (int, error)

	// AggregateSenders groups records by sender, most frequent first; limit 0 means unbounded
	AggregateSenders(ctx context.Context, limit, maxSubjects int) ([]SenderAggregate, error)

	// RecentManual returns manually classified records, most recent first
	RecentManual(ctx context.Context, limit int) ([]EmailRecord, error)

	// SampleClassified returns a random sample of classified records outside the given categories
	SampleClassified(ctx context.Context, excludeCategories []string, limit int) ([]EmailRecord, error)

	// ListUnsynced returns classified records whose remote label is stale
	ListUnsynced(ctx context.Context, limit int) ([]EmailRecord, error)

	// MarkSynced flags records as reflected remotely
	MarkSynced(ctx context.Context, ids []string) error

	// InTx runs fn inside one transaction; any error rolls everything back
	InTx(ctx context.Context, fn func(tx RecordTx) error) error
}

// RecordTx is the transactional view used by the rule applier
type RecordTx interface {
	RecordsBySender(ctx context.Context, sender string) ([]EmailRecord, error)
	UpdateClassification(ctx context.Context, id string, c Classification) error
	Penalize(ctx context.Context, pattern string, amount float64) (bool, error)
}

// RuleSetRepository loads and stores the rule-set artifact
type RuleSetRepository interface {
	// Load returns ErrRuleSetNotFound when nothing was saved yet
	Load(ctx context.Context) (RuleSet, error)
	Save(ctx context.Context, rs RuleSet) error
}

// Pacer enforces the minimum delay between two oracle calls
type Pacer interface {
	Wait(ctx context.Context) error
}

// Clock returns the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
