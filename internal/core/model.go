package core

import (
	"sort"
	"time"
)

// CategoryUnclassified is the category of a message no layer could decide on
const CategoryUnclassified = "Unclassified"

// Source records which layer produced a classification
type Source string

const (
	SourceUnclassified   Source = "Unclassified"
	SourceHardRule       Source = "Hard_Rule"
	SourceLearned        Source = "Learned"
	SourceAIGenerated    Source = "AI_Generated"
	SourceAIPending      Source = "AI_Pending"
	SourceManual         Source = "Manual"
	SourceManualMigrated Source = "Manual_Migrated"
)

// IsManual reports whether the source is a human decision
func (s Source) IsManual() bool {
	return s == SourceManual || s == SourceManualMigrated
}

// IsDecision reports whether the source carries a category worth applying
func (s Source) IsDecision() bool {
	return s != SourceUnclassified && s != SourceAIPending && s != ""
}

// EmailRecord is a stored message together with its classification state
type EmailRecord struct {
	ID           string    `db:"id"`
	Sender       string    `db:"sender"`
	Subject      string    `db:"subject"`
	Snippet      string    `db:"snippet"`
	Date         time.Time `db:"received_at"`
	Category     string    `db:"category"`
	Classified   bool      `db:"classified"`
	Source       Source    `db:"source"`
	Rationale    string    `db:"rationale"`
	RulePattern  string    `db:"rule_pattern"`
	Synced       bool      `db:"synced"`
	SizeEstimate int64     `db:"size_estimate"`
}

// Classification is the set of fields the applier writes onto a record
type Classification struct {
	Category    string
	Source      Source
	Rationale   string
	RulePattern string
}

// LearnedRule is a pattern discovered from human corrections
type LearnedRule struct {
	ID              int64      `db:"id"`
	Pattern         string     `db:"pattern"`
	Category        string     `db:"category"`
	Confidence      float64    `db:"confidence"`
	HitCount        int        `db:"hit_count"`
	CorrectionCount int        `db:"correction_count"`
	CreatedAt       time.Time  `db:"created_at"`
	LastHitAt       *time.Time `db:"last_hit_at"`
}

// LastUsed returns the last hit time, or the creation time for a rule never hit
func (r LearnedRule) LastUsed() time.Time {
	if r.LastHitAt != nil {
		return *r.LastHitAt
	}
	return r.CreatedAt
}

// RuleSetEntry is the persisted decision for one sender
type RuleSetEntry struct {
	Category  string    `json:"category"`
	Source    Source    `json:"source"`
	Rationale string    `json:"rationale,omitempty"`
	Pattern   string    `json:"pattern,omitempty"`
	Count     int       `json:"count"`
	LastDate  time.Time `json:"last_date"`
	Subjects  []string  `json:"subjects,omitempty"`
}

// RuleSet is the durable sender -> decision mapping produced by one pass
type RuleSet map[string]*RuleSetEntry

// Senders returns the senders of the rule-set in lexical order
func (rs RuleSet) Senders() []string {
	senders := make([]string, 0, len(rs))
	for sender := range rs {
		senders = append(senders, sender)
	}
	sort.Strings(senders)
	return senders
}

// SenderAggregate summarizes the messages of one sender
type SenderAggregate struct {
	Sender   string
	Count    int
	LastDate time.Time
	Subjects []string
}

// Verdict is the oracle's decision for one item
type Verdict struct {
	Category  string
	Rationale string
}

// BatchItem is one (identifier, context) pair submitted to the oracle
type BatchItem struct {
	ID      string
	Context string
}

// Example is a labelled message handed to the oracle when proposing patterns
type Example struct {
	Sender   string
	Subject  string
	Category string
}
