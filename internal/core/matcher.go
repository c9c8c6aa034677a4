package core

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
)

// DefaultMatchTimeout bounds a single pattern evaluation
const DefaultMatchTimeout = 250 * time.Millisecond

const (
	learnedRationalePrefix = "Matched learned rule "
	staticRationalePrefix  = "Matched static rule "
)

// Match is the first rule that fired for a search text
type Match struct {
	Pattern  string
	Category string
	Source   Source
}

// Rationale renders the human-readable explanation stored with the decision
func (m *Match) Rationale() string {
	if m.Source == SourceLearned {
		return learnedRationalePrefix + strconv.Quote(m.Pattern)
	}
	return staticRationalePrefix + strconv.Quote(m.Pattern)
}

// PatternFromRationale recovers the pattern from a learned-rule rationale.
// It only serves records written before the pattern was stored as its own field.
func PatternFromRationale(rationale string) (string, bool) {
	i := strings.Index(rationale, learnedRationalePrefix)
	if i < 0 {
		return "", false
	}
	quoted, err := strconv.QuotedPrefix(rationale[i+len(learnedRationalePrefix):])
	if err != nil {
		return "", false
	}
	pattern, err := strconv.Unquote(quoted)
	if err != nil || pattern == "" {
		return "", false
	}
	return pattern, true
}

// Matcher finds the first rule matching a search text; no match is (nil, nil)
type Matcher interface {
	Match(ctx context.Context, text string) (*Match, error)
}

// SearchText builds the matching context from a sender and its most recent subjects
func SearchText(sender string, subjects []string, maxSubjects int) string {
	parts := []string{sender}
	for i, s := range subjects {
		if maxSubjects > 0 && i >= maxSubjects {
			break
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

type compiledRule struct {
	pattern  string
	category string
	re       *regexp2.Regexp
}

func compilePattern(pattern string, timeout time.Duration) (*regexp2.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		re.MatchTimeout = timeout
	}
	return re, nil
}

// ValidPattern reports whether pattern compiles as a rule expression
func ValidPattern(pattern string) bool {
	_, err := compilePattern(pattern, 0)
	return err == nil
}

// StaticMatcher matches against the rule table in declaration order
type StaticMatcher struct {
	rules  []compiledRule
	logger *zap.Logger
}

// NewStaticMatcher compiles the rule table
func NewStaticMatcher(table *RuleTable, timeout time.Duration, logger *zap.Logger) (*StaticMatcher, error) {
	m := &StaticMatcher{logger: logger}
	for _, c := range table.Categories {
		for _, p := range c.Patterns {
			re, err := compilePattern(p, timeout)
			if err != nil {
				return nil, fmt.Errorf("failed to compile static rule %q: %w", p, err)
			}
			m.rules = append(m.rules, compiledRule{pattern: p, category: c.Name, re: re})
		}
	}
	return m, nil
}

// Match returns the first static rule matching text
func (m *StaticMatcher) Match(_ context.Context, text string) (*Match, error) {
	for _, r := range m.rules {
		ok, err := r.re.MatchString(text)
		if err != nil {
			m.logger.Warn("Static rule evaluation failed",
				zap.String("pattern", r.pattern),
				zap.Error(err))
			continue
		}
		if ok {
			return &Match{Pattern: r.pattern, Category: r.category, Source: SourceHardRule}, nil
		}
	}
	return nil, nil
}

// LearnedMatcher matches against learned rules, most hit first. A rule that fires
// is recorded as hit once per matcher, however many texts it matches.
type LearnedMatcher struct {
	rules    []compiledRule
	store    LearnedRuleStore
	at       time.Time
	recorded map[string]bool
	logger   *zap.Logger
}

// NewLearnedMatcher compiles the given rules; patterns that do not compile are skipped.
// Hits are stamped with at, the logical time of the pass.
func NewLearnedMatcher(
	rules []LearnedRule,
	store LearnedRuleStore,
	at time.Time,
	timeout time.Duration,
	logger *zap.Logger,
) *LearnedMatcher {
	ordered := make([]LearnedRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].HitCount > ordered[j].HitCount
	})

	m := &LearnedMatcher{store: store, at: at, recorded: make(map[string]bool), logger: logger}
	for _, r := range ordered {
		re, err := compilePattern(r.Pattern, timeout)
		if err != nil {
			logger.Warn("Skipping learned rule with invalid pattern",
				zap.String("pattern", r.Pattern),
				zap.Error(err))
			continue
		}
		m.rules = append(m.rules, compiledRule{pattern: r.Pattern, category: r.Category, re: re})
	}
	return m
}

// Match returns the first learned rule matching text and records the hit
func (m *LearnedMatcher) Match(ctx context.Context, text string) (*Match, error) {
	for _, r := range m.rules {
		ok, err := r.re.MatchString(text)
		if err != nil {
			m.logger.Warn("Learned rule evaluation failed",
				zap.String("pattern", r.pattern),
				zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if !m.recorded[r.pattern] {
			if err := m.store.RecordHit(ctx, r.pattern, m.at); err != nil {
				return nil, fmt.Errorf("failed to record hit for %q: %w", r.pattern, err)
			}
			m.recorded[r.pattern] = true
		}
		return &Match{Pattern: r.pattern, Category: r.category, Source: SourceLearned}, nil
	}
	return nil, nil
}

// MatchChain consults its matchers in order; the first hit wins
type MatchChain []Matcher

// Match runs the chain
func (c MatchChain) Match(ctx context.Context, text string) (*Match, error) {
	for _, m := range c {
		match, err := m.Match(ctx, text)
		if err != nil {
			return nil, err
		}
		if match != nil {
			return match, nil
		}
	}
	return nil, nil
}
