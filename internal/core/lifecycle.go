package core

import "time"

// LifecyclePolicy governs confidence decay and garbage collection of learned rules
type LifecyclePolicy struct {
	MinConfidence     float64
	StaleAfter        time.Duration
	CorrectionPenalty float64
}

// DefaultLifecyclePolicy returns the standard thresholds
func DefaultLifecyclePolicy() LifecyclePolicy {
	return LifecyclePolicy{
		MinConfidence:     0.3,
		StaleAfter:        30 * 24 * time.Hour,
		CorrectionPenalty: 0.4,
	}
}

// Collectable reports whether the rule should be removed by a GC sweep at now
func (p LifecyclePolicy) Collectable(r LearnedRule, now time.Time) bool {
	if r.Confidence < p.MinConfidence {
		return true
	}
	return r.LastUsed().Before(p.StaleCutoff(now))
}

// StaleCutoff is the oldest last-use time a rule may have and survive
func (p LifecyclePolicy) StaleCutoff(now time.Time) time.Time {
	return now.Add(-p.StaleAfter)
}

// Active reports whether the rule takes part in matching
func (p LifecyclePolicy) Active(r LearnedRule) bool {
	return r.Confidence > p.MinConfidence
}

// DecayConfidence subtracts amount and clamps the result to [0, 1]
func DecayConfidence(confidence, amount float64) float64 {
	c := confidence - amount
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
