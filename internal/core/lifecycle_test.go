package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollectable(t *testing.T) {
	p := DefaultLifecyclePolicy()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := now.Add(-24 * time.Hour)
	old := now.Add(-31 * 24 * time.Hour)

	tests := []struct {
		name string
		rule LearnedRule
		want bool
	}{
		{"fresh", LearnedRule{Confidence: 1, CreatedAt: recent}, false},
		{"low confidence", LearnedRule{Confidence: 0.2, CreatedAt: recent}, true},
		{"at the floor", LearnedRule{Confidence: 0.3, CreatedAt: recent}, false},
		{"never hit, created long ago", LearnedRule{Confidence: 1, CreatedAt: old}, true},
		{"old but hit recently", LearnedRule{Confidence: 1, CreatedAt: old, LastHitAt: &recent}, false},
		{"hit long ago", LearnedRule{Confidence: 1, CreatedAt: old, LastHitAt: &old}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Collectable(tt.rule, now))
		})
	}
}

func TestDecayConfidence(t *testing.T) {
	assert.InDelta(t, 0.6, DecayConfidence(1.0, 0.4), 1e-9)
	assert.Equal(t, 0.0, DecayConfidence(0.2, 0.4))
	assert.Equal(t, 1.0, DecayConfidence(1.0, -0.5))
}
