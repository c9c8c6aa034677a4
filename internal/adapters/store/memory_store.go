package store

import (
	"context"
	"math/rand"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/mikey/llm-mail-sorter/internal/core"
	"go.uber.org/zap"
)

// MemoryStore keeps records and learned rules in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]core.EmailRecord
	rules   map[string]*core.LearnedRule
	nextID  int64
	rand    *rand.Rand
	clock   core.Clock
	logger  *zap.Logger
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(clock core.Clock, logger *zap.Logger) *MemoryStore {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &MemoryStore{
		records: make(map[string]core.EmailRecord),
		rules:   make(map[string]*core.LearnedRule),
		rand:    rand.New(rand.NewSource(clock.Now().UnixNano())),
		clock:   clock,
		logger:  logger,
	}
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

// InsertRecords stores records whose id is not yet known
func (s *MemoryStore) InsertRecords(ctx context.Context, records []core.EmailRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, r := range records {
		if _, ok := s.records[r.ID]; ok {
			continue
		}
		r.Date = r.Date.UTC()
		s.records[r.ID] = r
		inserted++
	}
	return inserted, nil
}

// GetRecord returns the record with the given id
func (s *MemoryStore) GetRecord(ctx context.Context, id string) (*core.EmailRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &r, nil
}

// AggregateSenders groups records by sender, most frequent first
func (s *MemoryStore) AggregateSenders(ctx context.Context, limit, maxSubjects int) ([]core.SenderAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return core.AggregateSenders(s.all(), limit, maxSubjects), nil
}

// RecentManual returns manually classified records, newest first
func (s *MemoryStore) RecentManual(ctx context.Context, limit int) ([]core.EmailRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.EmailRecord
	for _, r := range s.all() {
		if r.Source.IsManual() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return truncate(out, limit), nil
}

// SampleClassified returns a random sample of classified records outside excludeCategories
func (s *MemoryStore) SampleClassified(ctx context.Context, excludeCategories []string, limit int) ([]core.EmailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.EmailRecord
	for _, r := range s.all() {
		if !r.Classified || r.Category == core.CategoryUnclassified {
			continue
		}
		if slices.Contains(excludeCategories, r.Category) {
			continue
		}
		out = append(out, r)
	}
	s.rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return truncate(out, limit), nil
}

// ListUnsynced returns classified records whose remote label is stale, oldest first
func (s *MemoryStore) ListUnsynced(ctx context.Context, limit int) ([]core.EmailRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.EmailRecord
	for _, r := range s.all() {
		if r.Classified && !r.Synced {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return truncate(out, limit), nil
}

// MarkSynced flags the given records as synced
func (s *MemoryStore) MarkSynced(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if r, ok := s.records[id]; ok {
			r.Synced = true
			s.records[id] = r
		}
	}
	return nil
}

// InTx runs fn against a copy of the store and commits the copy only if fn succeeds
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx core.RecordTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		records: make(map[string]core.EmailRecord, len(s.records)),
		rules:   make(map[string]*core.LearnedRule, len(s.rules)),
	}
	for id, r := range s.records {
		tx.records[id] = r
	}
	for p, r := range s.rules {
		c := *r
		tx.rules[p] = &c
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.records = tx.records
	s.rules = tx.rules
	return nil
}

// Upsert creates a learned rule unless the pattern already exists
func (s *MemoryStore) Upsert(ctx context.Context, pattern, category string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[pattern]; ok {
		return false, nil
	}
	s.nextID++
	s.rules[pattern] = &core.LearnedRule{
		ID:         s.nextID,
		Pattern:    pattern,
		Category:   category,
		Confidence: 1.0,
		CreatedAt:  s.clock.Now().UTC(),
	}
	return true, nil
}

// ActiveRules returns rules above minConfidence, most hit first
func (s *MemoryStore) ActiveRules(ctx context.Context, minConfidence float64) ([]core.LearnedRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.LearnedRule
	for _, r := range s.sortedRules() {
		if r.Confidence > minConfidence {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].HitCount > out[j].HitCount
	})
	return out, nil
}

// RecordHit counts a hit on pattern; an unknown pattern is ignored
func (s *MemoryStore) RecordHit(ctx context.Context, pattern string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rules[pattern]; ok {
		r.HitCount++
		t := at.UTC()
		r.LastHitAt = &t
	}
	return nil
}

// GarbageCollect deletes every rule the policy considers collectable at now
func (s *MemoryStore) GarbageCollect(ctx context.Context, now time.Time, policy core.LifecyclePolicy) ([]core.LearnedRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted []core.LearnedRule
	for _, r := range s.sortedRules() {
		if policy.Collectable(r, now) {
			delete(s.rules, r.Pattern)
			deleted = append(deleted, r)
		}
	}
	return deleted, nil
}

// Penalize lowers the confidence of pattern and counts the correction
func (s *MemoryStore) Penalize(ctx context.Context, pattern string, amount float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return penalizeRule(s.rules, pattern, amount), nil
}

// List returns every learned rule in creation order
func (s *MemoryStore) List(ctx context.Context) ([]core.LearnedRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedRules(), nil
}

func (s *MemoryStore) all() []core.EmailRecord {
	out := make([]core.EmailRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryStore) sortedRules() []core.LearnedRule {
	out := make([]core.LearnedRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

type memoryTx struct {
	records map[string]core.EmailRecord
	rules   map[string]*core.LearnedRule
}

func (tx *memoryTx) RecordsBySender(ctx context.Context, sender string) ([]core.EmailRecord, error) {
	var out []core.EmailRecord
	for _, r := range tx.records {
		if r.Sender == sender {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (tx *memoryTx) UpdateClassification(ctx context.Context, id string, c core.Classification) error {
	r, ok := tx.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	r.Category = c.Category
	r.Source = c.Source
	r.Rationale = c.Rationale
	r.RulePattern = c.RulePattern
	r.Classified = true
	r.Synced = false
	tx.records[id] = r
	return nil
}

func (tx *memoryTx) Penalize(ctx context.Context, pattern string, amount float64) (bool, error) {
	return penalizeRule(tx.rules, pattern, amount), nil
}

func penalizeRule(rules map[string]*core.LearnedRule, pattern string, amount float64) bool {
	r, ok := rules[pattern]
	if !ok {
		return false
	}
	r.Confidence = core.DecayConfidence(r.Confidence, amount)
	r.CorrectionCount++
	return true
}

func truncate(records []core.EmailRecord, limit int) []core.EmailRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
