package core_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mikey/llm-mail-sorter/internal/adapters/ruleset"
	"github.com/mikey/llm-mail-sorter/internal/adapters/store"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var passTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

// fakeOracle answers from callbacks and records every call
type fakeOracle struct {
	mu        sync.Mutex
	classify  func(call int, items []core.BatchItem) (map[string]core.Verdict, error)
	propose   func(positives, negatives []core.Example) (map[string]string, error)
	batches   [][]core.BatchItem
	positives []core.Example
	negatives []core.Example
	proposals int
}

func (o *fakeOracle) ClassifyBatch(ctx context.Context, items []core.BatchItem) (map[string]core.Verdict, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches = append(o.batches, items)
	if o.classify == nil {
		return map[string]core.Verdict{}, nil
	}
	return o.classify(len(o.batches), items)
}

func (o *fakeOracle) ProposePatterns(ctx context.Context, positives, negatives []core.Example) (map[string]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.proposals++
	o.positives = positives
	o.negatives = negatives
	if o.propose == nil {
		return map[string]string{}, nil
	}
	return o.propose(positives, negatives)
}

func (o *fakeOracle) calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.batches)
}

// everyone answers every item with the same category
func everyone(category string) func(int, []core.BatchItem) (map[string]core.Verdict, error) {
	return func(_ int, items []core.BatchItem) (map[string]core.Verdict, error) {
		out := make(map[string]core.Verdict, len(items))
		for _, it := range items {
			out[it.ID] = core.Verdict{Category: category, Rationale: "looks like " + category}
		}
		return out, nil
	}
}

type env struct {
	store       *store.MemoryStore
	repo        *ruleset.FileRepository
	oracle      *fakeOracle
	clock       *fixedClock
	table       *core.RuleTable
	service     *core.ClassificationService
	applier     *core.RuleApplier
	corrections *core.Corrections
	config      core.ServiceConfig
}

func newEnv(t *testing.T) *env {
	return newEnvWithConfig(t, func(*core.ServiceConfig) {})
}

func newEnvWithConfig(t *testing.T, tweak func(*core.ServiceConfig)) *env {
	t.Helper()
	logger := zap.NewNop()

	table, err := core.DefaultRuleTable()
	require.NoError(t, err)

	e := &env{
		clock:  &fixedClock{now: passTime},
		oracle: &fakeOracle{},
		table:  table,
		repo:   ruleset.NewFileRepository(filepath.Join(t.TempDir(), "rules.json"), logger),
	}
	e.store = store.NewMemoryStore(e.clock, logger)

	e.config = core.ServiceConfig{
		SubjectsPerSender: 3,
		MatchTimeout:      core.DefaultMatchTimeout,
		Lifecycle:         core.DefaultLifecyclePolicy(),
	}
	tweak(&e.config)

	batcher := core.NewBatcher(e.oracle, core.NoPacer{}, core.DefaultBatchSize, logger, nil)
	synth := core.NewSynthesizer(e.store, e.store, e.oracle, core.NoPacer{}, table,
		core.DefaultSynthesisConfig(), logger)

	e.service, err = core.NewClassificationService(e.store, e.store, e.repo, table, batcher, synth,
		e.clock, e.config, logger, nil)
	require.NoError(t, err)

	e.applier = core.NewRuleApplier(e.store, e.repo, e.config.Lifecycle, logger, nil)
	e.corrections = core.NewCorrections(e.repo, table, logger)
	return e
}

func (e *env) addMail(t *testing.T, id, sender, subject string, at time.Time) {
	t.Helper()
	_, err := e.store.InsertRecords(context.Background(), []core.EmailRecord{{
		ID:       id,
		Sender:   sender,
		Subject:  subject,
		Date:     at,
		Category: core.CategoryUnclassified,
		Source:   core.SourceUnclassified,
	}})
	require.NoError(t, err)
}

func (e *env) rule(t *testing.T, pattern string) core.LearnedRule {
	t.Helper()
	rules, err := e.store.List(context.Background())
	require.NoError(t, err)
	for _, r := range rules {
		if r.Pattern == pattern {
			return r
		}
	}
	t.Fatalf("learned rule %q not found", pattern)
	return core.LearnedRule{}
}

func (e *env) record(t *testing.T, id string) core.EmailRecord {
	t.Helper()
	r, err := e.store.GetRecord(context.Background(), id)
	require.NoError(t, err)
	return *r
}
