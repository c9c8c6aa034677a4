package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mikey/llm-mail-sorter/internal/adapters/store"
	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestApplyClassifiesAndIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addMail(t, "1", "a@x.com", "Hello", passTime)
	require.NoError(t, e.repo.Save(ctx, core.RuleSet{
		"a@x.com": {Category: "Finance", Source: core.SourceHardRule},
	}))

	report, err := e.applier.Apply(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, map[string]int{"Finance": 1}, report.Changed)

	rec := e.record(t, "1")
	assert.Equal(t, "Finance", rec.Category)
	assert.Equal(t, core.SourceHardRule, rec.Source)
	assert.True(t, rec.Classified)
	assert.False(t, rec.Synced, "a changed record must be re-synced")

	require.NoError(t, e.store.MarkSynced(ctx, []string{"1"}))
	report, err = e.applier.Apply(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Empty(t, report.Changed)
	assert.True(t, e.record(t, "1").Synced)
}

func TestApplyWithoutRuleSet(t *testing.T) {
	e := newEnv(t)

	report, err := e.applier.Apply(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
}

func TestApplySkipsUndecidedEntries(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addMail(t, "1", "who@knows.org", "Hmm", passTime)
	require.NoError(t, e.repo.Save(ctx, core.RuleSet{
		"who@knows.org": {Category: core.CategoryUnclassified, Source: core.SourceAIPending},
	}))

	report, err := e.applier.Apply(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.False(t, e.record(t, "1").Classified)
}

func TestApplyNeverOverridesManualRecordsAutomatically(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addMail(t, "1", "a@x.com", "Hello", passTime)
	require.NoError(t, e.repo.Save(ctx, core.RuleSet{
		"a@x.com": {Category: "Personal_Life", Source: core.SourceManual},
	}))
	_, err := e.applier.Apply(ctx)
	require.NoError(t, err)

	require.NoError(t, e.repo.Save(ctx, core.RuleSet{
		"a@x.com": {Category: "Finance", Source: core.SourceAIGenerated},
	}))
	report, err := e.applier.Apply(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Equal(t, "Personal_Life", e.record(t, "1").Category)
}

func TestApplyPenalizesOverriddenLearnedRule(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.store.Upsert(ctx, `shop\.example`, "Shopping_Promo")
	require.NoError(t, err)
	e.addMail(t, "1", "deals@shop.example", "Weekly deals", passTime)
	e.addMail(t, "2", "deals@shop.example", "More deals", passTime)

	_, err = e.service.RunPass(ctx, core.PassOptions{})
	require.NoError(t, err)
	_, err = e.applier.Apply(ctx)
	require.NoError(t, err)
	rec := e.record(t, "1")
	require.Equal(t, core.SourceLearned, rec.Source)
	require.Equal(t, `shop\.example`, rec.RulePattern)

	_, err = e.corrections.SetManual(ctx, "deals@shop.example", "Finance")
	require.NoError(t, err)
	report, err := e.applier.Apply(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, []string{`shop\.example`}, report.Penalized)
	rule := e.rule(t, `shop\.example`)
	assert.InDelta(t, 0.6, rule.Confidence, 1e-9)
	assert.Equal(t, 1, rule.CorrectionCount)

	rec = e.record(t, "1")
	assert.Equal(t, "Finance", rec.Category)
	assert.Equal(t, core.SourceManual, rec.Source)
}

func TestApplyRecoversPatternFromLegacyRationale(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.store.Upsert(ctx, `shop\.example`, "Shopping_Promo")
	require.NoError(t, err)
	_, err = e.store.InsertRecords(ctx, []core.EmailRecord{
		{
			ID:         "legacy",
			Sender:     "deals@shop.example",
			Date:       passTime,
			Category:   "Shopping_Promo",
			Classified: true,
			Source:     core.SourceLearned,
			Rationale:  `Matched learned rule "shop\\.example"`,
		},
		{
			ID:         "opaque",
			Sender:     "old@shop.example",
			Date:       passTime,
			Category:   "Shopping_Promo",
			Classified: true,
			Source:     core.SourceLearned,
			Rationale:  "matched something once",
		},
	})
	require.NoError(t, err)
	require.NoError(t, e.repo.Save(ctx, core.RuleSet{
		"deals@shop.example": {Category: "Finance", Source: core.SourceManual},
		"old@shop.example":   {Category: "Finance", Source: core.SourceManual},
	}))

	report, err := e.applier.Apply(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, []string{`shop\.example`}, report.Penalized)
	assert.InDelta(t, 0.6, e.rule(t, `shop\.example`).Confidence, 1e-9)
	assert.Equal(t, "Finance", e.record(t, "opaque").Category)
}

// flakyStore fails the n-th classification update inside a transaction
type flakyStore struct {
	*store.MemoryStore
	failAt int
}

type flakyTx struct {
	core.RecordTx
	updates *int
	failAt  int
}

func (tx *flakyTx) UpdateClassification(ctx context.Context, id string, c core.Classification) error {
	*tx.updates++
	if *tx.updates == tx.failAt {
		return errors.New("disk full")
	}
	return tx.RecordTx.UpdateClassification(ctx, id, c)
}

func (s *flakyStore) InTx(ctx context.Context, fn func(tx core.RecordTx) error) error {
	updates := 0
	return s.MemoryStore.InTx(ctx, func(tx core.RecordTx) error {
		return fn(&flakyTx{RecordTx: tx, updates: &updates, failAt: s.failAt})
	})
}

func TestApplyRollsBackOnStoreFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.store.Upsert(ctx, `shop\.example`, "Shopping_Promo")
	require.NoError(t, err)
	_, err = e.store.InsertRecords(ctx, []core.EmailRecord{
		{ID: "1", Sender: "deals@shop.example", Date: passTime, Category: "Shopping_Promo",
			Classified: true, Source: core.SourceLearned, RulePattern: `shop\.example`},
		{ID: "2", Sender: "z@z.org", Date: passTime, Category: core.CategoryUnclassified,
			Source: core.SourceUnclassified},
	})
	require.NoError(t, err)
	require.NoError(t, e.repo.Save(ctx, core.RuleSet{
		"deals@shop.example": {Category: "Finance", Source: core.SourceManual},
		"z@z.org":            {Category: "Personal_Life", Source: core.SourceAIGenerated},
	}))

	flaky := &flakyStore{MemoryStore: e.store, failAt: 2}
	applier := core.NewRuleApplier(flaky, e.repo, core.DefaultLifecyclePolicy(), zap.NewNop(), nil)

	_, err = applier.Apply(ctx)
	require.Error(t, err)

	assert.Equal(t, "Shopping_Promo", e.record(t, "1").Category)
	assert.False(t, e.record(t, "2").Classified)
	rule := e.rule(t, `shop\.example`)
	assert.Equal(t, 1.0, rule.Confidence)
	assert.Zero(t, rule.CorrectionCount)
}
