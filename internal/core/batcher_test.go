package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingPacer struct {
	waits int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return ctx.Err()
}

type batchEvents struct {
	core.NopObserver
	started  []int
	resolved []int
	failed   []int
}

func (b *batchEvents) BatchStarted(index, total, size int) {
	b.started = append(b.started, size)
}

func (b *batchEvents) BatchFinished(index, resolved int, err error) {
	b.resolved = append(b.resolved, resolved)
	if err != nil {
		b.failed = append(b.failed, index)
	}
}

func items(n int) []core.BatchItem {
	out := make([]core.BatchItem, n)
	for i := range out {
		out[i] = core.BatchItem{ID: fmt.Sprintf("person%02d@friends.org", i), Context: "hello"}
	}
	return out
}

func TestBatcherChunksAndPaces(t *testing.T) {
	oracle := &fakeOracle{classify: everyone("Personal_Life")}
	pacer := &countingPacer{}
	events := &batchEvents{}
	b := core.NewBatcher(oracle, pacer, 25, zap.NewNop(), events)

	got, err := b.Classify(context.Background(), items(60))
	require.NoError(t, err)

	assert.Len(t, got, 60)
	assert.Equal(t, 3, pacer.waits)
	assert.Equal(t, []int{25, 25, 10}, events.started)
	require.Len(t, oracle.batches, 3)
	assert.Len(t, oracle.batches[2], 10)
}

func TestBatcherIsolatesFailedChunks(t *testing.T) {
	oracle := &fakeOracle{classify: func(call int, batch []core.BatchItem) (map[string]core.Verdict, error) {
		if call == 2 {
			return nil, errors.New("rate limited")
		}
		return everyone("Personal_Life")(call, batch)
	}}
	events := &batchEvents{}
	b := core.NewBatcher(oracle, core.NoPacer{}, 25, zap.NewNop(), events)

	all := items(60)
	got, err := b.Classify(context.Background(), all)
	require.NoError(t, err)

	assert.Len(t, got, 35)
	assert.Contains(t, got, all[0].ID)
	assert.NotContains(t, got, all[25].ID)
	assert.NotContains(t, got, all[49].ID)
	assert.Contains(t, got, all[50].ID)
	assert.Equal(t, []int{2}, events.failed)
	assert.Equal(t, []int{25, 0, 10}, events.resolved)
}

func TestBatcherDropsForeignIDs(t *testing.T) {
	oracle := &fakeOracle{classify: func(int, []core.BatchItem) (map[string]core.Verdict, error) {
		return map[string]core.Verdict{
			"person00@friends.org": {Category: "Finance"},
			"stranger@else.com":    {Category: "Finance"},
		}, nil
	}}
	b := core.NewBatcher(oracle, nil, 0, zap.NewNop(), nil)

	got, err := b.Classify(context.Background(), items(2))
	require.NoError(t, err)
	assert.Equal(t, map[string]core.Verdict{"person00@friends.org": {Category: "Finance"}}, got)
}

func TestBatcherStopsOnCancellation(t *testing.T) {
	oracle := &fakeOracle{classify: everyone("Finance")}
	b := core.NewBatcher(oracle, &countingPacer{}, 25, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Classify(ctx, items(30))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, oracle.calls())
}
