package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalPacerDelaysEveryCall(t *testing.T) {
	p := NewIntervalPacer(30 * time.Millisecond)

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	require.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestIntervalPacerWithoutInterval(t *testing.T) {
	p := NewIntervalPacer(0)

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestIntervalPacerHonoursCancellation(t *testing.T) {
	p := NewIntervalPacer(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, p.Wait(ctx))
}
