package game

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundClock_TicksUntilFuncDeclines(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	rc := NewRoundClock(mClock, ROUND_INTERVAL, TICK_INTERVAL)

	var calls atomic.Int32
	trigger := rc.StartTicks(ctx, func() bool {
		return calls.Add(1) < 3
	})

	for i := 0; i < 3; i++ {
		d, w := mClock.AdvanceNext()
		w.MustWait(ctx)
		assert.Equal(t, TICK_INTERVAL, d)
	}
	trigger.Wait()

	assert.Equal(t, int32(3), calls.Load())
	_, ok := mClock.Peek()
	assert.False(t, ok, "ticker should be gone")
}

func TestRoundClock_StopCancelsRounds(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	rc := NewRoundClock(mClock, ROUND_INTERVAL, TICK_INTERVAL)

	var calls atomic.Int32
	trigger := rc.StartRounds(ctx, func() { calls.Add(1) })

	d, w := mClock.AdvanceNext()
	w.MustWait(ctx)
	require.Equal(t, ROUND_INTERVAL, d)
	require.Equal(t, int32(1), calls.Load())

	trigger.Stop()
	trigger.Wait()

	require.Eventually(t, func() bool {
		_, ok := mClock.Peek()
		return !ok
	}, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRoundClock_After(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	rc := NewRoundClock(mClock, ROUND_INTERVAL, TICK_INTERVAL)

	fired := make(chan struct{})
	rc.After(WAIT_DELAY, func() { close(fired) })

	d, w := mClock.AdvanceNext()
	w.MustWait(ctx)
	assert.Equal(t, WAIT_DELAY, d)

	select {
	case <-fired:
	default:
		t.Fatal("AfterFunc did not fire")
	}
}

func TestNewRoundClock_DefaultsToRealClock(t *testing.T) {
	rc := NewRoundClock(nil, time.Second, time.Second)
	assert.WithinDuration(t, time.Now(), rc.Now(), time.Second)
}
