package game

import (
	"context"
	"errors"
	"time"

	"github.com/coder/quartz"
)

const (
	ROUND_INTERVAL = 35 * time.Second
	TICK_INTERVAL  = 200 * time.Millisecond

	clockTagRound = "round"
	clockTagTick  = "tick"
	clockTagWait  = "wait"
)

var errTriggerDone = errors.New("trigger done")

// Trigger is a running periodic task. Stop does not wait for an in-flight
// firing, callers guard their callbacks against late firings.
type Trigger struct {
	cancel context.CancelFunc
	waiter quartz.Waiter
}

func (t *Trigger) Stop() {
	t.cancel()
}

// Wait blocks until the trigger has stopped and no firing is in progress.
func (t *Trigger) Wait() {
	_ = t.waiter.Wait()
}

// RoundClock owns the coarse round trigger and the fine multiplier tick.
type RoundClock struct {
	clock         quartz.Clock
	roundInterval time.Duration
	tickInterval  time.Duration
}

func NewRoundClock(clock quartz.Clock, roundInterval, tickInterval time.Duration) *RoundClock {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &RoundClock{
		clock:         clock,
		roundInterval: roundInterval,
		tickInterval:  tickInterval,
	}
}

// StartRounds calls fn every round interval until ctx is done or the trigger
// is stopped.
func (c *RoundClock) StartRounds(ctx context.Context, fn func()) *Trigger {
	return c.every(ctx, c.roundInterval, func() bool {
		fn()
		return true
	}, clockTagRound)
}

// StartTicks calls fn every tick interval. The trigger stops itself once fn
// returns false.
func (c *RoundClock) StartTicks(ctx context.Context, fn func() bool) *Trigger {
	return c.every(ctx, c.tickInterval, fn, clockTagTick)
}

// After runs fn once after d unless the returned timer is stopped first.
func (c *RoundClock) After(d time.Duration, fn func()) *quartz.Timer {
	return c.clock.AfterFunc(d, fn, clockTagWait)
}

func (c *RoundClock) Now() time.Time {
	return c.clock.Now()
}

func (c *RoundClock) every(ctx context.Context, d time.Duration, fn func() bool, tag string) *Trigger {
	ctx, cancel := context.WithCancel(ctx)
	waiter := c.clock.TickerFunc(ctx, d, func() error {
		if !fn() {
			return errTriggerDone
		}
		return nil
	}, tag)
	return &Trigger{cancel: cancel, waiter: waiter}
}
