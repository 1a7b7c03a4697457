package browser

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunWithinCancelsStuckCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	fired, err := runWithin(20*time.Millisecond, cancel, func() error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !fired || !errors.Is(err, context.Canceled) {
		t.Errorf("got fired=%v err=%v, want fired and context.Canceled", fired, err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("call was not bounded: took %v", elapsed)
	}
}

func TestRunWithinLeavesFastCallAlone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired, err := runWithin(time.Minute, cancel, func() error { return nil })
	if fired || err != nil {
		t.Errorf("got fired=%v err=%v", fired, err)
	}
	time.Sleep(10 * time.Millisecond)
	if ctx.Err() != nil {
		t.Error("context should stay usable after a call that finished in time")
	}
}
