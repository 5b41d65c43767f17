package testutil_test

import (
	"context"
	"testing"
	"time"

	"github.com/sophialabs/apitrail/internal/testutil"
)

func TestFakeClock_AdvanceFiresInOrder(t *testing.T) {
	clk := testutil.NewFakeClock(time.Unix(0, 0))
	var order []int
	var at []time.Time

	clk.AfterFunc(3*time.Second, func() { order = append(order, 3); at = append(at, clk.Now()) })
	clk.AfterFunc(1*time.Second, func() { order = append(order, 1); at = append(at, clk.Now()) })
	stop := clk.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	if !stop() {
		t.Fatal("expected pending timer to stop")
	}
	clk.Advance(5 * time.Second)

	if len(order) != 2 || order[0] != 1 || order[1] != 3 {
		t.Fatalf("expected [1 3], got %v", order)
	}
	if at[0].Unix() != 1 || at[1].Unix() != 3 {
		t.Errorf("timers saw wrong times: %v", at)
	}
	if clk.Now().Unix() != 5 || clk.Pending() != 0 {
		t.Errorf("unexpected end state: now=%v pending=%d", clk.Now(), clk.Pending())
	}
}

func TestFakeClock_TimerScheduledFromCallback(t *testing.T) {
	clk := testutil.NewFakeClock(time.Unix(0, 0))
	fired := 0
	clk.AfterFunc(time.Second, func() {
		fired++
		clk.AfterFunc(time.Second, func() { fired++ })
	})

	clk.Advance(time.Second)
	if fired != 1 || clk.Pending() != 1 {
		t.Fatalf("expected first timer only, fired=%d pending=%d", fired, clk.Pending())
	}
	clk.Advance(time.Second)
	if fired != 2 {
		t.Errorf("expected chained timer to fire, fired=%d", fired)
	}
}

func TestFakeClock_SleepContext(t *testing.T) {
	clk := testutil.NewFakeClock(time.Unix(0, 0))
	done := make(chan error, 1)
	go func() { done <- clk.SleepContext(context.Background(), time.Minute) }()

	if !clk.WaitForTimers(1, time.Second) {
		t.Fatal("sleep never registered a timer")
	}
	clk.Advance(time.Minute)
	if err := <-done; err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := clk.SleepContext(ctx, time.Minute); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
