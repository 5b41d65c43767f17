package feed_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/sophialabs/apitrail/internal/domain/feed"
	"github.com/sophialabs/apitrail/internal/domain/group"
	"github.com/sophialabs/apitrail/internal/testutil"
)

type recorder struct {
	calls [][]group.Group
}

func (r *recorder) handle(groups []group.Group) {
	r.calls = append(r.calls, groups)
}

func (r *recorder) last() []group.Group {
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func newReconciler(t *testing.T) (*feed.Reconciler, *testutil.FakeClock, *recorder) {
	t.Helper()
	clock := testutil.NewFakeClock(time.Unix(0, 0))
	rec := &recorder{}
	r := feed.NewReconciler(clock, nil)
	r.OnChange(rec.handle)
	t.Cleanup(r.Stop)
	return r, clock, rec
}

func serials(groups []group.Group) string {
	s := ""
	for i, g := range groups {
		if i > 0 {
			s += ","
		}
		s += g.Serial
		if g.IsNew {
			s += "*"
		}
	}
	return s
}

func TestReconciler_SnapshotThenMergeScenario(t *testing.T) {
	r, clock, rec := newReconciler(t)

	err := r.LoadSnapshot([]group.Group{{Serial: "A", Status: group.StatusSuccess, Events: []group.Event{}}})
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if got := serials(r.Groups()); got != "A" {
		t.Fatalf("expected [A], got [%s]", got)
	}
	rec.calls = nil

	outcome := r.Merge(group.Group{
		Serial: "B",
		Status: group.StatusFailure,
		Events: []group.Event{{EventType: group.EventAPIError}},
	})
	if outcome != feed.MergeInserted {
		t.Errorf("expected inserted, got %s", outcome)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(rec.calls))
	}
	if got := serials(rec.last()); got != "B*,A" {
		t.Errorf("expected [B* A], got [%s]", got)
	}

	clock.Advance(999 * time.Millisecond)
	if len(rec.calls) != 1 {
		t.Fatalf("marker cleared early: %d notifications", len(rec.calls))
	}

	clock.Advance(time.Millisecond)
	if len(rec.calls) != 2 {
		t.Fatalf("expected 2 notifications after 1000ms, got %d", len(rec.calls))
	}
	if got := serials(rec.last()); got != "B,A" {
		t.Errorf("expected [B A], got [%s]", got)
	}

	// Replacing A keeps its position and never marks it new.
	outcome = r.Merge(group.Group{Serial: "A", Status: group.StatusFailure})
	if outcome != feed.MergeReplaced {
		t.Errorf("expected replaced, got %s", outcome)
	}
	groups := r.Groups()
	if got := serials(groups); got != "B,A" {
		t.Errorf("expected [B A], got [%s]", got)
	}
	if groups[1].Status != group.StatusFailure {
		t.Errorf("expected A FAILURE, got %s", groups[1].Status)
	}
}

func TestReconciler_ExpiryChangesOnlyMarker(t *testing.T) {
	r, clock, rec := newReconciler(t)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	update := group.Group{
		Serial:     "X",
		MethodName: "run",
		Status:     group.StatusSuccess,
		DurationMs: 42,
		Events:     []group.Event{{EventType: group.EventAPIRequest, CreatedAt: &created, Description: "d"}},
	}
	r.Merge(update)
	before := rec.last()[0]

	clock.Advance(feed.NewMarkerTTL)
	after := rec.last()[0]

	if !before.IsNew || after.IsNew {
		t.Fatalf("expected marker to go from true to false, got %v -> %v", before.IsNew, after.IsNew)
	}
	if after.Serial != before.Serial || after.MethodName != before.MethodName ||
		after.Status != before.Status || after.DurationMs != before.DurationMs ||
		len(after.Events) != len(before.Events) || after.Events[0].Description != "d" {
		t.Errorf("expiry changed more than the marker: %+v -> %+v", before, after)
	}
}

func TestReconciler_ReplaceCancelsPendingMarker(t *testing.T) {
	r, clock, rec := newReconciler(t)

	r.Merge(group.Group{Serial: "A"})
	if clock.Pending() != 1 {
		t.Fatalf("expected 1 pending expiry, got %d", clock.Pending())
	}

	r.Merge(group.Group{Serial: "A", Status: group.StatusSuccess})
	if clock.Pending() != 0 {
		t.Errorf("expected expiry cancelled by replacement, got %d pending", clock.Pending())
	}
	if r.Groups()[0].IsNew {
		t.Error("replacement must clear the marker")
	}

	calls := len(rec.calls)
	clock.Advance(5 * time.Second)
	if len(rec.calls) != calls {
		t.Errorf("cancelled expiry still notified")
	}
}

func TestReconciler_NeverDuplicatesSerials(t *testing.T) {
	r, clock, _ := newReconciler(t)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		serial := fmt.Sprintf("s%d", rng.Intn(40))
		before := r.Groups()
		idx := -1
		for j, g := range before {
			if g.Serial == serial {
				idx = j
			}
		}

		outcome := r.Merge(group.Group{Serial: serial, DurationMs: int64(i)})
		after := r.Groups()

		if idx < 0 {
			if outcome != feed.MergeInserted || after[0].Serial != serial || !after[0].IsNew {
				t.Fatalf("step %d: new serial %s not inserted at front as new", i, serial)
			}
		} else {
			if outcome != feed.MergeReplaced || after[idx].Serial != serial || after[idx].IsNew {
				t.Fatalf("step %d: existing serial %s moved or marked new", i, serial)
			}
		}

		seen := map[string]bool{}
		for _, g := range after {
			if seen[g.Serial] {
				t.Fatalf("step %d: duplicate serial %s", i, g.Serial)
			}
			seen[g.Serial] = true
		}

		if rng.Intn(4) == 0 {
			clock.Advance(time.Duration(rng.Intn(1500)) * time.Millisecond)
		}
	}

	clock.Advance(feed.NewMarkerTTL)
	for _, g := range r.Groups() {
		if g.IsNew {
			t.Errorf("serial %s still new after the marker lifetime", g.Serial)
		}
	}
}

func TestReconciler_EmptySnapshotKeepsCollection(t *testing.T) {
	r, _, rec := newReconciler(t)

	if err := r.LoadSnapshot([]group.Group{{Serial: "A"}, {Serial: "B"}}); err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	calls := len(rec.calls)

	err := r.LoadSnapshot(nil)
	if !errors.Is(err, feed.ErrSnapshotEmpty) {
		t.Fatalf("expected ErrSnapshotEmpty, got %v", err)
	}
	if got := serials(r.Groups()); got != "A,B" {
		t.Errorf("expected [A B] kept, got [%s]", got)
	}
	if len(rec.calls) != calls {
		t.Error("empty snapshot must not notify")
	}
}

func TestReconciler_SnapshotKeepsOrderAndFirstDuplicate(t *testing.T) {
	r, _, _ := newReconciler(t)

	err := r.LoadSnapshot([]group.Group{
		{Serial: "C", MethodName: "first"},
		{Serial: "A", IsNew: true},
		{Serial: "C", MethodName: "second"},
		{Serial: "B"},
	})
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	groups := r.Groups()
	if got := serials(groups); got != "C,A,B" {
		t.Errorf("expected [C A B], got [%s]", got)
	}
	if groups[0].MethodName != "first" {
		t.Errorf("expected first occurrence kept, got %q", groups[0].MethodName)
	}
}

func TestReconciler_StopCancelsTimersAndDiscards(t *testing.T) {
	r, clock, rec := newReconciler(t)

	r.Merge(group.Group{Serial: "A"})
	r.Merge(group.Group{Serial: "B"})
	if clock.Pending() != 2 {
		t.Fatalf("expected 2 pending expiries, got %d", clock.Pending())
	}

	r.Stop()
	r.Stop()
	if clock.Pending() != 0 {
		t.Errorf("expected no pending timers, got %d", clock.Pending())
	}

	calls := len(rec.calls)
	if outcome := r.Merge(group.Group{Serial: "C"}); outcome != feed.MergeDiscarded {
		t.Errorf("expected discarded, got %s", outcome)
	}
	clock.Advance(time.Minute)
	if len(rec.calls) != calls {
		t.Errorf("stopped reconciler notified %d more times", len(rec.calls)-calls)
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 groups, got %d", r.Len())
	}
}

func TestReconciler_NotificationsAreCopies(t *testing.T) {
	r, _, rec := newReconciler(t)

	r.Merge(group.Group{Serial: "A", Events: []group.Event{{Description: "orig"}}})
	rec.last()[0].Events[0].Description = "mutated"
	rec.last()[0].Serial = "Z"

	g := r.Groups()[0]
	if g.Serial != "A" || g.Events[0].Description != "orig" {
		t.Errorf("handler mutation leaked into the collection: %+v", g)
	}
}
