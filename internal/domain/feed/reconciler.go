package feed

import (
	"sync"
	"time"

	"github.com/sophialabs/apitrail/internal/domain/group"
)

// NewMarkerTTL is how long a freshly inserted group keeps IsNew.
const NewMarkerTTL = time.Second

// Scheduler runs f once after d. The returned stop function cancels it and
// reports whether the call was still pending.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// MergeOutcome tells how Merge applied an update.
type MergeOutcome int

const (
	// MergeDiscarded means the reconciler was stopped and ignored the update.
	MergeDiscarded MergeOutcome = iota
	// MergeInserted means the serial was new and the group went to the front.
	MergeInserted
	// MergeReplaced means an existing group was overwritten in place.
	MergeReplaced
)

func (o MergeOutcome) String() string {
	switch o {
	case MergeInserted:
		return "inserted"
	case MergeReplaced:
		return "replaced"
	default:
		return "discarded"
	}
}

type expiry struct {
	stop func() bool
}

// Reconciler owns the ordered, duplicate-free collection of groups.
//
// All mutations and the notifications they trigger happen under one lock, so
// handlers see changes in the order they were applied. Handlers must not call
// back into the Reconciler.
type Reconciler struct {
	sched    Scheduler
	notifier *Notifier
	ttl      time.Duration

	mu      sync.Mutex
	groups  []group.Group
	pending map[string]*expiry
	stopped bool
}

// NewReconciler creates an empty reconciler that schedules marker expiry on sched.
func NewReconciler(sched Scheduler, notifier *Notifier) *Reconciler {
	if notifier == nil {
		notifier = NewNotifier()
	}
	return &Reconciler{
		sched:    sched,
		notifier: notifier,
		ttl:      NewMarkerTTL,
		pending:  make(map[string]*expiry),
	}
}

// OnChange registers the collection-changed handler.
func (r *Reconciler) OnChange(h Handler) {
	r.notifier.OnChange(h)
}

// LoadSnapshot replaces the collection with groups in the given order.
// An empty snapshot returns ErrSnapshotEmpty and leaves the collection as it was.
func (r *Reconciler) LoadSnapshot(groups []group.Group) error {
	if len(groups) == 0 {
		return ErrSnapshotEmpty
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return nil
	}

	r.cancelPendingLocked()

	seen := make(map[string]struct{}, len(groups))
	next := make([]group.Group, 0, len(groups))
	for _, g := range groups {
		if _, dup := seen[g.Serial]; dup {
			continue
		}
		seen[g.Serial] = struct{}{}
		g = g.Clone()
		g.IsNew = false
		next = append(next, g)
	}
	r.groups = next

	r.notifyLocked()
	return nil
}

// Merge reconciles one update into the collection.
func (r *Reconciler) Merge(update group.Group) MergeOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return MergeDiscarded
	}

	update = update.Clone()
	update.IsNew = false

	if i := r.indexLocked(update.Serial); i >= 0 {
		if e, ok := r.pending[update.Serial]; ok {
			e.stop()
			delete(r.pending, update.Serial)
		}
		r.groups[i] = update
		r.notifyLocked()
		return MergeReplaced
	}

	update.IsNew = true
	r.groups = append(r.groups, group.Group{})
	copy(r.groups[1:], r.groups[:len(r.groups)-1])
	r.groups[0] = update
	r.scheduleExpiryLocked(update.Serial)

	r.notifyLocked()
	return MergeInserted
}

// Groups returns a copy of the current ordered collection.
func (r *Reconciler) Groups() []group.Group {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Len returns the number of groups in the collection.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.groups)
}

// Stop cancels every pending marker expiry and discards later updates. It is idempotent.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	r.stopped = true
	r.cancelPendingLocked()
}

func (r *Reconciler) scheduleExpiryLocked(serial string) {
	e := &expiry{}
	r.pending[serial] = e
	e.stop = r.sched.AfterFunc(r.ttl, func() {
		r.expire(serial, e)
	})
}

func (r *Reconciler) expire(serial string, e *expiry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A newer schedule, a replacement or Stop already retired this task.
	if r.stopped || r.pending[serial] != e {
		return
	}
	delete(r.pending, serial)

	i := r.indexLocked(serial)
	if i < 0 {
		return
	}
	r.groups[i].IsNew = false
	r.notifyLocked()
}

func (r *Reconciler) cancelPendingLocked() {
	for serial, e := range r.pending {
		e.stop()
		delete(r.pending, serial)
	}
}

func (r *Reconciler) indexLocked(serial string) int {
	for i := range r.groups {
		if r.groups[i].Serial == serial {
			return i
		}
	}
	return -1
}

func (r *Reconciler) snapshotLocked() []group.Group {
	out := make([]group.Group, len(r.groups))
	for i, g := range r.groups {
		out[i] = g.Clone()
	}
	return out
}

func (r *Reconciler) notifyLocked() {
	r.notifier.Notify(r.snapshotLocked())
}
