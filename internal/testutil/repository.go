package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sophialabs/apitrail/internal/domain/group"
)

var _ group.Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory group.Repository. CreatedAt comes from Clock
// when set, otherwise from the record itself. A non-nil Err fails every call.
type MemoryRepository struct {
	Clock interface{ Now() time.Time }
	Err   error

	mu      sync.Mutex
	records []group.Record
	nextID  int64
}

func (r *MemoryRepository) Append(_ context.Context, rec group.Record) (group.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return group.Record{}, r.Err
	}
	r.nextID++
	rec.ID = r.nextID
	if r.Clock != nil {
		rec.CreatedAt = r.Clock.Now()
	}
	r.records = append(r.records, rec)
	return rec, nil
}

func (r *MemoryRepository) FindBySerial(_ context.Context, serial string) ([]group.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []group.Record
	for _, rec := range r.records {
		if rec.Serial == serial {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) FindRecent(_ context.Context, limit int) ([]group.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]group.Record, 0, limit)
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}

func (r *MemoryRepository) DeleteAll(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
	return nil
}
