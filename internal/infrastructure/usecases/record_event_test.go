package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sophialabs/apitrail/internal/domain/group"
	"github.com/sophialabs/apitrail/internal/domain/trace"
	"github.com/sophialabs/apitrail/internal/infrastructure/services"
	"github.com/sophialabs/apitrail/internal/infrastructure/usecases"
	"github.com/sophialabs/apitrail/internal/testutil"
)

func TestRecordEvent_PublishesRebuiltGroup(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	repo := &testutil.MemoryRepository{Clock: clock}
	hub := services.NewHub(&testutil.NoopLogger{})
	defer hub.Close()
	updates := trace.NewRingBuffer(10)
	uc := usecases.NewRecordEventUseCase(repo, hub, updates, clock, &testutil.NoopLogger{})

	_, sub := hub.Subscribe()

	ctx := context.Background()
	if _, err := uc.Execute(ctx, "s1", usecases.EventRequest{
		EventType:   group.EventAPIRequest,
		Description: "[s1] API call to Orders.create",
		EventData:   `{"requestId":"s1","parameters":[]}`,
	}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	clock.Advance(80 * time.Millisecond)
	g, err := uc.Execute(ctx, "s1", usecases.EventRequest{
		EventType:   group.EventAPIError,
		Description: "[s1] API call to Orders.create",
		EventData:   `{"requestId":"s1","error":"boom","duration":80}`,
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if g.MethodName != "create" || g.Status != group.StatusFailure || g.DurationMs != 80 || len(g.Events) != 2 {
		t.Errorf("unexpected group %+v", g)
	}

	if len(sub) != 2 {
		t.Fatalf("expected 2 published payloads, got %d", len(sub))
	}
	<-sub
	latest, err := group.Decode(<-sub)
	if err != nil {
		t.Fatalf("published payload does not decode: %v", err)
	}
	if latest.Serial != "s1" || latest.Status != group.StatusFailure {
		t.Errorf("unexpected published group %+v", latest)
	}
	if latest.Events[1].DataText() != `{"requestId":"s1","error":"boom","duration":80}` {
		t.Errorf("event data not carried verbatim: %q", latest.Events[1].DataText())
	}

	entries := updates.Last(10)
	if len(entries) != 2 || entries[1].EventType != "API_ERROR" || entries[1].Subscribers != 1 {
		t.Errorf("unexpected update log %+v", entries)
	}
	var decoded map[string]any
	if err := json.Unmarshal(entries[1].Payload, &decoded); err != nil {
		t.Errorf("update log payload is not JSON: %v", err)
	}
}

func TestRecordEvent_Validation(t *testing.T) {
	repo := &testutil.MemoryRepository{}
	uc := usecases.NewRecordEventUseCase(repo, nil, nil, &testutil.FixedClock{}, &testutil.NoopLogger{})

	_, err := uc.Execute(context.Background(), " ", usecases.EventRequest{EventType: group.EventAPIRequest})
	if !errors.Is(err, usecases.ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent for blank serial, got %v", err)
	}
	_, err = uc.Execute(context.Background(), "s", usecases.EventRequest{})
	if !errors.Is(err, usecases.ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent for missing type, got %v", err)
	}
}

func TestRecordEvent_RepositoryError(t *testing.T) {
	boom := errors.New("disk full")
	repo := &testutil.MemoryRepository{Err: boom}
	uc := usecases.NewRecordEventUseCase(repo, nil, nil, &testutil.FixedClock{}, &testutil.NoopLogger{})

	_, err := uc.Execute(context.Background(), "s", usecases.EventRequest{EventType: group.EventAPIRequest})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped repository error, got %v", err)
	}
}

// stallingRepository holds the first FindBySerial after it has read its rows,
// until release is closed.
type stallingRepository struct {
	*testutil.MemoryRepository

	once    sync.Once
	stalled chan struct{}
	release chan struct{}
}

func (r *stallingRepository) FindBySerial(ctx context.Context, serial string) ([]group.Record, error) {
	records, err := r.MemoryRepository.FindBySerial(ctx, serial)
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.stalled)
		<-r.release
	}
	return records, err
}

func TestRecordEvent_SameSerialPublishesInOrder(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	repo := &stallingRepository{
		MemoryRepository: &testutil.MemoryRepository{Clock: clock},
		stalled:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	updates := trace.NewRingBuffer(10)
	uc := usecases.NewRecordEventUseCase(repo, nil, updates, clock, &testutil.NoopLogger{})

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = uc.Execute(ctx, "s1", usecases.EventRequest{EventType: group.EventAPIRequest})
	}()
	<-repo.stalled

	go func() {
		defer wg.Done()
		_, _ = uc.Execute(ctx, "s1", usecases.EventRequest{EventType: group.EventAPIResponse})
	}()
	// Give the second call time to overtake the first if it is not held back.
	time.Sleep(50 * time.Millisecond)
	close(repo.release)
	wg.Wait()

	if updates.Count() != 2 {
		t.Fatalf("expected 2 published updates, got %d", updates.Count())
	}
	latest, ok := updates.LatestFor("s1")
	if !ok {
		t.Fatal("no update published for s1")
	}
	var g group.Group
	if err := json.Unmarshal(latest.Payload, &g); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(g.Events) != 2 || latest.EventType != string(group.EventAPIResponse) {
		t.Errorf("expected the two-event group published last, got %s with %d events", latest.EventType, len(g.Events))
	}
}

func TestRecordEvent_DifferentSerialsDoNotBlock(t *testing.T) {
	clock := testutil.NewFakeClock(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	repo := &stallingRepository{
		MemoryRepository: &testutil.MemoryRepository{Clock: clock},
		stalled:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	defer close(repo.release)
	uc := usecases.NewRecordEventUseCase(repo, nil, nil, clock, &testutil.NoopLogger{})

	ctx := context.Background()
	go func() {
		_, _ = uc.Execute(ctx, "s1", usecases.EventRequest{EventType: group.EventAPIRequest})
	}()
	<-repo.stalled

	if _, err := uc.Execute(ctx, "s2", usecases.EventRequest{EventType: group.EventAPIRequest}); err != nil {
		t.Fatalf("Execute for another serial failed: %v", err)
	}
}
