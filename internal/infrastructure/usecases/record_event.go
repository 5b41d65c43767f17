package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sophialabs/apitrail/internal/domain/group"
	"github.com/sophialabs/apitrail/internal/domain/trace"
	"github.com/sophialabs/apitrail/internal/infrastructure/ports"
	"github.com/sophialabs/apitrail/internal/infrastructure/services"
)

// ErrInvalidEvent is returned when an event request is missing required fields.
var ErrInvalidEvent = errors.New("invalid event")

// EventRequest is one event to be recorded against a serial.
type EventRequest struct {
	EventType   group.EventType `json:"eventType"`
	Description string          `json:"description"`
	EventData   string          `json:"eventData"`
}

// RecordEventUseCase persists an event and broadcasts the rebuilt group.
type RecordEventUseCase struct {
	repo    group.Repository
	hub     *services.Hub
	updates *trace.RingBuffer
	clock   ports.Clock
	logger  ports.Logger
	locks   serialLocks
}

// serialLocks hands out one mutex per serial, dropped once nobody holds or waits on it.
type serialLocks struct {
	mu    sync.Mutex
	locks map[string]*serialLock
}

type serialLock struct {
	mu   sync.Mutex
	refs int
}

func (l *serialLocks) lock(serial string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*serialLock)
	}
	sl, ok := l.locks[serial]
	if !ok {
		sl = &serialLock{}
		l.locks[serial] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.locks, serial)
		}
		l.mu.Unlock()
	}
}

// NewRecordEventUseCase creates a new use case. updates may be nil.
func NewRecordEventUseCase(
	repo group.Repository,
	hub *services.Hub,
	updates *trace.RingBuffer,
	clock ports.Clock,
	logger ports.Logger,
) *RecordEventUseCase {
	return &RecordEventUseCase{
		repo:    repo,
		hub:     hub,
		updates: updates,
		clock:   clock,
		logger:  logger,
	}
}

// Execute stores req under serial and publishes the group it now belongs to.
// Calls for the same serial run one at a time, so the last group published
// always carries every event recorded so far.
func (uc *RecordEventUseCase) Execute(ctx context.Context, serial string, req EventRequest) (group.Group, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return group.Group{}, fmt.Errorf("%w: serial is required", ErrInvalidEvent)
	}
	if req.EventType == "" {
		return group.Group{}, fmt.Errorf("%w: eventType is required", ErrInvalidEvent)
	}

	unlock := uc.locks.lock(serial)
	defer unlock()

	_, err := uc.repo.Append(ctx, group.Record{
		Serial:      serial,
		EventType:   req.EventType,
		Description: req.Description,
		EventData:   req.EventData,
		CreatedAt:   uc.clock.Now(),
	})
	if err != nil {
		return group.Group{}, fmt.Errorf("failed to record event: %w", err)
	}

	records, err := uc.repo.FindBySerial(ctx, serial)
	if err != nil {
		return group.Group{}, fmt.Errorf("failed to load group %q: %w", serial, err)
	}
	g, ok := services.BuildGroup(serial, records)
	if !ok {
		return group.Group{}, fmt.Errorf("group %q vanished after append", serial)
	}

	uc.publish(g, req.EventType)
	return g, nil
}

func (uc *RecordEventUseCase) publish(g group.Group, eventType group.EventType) {
	payload, err := json.Marshal(g)
	if err != nil {
		uc.logger.Error("failed to encode group update", "serial", g.Serial, "error", err)
		return
	}

	if uc.hub != nil {
		uc.hub.Publish(payload)
	}
	if uc.updates != nil {
		subscribers := 0
		if uc.hub != nil {
			subscribers = uc.hub.Len()
		}
		uc.updates.Add(trace.Entry{
			Timestamp:   uc.clock.Now(),
			Serial:      g.Serial,
			EventType:   string(eventType),
			Status:      string(g.Status),
			Subscribers: subscribers,
			Payload:     payload,
		})
	}
	uc.logger.Debug("published group update", "serial", g.Serial, "event", eventType, "status", g.Status)
}
