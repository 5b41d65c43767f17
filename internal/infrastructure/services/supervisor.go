package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sophialabs/apitrail/internal/infrastructure/ports"
)

// DefaultReconnectDelay is the fixed pause between a channel failure and the next attempt.
const DefaultReconnectDelay = 5 * time.Second

// ErrChannel wraps every failure of the push channel.
var ErrChannel = errors.New("stream channel failure")

// ConnState is the supervisor's view of the push channel.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "DISCONNECTED"
	}
}

// ReconnectSupervisor keeps one push channel open, re-dialing after every
// failure with the same fixed delay and no attempt limit.
type ReconnectSupervisor struct {
	dialer   ports.StreamDialer
	clock    ports.Clock
	logger   ports.Logger
	delay    time.Duration
	onUpdate func([]byte)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	state         ConnState
	stream        ports.Stream
	stopReconnect func() bool
	attempts      int
	started       bool
	stopped       bool
	onState       func(ConnState)
}

// NewReconnectSupervisor creates a supervisor that forwards every received
// payload to onUpdate. A non-positive delay means DefaultReconnectDelay.
func NewReconnectSupervisor(
	dialer ports.StreamDialer,
	clock ports.Clock,
	logger ports.Logger,
	delay time.Duration,
	onUpdate func([]byte),
) *ReconnectSupervisor {
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ReconnectSupervisor{
		dialer:   dialer,
		clock:    clock,
		logger:   logger,
		delay:    delay,
		onUpdate: onUpdate,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnStateChange registers a listener called after every transition. It runs
// with the supervisor lock held and must not call back into the supervisor.
func (s *ReconnectSupervisor) OnStateChange(fn func(ConnState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

// Start opens the channel in the background. Only the first call has an effect.
func (s *ReconnectSupervisor) Start() {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.connect()
	}()
}

// Stop closes the open channel, cancels any pending reconnect and waits for
// the reader to exit. It is idempotent.
func (s *ReconnectSupervisor) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.stopReconnect != nil {
		s.stopReconnect()
		s.stopReconnect = nil
	}
	held := s.stream
	s.stream = nil
	s.setStateLocked(StateDisconnected)
	s.cancel()
	s.mu.Unlock()

	if held != nil {
		_ = held.Close()
	}
	s.wg.Wait()
	s.logger.Debug("stream supervisor stopped")
}

// State returns the current connection state.
func (s *ReconnectSupervisor) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts returns how many times the channel has been dialed.
func (s *ReconnectSupervisor) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *ReconnectSupervisor) connect() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopReconnect = nil
	s.attempts++
	attempt := s.attempts
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	s.logger.Debug("connecting to event stream", "attempt", attempt)
	stream, err := s.dialer.Dial(s.ctx)
	if err != nil {
		s.fail(nil, fmt.Errorf("%w: dial: %v", ErrChannel, err))
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = stream.Close()
		return
	}
	s.stream = stream
	s.setStateLocked(StateConnected)
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("connected to event stream", "attempt", attempt)
	go s.read(stream)
}

func (s *ReconnectSupervisor) read(stream ports.Stream) {
	defer s.wg.Done()
	for {
		payload, err := stream.Recv()
		if err != nil {
			s.fail(stream, fmt.Errorf("%w: %v", ErrChannel, err))
			return
		}
		if s.onUpdate != nil {
			s.onUpdate(payload)
		}
	}
}

// fail handles the loss of stream (nil for a failed dial) and schedules the next attempt.
func (s *ReconnectSupervisor) fail(stream ports.Stream, err error) {
	s.mu.Lock()
	if s.stopped || s.stream != stream {
		s.mu.Unlock()
		return
	}
	held := s.stream
	s.stream = nil
	s.setStateLocked(StateDisconnected)
	s.stopReconnect = s.clock.AfterFunc(s.delay, s.reconnect)
	s.mu.Unlock()

	if held != nil {
		_ = held.Close()
	}
	s.logger.Warn("event stream failed, reconnecting", "error", err, "delay", s.delay)
}

func (s *ReconnectSupervisor) reconnect() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	s.connect()
}

func (s *ReconnectSupervisor) setStateLocked(state ConnState) {
	if s.state == state {
		return
	}
	s.state = state
	if s.onState != nil {
		s.onState(state)
	}
}
