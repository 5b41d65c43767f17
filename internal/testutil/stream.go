package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sophialabs/apitrail/internal/infrastructure/ports"
)

// ErrStreamClosed is returned by FakeStream.Recv after Close.
var ErrStreamClosed = errors.New("fake stream closed")

var _ ports.Stream = (*FakeStream)(nil)

// FakeStream is an in-memory push connection driven by the test.
type FakeStream struct {
	msgs      chan []byte
	errs      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

// NewFakeStream creates an open stream.
func NewFakeStream() *FakeStream {
	return &FakeStream{
		msgs:   make(chan []byte, 64),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

// Push queues one payload for Recv.
func (s *FakeStream) Push(payload []byte) {
	s.msgs <- payload
}

// Fail makes the next Recv return err, simulating a dropped connection.
func (s *FakeStream) Fail(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

func (s *FakeStream) Recv() ([]byte, error) {
	select {
	case m := <-s.msgs:
		return m, nil
	case err := <-s.errs:
		return nil, err
	case <-s.closed:
		return nil, ErrStreamClosed
	}
}

func (s *FakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// Closed reports whether Close was called.
func (s *FakeStream) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

var _ ports.StreamDialer = (*FakeDialer)(nil)

// FakeDialer hands out FakeStreams and records every dial attempt.
type FakeDialer struct {
	mu      sync.Mutex
	errs    []error
	streams []*FakeStream
	dials   int
}

// FailNextDial makes the next Dial return err. Calls queue up in order.
func (d *FakeDialer) FailNextDial(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, err)
}

func (d *FakeDialer) Dial(ctx context.Context) (ports.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		return nil, err
	}
	s := NewFakeStream()
	d.streams = append(d.streams, s)
	return s, nil
}

// Dials returns the number of Dial calls so far.
func (d *FakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Latest returns the most recently opened stream, or nil.
func (d *FakeDialer) Latest() *FakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// WaitDials blocks until at least n dials happened or timeout elapses.
func (d *FakeDialer) WaitDials(n int, timeout time.Duration) bool {
	return Eventually(timeout, func() bool { return d.Dials() >= n })
}
