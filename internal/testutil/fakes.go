package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/sophialabs/apitrail/internal/domain/group"
	"github.com/sophialabs/apitrail/internal/infrastructure/ports"
)

var _ ports.Logger = (*NoopLogger)(nil)

// NoopLogger discards all log output.
type NoopLogger struct{}

func (l *NoopLogger) Info(string, ...any)  {}
func (l *NoopLogger) Warn(string, ...any)  {}
func (l *NoopLogger) Error(string, ...any) {}
func (l *NoopLogger) Debug(string, ...any) {}

var _ ports.Logger = (*RecordingLogger)(nil)

// RecordingLogger keeps every message so tests can assert on warnings.
type RecordingLogger struct {
	mu       sync.Mutex
	Messages []LogLine
}

// LogLine is one captured log call.
type LogLine struct {
	Level string
	Msg   string
	Args  []any
}

func (l *RecordingLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, LogLine{Level: level, Msg: msg, Args: args})
}

func (l *RecordingLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *RecordingLogger) Error(msg string, args ...any) { l.add("error", msg, args) }
func (l *RecordingLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }

// Count returns how many lines were logged at level.
func (l *RecordingLogger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.Messages {
		if m.Level == level {
			n++
		}
	}
	return n
}

var _ ports.Clock = (*FixedClock)(nil)

// FixedClock returns a fixed time, never sleeps and never fires timers.
type FixedClock struct {
	T time.Time
}

func (c *FixedClock) Now() time.Time { return c.T }
func (c *FixedClock) SleepContext(context.Context, time.Duration) error {
	return nil
}
func (c *FixedClock) AfterFunc(time.Duration, func()) func() bool {
	return func() bool { return true }
}

var _ ports.RateLimiter = (*StubRateLimiter)(nil)

// StubRateLimiter returns a configurable Allow result.
type StubRateLimiter struct {
	AllowAll bool
}

func (r *StubRateLimiter) Allow(context.Context, string, float64, int) bool {
	return r.AllowAll
}

var _ ports.SnapshotSource = (*StubSnapshotSource)(nil)

// StubSnapshotSource returns fixed groups or a fixed error.
type StubSnapshotSource struct {
	Groups []group.Group
	Err    error
}

func (s *StubSnapshotSource) FetchSnapshot(context.Context, int) ([]group.Group, error) {
	return s.Groups, s.Err
}

var _ ports.BannerSource = (*StubBannerSource)(nil)

// StubBannerSource returns fixed banner text or a fixed error.
type StubBannerSource struct {
	Text string
	Err  error
}

func (s *StubBannerSource) FetchBanner(context.Context) (string, error) {
	return s.Text, s.Err
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
