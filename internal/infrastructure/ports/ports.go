package ports

import (
	"context"
	"time"

	"github.com/sophialabs/apitrail/internal/domain/group"
)

// Clock provides the current time and timers (replaceable in tests).
type Clock interface {
	Now() time.Time
	// SleepContext blocks for d or until ctx is cancelled. Returns ctx.Err() if cancelled.
	SleepContext(ctx context.Context, d time.Duration) error
	// AfterFunc runs f once after d in its own goroutine. stop cancels it and
	// reports whether f had not run yet.
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// Logger provides structured logging.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// RateLimiter checks whether a request is allowed under rate limits.
type RateLimiter interface {
	// Allow checks if a request identified by key is within the rate limit.
	// rate is tokens per second, burst is the max burst size.
	Allow(ctx context.Context, key string, rate float64, burst int) bool
}

// Stream is one open push connection.
type Stream interface {
	// Recv blocks until the next update payload arrives. Any error means the
	// connection is lost.
	Recv() ([]byte, error)
	Close() error
}

// StreamDialer opens push connections.
type StreamDialer interface {
	Dial(ctx context.Context) (Stream, error)
}

// SnapshotSource fetches the initial set of groups once.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context, limit int) ([]group.Group, error)
}

// BannerSource fetches the optional banner text.
type BannerSource interface {
	FetchBanner(ctx context.Context) (string, error)
}
