package wiring

import (
	"fmt"
	"sync"
	"time"

	"github.com/sophialabs/apitrail/internal/domain/trace"
	inboundhttp "github.com/sophialabs/apitrail/internal/infrastructure/inbound/http"
	"github.com/sophialabs/apitrail/internal/infrastructure/outbound/clock"
	"github.com/sophialabs/apitrail/internal/infrastructure/outbound/filesystem"
	"github.com/sophialabs/apitrail/internal/infrastructure/outbound/ratelimit"
	"github.com/sophialabs/apitrail/internal/infrastructure/outbound/sqlite"
	"github.com/sophialabs/apitrail/internal/infrastructure/ports"
	"github.com/sophialabs/apitrail/internal/infrastructure/services"
	"github.com/sophialabs/apitrail/internal/infrastructure/usecases"
)

// Params holds the subset of configuration needed to construct the server side.
type Params struct {
	DatabasePath   string
	BannerFile     string
	WatchDebounce  time.Duration
	UpdatesSize    int
	RateLimit      inboundhttp.RateLimit
	RateLimiterTTL time.Duration
	PingInterval   time.Duration
	Logger         ports.Logger
}

// Container owns the construction and lifecycle of all server components.
type Container struct {
	logger           ports.Logger
	repo             *sqlite.EventRepository
	hub              *services.Hub
	updates          *trace.RingBuffer
	banner           *filesystem.BannerStore
	watcher          *filesystem.Watcher
	rateLimiterStore *ratelimit.TokenBucketStore
	listUC           *usecases.ListGroupsUseCase
	recordUC         *usecases.RecordEventUseCase
	server           *inboundhttp.Server
	closeOnce        sync.Once
}

// New constructs all server components. Fallible operations (database, banner)
// run before goroutine-starting operations (rate limiter store, watcher) to
// avoid goroutine leaks on early failure.
func New(p Params) (*Container, error) {
	repo, err := sqlite.Open(p.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}

	banner := filesystem.NewBannerStore(p.BannerFile, p.Logger)
	if err := banner.Load(); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to load banner: %w", err)
	}

	clk := clock.New()
	hub := services.NewHub(p.Logger)
	updates := trace.NewRingBuffer(p.UpdatesSize)
	rateLimiterStore := ratelimit.NewTokenBucketStore(clk, p.RateLimiterTTL)

	listUC := usecases.NewListGroupsUseCase(repo, p.Logger)
	recordUC := usecases.NewRecordEventUseCase(repo, hub, updates, clk, p.Logger)
	clearUC := usecases.NewClearEventsUseCase(repo, updates, p.Logger)

	server := inboundhttp.NewServer(inboundhttp.Deps{
		ListGroups:  listUC,
		RecordEvent: recordUC,
		ClearEvents: clearUC,
		Hub:         hub,
		Updates:     updates,
		Banner:      banner,
		Limiter:     rateLimiterStore,
		RateLimit:   p.RateLimit,
		Clock:       clk,
		Logger:      p.Logger,
	})
	server.SetPingInterval(p.PingInterval)

	c := &Container{
		logger:           p.Logger,
		repo:             repo,
		hub:              hub,
		updates:          updates,
		banner:           banner,
		rateLimiterStore: rateLimiterStore,
		listUC:           listUC,
		recordUC:         recordUC,
		server:           server,
	}
	c.watcher = c.startBannerWatcher(p.WatchDebounce)
	return c, nil
}

// startBannerWatcher hot-reloads the banner. A watcher that cannot start only
// costs hot reload, so it is logged rather than returned.
func (c *Container) startBannerWatcher(debounce time.Duration) *filesystem.Watcher {
	if c.banner.Path() == "" {
		return nil
	}
	w, err := filesystem.NewWatcher(c.banner.Path(), debounce, c.logger, c.banner.Reload)
	if err != nil {
		c.logger.Warn("banner watcher not available", "error", err)
		return nil
	}
	w.Start()
	c.logger.Info("banner watcher started", "path", c.banner.Path())
	return w
}

// Close releases resources held by the container. It is idempotent.
func (c *Container) Close() {
	c.closeOnce.Do(func() {
		if c.watcher != nil {
			c.watcher.Stop()
		}
		c.hub.Close()
		c.rateLimiterStore.Stop()
		if err := c.repo.Close(); err != nil {
			c.logger.Warn("failed to close event store", "error", err)
		}
	})
}

// Logger returns the logger passed at construction time.
func (c *Container) Logger() ports.Logger {
	return c.logger
}

// Server returns the HTTP server.
func (c *Container) Server() *inboundhttp.Server {
	return c.server
}

// Hub returns the update fan-out.
func (c *Container) Hub() *services.Hub {
	return c.hub
}

// Banner returns the banner store.
func (c *Container) Banner() *filesystem.BannerStore {
	return c.banner
}

// ListGroupsUseCase returns the snapshot use case.
func (c *Container) ListGroupsUseCase() *usecases.ListGroupsUseCase {
	return c.listUC
}

// RecordEventUseCase returns the ingestion use case.
func (c *Container) RecordEventUseCase() *usecases.RecordEventUseCase {
	return c.recordUC
}

// RateLimiterStore returns the token bucket store for rate limiting.
func (c *Container) RateLimiterStore() *ratelimit.TokenBucketStore {
	return c.rateLimiterStore
}

// Updates returns the published-update ring buffer.
func (c *Container) Updates() *trace.RingBuffer {
	return c.updates
}
