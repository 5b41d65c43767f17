package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	inboundhttp "github.com/sophialabs/apitrail/internal/infrastructure/inbound/http"
	"github.com/sophialabs/apitrail/internal/infrastructure/outbound/logging"
	"github.com/sophialabs/apitrail/internal/infrastructure/wiring"
)

// App is the thin lifecycle manager that delegates dependency construction to wiring.Container.
type App struct {
	cfg        Config
	container  *wiring.Container
	httpServer *http.Server
}

// New constructs the server application by creating a logger, wiring
// infrastructure components via the container, and setting up the HTTP server.
func New(cfg Config) (*App, error) {
	logger := logging.NewText(os.Stdout, cfg.LogLevel)

	container, err := wiring.New(wiring.Params{
		DatabasePath:  cfg.Server.DatabasePath,
		BannerFile:    cfg.Server.BannerFile,
		WatchDebounce: cfg.Server.WatcherDebounce,
		UpdatesSize:   cfg.Server.UpdatesSize,
		RateLimit: inboundhttp.RateLimit{
			Rate:  cfg.Server.IngestRate,
			Burst: cfg.Server.IngestBurst,
		},
		RateLimiterTTL: cfg.Server.RateLimiterTTL,
		PingInterval:   cfg.Server.PingInterval,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to wire infrastructure: %w", err)
	}

	// No WriteTimeout: stream responses stay open indefinitely.
	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     container.Server(),
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		container:  container,
		httpServer: httpServer,
	}, nil
}

// Run serves HTTP and handles graceful shutdown on SIGINT/SIGTERM or context cancellation.
func (a *App) Run(ctx context.Context) error {
	defer a.container.Close()

	logger := a.container.Logger()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting apitrail server", "addr", a.httpServer.Addr, "db", a.cfg.Server.DatabasePath)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down server...")
	}

	// Streams only end once their subscriptions are closed.
	a.container.Hub().Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// RunWatch follows the server at cfg.Watch.URL and renders every change to
// out until SIGINT/SIGTERM or ctx cancellation. Logs go to stderr so they do
// not interleave with frames.
func RunWatch(ctx context.Context, cfg Config, out io.Writer) error {
	logger := logging.NewText(os.Stderr, cfg.LogLevel)

	follower, err := wiring.NewFollower(wiring.FollowerParams{
		URL:            cfg.Watch.URL,
		Transport:      cfg.Watch.Transport,
		SnapshotLimit:  cfg.Watch.SnapshotLimit,
		ReconnectDelay: cfg.Watch.ReconnectDelay,
		Filter:         cfg.Watch.Filter,
		Fields:         cfg.Watch.Fields,
		Template:       cfg.Watch.Template,
		Color:          cfg.Watch.Color,
		Verbose:        cfg.Watch.Verbose,
		Output:         out,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to wire follower: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("following", "url", cfg.Watch.URL, "transport", cfg.Watch.Transport)
	return follower.FollowFeedUseCase().Execute(ctx)
}
