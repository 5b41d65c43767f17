package usecases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sophialabs/apitrail/internal/domain/feed"
	"github.com/sophialabs/apitrail/internal/domain/group"
	"github.com/sophialabs/apitrail/internal/infrastructure/ports"
	"github.com/sophialabs/apitrail/internal/infrastructure/services"
)

// FollowFeedUseCase loads the snapshot once and then keeps the reconciler in
// sync with the live update channel until its context ends.
type FollowFeedUseCase struct {
	snapshots  ports.SnapshotSource
	banner     ports.BannerSource
	dialer     ports.StreamDialer
	reconciler *feed.Reconciler
	clock      ports.Clock
	logger     ports.Logger

	snapshotLimit  int
	reconnectDelay time.Duration
	onBanner       func(string)
	onState        func(services.ConnState)
}

// NewFollowFeedUseCase creates a new use case. banner may be nil.
func NewFollowFeedUseCase(
	snapshots ports.SnapshotSource,
	banner ports.BannerSource,
	dialer ports.StreamDialer,
	reconciler *feed.Reconciler,
	clock ports.Clock,
	logger ports.Logger,
) *FollowFeedUseCase {
	return &FollowFeedUseCase{
		snapshots:      snapshots,
		banner:         banner,
		dialer:         dialer,
		reconciler:     reconciler,
		clock:          clock,
		logger:         logger,
		reconnectDelay: services.DefaultReconnectDelay,
	}
}

// SetSnapshotLimit sets how many groups to request; 0 leaves it to the server.
func (uc *FollowFeedUseCase) SetSnapshotLimit(n int) {
	uc.snapshotLimit = n
}

// SetReconnectDelay overrides the pause between channel failures and redials.
func (uc *FollowFeedUseCase) SetReconnectDelay(d time.Duration) {
	uc.reconnectDelay = d
}

// OnBanner registers a callback for non-empty banner text.
func (uc *FollowFeedUseCase) OnBanner(fn func(string)) {
	uc.onBanner = fn
}

// OnStateChange registers a callback for channel state transitions.
func (uc *FollowFeedUseCase) OnStateChange(fn func(services.ConnState)) {
	uc.onState = fn
}

// Execute runs until ctx is cancelled. Snapshot failures are returned
// immediately and nothing is retried. The banner loads alongside the snapshot
// and never delays it.
func (uc *FollowFeedUseCase) Execute(ctx context.Context) error {
	bannerCtx, cancelBanner := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		uc.loadBanner(bannerCtx)
	}()
	defer func() {
		cancelBanner()
		wg.Wait()
	}()

	groups, err := uc.snapshots.FetchSnapshot(ctx, uc.snapshotLimit)
	if err != nil {
		if errors.Is(err, feed.ErrSnapshotEmpty) {
			return err
		}
		return fmt.Errorf("%w: %w", feed.ErrSnapshotTransport, err)
	}
	if err := uc.reconciler.LoadSnapshot(groups); err != nil {
		return err
	}
	uc.logger.Info("snapshot loaded", "groups", len(groups))

	sup := services.NewReconnectSupervisor(uc.dialer, uc.clock, uc.logger, uc.reconnectDelay, uc.handlePayload)
	sup.OnStateChange(func(s services.ConnState) {
		uc.logger.Debug("stream state changed", "state", s)
		if uc.onState != nil {
			uc.onState(s)
		}
	})
	sup.Start()

	<-ctx.Done()

	sup.Stop()
	uc.reconciler.Stop()
	uc.logger.Info("feed stopped")
	return nil
}

func (uc *FollowFeedUseCase) loadBanner(ctx context.Context) {
	if uc.banner == nil {
		return
	}
	text, err := uc.banner.FetchBanner(ctx)
	if err != nil {
		if ctx.Err() == nil {
			uc.logger.Warn("failed to load banner", "error", err)
		}
		return
	}
	if text != "" && uc.onBanner != nil {
		uc.onBanner(text)
	}
}

func (uc *FollowFeedUseCase) handlePayload(payload []byte) {
	g, err := group.Decode(payload)
	if err != nil {
		uc.logger.Warn("dropping update", "error", err)
		return
	}
	outcome := uc.reconciler.Merge(g)
	uc.logger.Debug("update merged", "serial", g.Serial, "outcome", outcome)
}
