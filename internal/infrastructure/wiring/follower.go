package wiring

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sophialabs/apitrail/internal/domain/feed"
	"github.com/sophialabs/apitrail/internal/infrastructure/outbound/clock"
	"github.com/sophialabs/apitrail/internal/infrastructure/outbound/httpclient"
	"github.com/sophialabs/apitrail/internal/infrastructure/outbound/render"
	"github.com/sophialabs/apitrail/internal/infrastructure/outbound/stream"
	"github.com/sophialabs/apitrail/internal/infrastructure/ports"
	"github.com/sophialabs/apitrail/internal/infrastructure/services"
	"github.com/sophialabs/apitrail/internal/infrastructure/usecases"
)

// Push channel transports.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "ws"
)

// FollowerParams holds the subset of configuration needed by the watch client.
type FollowerParams struct {
	URL            string
	Transport      string
	SnapshotLimit  int
	ReconnectDelay time.Duration

	Filter   string
	Fields   []string
	Template string
	Color    bool
	Verbose  bool
	Output   io.Writer

	Logger ports.Logger
}

// Follower owns the client-side feed: snapshot source, push channel,
// reconciler and console.
type Follower struct {
	reconciler *feed.Reconciler
	followUC   *usecases.FollowFeedUseCase
}

// NewFollower wires the watch client. Nothing touches the network until the
// use case is executed.
func NewFollower(p FollowerParams) (*Follower, error) {
	filter, err := services.CompileFilter(p.Filter)
	if err != nil {
		return nil, err
	}

	client, err := httpclient.New(p.URL, nil)
	if err != nil {
		return nil, err
	}

	dialer, err := newDialer(p.URL, p.Transport)
	if err != nil {
		return nil, err
	}

	out := p.Output
	if out == nil {
		out = os.Stdout
	}
	console, err := render.NewConsole(out, render.Options{
		Filter:   filter,
		Fields:   p.Fields,
		Template: p.Template,
		Color:    p.Color,
		Verbose:  p.Verbose,
	})
	if err != nil {
		return nil, err
	}

	clk := clock.New()
	reconciler := feed.NewReconciler(clk, feed.NewNotifier())
	reconciler.OnChange(console.Render)

	followUC := usecases.NewFollowFeedUseCase(client, client, dialer, reconciler, clk, p.Logger)
	followUC.SetSnapshotLimit(p.SnapshotLimit)
	if p.ReconnectDelay > 0 {
		followUC.SetReconnectDelay(p.ReconnectDelay)
	}
	followUC.OnBanner(console.SetBanner)
	followUC.OnStateChange(console.SetState)

	return &Follower{
		reconciler: reconciler,
		followUC:   followUC,
	}, nil
}

func newDialer(url, transport string) (ports.StreamDialer, error) {
	switch transport {
	case "", TransportSSE:
		return stream.NewSSEDialer(url, nil)
	case TransportWebSocket:
		return stream.NewWSDialer(url)
	default:
		return nil, fmt.Errorf("unknown transport %q (want %s or %s)", transport, TransportSSE, TransportWebSocket)
	}
}

// FollowFeedUseCase returns the use case that runs the feed.
func (f *Follower) FollowFeedUseCase() *usecases.FollowFeedUseCase {
	return f.followUC
}

// Reconciler returns the client-side collection.
func (f *Follower) Reconciler() *feed.Reconciler {
	return f.reconciler
}
