package wiring_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sophialabs/apitrail/internal/domain/group"
	"github.com/sophialabs/apitrail/internal/infrastructure/usecases"
	"github.com/sophialabs/apitrail/internal/infrastructure/wiring"
	"github.com/sophialabs/apitrail/internal/testutil"
)

func validParams(t *testing.T) wiring.Params {
	t.Helper()
	dir := t.TempDir()
	banner := filepath.Join(dir, "banner.txt")
	if err := os.WriteFile(banner, []byte("hello"), 0o644); err != nil {
		t.Fatalf("failed to write banner: %v", err)
	}
	return wiring.Params{
		DatabasePath:   filepath.Join(dir, "data", "events.db"),
		BannerFile:     banner,
		WatchDebounce:  20 * time.Millisecond,
		UpdatesSize:    50,
		RateLimiterTTL: 5 * time.Minute,
		Logger:         &testutil.NoopLogger{},
	}
}

func TestNew_Success(t *testing.T) {
	c, err := wiring.New(validParams(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if c.Logger() == nil {
		t.Error("Logger() returned nil")
	}
	if c.Server() == nil {
		t.Error("Server() returned nil")
	}
	if c.Hub() == nil {
		t.Error("Hub() returned nil")
	}
	if c.RateLimiterStore() == nil {
		t.Error("RateLimiterStore() returned nil")
	}
	if c.Updates() == nil {
		t.Error("Updates() returned nil")
	}
	if got := c.Banner().Text(); got != "hello" {
		t.Errorf("expected banner loaded at startup, got %q", got)
	}
}

func TestNew_InvalidDatabasePath(t *testing.T) {
	p := validParams(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	p.DatabasePath = filepath.Join(blocker, "events.db")

	c, err := wiring.New(p)
	if err == nil {
		c.Close()
		t.Fatal("expected error for unusable database path")
	}
	if c != nil {
		t.Error("expected nil container on error")
	}
}

func TestNew_RecordedEventsAreListed(t *testing.T) {
	c, err := wiring.New(validParams(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if _, err := c.RecordEventUseCase().Execute(ctx, "s-1", usecases.EventRequest{
		EventType:   group.EventAPIRequest,
		Description: "[s-1] API call to Orders.create",
	}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	groups, err := c.ListGroupsUseCase().Execute(ctx, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(groups) != 1 || groups[0].MethodName != "create" {
		t.Fatalf("unexpected groups %+v", groups)
	}
	if c.Updates().Count() != 1 {
		t.Errorf("expected one published update, got %d", c.Updates().Count())
	}
}

func TestNew_BannerHotReload(t *testing.T) {
	p := validParams(t)
	c, err := wiring.New(p)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if err := os.WriteFile(p.BannerFile, []byte("maintenance at noon"), 0o644); err != nil {
		t.Fatal(err)
	}
	ok := testutil.Eventually(3*time.Second, func() bool {
		return c.Banner().Text() == "maintenance at noon"
	})
	if !ok {
		t.Errorf("banner not reloaded, still %q", c.Banner().Text())
	}
}

func TestNew_NoBannerFile(t *testing.T) {
	p := validParams(t)
	p.BannerFile = ""
	c, err := wiring.New(p)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if c.Banner().Text() != "" {
		t.Error("expected empty banner")
	}
}

func TestClose_IsIdempotent(t *testing.T) {
	c, err := wiring.New(validParams(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Double close must not panic.
	c.Close()
	c.Close()
}

func TestNewFollower(t *testing.T) {
	var out bytes.Buffer
	f, err := wiring.NewFollower(wiring.FollowerParams{
		URL:       "http://localhost:8080",
		Transport: wiring.TransportWebSocket,
		Filter:    `status == "FAILURE"`,
		Output:    &out,
		Logger:    &testutil.NoopLogger{},
	})
	if err != nil {
		t.Fatalf("NewFollower failed: %v", err)
	}
	if f.FollowFeedUseCase() == nil || f.Reconciler() == nil {
		t.Fatal("follower is missing components")
	}

	// The console is the reconciler's change handler.
	if err := f.Reconciler().LoadSnapshot([]group.Group{
		{Serial: "a", Status: group.StatusFailure, Events: []group.Event{}},
	}); err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	f.Reconciler().Stop()
	if !strings.Contains(out.String(), "1/1 groups") {
		t.Errorf("expected a rendered frame, got %q", out.String())
	}
}

func TestNewFollower_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		p    wiring.FollowerParams
	}{
		{"bad transport", wiring.FollowerParams{URL: "http://localhost:8080", Transport: "carrier-pigeon"}},
		{"bad url", wiring.FollowerParams{URL: "ftp://localhost"}},
		{"bad filter", wiring.FollowerParams{URL: "http://localhost:8080", Filter: "status =="}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.p.Output = &bytes.Buffer{}
			tt.p.Logger = &testutil.NoopLogger{}
			if _, err := wiring.NewFollower(tt.p); err == nil {
				t.Error("expected error")
			}
		})
	}
}
