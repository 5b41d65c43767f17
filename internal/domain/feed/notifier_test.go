package feed_test

import (
	"testing"

	"github.com/sophialabs/apitrail/internal/domain/feed"
	"github.com/sophialabs/apitrail/internal/domain/group"
)

func TestNotifier_LastHandlerWins(t *testing.T) {
	n := feed.NewNotifier()
	var first, second int
	n.OnChange(func([]group.Group) { first++ })
	n.OnChange(func([]group.Group) { second++ })

	n.Notify([]group.Group{{Serial: "A"}})

	if first != 0 || second != 1 {
		t.Errorf("expected only the last handler called, got first=%d second=%d", first, second)
	}
}

func TestNotifier_NilHandlerIsNoop(t *testing.T) {
	n := feed.NewNotifier()
	n.Notify(nil)

	n.OnChange(func([]group.Group) { t.Error("unregistered handler called") })
	n.OnChange(nil)
	n.Notify([]group.Group{{Serial: "A"}})
}

func TestNotifier_PassesCollectionThrough(t *testing.T) {
	n := feed.NewNotifier()
	var got []group.Group
	n.OnChange(func(g []group.Group) { got = g })

	in := []group.Group{{Serial: "B"}, {Serial: "A"}}
	n.Notify(in)

	if len(got) != 2 || got[0].Serial != "B" || got[1].Serial != "A" {
		t.Errorf("expected [B A], got %v", got)
	}
}
