package services_test

import (
	"testing"

	"github.com/sophialabs/apitrail/internal/infrastructure/services"
	"github.com/sophialabs/apitrail/internal/testutil"
)

func TestHub_PublishReachesEverySubscriber(t *testing.T) {
	hub := services.NewHub(&testutil.NoopLogger{})
	defer hub.Close()

	_, a := hub.Subscribe()
	_, b := hub.Subscribe()
	if hub.Len() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", hub.Len())
	}

	hub.Publish([]byte("one"))

	for i, ch := range []<-chan []byte{a, b} {
		select {
		case got := <-ch:
			if string(got) != "one" {
				t.Errorf("subscriber %d: expected %q, got %q", i, "one", got)
			}
		default:
			t.Errorf("subscriber %d: payload not delivered", i)
		}
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := services.NewHub(&testutil.NoopLogger{})
	defer hub.Close()

	id, ch := hub.Subscribe()
	hub.Unsubscribe(id)
	hub.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Error("expected closed channel")
	}
	if hub.Len() != 0 {
		t.Errorf("expected 0 subscribers, got %d", hub.Len())
	}
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	logger := &testutil.RecordingLogger{}
	hub := services.NewHub(logger)
	defer hub.Close()

	_, ch := hub.Subscribe()
	for i := 0; i < 200; i++ {
		hub.Publish([]byte("x"))
	}

	if len(ch) != 128 {
		t.Errorf("expected buffer of 128, got %d", len(ch))
	}
	if logger.Count("warn") != 72 {
		t.Errorf("expected 72 drop warnings, got %d", logger.Count("warn"))
	}
}

func TestHub_CloseDisconnectsEveryone(t *testing.T) {
	hub := services.NewHub(&testutil.NoopLogger{})

	_, ch := hub.Subscribe()
	hub.Close()
	hub.Close()

	if _, ok := <-ch; ok {
		t.Error("expected channel closed by Close")
	}

	_, late := hub.Subscribe()
	if _, ok := <-late; ok {
		t.Error("expected subscription after Close to be closed")
	}
	hub.Publish([]byte("ignored"))
}
