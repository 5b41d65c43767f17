package trace_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sophialabs/apitrail/internal/domain/trace"
)

func TestRingBuffer_AddAndLast(t *testing.T) {
	rb := trace.NewRingBuffer(3)

	if rb.Count() != 0 {
		t.Fatalf("expected count 0, got %d", rb.Count())
	}

	rb.Add(trace.Entry{Serial: "a"})
	rb.Add(trace.Entry{Serial: "b"})

	entries := rb.Last(5)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Serial != "a" || entries[1].Serial != "b" {
		t.Errorf("expected [a b], got [%s %s]", entries[0].Serial, entries[1].Serial)
	}
}

func TestRingBuffer_Overflow(t *testing.T) {
	rb := trace.NewRingBuffer(3)
	for _, s := range []string{"a", "b", "c", "d"} {
		rb.Add(trace.Entry{Serial: s})
	}

	if rb.Count() != 3 {
		t.Fatalf("expected count 3, got %d", rb.Count())
	}
	entries := rb.Last(3)
	want := []string{"b", "c", "d"}
	for i, w := range want {
		if entries[i].Serial != w {
			t.Errorf("entry %d: expected %s, got %s", i, w, entries[i].Serial)
		}
	}

	newest := rb.Last(1)
	if len(newest) != 1 || newest[0].Serial != "d" {
		t.Errorf("expected newest d, got %v", newest)
	}
}

func TestRingBuffer_LastZero(t *testing.T) {
	rb := trace.NewRingBuffer(5)
	rb.Add(trace.Entry{Serial: "a"})

	if entries := rb.Last(0); entries != nil {
		t.Errorf("expected nil, got %v", entries)
	}
}

func TestRingBuffer_LatestFor(t *testing.T) {
	rb := trace.NewRingBuffer(4)
	rb.Add(trace.Entry{Serial: "a", EventType: "API_REQUEST"})
	rb.Add(trace.Entry{Serial: "b", EventType: "API_REQUEST"})
	rb.Add(trace.Entry{Serial: "a", EventType: "API_RESPONSE"})

	e, ok := rb.LatestFor("a")
	if !ok || e.EventType != "API_RESPONSE" {
		t.Errorf("expected newest a entry, got %+v (%v)", e, ok)
	}
	if _, ok := rb.LatestFor("zzz"); ok {
		t.Error("expected no entry for unknown serial")
	}
}

func TestRingBuffer_Reset(t *testing.T) {
	rb := trace.NewRingBuffer(2)
	rb.Add(trace.Entry{Serial: "a"})
	rb.Add(trace.Entry{Serial: "b"})
	rb.Add(trace.Entry{Serial: "c"})

	rb.Reset()
	if rb.Count() != 0 || rb.Last(5) != nil {
		t.Fatalf("expected empty buffer after Reset")
	}

	rb.Add(trace.Entry{Serial: "d"})
	if last := rb.Last(5); len(last) != 1 || last[0].Serial != "d" {
		t.Errorf("expected [d], got %v", last)
	}
}

func TestRingBuffer_Concurrency(t *testing.T) {
	rb := trace.NewRingBuffer(100)
	var wg sync.WaitGroup
	n := 50

	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rb.Add(trace.Entry{Timestamp: time.Now(), Serial: fmt.Sprint(i)})
		}(i)
	}
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = rb.Last(10)
			_, _ = rb.LatestFor("1")
		}()
	}
	wg.Wait()

	if rb.Count() != n {
		t.Errorf("expected count %d, got %d", n, rb.Count())
	}
}
