package watch_test

import (
	"testing"

	"github.com/jrife/flock/kvs/lookup"
	"github.com/jrife/flock/kvs/watch"
)

func TestRunqueueNotifiesOnChangedValue(t *testing.T) {
	l := watch.New()

	currentValue := 1
	var notified bool
	var gotValue interface{}

	req := watch.Request{ID: "w1", Key: "k", PrevSet: true, Prev: 1}
	l.Register(req, func(r watch.Request) {
		notified = r.Prev != currentValue
		gotValue = currentValue
	})

	currentValue = 2
	l.Runqueue()

	if !notified {
		t.Fatal("expected notification when value changed")
	}

	if gotValue != 2 {
		t.Fatalf("expected value 2, got %v", gotValue)
	}
}

func TestRunqueueSkipsUnchangedValue(t *testing.T) {
	l := watch.New()

	var notified bool

	req := watch.Request{ID: "w1", Key: "k", PrevSet: true, Prev: 1}
	l.Register(req, func(r watch.Request) {
		notified = r.Prev != 1
	})

	l.Runqueue()

	if notified {
		t.Fatal("expected no notification when value is unchanged")
	}
}

func TestFireClearsFirstAndUpdatesPrev(t *testing.T) {
	req := watch.Request{ID: "w1", Key: "k", Flags: lookup.First}

	next := req.Fire(42)

	if next.Flags&lookup.First != 0 {
		t.Fatal("expected First flag to be cleared")
	}

	if !next.PrevSet || next.Prev != 42 {
		t.Fatalf("expected Prev to be updated to 42, got %v (set=%v)", next.Prev, next.PrevSet)
	}
}

func TestPurgeMatchesBySender(t *testing.T) {
	l := watch.New()

	l.Register(watch.Request{ID: "w1", Sender: "conn-a"}, func(watch.Request) {})
	l.Register(watch.Request{ID: "w2", Sender: "conn-b"}, func(watch.Request) {})

	destroyed := l.Purge(func(r watch.Request) bool { return r.Sender == "conn-a" })

	if destroyed != 1 {
		t.Fatalf("expected 1 destroyed watch, got %d", destroyed)
	}

	if l.Len() != 1 {
		t.Fatalf("expected 1 remaining watch, got %d", l.Len())
	}
}
