package wait_test

import (
	"testing"

	"github.com/jrife/flock/kvs/wait"
)

func TestRunqueueFiresAfterAllQueuesRelease(t *testing.T) {
	var fired int

	w := wait.New("req-1", func(w *wait.Wait) { fired++ }, "payload")
	w.Increment()

	q1 := wait.NewQueue()
	q2 := wait.NewQueue()

	q1.Addqueue(w)
	q2.Addqueue(w)

	q1.Runqueue()

	if fired != 0 {
		t.Fatalf("expected callback not to fire until both queues release, fired=%d", fired)
	}

	q2.Runqueue()

	if fired != 1 {
		t.Fatalf("expected callback to fire exactly once, fired=%d", fired)
	}
}

func TestDestroyNeverFires(t *testing.T) {
	var fired int

	w := wait.New("req-2", func(w *wait.Wait) { fired++ }, nil)
	q := wait.NewQueue()
	q.Addqueue(w)

	w.Destroy()
	q.Runqueue()

	if fired != 0 {
		t.Fatalf("expected destroyed wait never to fire, fired=%d", fired)
	}

	if q.Len() != 0 {
		t.Fatalf("expected queue to be empty after destroy, len=%d", q.Len())
	}
}

func TestDestroyMsgMatchesPredicate(t *testing.T) {
	q := wait.NewQueue()

	var fired []string

	for _, id := range []string{"a", "b", "c"} {
		id := id
		w := wait.New(id, func(w *wait.Wait) { fired = append(fired, w.ID()) }, id)
		q.Addqueue(w)
	}

	destroyed := q.DestroyMsg(func(data interface{}) bool { return data.(string) == "b" })

	if destroyed != 1 {
		t.Fatalf("expected exactly one wait destroyed, got %d", destroyed)
	}

	q.Runqueue()

	if len(fired) != 2 {
		t.Fatalf("expected the two remaining waits to fire, got %v", fired)
	}
}
