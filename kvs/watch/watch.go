// Package watch implements the watch engine of spec.md §4.7: a watchlist
// of suspended watch requests, re-fired whenever the root advances, that
// only responds to a subscriber when its watched value actually changed.
package watch

import (
	"github.com/jrife/flock/kvs/lookup"
	"github.com/jrife/flock/kvs/wait"
)

// Request is the saved state of one registered watch: enough to re-run its
// lookup against a new root and decide whether the value changed.
type Request struct {
	ID       string
	Key      string
	Flags    lookup.Flags
	RootDir  string
	PrevSet  bool
	Prev     interface{}
	// Sender identifies the originating connection, used by unwatch and
	// disconnect to select matching entries via Purge.
	Sender interface{}
}

// Fire clears First (a watch only forces its initial response) and updates
// Prev to value, producing the Request to save for the next round.
func (r Request) Fire(value interface{}) Request {
	next := r
	next.Flags &^= lookup.First
	next.PrevSet = true
	next.Prev = value

	return next
}

// Handler is invoked once per registered watch every time the watchlist
// runs. It is responsible for re-running the lookup against the current
// root, deciding whether the value changed, sending a response if so, and
// re-registering the watch (via Register with the request Fire produced)
// unless the ONCE flag says otherwise.
type Handler func(req Request)

// List is the per-rank watchlist: a wait.Queue of parked watch requests,
// released together on every root advance.
type List struct {
	queue *wait.Queue
}

// New creates an empty watchlist.
func New() *List {
	return &List{queue: wait.NewQueue()}
}

// Register parks req on the watchlist. handler runs once when the
// watchlist next fires; it is not re-registered automatically, so a
// handler that wants to keep watching must call Register again itself,
// honoring the ONCE flag per spec.md §4.6.
func (l *List) Register(req Request, handler Handler) *wait.Wait {
	w := wait.New(req.ID, func(w *wait.Wait) {
		handler(w.Data().(Request))
	}, req)

	l.queue.Addqueue(w)

	return w
}

// Runqueue re-invokes every registered watch's handler with its saved
// request, per spec.md §4.7. Firing drains the queue; handlers that want to
// keep watching call Register again with the request Fire produced.
func (l *List) Runqueue() {
	l.queue.Runqueue()
}

// Purge removes and destroys every watch whose saved request matches
// predicate, used by unwatch (matching id/key/sender) and disconnect
// (matching sender only). Destroyed watches never fire.
func (l *List) Purge(predicate func(req Request) bool) int {
	return l.queue.DestroyMsg(func(data interface{}) bool {
		return predicate(data.(Request))
	})
}

// Len returns the number of watches currently parked on the list.
func (l *List) Len() int {
	return l.queue.Len()
}
