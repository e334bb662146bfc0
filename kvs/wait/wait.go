// Package wait implements the suspension primitive used throughout the kvs
// core: a wait with a usage count and a callback, queued on one or more
// wait-queues, whose callback fires exactly once when every queue holding it
// has released it.
package wait

import "container/list"

// Callback is invoked exactly once when a wait's usage count reaches zero.
type Callback func(w *Wait)

// Wait holds a usage count, a callback, and opaque data the callback needs
// to resume whatever was suspended (typically a saved request message).
type Wait struct {
	id       string
	count    int
	cb       Callback
	data     interface{}
	fired    bool
	elements map[*Queue]*list.Element
}

// New creates a wait with a usage count of 1.
func New(id string, cb Callback, data interface{}) *Wait {
	return &Wait{
		id:       id,
		count:    1,
		cb:       cb,
		data:     data,
		elements: make(map[*Queue]*list.Element),
	}
}

// ID returns the wait's correlation id, usually the originating request id.
func (w *Wait) ID() string {
	return w.id
}

// Data returns the opaque data the wait was created with.
func (w *Wait) Data() interface{} {
	return w.data
}

// Increment bumps the usage count. Used when a wait is about to be queued on
// an additional wait-queue.
func (w *Wait) Increment() {
	w.count++
}

// Decrement drops the usage count by one, firing the callback exactly once
// when the count reaches zero.
func (w *Wait) Decrement() {
	if w.count == 0 {
		return
	}

	w.count--

	if w.count == 0 {
		w.fire()
	}
}

func (w *Wait) fire() {
	if w.fired {
		return
	}

	w.fired = true

	if w.cb != nil {
		w.cb(w)
	}
}

// Fired reports whether this wait's callback has already run.
func (w *Wait) Fired() bool {
	return w.fired
}

// Destroy removes the wait from every queue it is parked on without firing
// its callback. A destroyed wait never fires.
func (w *Wait) Destroy() {
	w.fired = true

	for q, e := range w.elements {
		q.list.Remove(e)
		delete(q.byID, w.id)
	}

	w.elements = make(map[*Queue]*list.Element)
}

// Queue is an ordered collection of waits released together by Runqueue.
type Queue struct {
	list *list.List
	byID map[string]*list.Element
}

// NewQueue creates an empty wait-queue.
func NewQueue() *Queue {
	return &Queue{
		list: list.New(),
		byID: make(map[string]*list.Element),
	}
}

// Addqueue appends a wait to the queue without changing its usage count.
// A wait may be queued on more than one Queue; the caller is responsible
// for calling Increment before parking it on additional queues.
func (q *Queue) Addqueue(w *Wait) {
	e := q.list.PushBack(w)
	w.elements[q] = e
	q.byID[w.id] = e
}

// Len returns the number of waits currently parked on the queue.
func (q *Queue) Len() int {
	return q.list.Len()
}

// Empty reports whether the queue holds no waits.
func (q *Queue) Empty() bool {
	return q.list.Len() == 0
}

// Runqueue decrements every wait on the queue, firing callbacks of those
// that reach zero, and empties the queue.
func (q *Queue) Runqueue() {
	waits := q.drain()

	for _, w := range waits {
		w.Decrement()
	}
}

// DestroyMsg removes and destroys every wait whose saved data matches
// predicate, without firing their callbacks.
func (q *Queue) DestroyMsg(predicate func(data interface{}) bool) int {
	var destroyed int

	for e := q.list.Front(); e != nil; {
		next := e.Next()
		w := e.Value.(*Wait)

		if predicate(w.data) {
			destroyed++
			w.Destroy()
		}

		e = next
	}

	return destroyed
}

func (q *Queue) drain() []*Wait {
	waits := make([]*Wait, 0, q.list.Len())

	for e := q.list.Front(); e != nil; e = e.Next() {
		waits = append(waits, e.Value.(*Wait))
	}

	q.list.Init()
	q.byID = make(map[string]*list.Element)

	for _, w := range waits {
		delete(w.elements, q)
	}

	return waits
}
