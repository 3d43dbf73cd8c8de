package planner

import (
	"context"
	"sync"

	"github.com/chargepal/chargepald/pkg/planstore"
)

// request is one queued mutation with a name for logging
type request struct {
	name string
	fn   func(context.Context, *planstore.Txn) error
}

// RequestQueue hands RPC-side mutations over to the planner tick. RPC
// handlers enqueue and answer immediately with whatever state they can
// read; the tick drains the queue in FIFO order at one fixed point, so
// every mutation runs against planner state no other handler is halfway
// through changing.
type RequestQueue struct {
	mu       sync.Mutex
	requests []request
}

// NewRequestQueue creates an empty queue
func NewRequestQueue() *RequestQueue {
	return &RequestQueue{}
}

// Enqueue appends a mutation for the next tick
func (q *RequestQueue) Enqueue(name string, fn func(context.Context, *planstore.Txn) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requests = append(q.requests, request{name: name, fn: fn})
}

// Drain removes and returns all queued requests in arrival order
func (q *RequestQueue) Drain() []request {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.requests
	q.requests = nil
	return drained
}

// Len returns the number of queued requests
func (q *RequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}
