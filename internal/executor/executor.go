// Package executor implements the FIFO, concurrency-1 task queue of
// §4.7: a single perpetual worker draining a channel-based queue,
// adapted from the reference corpus's worker-pool pattern but narrowed
// to exactly one worker and guarded by a weight-1 semaphore rather than
// a pool of goroutines, since the spec this implements requires strict
// sequential execution rather than partitioned parallelism.
package executor

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/SReject/nedb/internal/logger"
)

// Result is what a submitted task's Fn produced.
type Result struct {
	Value interface{}
	Err   error
}

type task struct {
	fn     func() (interface{}, error)
	done   chan Result
	corrID string
}

// Executor is a FIFO single-concurrency queue. Before the load task
// completes, non-forced pushes are held in a buffer instead of being
// queued; MarkReady drains that buffer in original order.
type Executor struct {
	sem *semaphore.Weighted

	queue chan *task
	wg    sync.WaitGroup

	mu     sync.Mutex
	ready  bool
	buffer []*task

	log *logger.Logger
}

// SetLogger attaches a logger tasks are debug-logged through, tagged by
// a per-task correlation ID (§10). A nil logger (the default) disables
// this logging entirely.
func (e *Executor) SetLogger(l *logger.Logger) {
	e.log = l
}

// New constructs an Executor. startReady should be true for in-memory-
// only datastores, which start ready immediately (§4.7), and false for
// persisted ones, which become ready only once MarkReady is called after
// Load completes.
func New(startReady bool) *Executor {
	e := &Executor{
		sem:   semaphore.NewWeighted(1),
		queue: make(chan *task, 256),
		ready: startReady,
	}
	e.wg.Add(1)
	go e.run()
	return e
}

func (e *Executor) run() {
	defer e.wg.Done()
	ctx := context.Background()
	for t := range e.queue {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			t.done <- Result{Err: err}
			continue
		}
		val, err := t.fn()
		e.sem.Release(1)
		if e.log != nil {
			e.log.WithCorrID(t.corrID).Debug("task completed err=%v", err)
		}

		// Deliver the result on its own goroutine (a deferred tick): a
		// callback that itself calls Push must not recurse into this
		// loop, it must enqueue behind whatever else is already queued.
		go func(t *task, val interface{}, err error) {
			t.done <- Result{Value: val, Err: err}
		}(t, val, err)
	}
}

// Push enqueues fn for execution and returns a channel its result
// arrives on. force bypasses the pre-ready buffer — used exactly once,
// for the load task itself.
func (e *Executor) Push(force bool, fn func() (interface{}, error)) <-chan Result {
	t := &task{fn: fn, done: make(chan Result, 1), corrID: uuid.New().String()}
	if e.log != nil {
		e.log.WithCorrID(t.corrID).Debug("task queued force=%t", force)
	}

	e.mu.Lock()
	if !e.ready && !force {
		e.buffer = append(e.buffer, t)
		e.mu.Unlock()
		return t.done
	}
	e.mu.Unlock()

	e.queue <- t
	return t.done
}

// MarkReady drains the pre-ready buffer into the live queue in original
// order and flips the executor ready, called once after load completes.
func (e *Executor) MarkReady() {
	e.mu.Lock()
	buffered := e.buffer
	e.buffer = nil
	e.ready = true
	e.mu.Unlock()

	for _, t := range buffered {
		e.queue <- t
	}
}

// Ready reports whether the executor has left the pre-ready buffering
// state.
func (e *Executor) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// Close stops accepting new tasks and waits for the worker to drain the
// queue and exit.
func (e *Executor) Close() {
	close(e.queue)
	e.wg.Wait()
}
