package server

import (
	"errors"
	"fmt"

	"github.com/chazu/intcode/vm"
)

// errWorkerStopped is returned by Do once the worker has been stopped.
var errWorkerStopped = errors.New("server: engine worker stopped")

// engineRequest represents a unit of work to be executed on the engine
// goroutine.
type engineRequest struct {
	fn   func(*vm.Engine) (any, error)
	done chan engineResult
}

// engineResult holds the return value from an engine operation.
type engineResult struct {
	value any
	err   error
}

// EngineWorker serializes all access to one engine through a single
// goroutine. An Engine is not safe for concurrent use; every RPC touching a
// session's engine goes through its worker.
type EngineWorker struct {
	engine   *vm.Engine
	requests chan engineRequest
	quit     chan struct{}
}

// NewEngineWorker creates an EngineWorker and starts the processing
// goroutine.
func NewEngineWorker(e *vm.Engine) *EngineWorker {
	w := &EngineWorker{
		engine:   e,
		requests: make(chan engineRequest),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *EngineWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the engine, recovering from panics.
func (w *EngineWorker) execute(fn func(*vm.Engine) (any, error)) engineResult {
	var result engineResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value, result.err = fn(w.engine)
	}()
	return result
}

// Do submits a function for execution on the engine goroutine and blocks
// until it completes.
func (w *EngineWorker) Do(fn func(*vm.Engine) (any, error)) (any, error) {
	req := engineRequest{
		fn:   fn,
		done: make(chan engineResult, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, errWorkerStopped
	}
	result := <-req.done
	return result.value, result.err
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *EngineWorker) Stop() {
	select {
	case <-w.quit:
	default:
		close(w.quit)
	}
}
