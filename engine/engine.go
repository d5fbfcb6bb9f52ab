package engine

import (
	goruntime "runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	h2gis "github.com/h2gis/h2gis-go"
	"github.com/h2gis/h2gis-go/errors"
)

// State is the worker lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Engine owns the worker thread, its task queue and the bound runtime.
// All methods are safe for concurrent use by any number of callers.
type Engine struct {
	cfg Config

	// initMu serializes lifecycle transitions so concurrent first calls
	// collapse into one initialization attempt.
	initMu      sync.Mutex
	state       atomic.Int32
	initialized atomic.Bool
	stopping    atomic.Bool
	refs        atomic.Int64

	qmu   sync.Mutex
	cond  *sync.Cond
	queue []*task
	seq   uint64

	// rt is written once by the worker during bootstrap and only read
	// afterwards; initErr is written before ready closes.
	rt      h2gis.Runtime
	initErr error
	ready   chan struct{}
	done    chan struct{}

	// stopped closes when Shutdown has fully torn the lifecycle down,
	// worker detached and library unloaded. Acquire parks on it so a
	// replacement engine never bootstraps a second isolate while the old
	// worker is still attached.
	stopped chan struct{}
}

// New creates an engine. The worker does not start until the first
// dispatched call needs it.
func New(cfg Config) *Engine {
	e := &Engine{cfg: cfg.withDefaults()}
	e.cond = sync.NewCond(&e.qmu)
	e.stopped = make(chan struct{})
	return e
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// Retain adds a session reference.
func (e *Engine) Retain() {
	e.refs.Add(1)
}

// Release drops a session reference. The count reaching zero is the
// sole automatic shutdown trigger.
func (e *Engine) Release() {
	if e.refs.Add(-1) == 0 {
		e.Shutdown()
	}
}

// Do runs fn on the worker thread and blocks until it completes,
// returning fn's result or its captured failure. Initialization is
// triggered lazily by the first call.
func Do[T any](e *Engine, fn func(h2gis.Runtime) (T, error)) (T, error) {
	v, err := e.do(func(rt h2gis.Runtime) (any, error) {
		return fn(rt)
	})
	if err != nil || v == nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Run is Do for closures with no result.
func (e *Engine) Run(fn func(h2gis.Runtime) error) error {
	_, err := e.do(func(rt h2gis.Runtime) (any, error) {
		return nil, fn(rt)
	})
	return err
}

func (e *Engine) do(fn func(h2gis.Runtime) (any, error)) (any, error) {
	t, err := e.enqueue(fn)
	if err != nil {
		return nil, err
	}
	r := <-t.done
	return r.value, r.err
}

func (e *Engine) enqueue(fn func(h2gis.Runtime) (any, error)) (*task, error) {
	if err := e.ensureInitialized(); err != nil {
		return nil, err
	}

	t := newTask(fn)

	e.qmu.Lock()
	if e.stopping.Load() {
		e.qmu.Unlock()
		return nil, errors.ShuttingDown()
	}
	e.seq++
	t.seq = e.seq
	e.queue = append(e.queue, t)
	e.qmu.Unlock()

	e.cond.Signal()
	return t, nil
}

// ensureInitialized brings the engine to Running, starting the worker
// if needed. Concurrent triggers collapse into one attempt; losers wait
// for its outcome.
func (e *Engine) ensureInitialized() error {
	if e.initialized.Load() {
		return nil
	}

	e.initMu.Lock()
	if e.initialized.Load() {
		e.initMu.Unlock()
		return nil
	}

	switch e.State() {
	case StateShuttingDown:
		e.initMu.Unlock()
		return errors.ShuttingDown()

	case StateLoading, StateReady:
		// Another caller's attempt is in flight; wait for it.
		ready := e.ready
		e.initMu.Unlock()
		<-ready
		return e.initErr

	case StateRunning:
		e.initMu.Unlock()
		return nil
	}

	// Uninitialized or Stopped: fresh attempt from scratch.
	e.reset()
	e.setState(StateLoading)
	ready := e.ready
	done := e.done
	timeout := e.cfg.InitTimeout
	go e.run()
	e.initMu.Unlock()

	select {
	case <-ready:
		return e.initErr

	case <-time.After(timeout):
		Logger().Debug("initialization timed out", zap.Duration("timeout", timeout))
		// The store must be serialized with the worker's predicate check
		// under qmu, or a worker between its check and cond.Wait would
		// miss both the flag and the broadcast and park forever.
		e.qmu.Lock()
		e.stopping.Store(true)
		e.qmu.Unlock()
		e.cond.Broadcast()
		<-done

		// The loader may have finished between the timeout firing and
		// the worker observing the abort; tear its work down either way.
		e.initMu.Lock()
		e.initialized.Store(false)
		if e.rt != nil {
			if err := e.rt.Unload(); err != nil {
				Logger().Debug("library unload failed", zap.Error(err))
			}
			e.rt = nil
		}
		e.setState(StateStopped)
		e.initMu.Unlock()

		return errors.InitTimeout("worker did not become ready within " + timeout.String())
	}
}

// reset prepares a fresh lifecycle cycle. Caller holds initMu.
func (e *Engine) reset() {
	e.qmu.Lock()
	e.queue = nil
	e.qmu.Unlock()

	e.stopping.Store(false)
	e.initialized.Store(false)
	e.initErr = nil
	e.rt = nil
	e.ready = make(chan struct{})
	e.done = make(chan struct{})
	e.stopped = make(chan struct{})
	e.setState(StateUninitialized)
}

// run is the worker. It performs library load and isolate bootstrap on
// this goroutine, pinned to its OS thread since the isolate binds to
// the creating thread, then consumes the queue until shutdown.
func (e *Engine) run() {
	goruntime.LockOSThread()
	defer goruntime.UnlockOSThread()
	defer close(e.done)

	log := Logger()
	log.Debug("worker starting",
		zap.Uint64("stack_reserve", e.cfg.StackReserve),
		zap.String("library_path", e.cfg.LibraryPath))

	loader := e.cfg.Loader
	if loader == nil {
		e.initErr = errors.NotInitialized("library loader")
		e.setState(StateStopped)
		close(e.ready)
		return
	}

	rt, err := loader(LoadSpec{
		LibraryPath:   e.cfg.LibraryPath,
		FallbackPaths: e.cfg.FallbackPaths,
		StackReserve:  e.cfg.StackReserve,
	})
	if err != nil {
		log.Debug("worker initialization failed", zap.Error(err))
		e.initErr = err
		e.setState(StateStopped)
		close(e.ready)
		return
	}

	e.rt = rt
	e.setState(StateReady)
	e.initialized.Store(true)
	close(e.ready)

	e.setState(StateRunning)
	log.Debug("worker entering task loop")

	for {
		e.qmu.Lock()
		for len(e.queue) == 0 && !e.stopping.Load() {
			e.cond.Wait()
		}
		if e.stopping.Load() {
			// No new tasks start once the flag is observed; anything
			// still queued is failed so its caller unblocks.
			rest := e.queue
			e.queue = nil
			e.qmu.Unlock()
			for _, t := range rest {
				t.fail(errors.ShuttingDown())
			}
			break
		}
		t := e.queue[0]
		e.queue = e.queue[1:]
		e.qmu.Unlock()

		t.execute(rt)
	}

	log.Debug("worker detaching from isolate")
	if err := rt.Detach(); err != nil {
		log.Debug("detach failed", zap.Error(err))
	}
}

// Shutdown drains the worker and releases the runtime. The running task
// (if any) completes; queued tasks fail; new submissions are rejected.
// After Shutdown the engine is Stopped and a later call re-initializes
// from scratch.
func (e *Engine) Shutdown() {
	e.initMu.Lock()

	switch e.State() {
	case StateUninitialized, StateStopped, StateShuttingDown:
		e.initMu.Unlock()
		return
	}

	Logger().Debug("shutdown requested", zap.String("state", e.State().String()))

	e.setState(StateShuttingDown)
	e.initialized.Store(false)
	done := e.done
	e.initMu.Unlock()

	// Serialized with the worker's predicate check under qmu so a worker
	// about to park cannot miss both the flag and the broadcast.
	e.qmu.Lock()
	e.stopping.Store(true)
	e.qmu.Unlock()
	e.cond.Broadcast()
	<-done

	e.initMu.Lock()
	// A worker that was still loading when shutdown began may have
	// flipped the flag after we cleared it.
	e.initialized.Store(false)
	if e.rt != nil {
		if err := e.rt.Unload(); err != nil {
			Logger().Debug("library unload failed", zap.Error(err))
		}
		e.rt = nil
	}
	e.refs.Store(0)
	e.setState(StateStopped)
	close(e.stopped)
	e.initMu.Unlock()

	dropShared(e)
	Logger().Debug("engine stopped")
}
