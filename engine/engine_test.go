package engine

import (
	goerrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	h2gis "github.com/h2gis/h2gis-go"
	"github.com/h2gis/h2gis-go/errors"
	"github.com/h2gis/h2gis-go/internal/memrt"
)

func fixedLoader(rt h2gis.Runtime) Loader {
	return func(LoadSpec) (h2gis.Runtime, error) {
		return rt, nil
	}
}

func kindOf(err error) errors.Kind {
	var e *errors.Error
	if goerrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func TestLazyInit(t *testing.T) {
	rt := memrt.New()
	var loads atomic.Int32
	e := New(Config{Loader: func(spec LoadSpec) (h2gis.Runtime, error) {
		loads.Add(1)
		return rt, nil
	}})

	if got := e.State(); got != StateUninitialized {
		t.Fatalf("state before first call = %v, want uninitialized", got)
	}
	if n := loads.Load(); n != 0 {
		t.Fatalf("loader ran %d times before first call", n)
	}

	if err := e.Run(func(h2gis.Runtime) error { return nil }); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if got := e.State(); got != StateRunning {
		t.Fatalf("state after first call = %v, want running", got)
	}
	if n := loads.Load(); n != 1 {
		t.Fatalf("loader ran %d times, want 1", n)
	}
}

func TestInitOnceUnderConcurrency(t *testing.T) {
	rt := memrt.New()
	var loads atomic.Int32
	e := New(Config{Loader: func(spec LoadSpec) (h2gis.Runtime, error) {
		loads.Add(1)
		time.Sleep(20 * time.Millisecond)
		return rt, nil
	}})

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- e.Run(func(h2gis.Runtime) error { return nil })
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent call: %v", err)
		}
	}
	if n := loads.Load(); n != 1 {
		t.Fatalf("loader ran %d times, want 1", n)
	}
}

func TestInitFailureThenRetry(t *testing.T) {
	rt := memrt.New()
	var attempts atomic.Int32
	e := New(Config{Loader: func(spec LoadSpec) (h2gis.Runtime, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.MissingSymbol("h2gis_connect")
		}
		return rt, nil
	}})

	err := e.Run(func(h2gis.Runtime) error { return nil })
	if kindOf(err) != errors.KindMissingSymbol {
		t.Fatalf("first call error = %v, want missing_symbol", err)
	}
	if got := e.State(); got != StateStopped {
		t.Fatalf("state after failed init = %v, want stopped", got)
	}

	// A failed attempt must not poison the engine: the next call starts
	// a fresh lifecycle.
	if err := e.Run(func(h2gis.Runtime) error { return nil }); err != nil {
		t.Fatalf("retry after failed init: %v", err)
	}
	if got := e.State(); got != StateRunning {
		t.Fatalf("state after retry = %v, want running", got)
	}
	if n := attempts.Load(); n != 2 {
		t.Fatalf("loader ran %d times, want 2", n)
	}
}

func TestInitTimeout(t *testing.T) {
	rt := memrt.New()
	e := New(Config{
		InitTimeout: 30 * time.Millisecond,
		Loader: func(spec LoadSpec) (h2gis.Runtime, error) {
			time.Sleep(200 * time.Millisecond)
			return rt, nil
		},
	})

	err := e.Run(func(h2gis.Runtime) error { return nil })
	if kindOf(err) != errors.KindInitTimeout {
		t.Fatalf("error = %v, want init_timeout", err)
	}
	if got := e.State(); got != StateStopped {
		t.Fatalf("state after timeout = %v, want stopped", got)
	}
	// The loader did hand out a runtime after the deadline; the engine
	// must have torn it down rather than leak it.
	if !rt.Unloaded() {
		t.Fatal("late-loaded runtime was not unloaded")
	}
}

func TestFIFOOrder(t *testing.T) {
	e := New(Config{Loader: fixedLoader(memrt.New())})
	defer e.Shutdown()

	// A gate task parks the worker so later submissions pile up in the
	// queue before any of them runs.
	release := make(chan struct{})
	gate, err := e.enqueue(func(h2gis.Runtime) (any, error) {
		<-release
		return nil, nil
	})
	if err != nil {
		t.Fatalf("enqueue gate: %v", err)
	}

	const n = 32
	var mu sync.Mutex
	var order []uint64
	tasks := make([]*task, 0, n)
	for i := 0; i < n; i++ {
		holder := new(*task)
		tk, err := e.enqueue(func(h2gis.Runtime) (any, error) {
			mu.Lock()
			order = append(order, (*holder).seq)
			mu.Unlock()
			return nil, nil
		})
		if err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
		*holder = tk
		tasks = append(tasks, tk)
	}

	close(release)
	<-gate.done
	for _, tk := range tasks {
		if r := <-tk.done; r.err != nil {
			t.Fatalf("task %d: %v", tk.seq, r.err)
		}
	}

	if len(order) != n {
		t.Fatalf("executed %d tasks, want %d", len(order), n)
	}
	for i := 1; i < len(order); i++ {
		if order[i] <= order[i-1] {
			t.Fatalf("execution order not FIFO: seq %d ran after %d", order[i], order[i-1])
		}
	}
}

func TestSingleWorkerMutualExclusion(t *testing.T) {
	e := New(Config{Loader: fixedLoader(memrt.New())})
	defer e.Shutdown()

	var inFlight atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := e.Run(func(h2gis.Runtime) error {
				if !inFlight.CompareAndSwap(0, 1) {
					t.Error("two tasks ran concurrently")
				}
				time.Sleep(time.Millisecond)
				inFlight.Store(0)
				return nil
			})
			if err != nil {
				t.Errorf("run: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestTaskPanicIsolated(t *testing.T) {
	e := New(Config{Loader: fixedLoader(memrt.New())})
	defer e.Shutdown()

	err := e.Run(func(h2gis.Runtime) error {
		panic("boom")
	})
	if kindOf(err) != errors.KindTaskFailed {
		t.Fatalf("error = %v, want task_failed", err)
	}

	// The worker survives the panic and keeps serving.
	v, err := Do(e, func(h2gis.Runtime) (int, error) { return 42, nil })
	if err != nil {
		t.Fatalf("call after panic: %v", err)
	}
	if v != 42 {
		t.Fatalf("value after panic = %d, want 42", v)
	}
}

func TestDoReturnsValue(t *testing.T) {
	rt := memrt.New()
	e := New(Config{Loader: fixedLoader(rt)})
	defer e.Shutdown()

	conn, err := Do(e, func(r h2gis.Runtime) (h2gis.Conn, error) {
		h, err := r.Connect("./spatial", "sa", "")
		return h2gis.Conn(h), err
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !conn.Valid() {
		t.Fatalf("connect handle = %d, want > 0", conn)
	}
}

func TestShutdownFailsQueuedAndRejectsNew(t *testing.T) {
	rt := memrt.New()
	e := New(Config{Loader: fixedLoader(rt)})

	release := make(chan struct{})
	gate, err := e.enqueue(func(h2gis.Runtime) (any, error) {
		<-release
		return "done", nil
	})
	if err != nil {
		t.Fatalf("enqueue gate: %v", err)
	}

	queued := make([]*task, 0, 4)
	for i := 0; i < 4; i++ {
		tk, err := e.enqueue(func(h2gis.Runtime) (any, error) {
			t.Error("queued task ran after shutdown began")
			return nil, nil
		})
		if err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
		queued = append(queued, tk)
	}

	stopped := make(chan struct{})
	go func() {
		e.Shutdown()
		close(stopped)
	}()

	// Wait until shutdown is underway, then verify new work is turned
	// away while the gate task is still running.
	for e.State() != StateShuttingDown {
		time.Sleep(time.Millisecond)
	}
	if err := e.Run(func(h2gis.Runtime) error { return nil }); kindOf(err) != errors.KindShuttingDown {
		t.Fatalf("submit during shutdown = %v, want shutting_down", err)
	}

	close(release)

	// The in-flight task completes normally.
	if r := <-gate.done; r.err != nil || r.value != "done" {
		t.Fatalf("gate task result = (%v, %v), want (done, nil)", r.value, r.err)
	}
	// Everything queued behind it fails without running.
	for _, tk := range queued {
		if r := <-tk.done; kindOf(r.err) != errors.KindShuttingDown {
			t.Fatalf("queued task error = %v, want shutting_down", r.err)
		}
	}

	<-stopped
	if got := e.State(); got != StateStopped {
		t.Fatalf("state after shutdown = %v, want stopped", got)
	}
	if !rt.Detached() {
		t.Fatal("worker did not detach from isolate")
	}
	if !rt.Unloaded() {
		t.Fatal("library was not unloaded")
	}
}

func TestShutdownIdempotent(t *testing.T) {
	e := New(Config{Loader: fixedLoader(memrt.New())})

	// Shutdown before any work is a no-op.
	e.Shutdown()
	if got := e.State(); got != StateUninitialized {
		t.Fatalf("state after no-op shutdown = %v, want uninitialized", got)
	}

	if err := e.Run(func(h2gis.Runtime) error { return nil }); err != nil {
		t.Fatalf("run: %v", err)
	}
	e.Shutdown()
	e.Shutdown()
	if got := e.State(); got != StateStopped {
		t.Fatalf("state = %v, want stopped", got)
	}
}

func TestRefcountDrivesShutdown(t *testing.T) {
	rt := memrt.New()
	e := New(Config{Loader: fixedLoader(rt)})

	e.Retain()
	e.Retain()
	if err := e.Run(func(h2gis.Runtime) error { return nil }); err != nil {
		t.Fatalf("run: %v", err)
	}

	e.Release()
	if got := e.State(); got != StateRunning {
		t.Fatalf("state after first release = %v, want running", got)
	}
	if rt.Unloaded() {
		t.Fatal("library unloaded while references remain")
	}

	e.Release()
	if got := e.State(); got != StateStopped {
		t.Fatalf("state after last release = %v, want stopped", got)
	}
	if !rt.Unloaded() {
		t.Fatal("library not unloaded after last release")
	}
}

func TestReinitAfterShutdown(t *testing.T) {
	var loads atomic.Int32
	e := New(Config{Loader: func(spec LoadSpec) (h2gis.Runtime, error) {
		loads.Add(1)
		return memrt.New(), nil
	}})

	if err := e.Run(func(h2gis.Runtime) error { return nil }); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	e.Shutdown()

	if err := e.Run(func(h2gis.Runtime) error { return nil }); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	defer e.Shutdown()

	if got := e.State(); got != StateRunning {
		t.Fatalf("state = %v, want running", got)
	}
	if n := loads.Load(); n != 2 {
		t.Fatalf("loader ran %d times across two cycles, want 2", n)
	}
}

func TestShutdownWakesIdleWorker(t *testing.T) {
	// Exercises the window between the worker finding its queue empty
	// and parking in cond.Wait while a concurrent Shutdown raises the
	// stop flag. Shutdown must always wake the worker and return.
	for i := 0; i < 50; i++ {
		e := New(Config{Loader: fixedLoader(memrt.New())})
		if err := e.Run(func(h2gis.Runtime) error { return nil }); err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}

		finished := make(chan struct{})
		go func() {
			e.Shutdown()
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(2 * time.Second):
			t.Fatalf("iteration %d: shutdown never returned; worker stayed parked", i)
		}
	}
}

func TestAcquireWaitsForShutdown(t *testing.T) {
	rtA := memrt.New()
	a := Acquire(Config{Loader: fixedLoader(rtA)})

	// Park the worker so the engine sits in ShuttingDown once the last
	// reference goes away.
	release := make(chan struct{})
	gate, err := a.enqueue(func(h2gis.Runtime) (any, error) {
		<-release
		return nil, nil
	})
	if err != nil {
		t.Fatalf("enqueue gate: %v", err)
	}
	go a.Release()
	for a.State() != StateShuttingDown {
		time.Sleep(time.Millisecond)
	}

	rtB := memrt.New()
	acquired := make(chan *Engine, 1)
	go func() {
		acquired <- Acquire(Config{Loader: fixedLoader(rtB)})
	}()

	// While the old worker is still attached to its isolate, Acquire
	// must not hand out a replacement.
	select {
	case <-acquired:
		t.Fatal("Acquire returned while the old engine was still shutting down")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-gate.done

	var b *Engine
	select {
	case b = <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("Acquire never returned after the old engine stopped")
	}
	defer b.Release()

	if !rtA.Detached() {
		t.Fatal("replacement handed out before the old worker detached")
	}
	if !rtA.Unloaded() {
		t.Fatal("replacement handed out before the old library unloaded")
	}
	if b == a {
		t.Fatal("Acquire handed back the stopped engine")
	}
	if err := b.Run(func(h2gis.Runtime) error { return nil }); err != nil {
		t.Fatalf("run on replacement engine: %v", err)
	}
}

func TestAcquireShares(t *testing.T) {
	cfg := Config{Loader: fixedLoader(memrt.New())}

	a := Acquire(cfg)
	b := Acquire(cfg)
	if a != b {
		t.Fatal("Acquire returned distinct engines within one lifecycle")
	}

	if err := a.Run(func(h2gis.Runtime) error { return nil }); err != nil {
		t.Fatalf("run: %v", err)
	}

	a.Release()
	if got := b.State(); got != StateRunning {
		t.Fatalf("state after one release = %v, want running", got)
	}
	b.Release()
	if got := b.State(); got != StateStopped {
		t.Fatalf("state after last release = %v, want stopped", got)
	}

	c := Acquire(cfg)
	defer c.Release()
	if c == a {
		t.Fatal("Acquire reused a stopped engine")
	}
}
