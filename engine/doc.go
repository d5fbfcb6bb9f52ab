// Package engine funnels every call into the embedded H2GIS runtime
// through one dedicated worker thread.
//
// The GraalVM isolate hosted by the native library is single-threaded:
// only the thread that created it may call into it, and that thread
// needs a much deeper stack than callers normally have. The engine owns
// that thread as an OS-pinned goroutine and exposes a blocking dispatch
// primitive instead:
//
//	v, err := engine.Do(eng, func(rt h2gis.Runtime) (int64, error) {
//	    return rt.Connect("/data/city", "sa", "")
//	})
//
// Do enqueues the closure on a FIFO queue, wakes the worker, and blocks
// the caller on a one-shot completion channel until the closure has run
// on the worker thread. Closures execute strictly in enqueue order
// across all callers; there is no cancellation of a call once enqueued.
//
// # Lifecycle
//
//	Uninitialized → Loading → Ready → Running → ShuttingDown → Stopped
//
// The first dispatch triggers initialization, exactly once even under
// concurrent first calls: the worker starts, loads the library, creates
// the isolate and flips the initialized flag, all bounded by
// Config.InitTimeout. Failures surface to the triggering caller and
// leave the engine Stopped; a later call retries from scratch.
//
// Shutdown is cooperative. The flag is observed between tasks, so a
// running task always completes; tasks still queued when the flag is
// observed fail with a shutting_down error, and new submissions are
// rejected without being enqueued. The engine is reference counted via
// Retain/Release, with the last release triggering shutdown, and
// Shutdown can also be called explicitly.
//
// A task that panics has its failure captured and delivered only to the
// caller that submitted it; the worker loop itself never terminates
// because of a task.
package engine
