package engine

import "sync"

// The worker thread, library handle and isolate are process-wide: the
// embedded runtime supports exactly one isolate per process. The shared
// engine is published here and handed out by Acquire; each open session
// holds one reference.
var (
	sharedMu sync.Mutex
	shared   *Engine
)

// Acquire returns the process-wide engine with one reference added,
// creating it from cfg when none is live. The configuration of the
// first acquirer in a lifecycle wins; later acquirers share the running
// engine regardless of their cfg.
func Acquire(cfg Config) *Engine {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	// An engine mid-shutdown still has its worker attached to the
	// isolate. Wait for the teardown to finish before building a
	// replacement, otherwise two isolates would briefly coexist.
	for shared != nil && shared.State() == StateShuttingDown {
		e := shared
		sharedMu.Unlock()
		<-e.stopped
		sharedMu.Lock()
	}

	if shared == nil || shared.State() == StateStopped {
		shared = New(cfg)
	}
	shared.Retain()
	return shared
}

// dropShared clears the published engine once it has stopped, so the
// next Acquire starts a fresh lifecycle.
func dropShared(e *Engine) {
	sharedMu.Lock()
	if shared == e {
		shared = nil
	}
	sharedMu.Unlock()
}
