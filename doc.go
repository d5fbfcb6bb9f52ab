// Package h2gis provides a safe Go calling boundary for the H2GIS native
// library, a GraalVM Native Image shared object hosting an embedded Java
// runtime.
//
// The embedded runtime tolerates exactly one calling thread: every call
// must originate from the thread that created its isolate, and that
// thread needs far more stack than the default. This library therefore
// funnels all runtime calls through one dedicated, OS-pinned worker
// goroutine and blocks each caller on a one-shot completion channel until
// its call has run there.
//
// # Architecture Overview
//
//	h2gis/         Root package with handle types and the Runtime capability interface
//	├── session/   High-level API: open sessions, run SQL, fetch row batches
//	├── engine/    Single-worker task dispatch, lifecycle state machine, shared handle
//	├── native/    Library loading, symbol binding and isolate bootstrap (purego)
//	├── resultbuf/ Columnar result buffer decoding with bounds-checked cursors
//	└── errors/    Structured error types for debugging
//
// # Quick Start
//
//	sess, err := session.Open(context.Background())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Release()
//
//	conn, err := sess.Connect("/data/city", "sa", "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.CloseConnection(conn)
//
//	stmt, _ := sess.Prepare(conn, "SELECT id, the_geom FROM buildings")
//	rs, _ := sess.ExecutePrepared(stmt)
//	for {
//	    batch, err := sess.FetchBatch(rs, 1000)
//	    if err != nil || batch == nil {
//	        break // nil batch signals end of results
//	    }
//	    for row, err := batch.Next(); err == nil && row != nil; row, err = batch.Next() {
//	        fmt.Println(row)
//	    }
//	}
//
// # Thread Safety
//
// Session and the package-level engine are safe for concurrent use from
// any goroutine; calls are executed in global FIFO order on the worker.
// Result batches are not safe for concurrent use: a batch belongs to the
// goroutine driving the result set.
//
// # Lifecycle
//
// The worker thread, library handle and isolate are shared process-wide
// and reference counted. The first call that needs the runtime loads the
// library and bootstraps the isolate, lazily and exactly once; when the
// last open session releases its reference the worker drains and exits,
// and a later session starts the cycle again from scratch.
package h2gis
