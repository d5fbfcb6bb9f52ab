// Package memrt provides an in-memory h2gis.Runtime for tests. It hands
// out handles and canned result buffers the way the native library
// does, without loading anything.
package memrt

import (
	"sync"

	h2gis "github.com/h2gis/h2gis-go"
	"github.com/h2gis/h2gis-go/errors"
)

type Runtime struct {
	mu      sync.Mutex
	next    int64
	nextPtr uintptr

	conns   map[int64]bool
	stmts   map[int64]int64    // stmt -> conn
	results map[int64][][]byte // result set -> remaining batches
	live    map[uintptr]bool   // outstanding result buffers

	batches  [][]byte // template for the next executed statement
	schema   []byte   // returned by ColumnTypes
	metadata string

	connectResult int64 // overrides handle allocation when negative
	lastError     string
	freed         int
	detached      bool
	unloaded      bool

	Binds []Bind
}

type Bind struct {
	Stmt int64
	Idx  int32
	Val  any
}

func New() *Runtime {
	return &Runtime{
		conns:   make(map[int64]bool),
		stmts:   make(map[int64]int64),
		results: make(map[int64][][]byte),
		live:    make(map[uintptr]bool),
	}
}

// SetBatches sets the buffers served, in order, by fetch calls on
// subsequently executed statements. The terminating empty buffer is
// produced automatically.
func (r *Runtime) SetBatches(batches ...[]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = batches
}

// SetSchema sets the zero-row buffer returned by ColumnTypes.
func (r *Runtime) SetSchema(buf []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schema = buf
}

// SetMetadata sets the JSON returned by MetadataJSON.
func (r *Runtime) SetMetadata(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata = s
}

// FailConnections makes Connect return the given sentinel instead of a
// fresh handle.
func (r *Runtime) FailConnections(sentinel int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectResult = sentinel
}

// SetLastError sets the text returned by LastError.
func (r *Runtime) SetLastError(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastError = s
}

// FreedBuffers reports how many result buffers were released.
func (r *Runtime) FreedBuffers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.freed
}

// LiveBuffers reports how many fetched buffers were never released.
func (r *Runtime) LiveBuffers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// OpenConns reports how many connections remain open.
func (r *Runtime) OpenConns() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *Runtime) Detached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detached
}

func (r *Runtime) Unloaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unloaded
}

func (r *Runtime) handle() int64 {
	r.next++
	return r.next
}

// h2gis.Runtime implementation.

func (r *Runtime) LastError() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastError, nil
}

func (r *Runtime) Connect(path, user, password string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.connectResult < 0 {
		return r.connectResult, nil
	}
	h := r.handle()
	r.conns[h] = true
	return h, nil
}

func (r *Runtime) Load(conn int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.conns[conn] {
		return -1, nil
	}
	return 0, nil
}

func (r *Runtime) Execute(conn int64, sql string) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.conns[conn] {
		return -1, nil
	}
	return 0, nil
}

func (r *Runtime) Prepare(conn int64, sql string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.conns[conn] {
		return 0, nil
	}
	h := r.handle()
	r.stmts[h] = conn
	return h, nil
}

func (r *Runtime) Fetch(conn int64, sql string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.conns[conn] {
		return 0, nil
	}
	h := r.handle()
	r.results[h] = append([][]byte(nil), r.batches...)
	return h, nil
}

func (r *Runtime) BindDouble(stmt int64, idx int32, v float64) error {
	return r.bind(stmt, idx, v)
}

func (r *Runtime) BindInt(stmt int64, idx int32, v int32) error {
	return r.bind(stmt, idx, v)
}

func (r *Runtime) BindLong(stmt int64, idx int32, v int64) error {
	return r.bind(stmt, idx, v)
}

func (r *Runtime) BindString(stmt int64, idx int32, v string) error {
	return r.bind(stmt, idx, v)
}

func (r *Runtime) BindBlob(stmt int64, idx int32, data []byte) error {
	return r.bind(stmt, idx, data)
}

func (r *Runtime) bind(stmt int64, idx int32, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Binds = append(r.Binds, Bind{Stmt: stmt, Idx: idx, Val: v})
	return nil
}

func (r *Runtime) ExecutePrepared(stmt int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stmts[stmt]; !ok {
		return 0, nil
	}
	h := r.handle()
	r.results[h] = append([][]byte(nil), r.batches...)
	return h, nil
}

func (r *Runtime) ExecutePreparedUpdate(stmt int64) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stmts[stmt]; !ok {
		return -1, nil
	}
	return 1, nil
}

func (r *Runtime) FetchAll(rs int64) (h2gis.RawBuffer, error) {
	return r.pop(rs)
}

func (r *Runtime) FetchOne(rs int64) (h2gis.RawBuffer, error) {
	return r.pop(rs)
}

func (r *Runtime) FetchBatch(rs int64, batchSize int32) (h2gis.RawBuffer, error) {
	return r.pop(rs)
}

func (r *Runtime) pop(rs int64) (h2gis.RawBuffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending, ok := r.results[rs]
	if !ok || len(pending) == 0 {
		return h2gis.RawBuffer{}, nil
	}
	data := pending[0]
	r.results[rs] = pending[1:]

	r.nextPtr++
	ptr := r.nextPtr
	r.live[ptr] = true
	return h2gis.RawBuffer{Ptr: ptr, Data: data}, nil
}

func (r *Runtime) ColumnTypes(stmt int64) (h2gis.RawBuffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.schema == nil {
		return h2gis.RawBuffer{}, nil
	}
	r.nextPtr++
	ptr := r.nextPtr
	r.live[ptr] = true
	return h2gis.RawBuffer{Ptr: ptr, Data: r.schema}, nil
}

func (r *Runtime) MetadataJSON(conn int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.metadata == "" {
		return "", errors.NotSupported("h2gis_get_metadata_json")
	}
	return r.metadata, nil
}

func (r *Runtime) CloseQuery(handle int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stmts, handle)
	delete(r.results, handle)
	return nil
}

func (r *Runtime) CloseConnection(conn int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, conn)
	return nil
}

func (r *Runtime) DeleteDatabaseAndClose(conn int64) error {
	return r.CloseConnection(conn)
}

func (r *Runtime) FreeResultSet(rs int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.results, rs)
	return 0, nil
}

func (r *Runtime) FreeResultBuffer(buf h2gis.RawBuffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.live[buf.Ptr] {
		return errors.InvalidData("buffer already freed or unknown")
	}
	delete(r.live, buf.Ptr)
	r.freed++
	return nil
}

func (r *Runtime) Detach() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detached = true
	return nil
}

func (r *Runtime) Unload() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unloaded = true
	return nil
}
