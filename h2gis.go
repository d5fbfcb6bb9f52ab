package h2gis

// Conn identifies an open database connection inside the embedded runtime.
// Valid connections are strictly positive; zero and negative values mean
// "no connection".
type Conn int64

// Stmt identifies a prepared statement inside the embedded runtime.
type Stmt int64

// ResultSet identifies an open result set inside the embedded runtime.
type ResultSet int64

// Valid reports whether the handle refers to a live connection.
func (c Conn) Valid() bool { return c > 0 }

// Valid reports whether the handle refers to a live statement.
func (s Stmt) Valid() bool { return s > 0 }

// Valid reports whether the handle refers to a live result set.
func (r ResultSet) Valid() bool { return r > 0 }

// RawBuffer is a result buffer owned by the embedded runtime.
//
// Ptr is the runtime-side address used to release the buffer; Data is a
// view of the same bytes, valid only until the buffer is freed. A
// zero-size buffer (Data == nil) means "no data" and carries no header.
type RawBuffer struct {
	Ptr  uintptr
	Data []byte
}

// Empty reports whether the buffer carries no data.
func (b RawBuffer) Empty() bool { return len(b.Data) == 0 }

// Runtime is the capability surface of a bound H2GIS library.
//
// Implementations are NOT safe for concurrent use and must only ever be
// called from the single worker thread that created the isolate; the
// engine package enforces this by funneling every call through its
// worker loop. Handle arguments are opaque: implementations pass them
// through without interpreting their value.
//
// Entry points that are optional in the native library return
// errors.NotSupported when unbound instead of failing at load time.
type Runtime interface {
	// LastError returns the runtime's pending error text, if any.
	LastError() (string, error)

	Connect(path, user, password string) (int64, error)
	Load(conn int64) (int64, error)
	Execute(conn int64, sql string) (int32, error)
	Prepare(conn int64, sql string) (int64, error)
	Fetch(conn int64, sql string) (int64, error)

	BindDouble(stmt int64, idx int32, v float64) error
	BindInt(stmt int64, idx int32, v int32) error
	BindLong(stmt int64, idx int32, v int64) error
	BindString(stmt int64, idx int32, v string) error
	BindBlob(stmt int64, idx int32, data []byte) error

	ExecutePrepared(stmt int64) (int64, error)
	ExecutePreparedUpdate(stmt int64) (int32, error)

	FetchAll(rs int64) (RawBuffer, error)
	FetchOne(rs int64) (RawBuffer, error)
	FetchBatch(rs int64, batchSize int32) (RawBuffer, error)
	ColumnTypes(stmt int64) (RawBuffer, error)
	MetadataJSON(conn int64) (string, error)

	CloseQuery(handle int64) error
	CloseConnection(conn int64) error
	DeleteDatabaseAndClose(conn int64) error
	FreeResultSet(rs int64) (int64, error)
	FreeResultBuffer(buf RawBuffer) error

	// Detach disconnects the worker thread from the isolate. It runs on
	// the worker thread, after the run loop has drained.
	Detach() error

	// Unload releases the shared library. It runs after the worker thread
	// has exited and must not touch the isolate.
	Unload() error
}
