package native

import (
	"unsafe"

	"github.com/ebitengine/purego"

	h2gis "github.com/h2gis/h2gis-go"
	"github.com/h2gis/h2gis-go/engine"
	"github.com/h2gis/h2gis-go/errors"
)

func init() {
	engine.RegisterDefaultLoader(Load)
}

// Entry points that must resolve for the library to be usable at all.
var requiredSymbols = []string{
	"graal_create_isolate",
	"h2gis_connect",
	"h2gis_execute",
	"h2gis_prepare",
}

// isolateParams mirrors graal_create_isolate_params_t, version 4.
type isolateParams struct {
	version              int32
	_                    int32
	reservedAddressSpace int64
	auxImagePath         uintptr
	auxImageReserved     int64
	reserved1            int32
	_                    int32
	reserved2            uintptr
	pkey                 int32
	reserved3            int8
	reserved4            int8
	reserved5            int8
	_                    int8
}

// Library is an h2gis.Runtime backed by a loaded shared library and a
// live GraalVM isolate. All calls must come from the thread that
// created the isolate; see the package comment.
type Library struct {
	handle  uintptr
	isolate uintptr
	thread  uintptr

	// Optional entry points stay nil when absent from the library and
	// surface as not_supported at call time.
	lastError              func(thread uintptr) string
	connect                func(thread uintptr, path, user, password string) int64
	load                   func(thread uintptr, conn int64) int64
	fetch                  func(thread uintptr, conn int64, sql string) int64
	execute                func(thread uintptr, conn int64, sql string) int32
	prepare                func(thread uintptr, conn int64, sql string) int64
	bindDouble             func(thread uintptr, stmt int64, idx int32, v float64)
	bindInt                func(thread uintptr, stmt int64, idx int32, v int32)
	bindLong               func(thread uintptr, stmt int64, idx int32, v int64)
	bindString             func(thread uintptr, stmt int64, idx int32, v string)
	bindBlob               func(thread uintptr, stmt int64, idx int32, data unsafe.Pointer, n int32)
	executePrepared        func(thread uintptr, stmt int64) int64
	executePreparedUpdate  func(thread uintptr, stmt int64) int32
	fetchAll               func(thread uintptr, rs int64, sizeOut unsafe.Pointer) uintptr
	fetchOne               func(thread uintptr, rs int64, sizeOut unsafe.Pointer) uintptr
	fetchBatch             func(thread uintptr, rs int64, batchSize int32, sizeOut unsafe.Pointer) uintptr
	columnTypes            func(thread uintptr, stmt int64, sizeOut unsafe.Pointer) uintptr
	metadataJSON           func(thread uintptr, conn int64) string
	closeQuery             func(thread uintptr, handle int64)
	closeConnection        func(thread uintptr, conn int64)
	deleteDatabaseAndClose func(thread uintptr, conn int64)
	freeResultSet          func(thread uintptr, rs int64) int64
	freeResultBuffer       func(thread uintptr, buf uintptr)
	detachThread           func(thread uintptr) int32
}

// Load opens the H2GIS shared library, binds its entry points and
// creates the GraalVM isolate on the calling thread. It is the default
// engine loader, so it runs on the pinned worker.
func Load(spec engine.LoadSpec) (h2gis.Runtime, error) {
	path, err := resolveLibraryPath(spec.LibraryPath, spec.FallbackPaths)
	if err != nil {
		return nil, err
	}

	handle, err := openLibrary(path)
	if err != nil {
		return nil, errors.LoadFailure(path, err)
	}

	for _, name := range requiredSymbols {
		if _, err := lookupSymbol(handle, name); err != nil {
			_ = closeLibrary(handle)
			return nil, errors.MissingSymbol(name)
		}
	}

	lib := &Library{handle: handle}

	var createIsolate func(params, isolate, thread unsafe.Pointer) int32
	purego.RegisterLibFunc(&createIsolate, handle, "graal_create_isolate")

	params := isolateParams{
		version:              4,
		reservedAddressSpace: int64(spec.StackReserve),
	}
	rc := createIsolate(unsafe.Pointer(&params), unsafe.Pointer(&lib.isolate), unsafe.Pointer(&lib.thread))
	if rc != 0 {
		_ = closeLibrary(handle)
		return nil, errors.BootstrapFailure(rc)
	}

	lib.bindAll()
	return lib, nil
}

// bind registers fptr against name when the symbol resolves; absent
// symbols leave the field nil.
func (l *Library) bind(fptr any, name string) {
	if _, err := lookupSymbol(l.handle, name); err != nil {
		return
	}
	purego.RegisterLibFunc(fptr, l.handle, name)
}

func (l *Library) bindAll() {
	l.bind(&l.lastError, "h2gis_get_last_error")
	l.bind(&l.connect, "h2gis_connect")
	l.bind(&l.load, "h2gis_load")
	l.bind(&l.fetch, "h2gis_fetch")
	l.bind(&l.execute, "h2gis_execute")
	l.bind(&l.prepare, "h2gis_prepare")
	l.bind(&l.bindDouble, "h2gis_bind_double")
	l.bind(&l.bindInt, "h2gis_bind_int")
	l.bind(&l.bindLong, "h2gis_bind_long")
	l.bind(&l.bindString, "h2gis_bind_string")
	l.bind(&l.bindBlob, "h2gis_bind_blob")
	l.bind(&l.executePrepared, "h2gis_execute_prepared")
	l.bind(&l.executePreparedUpdate, "h2gis_execute_prepared_update")
	l.bind(&l.fetchAll, "h2gis_fetch_all")
	l.bind(&l.fetchOne, "h2gis_fetch_one")
	l.bind(&l.fetchBatch, "h2gis_fetch_batch")
	l.bind(&l.columnTypes, "h2gis_get_column_types")
	l.bind(&l.metadataJSON, "h2gis_get_metadata_json")
	l.bind(&l.closeQuery, "h2gis_close_query")
	l.bind(&l.closeConnection, "h2gis_close_connection")
	l.bind(&l.deleteDatabaseAndClose, "h2gis_delete_database_and_close")
	l.bind(&l.freeResultSet, "h2gis_free_result_set")
	l.bind(&l.freeResultBuffer, "h2gis_free_result_buffer")
	l.bind(&l.detachThread, "graal_detach_thread")
}

// rawBuffer materializes a runtime-owned buffer as a RawBuffer. The
// Data slice aliases native memory and stays valid until
// FreeResultBuffer releases the pointer.
func rawBuffer(ptr uintptr, size int64) h2gis.RawBuffer {
	if ptr == 0 || size <= 0 {
		return h2gis.RawBuffer{}
	}
	return h2gis.RawBuffer{
		Ptr:  ptr,
		Data: unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size),
	}
}

func (l *Library) LastError() (string, error) {
	if l.lastError == nil {
		return "", errors.NotSupported("h2gis_get_last_error")
	}
	return l.lastError(l.thread), nil
}

func (l *Library) Connect(path, user, password string) (int64, error) {
	return l.connect(l.thread, path, user, password), nil
}

func (l *Library) Load(conn int64) (int64, error) {
	if l.load == nil {
		return 0, errors.NotSupported("h2gis_load")
	}
	return l.load(l.thread, conn), nil
}

func (l *Library) Execute(conn int64, sql string) (int32, error) {
	return l.execute(l.thread, conn, sql), nil
}

func (l *Library) Prepare(conn int64, sql string) (int64, error) {
	return l.prepare(l.thread, conn, sql), nil
}

func (l *Library) Fetch(conn int64, sql string) (int64, error) {
	if l.fetch == nil {
		return 0, errors.NotSupported("h2gis_fetch")
	}
	return l.fetch(l.thread, conn, sql), nil
}

func (l *Library) BindDouble(stmt int64, idx int32, v float64) error {
	if l.bindDouble == nil {
		return errors.NotSupported("h2gis_bind_double")
	}
	l.bindDouble(l.thread, stmt, idx, v)
	return nil
}

func (l *Library) BindInt(stmt int64, idx int32, v int32) error {
	if l.bindInt == nil {
		return errors.NotSupported("h2gis_bind_int")
	}
	l.bindInt(l.thread, stmt, idx, v)
	return nil
}

func (l *Library) BindLong(stmt int64, idx int32, v int64) error {
	if l.bindLong == nil {
		return errors.NotSupported("h2gis_bind_long")
	}
	l.bindLong(l.thread, stmt, idx, v)
	return nil
}

func (l *Library) BindString(stmt int64, idx int32, v string) error {
	if l.bindString == nil {
		return errors.NotSupported("h2gis_bind_string")
	}
	l.bindString(l.thread, stmt, idx, v)
	return nil
}

func (l *Library) BindBlob(stmt int64, idx int32, data []byte) error {
	if l.bindBlob == nil {
		return errors.NotSupported("h2gis_bind_blob")
	}
	var p unsafe.Pointer
	if len(data) > 0 {
		p = unsafe.Pointer(&data[0])
	}
	l.bindBlob(l.thread, stmt, idx, p, int32(len(data)))
	return nil
}

func (l *Library) ExecutePrepared(stmt int64) (int64, error) {
	if l.executePrepared == nil {
		return 0, errors.NotSupported("h2gis_execute_prepared")
	}
	return l.executePrepared(l.thread, stmt), nil
}

func (l *Library) ExecutePreparedUpdate(stmt int64) (int32, error) {
	if l.executePreparedUpdate == nil {
		return 0, errors.NotSupported("h2gis_execute_prepared_update")
	}
	return l.executePreparedUpdate(l.thread, stmt), nil
}

func (l *Library) FetchAll(rs int64) (h2gis.RawBuffer, error) {
	if l.fetchAll == nil {
		return h2gis.RawBuffer{}, errors.NotSupported("h2gis_fetch_all")
	}
	var size int64
	ptr := l.fetchAll(l.thread, rs, unsafe.Pointer(&size))
	return rawBuffer(ptr, size), nil
}

func (l *Library) FetchOne(rs int64) (h2gis.RawBuffer, error) {
	if l.fetchOne == nil {
		return h2gis.RawBuffer{}, errors.NotSupported("h2gis_fetch_one")
	}
	var size int64
	ptr := l.fetchOne(l.thread, rs, unsafe.Pointer(&size))
	return rawBuffer(ptr, size), nil
}

func (l *Library) FetchBatch(rs int64, batchSize int32) (h2gis.RawBuffer, error) {
	if l.fetchBatch == nil {
		return h2gis.RawBuffer{}, errors.NotSupported("h2gis_fetch_batch")
	}
	var size int64
	ptr := l.fetchBatch(l.thread, rs, batchSize, unsafe.Pointer(&size))
	return rawBuffer(ptr, size), nil
}

func (l *Library) ColumnTypes(stmt int64) (h2gis.RawBuffer, error) {
	if l.columnTypes == nil {
		return h2gis.RawBuffer{}, errors.NotSupported("h2gis_get_column_types")
	}
	var size int64
	ptr := l.columnTypes(l.thread, stmt, unsafe.Pointer(&size))
	return rawBuffer(ptr, size), nil
}

func (l *Library) MetadataJSON(conn int64) (string, error) {
	if l.metadataJSON == nil {
		return "", errors.NotSupported("h2gis_get_metadata_json")
	}
	return l.metadataJSON(l.thread, conn), nil
}

func (l *Library) CloseQuery(handle int64) error {
	if l.closeQuery == nil {
		return errors.NotSupported("h2gis_close_query")
	}
	l.closeQuery(l.thread, handle)
	return nil
}

func (l *Library) CloseConnection(conn int64) error {
	if l.closeConnection == nil {
		return errors.NotSupported("h2gis_close_connection")
	}
	l.closeConnection(l.thread, conn)
	return nil
}

func (l *Library) DeleteDatabaseAndClose(conn int64) error {
	if l.deleteDatabaseAndClose == nil {
		return errors.NotSupported("h2gis_delete_database_and_close")
	}
	l.deleteDatabaseAndClose(l.thread, conn)
	return nil
}

func (l *Library) FreeResultSet(rs int64) (int64, error) {
	if l.freeResultSet == nil {
		return 0, errors.NotSupported("h2gis_free_result_set")
	}
	return l.freeResultSet(l.thread, rs), nil
}

func (l *Library) FreeResultBuffer(buf h2gis.RawBuffer) error {
	if l.freeResultBuffer == nil {
		return errors.NotSupported("h2gis_free_result_buffer")
	}
	if buf.Ptr != 0 {
		l.freeResultBuffer(l.thread, buf.Ptr)
	}
	return nil
}

// Detach disconnects the worker thread from the isolate. Runs on the
// worker, after its loop has drained.
func (l *Library) Detach() error {
	if l.detachThread == nil {
		return nil
	}
	l.detachThread(l.thread)
	return nil
}

// Unload closes the shared library. Runs after the worker has exited.
func (l *Library) Unload() error {
	if l.handle == 0 {
		return nil
	}
	err := closeLibrary(l.handle)
	l.handle = 0
	return err
}
