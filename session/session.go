package session

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	h2gis "github.com/h2gis/h2gis-go"
	"github.com/h2gis/h2gis-go/engine"
	"github.com/h2gis/h2gis-go/errors"
	_ "github.com/h2gis/h2gis-go/native" // installs the default library loader
	"github.com/h2gis/h2gis-go/resultbuf"
)

// DefaultBatchSize is the row count requested by FetchBatch when the
// caller passes a non-positive size.
const DefaultBatchSize = 1000

// Session is one reference on the shared worker engine.
type Session struct {
	eng      *engine.Engine
	track    *tracker
	released atomic.Bool
}

// Open acquires the shared engine and brings it to Running, loading the
// native library on first use. ctx bounds only the wait here: a
// cancelled Open releases its reference, but an initialization already
// in flight keeps going for the engine's own timeout.
func Open(ctx context.Context, opts ...Option) (*Session, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		engine.SetLogger(o.logger)
	}

	eng := engine.Acquire(o.cfg)
	s := &Session{eng: eng, track: newTracker()}

	errc := make(chan error, 1)
	go func() {
		errc <- eng.Run(func(h2gis.Runtime) error { return nil })
	}()

	select {
	case err := <-errc:
		if err != nil {
			eng.Release()
			return nil, err
		}
	case <-ctx.Done():
		// Dropping the reference may shut the engine down, which joins
		// the worker; do it off the caller's goroutine so a cancelled
		// Open returns promptly.
		go eng.Release()
		return nil, ctx.Err()
	}
	return s, nil
}

func (s *Session) guard() error {
	if s.released.Load() {
		return errors.NotInitialized("session")
	}
	return nil
}

func lastError(rt h2gis.Runtime) string {
	msg, err := rt.LastError()
	if err != nil {
		return ""
	}
	return msg
}

// Connect opens a database. path is the H2 database path, user and
// password the credentials; a sentinel return from the runtime becomes
// an error carrying the runtime's own message.
func (s *Session) Connect(path, user, password string) (h2gis.Conn, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	h, err := engine.Do(s.eng, func(rt h2gis.Runtime) (int64, error) {
		h, err := rt.Connect(path, user, password)
		if err != nil {
			return 0, err
		}
		if h <= 0 {
			return 0, errors.RuntimeFailure("h2gis_connect", lastError(rt))
		}
		return h, nil
	})
	if err != nil {
		return 0, err
	}
	conn := h2gis.Conn(h)
	s.track.addConn(conn)
	return conn, nil
}

// Load initializes the H2GIS spatial extension on the connection.
func (s *Session) Load(conn h2gis.Conn) error {
	if err := s.guard(); err != nil {
		return err
	}
	if !conn.Valid() {
		return errors.InvalidHandle("connection", int64(conn))
	}
	return s.eng.Run(func(rt h2gis.Runtime) error {
		rc, err := rt.Load(int64(conn))
		if err != nil {
			return err
		}
		if rc < 0 {
			return errors.RuntimeFailure("h2gis_load", lastError(rt))
		}
		return nil
	})
}

// Execute runs sql directly and returns the update count.
func (s *Session) Execute(conn h2gis.Conn, sql string) (int, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	if !conn.Valid() {
		return 0, errors.InvalidHandle("connection", int64(conn))
	}
	rc, err := engine.Do(s.eng, func(rt h2gis.Runtime) (int32, error) {
		rc, err := rt.Execute(int64(conn), sql)
		if err != nil {
			return 0, err
		}
		if rc < 0 {
			return 0, errors.RuntimeFailure("h2gis_execute", lastError(rt))
		}
		return rc, nil
	})
	return int(rc), err
}

// Prepare compiles sql into a statement.
func (s *Session) Prepare(conn h2gis.Conn, sql string) (h2gis.Stmt, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	if !conn.Valid() {
		return 0, errors.InvalidHandle("connection", int64(conn))
	}
	h, err := engine.Do(s.eng, func(rt h2gis.Runtime) (int64, error) {
		h, err := rt.Prepare(int64(conn), sql)
		if err != nil {
			return 0, err
		}
		if h <= 0 {
			return 0, errors.RuntimeFailure("h2gis_prepare", lastError(rt))
		}
		return h, nil
	})
	if err != nil {
		return 0, err
	}
	stmt := h2gis.Stmt(h)
	s.track.addStmt(stmt)
	return stmt, nil
}

// Fetch runs sql and opens a result set on the connection.
func (s *Session) Fetch(conn h2gis.Conn, sql string) (h2gis.ResultSet, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	if !conn.Valid() {
		return 0, errors.InvalidHandle("connection", int64(conn))
	}
	h, err := engine.Do(s.eng, func(rt h2gis.Runtime) (int64, error) {
		h, err := rt.Fetch(int64(conn), sql)
		if err != nil {
			return 0, err
		}
		if h <= 0 {
			return 0, errors.RuntimeFailure("h2gis_fetch", lastError(rt))
		}
		return h, nil
	})
	if err != nil {
		return 0, err
	}
	rs := h2gis.ResultSet(h)
	s.track.addResult(rs)
	return rs, nil
}

func (s *Session) bind(stmt h2gis.Stmt, fn func(rt h2gis.Runtime) error) error {
	if err := s.guard(); err != nil {
		return err
	}
	if !stmt.Valid() {
		return errors.InvalidHandle("statement", int64(stmt))
	}
	return s.eng.Run(fn)
}

// BindDouble binds a float64 to the 1-based parameter idx.
func (s *Session) BindDouble(stmt h2gis.Stmt, idx int, v float64) error {
	return s.bind(stmt, func(rt h2gis.Runtime) error {
		return rt.BindDouble(int64(stmt), int32(idx), v)
	})
}

// BindInt binds an int32 to the 1-based parameter idx.
func (s *Session) BindInt(stmt h2gis.Stmt, idx int, v int32) error {
	return s.bind(stmt, func(rt h2gis.Runtime) error {
		return rt.BindInt(int64(stmt), int32(idx), v)
	})
}

// BindLong binds an int64 to the 1-based parameter idx.
func (s *Session) BindLong(stmt h2gis.Stmt, idx int, v int64) error {
	return s.bind(stmt, func(rt h2gis.Runtime) error {
		return rt.BindLong(int64(stmt), int32(idx), v)
	})
}

// BindString binds a string to the 1-based parameter idx.
func (s *Session) BindString(stmt h2gis.Stmt, idx int, v string) error {
	return s.bind(stmt, func(rt h2gis.Runtime) error {
		return rt.BindString(int64(stmt), int32(idx), v)
	})
}

// BindBlob binds raw bytes (typically WKB) to the 1-based parameter idx.
func (s *Session) BindBlob(stmt h2gis.Stmt, idx int, data []byte) error {
	return s.bind(stmt, func(rt h2gis.Runtime) error {
		return rt.BindBlob(int64(stmt), int32(idx), data)
	})
}

// ExecutePrepared runs a prepared query and opens its result set.
func (s *Session) ExecutePrepared(stmt h2gis.Stmt) (h2gis.ResultSet, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	if !stmt.Valid() {
		return 0, errors.InvalidHandle("statement", int64(stmt))
	}
	h, err := engine.Do(s.eng, func(rt h2gis.Runtime) (int64, error) {
		h, err := rt.ExecutePrepared(int64(stmt))
		if err != nil {
			return 0, err
		}
		if h <= 0 {
			return 0, errors.RuntimeFailure("h2gis_execute_prepared", lastError(rt))
		}
		return h, nil
	})
	if err != nil {
		return 0, err
	}
	rs := h2gis.ResultSet(h)
	s.track.addResult(rs)
	return rs, nil
}

// ExecutePreparedUpdate runs a prepared DML statement and returns the
// update count.
func (s *Session) ExecutePreparedUpdate(stmt h2gis.Stmt) (int, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	if !stmt.Valid() {
		return 0, errors.InvalidHandle("statement", int64(stmt))
	}
	rc, err := engine.Do(s.eng, func(rt h2gis.Runtime) (int32, error) {
		rc, err := rt.ExecutePreparedUpdate(int64(stmt))
		if err != nil {
			return 0, err
		}
		if rc < 0 {
			return 0, errors.RuntimeFailure("h2gis_execute_prepared_update", lastError(rt))
		}
		return rc, nil
	})
	return int(rc), err
}

// fetchInto runs fetch on the worker, copies the runtime-owned buffer
// into Go memory, releases it, and decodes the copy. A zero-size buffer
// means end of data and yields (nil, nil).
func (s *Session) fetchInto(fetch func(rt h2gis.Runtime) (h2gis.RawBuffer, error)) (*resultbuf.Buffer, error) {
	data, err := engine.Do(s.eng, func(rt h2gis.Runtime) ([]byte, error) {
		raw, err := fetch(rt)
		if err != nil {
			return nil, err
		}
		if raw.Empty() {
			return nil, nil
		}
		out := append([]byte(nil), raw.Data...)
		if err := rt.FreeResultBuffer(raw); err != nil {
			engine.Logger().Debug("result buffer release failed", zap.Error(err))
		}
		return out, nil
	})
	if err != nil || data == nil {
		return nil, err
	}
	return resultbuf.Decode(data)
}

// FetchBatch returns the next batchSize rows, or nil when the result
// set is exhausted. Non-positive sizes use DefaultBatchSize.
func (s *Session) FetchBatch(rs h2gis.ResultSet, batchSize int) (*resultbuf.Buffer, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if !rs.Valid() {
		return nil, errors.InvalidHandle("result set", int64(rs))
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return s.fetchInto(func(rt h2gis.Runtime) (h2gis.RawBuffer, error) {
		return rt.FetchBatch(int64(rs), int32(batchSize))
	})
}

// FetchOne returns the next single row, or nil when exhausted.
func (s *Session) FetchOne(rs h2gis.ResultSet) (*resultbuf.Buffer, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if !rs.Valid() {
		return nil, errors.InvalidHandle("result set", int64(rs))
	}
	return s.fetchInto(func(rt h2gis.Runtime) (h2gis.RawBuffer, error) {
		return rt.FetchOne(int64(rs))
	})
}

// FetchAll returns every remaining row, or nil when exhausted.
func (s *Session) FetchAll(rs h2gis.ResultSet) (*resultbuf.Buffer, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if !rs.Valid() {
		return nil, errors.InvalidHandle("result set", int64(rs))
	}
	return s.fetchInto(func(rt h2gis.Runtime) (h2gis.RawBuffer, error) {
		return rt.FetchAll(int64(rs))
	})
}

// ColumnTypes returns the statement's schema as a zero-row buffer.
func (s *Session) ColumnTypes(stmt h2gis.Stmt) (*resultbuf.Buffer, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if !stmt.Valid() {
		return nil, errors.InvalidHandle("statement", int64(stmt))
	}
	return s.fetchInto(func(rt h2gis.Runtime) (h2gis.RawBuffer, error) {
		return rt.ColumnTypes(int64(stmt))
	})
}

// MetadataJSON returns the connection's table metadata as JSON.
func (s *Session) MetadataJSON(conn h2gis.Conn) (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}
	if !conn.Valid() {
		return "", errors.InvalidHandle("connection", int64(conn))
	}
	return engine.Do(s.eng, func(rt h2gis.Runtime) (string, error) {
		return rt.MetadataJSON(int64(conn))
	})
}

// LastError returns the runtime's pending error text.
func (s *Session) LastError() (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}
	return engine.Do(s.eng, func(rt h2gis.Runtime) (string, error) {
		return rt.LastError()
	})
}

// CloseQuery releases a prepared statement.
func (s *Session) CloseQuery(stmt h2gis.Stmt) error {
	if err := s.guard(); err != nil {
		return err
	}
	if !stmt.Valid() {
		return errors.InvalidHandle("statement", int64(stmt))
	}
	err := s.eng.Run(func(rt h2gis.Runtime) error {
		return rt.CloseQuery(int64(stmt))
	})
	if err == nil {
		s.track.dropStmt(stmt)
	}
	return err
}

// FreeResultSet releases a result set.
func (s *Session) FreeResultSet(rs h2gis.ResultSet) error {
	if err := s.guard(); err != nil {
		return err
	}
	if !rs.Valid() {
		return errors.InvalidHandle("result set", int64(rs))
	}
	err := s.eng.Run(func(rt h2gis.Runtime) error {
		_, err := rt.FreeResultSet(int64(rs))
		return err
	})
	if err == nil {
		s.track.dropResult(rs)
	}
	return err
}

// CloseConnection closes a database connection.
func (s *Session) CloseConnection(conn h2gis.Conn) error {
	if err := s.guard(); err != nil {
		return err
	}
	if !conn.Valid() {
		return errors.InvalidHandle("connection", int64(conn))
	}
	err := s.eng.Run(func(rt h2gis.Runtime) error {
		return rt.CloseConnection(int64(conn))
	})
	if err == nil {
		s.track.dropConn(conn)
	}
	return err
}

// DeleteDatabaseAndClose closes the connection and removes the
// database files from disk.
func (s *Session) DeleteDatabaseAndClose(conn h2gis.Conn) error {
	if err := s.guard(); err != nil {
		return err
	}
	if !conn.Valid() {
		return errors.InvalidHandle("connection", int64(conn))
	}
	err := s.eng.Run(func(rt h2gis.Runtime) error {
		return rt.DeleteDatabaseAndClose(int64(conn))
	})
	if err == nil {
		s.track.dropConn(conn)
	}
	return err
}

// Release closes everything still open through this session and drops
// its engine reference. The last release shuts the engine down.
// Release is idempotent; the session is unusable afterwards.
func (s *Session) Release() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}

	results, stmts, conns := s.track.drain()
	if len(results)+len(stmts)+len(conns) > 0 {
		engine.Logger().Debug("closing leaked handles",
			zap.Int("result_sets", len(results)),
			zap.Int("statements", len(stmts)),
			zap.Int("connections", len(conns)))

		// Best effort: the engine may already be shutting down.
		_ = s.eng.Run(func(rt h2gis.Runtime) error {
			for _, r := range results {
				if _, err := rt.FreeResultSet(int64(r)); err != nil {
					engine.Logger().Debug("free result set failed", zap.Error(err))
				}
			}
			for _, st := range stmts {
				if err := rt.CloseQuery(int64(st)); err != nil {
					engine.Logger().Debug("close query failed", zap.Error(err))
				}
			}
			for _, c := range conns {
				if err := rt.CloseConnection(int64(c)); err != nil {
					engine.Logger().Debug("close connection failed", zap.Error(err))
				}
			}
			return nil
		})
	}

	s.eng.Release()
}
