package session

import (
	"sync"

	h2gis "github.com/h2gis/h2gis-go"
)

// tracker records the handles a session has opened so Release can
// close whatever the caller leaked. Handle 0 is never tracked.
type tracker struct {
	mu      sync.Mutex
	conns   map[h2gis.Conn]struct{}
	stmts   map[h2gis.Stmt]struct{}
	results map[h2gis.ResultSet]struct{}
	closed  bool
}

func newTracker() *tracker {
	return &tracker{
		conns:   make(map[h2gis.Conn]struct{}),
		stmts:   make(map[h2gis.Stmt]struct{}),
		results: make(map[h2gis.ResultSet]struct{}),
	}
}

func (t *tracker) addConn(c h2gis.Conn) {
	t.mu.Lock()
	if !t.closed {
		t.conns[c] = struct{}{}
	}
	t.mu.Unlock()
}

func (t *tracker) addStmt(s h2gis.Stmt) {
	t.mu.Lock()
	if !t.closed {
		t.stmts[s] = struct{}{}
	}
	t.mu.Unlock()
}

func (t *tracker) addResult(r h2gis.ResultSet) {
	t.mu.Lock()
	if !t.closed {
		t.results[r] = struct{}{}
	}
	t.mu.Unlock()
}

func (t *tracker) dropConn(c h2gis.Conn) {
	t.mu.Lock()
	delete(t.conns, c)
	t.mu.Unlock()
}

func (t *tracker) dropStmt(s h2gis.Stmt) {
	t.mu.Lock()
	delete(t.stmts, s)
	t.mu.Unlock()
}

func (t *tracker) dropResult(r h2gis.ResultSet) {
	t.mu.Lock()
	delete(t.results, r)
	t.mu.Unlock()
}

// drain returns every live handle once and stops accepting new ones.
// Result sets and statements come before connections so cleanup can
// close them in dependency order.
func (t *tracker) drain() (results []h2gis.ResultSet, stmts []h2gis.Stmt, conns []h2gis.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	for r := range t.results {
		results = append(results, r)
	}
	for s := range t.stmts {
		stmts = append(stmts, s)
	}
	for c := range t.conns {
		conns = append(conns, c)
	}
	t.results = map[h2gis.ResultSet]struct{}{}
	t.stmts = map[h2gis.Stmt]struct{}{}
	t.conns = map[h2gis.Conn]struct{}{}
	return results, stmts, conns
}

// live reports how many handles the tracker currently holds.
func (t *tracker) live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns) + len(t.stmts) + len(t.results)
}
