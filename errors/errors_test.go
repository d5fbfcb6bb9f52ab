package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	err := New(PhaseDecode, KindOutOfBounds).
		Path("column", "name").
		Detail("need %d bytes", 4).
		Build()

	msg := err.Error()
	if !strings.Contains(msg, "[decode]") {
		t.Errorf("missing phase in %q", msg)
	}
	if !strings.Contains(msg, "out_of_bounds") {
		t.Errorf("missing kind in %q", msg)
	}
	if !strings.Contains(msg, "column.name") {
		t.Errorf("missing path in %q", msg)
	}
	if !strings.Contains(msg, "need 4 bytes") {
		t.Errorf("missing detail in %q", msg)
	}
}

func TestErrorIs(t *testing.T) {
	err := MissingSymbol("h2gis_connect")

	if !stderrors.Is(err, &Error{Phase: PhaseLoad, Kind: KindMissingSymbol}) {
		t.Error("expected match on phase+kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseLoad, Kind: KindLibraryNotFound}) {
		t.Error("unexpected match on different kind")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := TaskFailed(cause)

	if !stderrors.Is(err, cause) {
		t.Error("expected cause to unwrap")
	}
	if !strings.Contains(err.Error(), "caused by: boom") {
		t.Errorf("missing cause in %q", err.Error())
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cases := []struct {
		err   *Error
		phase Phase
		kind  Kind
	}{
		{LoadFailure("/usr/lib/libh2gis.so", stderrors.New("no such file")), PhaseLoad, KindLibraryNotFound},
		{BootstrapFailure(3), PhaseBootstrap, KindBootstrapFailed},
		{InitTimeout("worker did not become ready"), PhaseDispatch, KindInitTimeout},
		{InvalidHandle("connection", 0), PhaseRuntime, KindInvalidHandle},
		{NotSupported("h2gis_get_metadata_json"), PhaseRuntime, KindNotSupported},
		{RuntimeFailure("h2gis_connect", "database locked"), PhaseRuntime, KindRuntimeFailure},
		{ShuttingDown(), PhaseDispatch, KindShuttingDown},
	}

	for _, c := range cases {
		if c.err.Phase != c.phase || c.err.Kind != c.kind {
			t.Errorf("%v: got %s/%s, want %s/%s", c.err, c.err.Phase, c.err.Kind, c.phase, c.kind)
		}
	}
}
