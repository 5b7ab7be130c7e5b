package server

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/chazu/stackvm/history"
	"github.com/chazu/stackvm/vm"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
// ---------------------------------------------------------------------------

// newTestWorker creates a worker over the standard instruction set.
func newTestWorker(t *testing.T) *VMWorker {
	t.Helper()
	reg := vm.NewRegistry()
	vm.RegisterStandard(reg)
	w := NewVMWorker(reg)
	t.Cleanup(w.Stop)
	return w
}

// newTestStore opens a history store in a temp directory.
func newTestStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// newTestServer starts a MachineServer on an httptest server and returns a
// client for it.
func newTestServer(t *testing.T, opts ...ServerOption) *Client {
	t.Helper()
	srv := New(opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	return NewClient(ts.Client(), ts.URL)
}

// newTestLSP creates an LspServer without a glsp transport.
func newTestLSP(t *testing.T) *LspServer {
	t.Helper()
	return &LspServer{
		worker: newTestWorker(t),
		docs:   make(map[string]string),
	}
}
