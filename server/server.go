package server

import (
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/chazu/stackvm/history"
	"github.com/chazu/stackvm/vm"
	"github.com/chazu/stackvm/wire"
)

// ServiceName is the fully-qualified name of the machine service.
const ServiceName = "stackvm.v1.MachineService"

// Procedure paths served by MachineServer.
const (
	RunProcedure          = "/" + ServiceName + "/Run"
	AssembleProcedure     = "/" + ServiceName + "/Assemble"
	InstructionsProcedure = "/" + ServiceName + "/Instructions"
	HistoryProcedure      = "/" + ServiceName + "/History"
)

// MachineServer serves the machine service over Connect with the CBOR
// codec. Runs are serialized on a single worker goroutine.
type MachineServer struct {
	worker  *VMWorker
	service *MachineService
	mux     *http.ServeMux
}

// ServerOption configures a MachineServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	history  *history.Store
	maxSteps int64
	timeout  time.Duration
	registry *vm.Registry
}

// WithHistory records every run in store and enables the History call.
func WithHistory(store *history.Store) ServerOption {
	return func(c *serverConfig) { c.history = store }
}

// WithMaxSteps caps the instructions any single run may execute.
func WithMaxSteps(n int64) ServerOption {
	return func(c *serverConfig) { c.maxSteps = n }
}

// WithTimeout bounds the wall-clock time of a single run.
func WithTimeout(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.timeout = d }
}

// WithRegistry serves reg instead of the standard instruction set.
func WithRegistry(reg *vm.Registry) ServerOption {
	return func(c *serverConfig) { c.registry = reg }
}

// New creates a MachineServer.
func New(opts ...ServerOption) *MachineServer {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.registry == nil {
		cfg.registry = vm.NewRegistry()
		vm.RegisterStandard(cfg.registry)
	}

	worker := NewVMWorker(cfg.registry)
	svc := NewMachineService(worker, cfg.history, cfg.maxSteps, cfg.timeout)

	s := &MachineServer{
		worker:  worker,
		service: svc,
		mux:     http.NewServeMux(),
	}

	codec := connect.WithCodec(wire.Codec{})
	s.mux.Handle(RunProcedure, connect.NewUnaryHandler(RunProcedure, svc.Run, codec))
	s.mux.Handle(AssembleProcedure, connect.NewUnaryHandler(AssembleProcedure, svc.Assemble, codec))
	s.mux.Handle(InstructionsProcedure, connect.NewUnaryHandler(InstructionsProcedure, svc.Instructions, codec))
	s.mux.Handle(HistoryProcedure, connect.NewUnaryHandler(HistoryProcedure, svc.History, codec))

	return s
}

// Handler returns the HTTP handler serving all procedures.
func (s *MachineServer) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *MachineServer) ListenAndServe(addr string) error {
	log.Noticef("stackvm server listening on %s", addr)
	log.Infof("  Connect (CBOR): http://%s%s", addr, RunProcedure)
	return http.ListenAndServe(addr, s.mux)
}

// Stop shuts down the server's worker.
func (s *MachineServer) Stop() {
	s.worker.Stop()
}
