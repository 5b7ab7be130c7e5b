package server

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/stackvm/history"
	"github.com/chazu/stackvm/vm"
	"github.com/chazu/stackvm/wire"
)

const defaultHistoryLimit = 20

var log = commonlog.GetLogger("stackvm.server")

// MachineService implements the stackvm.v1.MachineService handlers.
type MachineService struct {
	worker   *VMWorker
	history  *history.Store
	maxSteps int64
	timeout  time.Duration
}

// NewMachineService creates a MachineService. store may be nil, which
// disables run recording and the History call.
func NewMachineService(worker *VMWorker, store *history.Store, maxSteps int64, timeout time.Duration) *MachineService {
	return &MachineService{
		worker:   worker,
		history:  store,
		maxSteps: maxSteps,
		timeout:  timeout,
	}
}

// Run assembles and executes a program on a fresh machine.
func (s *MachineService) Run(
	ctx context.Context,
	req *connect.Request[wire.RunRequest],
) (*connect.Response[wire.RunResponse], error) {
	program := req.Msg.Program
	if program == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("program is required"))
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	steps := s.stepLimit(req.Msg.MaxSteps)
	result, err := s.worker.Do(func(reg *vm.Registry) interface{} {
		return execute(ctx, reg, program, req.Msg.Debug, steps)
	})
	if err != nil {
		return connect.NewResponse(&wire.RunResponse{
			Fault: &wire.FaultInfo{Kind: wire.KindInternal, Message: err.Error(), PC: -1},
		}), nil
	}

	resp := result.(*wire.RunResponse)
	if s.history != nil {
		resp.RunID = s.record(context.WithoutCancel(ctx), program, resp)
	}
	log.Debugf("run %s finished after %d steps", resp.RunID, resp.Steps)
	return connect.NewResponse(resp), nil
}

// stepLimit picks the tighter of the requested and configured limits.
func (s *MachineService) stepLimit(requested int64) int64 {
	switch {
	case requested <= 0:
		return s.maxSteps
	case s.maxSteps <= 0 || requested < s.maxSteps:
		return requested
	default:
		return s.maxSteps
	}
}

func (s *MachineService) record(ctx context.Context, program string, resp *wire.RunResponse) string {
	run := history.Run{
		Program: program,
		Result:  resp.Result,
		Output:  resp.Output,
		Steps:   resp.Steps,
	}
	if resp.Fault != nil {
		run.FaultKind = resp.Fault.Kind
		run.FaultMessage = resp.Fault.Message
	}
	id, err := s.history.Record(ctx, run)
	if err != nil {
		log.Warningf("could not record run: %s", err)
		return ""
	}
	return id
}

// execute runs on the worker goroutine.
func execute(ctx context.Context, reg *vm.Registry, program string, debug bool, maxSteps int64) *wire.RunResponse {
	code, err := vm.Assemble(reg, program)
	if err != nil {
		return &wire.RunResponse{Fault: wire.FaultInfoFrom(err)}
	}

	var trace bytes.Buffer
	st := vm.NewState(reg, debug)
	st.Stdout = &trace
	st.MaxSteps = maxSteps

	result, output, err := vm.RunContext(ctx, st, code)
	resp := &wire.RunResponse{
		Output: output,
		Trace:  trace.String(),
		Steps:  st.Steps,
		Fault:  wire.FaultInfoFrom(err),
	}
	if err == nil {
		resp.Result = result
	} else {
		log.Debugf("run faulted: %s", err)
	}
	return resp
}

// Assemble checks a program and returns its disassembly.
func (s *MachineService) Assemble(
	ctx context.Context,
	req *connect.Request[wire.AssembleRequest],
) (*connect.Response[wire.AssembleResponse], error) {
	program := req.Msg.Program
	result, err := s.worker.Do(func(reg *vm.Registry) interface{} {
		if errs := vm.Validate(reg, program); len(errs) > 0 {
			return &wire.AssembleResponse{Diagnostics: wire.DiagnosticsFrom(errs)}
		}
		code, err := vm.Assemble(reg, program)
		if err != nil {
			return &wire.AssembleResponse{Diagnostics: wire.DiagnosticsFrom([]error{err})}
		}
		return &wire.AssembleResponse{
			Valid:        true,
			Instructions: len(code),
			Listing:      vm.Disassemble(reg, code),
		}
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(result.(*wire.AssembleResponse)), nil
}

// Instructions lists the registered instruction set in opcode order.
func (s *MachineService) Instructions(
	ctx context.Context,
	req *connect.Request[wire.InstructionsRequest],
) (*connect.Response[wire.InstructionsResponse], error) {
	result, err := s.worker.Do(func(reg *vm.Registry) interface{} {
		return instructionInfos(reg)
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&wire.InstructionsResponse{
		Instructions: result.([]wire.InstructionInfo),
	}), nil
}

func instructionInfos(reg *vm.Registry) []wire.InstructionInfo {
	infos := make([]wire.InstructionInfo, 0, reg.Len())
	for id := 0; id < reg.Len(); id++ {
		name, ok := reg.Name(vm.OpID(id))
		if !ok {
			continue
		}
		infos = append(infos, wire.InstructionInfo{ID: id, Name: name, Doc: reg.Doc(name)})
	}
	return infos
}

// History returns the most recent recorded runs.
func (s *MachineService) History(
	ctx context.Context,
	req *connect.Request[wire.HistoryRequest],
) (*connect.Response[wire.HistoryResponse], error) {
	if s.history == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, fmt.Errorf("run history is disabled"))
	}

	limit := req.Msg.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	runs, err := s.history.Recent(ctx, limit)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	resp := &wire.HistoryResponse{Runs: make([]wire.RunSummary, 0, len(runs))}
	for _, r := range runs {
		resp.Runs = append(resp.Runs, wire.RunSummary{
			ID:          r.ID,
			CreatedAt:   r.CreatedAt,
			ProgramHash: r.ProgramHash,
			Result:      r.Result,
			Output:      r.Output,
			FaultKind:   r.FaultKind,
			Steps:       r.Steps,
		})
	}
	return connect.NewResponse(resp), nil
}
