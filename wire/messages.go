// Package wire defines the messages exchanged with a stackvm server and
// their CBOR encoding.
//
// Only program text crosses the wire. Assembled code is never serialized:
// opcode ids are meaningful only to the registry that produced them.
package wire

import "time"

// RunRequest asks the server to assemble and run a program.
type RunRequest struct {
	Program  string `cbor:"program"`
	Debug    bool   `cbor:"debug,omitempty"`
	MaxSteps int64  `cbor:"max_steps,omitempty"`
}

// RunResponse reports the outcome of a run. Fault is set when assembly or
// execution failed; Result is meaningful only when Fault is nil.
type RunResponse struct {
	RunID  string     `cbor:"run_id,omitempty"`
	Result int64      `cbor:"result"`
	Output string     `cbor:"output"`
	Trace  string     `cbor:"trace,omitempty"`
	Steps  int64      `cbor:"steps"`
	Fault  *FaultInfo `cbor:"fault,omitempty"`
}

// FaultInfo is the wire form of a vm fault or run abort.
type FaultInfo struct {
	Kind    string `cbor:"kind"`
	Message string `cbor:"message"`
	PC      int    `cbor:"pc"`
	Line    int    `cbor:"line,omitempty"`
}

// AssembleRequest asks the server to check a program without running it.
type AssembleRequest struct {
	Program string `cbor:"program"`
}

// AssembleResponse carries the disassembly of a valid program, or one
// diagnostic per faulty line.
type AssembleResponse struct {
	Valid        bool         `cbor:"valid"`
	Instructions int          `cbor:"instructions"`
	Listing      string       `cbor:"listing,omitempty"`
	Diagnostics  []Diagnostic `cbor:"diagnostics,omitempty"`
}

// Diagnostic points at one faulty source line.
type Diagnostic struct {
	Line    int    `cbor:"line"`
	Message string `cbor:"message"`
}

// InstructionsRequest lists the server's instruction set.
type InstructionsRequest struct{}

// InstructionsResponse holds the instruction set in opcode order.
type InstructionsResponse struct {
	Instructions []InstructionInfo `cbor:"instructions"`
}

// InstructionInfo describes one registered instruction.
type InstructionInfo struct {
	ID   int    `cbor:"id"`
	Name string `cbor:"name"`
	Doc  string `cbor:"doc,omitempty"`
}

// HistoryRequest asks for the most recent runs.
type HistoryRequest struct {
	Limit int `cbor:"limit,omitempty"`
}

// HistoryResponse lists recorded runs, newest first.
type HistoryResponse struct {
	Runs []RunSummary `cbor:"runs"`
}

// RunSummary is one recorded run.
type RunSummary struct {
	ID          string    `cbor:"id"`
	CreatedAt   time.Time `cbor:"created_at"`
	ProgramHash string    `cbor:"program_hash"`
	Result      int64     `cbor:"result"`
	Output      string    `cbor:"output"`
	FaultKind   string    `cbor:"fault_kind,omitempty"`
	Steps       int64     `cbor:"steps"`
}
