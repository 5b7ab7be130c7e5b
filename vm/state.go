package vm

import (
	"io"
	"os"
	"strings"
)

// State is the mutable machine: program counter, value stack, output
// accumulator and the registry that gives opcode ids their meaning.
//
// A State is created once per machine, mutated only by the engine loop and
// by instruction actions, and discarded after a run completes or faults.
// After a fault it is left as it was at the fault point and must not be
// resumed.
type State struct {
	// PC is the index of the next instruction to execute. Jump actions set
	// it to an absolute index.
	PC int

	// Stack is the value stack; the last element is the top.
	Stack []Value

	// Debug enables the disassembly listing and per-step trace.
	Debug bool

	// Registry resolves opcode ids for dispatch and tracing. Actions may
	// register new instructions through it mid-run.
	Registry *Registry

	// Stdout receives PRINT output and the debug listing.
	Stdout io.Writer

	// MaxSteps bounds the number of executed instructions. Zero means no
	// limit.
	MaxSteps int64

	// Steps counts instructions dispatched so far.
	Steps int64

	out     strings.Builder
	entered bool
}

// NewState creates a fresh machine state bound to reg.
func NewState(reg *Registry, debug bool) *State {
	return &State{
		Stack:    make([]Value, 0, 64),
		Debug:    debug,
		Registry: reg,
		Stdout:   os.Stdout,
	}
}

// Register adds an instruction to the state's registry.
func (s *State) Register(name string, action Action) OpID {
	return s.Registry.Register(name, action)
}

// Push pushes v onto the stack.
func (s *State) Push(v Value) {
	s.Stack = append(s.Stack, v)
}

// Pop removes and returns the top of stack.
func (s *State) Pop() (Value, bool) {
	n := len(s.Stack)
	if n == 0 {
		return 0, false
	}
	v := s.Stack[n-1]
	s.Stack = s.Stack[:n-1]
	return v, true
}

// Peek returns the top of stack without removing it.
func (s *State) Peek() (Value, bool) {
	n := len(s.Stack)
	if n == 0 {
		return 0, false
	}
	return s.Stack[n-1], true
}

// Len returns the stack depth.
func (s *State) Len() int {
	return len(s.Stack)
}

// Write appends text to the output accumulator.
func (s *State) Write(text string) {
	s.out.WriteString(text)
}

// WriteRune appends a single character to the output accumulator.
func (s *State) WriteRune(r rune) {
	s.out.WriteRune(r)
}

// Output returns everything written so far.
func (s *State) Output() string {
	return s.out.String()
}

func (s *State) stdout() io.Writer {
	if s.Stdout == nil {
		return io.Discard
	}
	return s.Stdout
}
