package vm

import (
	"errors"
	"fmt"
	"strings"
)

// FaultKind classifies an unrecoverable assemble or run error.
// It implements error so callers can match with errors.Is:
//
//	if errors.Is(err, vm.DivByZero) { ... }
type FaultKind int

const (
	// InvalidInstruction: a program line cannot be mapped to (opcode, argument).
	InvalidInstruction FaultKind = iota + 1
	// VmSegfault: the program counter left the code without halting.
	VmSegfault
	// VmStackFail: an instruction needed operands the stack does not have.
	VmStackFail
	// DivByZero: DIV with a zero divisor.
	DivByZero
)

var faultKindNames = map[FaultKind]string{
	InvalidInstruction: "invalid_instruction",
	VmSegfault:         "vm_segfault",
	VmStackFail:        "vm_stackfail",
	DivByZero:          "div_by_zero",
}

func (k FaultKind) String() string {
	if name, ok := faultKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("fault(%d)", int(k))
}

func (k FaultKind) Error() string {
	return k.String()
}

// ParseFaultKind is the inverse of FaultKind.String.
func ParseFaultKind(s string) (FaultKind, bool) {
	for k, name := range faultKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// ErrStepLimit aborts a run that exceeded State.MaxSteps. It is not a Fault.
var ErrStepLimit = errors.New("step limit exceeded")

// Fault is the error raised at the point a fault is detected. It carries
// enough context to point at the failing instruction or source line.
type Fault struct {
	Kind FaultKind
	Msg  string
	Op   string // instruction name, if known
	PC   int    // program counter at detection; -1 for assembler faults
	Line int    // 1-based source line for assembler faults; 0 otherwise
	Err  error  // underlying cause, if any
}

func (f *Fault) Error() string {
	var b strings.Builder
	b.WriteString(f.Kind.String())
	b.WriteString(": ")
	b.WriteString(f.Msg)
	if f.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", f.Line)
	}
	if f.PC >= 0 {
		fmt.Fprintf(&b, " pc=%d", f.PC)
	}
	if f.Err != nil {
		fmt.Fprintf(&b, ": %v", f.Err)
	}
	return b.String()
}

// Is matches the fault against its kind.
func (f *Fault) Is(target error) bool {
	k, ok := target.(FaultKind)
	return ok && k == f.Kind
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// KindOf returns the FaultKind carried by err, if any.
func KindOf(err error) (FaultKind, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return 0, false
}

func stackFail(s *State, op, what string) *Fault {
	return &Fault{
		Kind: VmStackFail,
		Msg:  what,
		Op:   op,
		PC:   s.PC,
	}
}

func asmFault(line int, msg string, err error) *Fault {
	return &Fault{
		Kind: InvalidInstruction,
		Msg:  msg,
		PC:   -1,
		Line: line,
		Err:  err,
	}
}
