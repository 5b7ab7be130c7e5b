package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// run assembles and runs program on a fresh standard machine.
func run(t *testing.T, program string) (*State, Value, string, error) {
	t.Helper()
	s := New(false)
	s.Stdout = &bytes.Buffer{}
	code, err := Assemble(s.Registry, program)
	if err != nil {
		t.Fatalf("Assemble(%q) failed: %v", program, err)
	}
	top, out, err := Run(s, code)
	return s, top, out, err
}

// ---------------------------------------------------------------------------
// Factory
// ---------------------------------------------------------------------------

func TestNewRegistersStandardSetInOrder(t *testing.T) {
	s := New(true)
	if !s.Debug {
		t.Error("Debug flag not carried into state")
	}
	if s.PC != 0 || s.Len() != 0 || s.Output() != "" {
		t.Errorf("fresh state not empty: pc=%d depth=%d out=%q", s.PC, s.Len(), s.Output())
	}

	want := []string{
		"PRINT", "LOAD_CONST", "EXIT", "POP", "ADD", "DIV", "EQ", "NEQ",
		"DUP", "JMP", "JMPZ", "WRITE", "WRITE_CHAR",
	}
	if s.Registry.Len() != len(want) {
		t.Fatalf("registry has %d entries, want %d", s.Registry.Len(), len(want))
	}
	for i, name := range want {
		id, ok := s.Registry.Lookup(name)
		if !ok {
			t.Errorf("%s not registered", name)
			continue
		}
		if id != OpID(i) {
			t.Errorf("%s id = %d, want %d", name, id, i)
		}
		if s.Registry.Doc(name) == "" {
			t.Errorf("%s has no description", name)
		}
	}

	infos := StandardInstructions()
	for i, info := range infos {
		if info.Name != want[i] {
			t.Errorf("StandardInstructions()[%d] = %s, want %s", i, info.Name, want[i])
		}
	}
}

// ---------------------------------------------------------------------------
// Standard instruction set
// ---------------------------------------------------------------------------

func TestAddProgram(t *testing.T) {
	_, top, _, err := run(t, "LOAD_CONST 1\nLOAD_CONST 2\nADD\nEXIT")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if top != 3 {
		t.Errorf("top = %d, want 3", top)
	}
}

func TestInstructionResults(t *testing.T) {
	tests := []struct {
		name    string
		program string
		top     Value
		out     string
		depth   int
	}{
		{"div order", "LOAD_CONST 10\nLOAD_CONST 2\nDIV\nEXIT", 5, "", 1},
		{"div truncates", "LOAD_CONST -7\nLOAD_CONST 2\nDIV\nEXIT", -3, "", 1},
		{"eq true", "LOAD_CONST 4\nLOAD_CONST 4\nEQ\nEXIT", 1, "", 1},
		{"eq false", "LOAD_CONST 3\nLOAD_CONST 4\nEQ\nEXIT", 0, "", 1},
		{"neq true", "LOAD_CONST 3\nLOAD_CONST 4\nNEQ\nEXIT", 1, "", 1},
		{"neq false", "LOAD_CONST 4\nLOAD_CONST 4\nNEQ\nEXIT", 0, "", 1},
		{"dup", "LOAD_CONST 9\nDUP\nADD\nEXIT", 18, "", 1},
		{"pop", "LOAD_CONST 1\nLOAD_CONST 2\nPOP\nEXIT", 1, "", 1},
		{"negative const", "LOAD_CONST -42\nEXIT", -42, "", 1},
		{"default arg", "LOAD_CONST\nEXIT", 0, "", 1},
		{"write", "LOAD_CONST -12\nWRITE\nEXIT", -12, "-12", 1},
		{"write char", "LOAD_CONST 72\nWRITE_CHAR\nLOAD_CONST 105\nWRITE_CHAR\nEXIT", 105, "Hi", 2},
		{"eq then write", "LOAD_CONST 3\nLOAD_CONST 4\nEQ\nWRITE\nEXIT", 0, "0", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, top, out, err := run(t, tt.program)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if top != tt.top {
				t.Errorf("top = %d, want %d", top, tt.top)
			}
			if out != tt.out {
				t.Errorf("output = %q, want %q", out, tt.out)
			}
			if s.Len() != tt.depth {
				t.Errorf("stack depth = %d, want %d", s.Len(), tt.depth)
			}
		})
	}
}

func TestWriteIsNonDestructive(t *testing.T) {
	s, top, out, err := run(t, "LOAD_CONST 1\nLOAD_CONST 7\nWRITE\nPOP\nEXIT")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out != "7" {
		t.Errorf("output = %q, want %q", out, "7")
	}
	if top != 1 || s.Len() != 1 {
		t.Errorf("top=%d depth=%d, want top=1 depth=1", top, s.Len())
	}
}

func TestPrintWritesToStdout(t *testing.T) {
	s := New(false)
	var buf bytes.Buffer
	s.Stdout = &buf

	code, err := Assemble(s.Registry, "LOAD_CONST 5\nPRINT\nPRINT\nEXIT")
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	top, out, err := Run(s, code)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if buf.String() != "5\n5\n" {
		t.Errorf("stdout = %q, want %q", buf.String(), "5\n5\n")
	}
	if out != "" {
		t.Errorf("PRINT leaked into output buffer: %q", out)
	}
	if top != 5 {
		t.Errorf("top = %d, want 5", top)
	}
}

// ---------------------------------------------------------------------------
// Faults
// ---------------------------------------------------------------------------

func TestDivByZero(t *testing.T) {
	s, _, _, err := run(t, "LOAD_CONST 0\nLOAD_CONST 5\nDIV\nEXIT")
	if err != nil {
		t.Fatalf("5/0 should not fault (divisor is the top), got %v", err)
	}

	s, _, _, err = run(t, "LOAD_CONST 5\nLOAD_CONST 0\nDIV\nEXIT")
	if !errors.Is(err, DivByZero) {
		t.Fatalf("err = %v, want DivByZero", err)
	}
	if s.Len() != 2 {
		t.Errorf("operands popped on fault: depth = %d, want 2", s.Len())
	}
}

func TestStackFaults(t *testing.T) {
	programs := map[string]string{
		"POP":        "POP\nEXIT",
		"PRINT":      "PRINT\nEXIT",
		"EXIT":       "EXIT",
		"ADD":        "LOAD_CONST 1\nADD\nEXIT",
		"DIV":        "LOAD_CONST 1\nDIV\nEXIT",
		"EQ":         "EQ\nEXIT",
		"NEQ":        "LOAD_CONST 1\nNEQ\nEXIT",
		"DUP":        "DUP\nEXIT",
		"JMPZ":       "JMPZ 0\nEXIT",
		"WRITE":      "WRITE\nEXIT",
		"WRITE_CHAR": "WRITE_CHAR\nEXIT",
	}

	for op, program := range programs {
		t.Run(op, func(t *testing.T) {
			_, _, _, err := run(t, program)
			if !errors.Is(err, VmStackFail) {
				t.Fatalf("err = %v, want VmStackFail", err)
			}
			var f *Fault
			if !errors.As(err, &f) {
				t.Fatalf("err is %T, want *Fault", err)
			}
			if f.Op != op {
				t.Errorf("fault op = %q, want %q", f.Op, op)
			}
			if !strings.Contains(err.Error(), "pc=") {
				t.Errorf("fault message lacks pc: %v", err)
			}
		})
	}
}

func TestPopEmptyReportsPC(t *testing.T) {
	_, _, _, err := run(t, "LOAD_CONST 1\nPOP\nPOP\nEXIT")
	var f *Fault
	if !errors.As(err, &f) || f.Kind != VmStackFail {
		t.Fatalf("err = %v, want VmStackFail", err)
	}
	// pc has already advanced past the failing POP at index 2
	if f.PC != 3 {
		t.Errorf("fault pc = %d, want 3", f.PC)
	}
}

func TestRunOffTheEnd(t *testing.T) {
	_, _, out, err := run(t, "LOAD_CONST 1\nWRITE")
	if !errors.Is(err, VmSegfault) {
		t.Fatalf("err = %v, want VmSegfault", err)
	}
	if out != "1" {
		t.Errorf("output before fault = %q, want %q", out, "1")
	}
	var f *Fault
	errors.As(err, &f)
	if f.PC != 2 {
		t.Errorf("fault pc = %d, want 2", f.PC)
	}
	if !strings.Contains(f.Msg, "code size = 2") {
		t.Errorf("fault message = %q, want code size", f.Msg)
	}
}

func TestJumpOutOfRange(t *testing.T) {
	for _, program := range []string{"JMP 99", "JMP -1"} {
		_, _, _, err := run(t, program)
		if !errors.Is(err, VmSegfault) {
			t.Errorf("%q: err = %v, want VmSegfault", program, err)
		}
	}
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func TestJmpIsAbsolute(t *testing.T) {
	// 0: JMP 3, 1-2 skipped, 3: LOAD_CONST 7, 4: EXIT
	program := "JMP 3\nLOAD_CONST 1\nEXIT\nLOAD_CONST 7\nEXIT"
	_, top, _, err := run(t, program)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if top != 7 {
		t.Errorf("top = %d, want 7", top)
	}
}

func TestJmpBackward(t *testing.T) {
	// Jump from index 4 back to index 2, which is the exact next instruction.
	program := "LOAD_CONST 0\nJMP 4\nLOAD_CONST 9\nEXIT\nJMP 2"
	s, top, _, err := run(t, program)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if top != 9 {
		t.Errorf("top = %d, want 9", top)
	}
	if s.Steps != 5 {
		t.Errorf("steps = %d, want 5", s.Steps)
	}
}

func TestJmpzLoop(t *testing.T) {
	// Count down from 3, writing each value: output "321".
	program := strings.Join([]string{
		"LOAD_CONST 3",  // 0
		"WRITE",         // 1
		"LOAD_CONST -1", // 2
		"ADD",           // 3
		"DUP",           // 4
		"JMPZ 7",        // 5
		"JMP 1",         // 6
		"EXIT",          // 7
	}, "\n")
	_, top, out, err := run(t, program)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out != "321" {
		t.Errorf("output = %q, want %q", out, "321")
	}
	if top != 0 {
		t.Errorf("top = %d, want 0", top)
	}
}

func TestJmpzNotTaken(t *testing.T) {
	_, top, _, err := run(t, "LOAD_CONST 8\nLOAD_CONST 1\nJMPZ 0\nEXIT")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if top != 8 {
		t.Errorf("top = %d, want 8", top)
	}
}
