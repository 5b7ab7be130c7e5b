package vm

import "fmt"

// InstructionInfo describes one standard instruction.
type InstructionInfo struct {
	Name string
	Doc  string
}

// standardSet is the standard instruction table, in registration order.
// Opcode ids follow this order starting at 0.
var standardSet = []struct {
	InstructionInfo
	action ActionFunc
}{
	{InstructionInfo{"PRINT", "print top of stack to stdout (non-destructive)"}, opPrint},
	{InstructionInfo{"LOAD_CONST", "push the argument"}, opLoadConst},
	{InstructionInfo{"EXIT", "halt; the top of stack is the result"}, opExit},
	{InstructionInfo{"POP", "discard top of stack"}, opPop},
	{InstructionInfo{"ADD", "pop a, pop b, push a+b"}, opAdd},
	{InstructionInfo{"DIV", "pop a, pop b, push b/a; a == 0 faults"}, opDiv},
	{InstructionInfo{"EQ", "pop a, pop b, push 1 if a == b else 0"}, opEq},
	{InstructionInfo{"NEQ", "pop a, pop b, push 0 if a == b else 1"}, opNeq},
	{InstructionInfo{"DUP", "push a copy of top of stack"}, opDup},
	{InstructionInfo{"JMP", "jump to the absolute index given as argument"}, opJmp},
	{InstructionInfo{"JMPZ", "pop a; jump to the argument index if a == 0"}, opJmpz},
	{InstructionInfo{"WRITE", "append top of stack in decimal to output (non-destructive)"}, opWrite},
	{InstructionInfo{"WRITE_CHAR", "append top of stack as a character code to output (non-destructive)"}, opWriteChar},
}

// New creates a machine with the standard instruction set registered.
func New(debug bool) *State {
	reg := NewRegistry()
	RegisterStandard(reg)
	return NewState(reg, debug)
}

// RegisterStandard registers the standard instruction set into reg.
func RegisterStandard(reg *Registry) {
	for _, op := range standardSet {
		reg.Register(op.Name, op.action)
		reg.Describe(op.Name, op.Doc)
	}
}

// StandardInstructions lists the standard set in opcode order.
func StandardInstructions() []InstructionInfo {
	infos := make([]InstructionInfo, len(standardSet))
	for i, op := range standardSet {
		infos[i] = op.InstructionInfo
	}
	return infos
}

// ---------------------------------------------------------------------------
// Standard instructions
// ---------------------------------------------------------------------------

func opPrint(s *State, _ Value) (bool, error) {
	v, ok := s.Peek()
	if !ok {
		return false, stackFail(s, "PRINT", "no return value when printing")
	}
	fmt.Fprintln(s.stdout(), v)
	return true, nil
}

func opLoadConst(s *State, arg Value) (bool, error) {
	s.Push(arg)
	return true, nil
}

func opExit(s *State, _ Value) (bool, error) {
	if s.Len() == 0 {
		return false, stackFail(s, "EXIT", "no return value when exiting")
	}
	return false, nil
}

func opPop(s *State, _ Value) (bool, error) {
	if _, ok := s.Pop(); !ok {
		return false, stackFail(s, "POP", "not enough stack when popping")
	}
	return true, nil
}

// pop2 pops the top (a) and the value beneath it (b).
func pop2(s *State, op, what string) (a, b Value, err error) {
	if s.Len() < 2 {
		return 0, 0, stackFail(s, op, what)
	}
	a, _ = s.Pop()
	b, _ = s.Pop()
	return a, b, nil
}

func opAdd(s *State, _ Value) (bool, error) {
	a, b, err := pop2(s, "ADD", "not enough stack when adding")
	if err != nil {
		return false, err
	}
	s.Push(a + b)
	return true, nil
}

func opDiv(s *State, _ Value) (bool, error) {
	if s.Len() < 2 {
		return false, stackFail(s, "DIV", "not enough stack when dividing")
	}
	// Check before popping so the operands stay put on fault
	if a, _ := s.Peek(); a == 0 {
		return false, &Fault{Kind: DivByZero, Msg: "div by zero", Op: "DIV", PC: s.PC}
	}
	a, _ := s.Pop()
	b, _ := s.Pop()
	s.Push(b / a)
	return true, nil
}

func opEq(s *State, _ Value) (bool, error) {
	a, b, err := pop2(s, "EQ", "not enough stack when comparing")
	if err != nil {
		return false, err
	}
	s.Push(boolValue(a == b))
	return true, nil
}

func opNeq(s *State, _ Value) (bool, error) {
	a, b, err := pop2(s, "NEQ", "not enough stack when comparing")
	if err != nil {
		return false, err
	}
	s.Push(boolValue(a != b))
	return true, nil
}

func opDup(s *State, _ Value) (bool, error) {
	v, ok := s.Peek()
	if !ok {
		return false, stackFail(s, "DUP", "not enough value when duplicating")
	}
	s.Push(v)
	return true, nil
}

func opJmp(s *State, addr Value) (bool, error) {
	s.PC = int(addr)
	return true, nil
}

func opJmpz(s *State, addr Value) (bool, error) {
	v, ok := s.Pop()
	if !ok {
		return false, stackFail(s, "JMPZ", "not enough stack when consuming")
	}
	if v == 0 {
		s.PC = int(addr)
	}
	return true, nil
}

func opWrite(s *State, _ Value) (bool, error) {
	v, ok := s.Peek()
	if !ok {
		return false, stackFail(s, "WRITE", "no value when appending")
	}
	s.Write(formatValue(v))
	return true, nil
}

func opWriteChar(s *State, _ Value) (bool, error) {
	v, ok := s.Peek()
	if !ok {
		return false, stackFail(s, "WRITE_CHAR", "no value when appending")
	}
	// '0' + v - 48 reduces to v: the value is the character code itself
	s.WriteRune(rune('0' + v - 48))
	return true, nil
}

func boolValue(b bool) Value {
	if b {
		return 1
	}
	return 0
}
