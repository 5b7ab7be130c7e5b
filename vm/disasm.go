package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a listing of code with one "index  NAME arg" line per
// instruction. Ids the registry cannot resolve are shown as "?<id>".
func Disassemble(reg *Registry, code Code) string {
	var sb strings.Builder
	for i, instr := range code {
		name, ok := reg.Name(instr.Op)
		if !ok {
			name = fmt.Sprintf("?%d", instr.Op)
		}
		fmt.Fprintf(&sb, "%04d  %-12s %d\n", i, name, instr.Arg)
	}
	return sb.String()
}

// printListing writes the debug banner and disassembly for a run. An
// unresolvable opcode turns debug off and cuts the listing short.
func (s *State) printListing(code Code) {
	w := s.stdout()
	fmt.Fprintln(w, "=== running vm ======================")
	fmt.Fprintln(w, "disassembly of run code:")
	for _, instr := range code {
		name, ok := s.Registry.Name(instr.Op)
		if !ok {
			fmt.Fprintln(w, "could not disassemble - op_id unknown...")
			fmt.Fprintln(w, "turning off debug mode.")
			s.Debug = false
			break
		}
		fmt.Fprintf(w, "%s %d\n", name, instr.Arg)
	}
	fmt.Fprintln(w, "=== end of disassembly")
	fmt.Fprintln(w)
}

func (s *State) traceStep(instr Instruction) {
	name, _ := s.Registry.Name(instr.Op)
	fmt.Fprintf(s.stdout(), "-- exec %s arg=%d at pc=%d\n", name, instr.Arg, s.PC)
}
