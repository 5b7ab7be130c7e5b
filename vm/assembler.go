package vm

import (
	"strconv"

	"github.com/chazu/stackvm/strutil"
)

// Assemble translates line-oriented program text into Code.
//
// Each line is either "NAME" or "NAME ARG", tokens separated by exactly one
// space. ARG is a base-10 signed 64-bit literal and defaults to 0. The first
// bad line aborts assembly; no partial Code is returned.
func Assemble(reg *Registry, program string) (Code, error) {
	lines := strutil.Split(program, '\n')
	code := make(Code, 0, len(lines))
	for i, line := range lines {
		instr, err := assembleLine(reg, i+1, line)
		if err != nil {
			return nil, err
		}
		code = append(code, instr)
	}
	return code, nil
}

// Validate checks every line of program and returns all faults found, in
// source order. A nil result means Assemble would succeed.
func Validate(reg *Registry, program string) []error {
	var errs []error
	for i, line := range strutil.Split(program, '\n') {
		if _, err := assembleLine(reg, i+1, line); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func assembleLine(reg *Registry, lineNo int, line string) (Instruction, error) {
	words := strutil.Split(line, ' ')

	// Only an instruction and at most one argument
	if len(words) >= 3 {
		return Instruction{}, asmFault(lineNo, "more than one instruction argument: "+line, nil)
	}
	if len(words) == 0 {
		return Instruction{}, asmFault(lineNo, "empty instruction", nil)
	}

	name := words[0]
	id, ok := reg.Lookup(name)
	if !ok {
		return Instruction{}, asmFault(lineNo, "unknown instruction: "+name, nil)
	}

	var arg Value
	if len(words) == 2 {
		n, err := strconv.ParseInt(words[1], 10, 64)
		if err != nil {
			return Instruction{}, asmFault(lineNo, "bad argument for "+name+": "+words[1], err)
		}
		arg = n
	}

	return Instruction{Op: id, Arg: arg}, nil
}
