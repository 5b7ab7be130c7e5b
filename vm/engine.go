package vm

import (
	"context"
	"fmt"
)

// ctxCheckInterval is how many steps run between context checks.
const ctxCheckInterval = 1024

// Run executes code against s until a halting instruction or a fault.
//
// Execution starts at s.PC. On normal termination Run returns the top of
// stack and the accumulated output. Faults are returned as *Fault; s is
// left as it was at the fault point.
func Run(s *State, code Code) (Value, string, error) {
	return RunContext(context.Background(), s, code)
}

// RunContext is Run with cancellation. A canceled context or exceeding
// MaxSteps aborts the run between instructions.
func RunContext(ctx context.Context, s *State, code Code) (Value, string, error) {
	if s.Debug && !s.entered {
		s.printListing(code)
	}
	s.entered = true

	for {
		if s.PC < 0 || s.PC >= len(code) {
			return 0, s.Output(), &Fault{
				Kind: VmSegfault,
				Msg:  fmt.Sprintf("execution in invalid place. code size = %d", len(code)),
				PC:   s.PC,
			}
		}

		if s.MaxSteps > 0 && s.Steps >= s.MaxSteps {
			return 0, s.Output(), fmt.Errorf("%w after %d steps (pc=%d)", ErrStepLimit, s.Steps, s.PC)
		}
		if s.Steps%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, s.Output(), fmt.Errorf("run aborted at pc=%d: %w", s.PC, err)
			}
		}

		instr := code[s.PC]
		if s.Debug {
			s.traceStep(instr)
		}

		// Advance first so jumps can overwrite with an absolute target
		s.PC++
		s.Steps++

		action, ok := s.Registry.Action(instr.Op)
		if !ok {
			return 0, s.Output(), &Fault{
				Kind: InvalidInstruction,
				Msg:  fmt.Sprintf("opcode %d not registered", instr.Op),
				PC:   s.PC - 1,
			}
		}

		more, err := action.Exec(s, instr.Arg)
		if err != nil {
			return 0, s.Output(), err
		}
		if !more {
			break
		}
	}

	top, ok := s.Peek()
	if !ok {
		return 0, s.Output(), stackFail(s, "", "no return value at halt")
	}
	return top, s.Output(), nil
}
