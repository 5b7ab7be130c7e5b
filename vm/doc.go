// Package vm implements a small extensible stack machine.
//
// This package contains:
//   - Instruction registry mapping names to dense opcode ids and actions
//   - Line-oriented assembler producing Code from program text
//   - Fetch/execute engine running Code against a mutable State
//   - Standard instruction set (arithmetic, stack, jumps, output, halt)
//
// Every stack value is a signed 64-bit integer. Opcode ids are only
// meaningful relative to the Registry that assembled them.
package vm
