package vm

import (
	"fmt"
	"strconv"
)

// Value is the only runtime datatype: a signed 64-bit integer.
type Value = int64

// OpID identifies a registered instruction. Ids are dense, start at 0 and
// are never reused within a Registry.
type OpID int

// Instruction is one assembled (opcode, argument) pair.
type Instruction struct {
	Op  OpID
	Arg Value
}

func (i Instruction) String() string {
	return fmt.Sprintf("%d %d", i.Op, i.Arg)
}

// Code is an assembled program. The engine never mutates it.
type Code []Instruction

// Equal reports whether two Code sequences hold the same instructions in the
// same order.
func (c Code) Equal(other Code) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// formatValue renders a value the way WRITE and PRINT do.
func formatValue(v Value) string {
	return strconv.FormatInt(v, 10)
}
