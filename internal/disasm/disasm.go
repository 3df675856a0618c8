// Package disasm defines the disassembler capability used by the filter
// together with its backends: GNU objdump run as a subprocess and an
// in-process RISC-V decoder.
package disasm

import (
	"context"
	"fmt"
	"strings"
)

// DefaultArch is the objdump machine name for the base 32-bit integer ISA.
const DefaultArch = "riscv:rv32i"

// Disassembler turns raw instruction bytes into an objdump-style listing.
// The last non-empty line of the listing describes the final instruction as
// tab-separated fields: address, encoding, mnemonic and operands.
type Disassembler interface {
	Disassemble(ctx context.Context, raw []byte, arch string) (string, error)
}

// Func adapts a plain function to the Disassembler interface.
type Func func(ctx context.Context, raw []byte, arch string) (string, error)

// Disassemble calls fn.
func (fn Func) Disassemble(ctx context.Context, raw []byte, arch string) (string, error) {
	return fn(ctx, raw, arch)
}

// Inst is a simplified decoded instruction.
type Inst struct {
	VA       uint64 // offset of the instruction in the input
	Op       string // mnemonic in lowercase
	Operands string // comma-separated operands, numeric registers
	Enc      uint32 // raw encoding
	Len      int    // encoding length in bytes (2 or 4)
}

// line renders the instruction the way objdump prints it.
func (i Inst) line() string {
	hex := fmt.Sprintf("%0*x", i.Len*2, i.Enc)
	body := i.Op
	if i.Operands != "" {
		body += "\t" + i.Operands
	}
	return fmt.Sprintf("%4x:\t%-20s\t%s", i.VA, hex, body)
}

// Stream is a linear sequence of instructions.
type Stream []Inst

// Listing renders the stream as objdump listing text, one line per
// instruction.
func (s Stream) Listing() string {
	var b strings.Builder
	for _, inst := range s {
		b.WriteString(inst.line())
		b.WriteByte('\n')
	}
	return b.String()
}
