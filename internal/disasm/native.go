package disasm

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/riscv64/riscv64asm"
)

// Native decodes RISC-V instructions in process. Its listing has the same
// shape as objdump's, so callers can switch backends without changing how
// they read the result.
type Native struct{}

// NewNative creates the in-process backend.
func NewNative() *Native {
	return &Native{}
}

// Disassemble decodes raw and renders it as an objdump-style listing.
func (n *Native) Disassemble(ctx context.Context, raw []byte, arch string) (string, error) {
	if arch != "" && !strings.HasPrefix(arch, "riscv") {
		return "", fmt.Errorf("native backend: unsupported architecture %q", arch)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("native backend: no instruction bytes")
	}
	return n.Decode(raw).Listing(), nil
}

// Decode splits raw into instruction units. A 32-bit word whose low half is
// a compressed encoding yields two units. Compressed units come out in the
// decoder's expanded form (0x0001 is "addi x0,x0,0", not "c.nop"). The
// all-zero halfword and units the decoder rejects are kept as .insn entries
// carrying the raw value.
func (n *Native) Decode(raw []byte) Stream {
	var s Stream
	for off := 0; off < len(raw); {
		size := unitLen(raw[off:])
		if off+size > len(raw) {
			rest := raw[off:]
			s = append(s, Inst{
				VA:       uint64(off),
				Op:       fmt.Sprintf(".%dbyte", len(rest)),
				Operands: fmt.Sprintf("0x%x", le(rest)),
				Enc:      le(rest),
				Len:      len(rest),
			})
			break
		}

		unit := raw[off : off+size]
		s = append(s, decodeUnit(uint64(off), unit))
		off += size
	}
	return s
}

// privileged holds the trap-return and wait encodings the decoder does not
// know. None of them take operands.
var privileged = map[uint32]string{
	0x00200073: "uret",
	0x10200073: "sret",
	0x30200073: "mret",
	0x10500073: "wfi",
}

func decodeUnit(va uint64, unit []byte) Inst {
	enc := le(unit)
	size := len(unit)
	if op, ok := privileged[enc]; ok && size == 4 {
		return Inst{VA: va, Op: op, Enc: enc, Len: size}
	}

	// riscv64asm expands the zero halfword (c.unimp) into a csrrw.
	if enc != 0 {
		inst, err := riscv64asm.Decode(unit)
		if err == nil && inst.Len == size {
			return Inst{VA: va, Op: mnemonic(inst.Op), Operands: operands(inst), Enc: enc, Len: size}
		}
	}

	return Inst{
		VA:       va,
		Op:       ".insn",
		Operands: fmt.Sprintf("%d, 0x%0*x", size, size*2, enc),
		Enc:      enc,
		Len:      size,
	}
}

// unitLen returns the encoding length announced by the low bits of b.
func unitLen(b []byte) int {
	if b[0]&0x3 != 0x3 {
		return 2
	}
	return 4
}

func le(b []byte) uint32 {
	switch len(b) {
	case 1:
		return uint32(b[0])
	case 2, 3:
		return uint32(binary.LittleEndian.Uint16(b))
	default:
		return binary.LittleEndian.Uint32(b)
	}
}

// mnemonic converts the decoder's op name to GNU spelling (FENCE_I -> fence.i).
func mnemonic(op riscv64asm.Op) string {
	return strings.ToLower(strings.ReplaceAll(op.String(), "_", "."))
}

func operands(inst riscv64asm.Inst) string {
	var args []string
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		args = append(args, strings.ToLower(arg.String()))
	}
	return strings.Join(args, ",")
}
