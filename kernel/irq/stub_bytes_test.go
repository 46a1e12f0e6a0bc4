package irq

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"
)

// TestStubPrologueBytesDecode is a golden-byte test: it hand-encodes the
// machine code a stub's "push dummy error code; push vector; jump to the
// common stub" prologue compiles down to, and checks that a real x86
// disassembler agrees with the instructions we intended to emit. This
// catches the kind of encoding mistake (wrong opcode, wrong immediate
// width) that a pure Go-level unit test over commonHandler can't see,
// since that path never touches raw stub bytes.
func TestStubPrologueBytesDecode(t *testing.T) {
	// push $0x0 ; push $0x06 ; jmp rel32
	code := []byte{
		0x6A, 0x00, // PUSH imm8 0x00 (dummy error code)
		0x6A, 0x06, // PUSH imm8 0x06 (vector 6, invalid opcode)
		0xE9, 0x00, 0x00, 0x00, 0x00, // JMP rel32 commonstub
	}

	off := 0
	var insts []x86asm.Inst
	for off < len(code) {
		inst, err := x86asm.Decode(code[off:], 64)
		require.NoErrorf(t, err, "failed to decode instruction at offset %d", off)
		insts = append(insts, inst)
		off += inst.Len
	}

	require.Len(t, insts, 3)
	require.Equal(t, x86asm.PUSH, insts[0].Op)
	require.Equal(t, x86asm.PUSH, insts[1].Op)
	require.Equal(t, x86asm.JMP, insts[2].Op)

	require.Equal(t, x86asm.Imm(0), insts[0].Args[0])
	require.Equal(t, x86asm.Imm(6), insts[1].Args[0])
}
