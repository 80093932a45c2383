package diag

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Disassemble decodes the instruction bytes the host CPU executed around a
// simulated hart fault's program counter, for inclusion in a panic dump. It
// has nothing to do with RISC-V: there is no RISC-V decoder in the
// retrieval pack, and the fault this simulation actually delivers is a Go
// panic on the *host* CPU, so decoding the host instruction stream at the
// fault site is the nearest grounded stand-in for original_source's
// trapframe disassembly.
func Disassemble(code []byte, pc uint64) (string, error) {
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return "", fmt.Errorf("diag: decode at pc %#x: %w", pc, err)
	}
	return x86asm.GNUSyntax(inst, pc, nil), nil
}
