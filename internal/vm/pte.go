// Package vm implements the Sv39 three-level page table and the
// copy-on-write fork/fault machinery built on top of it (spec.md §4.5/§4.6),
// grounded in original_source/kernel/memory/vm.c's vmwalk/vmmappages/
// uvmcopy/uvm_copy_on_write family and restyled after the teacher's Vm_t
// (_examples/Oichkatzelesfrettschen-biscuit/biscuit/src/vm/as.go): an explicit address-space value with its own
// lock, rather than the original's bare pagetable_t plus free functions.
package vm

import (
	"rvkernel/internal/frame"
)

// VAddr is a Sv39 virtual address: bits 38..63 must be zero (sign-extension
// is not modeled; spec.md's MAXVA already excludes the top half of the
// canonical range the hardware would also reject).
type VAddr uintptr

// PTE is one Sv39 page table entry: bits 10..53 hold the physical page
// number, bits 0..9 hold flags. Reserved-for-software bit 8 carries the
// copy-on-write marker this port adds on top of the hardware bits.
type PTE uint64

const (
	PteV   PTE = 1 << 0 // valid
	PteR   PTE = 1 << 1 // readable
	PteW   PTE = 1 << 2 // writable
	PteX   PTE = 1 << 3 // executable
	PteU   PTE = 1 << 4 // user-accessible
	PteG   PTE = 1 << 5 // global
	PteA   PTE = 1 << 6 // accessed
	PteD   PTE = 1 << 7 // dirty
	PteCow PTE = 1 << 8 // copy-on-write (software-defined, spec.md §3)
)

const flagBits = 10

// pa2pte packs a physical frame's address into the PPN field of a PTE.
func pa2pte(f frame.Frame) PTE {
	return PTE(uint64(f)>>frame.PageShift) << flagBits
}

// pte2pa unpacks a PTE's PPN field back into a physical frame address.
func pte2pa(p PTE) frame.Frame {
	return frame.Frame((uint64(p) >> flagBits) << frame.PageShift)
}

// Flags returns the flag bits of a PTE, masking off the PPN.
func (p PTE) Flags() PTE { return p & (1<<flagBits - 1) }

// Valid reports whether the PTE's valid bit is set.
func (p PTE) Valid() bool { return p&PteV != 0 }

// Leaf reports whether the PTE is a leaf mapping (has at least one of
// R/W/X) as opposed to a pointer to a lower page-table level.
func (p PTE) Leaf() bool { return p&(PteR|PteW|PteX) != 0 }
