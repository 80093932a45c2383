// Package mach stands in for the hardware this kernel would otherwise run
// on bare-metal: a byte-addressable physical RAM arena and a set of harts
// (cores) that run the scheduler concurrently. spec.md §2 describes the
// system as running "on" RISC-V harts with a flat physical address space;
// since this port runs as an ordinary host process, mach supplies that
// address space and concurrency out of regular OS facilities instead of
// assuming real hardware, grounded in the teacher's mem.Physmem_t (physical
// memory bookkeeping) and a fresh read of golang.org/x/sys/unix for the
// backing store.
package mach

import (
	"fmt"

	"golang.org/x/sys/unix"

	"rvkernel/internal/buddy"
)

// Config describes the simulated machine's layout, playing the role the
// original's RAM_BASE/PHYSTOP/MAXCPUS compile-time constants play, but as
// explicit runtime configuration (REDESIGN FLAGS: "make memory layout and
// CPU count explicit configuration instead of compile-time constants").
type Config struct {
	// RAMBase is the lowest physical address the arena covers.
	RAMBase buddy.Addr
	// PhysTop is the address one past the last byte of simulated RAM.
	PhysTop buddy.Addr
	// ReservedBase/ReservedTop, if ReservedTop > ReservedBase, is a range
	// within [RAMBase, PhysTop) that Mprotect'd no-access once the arena is
	// built, standing in for the kernel's own text/data/bss occupying the
	// low end of physical memory in the original.
	ReservedBase, ReservedTop buddy.Addr
	// Harts is the number of simulated cores.
	Harts int
}

// Arena is a flat byte-addressable region of simulated physical memory,
// backed by an anonymous mmap so that Go's garbage collector never scans it
// and so Mprotect can be used to trap stray accesses to reserved ranges,
// exactly as the original kernel's own page tables trap accesses to
// unmapped physical memory.
type Arena struct {
	mem  []byte
	base buddy.Addr
}

// NewArena mmaps a region of size bytes and returns an Arena whose address
// 0 corresponds to base (typically cfg.RAMBase).
func NewArena(base buddy.Addr, size int) (*Arena, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mach: non-positive arena size %d", size)
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mach: mmap arena: %w", err)
	}
	return &Arena{mem: mem, base: base}, nil
}

// Base returns the physical address corresponding to byte 0 of the arena.
func (a *Arena) Base() buddy.Addr { return a.base }

// Size returns the arena's length in bytes.
func (a *Arena) Size() int { return len(a.mem) }

// Bytes returns a slice view of the n bytes of physical memory starting at
// p. It panics if the range falls outside the arena, the simulation's
// analogue of a page fault against unbacked physical memory.
func (a *Arena) Bytes(p buddy.Addr, n int) []byte {
	off := int(p - a.base)
	if off < 0 || n < 0 || off+n > len(a.mem) {
		top := a.base + buddy.Addr(len(a.mem))
		panic(fmt.Sprintf("mach: address range [%#x,+%d) outside arena [%#x,%#x)", p, n, a.base, top))
	}
	return a.mem[off : off+n]
}

// Zero clears n bytes of physical memory starting at p.
func (a *Arena) Zero(p buddy.Addr, n int) {
	b := a.Bytes(p, n)
	for i := range b {
		b[i] = 0
	}
}

// Protect marks the given physical range no-access, used once at boot to
// fence off a reserved range the same way the original's low physical
// memory (kernel image, boot stack) is never handed to the buddy allocator.
func (a *Arena) Protect(p buddy.Addr, n int) error {
	off := int(p - a.base)
	if off < 0 || n < 0 || off+n > len(a.mem) {
		return fmt.Errorf("mach: protect range outside arena")
	}
	return unix.Mprotect(a.mem[off:off+n], unix.PROT_NONE)
}

// Close releases the arena's backing mapping.
func (a *Arena) Close() error {
	if a.mem == nil {
		return nil
	}
	err := unix.Munmap(a.mem)
	a.mem = nil
	return err
}
