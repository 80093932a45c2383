package vm

import (
	"rvkernel/internal/frame"
	"rvkernel/internal/kerr"
	"rvkernel/internal/klog"
	"rvkernel/internal/spinlock"
)

// KernelSpace is the one page table every hart loads for kernel-mode
// execution, the direct counterpart of kvmmake/kvminit's single global
// kernel_pagetable. Unlike a user Space it is never forked or freed.
type KernelSpace struct {
	fm   *frame.Manager
	Root frame.Frame
}

// NewKernelSpace builds the (identity-mapped) kernel page table: every
// frame in [fm.Base(), fm.Base()+fm.NumPages()*PageSize) is mapped to
// itself, read/write, the simulation's stand-in for kvmmake's explicit
// UART/PLIC/kernel-text/kernel-data/trampoline mappings — this host
// process has none of those physical devices, so the one mapping that
// matters is "kernel code can dereference any physical address it holds".
func NewKernelSpace(fm *frame.Manager, g *spinlock.Gate) *KernelSpace {
	root, ok := fm.Alloc(g)
	if !ok {
		klog.Fatal("vm: kvminit: out of memory for kernel page table")
	}
	ks := &KernelSpace{fm: fm, Root: root}
	base := frame.Frame(fm.Base())
	for i := 0; i < fm.NumPages(); i++ {
		pa := base + frame.Frame(i*PageSize)
		va := VAddr(pa)
		if err := mappages(fm, g, root, va, PageSize, pa, PteR|PteW); err != kerr.OK {
			klog.Fatal("vm: kvminit: identity map failed")
		}
	}
	return ks
}

// InitHart is the per-hart counterpart (kvminithart): in a real machine it
// loads satp and flushes the TLB. There is no MMU here, so every memory
// access already goes through Space/KernelSpace's own walk; InitHart exists
// only so callers that mirror the original's boot sequence have something
// to call at the matching point.
func (ks *KernelSpace) InitHart() {}
