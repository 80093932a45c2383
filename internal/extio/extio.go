// Package extio names the interface contracts spec.md §6 draws around the
// kernel core: console/UART, block device, file system, trap glue, PLIC,
// and the ELF loader. None of these are implemented here — they are the
// boundary the core (internal/buddy, internal/frame, internal/vm,
// internal/proc, internal/sleeplock, internal/pipe) calls out to and is
// independently testable without, the same separation
// original_source/kernel/defs.h draws with forward declarations and the
// teacher draws with its own Disk_i/Blockmem_i interfaces
// (_examples/Oichkatzelesfrettschen-biscuit/biscuit/src/fs/blk.go).
package extio

import (
	"rvkernel/internal/kerr"
	"rvkernel/internal/proc"
	"rvkernel/internal/spinlock"
	"rvkernel/internal/vm"
)

// Console_i is the line-discipline the core expects from startup:
// consputc/uartintr plus sleep/wakeup-driven delivery to readers
// (spec.md §6's console/UART contract).
type Console_i interface {
	PutChar(g *spinlock.Gate, c byte)
	Interrupt(g *spinlock.Gate)
	Read(g *spinlock.Gate, p *proc.Proc, dst []byte) (int, kerr.Err_t)
}

// BlockDevice_i is the disk request/interrupt contract virtio_disk_rw and
// virtio_disk_intr play in the original; buffer-cache policy
// (binit/bread/bwrite/brelse/bpin/bunpin) belongs to whatever implements
// FileSystem_i, not here.
type BlockDevice_i interface {
	ReadWrite(g *spinlock.Gate, block int, buf []byte, write bool) kerr.Err_t
	Interrupt(g *spinlock.Gate)
}

// FileSystem_i is the namei/inode contract the core calls from exit (to
// release cwd) and fork (to duplicate cwd), and from the pipe/file
// read-write path.
type FileSystem_i interface {
	Init(dev int) kerr.Err_t
	Namei(path string) (inode any, err kerr.Err_t)
	Idup(inode any) any
	Iput(g *spinlock.Gate, inode any)
	Ilock(inode any)
	Iunlock(inode any)
	ReadI(inode any, dst []byte, off int) (int, kerr.Err_t)
	WriteI(inode any, src []byte, off int) (int, kerr.Err_t)
	BeginOp()
	EndOp()
}

// TrapVectors_i is what real trap assembly and usertrap/kerneltrap provide;
// this port has no assembly layer at all (internal/proc's
// channel handoff plays swtch's role, spec.md §4.7's REDESIGN FLAGS entry),
// so this interface only names the UsertrapPageFault/UsertrapSyscall entry
// points; no package in the core implements or depends on it.
type TrapVectors_i interface {
	UsertrapPageFault(g *spinlock.Gate, p *proc.Proc, va vm.VAddr) kerr.Err_t
	UsertrapSyscall(g *spinlock.Gate, p *proc.Proc) kerr.Err_t
}

// PLIC_i is the platform-level interrupt controller contract: plicinit,
// plicinithart, plic_claim, plic_complete.
type PLIC_i interface {
	InitHart(hart int)
	Claim(hart int) (irq int, ok bool)
	Complete(hart int, irq int)
}

// ELFLoader_i is exec's contract: build a new user address space, lay down
// segments via Space.Grow-equivalent mapping calls, then hand back the
// entry point and initial stack pointer for the trapframe swap
// (spec.md §6's uvmfirst/uvmalloc/uvmmap sequence).
type ELFLoader_i interface {
	Load(g *spinlock.Gate, rootfs FileSystem_i, path string, argv []string) (entry, sp vm.VAddr, space *vm.Space, err kerr.Err_t)
}
