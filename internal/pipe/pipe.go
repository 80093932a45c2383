// Package pipe implements an anonymous byte-stream pipe backed by a fixed
// ring buffer, grounded in original_source/kernel/file/pipe.c.
package pipe

import (
	"rvkernel/internal/kerr"
	"rvkernel/internal/proc"
	"rvkernel/internal/spinlock"
	"rvkernel/internal/vm"
)

// Size is the ring buffer's capacity in bytes (PIPESIZE).
const Size = 512

// Pipe is one anonymous pipe shared between a reader and a writer end.
type Pipe struct {
	lock  *spinlock.Lock
	table *proc.Table

	data   [Size]byte
	nread  uint
	nwrite uint

	readOpen  bool
	writeOpen bool
}

// New returns a pipe with both ends open (pipealloc, minus file-descriptor
// bookkeeping which belongs to whatever file-table package wires this in).
func New(t *proc.Table) *Pipe {
	return &Pipe{
		lock:      spinlock.New("pipe"),
		table:     t,
		readOpen:  true,
		writeOpen: true,
	}
}

// Close marks one end of the pipe closed. writable selects which end: true
// closes the write end (wakes blocked readers so they see EOF), false
// closes the read end (wakes blocked writers so they see a broken pipe).
// There is no explicit free step: the Pipe is garbage collected once both
// ends and every reference to it are gone (pipeclose, minus the manual
// kfree the original needs and Go doesn't).
func (pi *Pipe) Close(g *spinlock.Gate, writable bool) {
	pi.lock.Acquire(g)
	if writable {
		pi.writeOpen = false
		pi.table.Wakeup(g, &pi.nread)
	} else {
		pi.readOpen = false
		pi.table.Wakeup(g, &pi.nwrite)
	}
	pi.lock.Release(g)
}

// Write copies n bytes from the calling process's address space at addr
// into the pipe, blocking while the buffer is full, and returns the number
// of bytes actually written (which is less than n only if the read end
// closed, the writer was killed, or copying from addr failed partway
// through) (pipewrite).
func (pi *Pipe) Write(g *spinlock.Gate, p *proc.Proc, space *vm.Space, addr vm.VAddr, n int) (int, kerr.Err_t) {
	pi.lock.Acquire(g)
	i := 0
	for i < n {
		if !pi.readOpen || p.Killed(g) {
			pi.lock.Release(g)
			return i, kerr.Unknown
		}
		if pi.nwrite == pi.nread+Size {
			pi.table.Wakeup(g, &pi.nread)
			g = proc.Sleep(g, p, &pi.nwrite, pi.lock)
			continue
		}
		var ch [1]byte
		if err := space.CopyIn(g, ch[:], addr+vm.VAddr(i)); err != kerr.OK {
			break
		}
		pi.data[pi.nwrite%Size] = ch[0]
		pi.nwrite++
		i++
	}
	pi.table.Wakeup(g, &pi.nread)
	pi.lock.Release(g)
	return i, kerr.OK
}

// Read copies up to n bytes out of the pipe into the calling process's
// address space at addr, blocking until at least one byte is available or
// the write end is closed, and returns the number of bytes actually read
// (piperead).
func (pi *Pipe) Read(g *spinlock.Gate, p *proc.Proc, space *vm.Space, addr vm.VAddr, n int) (int, kerr.Err_t) {
	pi.lock.Acquire(g)
	for pi.nread == pi.nwrite && pi.writeOpen {
		if p.Killed(g) {
			pi.lock.Release(g)
			return 0, kerr.Unknown
		}
		g = proc.Sleep(g, p, &pi.nread, pi.lock)
	}
	i := 0
	for ; i < n; i++ {
		if pi.nread == pi.nwrite {
			break
		}
		ch := pi.data[pi.nread%Size]
		pi.nread++
		if err := space.CopyOut(g, addr+vm.VAddr(i), []byte{ch}); err != kerr.OK {
			break
		}
	}
	pi.table.Wakeup(g, &pi.nwrite)
	pi.lock.Release(g)
	return i, kerr.OK
}
