package proc

import (
	"fmt"

	"rvkernel/internal/kerr"
	"rvkernel/internal/spinlock"
)

// Dump returns one line per in-use process table slot, "pid state name",
// the counterpart of procdump()'s console listing.
func (t *Table) Dump(g *spinlock.Gate) []string {
	var out []string
	for _, p := range t.procs {
		p.Lock.Acquire(g)
		if p.state != Unused {
			out = append(out, fmt.Sprintf("%d %s %s", p.pid, p.state, p.Name))
		}
		p.Lock.Release(g)
	}
	return out
}

// ParentChain walks p's ancestry up to the root, returning the pids from p
// itself to the topmost ancestor still in the table. It holds the table's
// wait lock for the whole walk rather than per-hop, since per-hop locking
// could read a chain mid-reparent and see a cycle or a dangling link.
func (t *Table) ParentChain(g *spinlock.Gate, p *Proc) []int {
	t.waitLock.Acquire(g)
	defer t.waitLock.Release(g)
	var chain []int
	for cur := p; cur != nil; cur = cur.parent {
		chain = append(chain, cur.pid)
	}
	return chain
}

// lookupByPID scans the table for a live (non-killed) process with the
// given pid, returning it still locked (proc_acquire_by_id). The caller
// must release p.Lock once done.
func (t *Table) lookupByPID(g *spinlock.Gate, pid int) (*Proc, bool) {
	for _, p := range t.procs {
		p.Lock.Acquire(g)
		if p.pid == pid && !p.killed {
			return p, true
		}
		p.Lock.Release(g)
	}
	return nil, false
}

// isChild walks target's ancestry looking for caller (proc_is_child). This
// walk reads p.parent links without acquiring each ancestor's lock, the
// same unsynchronized chain walk the original performs (ancestors beyond
// target could in principle be concurrently reparented mid-walk); this is
// a documented, accepted race rather than a bug to fix, since tightening it
// would require a lock order the rest of the package doesn't otherwise
// need.
func isChild(target, caller *Proc) bool {
	for cur := target; cur != nil; cur = cur.parent {
		if cur.pid == caller.pid {
			return true
		}
	}
	return false
}

// Dump2 reads one saved register (s0..s11, numbered 0..11) out of the
// process identified by pid, provided it is a descendant of caller
// (dump2()). It returns kerr.NotFound if no such live process exists,
// kerr.PermissionDenied if it isn't caller's descendant, and
// kerr.BadAlloc if reg is out of range.
func (t *Table) Dump2(g *spinlock.Gate, caller *Proc, pid, reg int) (uint64, kerr.Err_t) {
	target, ok := t.lookupByPID(g, pid)
	if !ok {
		return 0, kerr.NotFound
	}
	if !isChild(target, caller) {
		target.Lock.Release(g)
		return 0, kerr.PermissionDenied
	}
	if reg < 0 || reg > 11 {
		target.Lock.Release(g)
		return 0, kerr.BadAlloc
	}
	value := target.regs[reg]
	target.Lock.Release(g)
	return value, kerr.OK
}
