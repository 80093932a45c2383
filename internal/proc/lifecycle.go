package proc

import (
	"rvkernel/internal/kerr"
	"rvkernel/internal/klog"
	"rvkernel/internal/spinlock"
	"rvkernel/internal/vm"
)

// Spawn creates the first process of a process tree directly, with an
// empty address space and no parent (userinit()). Later processes are
// created with Fork instead.
func (t *Table) Spawn(g *spinlock.Gate, name string, body Body) (*Proc, kerr.Err_t) {
	p, err := t.allocProc(g, body)
	if err != kerr.OK {
		return nil, err
	}
	p.Name = name
	p.state = Runnable
	p.Lock.Release(g)
	t.launch(p)
	return p, kerr.OK
}

// Fork creates a child of parent sharing its address space copy-on-write
// (fork()), runs its own goroutine via launch, and marks it Runnable for
// the scheduler to pick up. The child runs the same Body as its parent;
// callers that need the child to behave differently can have that Body
// branch on p.Pid() or on state the caller threads through some other way.
func (t *Table) Fork(g *spinlock.Gate, parent *Proc) (*Proc, kerr.Err_t) {
	child, err := t.allocProc(g, parent.body)
	if err != kerr.OK {
		return nil, err
	}
	if cerr := parent.Space.CopyInto(g, child.Space); cerr != kerr.OK {
		t.freeProc(g, child)
		child.Lock.Release(g)
		return nil, cerr
	}
	child.Size = parent.Size
	child.Name = parent.Name

	t.waitLock.Acquire(g)
	child.parent = parent
	t.waitLock.Release(g)

	child.state = Runnable
	child.Lock.Release(g)
	t.launch(child)
	return child, kerr.OK
}

// reparent reassigns every child of p to t.Init (reparent()), waking Init
// if one of them is already a zombie so its own Wait notices without
// needing a spurious timeout.
func (t *Table) reparent(g *spinlock.Gate, p *Proc) {
	for _, c := range t.procs {
		c.Lock.Acquire(g)
		if c.parent != p {
			c.Lock.Release(g)
			continue
		}
		c.parent = t.Init
		orphanedZombie := t.Init != nil && c.state == Zombie
		c.Lock.Release(g)
		if orphanedZombie {
			t.Wakeup(g, t.Init)
		}
	}
}

// Exit terminates p with the given exit status, reparenting its children
// and waking whichever parent is (or may soon be) waiting on it (exit()).
// It never returns: the underlying goroutine parks forever on p's resume
// channel once sched never hands control back, the same way the original
// never returns from sched() for a zombie.
func (t *Table) Exit(g *spinlock.Gate, p *Proc, status int) {
	t.waitLock.Acquire(g)
	parent := p.parent
	t.reparent(g, p)
	if parent != nil {
		t.Wakeup(g, parent)
	}

	p.Lock.Acquire(g)
	p.xstate = status
	p.state = Zombie
	t.waitLock.Release(g)

	sched(g, p)
	klog.Fatal("exit: zombie process was rescheduled")
}

// Wait blocks parent until one of its children exits, then reaps it and
// returns its pid and exit status (wait()). It returns kerr.NotFound if
// parent has no children at all, or if parent itself is killed before any
// child exits.
func (t *Table) Wait(g *spinlock.Gate, parent *Proc) (pid int, xstate int, err kerr.Err_t) {
	t.waitLock.Acquire(g)
	for {
		haveChild := false
		for _, c := range t.procs {
			c.Lock.Acquire(g)
			if c.parent != parent {
				c.Lock.Release(g)
				continue
			}
			haveChild = true
			if c.state == Zombie {
				pid, xstate = c.pid, c.xstate
				t.freeProc(g, c)
				c.Lock.Release(g)
				t.waitLock.Release(g)
				return pid, xstate, kerr.OK
			}
			c.Lock.Release(g)
		}
		if !haveChild || parent.Killed(g) {
			t.waitLock.Release(g)
			return 0, 0, kerr.NotFound
		}
		g = Sleep(g, parent, parent, t.waitLock)
	}
}

// Sbrk grows or shrinks p's address space by n bytes (positive or
// negative) and returns the size it had before the change (sbrk()/growproc()).
func Sbrk(g *spinlock.Gate, p *Proc, n int) (vm.VAddr, kerr.Err_t) {
	oldSize := p.Size
	if n >= 0 {
		newSize, ok := p.Space.Grow(g, oldSize, oldSize+vm.VAddr(n), vm.PteW)
		if !ok {
			return 0, kerr.BadAlloc
		}
		p.Size = newSize
	} else {
		p.Size = p.Space.Shrink(g, oldSize, oldSize+vm.VAddr(n))
	}
	return oldSize, kerr.OK
}
