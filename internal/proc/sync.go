package proc

import "rvkernel/internal/spinlock"

// Sleep atomically releases lk and puts p to sleep on chanOn, reacquiring
// lk before returning (sleep()). lk is any lock the caller holds to make
// the "go to sleep" and "check the condition" steps atomic with respect to
// a concurrent Wakeup — a sleeplock's guard lock, a pipe's lock, or (from
// Wait) the process table's wait lock.
func Sleep(g *spinlock.Gate, p *Proc, chanOn any, lk *spinlock.Lock) *spinlock.Gate {
	p.Lock.Acquire(g)
	lk.Release(g)

	p.chanOn = chanOn
	p.state = Sleeping
	g = sched(g, p)
	p.chanOn = nil

	p.Lock.Release(g)
	lk.Acquire(g)
	return g
}

// Wakeup marks every process sleeping on chanOn Runnable (wakeup()).
func (t *Table) Wakeup(g *spinlock.Gate, chanOn any) {
	for _, p := range t.procs {
		p.Lock.Acquire(g)
		if p.state == Sleeping && p.chanOn == chanOn {
			p.state = Runnable
		}
		p.Lock.Release(g)
	}
}
