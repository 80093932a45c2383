package proc

import "rvkernel/internal/spinlock"

// Kill marks p for termination and, if it is currently sleeping, wakes it
// so it can observe the kill promptly instead of waiting out whatever it
// was sleeping for (kill()). Code that sleeps in this package always
// re-checks Killed after waking, the same convention the original's sleep
// loops follow.
func (p *Proc) Kill(g *spinlock.Gate) {
	p.Lock.Acquire(g)
	p.killed = true
	if p.state == Sleeping {
		p.state = Runnable
	}
	p.Lock.Release(g)
}

// Killed reports whether p has been marked for termination.
func (p *Proc) Killed(g *spinlock.Gate) bool {
	p.Lock.Acquire(g)
	defer p.Lock.Release(g)
	return p.killed
}

// SetKilled sets p's killed flag directly, without the wake-if-sleeping
// side effect of Kill.
func (p *Proc) SetKilled(g *spinlock.Gate, v bool) {
	p.Lock.Acquire(g)
	p.killed = v
	p.Lock.Release(g)
}
