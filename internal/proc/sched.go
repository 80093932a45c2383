package proc

import (
	"context"
	"runtime"

	"rvkernel/internal/klog"
	"rvkernel/internal/spinlock"
)

// sched hands control back to the scheduler that dispatched p, and blocks
// until it is dispatched again (sched()). p.Lock must be held by g, p must
// not be Running (the caller already changed its state), and interrupts
// must be off — all three are exactly the invariants the original checks
// before calling swtch(). The Gate returned may belong to a different hart
// than the one that called sched, since the scheduler is free to dispatch
// p onto any hart on its next turn.
func sched(g *spinlock.Gate, p *Proc) *spinlock.Gate {
	if !p.Lock.Holding(g) {
		klog.Fatal("sched: proc lock not held")
	}
	if p.state == Running {
		klog.Fatal("sched: proc still running")
	}
	if g.IntrOn() {
		klog.Fatal("sched: interruptible")
	}
	p.yielded <- struct{}{}
	return <-p.resume
}

// Yield gives up the hart voluntarily, marking p Runnable so the scheduler
// may dispatch it (or another process) next (yield()).
func Yield(g *spinlock.Gate, p *Proc) *spinlock.Gate {
	p.Lock.Acquire(g)
	p.state = Runnable
	g = sched(g, p)
	p.Lock.Release(g)
	return g
}

// Scheduler is the per-hart dispatch loop (scheduler()): round-robin over
// the table's slots, running each Runnable process until it yields back,
// until ctx is cancelled. Interrupts are force-enabled at the top of every
// pass so a hart with nothing to run can still be woken by an event it's
// waiting on, rather than spinning with interrupts wedged off.
func (t *Table) Scheduler(ctx context.Context, g *spinlock.Gate) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		g.ForceEnable()
		ran := false
		for _, p := range t.procs {
			p.Lock.Acquire(g)
			if p.state == Runnable {
				p.state = Running
				ran = true
				p.resume <- g
				<-p.yielded
			}
			p.Lock.Release(g)
		}
		if !ran {
			runtime.Gosched()
		}
	}
}
