// Package sleeplock implements a blocking mutex built on top of a spinlock
// and the process package's sleep/wakeup, grounded in
// original_source/kernel/sync/sleeplock.c. Unlike spinlock.Lock, holding one
// of these across a blocking operation is fine: the holder parks via
// proc.Sleep instead of spinning, so it gives up its hart while waiting.
package sleeplock

import (
	"rvkernel/internal/proc"
	"rvkernel/internal/spinlock"
)

// Lock is a sleeping lock (struct sleeplock): mutual exclusion for sections
// that may block, such as reading a file off slow storage.
type Lock struct {
	guard  *spinlock.Lock
	table  *proc.Table
	locked bool
	pid    int
}

// New returns a named, initially-unlocked sleeplock that sleeps waiters on
// t (initsleeplock).
func New(name string, t *proc.Table) *Lock {
	return &Lock{guard: spinlock.New(name), table: t}
}

// Acquire blocks until the lock is free, then takes it on behalf of p
// (acquiresleep).
func (l *Lock) Acquire(g *spinlock.Gate, p *proc.Proc) *spinlock.Gate {
	l.guard.Acquire(g)
	for l.locked {
		g = proc.Sleep(g, p, l, l.guard)
	}
	l.locked = true
	l.pid = p.Pid()
	l.guard.Release(g)
	return g
}

// Release frees the lock and wakes anyone waiting for it (releasesleep).
func (l *Lock) Release(g *spinlock.Gate) *spinlock.Gate {
	l.guard.Acquire(g)
	l.locked = false
	l.pid = 0
	l.table.Wakeup(g, l)
	l.guard.Release(g)
	return g
}

// Holding reports whether p currently holds the lock (holdingsleep).
func (l *Lock) Holding(g *spinlock.Gate, p *proc.Proc) bool {
	l.guard.Acquire(g)
	defer l.guard.Release(g)
	return l.locked && l.pid == p.Pid()
}
