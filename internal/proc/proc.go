// Package proc implements the process table, cooperative scheduler, and
// sleep/wakeup synchronization of spec.md §4.7-4.9, grounded in
// original_source/kernel/process/proc.c (allocproc/freeproc/scheduler/
// sched/sleep/wakeup/fork/exit/wait) and restyled after the teacher's
// per-process locking discipline.
//
// The original's struct context and swtch() exist to save/restore a CPU's
// registers across a stack switch; a goroutine already has its own stack
// that the Go runtime preserves across a blocking channel operation, so
// there is nothing for this port to reimplement there (REDESIGN FLAGS
// territory the instructions call for documenting rather than reproducing
// in unsafe assembly). What the original core loses by not having
// per-goroutine TLS is myproc()/mycpu(): this port has no hidden
// "current process" lookup, and instead threads the running process's
// *Proc and the calling hart's *spinlock.Gate explicitly through every
// function that needs them — the same choice internal/spinlock already
// made for lock identity.
package proc

import (
	"rvkernel/internal/frame"
	"rvkernel/internal/kerr"
	"rvkernel/internal/spinlock"
	"rvkernel/internal/vm"
)

// State is a process's scheduling state (enum procstate).
type State int

const (
	Unused State = iota
	Used
	Sleeping
	Runnable
	Running
	Zombie
)

func (s State) String() string {
	switch s {
	case Unused:
		return "unused"
	case Used:
		return "used"
	case Sleeping:
		return "sleeping"
	case Runnable:
		return "runnable"
	case Running:
		return "running"
	case Zombie:
		return "zombie"
	default:
		return "state(?)"
	}
}

// Body is a process's entry point: it runs on its own goroutine and is
// handed the hart Gate it was most recently dispatched on and its own
// *Proc, the same two values every blocking primitive in this package
// takes and returns (since the current Gate changes every time the
// process is rescheduled, possibly onto a different hart).
type Body func(g *spinlock.Gate, p *Proc)

// Proc is one process table slot (struct proc). Fields below the dashed
// comment are guarded by Lock; Parent is guarded by the owning Table's
// waitLock; everything else is private to whichever goroutine currently
// owns the slot.
type Proc struct {
	Lock *spinlock.Lock

	// -- guarded by Lock --
	state  State
	chanOn any // non-nil iff Sleeping: the channel token it's waiting on
	xstate int
	pid    int

	parent *Proc // guarded by the Table's waitLock, not Lock

	Space *vm.Space
	Size  vm.VAddr
	Name  string

	killed bool // set under Lock; Killed/SetKilled below go through it

	// regs stands in for the trapframe's saved s0-s11 callee-saved
	// registers (dump/dump2's subject): there is no real trapframe here,
	// so a Body that wants Dump2 to see anything meaningful must record
	// its own values via SetReg.
	regs [12]uint64

	body    Body
	resume  chan *spinlock.Gate
	yielded chan struct{}
}

// Pid returns the process's id (stable for its lifetime once allocated).
func (p *Proc) Pid() int { return p.pid }

// SetReg records value n (s0..s11, so 0..11) of p's saved-register set
// (proc_register_s_value_at's write side; the original only ever reads
// these, since a real trapframe is filled in by trap entry, but this
// simulation has no trap entry to fill it for us).
func (p *Proc) SetReg(g *spinlock.Gate, n int, value uint64) {
	p.Lock.Acquire(g)
	p.regs[n] = value
	p.Lock.Release(g)
}

// State reports the process's current scheduling state.
func (p *Proc) State() State { return p.state }

// Table is the fixed-capacity process table (proc[NPROC]) plus the two
// locks that protect cross-process bookkeeping: waitLock orders
// parent/child reparenting and exit/wait rendezvous, pidLock serializes
// pid allocation.
type Table struct {
	waitLock *spinlock.Lock
	pidLock  *spinlock.Lock
	nextPID  int

	fm    *frame.Manager
	procs []*Proc

	// Init, if set, is the process orphaned children are reparented to on
	// their original parent's exit (reparent); nil means orphans simply
	// become parentless zombies, which Wait on a nonexistent parent never
	// reaps — an accepted simplification for a kernel with no real init(8).
	Init *Proc
}

// NewTable allocates a process table with capacity slots, all Unused.
func NewTable(capacity int, fm *frame.Manager) *Table {
	t := &Table{
		waitLock: spinlock.New("wait_lock"),
		pidLock:  spinlock.New("pid_lock"),
		fm:       fm,
		procs:    make([]*Proc, capacity),
	}
	for i := range t.procs {
		t.procs[i] = &Proc{Lock: spinlock.New("proc")}
	}
	return t
}

func (t *Table) allocPID(g *spinlock.Gate) int {
	t.pidLock.Acquire(g)
	defer t.pidLock.Release(g)
	t.nextPID++
	return t.nextPID
}

// allocProc finds an Unused slot, reserves it (state Used, pid assigned,
// an empty address space), and returns it still locked so the caller can
// finish initializing it atomically (allocproc). It returns kerr.BadAlloc
// if every slot is in use or the address space couldn't be allocated.
func (t *Table) allocProc(g *spinlock.Gate, body Body) (*Proc, kerr.Err_t) {
	for _, p := range t.procs {
		p.Lock.Acquire(g)
		if p.state != Unused {
			p.Lock.Release(g)
			continue
		}
		space, ok := vm.NewSpace(t.fm, g)
		if !ok {
			p.Lock.Release(g)
			return nil, kerr.BadAlloc
		}
		p.pid = t.allocPID(g)
		p.state = Used
		p.Space = space
		p.Size = 0
		p.body = body
		p.resume = make(chan *spinlock.Gate)
		p.yielded = make(chan struct{})
		return p, kerr.OK
	}
	return nil, kerr.BadAlloc
}

// freeProc resets p to Unused, releasing its address space. p.Lock must be
// held by the caller and remains held on return (freeproc). Fresh resume/
// yielded channels are installed so a straggler goroutine from the
// process that just exited — parked forever on the old channels once it
// went Zombie — can never be woken by a future occupant of this slot.
func (t *Table) freeProc(g *spinlock.Gate, p *Proc) {
	if p.Space != nil {
		p.Space.Free(g)
		p.Space = nil
	}
	p.pid = 0
	p.parent = nil
	p.Name = ""
	p.chanOn = nil
	p.killed = false
	p.xstate = 0
	p.Size = 0
	p.body = nil
	p.resume = make(chan *spinlock.Gate)
	p.yielded = make(chan struct{})
	p.state = Unused
}

// launch starts p's goroutine. The goroutine blocks until the scheduler
// first dispatches it (the forkret handshake: like the original's forkret,
// the very first thing it does is release p.Lock, which the scheduler
// still held across the handoff), runs its body, and treats the body
// returning as an implicit exit(0).
func (t *Table) launch(p *Proc) {
	go func() {
		g := <-p.resume
		p.Lock.Release(g)
		p.body(g, p)
		t.Exit(g, p, 0)
	}()
}
