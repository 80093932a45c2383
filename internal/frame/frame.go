// Package frame layers reference-counted physical page frames on top of
// internal/buddy, grounded in _examples/Oichkatzelesfrettschen-biscuit/biscuit/src/mem/mem.go's Physmem_t: Refup,
// Refdown, Refpg_new and the per-CPU free-list fast path all have direct
// counterparts here, generalized from x86's 4K page to spec.md's page size
// and from Physmem_t's global arrays to an explicit Manager value so that
// more than one machine instance can exist (tests build many).
package frame

import (
	"runtime"
	"sync/atomic"

	"rvkernel/internal/buddy"
	"rvkernel/internal/klog"
	"rvkernel/internal/mach"
	"rvkernel/internal/spinlock"
)

// PageShift and PageSize fix the frame granularity spec.md's VM layer
// assumes (Sv39's 4K base page).
const (
	PageShift = 12
	PageSize  = 1 << PageShift
)

// Frame is the physical address of a page-aligned frame, the load-bearing
// currency of the VM layer's PTEs and the frame table's own indexing.
type Frame buddy.Addr

// percpuCacheCap bounds each hart's private free-list, mirroring Physmem_t's
// pcpuphys_t.freelen >= 100 cutoff: unbounded caching would just relocate
// memory pressure from the shared allocator to a hart that happens not to
// be freeing.
const percpuCacheCap = 64

type percpuCache struct {
	lock *spinlock.Lock
	free []Frame
}

// Manager is the frame table for one machine: a buddy allocator at page
// granularity plus a reference count per frame and a small per-hart cache of
// recently freed frames, the same two-tier structure as
// Physmem_t.{freei,percpu}.
type Manager struct {
	arena  *mach.Arena
	alloc  *buddy.Allocator
	base   Frame
	npages int
	refcnt []int32
	percpu []percpuCache
}

// NewManager builds a frame manager covering [base, end) of arena, backed
// by a page-granularity buddy allocator.
func NewManager(arena *mach.Arena, base, end buddy.Addr) *Manager {
	alloc := buddy.Init(base, end, PageSize)
	m := &Manager{
		arena:  arena,
		alloc:  alloc,
		base:   Frame(alloc.Base()),
		npages: alloc.Leaves(),
	}
	m.refcnt = make([]int32, m.npages)
	ncpu := runtime.NumCPU()
	if ncpu < 1 {
		ncpu = 1
	}
	m.percpu = make([]percpuCache, ncpu)
	for i := range m.percpu {
		m.percpu[i].lock = spinlock.New("frame-percpu")
	}
	return m
}

func (m *Manager) index(f Frame) int {
	idx := int(f-m.base) / PageSize
	if idx < 0 || idx >= m.npages {
		klog.Fatalf("frame: %#x out of range", uintptr(f))
	}
	return idx
}

func (m *Manager) mine() *percpuCache {
	return &m.percpu[runtime.CPUHint()%len(m.percpu)]
}

// Alloc returns a fresh, zero-filled frame with reference count 1, or false
// if memory is exhausted (Refpg_new's behavior, generalized: frame_parse's
// validation happens implicitly because every Frame this package hands out
// came from its own allocator).
func (m *Manager) Alloc(g *spinlock.Gate) (Frame, bool) {
	f, ok := m.allocRaw(g)
	if !ok {
		return 0, false
	}
	m.arena.Zero(buddy.Addr(f), PageSize)
	return f, true
}

// AllocNoZero is Alloc without the zero-fill, for callers about to
// overwrite the whole frame anyway (Refpg_new_nozero's counterpart).
func (m *Manager) AllocNoZero(g *spinlock.Gate) (Frame, bool) {
	return m.allocRaw(g)
}

func (m *Manager) allocRaw(g *spinlock.Gate) (Frame, bool) {
	pc := m.mine()
	pc.lock.Acquire(g)
	if n := len(pc.free); n > 0 {
		f := pc.free[n-1]
		pc.free = pc.free[:n-1]
		pc.lock.Release(g)
		atomic.StoreInt32(&m.refcnt[m.index(f)], 1)
		return f, true
	}
	pc.lock.Release(g)

	addr, ok := m.alloc.Malloc(g, PageSize)
	if !ok {
		return 0, false
	}
	f := Frame(addr)
	atomic.StoreInt32(&m.refcnt[m.index(f)], 1)
	return f, true
}

// Ref reports a frame's current reference count.
func (m *Manager) Ref(f Frame) int {
	return int(atomic.LoadInt32(&m.refcnt[m.index(f)]))
}

// Up increments a frame's reference count. It panics if the frame was not
// already referenced, since an Up on a free frame is always a caller bug
// (spec.md §7's invariant-violation class), matching Refup's "wut" panic.
func (m *Manager) Up(f Frame) {
	c := atomic.AddInt32(&m.refcnt[m.index(f)], 1)
	if c <= 1 {
		klog.Fatal("frame: Up on an unreferenced frame")
	}
}

// Down decrements a frame's reference count and, if it reaches zero,
// returns the frame to the allocator (first trying the local hart's cache,
// then the shared buddy allocator), reporting whether the frame was freed.
func (m *Manager) Down(g *spinlock.Gate, f Frame) bool {
	c := atomic.AddInt32(&m.refcnt[m.index(f)], -1)
	if c < 0 {
		klog.Fatal("frame: reference count underflow")
	}
	if c > 0 {
		return false
	}

	pc := m.mine()
	pc.lock.Acquire(g)
	if len(pc.free) < percpuCacheCap {
		pc.free = append(pc.free, f)
		pc.lock.Release(g)
		return true
	}
	pc.lock.Release(g)
	m.alloc.Free(g, buddy.Addr(f))
	return true
}

// Bytes returns the frame's backing storage as a byte slice.
func (m *Manager) Bytes(f Frame) []byte {
	return m.arena.Bytes(buddy.Addr(f), PageSize)
}

// Base returns the lowest frame address the manager serves.
func (m *Manager) Base() Frame { return m.base }

// NumPages returns the total number of page-sized frames the manager
// covers, including any trailing slack reserved at init (buddy.Leaves).
func (m *Manager) NumPages() int { return m.npages }

// RefSnapshot returns a copy of every frame's current reference count,
// indexed the same way Base()+i*PageSize addresses frame i. It exists for
// diagnostics (internal/diag's pprof export) and takes no lock beyond the
// atomic loads Ref itself already does per entry, so it is not a single
// consistent point-in-time view under concurrent Alloc/Down.
func (m *Manager) RefSnapshot() []int32 {
	out := make([]int32, len(m.refcnt))
	for i := range out {
		out[i] = atomic.LoadInt32(&m.refcnt[i])
	}
	return out
}
