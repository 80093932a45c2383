// Package buddy implements the power-of-two physical-memory allocator of
// spec.md §4.2, grounded in original_source/kernel/buddy.c's algorithm
// shape (bd_malloc/bd_free/bd_init) but redesigned per spec.md §3's data
// model: a pair-alloc-xor bit per buddy pair instead of one alloc bit per
// block, and arena-relative block indices instead of pointer casts
// (REDESIGN FLAGS).
//
// Allocation, free, and size lookup are all O(log2(HEAP_SIZE/LEAF_SIZE))
// and protected by a single allocator-wide lock; there is no per-class
// locking and the allocator never sleeps (spec.md §4.2).
package buddy

import (
	"rvkernel/internal/klog"
	"rvkernel/internal/spinlock"
)

// Addr is a byte offset into the region the allocator manages, counted
// from the allocator's own base — an address-space-agnostic stand-in for
// the C original's raw pointers (REDESIGN FLAGS: "model each free block as
// an index into the managed region... rather than an untyped pointer
// cast").
type Addr uintptr

// class holds the per-size-class bookkeeping for one power-of-two size.
type class struct {
	free    *freelist
	pairXor *bitset // length NBLK(k)/2; nil when NBLK(k) == 1 (k == MAXSIZE)
	split   *bitset // length NBLK(k); only used by class k-1 lookups into class k
}

// Allocator is a single power-of-two buddy region of HEAP_SIZE =
// LEAF_SIZE * 2^MAXSIZE bytes.
type Allocator struct {
	lock *spinlock.Lock

	base     Addr
	leafSize int
	maxSize  int
	classes  []class
}

// blkSize returns BLK_SIZE(k): the size in bytes of a block at class k.
func (a *Allocator) blkSize(k int) int {
	return a.leafSize << uint(k)
}

// nblk returns NBLK(k): the number of blocks of class k in the region.
func (a *Allocator) nblk(k int) int {
	return 1 << uint(a.maxSize-k)
}

func minPowerOfTwo(leafSize int, n int) int {
	if n <= 0 {
		n = 1
	}
	k := 0
	size := leafSize
	for size < n {
		k++
		size *= 2
	}
	return k
}

// Init creates an allocator managing the half-open range [base, end), by
// rounding its capacity up to HEAP_SIZE = LEAF_SIZE*2^MAXSIZE and marking
// every byte beyond end (up to base+HEAP_SIZE) permanently allocated, so it
// can never be handed out. leafSize must be a power of two.
//
// Unlike bd_init, Init does not need to carve its own bookkeeping (free
// lists, pair-xor/split bit vectors) out of the region it manages: bd_init
// must do so because the C kernel has no allocator yet to call kalloc for
// that metadata, whereas here the metadata is ordinary Go heap memory
// supplied by the host's allocator, and the full [base, end) capacity is
// available to callers. This is a deliberate adaptation, not a behavioral
// difference visible to spec.md's testable properties.
func Init(base, end Addr, leafSize int) *Allocator {
	if leafSize <= 0 || leafSize&(leafSize-1) != 0 {
		klog.Fatal("buddy: leaf size must be a power of two")
	}
	if end < base {
		klog.Fatal("buddy: end before base")
	}
	span := int(end - base)
	maxSize := minPowerOfTwo(leafSize, span)
	a := &Allocator{
		lock:     spinlock.New("buddy"),
		base:     base,
		leafSize: leafSize,
		maxSize:  maxSize,
		classes:  make([]class, maxSize+1),
	}
	for k := 0; k <= maxSize; k++ {
		c := &a.classes[k]
		c.free = newFreelist(a.nblk(k))
		if a.nblk(k) > 1 {
			c.pairXor = newBitset(a.nblk(k) / 2)
		}
		if k > 0 {
			c.split = newBitset(a.nblk(k))
		}
	}
	// Start with everything free at the top size class...
	a.classes[maxSize].free.pushFront(0)
	// ...then reserve the slack past `end` leaf by leaf, leaving allocated
	// every leaf that overlaps [end, base+HEAP_SIZE), the mirror image of
	// bd_mark_unavailable.
	heapEnd := base + Addr(a.blkSize(maxSize))
	if end < heapEnd {
		a.reserve(end, heapEnd)
	}
	return a
}

// reserve marks [from, heapEnd) permanently allocated at init time. A fresh
// allocator always hands out leaves in ascending address order starting at
// base (each Malloc of LEAF_SIZE peels the next leaf off the lowest
// non-empty free list), so reserve first allocates every leaf from base to
// heapEnd in that order, then frees back the ones before the boundary,
// leaving the rest allocated — the mirror image of bd_mark_unavailable,
// built out of the ordinary alloc/free machinery instead of a separate
// marking pass. from is rounded down to a leaf boundary, so a leaf that
// straddles from stays reserved; heapEnd already is leaf-aligned.
func (a *Allocator) reserve(from, heapEnd Addr) {
	loLeaf := int(from-a.base) / a.leafSize
	nleaves := int(heapEnd-a.base) / a.leafSize
	for i := 0; i < nleaves; i++ {
		p, ok := a.allocLocked(a.leafSize)
		if !ok || p != a.base+Addr(i*a.leafSize) {
			klog.Fatal("buddy: reservation did not yield the expected leaf")
		}
	}
	for i := 0; i < loLeaf; i++ {
		a.freeLocked(a.base + Addr(i*a.leafSize))
	}
}

// Malloc returns a block of size BLK_SIZE(k) where k is the smallest index
// with BLK_SIZE(k) >= max(n, LEAF_SIZE). It returns (0, false) iff no
// size->=k free block exists. n == 0 is treated as n == 1.
func (a *Allocator) Malloc(g *spinlock.Gate, n int) (Addr, bool) {
	a.lock.Acquire(g)
	defer a.lock.Release(g)
	return a.allocLocked(n)
}

func (a *Allocator) allocLocked(n int) (Addr, bool) {
	k := minPowerOfTwo(a.leafSize, n)
	if k > a.maxSize {
		return 0, false
	}
	found := -1
	for i := k; i <= a.maxSize; i++ {
		if !a.classes[i].free.empty() {
			found = i
			break
		}
	}
	if found == -1 {
		return 0, false
	}
	idx := a.classes[found].free.popFront()
	a.flipPairXor(found, idx)

	for lvl := found; lvl > k; lvl-- {
		a.classes[lvl].split.set(int(idx))
		// descend into the left half; its index one level down is idx*2,
		// and its buddy (the right half, pushed back onto the free list)
		// is idx*2 xor 1.
		idx = idx * 2
		buddyIdx := idx ^ 1
		a.flipPairXor(lvl-1, idx)
		a.classes[lvl-1].free.pushFront(buddyIdx)
	}
	return a.blkAddr(k, idx), true
}

// flipPairXor flips the pair-xor bit covering block idx at class k, if
// that class has more than one block (MAXSIZE's single block has no pair).
func (a *Allocator) flipPairXor(k int, idx uint32) bool {
	c := &a.classes[k]
	if c.pairXor == nil {
		return false
	}
	return c.pairXor.flip(int(idx / 2))
}

func (a *Allocator) blkIndex(k int, p Addr) uint32 {
	return uint32(int(p-a.base) / a.blkSize(k))
}

func (a *Allocator) blkAddr(k int, idx uint32) Addr {
	return a.base + Addr(int(idx)*a.blkSize(k))
}

// sizeOf returns the size class p was originally allocated at: the
// smallest k such that the block containing p at level k+1 is marked
// split, or MAXSIZE if no ancestor of p was ever split (p is the sole
// top-level block).
func (a *Allocator) sizeOf(p Addr) int {
	for k := 0; k < a.maxSize; k++ {
		idx := a.blkIndex(k+1, p)
		if a.classes[k+1].split.get(int(idx)) {
			return k
		}
	}
	return a.maxSize
}

// Free returns p, previously returned by Malloc and not already freed, to
// the allocator, coalescing with free buddies upward as far as possible.
func (a *Allocator) Free(g *spinlock.Gate, p Addr) {
	a.lock.Acquire(g)
	defer a.lock.Release(g)
	a.freeLocked(p)
}

func (a *Allocator) freeLocked(p Addr) {
	k := a.sizeOf(p)
	addr := p
	for ; k < a.maxSize; k++ {
		idx := a.blkIndex(k, addr)
		buddyAllocated := a.flipPairXor(k, idx)
		if buddyAllocated {
			// the pair-xor bit is now set: exactly one of the pair is
			// allocated, and it isn't the one we just freed, so it's the
			// buddy. stop merging.
			break
		}
		buddyIdx := idx ^ 1
		buddyAddr := a.blkAddr(k, buddyIdx)
		a.classes[k].free.remove(buddyIdx)
		if buddyIdx%2 == 0 {
			addr = buddyAddr
		}
		a.classes[k+1].split.clear(int(a.blkIndex(k+1, addr)))
	}
	a.classes[k].free.pushFront(a.blkIndex(k, addr))
}

// SizeOf reports the size in bytes of the block previously returned for
// pointer p by Malloc.
func (a *Allocator) SizeOf(g *spinlock.Gate, p Addr) int {
	a.lock.Acquire(g)
	defer a.lock.Release(g)
	return a.blkSize(a.sizeOf(p))
}

// MaxSize returns MAXSIZE, the allocator's largest size class index.
func (a *Allocator) MaxSize() int { return a.maxSize }

// LeafSize returns LEAF_SIZE.
func (a *Allocator) LeafSize() int { return a.leafSize }

// Leaves returns NBLK(0): the total number of leaf-sized blocks in the
// region, including any trailing slack Init reserved. Callers that keep
// per-leaf side tables (e.g. a frame manager's reference counts) size them
// to this, not to the originally requested span.
func (a *Allocator) Leaves() int { return a.nblk(0) }

// Base returns the allocator's base address.
func (a *Allocator) Base() Addr { return a.base }

// ClassReport is one size class's occupancy for diagnostic reporting
// (bd_print's per-class line).
type ClassReport struct {
	Class     int
	BlockSize int
	NumBlocks int
	FreeCount int
}

// Report returns one ClassReport per size class, the data bd_print()
// formats to the console; internal/diag turns this into the kernel's
// diagnostic output.
func (a *Allocator) Report(g *spinlock.Gate) []ClassReport {
	a.lock.Acquire(g)
	defer a.lock.Release(g)
	out := make([]ClassReport, len(a.classes))
	for k := range a.classes {
		out[k] = ClassReport{
			Class:     k,
			BlockSize: a.blkSize(k),
			NumBlocks: a.nblk(k),
			FreeCount: a.classes[k].free.len(),
		}
	}
	return out
}
