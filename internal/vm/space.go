package vm

import (
	"rvkernel/internal/frame"
	"rvkernel/internal/kerr"
	"rvkernel/internal/klog"
	"rvkernel/internal/spinlock"
)

// Space is one process's address space: a root page table frame plus the
// lock serializing modifications to it, generalizing the teacher's Vm_t
// (_examples/Oichkatzelesfrettschen-biscuit/biscuit/src/vm/as.go) from x86's 4-level tables to Sv39's 3-level ones
// and from a global Physmem to an explicit *frame.Manager.
type Space struct {
	lock *spinlock.Lock
	fm   *frame.Manager

	Root frame.Frame
	Size VAddr // first byte past the process's valid user memory

	pgfltHeld bool // mirrors Vm_t.pgfltaken, a debugging aid only
}

// NewSpace allocates an empty root page table and returns the address space
// wrapping it (uvmcreate).
func NewSpace(fm *frame.Manager, g *spinlock.Gate) (*Space, bool) {
	root, ok := fm.Alloc(g)
	if !ok {
		return nil, false
	}
	return &Space{
		lock: spinlock.New("vm-space"),
		fm:   fm,
		Root: root,
	}, true
}

// LockPmap acquires the address space's lock, the counterpart of
// Vm_t.Lock_pmap. Space's own methods (HandlePageFault, Grow, Shrink,
// Unmap, CopyInto, CopyIn/CopyOut, Free) do not acquire it; it is held only
// where a caller takes it explicitly through LockPmap/UnlockPmap.
func (s *Space) LockPmap(g *spinlock.Gate) {
	s.lock.Acquire(g)
	s.pgfltHeld = true
}

// UnlockPmap releases the address space's lock.
func (s *Space) UnlockPmap(g *spinlock.Gate) {
	s.pgfltHeld = false
	s.lock.Release(g)
}

// mappages creates PTEs mapping size bytes starting at va to pa with perm,
// panicking (like the original) on remap since that always indicates a
// caller bug, and returning kerr.BadAlloc if a page-table page couldn't be
// allocated partway through (vmmappages; see DESIGN.md on the original's
// own lack of rollback in that case, preserved here as an Open Question
// decision rather than silently fixed).
func mappages(fm *frame.Manager, g *spinlock.Gate, root frame.Frame, va VAddr, size int, pa frame.Frame, perm PTE) kerr.Err_t {
	if size == 0 {
		klog.Fatal("vm: mappages: zero size")
	}
	a := PageRoundDown(va)
	last := PageRoundDown(va + VAddr(size) - 1)
	for {
		table, idx, ok := walk(fm, g, root, a, true)
		if !ok {
			return kerr.BadAlloc
		}
		if ptePtr(fm, table, idx).Valid() {
			klog.Fatal("vm: mappages: remap")
		}
		setPte(fm, table, idx, pa2pte(pa)|perm|PteV)
		if a == last {
			break
		}
		a += PageSize
		pa += frame.Frame(PageSize)
	}
	return kerr.OK
}

// Unmap removes npages of mappings starting at va (which must be
// page-aligned), freeing the underlying frames when doFree is true
// (uvmunmap).
func (s *Space) Unmap(g *spinlock.Gate, va VAddr, npages int, doFree bool) {
	if va%PageSize != 0 {
		klog.Fatal("vm: unmap: not page-aligned")
	}
	for a := va; a < va+VAddr(npages*PageSize); a += PageSize {
		table, idx, ok := walk(s.fm, g, s.Root, a, false)
		if !ok {
			klog.Fatal("vm: unmap: walk")
		}
		pte := ptePtr(s.fm, table, idx)
		if !pte.Valid() {
			klog.Fatal("vm: unmap: not mapped")
		}
		if !pte.Leaf() {
			klog.Fatal("vm: unmap: not a leaf")
		}
		if doFree {
			s.fm.Down(g, pte2pa(pte))
		}
		setPte(s.fm, table, idx, 0)
	}
}

// Grow allocates and maps zero-filled pages to grow the address space from
// oldSize to newSize, returning the new size and true, or (oldSize, false)
// if it ran out of memory partway through (any pages it did manage to map
// are unwound first, matching uvmalloc's rollback via uvmdealloc).
func (s *Space) Grow(g *spinlock.Gate, oldSize, newSize VAddr, extraPerm PTE) (VAddr, bool) {
	if newSize < oldSize {
		return oldSize, true
	}
	a := PageRoundUp(oldSize)
	for ; a < newSize; a += PageSize {
		f, ok := s.fm.Alloc(g)
		if !ok {
			s.Shrink(g, a, oldSize)
			return oldSize, false
		}
		if mappages(s.fm, g, s.Root, a, PageSize, f, PteR|PteU|extraPerm) != kerr.OK {
			s.fm.Down(g, f)
			s.Shrink(g, a, oldSize)
			return oldSize, false
		}
	}
	s.Size = newSize
	return newSize, true
}

// Shrink deallocates user pages to bring the address space from oldSize
// down to newSize (uvmdealloc).
func (s *Space) Shrink(g *spinlock.Gate, oldSize, newSize VAddr) VAddr {
	if newSize >= oldSize {
		return oldSize
	}
	if PageRoundUp(newSize) < PageRoundUp(oldSize) {
		npages := int(PageRoundUp(oldSize)-PageRoundUp(newSize)) / PageSize
		s.Unmap(g, PageRoundUp(newSize), npages, true)
	}
	s.Size = newSize
	return newSize
}

// freewalk recursively frees page-table pages once every leaf mapping
// beneath them has already been removed (freewalk).
func freewalk(fm *frame.Manager, g *spinlock.Gate, table frame.Frame) {
	for i := 0; i < 512; i++ {
		pte := ptePtr(fm, table, i)
		if pte.Valid() && !pte.Leaf() {
			freewalk(fm, g, pte2pa(pte))
			setPte(fm, table, i, 0)
		} else if pte.Valid() {
			klog.Fatal("vm: freewalk: leaf")
		}
	}
	fm.Down(g, table)
}

// Free unmaps every user page below s.Size and then frees the page-table
// pages themselves (uvmfree). The Space must not be used afterward.
func (s *Space) Free(g *spinlock.Gate) {
	if s.Size > 0 {
		s.Unmap(g, 0, int(PageRoundUp(s.Size))/PageSize, true)
	}
	freewalk(s.fm, g, s.Root)
}

// CopyInto copies this address space's mappings into dst, an already
// allocated, empty address space: every writable leaf becomes
// copy-on-write in both this space and dst, sharing the same physical
// frame with its reference count bumped, rather than eagerly duplicating
// memory (uvmcopy, spec.md §4.6). dst is rolled back on failure.
func (s *Space) CopyInto(g *spinlock.Gate, dst *Space) kerr.Err_t {
	mapped := 0
	for va := VAddr(0); va < s.Size; va += PageSize {
		table, idx, ok := walk(s.fm, g, s.Root, va, false)
		if !ok {
			klog.Fatal("vm: copyInto: pte should exist")
		}
		pte := ptePtr(s.fm, table, idx)
		if !pte.Valid() {
			klog.Fatal("vm: copyInto: page not present")
		}
		if pte&PteW != 0 {
			pte &^= PteW
			pte |= PteCow
			setPte(s.fm, table, idx, pte)
		}
		f := pte2pa(pte)
		s.fm.Up(f)
		if mappages(s.fm, g, dst.Root, va, PageSize, f, pte.Flags()) != kerr.OK {
			s.fm.Down(g, f)
			dst.Unmap(g, 0, mapped, true)
			return kerr.BadAlloc
		}
		mapped++
	}
	dst.Size = s.Size
	return kerr.OK
}

// Fork is NewSpace followed by CopyInto, the common case of forking a live
// address space into a brand new one.
func (s *Space) Fork(g *spinlock.Gate) (*Space, kerr.Err_t) {
	child, ok := NewSpace(s.fm, g)
	if !ok {
		return nil, kerr.BadAlloc
	}
	if err := s.CopyInto(g, child); err != kerr.OK {
		return nil, err
	}
	return child, kerr.OK
}
