package vm

import (
	"rvkernel/internal/frame"
	"rvkernel/internal/kerr"
	"rvkernel/internal/klog"
	"rvkernel/internal/spinlock"
)

// HandlePageFault services a fault at virt within the address space,
// dispatching to the copy-on-write handler when the faulting PTE is marked
// COW (uvm_handle_page_fault). An out-of-range or unmapped virt is reported
// as kerr.NotFound; every other kind of fault is reported as kerr.Unknown,
// left for the trap dispatcher (whatever implements extio.TrapVectors_i) to
// turn into a kill.
func (s *Space) HandlePageFault(g *spinlock.Gate, virt VAddr) kerr.Err_t {
	if virt >= MaxVA {
		return kerr.NotFound
	}
	table, idx, ok := walk(s.fm, g, s.Root, virt, false)
	if !ok {
		return kerr.NotFound
	}
	pte := ptePtr(s.fm, table, idx)
	if !pte.Valid() {
		return kerr.NotFound
	}
	if pte&PteCow != 0 {
		return s.copyOnWrite(g, table, idx)
	}
	return kerr.Unknown
}

// copyOnWrite resolves a write fault against a COW page: if this mapping
// is the page's only remaining reference it's reclaimed in place, otherwise
// a private copy is made and the original's reference is dropped
// (uvm_copy_on_write).
func (s *Space) copyOnWrite(g *spinlock.Gate, table frame.Frame, idx int) kerr.Err_t {
	pte := ptePtr(s.fm, table, idx)
	if pte&PteCow == 0 {
		klog.Fatal("vm: copyOnWrite: pte must be COW")
	}
	old := pte2pa(pte)
	switch s.fm.Ref(old) {
	case 0:
		klog.Fatal("vm: copyOnWrite: ref_count = 0")
	case 1:
		pte |= PteW
		pte &^= PteCow
		setPte(s.fm, table, idx, pte)
	default:
		flags := pte.Flags() | PteW
		flags &^= PteCow
		nf, ok := s.fm.AllocNoZero(g)
		if !ok {
			return kerr.BadAlloc
		}
		copy(s.fm.Bytes(nf), s.fm.Bytes(old))
		setPte(s.fm, table, idx, pa2pte(nf)|flags)
		s.fm.Down(g, old)
	}
	return kerr.OK
}
