package vm

import (
	"testing"

	"rvkernel/internal/buddy"
	"rvkernel/internal/frame"
	"rvkernel/internal/mach"
	"rvkernel/internal/spinlock"
)

func TestKernelSpaceIdentityMaps(t *testing.T) {
	size := 8 * frame.PageSize
	a, err := mach.NewArena(buddy.Addr(0), size)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	defer a.Close()
	fm := frame.NewManager(a, buddy.Addr(0), buddy.Addr(size))
	g := spinlock.NewGate()

	ks := NewKernelSpace(fm, g)
	base := frame.Frame(fm.Base())
	// walkAddr requires PteU, which the kernel map intentionally omits
	// (it's for kernel-mode access only), so check the mapping directly.
	table, idx, ok := walk(fm, g, ks.Root, VAddr(base), false)
	if !ok {
		t.Fatal("walk failed")
	}
	pte := ptePtr(fm, table, idx)
	if pte2pa(pte) != base {
		t.Fatalf("identity map mismatch: got %#x want %#x", pte2pa(pte), base)
	}
}
