package buddy

import (
	"testing"

	"rvkernel/internal/spinlock"
)

func newTestAllocator(t *testing.T, leafSize, maxSize int) *Allocator {
	t.Helper()
	base := Addr(0)
	end := base + Addr(leafSize<<uint(maxSize))
	a := Init(base, end, leafSize)
	if a.MaxSize() != maxSize {
		t.Fatalf("MaxSize() = %d, want %d", a.MaxSize(), maxSize)
	}
	return a
}

// Scenario 1 (spec.md §8): LEAF_SIZE=16, MAXSIZE=4. Allocate two leaves that
// are buddies, free both, and confirm they coalesce all the way back to the
// single top-level block by checking a subsequent max-size allocation
// succeeds.
func TestCoalesceToTop(t *testing.T) {
	a := newTestAllocator(t, 16, 4)
	g := spinlock.NewGate()

	p0, ok := a.Malloc(g, 16)
	if !ok {
		t.Fatal("Malloc leaf 0 failed")
	}
	p1, ok := a.Malloc(g, 16)
	if !ok {
		t.Fatal("Malloc leaf 1 failed")
	}
	if p1 != p0+16 {
		t.Fatalf("expected consecutive leaves, got %d then %d", p0, p1)
	}

	a.Free(g, p0)
	a.Free(g, p1)

	full, ok := a.Malloc(g, a.blkSize(a.MaxSize()))
	if !ok {
		t.Fatal("expected full coalesce to allow a top-size allocation")
	}
	if full != a.Base() {
		t.Fatalf("top-size block at %d, want %d", full, a.Base())
	}
}

// Non-overlap: a set of concurrently-live allocations never returns
// overlapping ranges.
func TestNonOverlap(t *testing.T) {
	a := newTestAllocator(t, 16, 6)
	g := spinlock.NewGate()

	type span struct {
		lo, hi Addr
	}
	var live []span
	for i := 0; i < 20; i++ {
		p, ok := a.Malloc(g, 16)
		if !ok {
			t.Fatalf("Malloc %d failed", i)
		}
		sz := Addr(a.SizeOf(g, p))
		for _, s := range live {
			if p < s.hi && s.lo < p+sz {
				t.Fatalf("overlap: [%d,%d) vs [%d,%d)", p, p+sz, s.lo, s.hi)
			}
		}
		live = append(live, span{p, p + sz})
	}
}

// Alignment: every returned block is aligned to its own size class, matching
// the buddy scheme's invariant that a block of size BLK_SIZE(k) sits at an
// address that is a multiple of BLK_SIZE(k) relative to base.
func TestAlignment(t *testing.T) {
	a := newTestAllocator(t, 16, 5)
	g := spinlock.NewGate()

	sizes := []int{16, 16, 32, 64, 16, 128}
	for _, n := range sizes {
		p, ok := a.Malloc(g, n)
		if !ok {
			t.Fatalf("Malloc(%d) failed", n)
		}
		sz := a.SizeOf(g, p)
		off := int(p - a.Base())
		if off%sz != 0 {
			t.Fatalf("block at offset %d size %d not aligned", off, sz)
		}
	}
}

// Round-trip: SizeOf after Malloc reports the size class actually handed
// out, and a Free/Malloc cycle at the same size returns usable memory again.
func TestRoundTrip(t *testing.T) {
	a := newTestAllocator(t, 16, 4)
	g := spinlock.NewGate()

	p, ok := a.Malloc(g, 40) // rounds up to 64
	if !ok {
		t.Fatal("Malloc failed")
	}
	if got := a.SizeOf(g, p); got != 64 {
		t.Fatalf("SizeOf = %d, want 64", got)
	}
	a.Free(g, p)
	p2, ok := a.Malloc(g, 64)
	if !ok {
		t.Fatal("Malloc after Free failed")
	}
	if p2 != p {
		t.Fatalf("expected Free to return exactly the freed block, got %d want %d", p2, p)
	}
}

// Exhaustion: once every leaf is handed out, further allocation fails
// cleanly rather than panicking or returning a bogus block.
func TestExhaustion(t *testing.T) {
	a := newTestAllocator(t, 16, 3)
	g := spinlock.NewGate()

	n := a.nblk(0)
	for i := 0; i < n; i++ {
		if _, ok := a.Malloc(g, 16); !ok {
			t.Fatalf("Malloc %d/%d unexpectedly failed", i, n)
		}
	}
	if _, ok := a.Malloc(g, 16); ok {
		t.Fatal("expected exhaustion to fail the allocation")
	}
}

// A reservation carved out at Init time (the trailing slack when the
// requested span isn't an exact power of two) is never handed out.
func TestInitReservesTrailingSlack(t *testing.T) {
	leafSize := 16
	base := Addr(0)
	// Ask for 3 leaves' worth; Init will round the backing region up to
	// MAXSIZE=2 (4 leaves) and must reserve the 4th.
	end := base + Addr(3*leafSize)
	a := Init(base, end, leafSize)
	g := spinlock.NewGate()

	var got []Addr
	for {
		p, ok := a.Malloc(g, leafSize)
		if !ok {
			break
		}
		got = append(got, p)
	}
	if len(got) != 3 {
		t.Fatalf("expected exactly 3 usable leaves, got %d: %v", len(got), got)
	}
	for _, p := range got {
		if p >= end {
			t.Fatalf("handed out reserved block at %d (end=%d)", p, end)
		}
	}
}

func TestMallocZeroTreatedAsOne(t *testing.T) {
	a := newTestAllocator(t, 16, 3)
	g := spinlock.NewGate()
	p, ok := a.Malloc(g, 0)
	if !ok {
		t.Fatal("Malloc(0) should succeed as a one-leaf allocation")
	}
	if a.SizeOf(g, p) != 16 {
		t.Fatalf("SizeOf = %d, want leaf size 16", a.SizeOf(g, p))
	}
}

func TestMallocLargerThanHeapFails(t *testing.T) {
	a := newTestAllocator(t, 16, 3)
	g := spinlock.NewGate()
	if _, ok := a.Malloc(g, a.blkSize(a.MaxSize())*2); ok {
		t.Fatal("expected an over-sized request to fail")
	}
}
