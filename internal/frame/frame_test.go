package frame

import (
	"testing"

	"rvkernel/internal/buddy"
	"rvkernel/internal/mach"
	"rvkernel/internal/spinlock"
)

func newTestManager(t *testing.T, pages int) (*Manager, *mach.Arena) {
	t.Helper()
	size := pages * PageSize
	a, err := mach.NewArena(buddy.Addr(0), size)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	m := NewManager(a, buddy.Addr(0), buddy.Addr(size))
	return m, a
}

func TestAllocIsZeroedAndRefCountedOne(t *testing.T) {
	m, _ := newTestManager(t, 8)
	g := spinlock.NewGate()

	f, ok := m.Alloc(g)
	if !ok {
		t.Fatal("Alloc failed")
	}
	if m.Ref(f) != 1 {
		t.Fatalf("Ref = %d, want 1", m.Ref(f))
	}
	b := m.Bytes(f)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, v)
		}
	}
}

func TestUpDownFreesAtZero(t *testing.T) {
	m, _ := newTestManager(t, 4)
	g := spinlock.NewGate()

	f, ok := m.Alloc(g)
	if !ok {
		t.Fatal("Alloc failed")
	}
	m.Up(f)
	if m.Ref(f) != 2 {
		t.Fatalf("Ref = %d, want 2", m.Ref(f))
	}
	if freed := m.Down(g, f); freed {
		t.Fatal("Down should not report freed while ref count is 1")
	}
	if m.Ref(f) != 1 {
		t.Fatalf("Ref = %d, want 1", m.Ref(f))
	}
	if freed := m.Down(g, f); !freed {
		t.Fatal("Down should report freed when ref count reaches 0")
	}
}

func TestWriteIsVisibleViaBytes(t *testing.T) {
	m, _ := newTestManager(t, 4)
	g := spinlock.NewGate()

	f, ok := m.Alloc(g)
	if !ok {
		t.Fatal("Alloc failed")
	}
	b := m.Bytes(f)
	b[0] = 0xAB
	if got := m.Bytes(f)[0]; got != 0xAB {
		t.Fatalf("got %#x, want 0xab", got)
	}
}

func TestExhaustionReturnsFalse(t *testing.T) {
	m, _ := newTestManager(t, 2)
	g := spinlock.NewGate()

	var got []Frame
	for {
		f, ok := m.Alloc(g)
		if !ok {
			break
		}
		got = append(got, f)
	}
	if len(got) == 0 {
		t.Fatal("expected at least one frame before exhaustion")
	}
	if _, ok := m.Alloc(g); ok {
		t.Fatal("expected exhaustion")
	}
}

func TestUpOnFreeFramePanics(t *testing.T) {
	m, _ := newTestManager(t, 2)
	g := spinlock.NewGate()
	f, ok := m.Alloc(g)
	if !ok {
		t.Fatal("Alloc failed")
	}
	m.Down(g, f)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for Up on a freed frame")
		}
	}()
	m.Up(f)
}
