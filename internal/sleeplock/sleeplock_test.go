package sleeplock

import (
	"context"
	"testing"
	"time"

	"rvkernel/internal/buddy"
	"rvkernel/internal/frame"
	"rvkernel/internal/kerr"
	"rvkernel/internal/mach"
	"rvkernel/internal/proc"
	"rvkernel/internal/spinlock"
)

func newTestTable(t *testing.T, capacity, pages int) (*proc.Table, func()) {
	t.Helper()
	size := pages * frame.PageSize
	a, err := mach.NewArena(buddy.Addr(0), size)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	fm := frame.NewManager(a, buddy.Addr(0), buddy.Addr(size))
	tbl := proc.NewTable(capacity, fm)

	ctx, cancel := context.WithCancel(context.Background())
	g := spinlock.NewGate()
	done := make(chan struct{})
	go func() {
		tbl.Scheduler(ctx, g)
		close(done)
	}()
	return tbl, func() {
		cancel()
		<-done
		a.Close()
	}
}

func TestMutualExclusion(t *testing.T) {
	tbl, stop := newTestTable(t, 4, 32)
	defer stop()

	lk := New("test", tbl)
	order := make(chan int, 2)

	mk := func(id int, hold time.Duration) proc.Body {
		return func(g *spinlock.Gate, p *proc.Proc) {
			g = lk.Acquire(g, p)
			order <- id
			time.Sleep(hold)
			lk.Release(g)
		}
	}

	if _, err := tbl.Spawn(spinlock.NewGate(), "a", mk(1, 30*time.Millisecond)); err != kerr.OK {
		t.Fatalf("Spawn a: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := tbl.Spawn(spinlock.NewGate(), "b", mk(2, 0)); err != kerr.OK {
		t.Fatalf("Spawn b: %v", err)
	}

	var got []int
	for i := 0; i < 2; i++ {
		select {
		case v := <-order:
			got = append(got, v)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for both holders")
		}
	}
	if got[0] != 1 || got[1] != 2 {
		t.Fatalf("acquire order = %v, want [1 2]", got)
	}
}

func TestHoldingReflectsOwner(t *testing.T) {
	tbl, stop := newTestTable(t, 4, 32)
	defer stop()

	lk := New("owner-check", tbl)
	checked := make(chan bool, 1)

	body := func(g *spinlock.Gate, p *proc.Proc) {
		g = lk.Acquire(g, p)
		checked <- lk.Holding(g, p)
		lk.Release(g)
	}
	if _, err := tbl.Spawn(spinlock.NewGate(), "owner", body); err != kerr.OK {
		t.Fatalf("Spawn: %v", err)
	}

	select {
	case ok := <-checked:
		if !ok {
			t.Fatal("Holding reported false for the actual owner")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
}
