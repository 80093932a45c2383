package pipe

import (
	"bytes"
	"context"
	"testing"
	"time"

	"rvkernel/internal/buddy"
	"rvkernel/internal/frame"
	"rvkernel/internal/kerr"
	"rvkernel/internal/mach"
	"rvkernel/internal/proc"
	"rvkernel/internal/spinlock"
	"rvkernel/internal/vm"
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

func TestWriteThenReadRoundTrip(t *testing.T) {
	tbl, stop := newTestTable(t, 4, 32)
	defer stop()

	pi := New(tbl)
	msg := []byte("hello through the pipe")
	result := make(chan []byte, 1)

	writer := func(g *spinlock.Gate, p *proc.Proc) {
		if _, ok := p.Space.Grow(g, 0, frame.PageSize, vm.PteW); !ok {
			t.Errorf("Grow failed")
			return
		}
		if err := p.Space.CopyOut(g, 0, msg); err != kerr.OK {
			t.Errorf("CopyOut: %v", err)
			return
		}
		n, err := pi.Write(g, p, p.Space, 0, len(msg))
		if err != kerr.OK || n != len(msg) {
			t.Errorf("Write: n=%d err=%v", n, err)
		}
	}
	reader := func(g *spinlock.Gate, p *proc.Proc) {
		if _, ok := p.Space.Grow(g, 0, frame.PageSize, vm.PteW); !ok {
			t.Errorf("Grow failed")
			return
		}
		n, err := pi.Read(g, p, p.Space, 0, len(msg))
		if err != kerr.OK {
			t.Errorf("Read: %v", err)
			return
		}
		got := make([]byte, n)
		if cerr := p.Space.CopyIn(g, got, 0); cerr != kerr.OK {
			t.Errorf("CopyIn: %v", cerr)
			return
		}
		result <- got
	}

	if _, err := tbl.Spawn(spinlock.NewGate(), "writer", writer); err != kerr.OK {
		t.Fatalf("Spawn writer: %v", err)
	}
	if _, err := tbl.Spawn(spinlock.NewGate(), "reader", reader); err != kerr.OK {
		t.Fatalf("Spawn reader: %v", err)
	}

	select {
	case got := <-result:
		if !bytes.Equal(got, msg) {
			t.Fatalf("got %q, want %q", got, msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reader")
	}
}

func TestWriteBlocksWhenFullThenDrains(t *testing.T) {
	tbl, stop := newTestTable(t, 4, 64)
	defer stop()

	pi := New(tbl)
	total := Size + 100
	written := make(chan int, 1)

	writer := func(g *spinlock.Gate, p *proc.Proc) {
		if _, ok := p.Space.Grow(g, 0, vm.VAddr(2*frame.PageSize), vm.PteW); !ok {
			t.Errorf("Grow failed")
			return
		}
		n, err := pi.Write(g, p, p.Space, 0, total)
		if err != kerr.OK {
			t.Errorf("Write: %v", err)
		}
		written <- n
	}
	if _, err := tbl.Spawn(spinlock.NewGate(), "writer", writer); err != kerr.OK {
		t.Fatalf("Spawn writer: %v", err)
	}

	time.Sleep(30 * time.Millisecond) // writer should now be blocked, buffer full

	reader := func(g *spinlock.Gate, p *proc.Proc) {
		if _, ok := p.Space.Grow(g, 0, vm.VAddr(2*frame.PageSize), vm.PteW); !ok {
			t.Errorf("Grow failed")
			return
		}
		remaining := total
		for remaining > 0 {
			n, err := pi.Read(g, p, p.Space, 0, remaining)
			if err != kerr.OK {
				t.Errorf("Read: %v", err)
				return
			}
			remaining -= n
		}
	}
	if _, err := tbl.Spawn(spinlock.NewGate(), "reader", reader); err != kerr.OK {
		t.Fatalf("Spawn reader: %v", err)
	}

	select {
	case n := <-written:
		if n != total {
			t.Fatalf("writer wrote %d bytes, want %d", n, total)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out: writer never drained")
	}
}

func TestReadReturnsEOFWhenWriterCloses(t *testing.T) {
	tbl, stop := newTestTable(t, 4, 32)
	defer stop()

	pi := New(tbl)
	done := make(chan int, 1)

	reader := func(g *spinlock.Gate, p *proc.Proc) {
		if _, ok := p.Space.Grow(g, 0, frame.PageSize, vm.PteW); !ok {
			t.Errorf("Grow failed")
			return
		}
		n, err := pi.Read(g, p, p.Space, 0, 10)
		if err != kerr.OK {
			t.Errorf("Read: %v", err)
			return
		}
		done <- n
	}
	if _, err := tbl.Spawn(spinlock.NewGate(), "reader", reader); err != kerr.OK {
		t.Fatalf("Spawn reader: %v", err)
	}

	time.Sleep(20 * time.Millisecond) // reader should now be blocked on an empty pipe
	pi.Close(spinlock.NewGate(), true)

	select {
	case n := <-done:
		if n != 0 {
			t.Fatalf("Read returned %d bytes after writer closed, want 0", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out: reader never woke on writer close")
	}
}
