package diag

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"rvkernel/internal/buddy"
	"rvkernel/internal/frame"
	"rvkernel/internal/kerr"
	"rvkernel/internal/mach"
	"rvkernel/internal/proc"
	"rvkernel/internal/spinlock"
)

func TestProcReportListsSpawnedProcess(t *testing.T) {
	size := 32 * frame.PageSize
	a, err := mach.NewArena(buddy.Addr(0), size)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	defer a.Close()
	fm := frame.NewManager(a, buddy.Addr(0), buddy.Addr(size))
	tbl := proc.NewTable(4, fm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tbl.Scheduler(ctx, spinlock.NewGate())

	block := make(chan struct{})
	defer close(block)
	body := func(g *spinlock.Gate, p *proc.Proc) { <-block }
	if _, err := tbl.Spawn(spinlock.NewGate(), "looker", body); err != kerr.OK {
		t.Fatalf("Spawn: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	report := ProcReport(tbl, spinlock.NewGate())
	if !strings.Contains(report, "looker") {
		t.Fatalf("report missing process name: %q", report)
	}
	if !strings.Contains(report, "PID") {
		t.Fatalf("report missing header: %q", report)
	}
}

func TestBuddyReportShowsClasses(t *testing.T) {
	a := buddy.Init(0, 64*1024, 4096)
	g := spinlock.NewGate()
	report := BuddyReport(a, g)
	if !strings.Contains(report, "class 0:") {
		t.Fatalf("report missing leaf class: %q", report)
	}
}

func TestOccupancyBucketsByRefCount(t *testing.T) {
	size := 8 * frame.PageSize
	arena, err := mach.NewArena(buddy.Addr(0), size)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	defer arena.Close()
	fm := frame.NewManager(arena, buddy.Addr(0), buddy.Addr(size))
	g := spinlock.NewGate()

	f, ok := fm.Alloc(g)
	if !ok {
		t.Fatal("Alloc failed")
	}
	fm.Up(f)

	buckets := Occupancy(fm)
	var sawTwo bool
	for _, b := range buckets {
		if b.RefCount == 2 {
			sawTwo = true
			if b.Frames != 1 {
				t.Fatalf("expected exactly 1 frame at refcount 2, got %d", b.Frames)
			}
		}
	}
	if !sawTwo {
		t.Fatalf("expected a refcount-2 bucket, got %v", buckets)
	}
}

func TestSnapshotWritesValidProfile(t *testing.T) {
	size := 4 * frame.PageSize
	arena, err := mach.NewArena(buddy.Addr(0), size)
	if err != nil {
		t.Fatalf("NewArena: %v", err)
	}
	defer arena.Close()
	fm := frame.NewManager(arena, buddy.Addr(0), buddy.Addr(size))
	g := spinlock.NewGate()
	if _, ok := fm.Alloc(g); !ok {
		t.Fatal("Alloc failed")
	}

	var buf bytes.Buffer
	if err := Snapshot(fm, &buf); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("Snapshot wrote no bytes")
	}
}
