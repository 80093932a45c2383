// Package diag formats kernel-internal state for human and tool
// consumption: a procdump-style process listing, a buddy-allocator
// occupancy report, and a pprof-format snapshot of frame reference counts.
// None of this is on the kernel's critical path — these are the
// spec.md §6 "external collaborator" equivalents of a console driver's
// formatting layer, grounded in original_source/kernel/process/proc.c's
// procdump() and kernel/buddy.c's bd_print().
package diag

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/width"

	"rvkernel/internal/buddy"
	"rvkernel/internal/frame"
	"rvkernel/internal/proc"
	"rvkernel/internal/spinlock"
)

var printer = message.NewPrinter(language.English)

// ProcReport renders proc.Table.Dump's lines into a column-aligned table
// (procdump), normalizing each process name to its canonical half-width
// form first so a name containing full-width characters (as could arrive
// from a non-ASCII console line in a real system) lines up the same as any
// other.
func ProcReport(t *proc.Table, g *spinlock.Gate) string {
	lines := t.Dump(g)
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-10s %s\n", "PID", "STATE", "NAME")
	for _, line := range lines {
		fields := strings.SplitN(line, " ", 3)
		if len(fields) != 3 {
			continue
		}
		name := width.Narrow.String(fields[2])
		fmt.Fprintf(&b, "%-6s %-10s %s\n", fields[0], fields[1], name)
	}
	return b.String()
}

// BuddyReport renders an allocator's per-size-class occupancy (bd_print),
// using printer to group large byte counts with thousands separators.
func BuddyReport(a *buddy.Allocator, g *spinlock.Gate) string {
	var b strings.Builder
	for _, c := range a.Report(g) {
		printer.Fprintf(&b, "class %d: block size %d, %d/%d free\n",
			c.Class, c.BlockSize, c.FreeCount, c.NumBlocks)
	}
	return b.String()
}

// FrameOccupancy summarizes a frame manager's reference counts by bucketing
// frames that share the same count, the input Snapshot's pprof export
// builds from.
type FrameOccupancy struct {
	RefCount int
	Frames   int
}

// Occupancy buckets a frame manager's current reference counts.
func Occupancy(fm *frame.Manager) []FrameOccupancy {
	counts := map[int32]int{}
	for _, c := range fm.RefSnapshot() {
		counts[c]++
	}
	out := make([]FrameOccupancy, 0, len(counts))
	for c, n := range counts {
		out = append(out, FrameOccupancy{RefCount: int(c), Frames: n})
	}
	return out
}
