// Package klog is the kernel's one logging surface. It intentionally stays
// thin: the teacher kernel logs with bare fmt.Printf and reserves panic for
// anything that is a programming bug rather than a data-dependent failure
// (spec.md §7), and this package keeps that same two-tier shape instead of
// layering a structured-logging framework underneath an OS core that has no
// log shipping, no levels beyond "diagnostic" and "fatal", and no reader
// except whoever is staring at the console.
package klog

import (
	"fmt"
	"log"
	"os"
)

var std = log.New(os.Stdout, "", 0)

// Printf prints a diagnostic line, matching the teacher's printf-everywhere
// style (e.g. mem.Phys_init's "Reserved %v pages" line).
func Printf(format string, args ...any) {
	std.Printf(format, args...)
}

// Fatal reports msg and panics, so the kernel halts with a diagnostic the
// way panic(msg) does in the original C (spec.md §7's "invariant violation"
// class). It never returns.
func Fatal(msg string) {
	panic(msg)
}

// Fatalf is Fatal with formatting.
func Fatalf(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}
