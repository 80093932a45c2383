// Command lockcheck runs the spec.md §5 lock-ordering check over a set
// of packages, the same way `go vet` runs a single analyzer:
//
//	lockcheck ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"rvkernel/internal/lockcheck"
)

func main() {
	singlechecker.Main(lockcheck.Analyzer)
}
