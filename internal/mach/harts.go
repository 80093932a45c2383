package mach

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Harts coordinates the simulated cores' bring-up and shutdown, standing in
// for the original's start()/mpmain() SMP bring-up sequence (spec.md §4.1's
// "one Gate per hart") — here each hart is one goroutine instead of one
// physical core, so Boot launches them and waits for either all of them to
// return or the first one to fail.
type Harts struct {
	n int
}

// NewHarts returns a Harts coordinator for cfg.Harts simulated cores.
func NewHarts(cfg Config) *Harts {
	n := cfg.Harts
	if n <= 0 {
		n = 1
	}
	return &Harts{n: n}
}

// Count returns the number of simulated harts.
func (h *Harts) Count() int { return h.n }

// Boot runs run(ctx, hartID) concurrently for every hart, cancelling ctx and
// returning the first non-nil error (or first panic, recovered and
// rewrapped) any of them produce. It returns nil only once every hart's run
// function has returned nil, mirroring mpmain's "this core is done"
// handshake without the original's explicit barrier/counter.
func (h *Harts) Boot(ctx context.Context, run func(ctx context.Context, hart int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for id := 0; id < h.n; id++ {
		id := id
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("mach: hart %d panicked: %v", id, r)
				}
			}()
			return run(gctx, id)
		})
	}
	return g.Wait()
}
