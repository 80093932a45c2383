package diag

import (
	"fmt"
	"io"

	"github.com/google/pprof/profile"

	"rvkernel/internal/frame"
)

// Snapshot exports a frame manager's reference-count occupancy as a
// pprof-format profile, so `go tool pprof` can inspect allocator pressure
// from a property-test run the same way it would inspect a heap profile —
// the teacher's pprof dependency otherwise has no kernel-internal state to
// point at, since this module has no running Go heap of its own to profile.
func Snapshot(fm *frame.Manager, w io.Writer) error {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "frames", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "frame_manager", Unit: "snapshot"},
		Period:     1,
	}

	fn := &profile.Function{ID: 1, Name: "frame.Manager", SystemName: "frame.Manager"}
	loc := &profile.Location{ID: 1, Line: []profile.Line{{Function: fn, Line: 1}}}
	p.Function = []*profile.Function{fn}
	p.Location = []*profile.Location{loc}

	for _, bucket := range Occupancy(fm) {
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{int64(bucket.Frames)},
			Label:    map[string][]string{"refcount": {fmt.Sprint(bucket.RefCount)}},
		})
	}

	if err := p.CheckValid(); err != nil {
		return err
	}
	return p.Write(w)
}
