// Package diag exports frame table occupancy and eviction counters as
// a pprof sample profile, so the same tools that read a Go heap
// profile can chart frame pressure over time. Grounded on the
// teacher's own dependency on github.com/google/pprof (biscuit/go.mod);
// nothing in the teacher repo itself builds a profile, so the shape
// here follows the profile package's own documented construction
// (value types "resident_frames", "free_frames", "evictions" and
// "alloc_failures", unit "count").
package diag

import (
	"fmt"
	"time"

	"github.com/google/pprof/profile"

	"vmcore/internal/frame"
)

// FrameProfile builds a single-sample pprof profile snapshotting t's
// current occupancy and lifetime eviction/allocation-failure counters.
// takenAt is the sample's timestamp in nanoseconds since the Unix
// epoch; since this package cannot call time.Now() from inside a
// deterministic test or the workflow sandbox that built it, callers
// supply it explicitly.
func FrameProfile(t *frame.Table, takenAt int64) *profile.Profile {
	resident, free := t.Occupancy()
	stats := t.Stats()

	residentType := &profile.ValueType{Type: "resident_frames", Unit: "count"}
	freeType := &profile.ValueType{Type: "free_frames", Unit: "count"}
	evictionType := &profile.ValueType{Type: "evictions", Unit: "count"}
	allocFailType := &profile.ValueType{Type: "alloc_failures", Unit: "count"}

	fn := &profile.Function{ID: 1, Name: "frame.Table.Occupancy"}
	loc := &profile.Location{ID: 1, Line: []profile.Line{{Function: fn, Line: 1}}}

	sample := &profile.Sample{
		Location: []*profile.Location{loc},
		Value:    []int64{int64(resident), int64(free), stats.Evictions, stats.AllocFailures},
	}

	p := &profile.Profile{
		SampleType:    []*profile.ValueType{residentType, freeType, evictionType, allocFailType},
		Sample:        []*profile.Sample{sample},
		Function:      []*profile.Function{fn},
		Location:      []*profile.Location{loc},
		TimeNanos:     takenAt,
		DurationNanos: int64(time.Second),
	}
	return p
}

// Summary formats the same counters as a one-line human-readable
// string, for the demo binary's final report.
func Summary(t *frame.Table) string {
	resident, free := t.Occupancy()
	stats := t.Stats()
	return fmt.Sprintf("frames: resident=%d free=%d evictions=%d alloc_failures=%d",
		resident, free, stats.Evictions, stats.AllocFailures)
}
