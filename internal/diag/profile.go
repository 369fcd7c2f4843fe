package diag

import (
	"fmt"
	"io"

	"github.com/google/pprof/profile"
)

// Encode renders samples as a pprof profile.proto stream (spec §4.13:
// "encoded to github.com/google/pprof/profile format by a later
// non-IRQ task"). Each distinct RIP becomes one Location/Function
// pair; samples sharing a RIP share a Location, matching how pprof
// expects repeated call sites to be deduplicated.
func Encode(w io.Writer, samples []Sample) error {
	p := &profile.Profile{
		SampleType:        []*profile.ValueType{{Type: "samples", Unit: "count"}},
		PeriodType:        &profile.ValueType{Type: "cpu", Unit: "nanoseconds"},
		Period:            1,
		DefaultSampleType: "samples",
	}

	locByRIP := make(map[uint64]*profile.Location)
	for _, s := range samples {
		loc, ok := locByRIP[s.RIP]
		if !ok {
			fn := &profile.Function{
				ID:   uint64(len(p.Function)) + 1,
				Name: fmt.Sprintf("rip_%#x", s.RIP),
			}
			p.Function = append(p.Function, fn)
			loc = &profile.Location{
				ID:      uint64(len(p.Location)) + 1,
				Address: s.RIP,
				Line:    []profile.Line{{Function: fn}},
			}
			p.Location = append(p.Location, loc)
			locByRIP[s.RIP] = loc
		}
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{1},
			Label:    map[string][]string{},
			NumLabel: map[string][]int64{"cpu": {int64(s.CPUID)}, "tick": {int64(s.Tick)}},
			NumUnit:  map[string][]string{"cpu": {"id"}, "tick": {"count"}},
		})
	}

	if err := p.CheckValid(); err != nil {
		return fmt.Errorf("diag: invalid profile: %w", err)
	}
	return p.Write(w)
}
