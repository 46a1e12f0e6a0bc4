// Command schedprof turns a scheduler tick-history dump into a pprof
// profile so it can be inspected with `go tool pprof` or rendered as a
// flame graph. It is the offline counterpart to kernel/sched's in-memory
// per-thread CPUUsageHistory ring: it reads a log of JSON records, one per
// completed time slice, and turns it into a profile with one pprof "location"
// per thread name, so time spent at each priority level across the run is
// visible the same way CPU time across call stacks would be in an ordinary
// Go profile.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/pprof/profile"
)

// sample is one record of a thread's completed (or partially completed, on
// a voluntary yield) time slice, carrying the values kernel/sched's
// finishSlice computes. The kernel in this tree does not write these
// records out.
type sample struct {
	Tick       uint64 `json:"tick"`
	ThreadName string `json:"thread"`
	Priority   uint8  `json:"priority"`
	CPUUsage   uint8  `json:"cpu_usage_pct"`
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[schedprof] error: %s\n", err.Error())
	os.Exit(1)
}

func readSamples(path string) ([]sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var samples []sample
	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		var s sample
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("%s: %s", path, err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// buildProfile converts per-slice samples into a pprof Profile with one
// Location/Function per thread name, each recorded Sample carrying the
// slice's CPU-usage percentage as its value and the priority/tick as
// labels.
func buildProfile(samples []sample) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "cpu_usage", Unit: "percent"},
		},
		PeriodType: &profile.ValueType{Type: "slice", Unit: "count"},
		Period:     1,
	}

	functions := make(map[string]*profile.Function)
	locations := make(map[string]*profile.Location)

	nextID := uint64(1)
	locationFor := func(name string) *profile.Location {
		if loc, ok := locations[name]; ok {
			return loc
		}

		fn := functions[name]
		if fn == nil {
			fn = &profile.Function{ID: nextID, Name: name, SystemName: name}
			nextID++
			functions[name] = fn
			p.Function = append(p.Function, fn)
		}

		loc := &profile.Location{
			ID:   nextID,
			Line: []profile.Line{{Function: fn}},
		}
		nextID++
		locations[name] = loc
		p.Location = append(p.Location, loc)
		return loc
	}

	for _, s := range samples {
		loc := locationFor(s.ThreadName)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{int64(s.CPUUsage)},
			Label: map[string][]string{
				"priority": {fmt.Sprintf("%d", s.Priority)},
			},
			NumLabel: map[string][]int64{
				"tick": {int64(s.Tick)},
			},
		})
	}

	return p
}

func main() {
	in := flag.String("in", "", "path to a JSON tick-history log (one record per line)")
	out := flag.String("out", "sched.pprof", "output path for the pprof profile")
	flag.Parse()

	if *in == "" {
		exit(fmt.Errorf("missing required -in flag"))
	}

	samples, err := readSamples(*in)
	if err != nil {
		exit(err)
	}

	p := buildProfile(samples)
	if err := p.CheckValid(); err != nil {
		exit(err)
	}

	f, err := os.Create(*out)
	if err != nil {
		exit(err)
	}
	defer f.Close()

	if err := p.Write(f); err != nil {
		exit(err)
	}

	fmt.Printf("wrote %d samples across %d threads to %s\n", len(samples), len(p.Function), *out)
}
