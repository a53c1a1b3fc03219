// Package stats collects per-phase compile timings across one driver
// invocation and renders a -ftime-report summary, mirroring the
// teacher's Report/NewReport pattern (qjcg-driving's main.go) with
// gonum/stat computing the mean and standard deviation instead of
// survey scores.
package stats

import (
	"fmt"
	"time"

	"github.com/gonum/stat"
)

// Phase names a pipeline stage whose wall-clock duration is sampled once
// per input file.
type Phase string

const (
	PhaseLex        Phase = "lex"
	PhasePreprocess Phase = "preprocess"
	PhaseParse      Phase = "parse"
	PhaseCodegen    Phase = "codegen"
)

var phaseOrder = []Phase{PhaseLex, PhasePreprocess, PhaseParse, PhaseCodegen}

// Collector accumulates Samples across every file compiled in one driver
// invocation. Zero value is ready to use.
type Collector struct {
	samples map[Phase][]float64
}

// Start begins timing one phase's work on one file; call the returned
// func when that work finishes to record the elapsed seconds.
func (c *Collector) Start(p Phase) func() {
	begin := time.Now()
	return func() {
		c.record(p, time.Since(begin).Seconds())
	}
}

func (c *Collector) record(p Phase, seconds float64) {
	if c.samples == nil {
		c.samples = map[Phase][]float64{}
	}
	c.samples[p] = append(c.samples[p], seconds)
}

// PhaseStat is one phase's aggregate timing across every sampled file.
type PhaseStat struct {
	Phase   Phase
	Samples int
	Mean    float64
	StdDev  float64
}

// Report summarizes every phase's timing statistics, built once per
// driver invocation from a Collector's accumulated samples.
type Report struct {
	Phases []PhaseStat
	Total  float64
}

// NewReport computes mean/stddev per phase via gonum/stat, per the
// teacher's NewReport(surveys) → stat.MeanStdDev(...) pattern.
func NewReport(c *Collector) Report {
	var r Report
	for _, p := range phaseOrder {
		xs := c.samples[p]
		if len(xs) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(xs, nil)
		r.Phases = append(r.Phases, PhaseStat{
			Phase:   p,
			Samples: len(xs),
			Mean:    mean,
			StdDev:  std,
		})
		r.Total += mean * float64(len(xs))
	}
	return r
}

// String renders the report in a fixed-width column layout, per the
// teacher's Report.String().
func (r Report) String() string {
	s := fmt.Sprintf("%-11s %8s %10s %10s\n", "phase", "files", "mean(ms)", "stddev(ms)")
	for _, p := range r.Phases {
		s += fmt.Sprintf("%-11s %8d %10.3f %10.3f\n", p.Phase, p.Samples, p.Mean*1000, p.StdDev*1000)
	}
	s += fmt.Sprintf("%-11s %8s %10.3f\n", "total", "", r.Total*1000)
	return s
}
