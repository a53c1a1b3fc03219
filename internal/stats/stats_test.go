package stats

import (
	"strings"
	"testing"
)

func TestReportOmitsUnsampledPhases(t *testing.T) {
	var c Collector
	c.record(PhaseParse, 0.01)
	c.record(PhaseParse, 0.03)

	r := NewReport(&c)
	if len(r.Phases) != 1 {
		t.Fatalf("expected exactly one sampled phase, got %d", len(r.Phases))
	}
	if r.Phases[0].Phase != PhaseParse || r.Phases[0].Samples != 2 {
		t.Fatalf("unexpected phase stat: %+v", r.Phases[0])
	}
	if r.Phases[0].Mean < 0.019 || r.Phases[0].Mean > 0.021 {
		t.Fatalf("unexpected mean: %v", r.Phases[0].Mean)
	}
}

func TestReportStringContainsEveryPhase(t *testing.T) {
	var c Collector
	c.record(PhaseLex, 0.001)
	c.record(PhaseCodegen, 0.002)

	out := NewReport(&c).String()
	if !strings.Contains(out, "lex") || !strings.Contains(out, "codegen") || !strings.Contains(out, "total") {
		t.Fatalf("report missing expected sections:\n%s", out)
	}
}

func TestStartRecordsElapsedTime(t *testing.T) {
	var c Collector
	done := c.Start(PhaseLex)
	done()
	if len(c.samples[PhaseLex]) != 1 {
		t.Fatalf("expected one sample recorded, got %d", len(c.samples[PhaseLex]))
	}
}
