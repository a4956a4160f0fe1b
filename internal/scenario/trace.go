package scenario

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// tracer prints the human-readable step log: one line per step.
type tracer struct {
	w     io.Writer
	ok    *color.Color
	fail  *color.Color
	faint *color.Color
}

func newTracer(w io.Writer, colored bool) *tracer {
	t := &tracer{
		w:     w,
		ok:    color.New(color.FgGreen, color.Bold),
		fail:  color.New(color.FgRed, color.Bold),
		faint: color.New(color.Faint),
	}
	for _, c := range []*color.Color{t.ok, t.fail, t.faint} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return t
}

func (t *tracer) begin(sc Scenario, runID string) {
	if t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "%s %s\n", sc.Name, t.faint.Sprintf("(run %s, %d steps)", runID, len(sc.Steps)))
}

func (t *tracer) stepStart(index, total int, label string) {
	if t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "  [%d/%d] %s ... ", index+1, total, label)
}

func (t *tracer) stepDone(elapsed time.Duration, err error) {
	if t.w == nil {
		return
	}
	if err != nil {
		fmt.Fprintf(t.w, "%s %s\n", t.fail.Sprint("FAIL"), t.faint.Sprintf("(%s)", round(elapsed)))
		fmt.Fprintf(t.w, "        %s\n", err)
		return
	}
	fmt.Fprintf(t.w, "%s %s\n", t.ok.Sprint("ok"), t.faint.Sprintf("(%s)", round(elapsed)))
}

func (t *tracer) end(res Result) {
	if t.w == nil {
		return
	}
	if res.OK() {
		fmt.Fprintf(t.w, "%s %s in %s, %d checkpoint(s)\n", t.ok.Sprint("PASS"), res.Scenario, round(res.Duration), len(res.Checkpoints))
		for _, a := range res.Checkpoints {
			fmt.Fprintf(t.w, "  %s %s\n", t.faint.Sprint("screenshot"), a.Location)
		}
		return
	}
	if res.StepIndex < 0 {
		fmt.Fprintf(t.w, "%s %s before the first step: %v\n", t.fail.Sprint("FAIL"), res.Scenario, res.Cause)
		return
	}
	fmt.Fprintf(t.w, "%s %s at step %d: %v\n", t.fail.Sprint("FAIL"), res.Scenario, res.StepIndex+1, res.Cause)
	if res.FailureArtifact != "" {
		fmt.Fprintf(t.w, "  %s %s\n", t.faint.Sprint("error screenshot"), res.FailureArtifact)
	}
}

func round(d time.Duration) time.Duration {
	return d.Round(10 * time.Millisecond)
}
