package scenario

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/kuitang/pulsecheck/internal/browser"
	"github.com/kuitang/pulsecheck/internal/capture"
	"github.com/kuitang/pulsecheck/internal/errs"
	"github.com/kuitang/pulsecheck/internal/interact"
	"github.com/kuitang/pulsecheck/internal/obs"
)

// Page is the live page a session exposes to steps and to capture.
type Page interface {
	interact.Page
	capture.Screenshotter
}

// Session is an acquired browser session. Release must be safe to call more
// than once.
type Session interface {
	Page() Page
	Release()
}

// AcquireFunc opens a session for one run.
type AcquireFunc func(ctx context.Context) (Session, error)

// Browser acquires a real Playwright session per run.
func Browser(cfg browser.Config) AcquireFunc {
	return func(ctx context.Context) (Session, error) {
		s, err := browser.Acquire(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return browserSession{s: s}, nil
	}
}

type browserSession struct {
	s *browser.Session
}

func (b browserSession) Page() Page { return b.s.Page() }
func (b browserSession) Release()   { b.s.Release() }

// Status is the terminal state of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Result is the single outcome of a run.
type Result struct {
	Scenario string
	RunID    string
	Status   Status
	// StepIndex is the zero-based index of the failing step, or -1 when the
	// run failed before any step executed.
	StepIndex int
	// StepLabel describes the failing step.
	StepLabel string
	Cause     error
	// FailureArtifact is where the failure screenshot was written, or "" when
	// the run succeeded or capture itself failed.
	FailureArtifact string
	Checkpoints     []capture.Artifact
	Duration        time.Duration
}

// OK reports whether every step completed.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// ExitCode maps the result to a process exit status.
func (r Result) ExitCode() int {
	if r.OK() {
		return errs.ExitOK
	}
	return errs.ExitCode(errs.CodeOf(r.Cause))
}

// Options configures a Runner.
type Options struct {
	// Interact sets the primitives' default timeouts.
	Interact interact.Options
	// Trace receives the per-step log; nil disables it.
	Trace io.Writer
	// Color enables ANSI colour in the trace.
	Color bool
	// NewRunID overrides run ID generation in tests.
	NewRunID func() string
}

// Runner executes scenarios one at a time, each in its own session.
type Runner struct {
	acquire AcquireFunc
	sink    capture.Sink
	opts    Options
}

// NewRunner creates a runner acquiring sessions with acquire and writing
// artifacts to sink.
func NewRunner(acquire AcquireFunc, sink capture.Sink, opts Options) *Runner {
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	return &Runner{acquire: acquire, sink: sink, opts: opts}
}

// Run executes sc and returns exactly one Result. The session, once acquired,
// is released on every path, after any failure screenshot has been taken.
func (r *Runner) Run(ctx context.Context, sc Scenario) Result {
	start := time.Now()
	runID := r.opts.NewRunID()
	ctx = obs.WithRun(ctx, runID, sc.Name)
	log := obs.From(ctx).With("pkg", "scenario")
	trace := newTracer(r.opts.Trace, r.opts.Color)

	res := Result{Scenario: sc.Name, RunID: runID, StepIndex: -1}
	finish := func() Result {
		res.Duration = time.Since(start)
		trace.end(res)
		if res.OK() {
			log.Info("run succeeded", "duration_ms", res.Duration.Milliseconds(), "checkpoints", len(res.Checkpoints))
		} else {
			log.Error("run failed",
				"step_index", res.StepIndex,
				"step", res.StepLabel,
				"code", string(errs.CodeOf(res.Cause)),
				"error", res.Cause,
				"screenshot", res.FailureArtifact,
				"duration_ms", res.Duration.Milliseconds(),
			)
		}
		return res
	}

	trace.begin(sc, runID)
	if err := sc.Validate(); err != nil {
		res.Status = StatusFailed
		res.Cause = err
		return finish()
	}

	sess, err := r.acquireSession(ctx)
	if err != nil {
		res.Status = StatusFailed
		res.Cause = err
		return finish()
	}
	defer sess.Release()

	page := sess.Page()
	rec := capture.NewRecorder(page, r.sink, sc.Name)
	env := &Env{
		Actor:    interact.NewActor(page, r.opts.Interact),
		Recorder: rec,
		BaseURL:  sc.BaseURL,
	}

	for i, step := range sc.Steps {
		stepCtx := obs.WithStep(ctx, i+1)
		label := step.Label()
		trace.stepStart(i, len(sc.Steps), label)
		logStep(stepCtx, step)

		stepStart := time.Now()
		err := runStep(stepCtx, env, step)
		trace.stepDone(time.Since(stepStart), err)
		if err != nil {
			res.Status = StatusFailed
			res.StepIndex = i
			res.StepLabel = label
			res.Cause = err
			res.FailureArtifact = rec.CaptureFailure(stepCtx, err)
			res.Checkpoints = checkpoints(rec)
			return finish()
		}
	}

	res.Status = StatusSuccess
	res.Checkpoints = checkpoints(rec)
	return finish()
}

func (r *Runner) acquireSession(ctx context.Context) (sess Session, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			sess = nil
			err = errs.New(errs.SessionStart, fmt.Sprintf("session start panicked: %v", rec))
		}
	}()
	sess, err = r.acquire(ctx)
	if err != nil {
		if !errs.Is(err, errs.SessionStart) {
			err = errs.Wrap(errs.SessionStart, "could not start browser session", err)
		}
		return nil, err
	}
	if sess == nil {
		return nil, errs.New(errs.SessionStart, "no session returned")
	}
	return sess, nil
}

// runStep executes one step, turning a panic into an internal error.
func runStep(ctx context.Context, env *Env, step Step) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			obs.From(ctx).Error("step panicked", "panic", rec, "stack", string(debug.Stack()))
			err = errs.New(errs.Internal, fmt.Sprintf("step panicked: %v", rec))
		}
	}()
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.Internal, "run cancelled", err)
	}
	return step.Action.Execute(ctx, env)
}

func logStep(ctx context.Context, step Step) {
	log := obs.From(ctx).With("pkg", "scenario")
	switch a := step.Action.(type) {
	case Fill:
		log.Info("step", "action", a.String(), "value", a.LogValue())
	default:
		log.Info("step", "action", a.String())
	}
}

func checkpoints(rec *capture.Recorder) []capture.Artifact {
	var out []capture.Artifact
	for _, a := range rec.Artifacts() {
		if !a.Failure {
			out = append(out, a)
		}
	}
	return out
}
