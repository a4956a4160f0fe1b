package scenario

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/pulsecheck/internal/capture"
	"github.com/kuitang/pulsecheck/internal/errs"
	"github.com/kuitang/pulsecheck/internal/interact"
)

const base = "http://app.test"

var fastInteract = interact.Options{
	ActionTimeout: 300 * time.Millisecond,
	NavTimeout:    300 * time.Millisecond,
	PollInterval:  10 * time.Millisecond,
}

// fakeSession wraps a FakePage and refuses screenshots once released, so
// tests can observe capture-before-teardown ordering.
type fakeSession struct {
	page      *interact.FakePage
	releases  atomic.Int32
	lateShots atomic.Int32
}

func (s *fakeSession) Page() Page { return guardedPage{FakePage: s.page, sess: s} }
func (s *fakeSession) Release()   { s.releases.Add(1) }

type guardedPage struct {
	*interact.FakePage
	sess *fakeSession
}

func (g guardedPage) Screenshot(fullPage bool) ([]byte, error) {
	if g.sess.releases.Load() > 0 {
		g.sess.lateShots.Add(1)
		return nil, errors.New("target closed")
	}
	return g.FakePage.Screenshot(fullPage)
}

func acquireFake(s *fakeSession) AcquireFunc {
	return func(context.Context) (Session, error) { return s, nil }
}

func newTestRunner(acquire AcquireFunc, fs afero.Fs, trace *bytes.Buffer) *Runner {
	opts := Options{Interact: fastInteract, NewRunID: func() string { return "run-1" }}
	if trace != nil {
		opts.Trace = trace
	}
	return NewRunner(acquire, capture.NewDirSink(fs, "/out"), opts)
}

// probe is a scripted step that records its execution.
type probe struct {
	id     int
	fail   bool
	panics bool
	ran    *[]int
}

func (p probe) Execute(context.Context, *Env) error {
	*p.ran = append(*p.ran, p.id)
	if p.panics {
		panic("probe exploded")
	}
	if p.fail {
		return errs.New(errs.AssertionTimeout, fmt.Sprintf("probe %d failed", p.id))
	}
	return nil
}

func (p probe) Validate() error { return nil }
func (p probe) String() string  { return fmt.Sprintf("probe %d", p.id) }

func testRun_FailFastAndReleaseOnce(t *rapid.T) {
	n := rapid.IntRange(1, 10).Draw(t, "steps")
	failAt := rapid.IntRange(-1, n-1).Draw(t, "failAt")
	panics := rapid.Bool().Draw(t, "panics")

	var ran []int
	var steps []Step
	wantCheckpoints := 0
	var wantRan []int
	for i := 0; i < n; i++ {
		if i == failAt {
			steps = append(steps, Step{Action: probe{id: i, fail: true, panics: panics, ran: &ran}})
			wantRan = append(wantRan, i)
			continue
		}
		if rapid.Bool().Draw(t, fmt.Sprintf("checkpoint%d", i)) {
			steps = append(steps, Step{Action: Checkpoint{Name: fmt.Sprintf("cp%d", i)}})
			if failAt < 0 || i < failAt {
				wantCheckpoints++
			}
			continue
		}
		steps = append(steps, Step{Action: probe{id: i, ran: &ran}})
		if failAt < 0 || i < failAt {
			wantRan = append(wantRan, i)
		}
	}

	sess := &fakeSession{page: interact.NewFakePage(base + "/")}
	fs := afero.NewMemMapFs()
	res := newTestRunner(acquireFake(sess), fs, nil).Run(context.Background(), Scenario{Name: "prop", Steps: steps})

	if got := sess.releases.Load(); got != 1 {
		t.Fatalf("release count = %d, want 1", got)
	}
	if got := sess.lateShots.Load(); got != 0 {
		t.Fatalf("%d screenshots attempted after release", got)
	}
	if fmt.Sprint(ran) != fmt.Sprint(wantRan) {
		t.Fatalf("executed %v, want %v", ran, wantRan)
	}
	if len(res.Checkpoints) != wantCheckpoints {
		t.Fatalf("checkpoints = %d, want %d", len(res.Checkpoints), wantCheckpoints)
	}
	if failAt < 0 {
		if !res.OK() || res.Cause != nil || res.FailureArtifact != "" {
			t.Fatalf("expected success, got %+v", res)
		}
		return
	}
	if res.OK() || res.StepIndex != failAt {
		t.Fatalf("expected failure at %d, got status=%s index=%d", failAt, res.Status, res.StepIndex)
	}
	wantCode := errs.AssertionTimeout
	if panics {
		wantCode = errs.Internal
	}
	if got := errs.CodeOf(res.Cause); got != wantCode {
		t.Fatalf("cause code = %s, want %s", got, wantCode)
	}
	if res.FailureArtifact == "" {
		t.Fatal("failed run has no failure screenshot")
	}
	if ok, _ := afero.Exists(fs, res.FailureArtifact); !ok {
		t.Fatalf("failure screenshot %s not written", res.FailureArtifact)
	}
}

func TestRun_FailFastAndReleaseOnce(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testRun_FailFastAndReleaseOnce)
}

func TestRun_SessionStartFailure(t *testing.T) {
	t.Parallel()
	var ran []int
	acquire := func(context.Context) (Session, error) {
		return nil, errors.New("executable doesn't exist")
	}
	res := newTestRunner(acquire, afero.NewMemMapFs(), nil).Run(context.Background(), Scenario{
		Name:  "s",
		Steps: []Step{{Action: probe{id: 0, ran: &ran}}},
	})

	require.False(t, res.OK())
	require.Equal(t, -1, res.StepIndex)
	require.True(t, errs.Is(res.Cause, errs.SessionStart))
	require.Empty(t, ran)
	require.Empty(t, res.FailureArtifact)
	require.Equal(t, errs.ExitFailed, res.ExitCode())
}

func TestRun_AcquirePanicIsSessionStart(t *testing.T) {
	t.Parallel()
	acquire := func(context.Context) (Session, error) { panic("driver crashed") }
	res := newTestRunner(acquire, afero.NewMemMapFs(), nil).Run(context.Background(), Scenario{
		Name:  "s",
		Steps: []Step{{Action: Checkpoint{Name: "x"}}},
	})
	require.Equal(t, -1, res.StepIndex)
	require.True(t, errs.Is(res.Cause, errs.SessionStart))
}

func TestRun_InvalidScenarioNeverAcquires(t *testing.T) {
	t.Parallel()
	acquired := false
	acquire := func(context.Context) (Session, error) {
		acquired = true
		return nil, errors.New("unreachable")
	}
	res := newTestRunner(acquire, afero.NewMemMapFs(), nil).Run(context.Background(), Scenario{
		Name:  "bad",
		Steps: []Step{{Action: Click{Target: interact.Role("", "次へ")}}},
	})
	require.False(t, acquired)
	require.True(t, errs.Is(res.Cause, errs.InvalidArgument))
	require.Equal(t, errs.ExitConfig, res.ExitCode())
}

// Scenario A: a button becomes enabled partway through its timeout.
func TestRun_ButtonEnabledLate(t *testing.T) {
	t.Parallel()
	page := interact.NewFakePage(base + "/")
	button := &interact.FakeElement{EnabledAfter: 120 * time.Millisecond}
	page.Add(interact.Role("button", "次へ"), button)
	sess := &fakeSession{page: page}

	res := newTestRunner(acquireFake(sess), afero.NewMemMapFs(), nil).Run(context.Background(), Scenario{
		Name: "late-enable",
		Steps: []Step{{
			Description: "click 次へ",
			Action:      Click{Target: interact.Role("button", "次へ"), Timeout: time.Second},
		}},
	})
	require.True(t, res.OK(), "cause: %v", res.Cause)
	require.Equal(t, 1, button.Clicks())
	require.EqualValues(t, 1, sess.releases.Load())
}

func TestRun_ButtonNeverEnabled(t *testing.T) {
	t.Parallel()
	page := interact.NewFakePage(base + "/")
	button := &interact.FakeElement{EnabledAfter: interact.Never}
	page.Add(interact.Role("button", "次へ"), button)
	sess := &fakeSession{page: page}

	res := newTestRunner(acquireFake(sess), afero.NewMemMapFs(), nil).Run(context.Background(), Scenario{
		Name:  "never-enabled",
		Steps: []Step{{Action: Click{Target: interact.Role("button", "次へ")}}},
	})
	require.Equal(t, 0, res.StepIndex)
	require.True(t, errs.Is(res.Cause, errs.InteractionTimeout))
	require.Equal(t, 0, button.Clicks())
}

// Scenario B: the app lands on /error instead of /home.
func TestRun_WrongLandingPageCapturesBeforeTeardown(t *testing.T) {
	t.Parallel()
	page := interact.NewFakePage(base + "/")
	page.Add(interact.Role("button", "無料で学習を始める"), &interact.FakeElement{
		OnClick: func() { page.SetURL(base + "/error") },
	})
	sess := &fakeSession{page: page}
	fs := afero.NewMemMapFs()
	var ran []int

	res := newTestRunner(acquireFake(sess), fs, nil).Run(context.Background(), Scenario{
		Name: "signup",
		Steps: []Step{
			{Action: Click{Target: interact.Role("button", "無料で学習を始める")}},
			{Action: AssertURL{Pattern: interact.ExactURL(base + "/home")}},
			{Action: probe{id: 2, ran: &ran}},
		},
	})

	require.Equal(t, StatusFailed, res.Status)
	require.Equal(t, 1, res.StepIndex)
	require.True(t, errs.Is(res.Cause, errs.AssertionTimeout))
	require.Contains(t, res.Cause.Error(), base+"/error")
	require.Empty(t, ran)

	require.Equal(t, "/out/signup_error.png", res.FailureArtifact)
	data, err := afero.ReadFile(fs, res.FailureArtifact)
	require.NoError(t, err)
	require.Contains(t, string(data), "url="+base+"/error")
	require.EqualValues(t, 1, sess.releases.Load())
	require.Zero(t, sess.lateShots.Load())
}

// Scenario C: the benchmark video renders only when camera access is granted.
func benchmarkSession(permissions []string) *fakeSession {
	page := interact.NewFakePage(base + "/")
	page.Add(interact.ExactText("Pulse Score"), &interact.FakeElement{})
	for _, p := range permissions {
		if p == "camera" {
			page.Add(interact.CSS("video"), &interact.FakeElement{VisibleAfter: 50 * time.Millisecond})
		}
	}
	return &fakeSession{page: page}
}

func benchmarkScenario() Scenario {
	return Scenario{
		Name:    "benchmark",
		BaseURL: base,
		Steps: []Step{
			{Action: Navigate{URL: "/dev/benchmark"}},
			{Action: AssertVisible{Target: interact.ExactText("Pulse Score")}},
			{Action: AssertVisible{Target: interact.CSS("video")}},
			{Action: Checkpoint{Name: "benchmark_verification"}},
		},
	}
}

func TestRun_VideoVisibleWithCameraPermission(t *testing.T) {
	t.Parallel()
	sess := benchmarkSession([]string{"camera"})
	res := newTestRunner(acquireFake(sess), afero.NewMemMapFs(), nil).Run(context.Background(), benchmarkScenario())

	require.True(t, res.OK(), "cause: %v", res.Cause)
	require.Equal(t, []string{base + "/dev/benchmark"}, sess.page.Navigations())
	require.Len(t, res.Checkpoints, 1)
	require.Equal(t, "/out/benchmark_benchmark_verification.png", res.Checkpoints[0].Location)
}

func TestRun_VideoMissingWithoutCameraPermission(t *testing.T) {
	t.Parallel()
	sess := benchmarkSession(nil)
	res := newTestRunner(acquireFake(sess), afero.NewMemMapFs(), nil).Run(context.Background(), benchmarkScenario())

	require.False(t, res.OK())
	require.Equal(t, 2, res.StepIndex)
	require.True(t, errs.Is(res.Cause, errs.AssertionTimeout))
	require.Empty(t, res.Checkpoints)
	require.NotEmpty(t, res.FailureArtifact)
}

func TestRun_NavigationErrorStatus(t *testing.T) {
	t.Parallel()
	page := interact.NewFakePage(base + "/")
	page.Route(base+"/dev/benchmark", 500)
	sess := &fakeSession{page: page}

	res := newTestRunner(acquireFake(sess), afero.NewMemMapFs(), nil).Run(context.Background(), benchmarkScenario())
	require.Equal(t, 0, res.StepIndex)
	require.True(t, errs.Is(res.Cause, errs.Navigation))
}

func TestRun_TraceLines(t *testing.T) {
	t.Parallel()
	var trace bytes.Buffer
	var ran []int
	sess := &fakeSession{page: interact.NewFakePage(base + "/")}
	res := newTestRunner(acquireFake(sess), afero.NewMemMapFs(), &trace).Run(context.Background(), Scenario{
		Name: "traced",
		Steps: []Step{
			{Description: "open the landing page", Action: probe{id: 0, ran: &ran}},
			{Action: probe{id: 1, fail: true, ran: &ran}},
		},
	})
	require.False(t, res.OK())

	out := trace.String()
	require.Contains(t, out, "traced (run run-1, 2 steps)")
	require.Contains(t, out, "[1/2] open the landing page ... ok")
	require.Contains(t, out, "[2/2] probe 1 ... FAIL")
	require.Contains(t, out, "FAIL traced at step 2: probe 1 failed")
	require.NotContains(t, out, "\x1b[")
	require.Equal(t, 2, strings.Count(out, "\n  ["))
}

func TestRun_CancelledContextFailsStep(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran []int
	sess := &fakeSession{page: interact.NewFakePage(base + "/")}

	res := newTestRunner(acquireFake(sess), afero.NewMemMapFs(), nil).Run(ctx, Scenario{
		Name:  "cancelled",
		Steps: []Step{{Action: probe{id: 0, ran: &ran}}},
	})
	require.Equal(t, 0, res.StepIndex)
	require.Empty(t, ran)
	require.EqualValues(t, 1, sess.releases.Load())
}

func TestFill_StringAndLogValueHideSecrets(t *testing.T) {
	t.Parallel()
	f := Fill{Target: interact.Label("パスワード"), Value: "password123"}
	require.NotContains(t, f.String(), "password123")
	require.Equal(t, "[REDACTED len=11]", f.LogValue())

	email := Fill{Target: interact.Label("メールアドレス"), Value: "student_1@test.com"}
	require.Equal(t, `"student_1@test.com"`, email.LogValue())
}
