// Package scenario sequences steps against one browser session and reduces
// the run to a single Result.
package scenario

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kuitang/pulsecheck/internal/capture"
	"github.com/kuitang/pulsecheck/internal/errs"
	"github.com/kuitang/pulsecheck/internal/interact"
	"github.com/kuitang/pulsecheck/internal/logutil"
	"github.com/kuitang/pulsecheck/internal/urlutil"
)

// Scenario is an ordered list of steps run against BaseURL.
type Scenario struct {
	Name        string
	Description string
	BaseURL     string
	Steps       []Step
}

// Step is one action plus the line printed for it in the trace.
type Step struct {
	Description string
	Action      Action
}

// Label returns the description, falling back to the action's own rendering.
func (s Step) Label() string {
	if d := strings.TrimSpace(s.Description); d != "" {
		return d
	}
	if s.Action == nil {
		return "(no action)"
	}
	return s.Action.String()
}

// Env is what actions run against.
type Env struct {
	Actor    *interact.Actor
	Recorder *capture.Recorder
	BaseURL  string
}

// Action is a single safe interaction.
type Action interface {
	Execute(ctx context.Context, env *Env) error
	Validate() error
	String() string
}

// Validate checks the scenario before any session is acquired.
func (s Scenario) Validate() error {
	var problems []string
	if strings.TrimSpace(s.Name) == "" {
		problems = append(problems, "name is required")
	}
	if s.BaseURL != "" && !urlutil.IsAbsolute(s.BaseURL) {
		problems = append(problems, fmt.Sprintf("base URL %q must be absolute", s.BaseURL))
	}
	if len(s.Steps) == 0 {
		problems = append(problems, "at least one step is required")
	}
	for i, step := range s.Steps {
		if step.Action == nil {
			problems = append(problems, fmt.Sprintf("step %d: missing action", i+1))
			continue
		}
		if err := step.Action.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("step %d: %v", i+1, err))
		}
	}
	if len(problems) > 0 {
		return errs.New(errs.InvalidArgument, "invalid scenario: "+strings.Join(problems, "; "))
	}
	return nil
}

// Navigate loads URL, resolved against the scenario base URL when relative.
type Navigate struct {
	URL     string
	Timeout time.Duration
}

func (a Navigate) Execute(ctx context.Context, env *Env) error {
	target := urlutil.BuildAbsolute(env.BaseURL, a.URL)
	if !urlutil.IsAbsolute(target) {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("navigation target %q is not an absolute http(s) URL", target))
	}
	return env.Actor.Navigate(ctx, target, a.Timeout)
}

func (a Navigate) Validate() error {
	if strings.TrimSpace(a.URL) == "" {
		return fmt.Errorf("navigate requires a URL")
	}
	return nil
}

func (a Navigate) String() string { return "navigate " + a.URL }

// Click clicks the single element matching Target.
type Click struct {
	Target  interact.Locator
	Timeout time.Duration
}

func (a Click) Execute(ctx context.Context, env *Env) error {
	return env.Actor.SafeClick(ctx, a.Target, a.Timeout)
}

func (a Click) Validate() error { return a.Target.Validate() }

func (a Click) String() string { return "click " + a.Target.String() }

// Fill replaces the value of the single field matching Target.
type Fill struct {
	Target  interact.Locator
	Value   string
	Timeout time.Duration
}

func (a Fill) Execute(ctx context.Context, env *Env) error {
	return env.Actor.SafeFill(ctx, a.Target, a.Value, a.Timeout)
}

func (a Fill) Validate() error { return a.Target.Validate() }

// String never includes the value itself.
func (a Fill) String() string {
	return fmt.Sprintf("fill %s with %d chars", a.Target, len([]rune(a.Value)))
}

// LogValue renders the filled value for logs, redacting credential fields.
func (a Fill) LogValue() string {
	return logutil.FieldValueForLog(a.Target.Value, a.Value, 40)
}

// AssertVisible requires at least one visible element matching Target.
type AssertVisible struct {
	Target  interact.Locator
	Timeout time.Duration
}

func (a AssertVisible) Execute(ctx context.Context, env *Env) error {
	return env.Actor.AssertVisible(ctx, a.Target, a.Timeout)
}

func (a AssertVisible) Validate() error { return a.Target.Validate() }

func (a AssertVisible) String() string { return "expect visible " + a.Target.String() }

// AssertURL requires the page URL to match Pattern.
type AssertURL struct {
	Pattern interact.URLPattern
	Timeout time.Duration
}

func (a AssertURL) Execute(ctx context.Context, env *Env) error {
	return env.Actor.AssertCurrentURL(ctx, a.Pattern, a.Timeout)
}

func (a AssertURL) Validate() error {
	if a.Pattern.String() == "" {
		return fmt.Errorf("assert URL requires a pattern")
	}
	return nil
}

func (a AssertURL) String() string { return "expect URL " + a.Pattern.String() }

// Checkpoint captures a full-page screenshot. It never fails the run.
type Checkpoint struct {
	Name string
}

func (a Checkpoint) Execute(ctx context.Context, env *Env) error {
	env.Recorder.Checkpoint(ctx, a.Name)
	return nil
}

func (a Checkpoint) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("checkpoint requires a name")
	}
	return nil
}

func (a Checkpoint) String() string { return "checkpoint " + a.Name }
