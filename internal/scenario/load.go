package scenario

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kuitang/pulsecheck/internal/errs"
	"github.com/kuitang/pulsecheck/internal/interact"
)

// Vars are the values available to {{.Name}} placeholders in scenario files.
type Vars struct {
	BaseURL   string
	Email     string
	Password  string
	Timestamp int64
}

// File is the on-disk scenario format.
//
//	name: learn-top
//	base_url: "{{.BaseURL}}"
//	steps:
//	  - navigate: /learn-top
//	  - assert_visible: {role: heading, name: 学習を始めよう}
//	    timeout: 15s
//	  - checkpoint: learn-top-page-layout
type File struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	BaseURL     string     `yaml:"base_url,omitempty"`
	Steps       []StepSpec `yaml:"steps"`
}

// StepSpec declares exactly one action.
type StepSpec struct {
	Description   string        `yaml:"description,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	Navigate      string        `yaml:"navigate,omitempty"`
	Click         *LocatorSpec  `yaml:"click,omitempty"`
	Fill          *FillSpec     `yaml:"fill,omitempty"`
	AssertVisible *LocatorSpec  `yaml:"assert_visible,omitempty"`
	AssertURL     string        `yaml:"assert_url,omitempty"`
	Checkpoint    string        `yaml:"checkpoint,omitempty"`
}

// LocatorSpec names one locator strategy.
type LocatorSpec struct {
	Role  string `yaml:"role,omitempty"`
	Name  string `yaml:"name,omitempty"`
	Label string `yaml:"label,omitempty"`
	Text  string `yaml:"text,omitempty"`
	CSS   string `yaml:"css,omitempty"`
	Exact bool   `yaml:"exact,omitempty"`
}

// FillSpec is a locator plus the value to type.
type FillSpec struct {
	LocatorSpec `yaml:",inline"`
	Value       string `yaml:"value"`
}

// Load reads a scenario file and expands placeholders from vars.
func Load(path string, vars Vars) (Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return Scenario{}, errs.Wrap(errs.InvalidArgument, "failed to read scenario file", err)
	}
	defer f.Close()
	sc, err := Decode(f, vars)
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Decode parses a scenario document, rejecting unknown fields.
func Decode(r io.Reader, vars Vars) (Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Scenario{}, errs.Wrap(errs.InvalidArgument, "failed to read scenario", err)
	}
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return Scenario{}, errs.Wrap(errs.InvalidArgument, "failed to parse scenario YAML", err)
	}
	sc, err := file.Build(vars)
	if err != nil {
		return Scenario{}, err
	}
	if err := sc.Validate(); err != nil {
		return Scenario{}, err
	}
	return sc, nil
}

// Build expands placeholders and converts the file into a Scenario.
func (f File) Build(vars Vars) (Scenario, error) {
	x := expander{vars: vars}
	sc := Scenario{
		Name:        x.expand(f.Name),
		Description: x.expand(f.Description),
		BaseURL:     x.expand(f.BaseURL),
	}
	if sc.BaseURL == "" {
		sc.BaseURL = vars.BaseURL
	}
	for i, spec := range f.Steps {
		action, err := spec.action(&x)
		if err != nil {
			return Scenario{}, errs.Wrap(errs.InvalidArgument, fmt.Sprintf("step %d", i+1), err)
		}
		sc.Steps = append(sc.Steps, Step{Description: x.expand(spec.Description), Action: action})
	}
	if x.err != nil {
		return Scenario{}, errs.Wrap(errs.InvalidArgument, "failed to expand scenario placeholders", x.err)
	}
	return sc, nil
}

func (s StepSpec) action(x *expander) (Action, error) {
	var actions []Action
	if s.Navigate != "" {
		actions = append(actions, Navigate{URL: x.expand(s.Navigate), Timeout: s.Timeout})
	}
	if s.Click != nil {
		loc, err := s.Click.locator(x)
		if err != nil {
			return nil, err
		}
		actions = append(actions, Click{Target: loc, Timeout: s.Timeout})
	}
	if s.Fill != nil {
		loc, err := s.Fill.locator(x)
		if err != nil {
			return nil, err
		}
		actions = append(actions, Fill{Target: loc, Value: x.expand(s.Fill.Value), Timeout: s.Timeout})
	}
	if s.AssertVisible != nil {
		loc, err := s.AssertVisible.locator(x)
		if err != nil {
			return nil, err
		}
		actions = append(actions, AssertVisible{Target: loc, Timeout: s.Timeout})
	}
	if s.AssertURL != "" {
		pattern, err := interact.ParseURLPattern(x.expand(s.AssertURL))
		if err != nil {
			return nil, err
		}
		actions = append(actions, AssertURL{Pattern: pattern, Timeout: s.Timeout})
	}
	if s.Checkpoint != "" {
		actions = append(actions, Checkpoint{Name: x.expand(s.Checkpoint)})
	}
	switch len(actions) {
	case 0:
		return nil, fmt.Errorf("no action given")
	case 1:
		return actions[0], nil
	default:
		return nil, fmt.Errorf("%d actions given, expected exactly one", len(actions))
	}
}

func (l LocatorSpec) locator(x *expander) (interact.Locator, error) {
	var locs []interact.Locator
	if l.Role != "" {
		locs = append(locs, interact.Role(l.Role, x.expand(l.Name)))
	} else if l.Name != "" {
		return interact.Locator{}, fmt.Errorf("name requires a role")
	}
	if l.Label != "" {
		locs = append(locs, interact.Label(x.expand(l.Label)))
	}
	if l.Text != "" {
		locs = append(locs, interact.Text(x.expand(l.Text)))
	}
	if l.CSS != "" {
		locs = append(locs, interact.CSS(x.expand(l.CSS)))
	}
	if len(locs) != 1 {
		return interact.Locator{}, fmt.Errorf("locator needs exactly one of role, label, text, css")
	}
	return locs[0].WithExact(l.Exact), nil
}

// expander renders text/template placeholders, keeping the first error.
type expander struct {
	vars Vars
	err  error
}

func (x *expander) expand(s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	tmpl, err := template.New("field").Option("missingkey=error").Parse(s)
	if err != nil {
		x.keep(err)
		return s
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, x.vars); err != nil {
		x.keep(err)
		return s
	}
	return buf.String()
}

func (x *expander) keep(err error) {
	if x.err == nil {
		x.err = err
	}
}
