// Package journeys holds the built-in verification scenarios for the
// onboarding and benchmark flows.
package journeys

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kuitang/pulsecheck/internal/errs"
	"github.com/kuitang/pulsecheck/internal/interact"
	"github.com/kuitang/pulsecheck/internal/scenario"
	"github.com/kuitang/pulsecheck/internal/urlutil"
)

// Labels is the UI text the journeys locate elements by.
type Labels struct {
	StudentEntry string `yaml:"student_entry"`
	Next         string `yaml:"next"`
	Agree        string `yaml:"agree"`
	Email        string `yaml:"email"`
	Password     string `yaml:"password"`
	StartFree    string `yaml:"start_free"`
	PulseScore   string `yaml:"pulse_score"`
	LearnHeading string `yaml:"learn_heading"`
}

// DefaultLabels returns the Japanese UI text.
func DefaultLabels() Labels {
	return Labels{
		StudentEntry: "生徒はこちら",
		Next:         "次へ",
		Agree:        "同意して始める",
		Email:        "メールアドレス",
		Password:     "パスワード",
		StartFree:    "無料で学習を始める",
		PulseScore:   "Pulse Score",
		LearnHeading: "学習を始めよう",
	}
}

// LoadLabels reads a label override file. Keys left out keep their defaults.
func LoadLabels(path string) (Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Labels{}, errs.Wrap(errs.InvalidArgument, "failed to read labels file", err)
	}
	labels := DefaultLabels()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&labels); err != nil {
		return Labels{}, errs.Wrap(errs.InvalidArgument, fmt.Sprintf("failed to parse labels file %s", path), err)
	}
	return labels, nil
}

// Params are the per-run inputs of a journey.
type Params struct {
	BaseURL  string
	Email    string
	Password string
	Labels   Labels
}

// UniqueEmail returns a fresh student address for now.
func UniqueEmail(now time.Time) string {
	return fmt.Sprintf("student_%d@test.com", now.Unix())
}

// StudentBenchmark signs up a new student, then checks that the benchmark
// page shows the pulse score and a live camera preview.
func StudentBenchmark(p Params) scenario.Scenario {
	l := p.Labels
	return scenario.Scenario{
		Name:        "student-benchmark",
		Description: "student signup, then the benchmark page renders a pulse score and camera preview",
		BaseURL:     p.BaseURL,
		Steps: []scenario.Step{
			{Description: "open the landing page", Action: scenario.Navigate{URL: "/"}},
			{Description: "choose the student path", Action: scenario.Click{Target: interact.Role("button", l.StudentEntry)}},
			{Description: "advance the welcome slides", Action: scenario.Click{Target: interact.Role("button", l.Next)}},
			{Description: "advance the welcome slides again", Action: scenario.Click{Target: interact.Role("button", l.Next)}},
			{Description: "agree to the privacy policy", Action: scenario.Click{Target: interact.CSS(fmt.Sprintf("button:has-text(%q)", l.Agree))}},
			{Description: "enter the email address", Action: scenario.Fill{Target: interact.Label(l.Email), Value: p.Email}},
			{Description: "enter the password", Action: scenario.Fill{Target: interact.Label(l.Password), Value: p.Password}},
			{Description: "create the account", Action: scenario.Click{Target: interact.Role("button", l.StartFree)}},
			{Description: "land on the home page", Action: scenario.AssertURL{Pattern: interact.ExactURL(urlutil.BuildAbsolute(p.BaseURL, "/home")), Timeout: 20 * time.Second}},
			{Description: "open the benchmark page", Action: scenario.Navigate{URL: "/dev/benchmark", Timeout: 30 * time.Second}},
			{Description: "pulse score label is shown", Action: scenario.AssertVisible{Target: interact.ExactText(l.PulseScore), Timeout: 20 * time.Second}},
			{Description: "camera preview is shown", Action: scenario.AssertVisible{Target: interact.CSS("video")}},
			{Action: scenario.Checkpoint{Name: "benchmark_verification"}},
		},
	}
}

// LearnTop checks the learn-top page layout renders.
func LearnTop(p Params) scenario.Scenario {
	return scenario.Scenario{
		Name:        "learn-top",
		Description: "the learn-top page renders its heading",
		BaseURL:     p.BaseURL,
		Steps: []scenario.Step{
			{Description: "open the learn-top page", Action: scenario.Navigate{URL: "/learn-top"}},
			{Description: "heading is shown", Action: scenario.AssertVisible{Target: interact.Role("heading", p.Labels.LearnHeading), Timeout: 15 * time.Second}},
			{Action: scenario.Checkpoint{Name: "learn-top-page-layout"}},
		},
	}
}

// Builder produces a journey for one run.
type Builder func(Params) scenario.Scenario

var registry = map[string]Builder{
	"student-benchmark": StudentBenchmark,
	"learn-top":         LearnTop,
}

// Lookup returns the journey registered under name.
func Lookup(name string) (Builder, bool) {
	b, ok := registry[name]
	return b, ok
}

// Names lists the registered journeys in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
