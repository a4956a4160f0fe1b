// Package capture records screenshots at named checkpoints and at the point
// of failure. Capture is best-effort: a lost screenshot is logged and never
// turns into the run's outcome.
package capture

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/kuitang/pulsecheck/internal/logutil"
	"github.com/kuitang/pulsecheck/internal/obs"
)

// FailureMarker tags the failure artifact's file name.
const FailureMarker = "error"

const contentPreviewChars = 500

// Screenshotter is the page state capture observes.
type Screenshotter interface {
	Screenshot(fullPage bool) ([]byte, error)
	URL() string
	Title() (string, error)
	Content() (string, error)
}

// Artifact is one persisted screenshot.
type Artifact struct {
	Name     string
	Location string
	Failure  bool
}

// Recorder captures artifacts for one run.
type Recorder struct {
	page Screenshotter
	sink Sink
	tag  string

	mu          sync.Mutex
	artifacts   []Artifact
	used        map[string]bool
	failureDone bool
	failurePath string
}

// NewRecorder creates a recorder writing artifacts named after tag.
func NewRecorder(page Screenshotter, sink Sink, tag string) *Recorder {
	return &Recorder{page: page, sink: sink, tag: tag, used: make(map[string]bool)}
}

// FileName builds the artifact file name for a checkpoint of a scenario.
func FileName(tag, name string) string {
	return sanitize(tag) + "_" + sanitize(name) + ".png"
}

// Checkpoint captures a full-page screenshot tagged name and returns its
// location, or "" when capture failed. A name that repeats, or that sanitizes
// to an earlier one, gets a "-2", "-3", ... suffix.
func (r *Recorder) Checkpoint(ctx context.Context, name string) string {
	if sanitize(name) == FailureMarker {
		name = "checkpoint-" + name
	}
	loc := r.capture(ctx, name, true)
	if loc != "" {
		r.record(Artifact{Name: name, Location: loc})
	}
	return loc
}

// CaptureFailure records the page as it is right now under the failure
// marker. Only the first call captures; later calls return the first result.
func (r *Recorder) CaptureFailure(ctx context.Context, cause error) string {
	r.mu.Lock()
	if r.failureDone {
		path := r.failurePath
		r.mu.Unlock()
		return path
	}
	r.failureDone = true
	r.mu.Unlock()

	r.logPageState(ctx, cause)

	loc := r.capture(ctx, FailureMarker, false)
	r.mu.Lock()
	r.failurePath = loc
	r.mu.Unlock()
	if loc != "" {
		r.record(Artifact{Name: FailureMarker, Location: loc, Failure: true})
	}
	return loc
}

// Artifacts returns every artifact written so far, in capture order.
func (r *Recorder) Artifacts() []Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Artifact(nil), r.artifacts...)
}

func (r *Recorder) record(a Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = append(r.artifacts, a)
}

func (r *Recorder) capture(ctx context.Context, name string, fullPage bool) (loc string) {
	log := obs.From(ctx).With("pkg", "capture")
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("screenshot panicked", "name", name, "panic", rec)
			loc = ""
		}
	}()

	png, err := r.page.Screenshot(fullPage)
	if err != nil {
		log.Error("screenshot failed", "name", name, "error", err)
		return ""
	}
	loc, err = r.sink.Put(ctx, r.reserve(name), png)
	if err != nil {
		if loc == "" {
			log.Error("artifact write failed", "name", name, "error", err)
			return ""
		}
		log.Warn("artifact mirror failed", "name", name, "location", loc, "error", err)
	}
	log.Info("artifact captured", "name", name, "location", loc, "bytes", len(png), "full_page", fullPage)
	return loc
}

func (r *Recorder) logPageState(ctx context.Context, cause error) {
	log := obs.From(ctx).With("pkg", "capture")
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("page state unavailable", "panic", rec)
		}
	}()
	title, _ := r.page.Title()
	content, _ := r.page.Content()
	log.Info("page state at failure",
		"url", r.page.URL(),
		"title", title,
		"content_preview", logutil.TruncateForLog(content, contentPreviewChars),
		"cause", errString(cause),
	)
}

// reserve returns a file name for name that no earlier artifact of this
// recorder used.
func (r *Recorder) reserve(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	stem := sanitize(name)
	candidate := stem
	for n := 2; r.used[candidate]; n++ {
		candidate = stem + "-" + strconv.Itoa(n)
	}
	r.used[candidate] = true
	return FileName(r.tag, candidate)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// sanitize keeps letters and digits of any script plus "_", "-" and ".".
// Everything else, path separators included, becomes "-".
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "unnamed"
	}
	return out
}
