// Package testapp serves a small PulseStudy lookalike for browser tests: the
// student onboarding flow, the home and error pages, the camera benchmark
// page and the learn-top page.
package testapp

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/pulsecheck/internal/obs"
	"github.com/kuitang/pulsecheck/internal/ratelimit"
)

//go:embed templates/*.html
var templateFS embed.FS

const sessionCookie = "pulsestudy_student"

// Options tunes fixture behaviour.
type Options struct {
	// UnlockDelay keeps each slide's next button disabled for this long.
	UnlockDelay time.Duration
	// SignupLimit throttles POST /api/signup per client IP. Zero uses
	// ratelimit.DefaultConfig.
	SignupLimit ratelimit.Config
}

// App is the fixture application. It is safe for concurrent use.
type App struct {
	opts    Options
	pages   map[string]*template.Template
	limiter *ratelimit.Limiter

	mu       sync.Mutex
	students map[string]string
}

// New parses the embedded templates and returns an empty app. Call Close
// when done.
func New(opts Options) (*App, error) {
	if opts.UnlockDelay <= 0 {
		opts.UnlockDelay = 300 * time.Millisecond
	}
	if opts.SignupLimit.Burst <= 0 {
		opts.SignupLimit = ratelimit.DefaultConfig
	}
	pages, err := parsePages(templateFS)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &App{
		opts:     opts,
		pages:    pages,
		limiter:  ratelimit.New(opts.SignupLimit),
		students: make(map[string]string),
	}, nil
}

// Close stops background work.
func (a *App) Close() {
	a.limiter.Stop()
}

// parsePages combines base.html with each page template.
func parsePages(fsys fs.FS) (map[string]*template.Template, error) {
	base, err := template.ParseFS(fsys, "templates/base.html")
	if err != nil {
		return nil, err
	}
	names, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template)
	for _, name := range names {
		page := strings.TrimSuffix(strings.TrimPrefix(name, "templates/"), ".html")
		if page == "base" {
			continue
		}
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		tmpl, err := clone.ParseFS(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		pages[page] = tmpl
	}
	return pages, nil
}

// Register pre-creates a student account, so signing up again with email
// fails.
func (a *App) Register(email, password string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.students[strings.ToLower(email)] = password
}

// Students lists registered addresses in sorted order.
func (a *App) Students() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.students))
	for email := range a.students {
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}

// Handler returns the app's routes wrapped in request correlation and access
// logging.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", a.handleWelcome)
	mux.Handle("POST /api/signup", ratelimit.Middleware(a.limiter, ratelimit.ClientIP)(http.HandlerFunc(a.handleSignup)))
	mux.HandleFunc("GET /home", a.handleHome)
	mux.HandleFunc("GET /error", a.handleError)
	mux.HandleFunc("GET /dev/benchmark", a.handleBenchmark)
	mux.HandleFunc("GET /learn-top", a.handleLearnTop)
	return obs.Middleware("testapp", mux)
}

func (a *App) render(w http.ResponseWriter, r *http.Request, status int, page string, data map[string]any) {
	tmpl, ok := a.pages[page]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		obs.From(r.Context()).With("pkg", "testapp").Error("template execution failed", "page", page, "error", err)
	}
}

func (a *App) handleWelcome(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "welcome", map[string]any{
		"Title":    "ようこそ",
		"Slides":   []string{"毎日の学習を記録しよう", "集中度をカメラで計測しよう"},
		"UnlockMS": a.opts.UnlockDelay.Milliseconds(),
	})
}

func (a *App) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	email := strings.ToLower(strings.TrimSpace(r.PostForm.Get("email")))
	password := r.PostForm.Get("password")
	if email == "" || len(password) < 6 {
		http.Error(w, "email and a password of at least 6 characters are required", http.StatusBadRequest)
		return
	}

	a.mu.Lock()
	_, exists := a.students[email]
	if !exists {
		a.students[email] = password
	}
	a.mu.Unlock()
	if exists {
		http.Error(w, "already registered", http.StatusConflict)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    url.QueryEscape(email),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusCreated)
}

func (a *App) handleHome(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	email, _ := url.QueryUnescape(cookie.Value)
	a.render(w, r, http.StatusOK, "home", map[string]any{"Title": "ホーム", "Email": email})
}

func (a *App) handleError(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "error", map[string]any{
		"Title":   "エラー",
		"Message": "アカウントを作成できませんでした。",
	})
}

func (a *App) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "benchmark", map[string]any{"Title": "Benchmark"})
}

func (a *App) handleLearnTop(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, http.StatusOK, "learn_top", map[string]any{
		"Title":   "学習",
		"Modules": []string{"集中トレーニング", "小テスト", "振り返り"},
	})
}
