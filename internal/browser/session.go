// Package browser owns the lifecycle of the Playwright driver, one browser
// process, one isolated context and one page. Acquire starts all four;
// Release tears them down in reverse order and is safe to call repeatedly.
//
// Prerequisites:
// - Install Playwright browsers: go run github.com/playwright-community/playwright-go/cmd/playwright install chromium
// - Or set Config.Install to install them on first use.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/pulsecheck/internal/errs"
	"github.com/kuitang/pulsecheck/internal/obs"
	"github.com/kuitang/pulsecheck/internal/urlutil"
)

// Config describes the session to acquire.
type Config struct {
	Browser        string // chromium (default), firefox, webkit
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	Permissions    []string
	ActionTimeout  time.Duration
	NavTimeout     time.Duration
	// BaseURL scopes permission grants to an origin when set.
	BaseURL string
	// Install downloads the driver and browser before starting.
	Install bool
	// TagRequests adds obs.RunHeader with the context's run ID to every
	// request. Cross-origin fetches then need a CORS preflight.
	TagRequests bool
}

// Session is one browser process + one isolated context + one page.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    *Page

	releaseOnce sync.Once
}

// Acquire starts Playwright, launches the browser and opens one page in a
// fresh context. Any failure is an errs.SessionStart error and leaves nothing
// running.
func Acquire(ctx context.Context, cfg Config) (*Session, error) {
	log := obs.From(ctx).With("pkg", "browser")

	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.SessionStart, "session start cancelled", err)
	}

	if cfg.Install {
		if err := playwright.Install(&playwright.RunOptions{
			Browsers: []string{browserName(cfg.Browser)},
			Verbose:  false,
		}); err != nil {
			return nil, errs.Wrap(errs.SessionStart, "could not install playwright", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, errs.Wrap(errs.SessionStart, "playwright not available", err)
	}
	s := &Session{pw: pw}

	browserType, err := s.browserType(cfg.Browser)
	if err != nil {
		s.Release()
		return nil, errs.Wrap(errs.SessionStart, "unsupported browser", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	}
	if browserName(cfg.Browser) == "chromium" {
		// A fake capture device lets a granted camera permission yield a live
		// stream without hardware. Access itself still follows the context's
		// permission grants.
		launchOpts.Args = []string{"--use-fake-device-for-media-stream"}
	}
	s.browser, err = browserType.Launch(launchOpts)
	if err != nil {
		s.Release()
		return nil, errs.Wrap(errs.SessionStart, "could not launch browser", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Permissions: cfg.Permissions,
	}
	if runID := obs.RunIDFromContext(ctx); cfg.TagRequests && runID != "" {
		contextOpts.ExtraHttpHeaders = map[string]string{obs.RunHeader: runID}
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		contextOpts.Viewport = &playwright.Size{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight}
	}
	s.context, err = s.browser.NewContext(contextOpts)
	if err != nil {
		s.Release()
		return nil, errs.Wrap(errs.SessionStart, "could not create browser context", err)
	}
	if origin := urlutil.Origin(cfg.BaseURL); len(cfg.Permissions) > 0 && origin != "" {
		if err := s.context.GrantPermissions(cfg.Permissions, playwright.BrowserContextGrantPermissionsOptions{
			Origin: playwright.String(origin),
		}); err != nil {
			s.Release()
			return nil, errs.Wrap(errs.SessionStart, "could not grant permissions", err)
		}
	}
	s.context.SetDefaultTimeout(ms(cfg.ActionTimeout))
	s.context.SetDefaultNavigationTimeout(ms(cfg.NavTimeout))

	page, err := s.context.NewPage()
	if err != nil {
		s.Release()
		return nil, errs.Wrap(errs.SessionStart, "could not create page", err)
	}
	s.page = &Page{page: page}

	log.Info("session acquired",
		"browser", browserName(cfg.Browser),
		"headless", cfg.Headless,
		"viewport", fmt.Sprintf("%dx%d", cfg.ViewportWidth, cfg.ViewportHeight),
		"permissions", cfg.Permissions,
	)
	return s, nil
}

// Page returns the session's single page.
func (s *Session) Page() *Page {
	return s.page
}

// Release closes page, context, browser and driver. It never fails: teardown
// errors are logged. Calls after the first, and calls on a nil Session, do
// nothing.
func (s *Session) Release() {
	if s == nil {
		return
	}
	s.releaseOnce.Do(func() {
		log := obs.Pkg("browser")
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("session teardown panicked", "panic", rec)
			}
		}()

		if s.page != nil {
			if err := s.page.page.Close(); err != nil {
				log.Warn("page close failed", "error", err)
			}
		}
		if s.context != nil {
			if err := s.context.Close(); err != nil {
				log.Warn("context close failed", "error", err)
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				log.Warn("browser close failed", "error", err)
			}
		}
		if s.pw != nil {
			if err := s.pw.Stop(); err != nil {
				log.Warn("playwright stop failed", "error", err)
			}
		}
		log.Info("session released")
	})
}

func (s *Session) browserType(name string) (playwright.BrowserType, error) {
	switch browserName(name) {
	case "chromium":
		return s.pw.Chromium, nil
	case "firefox":
		return s.pw.Firefox, nil
	case "webkit":
		return s.pw.WebKit, nil
	default:
		return nil, fmt.Errorf("unknown browser %q", name)
	}
}

func browserName(name string) string {
	if name == "" {
		return "chromium"
	}
	return name
}

// ms converts a duration into Playwright's float milliseconds. Playwright
// treats zero as "no timeout", so non-positive durations become 1ms.
func ms(d time.Duration) float64 {
	if d <= 0 {
		return 1
	}
	return float64(d.Milliseconds())
}
