package browser

import (
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/pulsecheck/internal/interact"
)

// Page adapts a playwright.Page to interact.Page and capture.Screenshotter.
type Page struct {
	page playwright.Page
}

// Resolve returns every element currently matching loc.
func (p *Page) Resolve(loc interact.Locator) ([]interact.Element, error) {
	locator, err := p.locator(loc)
	if err != nil {
		return nil, err
	}
	matches, err := locator.All()
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", loc, translate(err))
	}
	out := make([]interact.Element, len(matches))
	for i, m := range matches {
		out[i] = element{loc: m}
	}
	return out, nil
}

func (p *Page) locator(loc interact.Locator) (playwright.Locator, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	exact := playwright.Bool(loc.Exact)
	switch loc.Kind {
	case interact.KindRole:
		opts := playwright.PageGetByRoleOptions{Exact: exact}
		if loc.Value != "" {
			opts.Name = loc.Value
		}
		return p.page.GetByRole(playwright.AriaRole(loc.Role), opts), nil
	case interact.KindLabel:
		return p.page.GetByLabel(loc.Value, playwright.PageGetByLabelOptions{Exact: exact}), nil
	case interact.KindText:
		return p.page.GetByText(loc.Value, playwright.PageGetByTextOptions{Exact: exact}), nil
	case interact.KindCSS:
		return p.page.Locator(loc.Value), nil
	default:
		return nil, fmt.Errorf("unsupported locator kind %q", loc.Kind)
	}
}

func (p *Page) URL() string {
	return p.page.URL()
}

// Goto navigates and waits for the load event.
func (p *Page) Goto(url string, timeout time.Duration) (int, error) {
	resp, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(ms(timeout)),
	})
	if err != nil {
		return 0, translate(err)
	}
	if resp == nil {
		return 0, nil
	}
	return resp.Status(), nil
}

func (p *Page) Screenshot(fullPage bool) ([]byte, error) {
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
	})
}

func (p *Page) Title() (string, error) {
	return p.page.Title()
}

func (p *Page) Content() (string, error) {
	return p.page.Content()
}

// element is a single match. The locator is pinned by All() to its nth
// index, so it re-resolves on every call.
type element struct {
	loc playwright.Locator
}

func (e element) IsVisible() (bool, error) {
	v, err := e.loc.IsVisible()
	return v, translate(err)
}

func (e element) IsEnabled() (bool, error) {
	v, err := e.loc.IsEnabled()
	return v, translate(err)
}

func (e element) Click(timeout time.Duration) error {
	return translate(e.loc.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(ms(timeout)),
	}))
}

func (e element) Fill(value string, timeout time.Duration) error {
	return translate(e.loc.Fill(value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(ms(timeout)),
	}))
}

// translate marks driver timeouts with interact.ErrActionTimeout so callers
// can tell them apart without importing playwright.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", interact.ErrActionTimeout, err)
	}
	return err
}
