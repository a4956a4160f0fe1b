package interact

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Never, used as a FakeElement delay, keeps the element in its initial state forever.
const Never time.Duration = -1

// FakeElement is a scripted element for FakePage. Visibility and enabled
// state flip on after the given delays, measured from when the element was
// added to the page.
type FakeElement struct {
	VisibleAfter time.Duration
	EnabledAfter time.Duration
	// OnClick runs after a successful click, e.g. to change the page URL.
	OnClick func()
	// ClickErr, when set, is returned by Click instead of clicking.
	ClickErr error

	mu     sync.Mutex
	added  time.Time
	clicks int
	value  string
}

// Clicks returns how many times the element was clicked.
func (e *FakeElement) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Value returns the element's current field value.
func (e *FakeElement) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// SetValue seeds the field value, e.g. to check that Fill replaces it.
func (e *FakeElement) SetValue(v string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = v
}

func (e *FakeElement) reached(delay time.Duration) bool {
	if delay < 0 {
		return false
	}
	e.mu.Lock()
	added := e.added
	e.mu.Unlock()
	return time.Since(added) >= delay
}

func (e *FakeElement) IsVisible() (bool, error) {
	return e.reached(e.VisibleAfter), nil
}

func (e *FakeElement) IsEnabled() (bool, error) {
	return e.reached(e.EnabledAfter), nil
}

func (e *FakeElement) Click(time.Duration) error {
	if e.ClickErr != nil {
		return e.ClickErr
	}
	if !e.reached(e.VisibleAfter) {
		return errors.New("fake: element not visible")
	}
	e.mu.Lock()
	e.clicks++
	onClick := e.OnClick
	e.mu.Unlock()
	if onClick != nil {
		onClick()
	}
	return nil
}

func (e *FakeElement) Fill(value string, _ time.Duration) error {
	if !e.reached(e.VisibleAfter) {
		return errors.New("fake: element not visible")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.value = value
	return nil
}

// FakePage is an in-memory Page for deterministic tests of the primitives
// and the runner. It also satisfies capture.Screenshotter.
type FakePage struct {
	mu            sync.Mutex
	url           string
	title         string
	elements      map[string][]*FakeElement
	routes        map[string]int
	gotoErr       error
	screenshotErr error
	navigations   []string
	screenshots   int
}

// NewFakePage returns an empty page at url.
func NewFakePage(url string) *FakePage {
	return &FakePage{
		url:      url,
		elements: make(map[string][]*FakeElement),
		routes:   make(map[string]int),
	}
}

// Add attaches elements that loc will resolve to.
func (p *FakePage) Add(loc Locator, els ...*FakeElement) {
	now := time.Now()
	for _, el := range els {
		el.mu.Lock()
		el.added = now
		el.mu.Unlock()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := loc.String()
	p.elements[key] = append(p.elements[key], els...)
}

// SetURL changes the current URL.
func (p *FakePage) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// SetTitle changes the document title.
func (p *FakePage) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

// Route sets the response status Goto reports for url. Unrouted URLs answer 200.
func (p *FakePage) Route(url string, status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[url] = status
}

// FailGoto makes every Goto return err.
func (p *FakePage) FailGoto(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gotoErr = err
}

// FailScreenshots makes every Screenshot return err.
func (p *FakePage) FailScreenshots(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshotErr = err
}

// Navigations lists every URL passed to Goto.
func (p *FakePage) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}

// Screenshots returns how many screenshots were taken.
func (p *FakePage) Screenshots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.screenshots
}

func (p *FakePage) Resolve(loc Locator) ([]Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	found := p.elements[loc.String()]
	out := make([]Element, len(found))
	for i, el := range found {
		out[i] = el
	}
	return out, nil
}

func (p *FakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *FakePage) Goto(url string, _ time.Duration) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations = append(p.navigations, url)
	if p.gotoErr != nil {
		return 0, p.gotoErr
	}
	p.url = url
	if status, ok := p.routes[url]; ok {
		return status, nil
	}
	return 200, nil
}

func (p *FakePage) Screenshot(fullPage bool) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.screenshotErr != nil {
		return nil, p.screenshotErr
	}
	p.screenshots++
	return []byte(fmt.Sprintf("fake-png url=%s full=%t n=%d", p.url, fullPage, p.screenshots)), nil
}

func (p *FakePage) Title() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, nil
}

func (p *FakePage) Content() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("<html><head><title>%s</title></head><body></body></html>", p.title), nil
}
