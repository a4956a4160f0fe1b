// Package interact implements the safe interaction primitives: click, fill,
// navigate and the visibility/URL assertions. Each primitive is a bounded
// poll over a predicate against live page state, so timing races resolve into
// either success or a classified failure from internal/errs.
package interact

import (
	"errors"
	"time"
)

// Page is the live page the primitives act on. Implementations resolve
// locators freshly on every call.
type Page interface {
	// Resolve returns every element currently matching loc, hidden ones included.
	Resolve(loc Locator) ([]Element, error)
	// URL returns the page's current URL.
	URL() string
	// Goto performs a full navigation and waits for the load event. status is
	// the final response status, or 0 when the navigation produced no response.
	Goto(url string, timeout time.Duration) (status int, err error)
}

// Element is one resolved match. Handles are only valid for the attempt that
// resolved them.
type Element interface {
	IsVisible() (bool, error)
	IsEnabled() (bool, error)
	Click(timeout time.Duration) error
	// Fill replaces the field's current value with value.
	Fill(value string, timeout time.Duration) error
}

// ErrActionTimeout is wrapped by Page implementations when the underlying
// driver gave up on an action because its own timeout expired.
var ErrActionTimeout = errors.New("interact: action timed out")
