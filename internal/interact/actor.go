package interact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kuitang/pulsecheck/internal/errs"
	"github.com/kuitang/pulsecheck/internal/obs"
)

// Options configures default bounds for the primitives.
type Options struct {
	ActionTimeout time.Duration // click/fill/assert default
	NavTimeout    time.Duration // navigate default
	PollInterval  time.Duration
}

// Actor runs the safe primitives against a single page.
type Actor struct {
	page Page
	opts Options
}

// NewActor binds the primitives to page.
func NewActor(page Page, opts Options) *Actor {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 15 * time.Second
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Actor{page: page, opts: opts}
}

// Page returns the page the actor is bound to.
func (a *Actor) Page() Page {
	return a.page
}

func (a *Actor) actionTimeout(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return a.opts.ActionTimeout
}

func logger(ctx context.Context) *slog.Logger {
	return obs.From(ctx).With("pkg", "interact")
}

// observation records why the latest attempt did not succeed, for the
// eventual timeout message.
type observation struct {
	state string
}

func (o *observation) set(format string, args ...any) {
	o.state = fmt.Sprintf(format, args...)
}

// single resolves loc and requires at most one match. It returns nil (with
// obs updated) when nothing matches yet.
func (a *Actor) single(loc Locator, o *observation) (Element, error) {
	elements, err := a.page.Resolve(loc)
	if err != nil {
		o.set("resolve failed: %v", err)
		return nil, Transient(err)
	}
	switch len(elements) {
	case 0:
		o.set("no element matches")
		return nil, nil
	case 1:
		return elements[0], nil
	default:
		return nil, errs.New(errs.AmbiguousLocator,
			fmt.Sprintf("%s resolved to %d elements, expected exactly one", loc, len(elements)))
	}
}

// SafeClick waits until loc resolves to exactly one visible and enabled
// element, then clicks it.
func (a *Actor) SafeClick(ctx context.Context, loc Locator, timeout time.Duration) error {
	if err := loc.Validate(); err != nil {
		return errs.Wrap(errs.InvalidArgument, "invalid locator", err)
	}
	timeout = a.actionTimeout(timeout)
	o := &observation{}

	err := Poll(ctx, timeout, a.opts.PollInterval, func(ctx context.Context) (bool, error) {
		el, err := a.single(loc, o)
		if el == nil || err != nil {
			return false, err
		}
		visible, err := el.IsVisible()
		if err != nil {
			o.set("visibility check failed: %v", err)
			return false, Transient(err)
		}
		if !visible {
			o.set("element not visible")
			return false, nil
		}
		enabled, err := el.IsEnabled()
		if err != nil {
			o.set("enabled check failed: %v", err)
			return false, Transient(err)
		}
		if !enabled {
			o.set("element visible but disabled")
			return false, nil
		}
		if err := el.Click(remaining(ctx, timeout)); err != nil {
			o.set("click failed: %v", err)
			return false, Transient(err)
		}
		return true, nil
	})
	if err != nil {
		return a.classify(ctx, errs.InteractionTimeout, fmt.Sprintf("click %s", loc), timeout, o, err)
	}
	logger(ctx).Debug("clicked", "locator", loc.String())
	return nil
}

// SafeFill waits until loc resolves to exactly one visible element, then
// replaces its value.
func (a *Actor) SafeFill(ctx context.Context, loc Locator, value string, timeout time.Duration) error {
	if err := loc.Validate(); err != nil {
		return errs.Wrap(errs.InvalidArgument, "invalid locator", err)
	}
	timeout = a.actionTimeout(timeout)
	o := &observation{}

	err := Poll(ctx, timeout, a.opts.PollInterval, func(ctx context.Context) (bool, error) {
		el, err := a.single(loc, o)
		if el == nil || err != nil {
			return false, err
		}
		visible, err := el.IsVisible()
		if err != nil {
			o.set("visibility check failed: %v", err)
			return false, Transient(err)
		}
		if !visible {
			o.set("element not visible")
			return false, nil
		}
		if err := el.Fill(value, remaining(ctx, timeout)); err != nil {
			o.set("fill failed: %v", err)
			return false, Transient(err)
		}
		return true, nil
	})
	if err != nil {
		return a.classify(ctx, errs.InteractionTimeout, fmt.Sprintf("fill %s", loc), timeout, o, err)
	}
	logger(ctx).Debug("filled", "locator", loc.String(), "value_len", len(value))
	return nil
}

// AssertVisible waits until at least one element matching loc is visible.
func (a *Actor) AssertVisible(ctx context.Context, loc Locator, timeout time.Duration) error {
	if err := loc.Validate(); err != nil {
		return errs.Wrap(errs.InvalidArgument, "invalid locator", err)
	}
	timeout = a.actionTimeout(timeout)
	o := &observation{}

	err := Poll(ctx, timeout, a.opts.PollInterval, func(context.Context) (bool, error) {
		elements, err := a.page.Resolve(loc)
		if err != nil {
			o.set("resolve failed: %v", err)
			return false, Transient(err)
		}
		if len(elements) == 0 {
			o.set("no element matches")
			return false, nil
		}
		for _, el := range elements {
			visible, err := el.IsVisible()
			if err != nil {
				o.set("visibility check failed: %v", err)
				continue
			}
			if visible {
				return true, nil
			}
		}
		o.set("%d matching element(s), none visible", len(elements))
		return false, nil
	})
	if err != nil {
		return a.classify(ctx, errs.AssertionTimeout, fmt.Sprintf("expected %s to be visible", loc), timeout, o, err)
	}
	return nil
}

// AssertCurrentURL waits until the page URL matches pattern.
func (a *Actor) AssertCurrentURL(ctx context.Context, pattern URLPattern, timeout time.Duration) error {
	timeout = a.actionTimeout(timeout)
	o := &observation{}

	err := Poll(ctx, timeout, a.opts.PollInterval, func(context.Context) (bool, error) {
		current := a.page.URL()
		if pattern.Match(current) {
			return true, nil
		}
		o.set("current URL is %s", current)
		return false, nil
	})
	if err != nil {
		return a.classify(ctx, errs.AssertionTimeout, fmt.Sprintf("expected URL %s", pattern), timeout, o, err)
	}
	return nil
}

// Navigate loads url and waits for the load event. A non-2xx final response
// is a navigation error.
func (a *Actor) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = a.opts.NavTimeout
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.Navigation, fmt.Sprintf("navigate to %s", url), err)
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}

	status, err := a.page.Goto(url, timeout)
	if err != nil {
		return errs.Wrap(errs.Navigation, fmt.Sprintf("navigate to %s", url), err)
	}
	if status != 0 && (status < 200 || status > 299) {
		return errs.New(errs.Navigation, fmt.Sprintf("navigate to %s: response status %d", url, status))
	}
	logger(ctx).Debug("navigated", "url", url, "status", status)
	return nil
}

// classify converts a Poll failure into the primitive's coded error. Coded
// terminal errors (ambiguity) pass through unchanged.
func (a *Actor) classify(ctx context.Context, code errs.Code, what string, timeout time.Duration, o *observation, err error) error {
	var coded *errs.Error
	if errors.As(err, &coded) {
		return err
	}
	msg := fmt.Sprintf("%s: not satisfied within %s", what, timeout)
	if o.state != "" {
		msg += " (" + o.state + ")"
	}
	logger(ctx).Info("wait timed out", "what", what, "timeout", timeout.String(), "last_state", o.state)

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return errs.Wrap(code, msg, timeoutErr)
	}
	return errs.Wrap(code, msg, err)
}
