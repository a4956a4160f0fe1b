package interact

import (
	"fmt"
	"strings"
)

// Kind selects how a Locator is resolved against the page.
type Kind string

const (
	KindRole  Kind = "role"
	KindLabel Kind = "label"
	KindText  Kind = "text"
	KindCSS   Kind = "css"
)

// Locator is a logical reference to zero or more elements. It holds no
// element handles and is resolved again on every use.
type Locator struct {
	Kind  Kind
	Role  string // ARIA role, for KindRole
	Value string // accessible name, label text, text, or CSS selector
	Exact bool   // exact (case-sensitive, whole-string) match for name/label/text
}

// Role locates elements by ARIA role and accessible name.
func Role(role, name string) Locator {
	return Locator{Kind: KindRole, Role: role, Value: name}
}

// Label locates form controls by their associated label text.
func Label(text string) Locator {
	return Locator{Kind: KindLabel, Value: text}
}

// Text locates elements containing text.
func Text(text string) Locator {
	return Locator{Kind: KindText, Value: text}
}

// ExactText locates elements whose full text equals text.
func ExactText(text string) Locator {
	return Locator{Kind: KindText, Value: text, Exact: true}
}

// CSS locates elements by CSS selector.
func CSS(selector string) Locator {
	return Locator{Kind: KindCSS, Value: selector}
}

// WithExact returns a copy of l with exact matching toggled.
func (l Locator) WithExact(exact bool) Locator {
	l.Exact = exact
	return l
}

// Validate reports malformed locators before they reach the page.
func (l Locator) Validate() error {
	switch l.Kind {
	case KindRole:
		if strings.TrimSpace(l.Role) == "" {
			return fmt.Errorf("role locator requires a role")
		}
	case KindLabel, KindText, KindCSS:
		if strings.TrimSpace(l.Value) == "" {
			return fmt.Errorf("%s locator requires a value", l.Kind)
		}
	default:
		return fmt.Errorf("unknown locator kind %q", l.Kind)
	}
	return nil
}

// String renders the locator for logs and error messages.
func (l Locator) String() string {
	quote := func(s string) string {
		if l.Exact {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("%q~", s)
	}
	switch l.Kind {
	case KindRole:
		if l.Value == "" {
			return "role=" + l.Role
		}
		return fmt.Sprintf("role=%s[name=%s]", l.Role, quote(l.Value))
	case KindLabel:
		return "label=" + quote(l.Value)
	case KindText:
		return "text=" + quote(l.Value)
	case KindCSS:
		return "css=" + l.Value
	default:
		return fmt.Sprintf("%s=%s", l.Kind, l.Value)
	}
}
