package browser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Strategy is the way a Locator finds its element.
type Strategy string

const (
	ByID          Strategy = "id"
	ByName        Strategy = "name"
	ByCSS         Strategy = "css"
	ByXPath       Strategy = "xpath"
	ByText        Strategy = "text"
	ByPlaceholder Strategy = "placeholder"
)

// Locator is a declarative reference to a page element.
// Locators are plain values; pages define them once and reuse them.
type Locator struct {
	Strategy Strategy
	Value    string
}

// ID returns a locator matching the element's id attribute.
func ID(id string) Locator { return Locator{Strategy: ByID, Value: id} }

// Name returns a locator matching the element's name attribute.
func Name(name string) Locator { return Locator{Strategy: ByName, Value: name} }

// CSS returns a locator for a CSS selector.
func CSS(selector string) Locator { return Locator{Strategy: ByCSS, Value: selector} }

// XPath returns a locator for an XPath expression.
func XPath(expr string) Locator { return Locator{Strategy: ByXPath, Value: expr} }

// Text returns a locator matching an element by its visible text.
func Text(text string) Locator { return Locator{Strategy: ByText, Value: text} }

// Placeholder returns a locator matching an input by its placeholder.
func Placeholder(p string) Locator { return Locator{Strategy: ByPlaceholder, Value: p} }

// IsZero reports whether the locator is unset.
func (l Locator) IsZero() bool {
	return l.Value == ""
}

// Selector renders the locator as a playwright selector string.
func (l Locator) Selector() string {
	switch l.Strategy {
	case ByID:
		return fmt.Sprintf("[id=%s]", strconv.Quote(l.Value))
	case ByName:
		return fmt.Sprintf("[name=%s]", strconv.Quote(l.Value))
	case ByXPath:
		return "xpath=" + l.Value
	case ByText:
		return "text=" + strconv.Quote(l.Value)
	case ByPlaceholder:
		return fmt.Sprintf("[placeholder=%s]", strconv.Quote(l.Value))
	default:
		return l.Value
	}
}

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.Strategy, l.Value)
}

// ParseLocator parses "strategy=value" as written in config files.
// A value without a known strategy prefix is treated as CSS.
func ParseLocator(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Locator{}, fmt.Errorf("empty locator")
	}
	if strategy, value, ok := strings.Cut(s, "="); ok {
		switch st := Strategy(strings.ToLower(strings.TrimSpace(strategy))); st {
		case ByID, ByName, ByCSS, ByXPath, ByText, ByPlaceholder:
			if strings.TrimSpace(value) == "" {
				return Locator{}, fmt.Errorf("locator %q has no value", s)
			}
			return Locator{Strategy: st, Value: value}, nil
		}
	}
	return CSS(s), nil
}

// ViewportState records how the browser window was sized at launch.
type ViewportState string

const (
	ViewportDefault   ViewportState = "default"
	ViewportMaximized ViewportState = "maximized"
)

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// SessionOptions configures sessions created by a SessionManager.
type SessionOptions struct {
	// BaseURL is opened right after launch when non-empty
	BaseURL string

	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Maximized starts the window maximized and ignores Viewport
	Maximized bool

	// Viewport sets the initial viewport size when not maximized
	Viewport *Viewport

	// Timeout is the driver's own default timeout for actions and navigation
	Timeout time.Duration
}

// LaunchOptions is what a Launcher receives for one browser launch.
type LaunchOptions struct {
	Headless  bool
	Maximized bool
	Viewport  Viewport
	Timeout   time.Duration
}

// Default values for sessions
const (
	DefaultTimeout        = 10 * time.Second
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultSnapshotLength = 500
)

func (o SessionOptions) withDefaults() SessionOptions {
	if o.Viewport == nil {
		o.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

func (o SessionOptions) launchOptions() LaunchOptions {
	return LaunchOptions{
		Headless:  o.Headless,
		Maximized: o.Maximized,
		Viewport:  *o.Viewport,
		Timeout:   o.Timeout,
	}
}
