package wait

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/gobwas/glob"

	"github.com/entrhq/loginprobe/pkg/browser"
)

// Kind names a readiness condition.
type Kind string

const (
	Visible     Kind = "visible"
	Clickable   Kind = "clickable"
	Checked     Kind = "checked"
	URLContains Kind = "url-contains"
	URLMatches  Kind = "url-matches"
	TextMatches Kind = "text-matches"
)

// Outcome is the tri-state result of waiting for a condition.
type Outcome int

const (
	// Ready means the condition held before the timeout.
	Ready Outcome = iota
	// NotReady means the timeout passed first.
	NotReady
	// Errored means the driver failed or the wait was cancelled.
	Errored
)

func (o Outcome) String() string {
	switch o {
	case Ready:
		return "ready"
	case NotReady:
		return "not-ready"
	default:
		return "errored"
	}
}

// OutcomeOf classifies an error returned by Policy.Until.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return Ready
	case errors.Is(err, ErrTimeout):
		return NotReady
	default:
		return Errored
	}
}

// ElementVisible holds when the element is rendered and visible.
func ElementVisible(el browser.Element) Check {
	return func(context.Context) (bool, error) {
		return el.IsVisible()
	}
}

// ElementClickable holds when the element is visible and enabled.
func ElementClickable(el browser.Element) Check {
	return func(context.Context) (bool, error) {
		visible, err := el.IsVisible()
		if err != nil || !visible {
			return false, err
		}
		return el.IsEnabled()
	}
}

// ElementChecked holds when the checkbox or radio is selected.
func ElementChecked(el browser.Element) Check {
	return func(context.Context) (bool, error) {
		return el.IsChecked()
	}
}

// ElementText holds when the element is visible and its text satisfies match.
func ElementText(el browser.Element, match func(string) bool) Check {
	return func(context.Context) (bool, error) {
		visible, err := el.IsVisible()
		if err != nil || !visible {
			return false, err
		}
		text, err := el.Text()
		if err != nil {
			return false, err
		}
		return match(strings.TrimSpace(text)), nil
	}
}

// TextMatching compiles pattern into a matcher for ElementText.
func TextMatching(pattern string) (func(string) bool, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return re.MatchString, nil
}

// PageURLContains holds when the page URL contains fragment.
func PageURLContains(page browser.Page, fragment string) Check {
	return func(context.Context) (bool, error) {
		return strings.Contains(page.URL(), fragment), nil
	}
}

// PageURLMatches holds when the page URL matches the glob pattern. The
// pattern uses '/' as separator, so '*' stays inside one path segment and
// '**' spans segments.
func PageURLMatches(page browser.Page, pattern glob.Glob) Check {
	return func(context.Context) (bool, error) {
		return pattern.Match(page.URL()), nil
	}
}

// CompileURLPattern compiles a URL glob for PageURLMatches.
func CompileURLPattern(pattern string) (glob.Glob, error) {
	return glob.Compile(pattern, '/')
}

// All holds when every check holds. Checks run in order and stop at the
// first that does not hold.
func All(checks ...Check) Check {
	return func(ctx context.Context) (bool, error) {
		for _, c := range checks {
			ok, err := c(ctx)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}
