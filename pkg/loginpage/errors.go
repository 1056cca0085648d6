package loginpage

import (
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/loginprobe/pkg/browser"
	"github.com/entrhq/loginprobe/pkg/wait"
)

var (
	// ErrElementNotReady matches every *ElementNotReadyError.
	ErrElementNotReady = errors.New("element not ready")

	// ErrNotImplemented matches every *NotImplementedError.
	ErrNotImplemented = errors.New("operation not implemented")

	// ErrUnknownRole is returned for a role the profile has no dashboard for.
	ErrUnknownRole = errors.New("unknown role")

	// ErrInvalidProfile is returned when a profile fails validation.
	ErrInvalidProfile = errors.New("invalid login page profile")
)

// ElementNotReadyError reports that an interaction's wait condition timed
// out. It is not retried here; retrying is the caller's decision.
type ElementNotReadyError struct {
	Element   string
	Locator   browser.Locator
	Condition wait.Kind
	Timeout   time.Duration

	// PageText is a short visible-text preview of the page at failure time
	PageText string
}

func (e *ElementNotReadyError) Error() string {
	return fmt.Sprintf("%s (%s) not %s after %v", e.Element, e.Locator, e.Condition, e.Timeout)
}

// Is makes errors.Is(err, ErrElementNotReady) true.
func (e *ElementNotReadyError) Is(target error) bool {
	return target == ErrElementNotReady
}

// NotImplementedError reports an operation the configured target cannot
// back with real behaviour. It signals missing coverage, not an
// application defect.
type NotImplementedError struct {
	Operation string
	Reason    string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s is not implemented: %s", e.Operation, e.Reason)
}

// Is makes errors.Is(err, ErrNotImplemented) true.
func (e *NotImplementedError) Is(target error) bool {
	return target == ErrNotImplemented
}
