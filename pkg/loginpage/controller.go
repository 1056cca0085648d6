package loginpage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/entrhq/loginprobe/pkg/browser"
	"github.com/entrhq/loginprobe/pkg/logging"
	"github.com/entrhq/loginprobe/pkg/wait"
)

const (
	tracerName = "github.com/entrhq/loginprobe/pkg/loginpage"

	// pageTextPreview bounds the page text attached to ElementNotReadyError
	pageTextPreview = 300
)

// AccountAdmin changes account state behind the UI, for scenarios that
// need a precondition the login page itself cannot create.
type AccountAdmin interface {
	SetAccountLocked(ctx context.Context, username string, locked bool) error
}

// Controller performs and validates login interactions on one page.
//
// Interaction methods act and may fail: when their element does not become
// ready in time they return an *ElementNotReadyError. Query methods observe
// and never fail: a timeout or driver error reads as false or "".
//
// A Controller borrows its session; it never releases it. Once the session
// is released every interaction fails and every query reports false.
type Controller struct {
	session *browser.Session
	profile Profile
	policy  wait.Policy
	homeURL glob.Glob
	admin   AccountAdmin
	logger  *logging.Logger
	tracer  trace.Tracer
}

// Option configures a Controller.
type Option func(*Controller)

// WithPolicy overrides the default wait policy.
func WithPolicy(p wait.Policy) Option {
	return func(c *Controller) { c.policy = p.WithDefaults() }
}

// WithProfile targets a different application than OrangeHRM.
func WithProfile(p Profile) Option {
	return func(c *Controller) { c.profile = p }
}

// WithLogger sets the controller's logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithAccountAdmin backs SetAccountLocked.
func WithAccountAdmin(a AccountAdmin) Option {
	return func(c *Controller) { c.admin = a }
}

// New binds a controller to a live session. It fails with
// browser.ErrNoActiveSession when session is nil or already released.
func New(session *browser.Session, opts ...Option) (*Controller, error) {
	if session == nil || session.Released() {
		return nil, browser.ErrNoActiveSession
	}

	c := &Controller{
		session: session,
		profile: OrangeHRMProfile(),
		policy:  wait.DefaultPolicy(),
		logger:  logging.Nop(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.profile.Validate(); err != nil {
		return nil, err
	}
	if err := c.policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wait policy: %w", err)
	}
	homeURL, err := wait.CompileURLPattern(c.profile.HomeURLPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: home URL pattern: %v", ErrInvalidProfile, err)
	}
	c.homeURL = homeURL
	return c, nil
}

// Profile returns the profile the controller targets.
func (c *Controller) Profile() Profile {
	return c.profile
}

// Policy returns the wait policy applied before every call.
func (c *Controller) Policy() wait.Policy {
	return c.policy
}

// Interactions

// NavigateToLoginPage opens the profile's login path under the session's
// base URL and waits for the username field.
func (c *Controller) NavigateToLoginPage(ctx context.Context) (err error) {
	ctx, end := c.start(ctx, "NavigateToLoginPage")
	defer func() { end(err) }()

	if c.session.BaseURL == "" {
		return fmt.Errorf("session %s has no base URL", c.session.ID)
	}
	loginURL, err := url.JoinPath(c.session.BaseURL, c.profile.LoginPath)
	if err != nil {
		return fmt.Errorf("invalid login URL: %w", err)
	}
	if err := c.session.Navigate(ctx, loginURL); err != nil {
		return err
	}
	_, err = c.ready(ctx, "username field", c.profile.Locators.Username, wait.Visible)
	return err
}

// EnterUsername clears the username field and types user.
func (c *Controller) EnterUsername(ctx context.Context, user string) (err error) {
	ctx, end := c.start(ctx, "EnterUsername")
	defer func() { end(err) }()
	return c.fill(ctx, "username field", c.profile.Locators.Username, user)
}

// EnterPassword clears the password field and types pass.
func (c *Controller) EnterPassword(ctx context.Context, pass string) (err error) {
	ctx, end := c.start(ctx, "EnterPassword")
	defer func() { end(err) }()
	return c.fill(ctx, "password field", c.profile.Locators.Password, pass)
}

// ClickLogin clicks the submit control once it is clickable.
func (c *Controller) ClickLogin(ctx context.Context) (err error) {
	ctx, end := c.start(ctx, "ClickLogin")
	defer func() { end(err) }()
	return c.click(ctx, "login button", c.profile.Locators.Submit)
}

// Login enters both credentials and submits.
func (c *Controller) Login(ctx context.Context, user, pass string) error {
	if err := c.EnterUsername(ctx, user); err != nil {
		return err
	}
	if err := c.EnterPassword(ctx, pass); err != nil {
		return err
	}
	return c.ClickLogin(ctx)
}

// CheckRememberMe selects the remember-me control. It does not click a
// control that is already selected, so calling it twice is harmless.
func (c *Controller) CheckRememberMe(ctx context.Context) (err error) {
	ctx, end := c.start(ctx, "CheckRememberMe")
	defer func() { end(err) }()

	if !c.profile.Capabilities.RememberMe {
		return c.unsupported("CheckRememberMe", "remember-me")
	}
	loc := c.profile.Locators.RememberMe
	el, err := c.ready(ctx, "remember-me control", loc, wait.Clickable)
	if err != nil {
		return err
	}
	checked, err := el.IsChecked()
	if err != nil {
		return c.driverError("remember-me control", err)
	}
	if checked {
		c.logger.Debugf("remember-me already selected")
		return nil
	}
	if err := el.Click(); err != nil {
		return c.driverError("remember-me control", err)
	}
	if err := c.policy.Until(ctx, wait.ElementChecked(el)); err != nil {
		if wait.OutcomeOf(err) == wait.NotReady {
			return c.notReady("remember-me control", loc, wait.Checked)
		}
		return c.driverError("remember-me control", err)
	}
	return nil
}

// ClickLink clicks the link whose visible text is text.
func (c *Controller) ClickLink(ctx context.Context, text string) (err error) {
	ctx, end := c.start(ctx, "ClickLink")
	defer func() { end(err) }()
	return c.click(ctx, fmt.Sprintf("link %q", text), browser.Text(text))
}

// SetAccountLocked locks or unlocks username through the AccountAdmin.
// Without one it returns a *NotImplementedError.
func (c *Controller) SetAccountLocked(ctx context.Context, username string, locked bool) error {
	if c.admin == nil {
		return &NotImplementedError{
			Operation: "SetAccountLocked",
			Reason:    "no account admin configured for profile " + c.profile.Name,
		}
	}
	if err := c.admin.SetAccountLocked(ctx, username, locked); err != nil {
		return fmt.Errorf("failed to set lock state of %q: %w", username, err)
	}
	return nil
}

// Queries

// IsLoginPageDisplayed reports whether the username, password and submit
// controls are all visible.
func (c *Controller) IsLoginPageDisplayed(ctx context.Context) bool {
	l := c.profile.Locators
	return c.observe(ctx, "login page", func(p browser.Page) wait.Check {
		return wait.All(
			wait.ElementVisible(p.Find(l.Username)),
			wait.ElementVisible(p.Find(l.Password)),
			wait.ElementVisible(p.Find(l.Submit)),
		)
	})
}

// IsHomePageDisplayed reports whether the URL matches the profile's home pattern.
func (c *Controller) IsHomePageDisplayed(ctx context.Context) bool {
	return c.observe(ctx, "home page", func(p browser.Page) wait.Check {
		return wait.PageURLMatches(p, c.homeURL)
	})
}

// ErrorMessage returns the text of the error banner, or "" when none shows.
func (c *Controller) ErrorMessage(ctx context.Context) string {
	return c.readText(ctx, "error message", c.profile.Locators.ErrorMessage)
}

// IsWelcomeMessageDisplayed reports whether the welcome banner shows text.
func (c *Controller) IsWelcomeMessageDisplayed(ctx context.Context) bool {
	return c.observe(ctx, "welcome message", func(p browser.Page) wait.Check {
		return wait.ElementText(p.Find(c.profile.Locators.WelcomeMessage), nonEmpty)
	})
}

// IsUsernameValidationDisplayed reports whether the username field shows
// its required-field message.
func (c *Controller) IsUsernameValidationDisplayed(ctx context.Context) bool {
	return c.visible(ctx, "username validation", c.profile.Locators.UsernameValidation)
}

// IsPasswordValidationDisplayed reports whether the password field shows
// its required-field message.
func (c *Controller) IsPasswordValidationDisplayed(ctx context.Context) bool {
	return c.visible(ctx, "password validation", c.profile.Locators.PasswordValidation)
}

// IsLoginSuccessful holds when both the home page and the welcome message
// are displayed.
func (c *Controller) IsLoginSuccessful(ctx context.Context) bool {
	return c.IsHomePageDisplayed(ctx) && c.IsWelcomeMessageDisplayed(ctx)
}

// AreCredentialsRemembered reports whether the username field comes
// prefilled.
func (c *Controller) AreCredentialsRemembered(ctx context.Context) bool {
	return c.observe(ctx, "remembered username", func(p browser.Page) wait.Check {
		el := p.Find(c.profile.Locators.Username)
		return wait.All(wait.ElementVisible(el), func(context.Context) (bool, error) {
			value, err := el.Value()
			return value != "", err
		})
	})
}

// IsResetOptionDisplayed reports whether the forgot-password link shows.
func (c *Controller) IsResetOptionDisplayed(ctx context.Context) (bool, error) {
	if !c.profile.Capabilities.PasswordReset {
		return false, c.unsupported("IsResetOptionDisplayed", "password reset")
	}
	return c.visible(ctx, "reset option", c.profile.Locators.ResetLink), nil
}

// IsPasswordResetPageDisplayed reports whether the browser is on the
// password reset page.
func (c *Controller) IsPasswordResetPageDisplayed(ctx context.Context) (bool, error) {
	if !c.profile.Capabilities.PasswordReset {
		return false, c.unsupported("IsPasswordResetPageDisplayed", "password reset")
	}
	return c.observe(ctx, "password reset page", func(p browser.Page) wait.Check {
		return wait.All(
			wait.PageURLContains(p, c.profile.ResetPath),
			wait.ElementVisible(p.Find(c.profile.Locators.ResetHeading)),
		)
	}), nil
}

// IsAccountTemporarilyLocked reports whether the lockout message shows.
func (c *Controller) IsAccountTemporarilyLocked(ctx context.Context) (bool, error) {
	if !c.profile.Capabilities.Lockout {
		return false, c.unsupported("IsAccountTemporarilyLocked", "account lockout")
	}
	return c.visible(ctx, "lockout message", c.profile.Locators.LockoutMessage), nil
}

// VerifyUserRole reports whether the signed-in user's role indicator reads role.
func (c *Controller) VerifyUserRole(ctx context.Context, role string) (bool, error) {
	if !c.profile.Capabilities.RoleDashboards {
		return false, c.unsupported("VerifyUserRole", "role dashboards")
	}
	return c.observe(ctx, "user role "+role, func(p browser.Page) wait.Check {
		return wait.ElementText(p.Find(c.profile.Locators.RoleIndicator), func(s string) bool {
			return strings.EqualFold(s, role)
		})
	}), nil
}

// IsDashboardDisplayedForRole reports whether the home page shows the
// widget reserved for role.
func (c *Controller) IsDashboardDisplayedForRole(ctx context.Context, role string) (bool, error) {
	if !c.profile.Capabilities.RoleDashboards {
		return false, c.unsupported("IsDashboardDisplayedForRole", "role dashboards")
	}
	widget, ok := c.profile.Locators.RoleWidgets[role]
	if !ok {
		return false, fmt.Errorf("%w %q (known: %v)", ErrUnknownRole, role, c.profile.Roles())
	}
	return c.observe(ctx, "dashboard for "+role, func(p browser.Page) wait.Check {
		return wait.All(wait.PageURLMatches(p, c.homeURL), wait.ElementVisible(p.Find(widget)))
	}), nil
}

// Probe waits for loc to satisfy kind and reports the tri-state outcome.
// It is the diagnostic counterpart of the boolean queries.
func (c *Controller) Probe(ctx context.Context, loc browser.Locator, kind wait.Kind) (wait.Outcome, error) {
	page, err := c.session.Page()
	if err != nil {
		return wait.Errored, err
	}
	el := page.Find(loc)
	var check wait.Check
	switch kind {
	case wait.Visible:
		check = wait.ElementVisible(el)
	case wait.Clickable:
		check = wait.ElementClickable(el)
	case wait.Checked:
		check = wait.ElementChecked(el)
	default:
		return wait.Errored, fmt.Errorf("unsupported condition %q for Probe", kind)
	}
	err = c.policy.Until(ctx, check)
	return wait.OutcomeOf(err), err
}

// ProbeText waits for the text of loc to match the regular expression
// pattern and reports the tri-state outcome.
func (c *Controller) ProbeText(ctx context.Context, loc browser.Locator, pattern string) (wait.Outcome, error) {
	match, err := wait.TextMatching(pattern)
	if err != nil {
		return wait.Errored, fmt.Errorf("invalid %s pattern: %w", wait.TextMatches, err)
	}
	page, err := c.session.Page()
	if err != nil {
		return wait.Errored, err
	}
	err = c.policy.Until(ctx, wait.ElementText(page.Find(loc), match))
	return wait.OutcomeOf(err), err
}

// helpers

func nonEmpty(s string) bool { return s != "" }

func (c *Controller) fill(ctx context.Context, name string, loc browser.Locator, value string) error {
	el, err := c.ready(ctx, name, loc, wait.Visible)
	if err != nil {
		return err
	}
	if err := el.Fill(value); err != nil {
		return c.driverError(name, err)
	}
	return nil
}

func (c *Controller) click(ctx context.Context, name string, loc browser.Locator) error {
	el, err := c.ready(ctx, name, loc, wait.Clickable)
	if err != nil {
		return err
	}
	if err := el.Click(); err != nil {
		return c.driverError(name, err)
	}
	return nil
}

// ready waits for loc to satisfy kind and returns the element.
func (c *Controller) ready(ctx context.Context, name string, loc browser.Locator, kind wait.Kind) (browser.Element, error) {
	el, err := c.session.Find(loc)
	if err != nil {
		return nil, err
	}

	check := wait.ElementVisible(el)
	if kind == wait.Clickable {
		check = wait.ElementClickable(el)
	}

	err = c.policy.Until(ctx, check)
	switch wait.OutcomeOf(err) {
	case wait.Ready:
		return el, nil
	case wait.NotReady:
		return nil, c.notReady(name, loc, kind)
	default:
		return nil, c.driverError(name, err)
	}
}

func (c *Controller) notReady(name string, loc browser.Locator, kind wait.Kind) error {
	notReady := &ElementNotReadyError{
		Element:   name,
		Locator:   loc,
		Condition: kind,
		Timeout:   c.policy.Timeout,
	}
	if snap, err := c.session.Snapshot(pageTextPreview); err == nil {
		notReady.PageText = snap.Text
	}
	c.logger.Warnf("%v (url=%s)", notReady, c.session.CurrentURL())
	return notReady
}

// driverError wraps a failed driver call, reporting a released session as such.
func (c *Controller) driverError(name string, err error) error {
	if c.session.Released() && !errors.Is(err, browser.ErrSessionReleased) {
		err = fmt.Errorf("%w: %v", browser.ErrSessionReleased, err)
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (c *Controller) unsupported(operation, capability string) error {
	return &NotImplementedError{
		Operation: operation,
		Reason:    fmt.Sprintf("profile %s does not support %s", c.profile.Name, capability),
	}
}

// observe waits for the check built from the current page and converts
// every failure into false.
func (c *Controller) observe(ctx context.Context, what string, build func(p browser.Page) wait.Check) bool {
	page, err := c.session.Page()
	if err != nil {
		c.logger.Debugf("%s: %v", what, err)
		return false
	}
	if err := c.policy.Until(ctx, build(page)); err != nil {
		c.logger.Debugf("%s: %s: %v", what, wait.OutcomeOf(err), err)
		return false
	}
	return true
}

func (c *Controller) visible(ctx context.Context, what string, loc browser.Locator) bool {
	return c.observe(ctx, what, func(p browser.Page) wait.Check {
		return wait.ElementVisible(p.Find(loc))
	})
}

func (c *Controller) readText(ctx context.Context, what string, loc browser.Locator) string {
	var text string
	c.observe(ctx, what, func(p browser.Page) wait.Check {
		return wait.ElementText(p.Find(loc), func(s string) bool {
			text = s
			return s != ""
		})
	})
	return text
}

// start opens a span for an interaction; end records the error, if any.
func (c *Controller) start(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := c.tracer.Start(ctx, "loginpage."+op, trace.WithAttributes(
		attribute.String("browser.session.id", c.session.ID),
		attribute.String("loginpage.profile", c.profile.Name),
	))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
