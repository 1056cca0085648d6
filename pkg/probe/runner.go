// Package probe runs scripted login checks against a target application.
// Each check gets its own browser session; checks run concurrently up to
// the configured limit and never share a session.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/entrhq/loginprobe/pkg/browser"
	"github.com/entrhq/loginprobe/pkg/config"
	"github.com/entrhq/loginprobe/pkg/logging"
	"github.com/entrhq/loginprobe/pkg/loginpage"
	"github.com/entrhq/loginprobe/pkg/wait"
)

// Runner executes the checks of a configuration.
type Runner struct {
	cfg      *config.Config
	profile  loginpage.Profile
	launcher browser.Launcher
	admin    loginpage.AccountAdmin
	logger   *logging.Logger
	console  *Console
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithAccountAdmin lets lock checks change account state.
func WithAccountAdmin(a loginpage.AccountAdmin) RunnerOption {
	return func(r *Runner) { r.admin = a }
}

// WithLogger sets the file logger.
func WithLogger(l *logging.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithConsole sets the console progress printer.
func WithConsole(c *Console) RunnerOption {
	return func(r *Runner) { r.console = c }
}

// NewRunner validates cfg and resolves its target profile.
func NewRunner(cfg *config.Config, launcher browser.Launcher, opts ...RunnerOption) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	profile, err := ResolveProfile(cfg.Target)
	if err != nil {
		return nil, err
	}
	policy := wait.Policy{Timeout: cfg.Wait.Timeout, Interval: cfg.Wait.Interval}.WithDefaults()
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wait configuration: %w", err)
	}

	r := &Runner{
		cfg:      cfg,
		profile:  profile,
		launcher: launcher,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run provisions the browser once, then runs every check. It returns an
// error only when the run could not start or was cancelled; check
// failures are reported in the summary.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		RunID:     r.logger.RunID(),
		BaseURL:   r.cfg.Target.BaseURL,
		Profile:   r.profile.Name,
		StartTime: time.Now(),
		Results:   make([]Result, len(r.cfg.Checks)),
	}
	if summary.RunID == "" {
		summary.RunID = logging.GetRunID()
	}

	r.console.Header(fmt.Sprintf("loginprobe: %d checks against %s", len(r.cfg.Checks), r.cfg.Target.BaseURL))
	r.logger.Infof("run %s: %d checks against %s (profile %s)", summary.RunID, len(r.cfg.Checks), summary.BaseURL, summary.Profile)

	if err := r.launcher.Provision(ctx); err != nil {
		err = &browser.EnvironmentError{Stage: "provision", Err: err}
		summary.Error = err.Error()
		summary.Results = nil
		summary.finish(time.Now())
		return summary, err
	}
	launcher := &provisioned{Launcher: r.launcher}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, check := range r.cfg.Checks {
		i, check := i, check
		g.Go(func() error {
			result, err := r.runCheck(gctx, launcher, check)
			summary.Results[i] = result
			r.console.CheckFinished(result)
			if errors.Is(err, browser.ErrEnvironment) {
				return err
			}
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}
	if runErr != nil {
		summary.Error = runErr.Error()
	}

	summary.finish(time.Now())
	r.logger.Infof("run %s finished: %s (%d passed, %d failed, %d errored, %d skipped)",
		summary.RunID, summary.Status, summary.Metrics.Passed, summary.Metrics.Failed,
		summary.Metrics.Errored, summary.Metrics.Skipped)
	return summary, runErr
}

// provisioned skips provisioning already done by Run.
type provisioned struct {
	browser.Launcher
}

func (provisioned) Provision(context.Context) error { return nil }

func (r *Runner) sessionOptions() browser.SessionOptions {
	opts := browser.SessionOptions{
		BaseURL:   r.cfg.Target.BaseURL,
		Headless:  r.cfg.Browser.Headless,
		Maximized: r.cfg.Browser.Maximized,
		Timeout:   r.cfg.Browser.Timeout,
	}
	if r.cfg.Browser.Width > 0 && r.cfg.Browser.Height > 0 {
		opts.Viewport = &browser.Viewport{Width: r.cfg.Browser.Width, Height: r.cfg.Browser.Height}
	}
	return opts
}

// runCheck runs one check in a session of its own. The returned error is
// the raw failure, for the caller to decide whether the run can continue.
func (r *Runner) runCheck(ctx context.Context, launcher browser.Launcher, check config.CheckConfig) (Result, error) {
	result := Result{Name: check.Name, Expect: check.Expect, StartTime: time.Now()}
	logger := r.logger.With("check")
	r.console.CheckStarted(check.Name)

	manager := browser.NewSessionManager(launcher, r.sessionOptions(), browser.WithLogger(logger))
	err := manager.WithSession(ctx, func(ctx context.Context, s *browser.Session) error {
		result.SessionID = s.ID
		ctrl, err := loginpage.New(s,
			loginpage.WithProfile(r.profile),
			loginpage.WithPolicy(wait.Policy{Timeout: r.cfg.Wait.Timeout, Interval: r.cfg.Wait.Interval}),
			loginpage.WithLogger(logger),
			loginpage.WithAccountAdmin(r.admin),
		)
		if err != nil {
			return err
		}
		defer func() { result.URL = s.CurrentURL() }()
		return r.execute(ctx, ctrl, check, &result)
	})

	result.Duration = time.Since(result.StartTime)
	classify(&result, err)
	logger.Infof("check %q: %s %s", check.Name, result.Status, result.Detail)
	return result, err
}

// classify sets the status of a check that returned err. A nil err keeps
// the status set by execute.
func classify(result *Result, err error) {
	if err == nil {
		return
	}
	result.Error = err.Error()

	var notReady *loginpage.ElementNotReadyError
	var notImpl *loginpage.NotImplementedError
	switch {
	case errors.As(err, &notImpl):
		result.Status = StatusSkipped
		result.Detail = notImpl.Reason
	case errors.As(err, &notReady):
		result.Status = StatusErrored
		result.Detail = fmt.Sprintf("%s never became %s", notReady.Element, notReady.Condition)
		result.PageText = notReady.PageText
	default:
		result.Status = StatusErrored
		if result.Detail == "" {
			result.Detail = "check could not run"
		}
	}
}

// lockMu serializes lock checks so two never toggle one account at once.
// Lock checks should use accounts no other check logs in with.
var lockMu sync.Mutex

func (r *Runner) execute(ctx context.Context, ctrl *loginpage.Controller, check config.CheckConfig, result *Result) error {
	if err := ctrl.NavigateToLoginPage(ctx); err != nil {
		return err
	}

	if check.Lock {
		lockMu.Lock()
		defer lockMu.Unlock()
		if err := ctrl.SetAccountLocked(ctx, check.Username, true); err != nil {
			return err
		}
		defer func() {
			if err := ctrl.SetAccountLocked(context.WithoutCancel(ctx), check.Username, false); err != nil {
				r.logger.Warnf("failed to unlock %s: %v", check.Username, err)
			}
		}()
	}

	if check.RememberMe {
		if err := ctrl.CheckRememberMe(ctx); err != nil {
			return err
		}
	}
	if err := ctrl.Login(ctx, check.Username, check.Password); err != nil {
		return err
	}

	passed, detail, err := r.verify(ctx, ctrl, check)
	if err != nil {
		return err
	}
	result.Detail = detail
	result.Status = StatusFailed
	if passed {
		result.Status = StatusPassed
	}
	return nil
}

// verify compares the page after submitting with the check's expectation.
func (r *Runner) verify(ctx context.Context, ctrl *loginpage.Controller, check config.CheckConfig) (bool, string, error) {
	switch check.Expect {
	case config.ExpectSuccess:
		if !ctrl.IsLoginSuccessful(ctx) {
			if msg := ctrl.ErrorMessage(ctx); msg != "" {
				return false, fmt.Sprintf("login failed: %q", msg), nil
			}
			return false, "home page or welcome message not displayed", nil
		}
		if check.Role == "" {
			return true, "logged in", nil
		}
		ok, err := ctrl.VerifyUserRole(ctx, check.Role)
		if err != nil {
			return false, "", err
		}
		if !ok {
			return false, fmt.Sprintf("role %s not shown", check.Role), nil
		}
		ok, err = ctrl.IsDashboardDisplayedForRole(ctx, check.Role)
		if err != nil {
			return false, "", err
		}
		if !ok {
			return false, fmt.Sprintf("dashboard for %s not displayed", check.Role), nil
		}
		return true, "logged in as " + check.Role, nil

	case config.ExpectInvalidCredentials:
		msg := ctrl.ErrorMessage(ctx)
		want := ctrl.Profile().InvalidCredentialsText
		if msg == "" {
			return false, "no error message displayed", nil
		}
		if want != "" && !strings.Contains(msg, want) {
			return false, fmt.Sprintf("error message %q, want %q", msg, want), nil
		}
		return true, fmt.Sprintf("rejected with %q", msg), nil

	case config.ExpectRequiredFields:
		var missing []string
		if check.Username == "" && !ctrl.IsUsernameValidationDisplayed(ctx) {
			missing = append(missing, "username")
		}
		if check.Password == "" && !ctrl.IsPasswordValidationDisplayed(ctx) {
			missing = append(missing, "password")
		}
		if len(missing) > 0 {
			return false, "no required-field message for " + strings.Join(missing, " and "), nil
		}
		return true, "required-field messages displayed", nil

	case config.ExpectLocked:
		locked, err := ctrl.IsAccountTemporarilyLocked(ctx)
		if err != nil {
			return false, "", err
		}
		if !locked {
			return false, "lockout message not displayed", nil
		}
		return true, "account reported locked", nil
	}
	return false, "", fmt.Errorf("unknown expectation %q", check.Expect)
}
