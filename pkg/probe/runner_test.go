package probe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/loginprobe/pkg/browser"
	"github.com/entrhq/loginprobe/pkg/browser/browsertest"
	"github.com/entrhq/loginprobe/pkg/config"
	"github.com/entrhq/loginprobe/pkg/demoapp"
)

// fakeSite scripts the demo app's pages on in-memory browsers.
type fakeSite struct {
	mu       sync.Mutex
	users    map[string]demoapp.User
	locked   map[string]bool
	noSubmit bool
}

func newFakeSite() *fakeSite {
	s := &fakeSite{users: map[string]demoapp.User{}, locked: map[string]bool{}}
	for _, u := range demoapp.DefaultUsers() {
		s.users[u.Username] = u
	}
	s.users["jdoe"] = demoapp.User{Username: "jdoe", Password: "jdoe1234", DisplayName: "John Doe", Role: demoapp.RoleESS}
	return s
}

func (s *fakeSite) SetAccountLocked(ctx context.Context, username string, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return demoapp.ErrUnknownUser
	}
	s.locked[username] = locked
	return nil
}

func (s *fakeSite) launcher() *browsertest.Launcher {
	return &browsertest.Launcher{Setup: func(p *browsertest.Page) {
		p.OnGoto = func(p *browsertest.Page, url string) {
			if strings.HasSuffix(url, demoapp.LoginPath) {
				s.showLogin(p)
			}
		}
	}}
}

func (s *fakeSite) showLogin(p *browsertest.Page) {
	l := demoapp.Profile().Locators
	p.Clear()
	p.SetContent("<html><body><h5>Login</h5></body></html>")
	p.Set(l.Username, &browsertest.Element{Visible: true})
	p.Set(l.Password, &browsertest.Element{Visible: true})
	p.Set(l.RememberMe, &browsertest.Element{Visible: true, Checkbox: true})
	if !s.noSubmit {
		p.Set(l.Submit, &browsertest.Element{Visible: true, OnClick: s.submit})
	}
}

func (s *fakeSite) submit(p *browsertest.Page) {
	l := demoapp.Profile().Locators
	username := p.Element(l.Username).Value
	password := p.Element(l.Password).Value

	if username == "" || password == "" {
		if username == "" {
			p.Set(l.UsernameValidation, &browsertest.Element{Visible: true, Text: "Required"})
		}
		if password == "" {
			p.Set(l.PasswordValidation, &browsertest.Element{Visible: true, Text: "Required"})
		}
		return
	}

	s.mu.Lock()
	user, ok := s.users[username]
	locked := s.locked[username]
	s.mu.Unlock()

	switch {
	case locked:
		p.Set(l.LockoutMessage, &browsertest.Element{Visible: true, Text: "Account temporarily locked"})
	case !ok || user.Password != password:
		p.Set(l.ErrorMessage, &browsertest.Element{Visible: true, Text: "Invalid credentials"})
	default:
		p.Clear()
		p.SetURL("http://demo.test" + demoapp.DashboardPath)
		p.Set(l.WelcomeMessage, &browsertest.Element{Visible: true, Text: user.DisplayName})
		p.Set(l.RoleIndicator, &browsertest.Element{Visible: true, Text: user.Role})
		p.Set(l.RoleWidgets[user.Role], &browsertest.Element{Visible: true})
	}
}

func testConfig(checks ...config.CheckConfig) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Target.BaseURL = "http://demo.test"
	cfg.Target.Profile = "orangehrm-demo"
	cfg.Wait = config.WaitConfig{Timeout: 150 * time.Millisecond, Interval: 10 * time.Millisecond}
	cfg.Concurrency = 3
	cfg.Checks = checks
	return cfg
}

func resultByName(t *testing.T, s *Summary, name string) Result {
	t.Helper()
	for _, r := range s.Results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no result for %q", name)
	return Result{}
}

func TestRunner_AllExpectationsPass(t *testing.T) {
	site := newFakeSite()
	launcher := site.launcher()
	cfg := testConfig(
		config.CheckConfig{Name: "admin", Username: "Admin", Password: "admin123", Expect: config.ExpectSuccess, Role: "Admin"},
		config.CheckConfig{Name: "ess remembered", Username: "ess.user", Password: "ess12345", Expect: config.ExpectSuccess, RememberMe: true},
		config.CheckConfig{Name: "wrong password", Username: "Admin", Password: "nope", Expect: config.ExpectInvalidCredentials},
		config.CheckConfig{Name: "blank form", Expect: config.ExpectRequiredFields},
		config.CheckConfig{Name: "blank password", Username: "Admin", Expect: config.ExpectRequiredFields},
		config.CheckConfig{Name: "locked", Username: "jdoe", Password: "jdoe1234", Expect: config.ExpectLocked, Lock: true},
	)

	runner, err := NewRunner(cfg, launcher, WithAccountAdmin(site))
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	for _, r := range summary.Results {
		assert.Equal(t, StatusPassed, r.Status, "%s: %s %s", r.Name, r.Detail, r.Error)
		assert.NotEmpty(t, r.SessionID)
	}
	assert.True(t, summary.Passed())
	assert.Equal(t, Metrics{Total: 6, Passed: 6}, summary.Metrics)
	assert.Equal(t, "orangehrm-demo", summary.Profile)

	assert.Equal(t, 1, launcher.Provisions(), "provisioning runs once per run")
	require.Len(t, launcher.Drivers(), 6, "one session per check")
	for _, d := range launcher.Drivers() {
		assert.Equal(t, 1, d.Closes(), "every session is released")
	}
	assert.False(t, site.locked["jdoe"], "lock checks restore the account")
}

func TestRunner_ReportsFailures(t *testing.T) {
	site := newFakeSite()
	cfg := testConfig(
		config.CheckConfig{Name: "expects success", Username: "Admin", Password: "wrong", Expect: config.ExpectSuccess},
		config.CheckConfig{Name: "expects rejection", Username: "Admin", Password: "admin123", Expect: config.ExpectInvalidCredentials},
		config.CheckConfig{Name: "wrong role", Username: "ess.user", Password: "ess12345", Expect: config.ExpectSuccess, Role: "Admin"},
	)
	runner, err := NewRunner(cfg, site.launcher())
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, summary.Status)
	assert.False(t, summary.Passed())

	r := resultByName(t, summary, "expects success")
	assert.Equal(t, StatusFailed, r.Status)
	assert.Contains(t, r.Detail, "Invalid credentials")

	r = resultByName(t, summary, "expects rejection")
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "no error message displayed", r.Detail)
	assert.Contains(t, r.URL, "/dashboard/")

	r = resultByName(t, summary, "wrong role")
	assert.Equal(t, StatusFailed, r.Status)
	assert.Contains(t, r.Detail, "role Admin")
}

func TestRunner_ElementNotReadyErrors(t *testing.T) {
	site := newFakeSite()
	site.noSubmit = true
	cfg := testConfig(config.CheckConfig{Name: "admin", Username: "Admin", Password: "admin123", Expect: config.ExpectSuccess})
	runner, err := NewRunner(cfg, site.launcher())
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	r := summary.Results[0]
	assert.Equal(t, StatusErrored, r.Status)
	assert.Contains(t, r.Detail, "login button never became clickable")
	assert.Contains(t, r.PageText, "Login")
	assert.Equal(t, StatusErrored, summary.Status)
}

func TestRunner_LockWithoutAdminIsSkipped(t *testing.T) {
	site := newFakeSite()
	cfg := testConfig(
		config.CheckConfig{Name: "admin", Username: "Admin", Password: "admin123", Expect: config.ExpectSuccess},
		config.CheckConfig{Name: "locked", Username: "Admin", Password: "admin123", Expect: config.ExpectLocked, Lock: true},
	)
	runner, err := NewRunner(cfg, site.launcher())
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	r := resultByName(t, summary, "locked")
	assert.Equal(t, StatusSkipped, r.Status)
	assert.Contains(t, r.Detail, "no account admin")
	assert.True(t, summary.Passed(), "skipped checks do not fail a run")
	assert.Equal(t, 1, summary.Metrics.Skipped)
}

func TestRunner_UnsupportedCapabilityIsSkipped(t *testing.T) {
	site := newFakeSite()
	cfg := testConfig(config.CheckConfig{Name: "locked", Username: "Admin", Password: "admin123", Expect: config.ExpectLocked})
	cfg.Target.Profile = "orangehrm"
	runner, err := NewRunner(cfg, site.launcher())
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, summary.Results[0].Status)
}

func TestRunner_ProvisionFailure(t *testing.T) {
	launcher := &browsertest.Launcher{ProvisionErr: errors.New("no network")}
	cfg := testConfig(config.CheckConfig{Name: "admin", Username: "Admin", Password: "admin123", Expect: config.ExpectSuccess})
	runner, err := NewRunner(cfg, launcher)
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	assert.ErrorIs(t, err, browser.ErrEnvironment)
	assert.Equal(t, StatusErrored, summary.Status)
	assert.Contains(t, summary.Error, "no network")
	assert.Empty(t, launcher.Drivers())
}

func TestRunner_LaunchFailureStopsRun(t *testing.T) {
	launcher := &browsertest.Launcher{LaunchErr: errors.New("chromium crashed")}
	cfg := testConfig(config.CheckConfig{Name: "admin", Username: "Admin", Password: "admin123", Expect: config.ExpectSuccess})
	runner, err := NewRunner(cfg, launcher)
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	assert.ErrorIs(t, err, browser.ErrEnvironment)
	assert.Equal(t, StatusErrored, summary.Results[0].Status)
}

func TestRunner_Cancelled(t *testing.T) {
	site := newFakeSite()
	cfg := testConfig(config.CheckConfig{Name: "admin", Username: "Admin", Password: "admin123", Expect: config.ExpectSuccess})
	runner, err := NewRunner(cfg, site.launcher())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, summary.Passed())
}

func TestNewRunner_Invalid(t *testing.T) {
	cfg := testConfig()
	_, err := NewRunner(cfg, &browsertest.Launcher{})
	assert.ErrorIs(t, err, config.ErrInvalid)

	cfg = testConfig(config.CheckConfig{Name: "admin", Username: "Admin", Password: "admin123", Expect: config.ExpectSuccess})
	cfg.Target.Profile = "sap"
	_, err = NewRunner(cfg, &browsertest.Launcher{})
	assert.ErrorContains(t, err, "unknown profile")

	cfg = testConfig(config.CheckConfig{Name: "admin", Username: "Admin", Password: "admin123", Expect: config.ExpectSuccess})
	cfg.Wait.Interval = 2 * time.Second
	_, err = NewRunner(cfg, &browsertest.Launcher{})
	assert.ErrorContains(t, err, "invalid wait configuration")
}

func TestRunner_ConsoleOutput(t *testing.T) {
	site := newFakeSite()
	cfg := testConfig(
		config.CheckConfig{Name: "admin", Username: "Admin", Password: "admin123", Expect: config.ExpectSuccess},
		config.CheckConfig{Name: "bad", Username: "Admin", Password: "admin123", Expect: config.ExpectInvalidCredentials},
	)
	var out bytes.Buffer
	runner, err := NewRunner(cfg, site.launcher(), WithConsole(NewConsole(LevelQuiet, &out, false)))
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	NewConsole(LevelQuiet, &out, false).Summary(summary)

	text := out.String()
	assert.NotContains(t, text, "✓ admin", "passes are hidden when quiet")
	assert.Contains(t, text, "✗ bad: failed")
	assert.Contains(t, text, "Status: FAILED")
	assert.Contains(t, text, "1 passed, 1 failed")
}
