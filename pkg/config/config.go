// Package config loads the loginprobe configuration: a YAML file layered
// over defaults, then environment overrides, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the public OrangeHRM demo.
const DefaultBaseURL = "https://opensource-demo.orangehrmlive.com"

// Environment variables read by ApplyEnv.
const (
	EnvBaseURL  = "LOGINPROBE_BASE_URL"
	EnvHeadless = "LOGINPROBE_HEADLESS"
	EnvBrowser  = "LOGINPROBE_BROWSER"
	EnvTimeout  = "LOGINPROBE_TIMEOUT"
)

// Expectation is what a check expects a login attempt to produce.
type Expectation string

const (
	ExpectSuccess            Expectation = "success"
	ExpectInvalidCredentials Expectation = "invalid_credentials"
	ExpectRequiredFields     Expectation = "required_fields"
	ExpectLocked             Expectation = "locked"
)

// Config is the complete loginprobe configuration.
type Config struct {
	Target      TargetConfig   `yaml:"target" json:"target"`
	Browser     BrowserConfig  `yaml:"browser" json:"browser"`
	Wait        WaitConfig     `yaml:"wait" json:"wait"`
	Concurrency int            `yaml:"concurrency" json:"concurrency"`
	Checks      []CheckConfig  `yaml:"checks" json:"checks"`
	Artifacts   ArtifactConfig `yaml:"artifacts" json:"artifacts"`
	Logging     LoggingConfig  `yaml:"logging" json:"logging"`
	Tracing     TracingConfig  `yaml:"tracing" json:"tracing"`
}

// TargetConfig selects the application under test.
type TargetConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Profile names a built-in login page profile
	Profile string `yaml:"profile" json:"profile"`

	// Locators overrides profile locators by element name, as
	// "strategy=value" (e.g. "submit: css=button.login")
	Locators map[string]string `yaml:"locators" json:"locators,omitempty"`
}

// BrowserConfig controls how sessions are launched.
type BrowserConfig struct {
	// Engine is chromium, firefox or webkit
	Engine      string        `yaml:"engine" json:"engine"`
	Headless    bool          `yaml:"headless" json:"headless"`
	Maximized   bool          `yaml:"maximized" json:"maximized"`
	Width       int           `yaml:"width" json:"width"`
	Height      int           `yaml:"height" json:"height"`
	SkipInstall bool          `yaml:"skip_install" json:"skip_install"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// WaitConfig is the explicit-wait policy for every controller call.
type WaitConfig struct {
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// CheckConfig is one scripted login attempt.
type CheckConfig struct {
	Name     string      `yaml:"name" json:"name"`
	Username string      `yaml:"username" json:"username"`
	Password string      `yaml:"password" json:"-"`
	Expect   Expectation `yaml:"expect" json:"expect"`

	// RememberMe selects remember-me before submitting
	RememberMe bool `yaml:"remember_me" json:"remember_me,omitempty"`

	// Role, when set on a success check, is verified on the dashboard
	Role string `yaml:"role" json:"role,omitempty"`

	// Lock locks the account first; it needs an account admin
	Lock bool `yaml:"lock" json:"lock,omitempty"`
}

// ArtifactConfig controls the run summary files.
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
	JSON      bool   `yaml:"json" json:"json"`
	Markdown  bool   `yaml:"markdown" json:"markdown"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls console output: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

// TracingConfig enables OpenTelemetry spans written to stdout.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// DefaultConfig returns a configuration that runs one successful and one
// failing login against the public OrangeHRM demo.
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			BaseURL: DefaultBaseURL,
			Profile: "orangehrm",
		},
		Browser: BrowserConfig{
			Engine:   "chromium",
			Headless: true,
			Width:    1280,
			Height:   720,
			Timeout:  30 * time.Second,
		},
		Wait: WaitConfig{
			Timeout:  10 * time.Second,
			Interval: 250 * time.Millisecond,
		},
		Concurrency: 2,
		Checks: []CheckConfig{
			{Name: "valid admin login", Username: "Admin", Password: "admin123", Expect: ExpectSuccess},
			{Name: "wrong password", Username: "Admin", Password: "wrongpass", Expect: ExpectInvalidCredentials},
		},
		Artifacts: ArtifactConfig{
			Enabled:   true,
			OutputDir: ".loginprobe/artifacts",
			JSON:      true,
			Markdown:  true,
		},
		Logging: LoggingConfig{Verbosity: "normal"},
	}
}

// Load reads a YAML file over DefaultConfig. An empty path returns the
// defaults. Passwords may reference environment variables as ${NAME}.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping the values of fields the document
// does not set.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	for i := range cfg.Checks {
		cfg.Checks[i].Password = os.ExpandEnv(cfg.Checks[i].Password)
	}
	return nil
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv
// outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.Target.BaseURL = v
	}
	if v, ok := lookup(EnvBrowser); ok && v != "" {
		c.Browser.Engine = v
	}
	if v, ok := lookup(EnvHeadless); ok && v != "" {
		headless, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvHeadless, v, err)
		}
		c.Browser.Headless = headless
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvTimeout, v, err)
		}
		c.Wait.Timeout = timeout
	}
	return nil
}

// ValidationError lists every problem found by Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// ErrInvalid matches every *ValidationError.
var ErrInvalid = errors.New("invalid configuration")

// Is makes errors.Is(err, ErrInvalid) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

var (
	validEngines      = map[string]bool{"chromium": true, "firefox": true, "webkit": true}
	validVerbosity    = map[string]bool{"quiet": true, "normal": true, "verbose": true, "debug": true}
	validExpectations = map[Expectation]bool{
		ExpectSuccess:            true,
		ExpectInvalidCredentials: true,
		ExpectRequiredFields:     true,
		ExpectLocked:             true,
	}
)

// Validate checks the configuration and fills defaults for empty optional
// fields. It reports all problems at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Target.BaseURL == "" {
		add("target.base_url is required")
	} else if !strings.HasPrefix(c.Target.BaseURL, "http://") && !strings.HasPrefix(c.Target.BaseURL, "https://") {
		add("target.base_url must be an http(s) URL, got %q", c.Target.BaseURL)
	}
	if c.Target.Profile == "" {
		c.Target.Profile = "orangehrm"
	}

	if c.Browser.Engine == "" {
		c.Browser.Engine = "chromium"
	}
	if !validEngines[c.Browser.Engine] {
		add("browser.engine must be chromium, firefox or webkit, got %q", c.Browser.Engine)
	}
	if c.Browser.Width < 0 || c.Browser.Height < 0 {
		add("browser.width and browser.height cannot be negative")
	}
	if c.Browser.Timeout < 0 {
		add("browser.timeout cannot be negative")
	}
	if c.Wait.Timeout < 0 || c.Wait.Interval < 0 {
		add("wait.timeout and wait.interval cannot be negative")
	}

	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}

	if len(c.Checks) == 0 {
		add("at least one check is required")
	}
	names := make(map[string]bool, len(c.Checks))
	for i, check := range c.Checks {
		label := fmt.Sprintf("checks[%d]", i)
		if check.Name == "" {
			add("%s.name is required", label)
		} else if names[check.Name] {
			add("%s.name %q is duplicated", label, check.Name)
		}
		names[check.Name] = true

		if !validExpectations[check.Expect] {
			add("%s.expect must be success, invalid_credentials, required_fields or locked, got %q", label, check.Expect)
		}
		if check.Expect != ExpectRequiredFields && (check.Username == "" || check.Password == "") {
			add("%s needs a username and password to expect %s", label, check.Expect)
		}
		if check.Expect == ExpectRequiredFields && check.Username != "" && check.Password != "" {
			add("%s leaves no field empty to expect required_fields", label)
		}
		if check.Role != "" && check.Expect != ExpectSuccess {
			add("%s.role only applies to success checks", label)
		}
	}

	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}
	if !validVerbosity[c.Logging.Verbosity] {
		add("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	if c.Artifacts.Enabled && c.Artifacts.OutputDir == "" {
		add("artifacts.output_dir is required when artifacts are enabled")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
