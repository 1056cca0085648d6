package main

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/loginprobe/pkg/config"
)

func parse(t *testing.T, args ...string) *CLIConfig {
	t.Helper()
	fs := flag.NewFlagSet("loginprobe", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cli, err := parseFlags(fs, args)
	require.NoError(t, err)
	return cli
}

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(parse(t), env(nil))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loginprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
target:
  base_url: http://file.test
browser:
  engine: firefox
  headless: false
logging:
  verbosity: quiet
checks:
  - name: from file
    username: Admin
    password: admin123
    expect: success
`), 0o600))

	cli := parse(t, "-config", path, "-browser", "webkit", "-verbosity", "debug")
	cfg, err := loadConfig(cli, env(map[string]string{
		config.EnvBaseURL:  "http://env.test",
		config.EnvHeadless: "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, "http://env.test", cfg.Target.BaseURL, "environment overrides the file")
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "webkit", cfg.Browser.Engine, "flags override the file")
	assert.Equal(t, "debug", cfg.Logging.Verbosity)
	require.Len(t, cfg.Checks, 1)
	assert.Equal(t, "from file", cfg.Checks[0].Name)

	cfg, err = loadConfig(parse(t, "-config", path, "-base-url", "http://flag.test", "-headless=false"),
		env(map[string]string{config.EnvBaseURL: "http://env.test", config.EnvHeadless: "true"}))
	require.NoError(t, err)
	assert.Equal(t, "http://flag.test", cfg.Target.BaseURL, "flags override the environment")
	assert.False(t, cfg.Browser.Headless)
}

func TestLoadConfig_UnsetFlagsKeepFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loginprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browser:\n  headless: false\n"), 0o600))

	cfg, err := loadConfig(parse(t, "-config", path), env(nil))
	require.NoError(t, err)
	assert.False(t, cfg.Browser.Headless, "the headless flag default must not override the file")
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := loadConfig(parse(t, "-config", filepath.Join(t.TempDir(), "missing.yaml")), env(nil))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = loadConfig(parse(t), env(map[string]string{config.EnvTimeout: "soon"}))
	assert.ErrorContains(t, err, config.EnvTimeout)
}

func TestLoadConfig_Demo(t *testing.T) {
	cfg, err := loadConfig(parse(t, "-demo", "-trace"), env(nil))
	require.NoError(t, err)
	assert.Equal(t, demoChecks(), cfg.Checks)
	assert.True(t, cfg.Tracing.Enabled)
	require.NoError(t, cfg.Validate())

	expects := make(map[config.Expectation]bool)
	for _, c := range cfg.Checks {
		expects[c.Expect] = true
	}
	assert.Len(t, expects, 4, "demo checks cover every expectation")
}

func TestDemoChecks_LockUserIsDedicated(t *testing.T) {
	users := make(map[string]bool)
	for _, u := range demoUsers() {
		users[u.Username] = true
	}
	for _, c := range demoChecks() {
		if c.Lock {
			assert.Equal(t, lockUser, c.Username)
			continue
		}
		assert.NotEqual(t, lockUser, c.Username, "check %q shares the lock account", c.Name)
	}
	assert.True(t, users[lockUser])
}

func TestParseFlags_Invalid(t *testing.T) {
	fs := flag.NewFlagSet("loginprobe", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	_, err := parseFlags(fs, []string{"-timeout", "forever"})
	assert.Error(t, err)
}
