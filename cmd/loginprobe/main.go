// Package main provides the loginprobe command: it runs scripted login
// checks against an OrangeHRM-style application in a real browser and
// exits non-zero when any check does not pass.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/entrhq/loginprobe/pkg/browser"
	"github.com/entrhq/loginprobe/pkg/config"
	"github.com/entrhq/loginprobe/pkg/demoapp"
	"github.com/entrhq/loginprobe/pkg/logging"
	"github.com/entrhq/loginprobe/pkg/probe"
	"github.com/entrhq/loginprobe/pkg/tracing"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	BaseURL     string
	Profile     string
	Engine      string
	Headless    bool
	Verbosity   string
	OutputDir   string
	Timeout     time.Duration
	Demo        bool
	Trace       bool
	NoColor     bool
	ShowVersion bool

	// set records the flags given explicitly, so only those override
	// the configuration file
	set map[string]bool
}

func main() {
	cli, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if cli.ShowVersion {
		fmt.Printf("loginprobe v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, cli); err != nil {
		cancel()
		log.Printf("loginprobe failed: %v", err)
		os.Exit(1)
	}
	cancel()
}

// parseFlags parses args into a CLIConfig
func parseFlags(fs *flag.FlagSet, args []string) (*CLIConfig, error) {
	cli := &CLIConfig{}

	fs.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML)")
	fs.StringVar(&cli.BaseURL, "base-url", "", "Base URL of the application under test")
	fs.StringVar(&cli.Profile, "profile", "", "Login page profile: "+strings.Join(probe.ProfileNames(), ", "))
	fs.StringVar(&cli.Engine, "browser", "", "Browser engine: chromium, firefox or webkit")
	fs.BoolVar(&cli.Headless, "headless", true, "Run the browser without a window")
	fs.StringVar(&cli.Verbosity, "verbosity", "", "Console verbosity: quiet, normal, verbose or debug")
	fs.StringVar(&cli.OutputDir, "output", "", "Directory for run summaries")
	fs.DurationVar(&cli.Timeout, "timeout", 0, "Overall run timeout (0 for none)")
	fs.BoolVar(&cli.Demo, "demo", false, "Run against a local demo application")
	fs.BoolVar(&cli.Trace, "trace", false, "Write OpenTelemetry spans to stderr")
	fs.BoolVar(&cli.NoColor, "no-color", false, "Disable colored console output")
	fs.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintf(out, "loginprobe - Browser checks for web login pages\n\n")
		fmt.Fprintf(out, "Usage: loginprobe [options]\n\n")
		fmt.Fprintf(out, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(out, "\nEnvironment:\n")
		fmt.Fprintf(out, "  %s, %s, %s, %s\n", config.EnvBaseURL, config.EnvBrowser, config.EnvHeadless, config.EnvTimeout)
		fmt.Fprintf(out, "\nExamples:\n")
		fmt.Fprintf(out, "  # Check the public OrangeHRM demo with the default checks\n")
		fmt.Fprintf(out, "  loginprobe\n\n")
		fmt.Fprintf(out, "  # Run every check against a local demo app\n")
		fmt.Fprintf(out, "  loginprobe -demo -verbosity verbose\n\n")
		fmt.Fprintf(out, "  # Run checks from a file in a visible firefox window\n")
		fmt.Fprintf(out, "  loginprobe -config loginprobe.yaml -browser firefox -headless=false\n\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cli.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { cli.set[f.Name] = true })
	return cli, nil
}

// loadConfig layers the configuration file, the environment and the
// explicitly given flags, in that order.
func loadConfig(cli *CLIConfig, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	if cli.set["base-url"] {
		cfg.Target.BaseURL = cli.BaseURL
	}
	if cli.set["profile"] {
		cfg.Target.Profile = cli.Profile
	}
	if cli.set["browser"] {
		cfg.Browser.Engine = cli.Engine
	}
	if cli.set["headless"] {
		cfg.Browser.Headless = cli.Headless
	}
	if cli.set["verbosity"] {
		cfg.Logging.Verbosity = cli.Verbosity
	}
	if cli.set["output"] {
		cfg.Artifacts.OutputDir = cli.OutputDir
	}
	if cli.Trace {
		cfg.Tracing.Enabled = true
	}

	if cli.Demo && cli.ConfigFile == "" {
		cfg.Checks = demoChecks()
	}
	return cfg, nil
}

// run executes one probe run
func run(ctx context.Context, cli *CLIConfig) error {
	cfg, err := loadConfig(cli, os.LookupEnv)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// NewLogger falls back to stderr and reports why
	logger, _ := logging.NewLogger("loginprobe")
	defer logger.Close()

	console := probe.NewConsole(probe.ParseLevel(cfg.Logging.Verbosity), os.Stdout, !cli.NoColor)

	if cfg.Tracing.Enabled {
		provider, err := tracing.NewProvider("loginprobe", version, logger.RunID(), os.Stderr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Warnf("failed to flush spans: %v", err)
			}
		}()
	}

	var opts []probe.RunnerOption
	if cli.Demo {
		app := demoapp.New(demoapp.Options{Users: demoUsers(), Logger: logger.With("demoapp")})
		server, err := app.Start("")
		if err != nil {
			return fmt.Errorf("failed to start demo app: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warnf("demo app shutdown: %v", err)
			}
		}()
		cfg.Target.BaseURL = server.URL
		cfg.Target.Profile = demoapp.Profile().Name
		opts = append(opts, probe.WithAccountAdmin(app))
		console.Verbosef("demo app listening on %s", server.URL)
	}

	var installOutput io.Writer
	if probe.ParseLevel(cfg.Logging.Verbosity) >= probe.LevelVerbose {
		installOutput = os.Stderr
	}
	launcher := &browser.PlaywrightLauncher{
		Engine:      cfg.Browser.Engine,
		SkipInstall: cfg.Browser.SkipInstall,
		Output:      installOutput,
	}

	opts = append(opts, probe.WithLogger(logger), probe.WithConsole(console))
	runner, err := probe.NewRunner(cfg, launcher, opts...)
	if err != nil {
		return err
	}

	if cli.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cli.Timeout)
		defer cancel()
	}

	summary, runErr := runner.Run(ctx)
	console.Summary(summary)

	if cfg.Artifacts.Enabled {
		dir, err := probe.NewArtifactWriter(cfg.Artifacts).WriteAll(summary)
		if err != nil {
			logger.Errorf("failed to write artifacts: %v", err)
			console.Warningf("failed to write artifacts: %v", err)
		} else {
			console.Infof("Summary written to %s", dir)
		}
	}
	console.Verbosef("Log file: %s", logger.LogPath())

	if runErr != nil {
		if errors.Is(runErr, browser.ErrEnvironment) {
			return fmt.Errorf("browser environment unavailable: %w", runErr)
		}
		return runErr
	}
	if !summary.Passed() {
		return fmt.Errorf("run %s %s", summary.RunID, summary.Status)
	}
	return nil
}
