package browser

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/playwright-community/playwright-go"
)

// Browser engine names accepted by PlaywrightLauncher.
const (
	EngineChromium = "chromium"
	EngineFirefox  = "firefox"
	EngineWebKit   = "webkit"
)

// elementTimeoutMS bounds playwright's own auto-wait inside element
// calls. Readiness is decided by the caller's wait policy, so element
// calls only need long enough to finish an action on a ready element.
const elementTimeoutMS = 2000.0

// PlaywrightLauncher launches browsers through playwright-go. Each Launch
// starts its own playwright runtime, so sessions never share a driver.
type PlaywrightLauncher struct {
	// Engine is chromium (default), firefox or webkit
	Engine string

	// SkipInstall assumes the driver and browsers are already installed
	SkipInstall bool

	// Output receives playwright's install progress; nil discards it
	Output io.Writer
}

func (l *PlaywrightLauncher) engine() string {
	if l.Engine == "" {
		return EngineChromium
	}
	return l.Engine
}

func (l *PlaywrightLauncher) runOptions() *playwright.RunOptions {
	out := l.Output
	if out == nil {
		out = io.Discard
	}
	return &playwright.RunOptions{
		Browsers: []string{l.engine()},
		Verbose:  false,
		Stdout:   out,
		Stderr:   out,
	}
}

// Provision installs the playwright driver and the configured browser.
func (l *PlaywrightLauncher) Provision(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.SkipInstall {
		return nil
	}
	if err := playwright.Install(l.runOptions()); err != nil {
		return fmt.Errorf("failed to install playwright %s: %w", l.engine(), err)
	}
	return nil
}

// Launch starts playwright, a browser, a context and one page.
func (l *PlaywrightLauncher) Launch(ctx context.Context, opts LaunchOptions) (Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run(l.runOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	var browserType playwright.BrowserType
	switch l.engine() {
	case EngineChromium:
		browserType = pw.Chromium
	case EngineFirefox:
		browserType = pw.Firefox
	case EngineWebKit:
		browserType = pw.WebKit
	default:
		_ = pw.Stop()
		return nil, fmt.Errorf("unsupported browser engine %q", l.engine())
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.Maximized && l.engine() == EngineChromium {
		launchOpts.Args = []string{"--start-maximized"}
	}
	browser, err := browserType.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{}
	if opts.Maximized {
		contextOpts.NoViewport = playwright.Bool(true)
	} else {
		contextOpts.Viewport = &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		}
	}
	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	timeoutMS := float64(opts.Timeout.Milliseconds())
	page.SetDefaultTimeout(timeoutMS)
	page.SetDefaultNavigationTimeout(timeoutMS)

	return &playwrightDriver{
		pw:      pw,
		browser: browser,
		context: bctx,
		page:    &playwrightPage{page: page, navTimeoutMS: timeoutMS},
	}, nil
}

type playwrightDriver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    *playwrightPage
}

func (d *playwrightDriver) Page() Page {
	return d.page
}

// Close tears down page, context, browser and runtime, continuing past
// failures so the browser process is always asked to exit.
func (d *playwrightDriver) Close() error {
	var errs []error
	if err := d.page.page.Close(); err != nil {
		errs = append(errs, fmt.Errorf("page: %w", err))
	}
	if err := d.context.Close(); err != nil {
		errs = append(errs, fmt.Errorf("context: %w", err))
	}
	if err := d.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("browser: %w", err))
	}
	if err := d.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("playwright: %w", err))
	}
	return errors.Join(errs...)
}

type playwrightPage struct {
	page         playwright.Page
	navTimeoutMS float64
}

func (p *playwrightPage) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(p.navTimeoutMS),
	})
	return err
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) Find(loc Locator) Element {
	return &playwrightElement{locator: p.page.Locator(loc.Selector()).First()}
}

// playwrightElement wraps a locator. Calls that would make playwright
// wait for a missing element check presence first.
type playwrightElement struct {
	locator playwright.Locator
}

func (e *playwrightElement) present() (bool, error) {
	n, err := e.locator.Count()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (e *playwrightElement) IsVisible() (bool, error) {
	return e.locator.IsVisible()
}

func (e *playwrightElement) IsEnabled() (bool, error) {
	if ok, err := e.present(); !ok || err != nil {
		return false, err
	}
	return e.locator.IsEnabled(playwright.LocatorIsEnabledOptions{
		Timeout: playwright.Float(elementTimeoutMS),
	})
}

func (e *playwrightElement) IsChecked() (bool, error) {
	if ok, err := e.present(); !ok || err != nil {
		return false, err
	}
	return e.locator.IsChecked(playwright.LocatorIsCheckedOptions{
		Timeout: playwright.Float(elementTimeoutMS),
	})
}

func (e *playwrightElement) Fill(value string) error {
	return e.locator.Fill(value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(elementTimeoutMS),
	})
}

func (e *playwrightElement) Click() error {
	return e.locator.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(elementTimeoutMS),
	})
}

func (e *playwrightElement) Text() (string, error) {
	if ok, err := e.present(); !ok || err != nil {
		return "", err
	}
	return e.locator.InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(elementTimeoutMS),
	})
}

func (e *playwrightElement) Value() (string, error) {
	if ok, err := e.present(); !ok || err != nil {
		return "", err
	}
	return e.locator.InputValue(playwright.LocatorInputValueOptions{
		Timeout: playwright.Float(elementTimeoutMS),
	})
}
