package browser

import "context"

// Launcher provisions and starts browsers. PlaywrightLauncher is the
// production implementation; browsertest.Launcher is an in-memory fake.
type Launcher interface {
	// Provision makes sure the driver and browser binaries exist on this host.
	Provision(ctx context.Context) error

	// Launch starts a new, independent browser process.
	Launch(ctx context.Context, opts LaunchOptions) (Driver, error)
}

// Driver is one launched browser with a single active page.
type Driver interface {
	Page() Page

	// Close terminates the browser process and releases driver resources.
	Close() error
}

// Page is the subset of page operations the controllers need.
type Page interface {
	Goto(ctx context.Context, url string) error
	URL() string
	Content() (string, error)

	// Find returns a handle for the first element matching loc.
	// It never fails: a missing element reports not visible.
	Find(loc Locator) Element
}

// Element is a lazily resolved element handle. Every call re-resolves the
// locator, so handles stay valid across navigations.
type Element interface {
	IsVisible() (bool, error)
	IsEnabled() (bool, error)
	IsChecked() (bool, error)

	// Fill clears the field and types value.
	Fill(value string) error
	Click() error

	Text() (string, error)
	Value() (string, error)
}
