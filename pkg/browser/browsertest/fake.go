// Package browsertest provides an in-memory browser for tests of code built
// on package browser. Pages are scripted element by element; nothing is
// rendered and no process is started.
package browsertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/entrhq/loginprobe/pkg/browser"
)

// ErrClosed is returned by page and element calls after the driver closed.
var ErrClosed = errors.New("browsertest: target closed")

// Launcher is a scriptable browser.Launcher.
type Launcher struct {
	mu sync.Mutex

	ProvisionErr error
	LaunchErr    error
	CloseErr     error

	// Setup, when set, scripts every newly launched page.
	Setup func(p *Page)

	provisions int
	drivers    []*Driver
	lastOpts   browser.LaunchOptions
}

// Provision counts the call and returns ProvisionErr.
func (l *Launcher) Provision(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.provisions++
	return l.ProvisionErr
}

// Launch returns a new Driver with a fresh page, or LaunchErr.
func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Driver, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	l.lastOpts = opts
	page := NewPage()
	if l.Setup != nil {
		l.Setup(page)
	}
	d := &Driver{page: page, closeErr: l.CloseErr}
	l.drivers = append(l.drivers, d)
	return d, nil
}

// Provisions returns how many times Provision was called.
func (l *Launcher) Provisions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.provisions
}

// Drivers returns every driver launched so far.
func (l *Launcher) Drivers() []*Driver {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Driver(nil), l.drivers...)
}

// LastOptions returns the options of the most recent launch.
func (l *Launcher) LastOptions() browser.LaunchOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastOpts
}

// Driver is a fake launched browser.
type Driver struct {
	page     *Page
	closeErr error

	mu     sync.Mutex
	closes int
}

func (d *Driver) Page() browser.Page {
	return d.page
}

// FakePage returns the scriptable page behind Page.
func (d *Driver) FakePage() *Page {
	return d.page
}

// Close marks the page closed and returns the launcher's CloseErr.
func (d *Driver) Close() error {
	d.mu.Lock()
	d.closes++
	d.mu.Unlock()
	d.page.close()
	return d.closeErr
}

// Closes returns how many times Close was called.
func (d *Driver) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Element is the scripted state of one element.
type Element struct {
	Visible  bool
	Disabled bool
	Checkbox bool
	Checked  bool
	Text     string
	Value    string

	// VisibleFrom delays visibility until the given time.
	VisibleFrom time.Time

	// Err is returned by every call on the element.
	Err error

	// OnClick runs after a successful click, without the page lock held.
	OnClick func(p *Page)

	Clicks int
	Fills  int
}

func (e *Element) visible(now time.Time) bool {
	return e.Visible && !now.Before(e.VisibleFrom)
}

// Page is a scriptable browser.Page.
type Page struct {
	mu       sync.Mutex
	url      string
	content  string
	elements map[browser.Locator]*Element
	closed   bool

	// GotoErr is returned by Goto.
	GotoErr error

	// OnGoto, when set, scripts the page for the requested url.
	OnGoto func(p *Page, url string)

	visits []string
}

// NewPage returns an empty page at about:blank.
func NewPage() *Page {
	return &Page{
		url:      "about:blank",
		elements: make(map[browser.Locator]*Element),
	}
}

// Set places e at loc, replacing any element there.
func (p *Page) Set(loc browser.Locator, e *Element) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[loc] = e
	return p
}

// Remove deletes the element at loc.
func (p *Page) Remove(loc browser.Locator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, loc)
}

// Clear removes every element.
func (p *Page) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements = make(map[browser.Locator]*Element)
}

// Element returns the element at loc, or nil.
func (p *Page) Element(loc browser.Locator) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elements[loc]
}

// SetURL changes the current URL without a navigation.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// SetContent sets the HTML returned by Content.
func (p *Page) SetContent(html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content = html
}

// Visits returns every URL passed to Goto.
func (p *Page) Visits() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visits...)
}

func (p *Page) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.GotoErr != nil {
		p.mu.Unlock()
		return p.GotoErr
	}
	p.url = url
	p.visits = append(p.visits, url)
	onGoto := p.OnGoto
	p.mu.Unlock()

	if onGoto != nil {
		onGoto(p, url)
	}
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Content() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", ErrClosed
	}
	return p.content, nil
}

func (p *Page) Find(loc browser.Locator) browser.Element {
	return &handle{page: p, loc: loc}
}

// handle resolves its locator on every call, like a playwright locator.
type handle struct {
	page *Page
	loc  browser.Locator
}

var errNotFound = errors.New("browsertest: element not found")

// with runs fn on the element under the page lock. Missing elements call
// fn with nil.
func (h *handle) with(fn func(e *Element) error) error {
	h.page.mu.Lock()
	defer h.page.mu.Unlock()
	if h.page.closed {
		return ErrClosed
	}
	e := h.page.elements[h.loc]
	if e != nil && e.Err != nil {
		return e.Err
	}
	return fn(e)
}

func (h *handle) IsVisible() (visible bool, err error) {
	err = h.with(func(e *Element) error {
		visible = e != nil && e.visible(time.Now())
		return nil
	})
	return visible, err
}

func (h *handle) IsEnabled() (enabled bool, err error) {
	err = h.with(func(e *Element) error {
		enabled = e != nil && !e.Disabled
		return nil
	})
	return enabled, err
}

func (h *handle) IsChecked() (checked bool, err error) {
	err = h.with(func(e *Element) error {
		checked = e != nil && e.Checked
		return nil
	})
	return checked, err
}

func (h *handle) Fill(value string) error {
	return h.with(func(e *Element) error {
		if e == nil {
			return errNotFound
		}
		e.Value = value
		e.Fills++
		return nil
	})
}

func (h *handle) Click() error {
	var onClick func(p *Page)
	err := h.with(func(e *Element) error {
		if e == nil {
			return errNotFound
		}
		e.Clicks++
		if e.Checkbox {
			e.Checked = !e.Checked
		}
		onClick = e.OnClick
		return nil
	})
	if err == nil && onClick != nil {
		onClick(h.page)
	}
	return err
}

func (h *handle) Text() (text string, err error) {
	err = h.with(func(e *Element) error {
		if e != nil {
			text = e.Text
		}
		return nil
	})
	return text, err
}

func (h *handle) Value() (value string, err error) {
	err = h.with(func(e *Element) error {
		if e != nil {
			value = e.Value
		}
		return nil
	})
	return value, err
}
