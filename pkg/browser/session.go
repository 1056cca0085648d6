package browser

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Session is one live browser handle used by one scenario.
// It is created by SessionManager.Acquire and destroyed by
// SessionManager.Release; everything else only borrows it.
type Session struct {
	// ID is unique per acquired session
	ID string

	// CreatedAt is the timestamp when the session was created
	CreatedAt time.Time

	// Viewport is how the window was sized at launch
	Viewport ViewportState

	// BaseURL is the target application root the session was opened against
	BaseURL string

	driver Driver

	mu       sync.Mutex
	released bool
}

// Released reports whether the session has been released.
func (s *Session) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Page returns the session's page, or ErrSessionReleased.
func (s *Session) Page() (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, ErrSessionReleased
	}
	return s.driver.Page(), nil
}

// Find returns a lazily resolved handle for loc.
func (s *Session) Find(loc Locator) (Element, error) {
	page, err := s.Page()
	if err != nil {
		return nil, err
	}
	return page.Find(loc), nil
}

// Navigate opens url in the session's page.
func (s *Session) Navigate(ctx context.Context, url string) error {
	page, err := s.Page()
	if err != nil {
		return err
	}
	if err := page.Goto(ctx, url); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// CurrentURL returns the page URL, empty once released.
func (s *Session) CurrentURL() string {
	page, err := s.Page()
	if err != nil {
		return ""
	}
	return page.URL()
}

// Snapshot returns the page title and up to maxLength characters of visible
// text. It is meant for failure diagnostics.
func (s *Session) Snapshot(maxLength int) (*CleanedHTML, error) {
	page, err := s.Page()
	if err != nil {
		return nil, err
	}
	if maxLength <= 0 {
		maxLength = DefaultSnapshotLength
	}
	raw, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}
	return cleanHTML(raw, maxLength)
}

// close marks the session released and closes the driver once.
// It reports whether this call did the release.
func (s *Session) close() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false, nil
	}
	s.released = true
	if s.driver == nil {
		return true, nil
	}
	return true, s.driver.Close()
}
