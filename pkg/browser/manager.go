package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/entrhq/loginprobe/pkg/logging"
)

const tracerName = "github.com/entrhq/loginprobe/pkg/browser"

// SessionManager is the single point of creation and destruction for the
// browser session of one scenario. Concurrent scenarios each use their own
// manager, so sessions never share a driver.
type SessionManager struct {
	mu       sync.Mutex
	launcher Launcher
	opts     SessionOptions
	current  *Session
	logger   *logging.Logger
	tracer   trace.Tracer
}

// ManagerOption configures a SessionManager.
type ManagerOption func(*SessionManager)

// WithLogger sets the manager's logger.
func WithLogger(l *logging.Logger) ManagerOption {
	return func(m *SessionManager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewSessionManager creates a manager that launches browsers through launcher.
func NewSessionManager(launcher Launcher, opts SessionOptions, options ...ManagerOption) *SessionManager {
	m := &SessionManager{
		launcher: launcher,
		opts:     opts.withDefaults(),
		logger:   logging.Nop(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Acquire provisions the driver, launches a new browser and returns its session.
// The session becomes the manager's current session until released.
func (m *SessionManager) Acquire(ctx context.Context) (_ *Session, err error) {
	ctx, span := m.tracer.Start(ctx, "browser.Acquire")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionActive, m.current.ID)
	}

	if err := m.launcher.Provision(ctx); err != nil {
		m.logger.Errorf("driver provisioning failed: %v", err)
		return nil, &EnvironmentError{Stage: "provision", Err: err}
	}

	driver, err := m.launcher.Launch(ctx, m.opts.launchOptions())
	if err != nil {
		m.logger.Errorf("browser launch failed: %v", err)
		return nil, &EnvironmentError{Stage: "launch", Err: err}
	}

	session := &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Viewport:  ViewportDefault,
		BaseURL:   m.opts.BaseURL,
		driver:    driver,
	}
	if m.opts.Maximized {
		session.Viewport = ViewportMaximized
	}
	span.SetAttributes(
		attribute.String("browser.session.id", session.ID),
		attribute.String("browser.viewport", string(session.Viewport)),
	)

	if m.opts.BaseURL != "" {
		if err := session.Navigate(ctx, m.opts.BaseURL); err != nil {
			if _, closeErr := session.close(); closeErr != nil {
				m.logger.Warnf("closing session %s after failed start: %v", session.ID, closeErr)
			}
			return nil, fmt.Errorf("failed to open %s: %w", m.opts.BaseURL, err)
		}
	}

	m.current = session
	m.logger.Infof("session %s acquired (viewport=%s, headless=%t)", session.ID, session.Viewport, m.opts.Headless)
	return session, nil
}

// Release terminates the session's browser. It is idempotent: releasing a
// nil or already released session returns nil. The session counts as
// released even when closing the driver reports an error.
func (m *SessionManager) Release(session *Session) error {
	if session == nil {
		return nil
	}

	_, span := m.tracer.Start(context.Background(), "browser.Release",
		trace.WithAttributes(attribute.String("browser.session.id", session.ID)))
	defer span.End()

	m.mu.Lock()
	if m.current == session {
		m.current = nil
	}
	m.mu.Unlock()

	closed, err := session.close()
	if !closed {
		return nil
	}
	if err != nil {
		span.RecordError(err)
		m.logger.Warnf("session %s released with close error: %v", session.ID, err)
		return fmt.Errorf("failed to close session %s: %w", session.ID, err)
	}
	m.logger.Infof("session %s released after %s", session.ID, time.Since(session.CreatedAt).Round(time.Millisecond))
	return nil
}

// Current returns the live session, or ErrNoActiveSession before Acquire
// and after Release.
func (m *SessionManager) Current() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, ErrNoActiveSession
	}
	return m.current, nil
}

// WithSession acquires a session, runs fn and releases the session on
// every exit path, including a panic in fn, which is re-raised after
// release. An error from fn takes precedence over a release error.
func (m *SessionManager) WithSession(ctx context.Context, fn func(ctx context.Context, s *Session) error) (err error) {
	session, err := m.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		releaseErr := m.Release(session)
		if err == nil {
			err = releaseErr
		}
	}()
	return fn(ctx, session)
}
