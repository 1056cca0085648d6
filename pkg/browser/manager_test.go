package browser_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/loginprobe/pkg/browser"
	"github.com/entrhq/loginprobe/pkg/browser/browsertest"
)

func TestSessionManager_AcquireAndRelease(t *testing.T) {
	launcher := &browsertest.Launcher{}
	manager := browser.NewSessionManager(launcher, browser.SessionOptions{
		BaseURL:   "http://login.test",
		Headless:  true,
		Maximized: true,
	})

	session, err := manager.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, browser.ViewportMaximized, session.Viewport)
	assert.Equal(t, "http://login.test", session.CurrentURL())
	assert.Equal(t, 1, launcher.Provisions())

	opts := launcher.LastOptions()
	assert.True(t, opts.Headless)
	assert.True(t, opts.Maximized)
	assert.Equal(t, browser.DefaultTimeout, opts.Timeout)

	current, err := manager.Current()
	require.NoError(t, err)
	assert.Same(t, session, current)

	require.NoError(t, manager.Release(session))
	assert.True(t, session.Released())
	assert.Equal(t, 1, launcher.Drivers()[0].Closes())

	_, err = manager.Current()
	assert.ErrorIs(t, err, browser.ErrNoActiveSession)
}

func TestSessionManager_DefaultViewport(t *testing.T) {
	launcher := &browsertest.Launcher{}
	manager := browser.NewSessionManager(launcher, browser.SessionOptions{})

	session, err := manager.Acquire(context.Background())
	require.NoError(t, err)
	defer manager.Release(session)

	assert.Equal(t, browser.ViewportDefault, session.Viewport)
	assert.Equal(t, browser.Viewport{
		Width:  browser.DefaultViewportWidth,
		Height: browser.DefaultViewportHeight,
	}, launcher.LastOptions().Viewport)
	assert.Equal(t, "about:blank", session.CurrentURL())
}

func TestSessionManager_ReleaseIsIdempotent(t *testing.T) {
	launcher := &browsertest.Launcher{}
	manager := browser.NewSessionManager(launcher, browser.SessionOptions{})

	session, err := manager.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, manager.Release(session))
	require.NoError(t, manager.Release(session))
	require.NoError(t, manager.Release(nil))

	assert.Equal(t, 1, launcher.Drivers()[0].Closes(), "browser must be closed exactly once")
}

func TestSessionManager_ReleaseCloseErrorStillReleases(t *testing.T) {
	closeErr := errors.New("browser hung")
	launcher := &browsertest.Launcher{CloseErr: closeErr}
	manager := browser.NewSessionManager(launcher, browser.SessionOptions{})

	session, err := manager.Acquire(context.Background())
	require.NoError(t, err)

	err = manager.Release(session)
	assert.ErrorIs(t, err, closeErr)
	assert.True(t, session.Released())
	assert.NoError(t, manager.Release(session), "second release is a no-op")

	_, err = manager.Acquire(context.Background())
	assert.NoError(t, err, "manager is free for a new session after release")
}

func TestSessionManager_CurrentBeforeAcquire(t *testing.T) {
	manager := browser.NewSessionManager(&browsertest.Launcher{}, browser.SessionOptions{})
	_, err := manager.Current()
	assert.ErrorIs(t, err, browser.ErrNoActiveSession)
}

func TestSessionManager_AcquireWhileActive(t *testing.T) {
	manager := browser.NewSessionManager(&browsertest.Launcher{}, browser.SessionOptions{})
	session, err := manager.Acquire(context.Background())
	require.NoError(t, err)
	defer manager.Release(session)

	_, err = manager.Acquire(context.Background())
	assert.ErrorIs(t, err, browser.ErrSessionActive)
}

func TestSessionManager_EnvironmentErrors(t *testing.T) {
	tests := []struct {
		name     string
		launcher *browsertest.Launcher
		stage    string
	}{
		{
			name:     "driver cannot be provisioned",
			launcher: &browsertest.Launcher{ProvisionErr: errors.New("no network")},
			stage:    "provision",
		},
		{
			name:     "browser cannot start",
			launcher: &browsertest.Launcher{LaunchErr: errors.New("exec: chromium not found")},
			stage:    "launch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := browser.NewSessionManager(tt.launcher, browser.SessionOptions{})
			_, err := manager.Acquire(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, browser.ErrEnvironment)

			var envErr *browser.EnvironmentError
			require.ErrorAs(t, err, &envErr)
			assert.Equal(t, tt.stage, envErr.Stage)

			_, err = manager.Current()
			assert.ErrorIs(t, err, browser.ErrNoActiveSession)
		})
	}
}

func TestSessionManager_FailedBaseURLClosesBrowser(t *testing.T) {
	launcher := &browsertest.Launcher{
		Setup: func(p *browsertest.Page) { p.GotoErr = errors.New("net::ERR_NAME_NOT_RESOLVED") },
	}
	manager := browser.NewSessionManager(launcher, browser.SessionOptions{BaseURL: "http://nowhere.invalid"})

	_, err := manager.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, launcher.Drivers()[0].Closes())

	_, err = manager.Current()
	assert.ErrorIs(t, err, browser.ErrNoActiveSession)
}

func TestSession_UseAfterRelease(t *testing.T) {
	manager := browser.NewSessionManager(&browsertest.Launcher{}, browser.SessionOptions{})
	session, err := manager.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, manager.Release(session))

	_, err = session.Page()
	assert.ErrorIs(t, err, browser.ErrSessionReleased)
	_, err = session.Find(browser.Name("username"))
	assert.ErrorIs(t, err, browser.ErrSessionReleased)
	assert.ErrorIs(t, session.Navigate(context.Background(), "http://x.test"), browser.ErrSessionReleased)
	assert.Empty(t, session.CurrentURL())
}

func TestSessionManager_WithSessionReleasesOnEveryPath(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		launcher := &browsertest.Launcher{}
		manager := browser.NewSessionManager(launcher, browser.SessionOptions{})
		var seen *browser.Session
		err := manager.WithSession(context.Background(), func(ctx context.Context, s *browser.Session) error {
			seen = s
			return nil
		})
		require.NoError(t, err)
		assert.True(t, seen.Released())
	})

	t.Run("error", func(t *testing.T) {
		launcher := &browsertest.Launcher{CloseErr: errors.New("close failed")}
		manager := browser.NewSessionManager(launcher, browser.SessionOptions{})
		scenarioErr := errors.New("assertion failed")
		err := manager.WithSession(context.Background(), func(ctx context.Context, s *browser.Session) error {
			return scenarioErr
		})
		assert.ErrorIs(t, err, scenarioErr, "scenario error wins over release error")
		assert.Equal(t, 1, launcher.Drivers()[0].Closes())
	})

	t.Run("panic", func(t *testing.T) {
		launcher := &browsertest.Launcher{}
		manager := browser.NewSessionManager(launcher, browser.SessionOptions{})
		assert.Panics(t, func() {
			_ = manager.WithSession(context.Background(), func(ctx context.Context, s *browser.Session) error {
				panic("unexpected fault")
			})
		})
		assert.Equal(t, 1, launcher.Drivers()[0].Closes())
	})
}

func TestSessionManager_ConcurrentManagersAreIsolated(t *testing.T) {
	launcher := &browsertest.Launcher{}

	const scenarios = 8
	sessions := make([]*browser.Session, scenarios)
	var wg sync.WaitGroup
	for i := 0; i < scenarios; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			manager := browser.NewSessionManager(launcher, browser.SessionOptions{})
			s, err := manager.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			sessions[i] = s
			assert.NoError(t, manager.Release(s))
		}(i)
	}
	wg.Wait()

	drivers := launcher.Drivers()
	require.Len(t, drivers, scenarios)
	seen := make(map[string]bool)
	for _, s := range sessions {
		require.NotNil(t, s)
		assert.False(t, seen[s.ID], "session ids must be unique")
		seen[s.ID] = true
	}
	for _, d := range drivers {
		assert.Equal(t, 1, d.Closes())
	}
}
