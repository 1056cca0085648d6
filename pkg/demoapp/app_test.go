package demoapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postLogin(t *testing.T, app *App, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, ValidatePath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, req)
	return rr
}

func get(t *testing.T, app *App, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	app.Handler().ServeHTTP(rr, req)
	return rr
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func creds(user, pass string) url.Values {
	return url.Values{"username": {user}, "password": {pass}}
}

func TestRootRedirectsToLogin(t *testing.T) {
	rr := get(t, New(Options{}), "/")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, LoginPath, rr.Header().Get("Location"))
}

func TestLoginPage(t *testing.T) {
	rr := get(t, New(Options{}), LoginPath)
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, `name="username"`)
	assert.Contains(t, body, `name="password"`)
	assert.Contains(t, body, `type="submit"`)
	assert.Contains(t, body, "orangehrm-login-forgot-header")
	assert.NotContains(t, body, "oxd-alert-content-text")
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestValidate_Success(t *testing.T) {
	app := New(Options{})
	rr := postLogin(t, app, creds("Admin", "admin123"))

	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, DashboardPath, rr.Header().Get("Location"))
	session := cookieNamed(rr, sessionCookie)
	require.NotNil(t, session)

	dash := get(t, app, DashboardPath, session)
	require.Equal(t, http.StatusOK, dash.Code)
	body := dash.Body.String()
	assert.Contains(t, body, `<span class="oxd-userdropdown-name">Paul Collings</span>`)
	assert.Contains(t, body, `<span class="orangehrm-user-role">Admin</span>`)
	assert.Contains(t, body, `data-widget="admin-quick-launch"`)
	assert.NotContains(t, body, `data-widget="my-actions"`)
}

func TestValidate_InvalidCredentials(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{"wrong password", creds("Admin", "nope")},
		{"unknown user", creds("ghost", "admin123")},
		{"case sensitive password", creds("Admin", "ADMIN123")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postLogin(t, New(Options{}), tt.form)
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Contains(t, rr.Body.String(), `<p class="oxd-alert-content-text">Invalid credentials</p>`)
			assert.Nil(t, cookieNamed(rr, sessionCookie))
		})
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		wantErrors int
	}{
		{"both empty", creds("", ""), 2},
		{"username empty", creds("", "admin123"), 1},
		{"password empty", creds("Admin", ""), 1},
		{"whitespace username", creds("   ", "admin123"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postLogin(t, New(Options{}), tt.form)
			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.wantErrors, strings.Count(rr.Body.String(), "oxd-input-field-error-message\">Required"))
		})
	}
}

func TestValidate_LockoutAfterFailures(t *testing.T) {
	app := New(Options{MaxFailures: 2})

	rr := postLogin(t, app, creds("Admin", "bad"))
	assert.Contains(t, rr.Body.String(), "Invalid credentials")
	assert.False(t, app.Locked("Admin"))

	rr = postLogin(t, app, creds("Admin", "bad"))
	assert.Contains(t, rr.Body.String(), "orangehrm-login-lockout")
	assert.True(t, app.Locked("Admin"))

	rr = postLogin(t, app, creds("Admin", "admin123"))
	assert.Equal(t, http.StatusOK, rr.Code, "correct password is refused while locked")
	assert.Contains(t, rr.Body.String(), "orangehrm-login-lockout")

	require.NoError(t, app.SetAccountLocked(context.Background(), "Admin", false))
	rr = postLogin(t, app, creds("Admin", "admin123"))
	assert.Equal(t, http.StatusFound, rr.Code)
}

func TestSetAccountLocked(t *testing.T) {
	app := New(Options{})
	ctx := context.Background()

	require.NoError(t, app.SetAccountLocked(ctx, "ess.user", true))
	assert.True(t, app.Locked("ess.user"))
	rr := postLogin(t, app, creds("ess.user", "ess12345"))
	assert.Contains(t, rr.Body.String(), "orangehrm-login-lockout")

	err := app.SetAccountLocked(ctx, "nobody", true)
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestRememberMe(t *testing.T) {
	app := New(Options{})
	form := creds("ess.user", "ess12345")
	form.Set("remember", "on")

	rr := postLogin(t, app, form)
	require.Equal(t, http.StatusFound, rr.Code)
	remember := cookieNamed(rr, rememberCookie)
	require.NotNil(t, remember)
	assert.Equal(t, "ess.user", remember.Value)
	assert.True(t, remember.Expires.After(time.Now()))

	page := get(t, app, LoginPath, remember)
	assert.Contains(t, page.Body.String(), `value="ess.user"`)
	assert.Contains(t, page.Body.String(), `value="on" checked`)

	rr = postLogin(t, app, creds("ess.user", "ess12345"))
	cleared := cookieNamed(rr, rememberCookie)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestDashboardRequiresSession(t *testing.T) {
	app := New(Options{})

	rr := get(t, app, DashboardPath)
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, LoginPath, rr.Header().Get("Location"))

	rr = get(t, app, DashboardPath, &http.Cookie{Name: sessionCookie, Value: "forged"})
	assert.Equal(t, http.StatusFound, rr.Code)
}

func TestLogout(t *testing.T) {
	app := New(Options{})
	session := cookieNamed(postLogin(t, app, creds("Admin", "admin123")), sessionCookie)
	require.NotNil(t, session)

	rr := get(t, app, LogoutPath, session)
	assert.Equal(t, http.StatusFound, rr.Code)

	rr = get(t, app, DashboardPath, session)
	assert.Equal(t, http.StatusFound, rr.Code, "session is gone after logout")
}

func TestResetPage(t *testing.T) {
	rr := get(t, New(Options{}), ResetPath)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `class="orangehrm-forgot-password-title"`)
}

func TestProfile(t *testing.T) {
	p := Profile()
	require.NoError(t, p.Validate())
	assert.Equal(t, []string{RoleAdmin, RoleESS}, p.Roles())
	assert.True(t, strings.HasSuffix(LoginPath, p.LoginPath))
	assert.Contains(t, ResetPath, p.ResetPath)
}

func TestServer(t *testing.T) {
	srv, err := New(Options{}).Start("")
	require.NoError(t, err)
	defer srv.Shutdown(context.Background())

	client := &http.Client{
		Timeout: 5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(srv.URL + LoginPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}
