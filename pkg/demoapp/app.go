// Package demoapp serves a small OrangeHRM-shaped login application. It
// backs the end-to-end tests and `loginprobe -demo`, so checks can run
// without reaching the public OrangeHRM demo.
package demoapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/entrhq/loginprobe/pkg/browser"
	"github.com/entrhq/loginprobe/pkg/logging"
	"github.com/entrhq/loginprobe/pkg/loginpage"
)

// Paths served by the app. They mirror OrangeHRM 5.
const (
	LoginPath     = "/web/index.php/auth/login"
	ValidatePath  = "/web/index.php/auth/validate"
	LogoutPath    = "/web/index.php/auth/logout"
	ResetPath     = "/web/index.php/auth/requestPasswordResetCode"
	DashboardPath = "/web/index.php/dashboard/index"
)

const (
	sessionCookie  = "orangehrm"
	rememberCookie = "orangehrm_remember"

	// DefaultMaxFailures is how many wrong passwords lock an account.
	DefaultMaxFailures = 3

	rememberFor = 30 * 24 * time.Hour
)

// Role names used by the default users and the role widgets.
const (
	RoleAdmin = "Admin"
	RoleESS   = "ESS"
)

// ErrUnknownUser is returned by SetAccountLocked for a username with no account.
var ErrUnknownUser = errors.New("unknown user")

// User is one account of the demo app.
type User struct {
	Username    string
	Password    string
	DisplayName string
	Role        string
}

// DefaultUsers returns the accounts the public OrangeHRM demo advertises,
// plus one ESS user.
func DefaultUsers() []User {
	return []User{
		{Username: "Admin", Password: "admin123", DisplayName: "Paul Collings", Role: RoleAdmin},
		{Username: "ess.user", Password: "ess12345", DisplayName: "Linda Anderson", Role: RoleESS},
	}
}

// Options configures an App.
type Options struct {
	Users       []User
	MaxFailures int
	Logger      *logging.Logger
}

type account struct {
	User
	failures int
	locked   bool
}

// App is the demo application. It is safe for concurrent use.
type App struct {
	mu          sync.Mutex
	accounts    map[string]*account
	sessions    map[string]string
	maxFailures int

	logger *logging.Logger
	router chi.Router
}

// New builds an App. Zero options get the default users and lockout limit.
func New(opts Options) *App {
	if len(opts.Users) == 0 {
		opts.Users = DefaultUsers()
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = DefaultMaxFailures
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	a := &App{
		accounts:    make(map[string]*account, len(opts.Users)),
		sessions:    make(map[string]string),
		maxFailures: opts.MaxFailures,
		logger:      opts.Logger,
	}
	for _, u := range opts.Users {
		a.accounts[u.Username] = &account{User: u}
	}
	a.router = a.routes()
	return a
}

// Handler returns the app's HTTP handler.
func (a *App) Handler() http.Handler {
	return a.router
}

func (a *App) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(noStore)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, LoginPath, http.StatusFound)
	})
	r.Route("/web/index.php", func(r chi.Router) {
		r.Get("/auth/login", a.handleLoginPage)
		r.Post("/auth/validate", a.handleValidate)
		r.Get("/auth/logout", a.handleLogout)
		r.Get("/auth/requestPasswordResetCode", a.handleResetPage)
		r.Get("/dashboard/index", a.handleDashboard)
	})
	return r
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// SetAccountLocked locks or unlocks an account. Unlocking also clears its
// failure count.
func (a *App) SetAccountLocked(ctx context.Context, username string, locked bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	acct, ok := a.accounts[username]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownUser, username)
	}
	acct.locked = locked
	if !locked {
		acct.failures = 0
	}
	a.logger.Infof("account %s locked=%v", username, locked)
	return nil
}

// Locked reports whether username is locked.
func (a *App) Locked(username string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	acct, ok := a.accounts[username]
	return ok && acct.locked
}

type loginOutcome int

const (
	loginOK loginOutcome = iota
	loginInvalid
	loginLocked
)

// authenticate checks a credential pair and updates the failure count.
func (a *App) authenticate(username, password string) (User, loginOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	acct, ok := a.accounts[username]
	if !ok {
		return User{}, loginInvalid
	}
	if acct.locked {
		return acct.User, loginLocked
	}
	if acct.Password != password {
		acct.failures++
		if acct.failures >= a.maxFailures {
			acct.locked = true
			a.logger.Warnf("account %s locked after %d failures", username, acct.failures)
			return acct.User, loginLocked
		}
		return acct.User, loginInvalid
	}
	acct.failures = 0
	return acct.User, loginOK
}

func (a *App) newSession(username string) string {
	token := uuid.NewString()
	a.mu.Lock()
	a.sessions[token] = username
	a.mu.Unlock()
	return token
}

func (a *App) sessionUser(r *http.Request) (User, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return User{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	username, ok := a.sessions[c.Value]
	if !ok {
		return User{}, false
	}
	acct, ok := a.accounts[username]
	if !ok {
		return User{}, false
	}
	return acct.User, true
}

func (a *App) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	view := loginView{}
	if c, err := r.Cookie(rememberCookie); err == nil && c.Value != "" {
		view.Username = c.Value
		view.Remember = true
	}
	a.render(w, http.StatusOK, loginTemplate, view)
}

func (a *App) handleValidate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	remember := r.PostForm.Get("remember") != ""

	view := loginView{Username: username, Remember: remember}
	if username == "" || password == "" {
		view.UsernameRequired = username == ""
		view.PasswordRequired = password == ""
		a.render(w, http.StatusOK, loginTemplate, view)
		return
	}

	user, outcome := a.authenticate(username, password)
	switch outcome {
	case loginLocked:
		a.logger.Infof("login refused for locked account %s", username)
		view.Locked = true
		a.render(w, http.StatusOK, loginTemplate, view)
		return
	case loginInvalid:
		a.logger.Infof("invalid credentials for %s", username)
		view.Alert = "Invalid credentials"
		a.render(w, http.StatusOK, loginTemplate, view)
		return
	}

	a.logger.Infof("login succeeded for %s", user.Username)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    a.newSession(user.Username),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if remember {
		http.SetCookie(w, &http.Cookie{
			Name:    rememberCookie,
			Value:   user.Username,
			Path:    "/",
			Expires: time.Now().Add(rememberFor),
		})
	} else {
		http.SetCookie(w, &http.Cookie{Name: rememberCookie, Path: "/", MaxAge: -1})
	}
	http.Redirect(w, r, DashboardPath, http.StatusFound)
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		a.mu.Lock()
		delete(a.sessions, c.Value)
		a.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Path: "/", MaxAge: -1})
	http.Redirect(w, r, LoginPath, http.StatusFound)
}

func (a *App) handleResetPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, http.StatusOK, resetTemplate, nil)
}

func (a *App) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := a.sessionUser(r)
	if !ok {
		http.Redirect(w, r, LoginPath, http.StatusFound)
		return
	}
	a.render(w, http.StatusOK, dashboardTemplate, dashboardView{
		DisplayName: user.DisplayName,
		Role:        user.Role,
		Widget:      roleWidgets[user.Role],
	})
}

// roleWidgets maps a role to the data-widget attribute of its dashboard card.
var roleWidgets = map[string]string{
	RoleAdmin: "admin-quick-launch",
	RoleESS:   "my-actions",
}

// Profile describes the demo app's login page, with every optional
// capability enabled.
func Profile() loginpage.Profile {
	p := loginpage.OrangeHRMProfile()
	p.Name = "orangehrm-demo"
	p.Locators.RememberMe = browser.Name("remember")
	p.Locators.LockoutMessage = browser.CSS(".orangehrm-login-lockout")
	p.Locators.RoleIndicator = browser.CSS(".orangehrm-user-role")
	p.Locators.RoleWidgets = make(map[string]browser.Locator, len(roleWidgets))
	for role, widget := range roleWidgets {
		p.Locators.RoleWidgets[role] = browser.CSS(fmt.Sprintf("[data-widget='%s']", widget))
	}
	p.Capabilities = loginpage.Capabilities{
		RememberMe:     true,
		PasswordReset:  true,
		Lockout:        true,
		RoleDashboards: true,
	}
	return p
}
