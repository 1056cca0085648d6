package loginpage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/entrhq/loginprobe/pkg/browser"
	"github.com/entrhq/loginprobe/pkg/wait"
)

// Locators is the fixed element set of a login page and the pages it
// leads to.
type Locators struct {
	Username           browser.Locator
	Password           browser.Locator
	Submit             browser.Locator
	ErrorMessage       browser.Locator
	WelcomeMessage     browser.Locator
	UsernameValidation browser.Locator
	PasswordValidation browser.Locator

	// Optional, required by the matching capability
	RememberMe     browser.Locator
	ResetLink      browser.Locator
	ResetHeading   browser.Locator
	LockoutMessage browser.Locator
	RoleIndicator  browser.Locator
	RoleWidgets    map[string]browser.Locator
}

// Capabilities flags the optional features a target application has.
type Capabilities struct {
	RememberMe     bool
	PasswordReset  bool
	Lockout        bool
	RoleDashboards bool
}

// Profile describes one target application's login page. A profile
// replaces per-application copies of the controller.
type Profile struct {
	Name    string
	Version string

	// LoginPath is joined to the session's base URL
	LoginPath string

	// HomeURLPattern is a '/'-separated glob the post-login URL matches
	HomeURLPattern string

	// ResetPath is a fragment of the password reset page URL
	ResetPath string

	// InvalidCredentialsText is the application's wrong-password message
	InvalidCredentialsText string

	Locators     Locators
	Capabilities Capabilities
}

// OrangeHRMProfile targets the OrangeHRM 5 login page, the default target.
func OrangeHRMProfile() Profile {
	return Profile{
		Name:                   "orangehrm",
		Version:                "5",
		LoginPath:              "/web/index.php/auth/login",
		HomeURLPattern:         "**/dashboard/**",
		ResetPath:              "/auth/requestPasswordResetCode",
		InvalidCredentialsText: "Invalid credentials",
		Locators: Locators{
			Username:           browser.Name("username"),
			Password:           browser.Name("password"),
			Submit:             browser.CSS("button[type='submit']"),
			ErrorMessage:       browser.CSS(".oxd-alert-content-text"),
			WelcomeMessage:     browser.CSS(".oxd-userdropdown-name"),
			UsernameValidation: fieldErrorXPath("username"),
			PasswordValidation: fieldErrorXPath("password"),
			ResetLink:          browser.CSS(".orangehrm-login-forgot-header"),
			ResetHeading:       browser.CSS(".orangehrm-forgot-password-title"),
		},
		Capabilities: Capabilities{
			PasswordReset: true,
		},
	}
}

// fieldErrorXPath finds the inline validation message of an OrangeHRM
// input group.
func fieldErrorXPath(inputName string) browser.Locator {
	return browser.XPath(fmt.Sprintf(
		"//input[@name='%s']/ancestor::div[contains(@class,'oxd-input-group')]//span[contains(@class,'oxd-input-field-error-message')]",
		inputName,
	))
}

// Validate checks that every required locator is set, that each enabled
// capability has its locators, and that the home URL pattern compiles.
func (p Profile) Validate() error {
	var problems []string
	require := func(name string, loc browser.Locator) {
		if loc.IsZero() {
			problems = append(problems, name+" locator is required")
		}
	}

	if p.Name == "" {
		problems = append(problems, "name is required")
	}
	if p.LoginPath == "" {
		problems = append(problems, "login path is required")
	}
	if p.HomeURLPattern == "" {
		problems = append(problems, "home URL pattern is required")
	} else if _, err := wait.CompileURLPattern(p.HomeURLPattern); err != nil {
		problems = append(problems, fmt.Sprintf("home URL pattern %q: %v", p.HomeURLPattern, err))
	}

	l := p.Locators
	require("username", l.Username)
	require("password", l.Password)
	require("submit", l.Submit)
	require("error message", l.ErrorMessage)
	require("welcome message", l.WelcomeMessage)
	require("username validation", l.UsernameValidation)
	require("password validation", l.PasswordValidation)

	if p.Capabilities.RememberMe {
		require("remember-me", l.RememberMe)
	}
	if p.Capabilities.PasswordReset {
		require("reset link", l.ResetLink)
		require("reset heading", l.ResetHeading)
		if p.ResetPath == "" {
			problems = append(problems, "reset path is required for password reset")
		}
	}
	if p.Capabilities.Lockout {
		require("lockout message", l.LockoutMessage)
	}
	if p.Capabilities.RoleDashboards {
		require("role indicator", l.RoleIndicator)
		if len(l.RoleWidgets) == 0 {
			problems = append(problems, "role dashboards need at least one role widget")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w %q: %s", ErrInvalidProfile, p.Name, strings.Join(problems, "; "))
	}
	return nil
}

// Roles returns the roles with a dashboard widget, sorted.
func (p Profile) Roles() []string {
	roles := make([]string, 0, len(p.Locators.RoleWidgets))
	for role := range p.Locators.RoleWidgets {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}
