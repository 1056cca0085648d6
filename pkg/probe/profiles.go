package probe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/entrhq/loginprobe/pkg/browser"
	"github.com/entrhq/loginprobe/pkg/config"
	"github.com/entrhq/loginprobe/pkg/demoapp"
	"github.com/entrhq/loginprobe/pkg/loginpage"
)

// profiles are the built-in targets selectable by name.
var profiles = map[string]func() loginpage.Profile{
	"orangehrm":      loginpage.OrangeHRMProfile,
	"orangehrm-demo": demoapp.Profile,
}

// ProfileNames lists the built-in profile names, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const roleWidgetPrefix = "role_widget."

// ResolveProfile builds the profile a target names and applies its
// locator overrides. Override keys are the snake_case element names,
// plus "role_widget.<role>" for role dashboards.
func ResolveProfile(target config.TargetConfig) (loginpage.Profile, error) {
	build, ok := profiles[target.Profile]
	if !ok {
		return loginpage.Profile{}, fmt.Errorf("unknown profile %q (known: %s)", target.Profile, strings.Join(ProfileNames(), ", "))
	}
	p := build()

	keys := make([]string, 0, len(target.Locators))
	for key := range target.Locators {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		loc, err := browser.ParseLocator(target.Locators[key])
		if err != nil {
			return loginpage.Profile{}, fmt.Errorf("locator %s: %w", key, err)
		}
		if role, ok := strings.CutPrefix(key, roleWidgetPrefix); ok {
			widgets := make(map[string]browser.Locator, len(p.Locators.RoleWidgets)+1)
			for r, l := range p.Locators.RoleWidgets {
				widgets[r] = l
			}
			widgets[role] = loc
			p.Locators.RoleWidgets = widgets
			continue
		}
		field := locatorField(&p.Locators, key)
		if field == nil {
			return loginpage.Profile{}, fmt.Errorf("unknown locator %q", key)
		}
		*field = loc
	}

	if err := p.Validate(); err != nil {
		return loginpage.Profile{}, err
	}
	return p, nil
}

func locatorField(l *loginpage.Locators, key string) *browser.Locator {
	switch key {
	case "username":
		return &l.Username
	case "password":
		return &l.Password
	case "submit":
		return &l.Submit
	case "error_message":
		return &l.ErrorMessage
	case "welcome_message":
		return &l.WelcomeMessage
	case "username_validation":
		return &l.UsernameValidation
	case "password_validation":
		return &l.PasswordValidation
	case "remember_me":
		return &l.RememberMe
	case "reset_link":
		return &l.ResetLink
	case "reset_heading":
		return &l.ResetHeading
	case "lockout_message":
		return &l.LockoutMessage
	case "role_indicator":
		return &l.RoleIndicator
	default:
		return nil
	}
}
