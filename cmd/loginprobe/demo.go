package main

import (
	"github.com/entrhq/loginprobe/pkg/config"
	"github.com/entrhq/loginprobe/pkg/demoapp"
)

// lockUser is only used by the lock check, so locking it never affects
// a concurrent login.
const lockUser = "jdoe"

func demoUsers() []demoapp.User {
	return append(demoapp.DefaultUsers(),
		demoapp.User{Username: lockUser, Password: "jdoe1234", DisplayName: "John Doe", Role: demoapp.RoleESS})
}

// demoChecks exercises every expectation against the demo app.
func demoChecks() []config.CheckConfig {
	return []config.CheckConfig{
		{Name: "admin login", Username: "Admin", Password: "admin123", Expect: config.ExpectSuccess, Role: demoapp.RoleAdmin},
		{Name: "ess login with remember me", Username: "ess.user", Password: "ess12345", Expect: config.ExpectSuccess, Role: demoapp.RoleESS, RememberMe: true},
		{Name: "wrong password", Username: "Admin", Password: "wrongpass", Expect: config.ExpectInvalidCredentials},
		{Name: "unknown user", Username: "nobody", Password: "secret", Expect: config.ExpectInvalidCredentials},
		{Name: "empty form", Expect: config.ExpectRequiredFields},
		{Name: "empty password", Username: "Admin", Expect: config.ExpectRequiredFields},
		{Name: "locked account", Username: lockUser, Password: "jdoe1234", Expect: config.ExpectLocked, Lock: true},
	}
}
