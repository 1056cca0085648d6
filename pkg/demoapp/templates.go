package demoapp

import (
	"bytes"
	"html/template"
	"net/http"
)

type loginView struct {
	Username         string
	Remember         bool
	UsernameRequired bool
	PasswordRequired bool
	Alert            string
	Locked           bool
}

type dashboardView struct {
	DisplayName string
	Role        string
	Widget      string
}

const layout = `{{define "head"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>OrangeHRM</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
.oxd-input-group { margin-bottom: 1rem; }
.oxd-input-field-error-message, .oxd-alert-content-text, .orangehrm-login-lockout { color: #eb0910; }
</style>
</head>
<body>{{end}}
{{define "foot"}}</body>
</html>{{end}}`

var loginTemplate = template.Must(template.New("login").Parse(layout + `{{template "head"}}
<div class="orangehrm-login-container">
<h5 class="orangehrm-login-title">Login</h5>
{{if .Alert}}<div class="oxd-alert oxd-alert--error" role="alert"><p class="oxd-alert-content-text">{{.Alert}}</p></div>{{end}}
{{if .Locked}}<div class="oxd-alert oxd-alert--warn" role="alert"><p class="orangehrm-login-lockout">Account temporarily locked. Try again later.</p></div>{{end}}
<form class="oxd-form" method="post" action="/web/index.php/auth/validate" novalidate>
<div class="oxd-input-group">
<label for="username">Username</label>
<input id="username" class="oxd-input" name="username" placeholder="Username" value="{{.Username}}" autocomplete="username">
{{if .UsernameRequired}}<span class="oxd-text oxd-input-field-error-message">Required</span>{{end}}
</div>
<div class="oxd-input-group">
<label for="password">Password</label>
<input id="password" class="oxd-input" type="password" name="password" placeholder="Password" autocomplete="current-password">
{{if .PasswordRequired}}<span class="oxd-text oxd-input-field-error-message">Required</span>{{end}}
</div>
<div class="oxd-checkbox-wrapper">
<label><input type="checkbox" name="remember" value="on"{{if .Remember}} checked{{end}}> Remember me</label>
</div>
<button type="submit" class="oxd-button orangehrm-login-button">Login</button>
</form>
<a class="orangehrm-login-forgot-header" href="/web/index.php/auth/requestPasswordResetCode">Forgot your password?</a>
</div>
{{template "foot"}}`))

var dashboardTemplate = template.Must(template.New("dashboard").Parse(layout + `{{template "head"}}
<header class="oxd-topbar-header">
<h6 class="oxd-topbar-header-breadcrumb-module">Dashboard</h6>
<span class="oxd-userdropdown-name">{{.DisplayName}}</span>
<span class="orangehrm-user-role">{{.Role}}</span>
<a href="/web/index.php/auth/logout">Logout</a>
</header>
<main class="orangehrm-dashboard-grid">
{{if .Widget}}<div class="orangehrm-dashboard-widget" data-widget="{{.Widget}}"><p>{{.Role}} widget</p></div>{{end}}
</main>
{{template "foot"}}`))

var resetTemplate = template.Must(template.New("reset").Parse(layout + `{{template "head"}}
<div class="orangehrm-forgot-password-container">
<h6 class="orangehrm-forgot-password-title">Reset Password</h6>
<p>Please enter your username to identify your account to reset your password</p>
<div class="oxd-input-group">
<label for="username">Username</label>
<input id="username" class="oxd-input" name="username" placeholder="Username">
</div>
<a href="/web/index.php/auth/login">Cancel</a>
</div>
{{template "foot"}}`))

// render executes t into a buffer first so a template error never leaves a
// half-written page behind.
func (a *App) render(w http.ResponseWriter, status int, t *template.Template, data any) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		a.logger.Errorf("render %s: %v", t.Name(), err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
