package server

import (
	"html/template"
	"log/slog"
	"net/http"
)

// layout is shared by every page. Each page defines the "content" block.
const layout = `{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
  *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
    background: #f5f5f5;
    color: #1a1a1a;
    display: flex;
    align-items: center;
    justify-content: center;
    min-height: 100vh;
  }
  .card {
    background: #fff;
    border: 1px solid #e0e0e0;
    border-radius: 8px;
    padding: 2.5rem 2rem;
    width: 100%;
    max-width: 380px;
    box-shadow: 0 1px 3px rgba(0,0,0,0.06);
  }
  .card h1 { font-size: 1.25rem; font-weight: 600; margin-bottom: 0.25rem; }
  .card p.sub { font-size: 0.85rem; color: #666; margin-bottom: 1.5rem; }
  .client {
    background: #f8f9fa;
    border: 1px solid #e0e0e0;
    border-radius: 6px;
    padding: 0.6rem 0.75rem;
    font-size: 0.85rem;
    margin-bottom: 1rem;
  }
  .client p { margin-bottom: 0.3rem; }
  .client p:last-child { margin-bottom: 0; }
  .client .muted { color: #666; word-break: break-all; }
  .error {
    background: #fef2f2;
    color: #991b1b;
    border: 1px solid #fecaca;
    border-radius: 6px;
    padding: 0.6rem 0.75rem;
    font-size: 0.85rem;
    margin-bottom: 1rem;
  }
  label { display: block; font-size: 0.85rem; font-weight: 500; margin-bottom: 0.35rem; color: #333; }
  label.check { display: flex; gap: 0.5rem; align-items: center; font-weight: 400; margin-bottom: 0.6rem; }
  input[type="text"], input[type="password"] {
    width: 100%;
    padding: 0.55rem 0.7rem;
    border: 1px solid #d0d0d0;
    border-radius: 6px;
    font-size: 0.9rem;
    outline: none;
    transition: border-color 0.15s;
    margin-bottom: 1rem;
  }
  input[type="text"]:focus, input[type="password"]:focus {
    border-color: #2563eb;
    box-shadow: 0 0 0 2px rgba(37,99,235,0.15);
  }
  .actions { display: flex; gap: 0.5rem; margin-top: 0.5rem; }
  button {
    width: 100%;
    padding: 0.6rem;
    background: #1a1a1a;
    color: #fff;
    border: none;
    border-radius: 6px;
    font-size: 0.9rem;
    font-weight: 500;
    cursor: pointer;
    transition: background 0.15s;
  }
  button:hover { background: #333; }
  button:active { background: #000; }
  button.secondary { background: #fff; color: #1a1a1a; border: 1px solid #d0d0d0; }
  button.secondary:hover { background: #f5f5f5; }
</style>
</head>
<body>
<div class="card">
{{template "content" .}}
</div>
</body>
</html>{{end}}`

const loginContent = `{{define "content"}}
  <h1>Sign in</h1>
  <p class="sub">Sign in to continue to the application.</p>
  <div class="client">
    <p><strong>{{.ClientName}}</strong> is requesting access.</p>
    {{if .Scopes}}<p class="muted">Scopes: {{range $i, $s := .Scopes}}{{if $i}}, {{end}}<code>{{$s}}</code>{{end}}</p>{{end}}
  </div>
  <form method="POST" action="/login">
    <input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
    <input type="hidden" name="challenge" value="{{.Challenge}}">
    <label for="username">Username</label>
    <input type="text" id="username" name="username" value="{{.Username}}" autocomplete="username" required autofocus>
    <label for="password">Password</label>
    <input type="password" id="password" name="password" autocomplete="current-password" required>
    <label class="check"><input type="checkbox" name="remember" value="true"> Remember me</label>
    <div class="actions">
      <button type="submit" name="action" value="accept">Sign in</button>
      <button type="submit" name="action" value="reject" class="secondary" formnovalidate>Cancel</button>
    </div>
  </form>
{{end}}`

const consentContent = `{{define "content"}}
  <h1>Authorize access</h1>
  <p class="sub">Signed in as <strong>{{.Subject}}</strong>.</p>
  <div class="client">
    <p><strong>{{.ClientName}}</strong> wants to access your account.</p>
    {{if .Audience}}<p class="muted">Audience: {{range $i, $a := .Audience}}{{if $i}}, {{end}}<code>{{$a}}</code>{{end}}</p>{{end}}
  </div>
  <form method="POST" action="/consent">
    <input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
    <input type="hidden" name="challenge" value="{{.Challenge}}">
    {{range .Scopes}}<label class="check"><input type="checkbox" name="grant_scope" value="{{.}}" checked> <code>{{.}}</code></label>
    {{end}}
    <label class="check"><input type="checkbox" name="remember" value="true"> Do not ask me again</label>
    <div class="actions">
      <button type="submit" name="action" value="accept">Allow</button>
      <button type="submit" name="action" value="reject" class="secondary">Deny</button>
    </div>
  </form>
{{end}}`

const logoutContent = `{{define "content"}}
  <h1>Sign out</h1>
  <p class="sub">{{if .Subject}}Signed in as <strong>{{.Subject}}</strong>. {{end}}Do you want to sign out?</p>
  <form method="POST" action="/logout">
    <input type="hidden" name="csrf_token" value="{{.CSRFToken}}">
    <input type="hidden" name="challenge" value="{{.Challenge}}">
    <div class="actions">
      <button type="submit" name="action" value="accept">Sign out</button>
      <button type="submit" name="action" value="reject" class="secondary">Stay signed in</button>
    </div>
  </form>
{{end}}`

const messageContent = `{{define "content"}}
  <h1>{{.Heading}}</h1>
  {{if .Error}}<div class="error">{{.Message}}</div>{{else}}<p class="sub">{{.Message}}</p>{{end}}
{{end}}`

var (
	loginPage   = mustPage(loginContent)
	consentPage = mustPage(consentContent)
	logoutPage  = mustPage(logoutContent)
	messagePage = mustPage(messageContent)
)

func mustPage(content string) *template.Template {
	t := template.Must(template.New("page").Parse(layout))
	return template.Must(t.Parse(content))
}

type loginData struct {
	Title      string
	CSRFToken  string
	Challenge  string
	ClientName string
	Scopes     []string
	Username   string
}

type consentData struct {
	Title      string
	CSRFToken  string
	Challenge  string
	ClientName string
	Subject    string
	Scopes     []string
	Audience   []string
}

type logoutData struct {
	Title     string
	CSRFToken string
	Challenge string
	Subject   string
}

type messageData struct {
	Title   string
	Heading string
	Message string
	Error   bool
}

// renderPage writes an HTML page with anti-framing headers.
func renderPage(w http.ResponseWriter, logger *slog.Logger, status int, page *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "frame-ancestors 'none'")
	w.WriteHeader(status)

	if err := page.ExecuteTemplate(w, "layout", data); err != nil {
		logger.Warn("rendering page failed", slog.String("error", err.Error()))
	}
}
