// Package pages contains the page components rendered by the web handlers.
// Everything user-supplied goes through templ.EscapeString before hitting
// the response.
package pages

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/whisprlabs/whispr/templates/layouts"
)

// page adapts a body-building function into a full document component.
func page(build func(b *strings.Builder)) templ.Component {
	return layouts.Base(templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		build(&b)
		_, err := io.WriteString(w, b.String())
		return err
	}))
}

func errorBanner(b *strings.Builder, msg string) {
	if msg == "" {
		return
	}
	b.WriteString(`<p class="error">` + templ.EscapeString(msg) + `</p>`)
}

// Landing renders the public landing page.
func Landing() templ.Component {
	return page(func(b *strings.Builder) {
		b.WriteString(`
<h1>🤫 Whispr</h1>
<p>Share a secret. Nobody will know it was you.</p>
<div class="card">
	<a href="/login">Login</a> &middot; <a href="/register">Register</a>
</div>
`)
	})
}

// LoginPage renders the login form with the configured federated providers.
func LoginPage(errorMsg string, providers []string) templ.Component {
	return page(func(b *strings.Builder) {
		b.WriteString(`<h1>Login</h1>`)
		errorBanner(b, errorMsg)
		b.WriteString(`
<div class="card">
	<form method="post" action="/login">
		<input type="email" name="username" placeholder="Email" required>
		<input type="password" name="password" placeholder="Password" required>
		<button type="submit">Login</button>
	</form>
</div>
`)
		for _, p := range providers {
			b.WriteString(`<div class="card"><a href="/auth/` + templ.EscapeString(p) + `">Continue with ` + providerLabel(p) + `</a></div>`)
		}
		b.WriteString(`<p>New here? <a href="/register">Register</a></p>`)
	})
}

func providerLabel(provider string) string {
	switch provider {
	case "github":
		return "GitHub"
	case "google":
		return "Google"
	default:
		return templ.EscapeString(provider)
	}
}

// RegisterPage renders the registration form.
func RegisterPage(errorMsg string) templ.Component {
	return page(func(b *strings.Builder) {
		b.WriteString(`<h1>Register</h1>`)
		errorBanner(b, errorMsg)
		b.WriteString(`
<div class="card">
	<form method="post" action="/register">
		<input type="email" name="username" placeholder="Email" required>
		<input type="password" name="password" placeholder="Password (min 8 characters)" required>
		<button type="submit">Register</button>
	</form>
</div>
<p>Already have an account? <a href="/login">Login</a></p>
`)
	})
}
