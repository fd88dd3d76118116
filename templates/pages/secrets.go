package pages

import (
	"strings"

	"github.com/a-h/templ"

	"github.com/whisprlabs/whispr/internal/models"
)

// SecretsPage renders the anonymous wall and, when non-empty, the viewer's
// own submissions.
func SecretsPage(wall, own []*models.Secret) templ.Component {
	return page(func(b *strings.Builder) {
		b.WriteString(`
<h1>Secrets</h1>
<p><a href="/submit">Submit a secret</a> &middot; <a href="/logout">Logout</a></p>
<div class="card">
	<h2>The wall</h2>
`)
		if len(wall) == 0 {
			b.WriteString(`<p>No secrets yet. Be the first.</p>`)
		} else {
			for _, s := range wall {
				b.WriteString(`<blockquote>` + templ.EscapeString(s.Body) + `</blockquote>`)
			}
		}
		b.WriteString(`</div>`)
		if len(own) > 0 {
			b.WriteString(`<div class="card"><h2>Yours</h2>`)
			for _, s := range own {
				b.WriteString(`<blockquote>` + templ.EscapeString(s.Body) + `</blockquote>`)
			}
			b.WriteString(`</div>`)
		}
	})
}

// SubmitPage renders the submission form.
func SubmitPage(errorMsg string) templ.Component {
	return page(func(b *strings.Builder) {
		b.WriteString(`<h1>Submit a secret</h1>`)
		errorBanner(b, errorMsg)
		b.WriteString(`
<div class="card">
	<form method="post" action="/submit">
		<textarea name="secret" rows="4" maxlength="500" placeholder="What's your secret?" required></textarea>
		<button type="submit">Submit</button>
	</form>
</div>
<p><a href="/secrets">Back to secrets</a></p>
`)
	})
}
