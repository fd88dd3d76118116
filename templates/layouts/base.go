// Package layouts contains the shared document chrome for all pages.
package layouts

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const head = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>Whispr</title>
	<style>
		body { background: #0f172a; color: #f1f5f9; font-family: system-ui, sans-serif; max-width: 640px; margin: 0 auto; padding: 2rem; }
		a { color: #fbbf24; }
		.card { background: #1e293b; border: 1px solid #334155; border-radius: 12px; padding: 1.5rem; margin: 1rem 0; }
		.error { color: #f87171; }
		input, textarea { width: 100%; padding: .6rem; margin: .4rem 0; border-radius: 8px; border: 1px solid #334155; background: #0f172a; color: #f1f5f9; }
		button { padding: .6rem 1.2rem; border: 0; border-radius: 8px; background: #fbbf24; color: #0f172a; font-weight: 600; cursor: pointer; }
		blockquote { border-left: 3px solid #fbbf24; margin: .6rem 0; padding: .2rem .8rem; }
	</style>
</head>
<body>
`

const foot = `</body>
</html>`

// Base wraps a page body in the document chrome.
func Base(body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, head); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, foot)
		return err
	})
}
