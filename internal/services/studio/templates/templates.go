// Package templates renders the studio HTML pages.
package templates

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"

	"github.com/hereditary-eu/obda-studio/internal/services/studio/routepath"
)

// navItem is a top navigation entry.
type navItem struct {
	Label string
	Path  string
}

var navItems = []navItem{
	{Label: "Datasets", Path: routepath.Root},
	{Label: "Query", Path: routepath.Query},
	{Label: "Mapping", Path: routepath.MapFields},
	{Label: "Engine", Path: routepath.Engine},
	{Label: "SPARQL", Path: routepath.SPARQL},
}

// Layout wraps body in the shared page chrome. The current access level
// and the level catalog render as a selector in the header on every page.
func Layout(title, activePath, level string, levels []string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>%s</title><link rel="stylesheet" href="/static/studio.css"></head><body>`, html.EscapeString(title)); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<header class="topbar"><span class="brand">OBDA Studio</span><nav>`); err != nil {
			return err
		}
		for _, item := range navItems {
			class := ""
			if item.Path == activePath {
				class = ` class="active"`
			}
			if _, err := fmt.Fprintf(w, `<a href="%s"%s>%s</a>`, html.EscapeString(item.Path), class, html.EscapeString(item.Label)); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</nav>`); err != nil {
			return err
		}
		if len(levels) > 0 {
			if _, err := fmt.Fprintf(w, `<form method="post" action="%s" class="level-select"><select name="level">`, html.EscapeString(routepath.SetLevel)); err != nil {
				return err
			}
			for _, item := range levels {
				selected := ""
				if item == level {
					selected = ` selected`
				}
				if _, err := fmt.Fprintf(w, `<option value="%s"%s>%s</option>`, html.EscapeString(item), selected, html.EscapeString(item)); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, `</select><button type="submit">Set level</button></form>`); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</header><main>`); err != nil {
			return err
		}
		if body != nil {
			if err := body.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// ErrorBanner renders a dismissable error message, or nothing when msg is
// empty.
func ErrorBanner(msg string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if msg == "" {
			return nil
		}
		_, err := fmt.Fprintf(w, `<div class="banner error">%s</div>`, html.EscapeString(msg))
		return err
	})
}

// FlashBanner renders an informational message, or nothing when msg is
// empty.
func FlashBanner(msg string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if msg == "" {
			return nil
		}
		_, err := fmt.Fprintf(w, `<div class="banner flash">%s</div>`, html.EscapeString(msg))
		return err
	})
}

// ResultTable renders a generic column/row grid.
func ResultTable(columns []string, rows [][]string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(columns) == 0 {
			_, err := io.WriteString(w, `<p class="empty">No results.</p>`)
			return err
		}
		if _, err := io.WriteString(w, `<table class="results"><thead><tr>`); err != nil {
			return err
		}
		for _, col := range columns {
			if _, err := fmt.Fprintf(w, `<th>%s</th>`, html.EscapeString(col)); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</tr></thead><tbody>`); err != nil {
			return err
		}
		for _, row := range rows {
			if _, err := io.WriteString(w, `<tr>`); err != nil {
				return err
			}
			for _, cell := range row {
				if _, err := fmt.Fprintf(w, `<td>%s</td>`, html.EscapeString(cell)); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, `</tr>`); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table>`)
		return err
	})
}
