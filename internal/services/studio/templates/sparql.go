package templates

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"

	"github.com/hereditary-eu/obda-studio/internal/services/studio/routepath"
)

// SPARQLView is the model for the SPARQL console page.
type SPARQLView struct {
	Query string
	Vars  []string
	Rows  [][]string
	Ran   bool
	Error string
}

// SPARQLPage renders the SPARQL console backed by the running engine.
func SPARQLPage(view SPARQLView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ErrorBanner(view.Error).Render(ctx, w); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, `<section class="console"><h2>SPARQL Console</h2><form method="post" action="%s"><textarea name="query" rows="8" spellcheck="false">%s</textarea><button type="submit">Run</button></form></section>`,
			html.EscapeString(routepath.SPARQL), html.EscapeString(view.Query)); err != nil {
			return err
		}
		if !view.Ran {
			return nil
		}
		if _, err := io.WriteString(w, `<section class="output">`); err != nil {
			return err
		}
		if err := ResultTable(view.Vars, view.Rows).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</section>`)
		return err
	})
}
