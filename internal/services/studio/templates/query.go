package templates

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"

	"github.com/hereditary-eu/obda-studio/internal/services/studio/routepath"
)

// QueryView is the model for the SQL console page.
type QueryView struct {
	Query   string
	Columns []string
	Rows    [][]string
	Ran     bool
	Error   string
}

// QueryPage renders the SQL console.
func QueryPage(view QueryView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ErrorBanner(view.Error).Render(ctx, w); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, `<section class="console"><h2>SQL Console</h2><form method="post" action="%s"><textarea name="query" rows="6" spellcheck="false">%s</textarea><button type="submit">Run</button></form></section>`,
			html.EscapeString(routepath.Query), html.EscapeString(view.Query)); err != nil {
			return err
		}
		if !view.Ran {
			return nil
		}
		if _, err := io.WriteString(w, `<section class="output">`); err != nil {
			return err
		}
		if err := ResultTable(view.Columns, view.Rows).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</section>`)
		return err
	})
}
