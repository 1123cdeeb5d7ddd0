package templates

import (
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/hereditary-eu/obda-studio/internal/services/studio/routepath"
)

// TableView describes one dataset table for the home page.
type TableView struct {
	Name    string
	Columns []string
}

// HomeView is the model for the datasets page.
type HomeView struct {
	Tables []TableView
	Flash  string
	Error  string
}

// HomePage renders the dataset overview with the upload form.
func HomePage(view HomeView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := FlashBanner(view.Flash).Render(ctx, w); err != nil {
			return err
		}
		if err := ErrorBanner(view.Error).Render(ctx, w); err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, `<section class="upload"><h2>Upload CSV</h2><form method="post" action="%s" enctype="multipart/form-data"><input type="file" name="csv_files" accept=".csv" multiple required><input type="text" name="table_name" placeholder="Table name (single file only)"><button type="submit">Upload</button></form></section>`, html.EscapeString(routepath.UploadCSV)); err != nil {
			return err
		}

		if _, err := io.WriteString(w, `<section class="tables"><h2>Tables</h2>`); err != nil {
			return err
		}
		if len(view.Tables) == 0 {
			if _, err := io.WriteString(w, `<p class="empty">No tables yet. Upload a CSV file to get started.</p>`); err != nil {
				return err
			}
		}
		for _, table := range view.Tables {
			if _, err := fmt.Fprintf(w, `<article class="table-card"><h3>%s</h3><p class="columns">%s</p><form method="post" action="%s"><button type="submit" class="danger">Delete</button></form></article>`,
				html.EscapeString(table.Name),
				html.EscapeString(strings.Join(table.Columns, ", ")),
				html.EscapeString(routepath.TableDelete(table.Name))); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</section>`)
		return err
	})
}
