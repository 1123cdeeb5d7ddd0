package templates

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"

	"github.com/hereditary-eu/obda-studio/internal/services/studio/routepath"
)

// MappingBlockView is one mapping block awaiting field selections.
type MappingBlockView struct {
	MappingID       string
	Target          string
	Placeholders    []string
	SelectedTable   string
	SelectedColumns map[string]string
	Columns         []string
}

// GraphEdgeView is one edge of the mapping graph preview.
type GraphEdgeView struct {
	FromLabel string
	ToLabel   string
}

// MappingView is the model for the field mapping page.
type MappingView struct {
	Template string
	Tables   []string
	Blocks   []MappingBlockView
	Rendered string
	Edges    []GraphEdgeView
	Flash    string
	Error    string
}

// MappingPage renders the OBDA template editor and field mapping form.
func MappingPage(view MappingView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := FlashBanner(view.Flash).Render(ctx, w); err != nil {
			return err
		}
		if err := ErrorBanner(view.Error).Render(ctx, w); err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, `<section class="template"><h2>Mapping Template</h2><form method="post" action="%s"><input type="hidden" name="action" value="parse"><textarea name="template" rows="14" spellcheck="false">%s</textarea><button type="submit">Parse</button></form></section>`,
			html.EscapeString(routepath.MapFields), html.EscapeString(view.Template)); err != nil {
			return err
		}

		if len(view.Blocks) > 0 {
			if _, err := fmt.Fprintf(w, `<section class="selections"><h2>Field Selections</h2><form method="post" action="%s"><input type="hidden" name="action" value="render"><input type="hidden" name="template" value="%s">`,
				html.EscapeString(routepath.MapFields), html.EscapeString(view.Template)); err != nil {
				return err
			}
			for _, block := range view.Blocks {
				if _, err := fmt.Fprintf(w, `<fieldset class="block"><legend>%s</legend>`, html.EscapeString(block.MappingID)); err != nil {
					return err
				}
				if _, err := fmt.Fprintf(w, `<label>Table <select name="table__%s" data-mapping="%s" onchange="loadColumns(this)">`,
					html.EscapeString(block.MappingID), html.EscapeString(block.MappingID)); err != nil {
					return err
				}
				if _, err := io.WriteString(w, `<option value=""></option>`); err != nil {
					return err
				}
				for _, table := range view.Tables {
					selected := ""
					if table == block.SelectedTable {
						selected = ` selected`
					}
					if _, err := fmt.Fprintf(w, `<option value="%s"%s>%s</option>`, html.EscapeString(table), selected, html.EscapeString(table)); err != nil {
						return err
					}
				}
				if _, err := io.WriteString(w, `</select></label>`); err != nil {
					return err
				}
				for _, placeholder := range block.Placeholders {
					if _, err := fmt.Fprintf(w, `<label>%s <select name="col__%s__%s" class="column-select" data-mapping="%s">`,
						html.EscapeString(placeholder), html.EscapeString(block.MappingID), html.EscapeString(placeholder), html.EscapeString(block.MappingID)); err != nil {
						return err
					}
					if _, err := io.WriteString(w, `<option value=""></option>`); err != nil {
						return err
					}
					for _, column := range block.Columns {
						selected := ""
						if block.SelectedColumns != nil && block.SelectedColumns[placeholder] == column {
							selected = ` selected`
						}
						if _, err := fmt.Fprintf(w, `<option value="%s"%s>%s</option>`, html.EscapeString(column), selected, html.EscapeString(column)); err != nil {
							return err
						}
					}
					if _, err := io.WriteString(w, `</select></label>`); err != nil {
						return err
					}
				}
				if _, err := io.WriteString(w, `</fieldset>`); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, `<button type="submit">Render Mapping</button></form></section>`); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, `<script>
function loadColumns(sel) {
  var mapping = sel.getAttribute('data-mapping');
  fetch('%s?table=' + encodeURIComponent(sel.value))
    .then(function (res) { return res.json(); })
    .then(function (body) {
      document.querySelectorAll('select.column-select[data-mapping="' + mapping + '"]').forEach(function (colSel) {
        colSel.innerHTML = '<option value=""></option>';
        (body.columns || []).forEach(function (col) {
          var opt = document.createElement('option');
          opt.value = col;
          opt.textContent = col;
          colSel.appendChild(opt);
        });
      });
    });
}
</script>`, html.EscapeString(routepath.GetColumns)); err != nil {
				return err
			}
		}

		if len(view.Edges) > 0 {
			if _, err := io.WriteString(w, `<section class="graph"><h2>Mapping Graph</h2><ul>`); err != nil {
				return err
			}
			for _, edge := range view.Edges {
				if _, err := fmt.Fprintf(w, `<li>%s &rarr; %s</li>`, html.EscapeString(edge.FromLabel), html.EscapeString(edge.ToLabel)); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, `</ul></section>`); err != nil {
				return err
			}
		}

		if view.Rendered != "" {
			if _, err := fmt.Fprintf(w, `<section class="rendered"><h2>Rendered Mapping</h2><pre>%s</pre></section>`, html.EscapeString(view.Rendered)); err != nil {
				return err
			}
		}
		return nil
	})
}
