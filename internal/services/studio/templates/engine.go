package templates

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"

	"github.com/hereditary-eu/obda-studio/internal/services/studio/routepath"
)

// EngineView is the model for the engine control page.
type EngineView struct {
	State     string
	PID       int
	StartedAt string
	Stale     bool
	Logs      string
	Error     string
}

// EnginePage renders the engine status, controls, and log tail.
func EnginePage(view EngineView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := ErrorBanner(view.Error).Render(ctx, w); err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, `<section class="engine"><h2>SPARQL Engine</h2><dl class="status"><dt>State</dt><dd class="state-%s">%s</dd>`,
			html.EscapeString(view.State), html.EscapeString(view.State)); err != nil {
			return err
		}
		if view.PID > 0 {
			if _, err := fmt.Fprintf(w, `<dt>PID</dt><dd>%d</dd>`, view.PID); err != nil {
				return err
			}
		}
		if view.StartedAt != "" {
			if _, err := fmt.Fprintf(w, `<dt>Started</dt><dd>%s</dd>`, html.EscapeString(view.StartedAt)); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, `</dl>`); err != nil {
			return err
		}
		if view.Stale {
			if _, err := io.WriteString(w, `<div class="banner warn">Mapping or ontology files changed since the engine started. Restart to pick up the changes.</div>`); err != nil {
				return err
			}
		}

		if _, err := fmt.Fprintf(w, `<form method="post" action="%s" class="controls"><button type="submit" name="action" value="start">Start</button><button type="submit" name="action" value="stop">Stop</button><button type="submit" name="action" value="restart">Restart</button></form></section>`,
			html.EscapeString(routepath.Engine)); err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, `<section class="logs"><h2>Engine Log</h2><pre id="engine-log">%s</pre></section>`, html.EscapeString(view.Logs)); err != nil {
			return err
		}

		_, err := fmt.Fprintf(w, `<script>
setInterval(function () {
  fetch('%s').then(function (res) { return res.json(); }).then(function (body) {
    document.getElementById('engine-log').textContent = (body.lines || []).join('\n');
  });
}, 5000);
</script>`, html.EscapeString(routepath.EngineLogs))
		return err
	})
}
