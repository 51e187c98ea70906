package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/olehluchkiv/scopescan/internal/diagram"
	"github.com/olehluchkiv/scopescan/internal/metrics"
	"github.com/olehluchkiv/scopescan/internal/report"
)

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>scopescan: {{.Report.Input}}</title>
  <style>
    *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }

    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      padding: 1rem 2rem;
      background-color: #f8f9fa;
      color: #212529;
    }

    @media (prefers-color-scheme: dark) {
      body { background-color: #1a1a2e; color: #e0e0e0; }
      table.entities td, table.entities th { border-color: #444; }
    }

    h1 { margin: 1rem 0 0.25rem; font-size: 1.4rem; font-weight: 600; }
    h2 { margin: 2rem 0 0.5rem; font-size: 1.15rem; font-weight: 600; }
    .meta { font-size: 0.85rem; opacity: 0.75; }
    .error { color: #c0392b; font-family: monospace; white-space: pre-wrap; }
    .empty { font-style: italic; opacity: 0.75; }

    table.entities { border-collapse: collapse; margin: 0.5rem 0 1rem; font-size: 0.9rem; }
    table.entities td, table.entities th {
      border-bottom: 1px solid #ddd;
      padding: 0.25rem 0.75rem;
      text-align: left !important;
      font-family: monospace;
    }

    .mermaid svg { max-width: 100%; }
    .mermaid svg g.node.containerStyle > g:first-child > path:first-child { fill: #2374ab !important; }
    .mermaid svg g.node.matchStyle > g:first-child > path:first-child { fill: #4a9c6d !important; }
    .mermaid svg g.node .nodeLabel { color: #fff !important; }
  </style>
</head>
<body>
  <h1>Scope report for {{.Report.Input}}</h1>
  <p class="meta">
    run {{.Report.RunID}}{{if .Report.ModulePath}} &middot; module {{.Report.ModulePath}}{{end}}
    &middot; {{.Report.TypesVisited}} types visited &middot; {{.Report.DurationMS}} ms
    &middot; <a href="/report.json">report.json</a> &middot; <a href="/mermaid.md">mermaid.md</a>
  </p>

  {{range .Report.Scopes}}
  <h2>{{.Name}}</h2>
  {{if .Error}}
    <p class="error">{{.Error}}</p>
  {{else if not .Entities}}
    <p class="empty">no entities matched</p>
  {{else}}
    <table class="entities">
      <tr><th>Type</th><th>Method</th><th>File</th></tr>
      {{range .Entities}}<tr><td>{{.Type}}</td><td>{{.Method}}</td><td>{{.SourceFile}}</td></tr>
      {{end}}
    </table>
  {{end}}
  {{end}}

  {{range .Slides}}
  <h2>{{.Title}}</h2>
  <pre class="mermaid">{{.Mermaid}}</pre>
  {{end}}

  <script src="https://cdn.jsdelivr.net/npm/mermaid@11/dist/mermaid.min.js"></script>
  <script>
    mermaid.initialize({
      startOnLoad: true,
      theme: 'base',
      themeVariables: {
        primaryColor: '#ffffff',
        primaryBorderColor: '#cccccc',
        primaryTextColor: '#000000',
        lineColor: '#555555',
        fontSize: '16px'
      }
    });
  </script>
</body>
</html>
`

var pageTemplate = template.Must(template.New("report").Parse(htmlTemplate))

// State holds the report being served. Watch mode swaps it after each rerun.
type State struct {
	mu  sync.RWMutex
	rep *report.Report
}

// NewState returns a state serving rep.
func NewState(rep *report.Report) *State {
	return &State{rep: rep}
}

// Report returns the current report.
func (s *State) Report() *report.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rep
}

// Set replaces the current report.
func (s *State) Set(rep *report.Report) {
	s.mu.Lock()
	s.rep = rep
	s.mu.Unlock()
}

// NewHandler routes the report pages. collector may be nil, in which case
// /metrics is not served.
func NewHandler(state *State, collector *metrics.Collector, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	diagOpts := diagram.DefaultDiagramOptions()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request received", "method", r.Method, "path", r.URL.Path)
		rep := state.Report()
		data := struct {
			Report *report.Report
			Slides []diagram.Slide
		}{
			Report: rep,
			Slides: diagram.BuildSlides(rep, diagOpts, diagram.DefaultSlideOptions()),
		}
		var buf bytes.Buffer
		if err := pageTemplate.Execute(&buf, data); err != nil {
			logger.Error("failed to render template", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	})

	mux.HandleFunc("GET /report.json", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request received", "method", r.Method, "path", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if err := state.Report().WriteJSON(w); err != nil {
			logger.Error("failed to write report", "error", err)
		}
	})

	mux.HandleFunc("GET /mermaid.md", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("request received", "method", r.Method, "path", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(diagram.Markdown(state.Report(), diagOpts)))
	})

	if collector != nil {
		mux.Handle("GET /metrics", collector.Handler())
	}
	return mux
}

// Serve starts the HTTP server for state.
// It blocks until the context is cancelled.
func Serve(ctx context.Context, state *State, collector *metrics.Collector, port int, openBrowser bool, logger *slog.Logger) error {
	logger = logger.With("component", "server")

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(state, collector, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d", port)
	logger.Info("starting HTTP server", "addr", url)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(errCh)
	}()

	if openBrowser {
		openInBrowser(url, logger)
	}

	// Block until the context is cancelled or the server fails.
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	}
}

// openInBrowser opens the given URL in the default system browser.
func openInBrowser(url string, logger *slog.Logger) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	default:
		logger.Warn("unsupported platform for opening browser", "os", runtime.GOOS)
		return
	}

	if err := cmd.Start(); err != nil {
		logger.Warn("failed to open browser", "error", err)
	}
}
