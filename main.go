package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/olehluchkiv/scopescan/internal/diagram"
	"github.com/olehluchkiv/scopescan/internal/logging"
	"github.com/olehluchkiv/scopescan/internal/metrics"
	"github.com/olehluchkiv/scopescan/internal/report"
	"github.com/olehluchkiv/scopescan/internal/server"
	"github.com/olehluchkiv/scopescan/internal/watch"
)

const logLevelEnv = "SCOPESCAN_LOG_LEVEL"

// options is the parsed command line.
type options struct {
	analysis  server.AnalysisConfig
	format    string
	output    string
	serve     bool
	port      int
	noBrowser bool
	watch     bool
	strict    bool
	logFile   string
	logLevel  string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// parseOptions parses args. Flags may come before or after the positional
// input.
func parseOptions(args []string, stderr io.Writer) (options, error) {
	// Go's flag.Parse stops at the first non-flag argument, which breaks
	// "scopescan ./path -format json". Flags are moved to the front first.
	flags, positional := reorderArgs(args)

	var opts options
	fs := flag.NewFlagSet("scopescan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	pathFlag := fs.String("path", "", "path or GitHub URL to analyze (alternative to positional argument)")
	fs.StringVar(&opts.analysis.Snapshot, "snapshot", "", "analyze a YAML type snapshot instead of Go packages")
	fs.StringVar(&opts.analysis.CatalogFile, "scopes", "", "scope catalog file (.toml, .yaml); default is the built-in catalog")
	scopeNames := fs.String("scope", "", "comma separated scope names to run (default: all)")
	fs.BoolVar(&opts.analysis.PublicOnly, "public-only", false, "only consider exported types")
	exclude := fs.String("exclude", "", "comma separated type name exclusion patterns")
	fs.BoolVar(&opts.analysis.IncludeDeps, "include-deps", false, "also visit types declared in dependency packages")
	fs.IntVar(&opts.analysis.Workers, "workers", 0, "parallel type visits (default GOMAXPROCS)")
	fs.StringVar(&opts.format, "format", "text", "output format (text, json, mermaid)")
	fs.StringVar(&opts.output, "output", "", "write the report to file instead of stdout")
	fs.BoolVar(&opts.serve, "serve", false, "serve the report over HTTP")
	fs.IntVar(&opts.port, "port", 8080, "HTTP server port")
	fs.BoolVar(&opts.noBrowser, "no-browser", false, "skip auto-opening browser")
	fs.BoolVar(&opts.watch, "watch", false, "rerun the analysis when sources or catalogs change")
	fs.BoolVar(&opts.strict, "strict", false, "exit non-zero when any scope cannot be resolved")
	fs.StringVar(&opts.logFile, "log-file", "", "also write logs to this file")
	fs.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error); "+logLevelEnv+" applies when unset")

	if err := fs.Parse(flags); err != nil {
		return options{}, err
	}
	positional = append(positional, fs.Args()...)

	levelSet := false
	fs.Visit(func(f *flag.Flag) { levelSet = levelSet || f.Name == "log-level" })
	if env := os.Getenv(logLevelEnv); env != "" && !levelSet {
		opts.logLevel = env
	}

	// Positional argument takes precedence, then -path.
	if len(positional) > 0 {
		opts.analysis.Input = positional[0]
	}
	if opts.analysis.Input == "" {
		opts.analysis.Input = *pathFlag
	}
	if opts.analysis.Input == "" && opts.analysis.Snapshot == "" {
		fmt.Fprintln(stderr, "Usage: scopescan [flags] <path-or-url>")
		fs.PrintDefaults()
		return options{}, errors.New("no input given")
	}

	opts.analysis.Scopes = splitList(*scopeNames)
	opts.analysis.Exclude = splitList(*exclude)

	switch opts.format {
	case "text", "json", "mermaid":
	default:
		return options{}, fmt.Errorf("unknown format %q (valid: text, json, mermaid)", opts.format)
	}
	return opts, nil
}

// splitList splits a comma separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// run is main without the process exit. It returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid log level %q: %v\n", opts.logLevel, err)
		return 2
	}
	logger, logCleanup, err := logging.Setup(opts.logFile, level)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to setup logging: %v\n", err)
		return 1
	}
	defer logCleanup()

	// Setup signal handling with context cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	collector := metrics.NewCollector(nil)
	rep, err := server.RunAnalysis(ctx, opts.analysis, collector, logger)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := emit(rep, opts, stdout); err != nil {
		logger.Error("failed to write report", "error", err)
		fmt.Fprintf(stderr, "Error writing report: %v\n", err)
		return 1
	}

	if opts.serve || opts.watch {
		state := server.NewState(rep)
		if err := serveAndWatch(ctx, state, collector, opts, stdout, logger); err != nil {
			logger.Error("stopped with error", "error", err)
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		rep = state.Report()
	}

	if opts.strict {
		if err := rep.Err(); err != nil {
			fmt.Fprintf(stderr, "Unresolved scopes:\n%v\n", err)
			return 1
		}
	}
	return 0
}

// serveAndWatch serves state and/or reruns the analysis on changes until ctx
// is cancelled.
func serveAndWatch(ctx context.Context, state *server.State, collector *metrics.Collector, opts options, stdout io.Writer, logger *slog.Logger) error {
	var w *watch.Watcher
	if opts.watch {
		var err error
		if w, err = watch.New(watch.DefaultConfig(watchPaths(opts.analysis)...), logger); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if opts.serve {
		fmt.Fprintf(stdout, "Serving report on http://localhost:%d\n", opts.port)
		g.Go(func() error {
			return server.Serve(gctx, state, collector, opts.port, !opts.noBrowser, logger)
		})
	}

	if w != nil {
		g.Go(func() error {
			return w.Run(gctx, func(ctx context.Context) error {
				rep, err := server.RunAnalysis(ctx, opts.analysis, collector, logger)
				if err != nil {
					return err
				}
				state.Set(rep)
				return emit(rep, opts, stdout)
			})
		})
	}

	return g.Wait()
}

// watchPaths lists the local inputs of an analysis. Remote inputs are not
// watched.
func watchPaths(cfg server.AnalysisConfig) []string {
	var paths []string
	if cfg.Snapshot != "" {
		paths = append(paths, cfg.Snapshot)
	} else if !strings.Contains(cfg.Input, "://") {
		paths = append(paths, cfg.Input)
	}
	if cfg.CatalogFile != "" {
		paths = append(paths, cfg.CatalogFile)
	}
	return paths
}

// render formats rep as text, json or mermaid markdown.
func render(rep *report.Report, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "json":
		err = rep.WriteJSON(&buf)
	case "mermaid":
		_, err = buf.WriteString(diagram.Markdown(rep, diagram.DefaultDiagramOptions()))
	default:
		err = rep.WriteTable(&buf)
	}
	return buf.Bytes(), err
}

// emit writes the rendered report to the output file, or to stdout.
func emit(rep *report.Report, opts options, stdout io.Writer) error {
	data, err := render(rep, opts.format)
	if err != nil {
		return err
	}
	if opts.output == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", opts.output, err)
	}
	fmt.Fprintf(stdout, "Wrote %s report to %s (%d entities, %d scopes)\n",
		opts.format, opts.output, rep.EntityCount(), len(rep.Scopes))
	return nil
}

// reorderArgs separates flags and positional arguments so flags can appear
// in any position (before or after the positional path argument).
// Flags that take a value (e.g., -output file.md) consume the next arg.
func reorderArgs(args []string) (flags, positional []string) {
	// Set of flags that take a value argument
	valueFlagSet := map[string]bool{
		"-path": true, "-snapshot": true, "-scopes": true, "-scope": true,
		"-exclude": true, "-workers": true, "-format": true, "-output": true,
		"-port": true, "-log-file": true, "-log-level": true,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			flags = append(flags, arg)
			// Check if this flag takes a value (and it's not using = syntax)
			name := "-" + strings.TrimLeft(arg, "-")
			if !strings.Contains(arg, "=") && valueFlagSet[name] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}
	return flags, positional
}
