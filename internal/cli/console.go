package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dshills/nodegraph/internal/config"
	"github.com/dshills/nodegraph/internal/config/watcher"
	"github.com/dshills/nodegraph/internal/console"
	"github.com/dshills/nodegraph/internal/logging"
	"github.com/dshills/nodegraph/internal/session"
)

// ConsoleOptions holds flags for the console command.
type ConsoleOptions struct {
	*RootOptions
	Prompt      string
	MetricsAddr string
	WatchConfig bool
}

// NewConsoleCommand creates the console command.
func NewConsoleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConsoleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "console [document.json]",
		Short: "Edit a document interactively",
		Long: `Read editing commands from standard input, one per line.

If a document path is given and exists, it is loaded first. Type "help" for
the command list.

Example:
  nodegraph console graph.json
  echo 'set a 1' | nodegraph console --prompt ''`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			return runConsole(cmd, opts, path)
		},
	}

	cmd.Flags().StringVar(&opts.Prompt, "prompt", "> ", "prompt printed before each command")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&opts.WatchConfig, "watch-config", false, "reload the log level when the config file changes")

	return cmd
}

func runConsole(cmd *cobra.Command, opts *ConsoleOptions, path string) error {
	content, err := readDocument(path, true)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	e, err := openSession(cmd, opts.RootOptions,
		session.WithContent(content),
		session.WithRegisterer(reg),
	)
	if err != nil {
		return err
	}
	s := e.session
	defer s.Close()

	if opts.MetricsAddr != "" {
		stop, err := serveMetrics(opts.MetricsAddr, reg, e.logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "starting metrics server", err)
		}
		defer stop()
	}

	if opts.WatchConfig {
		if opts.ConfigPath == "" {
			return NewExitError(ExitCommandError, "--watch-config requires --config")
		}
		w, err := watcher.New(opts.ConfigPath, watcher.WithLogger(e.logger))
		if err != nil {
			return WrapExitError(ExitCommandError, "watching config", err)
		}
		defer func() { _ = w.Close() }()
		w.OnChange(reloadLogLevel(e, opts.LogLevel != ""))
	}

	c := console.New(s, console.WithPrompt(opts.Prompt))
	if err := c.Run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if s.Status().Dirty {
		e.logger.Warn("exiting with unsaved changes")
	}
	return nil
}

// reloadLogLevel returns a watcher handler that applies the file's log level.
// Only the level is live; other settings need a restart. A level given on the
// command line stays pinned.
func reloadLogLevel(e *env, pinned bool) watcher.Handler {
	return func(ev watcher.Event) {
		if ev.Op != watcher.OpWrite {
			return
		}
		cfg, err := config.Load(ev.Path)
		if err != nil {
			e.logger.Warn("config reload failed", slog.Any("error", err))
			return
		}
		if pinned || cfg.Logging.Level == e.cfg.Logging.Level {
			return
		}
		e.level.Set(logging.ParseLevel(cfg.Logging.Level))
		e.logger.Info("log level changed",
			slog.String("from", e.cfg.Logging.Level),
			slog.String("to", cfg.Logging.Level),
		)
		e.cfg.Logging.Level = cfg.Logging.Level
	}
}

// serveMetrics exposes reg over HTTP until the returned stop func is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", slog.Any("error", err))
		}
	}()
	logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
