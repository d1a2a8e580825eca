// Package cli implements the nodegraph command line.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/nodegraph/internal/config"
	"github.com/dshills/nodegraph/internal/logging"
	"github.com/dshills/nodegraph/internal/session"
)

// BuildInfo describes the binary, normally set via ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

// ValidLogLevels lists accepted --log-level values. Empty defers to config.
var ValidLogLevels = []string{"", "debug", "info", "warn", "error"}

// NewRootCommand creates the root command.
func NewRootCommand(info BuildInfo) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "nodegraph",
		Short: "Edit JSON node graphs with full undo history",
		Long: `nodegraph edits a JSON document through a linear command log.

Every edit can be undone and redone. Edits grouped with "begin"/"end" in the
console, or history.aggregate in Lua, undo as a single step.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidLogLevel(opts.LogLevel) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid log level %q (must be debug, info, warn, or error)", opts.LogLevel))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a TOML or YAML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewConsoleCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewVersionCommand(info))

	return cmd
}

func isValidLogLevel(level string) bool {
	for _, l := range ValidLogLevels {
		if l == level {
			return true
		}
	}
	return false
}

// env is the state shared by commands that edit a document.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	level   *slog.LevelVar
	session *session.Session
}

// openSession loads config, builds the logger and starts a session.
func openSession(cmd *cobra.Command, opts *RootOptions, extra ...session.Option) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading config", err)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	level := new(slog.LevelVar)
	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	lc.Component = cmd.Name()
	lc.LevelVar = level
	logger := logging.New(lc)

	sessOpts := append([]session.Option{
		session.WithLogger(logger),
		session.WithScriptOutput(cmd.OutOrStdout()),
	}, extra...)

	s, err := session.New(cfg, sessOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "starting session", err)
	}
	return &env{cfg: cfg, logger: logger, level: level, session: s}, nil
}

// readDocument returns the file content, or "" when it does not exist and
// missingOK is set.
func readDocument(path string, missingOK bool) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && missingOK {
		return "", nil
	}
	if err != nil {
		return "", WrapExitError(ExitCommandError, "reading document", err)
	}
	return string(data), nil
}
