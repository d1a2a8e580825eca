package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dshills/nodegraph/internal/session"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Document string
	Output   string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <script.lua>",
		Short: "Apply a Lua script to a document",
		Long: `Run a Lua script against a document and print the result.

The script sees the doc and history tables. Without --output the resulting
document is written to standard output after anything the script prints.

Example:
  nodegraph run layout.lua --document graph.json --output graph.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.Document, "document", "d", "", "input document (default: empty object)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the result to this file")

	return cmd
}

func runScript(cmd *cobra.Command, opts *RunOptions, scriptPath string) error {
	content, err := readDocument(opts.Document, false)
	if err != nil {
		return err
	}

	e, err := openSession(cmd, opts.RootOptions, session.WithContent(content))
	if err != nil {
		return err
	}
	s := e.session
	defer s.Close()

	ctx := cmd.Context()
	if err := s.RunFile(ctx, scriptPath); err != nil {
		return WrapExitError(ExitFailure, "script failed", err)
	}

	st := s.Status()
	e.logger.Info("script applied",
		slog.String("script", scriptPath),
		slog.Int("entries", s.History().Root().Len()),
		slog.Bool("can_undo", st.CanUndo),
	)

	if opts.Output == "" {
		return s.Save(ctx, cmd.OutOrStdout())
	}
	if err := s.SaveFile(ctx, opts.Output); err != nil {
		return WrapExitError(ExitCommandError, "writing output", err)
	}
	return nil
}
