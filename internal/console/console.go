// Package console implements a line-oriented command interpreter over a
// session. Each input line is one command; failures are reported inline as
// "error: ..." and do not stop the loop.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dshills/nodegraph/internal/document"
	"github.com/dshills/nodegraph/internal/session"
)

// errQuit stops Run without reporting an error.
var errQuit = errors.New("quit")

// handler runs one command. args is the rest of the line after the command.
type handler func(ctx context.Context, w io.Writer, args string) error

type command struct {
	usage   string
	summary string
	run     handler
}

// Console reads commands and applies them to a session.
type Console struct {
	session  *session.Session
	prompt   string
	commands map[string]command
}

// Option configures a Console.
type Option func(*Console)

// WithPrompt prints prompt before reading each line.
func WithPrompt(prompt string) Option {
	return func(c *Console) {
		c.prompt = prompt
	}
}

// New creates a console bound to s.
func New(s *session.Session, opts ...Option) *Console {
	c := &Console{session: s}
	for _, opt := range opts {
		opt(c)
	}
	c.commands = c.registry()
	return c
}

func (c *Console) registry() map[string]command {
	return map[string]command{
		"set":    {"set <path> <json>", "store a JSON value", c.set},
		"delete": {"delete <path>", "remove a value", c.delete},
		"get":    {"get <path>", "print a value", c.get},
		"begin":  {"begin <name>", "open an aggregation scope", c.begin},
		"end":    {"end", "close the innermost scope", c.end},
		"undo":   {"undo", "revert the last entry", c.undo},
		"redo":   {"redo", "reapply the next entry", c.redo},
		"show":   {"show", "print the document", c.show},
		"status": {"status", "print history state", c.status},
		"log":    {"log", "list the active log", c.log},
		"save":   {"save [file]", "write the document and mark it saved", c.save},
		"run":    {"run <lua>", "execute a Lua chunk", c.run},
		"help":   {"help", "list commands", c.help},
		"quit":   {"quit", "leave the console", c.quit},
	}
}

// Run executes commands from r until EOF, quit, or ctx is done.
func (c *Console) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.prompt != "" {
			fmt.Fprint(w, c.prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		err := c.Exec(ctx, w, scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
		}
	}
}

// Exec runs a single command line. Blank lines and # comments are ignored.
func (c *Console) Exec(ctx context.Context, w io.Writer, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	name, args, _ := strings.Cut(line, " ")
	if name == "exit" {
		name = "quit"
	}
	cmd, ok := c.commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (try help)", name)
	}
	return cmd.run(ctx, w, strings.TrimSpace(args))
}

func usage(cmd string) error {
	return fmt.Errorf("usage: %s", cmd)
}

func (c *Console) set(ctx context.Context, _ io.Writer, args string) error {
	path, value, ok := strings.Cut(args, " ")
	value = strings.TrimSpace(value)
	if !ok || path == "" || value == "" {
		return usage(c.commands["set"].usage)
	}
	return c.session.Set(ctx, path, value)
}

func (c *Console) delete(ctx context.Context, _ io.Writer, args string) error {
	if args == "" {
		return usage(c.commands["delete"].usage)
	}
	return c.session.Delete(ctx, args)
}

func (c *Console) get(_ context.Context, w io.Writer, args string) error {
	if args == "" {
		return usage(c.commands["get"].usage)
	}
	r := c.session.Get(args)
	if !r.Exists() {
		return fmt.Errorf("%w: %s", document.ErrNotFound, args)
	}
	fmt.Fprintln(w, r.Raw)
	return nil
}

func (c *Console) begin(_ context.Context, _ io.Writer, args string) error {
	if args == "" {
		return usage(c.commands["begin"].usage)
	}
	c.session.Begin(args)
	return nil
}

func (c *Console) end(context.Context, io.Writer, string) error {
	return c.session.End()
}

func (c *Console) undo(ctx context.Context, _ io.Writer, _ string) error {
	return c.session.Undo(ctx)
}

func (c *Console) redo(ctx context.Context, _ io.Writer, _ string) error {
	return c.session.Redo(ctx)
}

func (c *Console) show(_ context.Context, w io.Writer, _ string) error {
	_, err := io.WriteString(w, c.session.Document().Pretty())
	return err
}

func (c *Console) status(_ context.Context, w io.Writer, _ string) error {
	st := c.session.Status()
	fmt.Fprintf(w, "log=%s depth=%d entries=%d undo=%t redo=%t dirty=%t\n",
		c.session.History().Current().Name(), st.Depth, st.Entries, st.CanUndo, st.CanRedo, st.Dirty)
	return nil
}

func (c *Console) log(_ context.Context, w io.Writer, _ string) error {
	entries := c.session.History().Current().Entries()
	if len(entries) == 0 {
		fmt.Fprintln(w, "(empty)")
		return nil
	}
	for _, e := range entries {
		marker := " "
		if e.Current {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %2d %-10s %s\n", marker, e.Index, e.State, e.Label)
	}
	return nil
}

func (c *Console) save(ctx context.Context, w io.Writer, args string) error {
	if args == "" {
		return c.session.Save(ctx, w)
	}
	if err := c.session.SaveFile(ctx, args); err != nil {
		return err
	}
	fmt.Fprintf(w, "saved %s\n", args)
	return nil
}

func (c *Console) run(ctx context.Context, _ io.Writer, args string) error {
	if args == "" {
		return usage(c.commands["run"].usage)
	}
	return c.session.RunScript(ctx, "console", args)
}

func (c *Console) help(_ context.Context, w io.Writer, _ string) error {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := c.commands[name]
		fmt.Fprintf(w, "  %-18s %s\n", cmd.usage, cmd.summary)
	}
	return nil
}

func (c *Console) quit(context.Context, io.Writer, string) error {
	return errQuit
}
