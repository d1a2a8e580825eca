// Package session ties a document, its history, a script engine and the
// ambient observability stack into one editable unit.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/nodegraph/internal/config"
	"github.com/dshills/nodegraph/internal/document"
	"github.com/dshills/nodegraph/internal/history"
	"github.com/dshills/nodegraph/internal/metrics"
	"github.com/dshills/nodegraph/internal/script"
)

const tracerName = "nodegraph.session"

// Session is one open document with its undo history.
// A Session is not safe for concurrent use.
type Session struct {
	id     string
	logger *slog.Logger
	tracer trace.Tracer

	history *history.Manager
	doc     *document.Document
	engine  *script.Engine

	scopes []*history.AggregateScope
}

// Status summarizes the session for display.
type Status struct {
	ID        string
	CommandID history.CommandID
	Depth     int
	Entries   int
	CanUndo   bool
	CanRedo   bool
	Dirty     bool
}

type options struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	tracer     trace.TracerProvider
	output     io.Writer
	content    string
}

// Option configures a Session.
type Option func(*options)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRegisterer registers the history metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracer = tp
	}
}

// WithScriptOutput sets where Lua print writes.
func WithScriptOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// WithContent sets the initial document JSON.
func WithContent(content string) Option {
	return func(o *options) {
		o.content = content
	}
}

// New creates a session from cfg.
func New(cfg config.Config, opts ...Option) (*Session, error) {
	o := options{
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.GetTracerProvider(),
		output: io.Discard,
	}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.NewString()
	logger := o.logger.With(slog.String("session", id))

	collector, err := metrics.New(o.registerer, cfg.History.RootName)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	m := history.NewManager(
		history.WithName(cfg.History.RootName),
		history.WithCapacity(cfg.History.Capacity),
		history.WithLogger(logger),
		history.WithHooks(collector),
	)

	var docOpts []document.Option
	if o.content != "" {
		docOpts = append(docOpts, document.WithContent(o.content))
	}
	doc, err := document.New(m, docOpts...)
	if err != nil {
		return nil, err
	}

	engine := script.New(m, doc,
		script.WithLogger(logger),
		script.WithOutput(o.output),
		script.WithTimeout(cfg.Script.Timeout),
	)

	s := &Session{
		id:      id,
		logger:  logger,
		tracer:  o.tracer.Tracer(tracerName),
		history: m,
		doc:     doc,
		engine:  engine,
	}

	doc.OnSaveStateChanged(func(dirty bool) {
		logger.Debug("save state changed", slog.Bool("dirty", dirty))
	})

	logger.Info("session started",
		slog.Int("capacity", cfg.History.Capacity),
		slog.String("root", cfg.History.RootName),
	)
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// History returns the session's history manager.
func (s *Session) History() *history.Manager { return s.history }

// Document returns the edited document.
func (s *Session) Document() *document.Document { return s.doc }

// Get returns the document value at path.
func (s *Session) Get(path string) gjson.Result {
	return s.doc.Get(path)
}

// Set stores raw JSON at path.
func (s *Session) Set(ctx context.Context, path, rawJSON string) error {
	return s.traced(ctx, "session.Set", func(context.Context) error {
		return s.doc.SetRaw(path, rawJSON)
	}, attribute.String("document.path", path))
}

// Delete removes the value at path.
func (s *Session) Delete(ctx context.Context, path string) error {
	return s.traced(ctx, "session.Delete", func(context.Context) error {
		return s.doc.Delete(path)
	}, attribute.String("document.path", path))
}

// Undo reverts the most recent root entry.
func (s *Session) Undo(ctx context.Context) error {
	return s.traced(ctx, "session.Undo", func(context.Context) error {
		return s.history.Undo()
	})
}

// Redo reapplies the next root entry.
func (s *Session) Redo(ctx context.Context) error {
	return s.traced(ctx, "session.Redo", func(context.Context) error {
		return s.history.Redo()
	})
}

// Begin opens an aggregation scope that stays open until End.
func (s *Session) Begin(name string) {
	s.scopes = append(s.scopes, s.history.BeginAggregate(name))
	s.logger.Debug("aggregation opened", slog.String("name", name), slog.Int("depth", len(s.scopes)))
}

// End closes the innermost scope opened by Begin.
func (s *Session) End() error {
	if len(s.scopes) == 0 {
		return ErrNoOpenScope
	}
	last := len(s.scopes) - 1
	s.scopes[last].End()
	s.scopes = s.scopes[:last]
	return nil
}

// RunScript executes Lua code against the document.
func (s *Session) RunScript(ctx context.Context, name, code string) error {
	return s.traced(ctx, "session.RunScript", func(ctx context.Context) error {
		return s.engine.Run(ctx, name, code)
	}, attribute.String("script.name", name))
}

// RunFile executes the Lua file at path.
func (s *Session) RunFile(ctx context.Context, path string) error {
	return s.traced(ctx, "session.RunFile", func(ctx context.Context) error {
		return s.engine.RunFile(ctx, path)
	}, attribute.String("script.path", path))
}

// Save writes the indented document to w and marks the current entry saved.
func (s *Session) Save(ctx context.Context, w io.Writer) error {
	return s.traced(ctx, "session.Save", func(context.Context) error {
		if _, err := io.WriteString(w, s.doc.Pretty()); err != nil {
			return fmt.Errorf("writing document: %w", err)
		}
		s.doc.MarkSaved()
		return nil
	})
}

// SaveFile saves the document to path.
func (s *Session) SaveFile(ctx context.Context, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := s.Save(ctx, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Status returns a snapshot of the session state.
func (s *Session) Status() Status {
	return Status{
		ID:        s.id,
		CommandID: s.history.CommandID(),
		Depth:     s.history.Depth(),
		Entries:   s.history.Current().Len(),
		CanUndo:   s.history.CanUndo(),
		CanRedo:   s.history.CanRedo(),
		Dirty:     s.doc.HasUnsavedChanges(),
	}
}

// Close ends any open scopes and releases the script engine.
func (s *Session) Close() {
	for len(s.scopes) > 0 {
		_ = s.End()
	}
	s.engine.Close()
	s.doc.Close()
	s.logger.Info("session closed")
}

// traced runs fn inside a span and records its outcome.
func (s *Session) traced(ctx context.Context, name string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := s.tracer.Start(ctx, name,
		trace.WithAttributes(append(attrs, attribute.String("session.id", s.id))...),
	)
	defer span.End()

	err := fn(ctx)
	span.SetAttributes(
		attribute.Int64("history.command_id", int64(s.history.CommandID())),
		attribute.Int("history.depth", s.history.Depth()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Debug("action failed", slog.String("action", name), slog.Any("error", err))
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
