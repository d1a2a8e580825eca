package history

import (
	"log/slog"

	"github.com/dshills/nodegraph/internal/notify"
)

// DefaultCapacity is the default maximum number of entries in a log.
const DefaultCapacity = 200

// DefaultRootName is the default name of a manager's root log.
const DefaultRootName = "<root>"

// options holds settings shared by NewLog and NewManager.
type options struct {
	name     string
	capacity int
	logger   *slog.Logger
	hooks    Hooks
	notifier *notify.Notifier
}

func defaultOptions() options {
	return options{
		name:     DefaultRootName,
		capacity: DefaultCapacity,
		logger:   slog.New(slog.DiscardHandler),
		hooks:    NopHooks{},
	}
}

// Option configures a Log or a Manager.
type Option func(*options)

// WithName sets the manager's root log name. Ignored by NewLog.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithCapacity sets the maximum number of entries. Zero means unbounded.
// Negative values are ignored.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.capacity = n
		}
	}
}

// WithLogger sets the logger for truncation and eviction diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHooks installs history event hooks.
func WithHooks(hooks Hooks) Option {
	return func(o *options) {
		if hooks != nil {
			o.hooks = hooks
		}
	}
}

// WithNotifier sets the notifier a manager publishes changes to.
// Ignored by NewLog.
func WithNotifier(n *notify.Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}
