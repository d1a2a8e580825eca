// Package script runs sandboxed Lua scripts against a document and its history.
//
// Scripts see two global tables:
//
//	doc.set(path, value)      doc.get(path)       doc.delete(path)    doc.json()
//	history.undo()            history.redo()      history.id()
//	history.can_undo()        history.can_redo()  history.aggregate(name, fn)
//
// history.undo and history.redo return false when there is nothing to replay.
// Only the base, table, string and math libraries are available.
//
// An Engine is not safe for concurrent use by Lua code; Run serializes calls.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/nodegraph/internal/document"
	"github.com/dshills/nodegraph/internal/history"
)

// DefaultTimeout bounds a single Run when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Engine is a Lua state bound to one document and its history manager.
type Engine struct {
	state   *lua.LState
	history *history.Manager
	doc     *document.Document

	logger  *slog.Logger
	out     io.Writer
	timeout time.Duration

	mu     sync.Mutex
	closed bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithOutput redirects the Lua print function.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) {
		e.out = w
	}
}

// WithTimeout bounds each Run. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// New creates a sandboxed engine editing doc through h.
func New(h *history.Manager, doc *document.Document, opts ...Option) *Engine {
	e := &Engine{
		history: h,
		doc:     doc,
		logger:  slog.New(slog.DiscardHandler),
		out:     io.Discard,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.state = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(e.state)
	e.installPrint()
	e.installDocAPI()
	e.installHistoryAPI()
	return e
}

// openSafeLibraries opens the libraries without filesystem or process access.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// Run executes code. name identifies the chunk in error messages.
func (e *Engine) Run(ctx context.Context, name, code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.state.SetContext(ctx)
	defer e.state.RemoveContext()
	defer e.state.SetTop(0)

	start := time.Now()
	err := e.doWithRecovery(func() error {
		fn, err := e.state.Load(strings.NewReader(code), name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		e.state.Push(fn)
		return e.state.PCall(0, lua.MultRet, nil)
	})

	switch {
	case err == nil:
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
	case ctx.Err() != nil:
		err = ctx.Err()
	}

	e.logger.Debug("script finished",
		slog.String("chunk", name),
		slog.Duration("elapsed", time.Since(start)),
		slog.Bool("ok", err == nil),
	)
	return err
}

// RunFile executes the Lua file at path.
func (e *Engine) RunFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}
	return e.Run(ctx, filepath.Base(path), string(data))
}

func (e *Engine) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Close releases the Lua state. It is safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	e.state.Close()
}

// installPrint replaces print so output goes to the configured writer.
func (e *Engine) installPrint() {
	e.state.SetGlobal("print", e.state.NewFunction(func(L *lua.LState) int {
		top := L.GetTop()
		parts := make([]string, top)
		for i := 1; i <= top; i++ {
			parts[i-1] = L.ToStringMeta(L.Get(i)).String()
		}
		fmt.Fprintln(e.out, strings.Join(parts, "\t"))
		return 0
	}))
}

func (e *Engine) installDocAPI() {
	L := e.state
	tbl := L.NewTable()
	L.SetFuncs(tbl, map[string]lua.LGFunction{
		"set": func(L *lua.LState) int {
			path := L.CheckString(1)
			if err := e.doc.Set(path, toGo(L.CheckAny(2))); err != nil {
				L.RaiseError("%s", err.Error())
			}
			return 0
		},
		"get": func(L *lua.LState) int {
			L.Push(fromJSON(L, e.doc.Get(L.CheckString(1))))
			return 1
		},
		"delete": func(L *lua.LState) int {
			if err := e.doc.Delete(L.CheckString(1)); err != nil {
				L.RaiseError("%s", err.Error())
			}
			return 0
		},
		"json": func(L *lua.LState) int {
			L.Push(lua.LString(e.doc.JSON()))
			return 1
		},
	})
	L.SetGlobal("doc", tbl)
}

func (e *Engine) installHistoryAPI() {
	L := e.state
	tbl := L.NewTable()
	L.SetFuncs(tbl, map[string]lua.LGFunction{
		"undo": func(L *lua.LState) int {
			return e.replay(L, e.history.Undo)
		},
		"redo": func(L *lua.LState) int {
			return e.replay(L, e.history.Redo)
		},
		"can_undo": func(L *lua.LState) int {
			L.Push(lua.LBool(e.history.CanUndo()))
			return 1
		},
		"can_redo": func(L *lua.LState) int {
			L.Push(lua.LBool(e.history.CanRedo()))
			return 1
		},
		"id": func(L *lua.LState) int {
			L.Push(lua.LNumber(e.history.CommandID()))
			return 1
		},
		"aggregate": func(L *lua.LState) int {
			name := L.CheckString(1)
			fn := L.CheckFunction(2)
			err := e.history.Aggregate(name, func() error {
				return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
			})
			if err != nil {
				L.RaiseError("%s", err.Error())
			}
			return 0
		},
	})
	L.SetGlobal("history", tbl)
}

// replay runs undo or redo and pushes whether anything was replayed.
func (e *Engine) replay(L *lua.LState, fn func() error) int {
	err := fn()
	switch {
	case err == nil:
		L.Push(lua.LTrue)
	case errors.Is(err, history.ErrNoMoreOperations):
		L.Push(lua.LFalse)
	default:
		L.RaiseError("%s", err.Error())
	}
	return 1
}
