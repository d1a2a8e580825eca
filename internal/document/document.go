// Package document provides a JSON document model whose edits are recorded
// in a history.Manager.
//
// Every edit is applied immediately and then recorded as a reversible
// operation that restores the exact previous bytes on undo. Paths are
// dot-separated keys or array indices, e.g. "nodes.3.position.x".
package document

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/nodegraph/internal/history"
	"github.com/dshills/nodegraph/internal/notify"
)

// Document is an editable JSON object.
type Document struct {
	raw     string
	history *history.Manager

	savedID  history.CommandID
	dirty    bool
	sub      *notify.Subscription
	watchers []func(dirty bool)
}

// Option configures a Document.
type Option func(*Document) error

// WithContent sets the initial JSON content. It must be a JSON object.
func WithContent(content string) Option {
	return func(d *Document) error {
		if !gjson.Valid(content) || !gjson.Parse(content).IsObject() {
			return fmt.Errorf("%w: initial content must be a JSON object", ErrInvalidJSON)
		}
		d.raw = content
		return nil
	}
}

// New creates a document that records its edits in h.
// The initial state counts as saved.
func New(h *history.Manager, opts ...Option) (*Document, error) {
	d := &Document{
		raw:     "{}",
		history: h,
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	d.savedID = h.Root().CommandID()
	d.sub = h.Subscribe(d.onHistoryUpdated)
	return d, nil
}

// Close stops tracking history notifications.
func (d *Document) Close() {
	d.sub.Unsubscribe()
}

// JSON returns the compact document content.
func (d *Document) JSON() string {
	return d.raw
}

// Pretty returns the indented document content.
func (d *Document) Pretty() string {
	return string(pretty.Pretty([]byte(d.raw)))
}

// Get returns the value at path.
func (d *Document) Get(path string) gjson.Result {
	return gjson.Get(d.raw, path)
}

// Set stores a Go value (encoded as JSON) at path, creating parents as needed.
func (d *Document) Set(path string, value any) error {
	encoded, err := sjson.Set("", "v", value)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return d.SetRaw(path, gjson.Get(encoded, "v").Raw)
}

// SetRaw stores raw JSON at path, creating parents as needed.
func (d *Document) SetRaw(path, rawValue string) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	if !gjson.Valid(rawValue) {
		return fmt.Errorf("%w: %q", ErrInvalidJSON, rawValue)
	}

	forward := func(raw string) (string, error) {
		return sjson.SetRaw(raw, path, rawValue)
	}
	inverse, err := d.restoreFor(segments)
	if err != nil {
		return err
	}
	return d.apply("set "+path, forward, inverse)
}

// Delete removes the value at path.
func (d *Document) Delete(path string) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	if !gjson.Get(d.raw, path).Exists() {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	forward := func(raw string) (string, error) {
		return sjson.Delete(raw, path)
	}
	// Restore the parent wholesale so key order survives undo.
	inverse := d.restoreParent(segments)
	return d.apply("delete "+path, forward, inverse)
}

// transform rewrites the document content.
type transform func(raw string) (string, error)

// apply runs forward now and records the pair in the history.
func (d *Document) apply(label string, forward, inverse transform) error {
	next, err := forward(d.raw)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	d.raw = next

	d.history.RecordLabeled(label, d.run(forward), d.run(inverse))
	return nil
}

// run adapts a transform to a history action on this document.
func (d *Document) run(t transform) history.Action {
	return func() error {
		next, err := t(d.raw)
		if err != nil {
			return err
		}
		d.raw = next
		return nil
	}
}

// restoreFor builds the inverse of setting the value at segments.
func (d *Document) restoreFor(segments []string) (transform, error) {
	path := strings.Join(segments, ".")
	if old := gjson.Get(d.raw, path); old.Exists() {
		return setRaw(path, old.Raw), nil
	}

	// Find the first missing segment; everything above it exists.
	anchor := 1
	for ; anchor < len(segments); anchor++ {
		if !gjson.Get(d.raw, strings.Join(segments[:anchor], ".")).Exists() {
			break
		}
	}
	anchorPath := strings.Join(segments[:anchor], ".")
	parent := d.parent(segments[:anchor])

	if parent.IsArray() {
		// sjson pads arrays with nulls; restore the whole array.
		return d.restoreParent(segments[:anchor]), nil
	}
	if !parent.IsObject() {
		return nil, fmt.Errorf("%w: parent of %s is %s", ErrInvalidPath, anchorPath, parent.Type)
	}
	return deletePath(anchorPath), nil
}

// parent returns the value containing the last of segments.
func (d *Document) parent(segments []string) gjson.Result {
	if len(segments) <= 1 {
		return gjson.Parse(d.raw)
	}
	return gjson.Get(d.raw, strings.Join(segments[:len(segments)-1], "."))
}

// restoreParent captures the current parent of segments for restoration.
func (d *Document) restoreParent(segments []string) transform {
	if len(segments) <= 1 {
		whole := d.raw
		return func(string) (string, error) { return whole, nil }
	}
	parentPath := strings.Join(segments[:len(segments)-1], ".")
	return setRaw(parentPath, gjson.Get(d.raw, parentPath).Raw)
}

func setRaw(path, raw string) transform {
	return func(doc string) (string, error) {
		return sjson.SetRaw(doc, path, raw)
	}
}

func deletePath(path string) transform {
	return func(doc string) (string, error) {
		return sjson.Delete(doc, path)
	}
}

// splitPath validates a plain dotted path.
// Wildcards, modifiers, escapes and the append index "-1" are rejected.
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if strings.ContainsAny(path, `*?#|@\!=<>%`) {
		return nil, fmt.Errorf("%w: %q uses query syntax", ErrInvalidPath, path)
	}

	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" || s == "-1" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segments, nil
}

// MarkSaved records the current history position as saved.
func (d *Document) MarkSaved() {
	d.savedID = d.history.Root().CommandID()
	d.updateDirty()
}

// HasUnsavedChanges reports whether the history moved since the last save.
func (d *Document) HasUnsavedChanges() bool {
	return d.history.Root().CommandID() != d.savedID
}

// OnSaveStateChanged registers fn to be called whenever HasUnsavedChanges flips.
func (d *Document) OnSaveStateChanged(fn func(dirty bool)) {
	d.watchers = append(d.watchers, fn)
}

func (d *Document) onHistoryUpdated(notify.Change) {
	d.updateDirty()
}

func (d *Document) updateDirty() {
	dirty := d.HasUnsavedChanges()
	if dirty == d.dirty {
		return
	}
	d.dirty = dirty
	for _, fn := range d.watchers {
		fn(dirty)
	}
}
