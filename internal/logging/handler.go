package logging

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// output pairs the current destination handler with a generation counter so
// derived views can tell when a swap happened.
type output struct {
	handler slog.Handler
	gen     uint64
}

// sink is the root handler behind every logger the Manager hands out. It
// gates records on the manager's single LevelVar and forwards them to an
// atomically swappable destination, so an Upgrade retargets every logger in
// flight. Destination handlers are built without their own level option; the
// LevelVar here is the one authority.
type sink struct {
	level *slog.LevelVar
	out   atomic.Pointer[output]
}

func newSink(level *slog.LevelVar, dest slog.Handler) *sink {
	s := &sink{level: level}
	s.out.Store(&output{handler: dest, gen: 0})
	return s
}

// swap atomically replaces the destination handler.
func (s *sink) swap(dest slog.Handler) {
	gen := s.out.Load().gen + 1
	s.out.Store(&output{handler: dest, gen: gen})
}

// Enabled reports whether the handler handles records at the given level.
func (s *sink) Enabled(_ context.Context, level slog.Level) bool {
	return level >= s.level.Level()
}

// Handle handles the Record.
func (s *sink) Handle(ctx context.Context, r slog.Record) error {
	return s.out.Load().handler.Handle(ctx, r)
}

// WithAttrs returns a derived view carrying the attributes.
func (s *sink) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return s
	}
	return &derived{
		root: s,
		ops:  []func(slog.Handler) slog.Handler{withAttrs(attrs)},
	}
}

// WithGroup returns a derived view carrying the group.
func (s *sink) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}
	return &derived{
		root: s,
		ops:  []func(slog.Handler) slog.Handler{withGroup(name)},
	}
}

func withAttrs(attrs []slog.Attr) func(slog.Handler) slog.Handler {
	return func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) }
}

func withGroup(name string) func(slog.Handler) slog.Handler {
	return func(h slog.Handler) slog.Handler { return h.WithGroup(name) }
}

// derived is the view produced by WithAttrs or WithGroup. Instead of
// snapshotting the destination at creation time, it keeps a reference to the
// shared sink and replays its attr and group chain against the live
// destination, so a component logger created before the Upgrade still follows
// the swap. The replayed handler is cached per destination generation.
type derived struct {
	root *sink
	ops  []func(slog.Handler) slog.Handler

	mu     sync.Mutex
	cached slog.Handler
	gen    uint64
}

// handler returns the destination with the attr/group chain applied,
// rebuilding the cache after a swap.
func (d *derived) handler() slog.Handler {
	out := d.root.out.Load()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached == nil || d.gen != out.gen {
		h := out.handler
		for _, op := range d.ops {
			h = op(h)
		}
		d.cached = h
		d.gen = out.gen
	}
	return d.cached
}

// Enabled reports whether the handler handles records at the given level.
func (d *derived) Enabled(_ context.Context, level slog.Level) bool {
	return level >= d.root.level.Level()
}

// Handle handles the Record.
func (d *derived) Handle(ctx context.Context, r slog.Record) error {
	return d.handler().Handle(ctx, r)
}

// WithAttrs returns a derived view with the attributes appended to the chain.
func (d *derived) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return d
	}
	return d.extend(withAttrs(attrs))
}

// WithGroup returns a derived view with the group appended to the chain.
func (d *derived) WithGroup(name string) slog.Handler {
	if name == "" {
		return d
	}
	return d.extend(withGroup(name))
}

func (d *derived) extend(op func(slog.Handler) slog.Handler) slog.Handler {
	ops := make([]func(slog.Handler) slog.Handler, 0, len(d.ops)+1)
	ops = append(ops, d.ops...)
	ops = append(ops, op)
	return &derived{root: d.root, ops: ops}
}
