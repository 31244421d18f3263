package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/soniakeys/unit"
)

// DefaultPrecision is the number of decimal places kept for float attributes.
const DefaultPrecision = 3

// Format selects the log output encoding.
type Format string

const (
	// FormatText writes logfmt-style key=value lines.
	FormatText Format = "text"
	// FormatJSON writes one JSON object per record.
	FormatJSON Format = "json"
)

// ParseFormat converts a flag value into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q (valid: text, json)", s)
	}
}

// Handler wraps an slog.Handler and rewrites attribute values into a
// readable form before passing them on.
type Handler struct {
	// handler is the underlying slog handler that receives rewritten records.
	handler slog.Handler

	// scale is 10^precision.
	scale float64

	// home is the user's home directory, or "" to keep paths unchanged.
	home string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithPrecision sets the number of decimal places kept for floats.
// A negative value disables rounding.
func WithPrecision(n int) HandlerOption {
	return func(h *Handler) {
		if n < 0 {
			h.scale = 0
			return
		}
		h.scale = math.Pow10(n)
	}
}

// WithHomeDir sets the directory replaced by "~" in string attributes.
// An empty dir disables shortening.
func WithHomeDir(dir string) HandlerOption {
	return func(h *Handler) {
		h.home = filepath.Clean(dir)
		if dir == "" {
			h.home = ""
		}
	}
}

// NewHandler creates a Handler wrapping the given handler.
// If handler is nil, the returned Handler uses slog.Default().Handler().
// By default floats keep DefaultPrecision decimals and the current user's
// home directory is shortened.
func NewHandler(handler slog.Handler, opts ...HandlerOption) *Handler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	h := &Handler{
		handler: handler,
		scale:   math.Pow10(DefaultPrecision),
	}
	if home, err := os.UserHomeDir(); err == nil {
		h.home = filepath.Clean(home)
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle rewrites the record's attributes and passes it to the underlying handler.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.formatAttr(a))
		return true
	})

	return h.handler.Handle(ctx, out)
}

// WithAttrs returns a new handler with the given attributes added.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	formatted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		formatted[i] = h.formatAttr(a)
	}
	clone := *h
	clone.handler = h.handler.WithAttrs(formatted)
	return &clone
}

// WithGroup returns a new handler with the given group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.handler = h.handler.WithGroup(name)
	return &clone
}

// formatAttr rewrites a single attribute, recursively handling groups.
func (h *Handler) formatAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	switch v.Kind() {
	case slog.KindGroup:
		attrs := v.Group()
		formatted := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			formatted[i] = h.formatAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(formatted...)}

	case slog.KindFloat64:
		return slog.Float64(a.Key, h.round(v.Float64()))

	case slog.KindString:
		return slog.String(a.Key, h.shortenPath(v.String()))

	case slog.KindAny:
		if angle, ok := v.Any().(unit.Angle); ok {
			return slog.Float64(a.Key, h.round(angle.Deg()))
		}
	}

	return slog.Attr{Key: a.Key, Value: v}
}

// round keeps the configured number of decimals. Non-finite values and
// values whose scaled form would overflow are returned unchanged.
func (h *Handler) round(f float64) float64 {
	if h.scale == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	scaled := f * h.scale
	if math.IsInf(scaled, 0) {
		return f
	}
	return math.Round(scaled) / h.scale
}

// shortenPath replaces a leading home directory with "~".
func (h *Handler) shortenPath(s string) string {
	if h.home == "" || h.home == string(filepath.Separator) {
		return s
	}
	if s == h.home {
		return "~"
	}
	if rest, ok := strings.CutPrefix(s, h.home+string(filepath.Separator)); ok {
		return "~" + string(filepath.Separator) + rest
	}
	return s
}

// NewLogger creates a text logger writing to w.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
func NewLogger(w io.Writer, verbose bool, opts ...HandlerOption) *slog.Logger {
	return slog.New(NewHandler(slog.NewTextHandler(w, handlerOptions(verbose)), opts...))
}

// NewJSONLogger creates a logger that writes JSON lines to w.
// Useful for structured log aggregation.
func NewJSONLogger(w io.Writer, verbose bool, opts ...HandlerOption) *slog.Logger {
	return slog.New(NewHandler(slog.NewJSONHandler(w, handlerOptions(verbose)), opts...))
}

// New creates a logger in the given format.
func New(w io.Writer, verbose bool, format Format, opts ...HandlerOption) *slog.Logger {
	if format == FormatJSON {
		return NewJSONLogger(w, verbose, opts...)
	}
	return NewLogger(w, verbose, opts...)
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
