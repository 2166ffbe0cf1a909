// Package colorlog provides a labelled, colorized slog handler for terminal
// output. Color is auto-detected from the output writer unless overridden.
package colorlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

const (
	ansiReset  = "\033[0m"
	ansiGray   = "\033[37m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiCyan   = "\033[36m"
	ansiBlue   = "\033[34m"
)

type Options struct {
	Output   io.Writer
	Level    slog.Level
	UseColor *bool // nil = auto-detect
}

// Handler is a slog.Handler that prints one human-readable line per record,
// prefixed with a timestamp and the logger's label.
type Handler struct {
	label string
	opts  Options
	mu    *sync.Mutex // shared across WithAttrs/WithGroup clones
	attrs []slog.Attr
	group string
	color bool
}

// New returns a labelled *slog.Logger writing to stdout unless configured
// otherwise.
func New(label string, opts ...Options) *slog.Logger {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Output == nil {
		o.Output = os.Stdout
	}
	return slog.New(&Handler{
		label: label,
		opts:  o,
		mu:    &sync.Mutex{},
		color: detectColor(o.Output, o.UseColor),
	})
}

func detectColor(w io.Writer, override *bool) bool {
	if override != nil {
		return *override
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	b.WriteString(h.paint(ansiGray, r.Time.Format("2006/01/02 15:04:05")))
	b.WriteString("  (")
	b.WriteString(h.paint(ansiBlue, h.label))
	b.WriteString(")  ")
	b.WriteString(h.paint(h.levelColor(r.Level), h.levelPrefix(r.Level)+r.Message))

	all := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	all = append(all, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		all = append(all, h.qualify(a))
		return true
	})
	for _, a := range all {
		fmt.Fprintf(&b, "  %s%s%s%v%s",
			h.paint(ansiGray, "["),
			h.paint(ansiGray, a.Key),
			h.paint(ansiGray, "="),
			a.Value.Any(),
			h.paint(ansiGray, "]"),
		)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	_, err := io.WriteString(h.opts.Output, b.String())
	h.mu.Unlock()
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, h.qualify(a))
	}
	return &clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.group == "" {
		clone.group = name
	} else {
		clone.group = h.group + "." + name
	}
	return &clone
}

func (h *Handler) qualify(a slog.Attr) slog.Attr {
	if h.group == "" {
		return a
	}
	return slog.Attr{Key: h.group + "." + a.Key, Value: a.Value}
}

func (h *Handler) paint(color, s string) string {
	if !h.color {
		return s
	}
	return color + s + ansiReset
}

func (h *Handler) levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed
	case level >= slog.LevelWarn:
		return ansiYellow
	case level >= slog.LevelInfo:
		return ansiCyan
	default:
		return ansiGray
	}
}

func (h *Handler) levelPrefix(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR  "
	case level >= slog.LevelWarn:
		return "WARNING  "
	case level >= slog.LevelInfo:
		return ""
	default:
		return "DEBUG  "
	}
}
