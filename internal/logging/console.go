package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one line per record:
//
//	12:00:00 WARN  [replication] ger/gerdracor (per_item_copy) play copy failed play=x
//	    error: ...
//	    hint: ...
//
// Error, hint and impact get their own indented lines on warnings and
// errors so the operator sees them without scanning the key=value tail.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool
	attrs     []field
	prefix    string
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]field(nil), h.attrs...)
	for _, attr := range attrs {
		clone.attrs = appendAttr(clone.attrs, h.prefix, attr)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	fields := append([]field(nil), h.attrs...)
	r.Attrs(func(attr slog.Attr) bool {
		fields = appendAttr(fields, h.prefix, attr)
		return true
	})
	fields = lastWins(fields)

	var component, corpus, source, stage string
	var tail, notes []field
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = f.value.String()
		case FieldCorpus:
			corpus = f.value.String()
		case FieldSource:
			source = f.value.String()
		case FieldStage:
			stage = f.value.String()
		case FieldRunID:
			if r.Level < slog.LevelInfo {
				tail = append(tail, f)
			}
		case "error", FieldErrorHint, FieldImpact:
			if r.Level >= slog.LevelWarn {
				notes = append(notes, f)
			} else {
				tail = append(tail, f)
			}
		default:
			tail = append(tail, f)
		}
	}

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var buf bytes.Buffer
	buf.WriteString(ts.Format("15:04:05"))
	buf.WriteByte(' ')
	buf.WriteString(fmt.Sprintf("%-5s", levelName(r.Level)))
	if component != "" {
		buf.WriteString(" [" + component + "]")
	}
	if subject := subject(corpus, source, stage); subject != "" {
		buf.WriteString(" " + subject)
	}
	buf.WriteByte(' ')
	buf.WriteString(strings.TrimSpace(r.Message))
	for _, f := range tail {
		buf.WriteByte(' ')
		buf.WriteString(f.key)
		buf.WriteByte('=')
		buf.WriteString(quote(render(f.value)))
	}
	if h.addSource && r.Level < slog.LevelInfo && r.PC != 0 {
		if src := r.Source(); src != nil && src.File != "" {
			buf.WriteString(" (" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + ")")
		}
	}
	buf.WriteByte('\n')
	for _, f := range notes {
		label := f.key
		if label == FieldErrorHint {
			label = "hint"
		}
		buf.WriteString("    " + label + ": " + render(f.value) + "\n")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// subject renders "corpus/source (stage)", leaving out empty parts and a
// source that repeats the corpus name.
func subject(corpus, source, stage string) string {
	s := corpus
	if source != "" && source != corpus {
		if s != "" {
			s += "/"
		}
		s += source
	}
	if stage == "" {
		return s
	}
	if s == "" {
		return "(" + stage + ")"
	}
	return s + " (" + stage + ")"
}

func appendAttr(dst []field, prefix string, attr slog.Attr) []field {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	if attr.Value.Kind() == slog.KindGroup {
		inner := prefix
		if attr.Key != "" {
			inner += attr.Key + "."
		}
		for _, a := range attr.Value.Group() {
			dst = appendAttr(dst, inner, a)
		}
		return dst
	}
	return append(dst, field{key: prefix + attr.Key, value: attr.Value})
}

func lastWins(fields []field) []field {
	index := make(map[string]int, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func render(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		switch val := v.Any().(type) {
		case error:
			return val.Error()
		case []string:
			return strings.Join(val, ",")
		case nil:
			return "<nil>"
		default:
			return fmt.Sprint(val)
		}
	default:
		return v.String()
	}
}

func quote(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '"' || r == '=' }) {
		return strconv.Quote(s)
	}
	return s
}
