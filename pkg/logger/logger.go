package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
	colorRed    = "\033[91m"
	colorYellow = "\033[93m"
	colorGray   = "\033[90m"
)

// ServiceNameWidth is the fixed width of the service column.
const ServiceNameWidth = 20

const levelWidth = 9

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// levelStyle holds the console marker and color for each level.
var levelStyle = [...]struct{ mark, color string }{
	LevelDebug: {"◦", colorGray},
	LevelInfo:  {"ℹ", colorGreen},
	LevelWarn:  {"⚠", colorYellow},
	LevelError: {"✗", colorRed},
}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a level name to a Level. Unknown names map to LevelInfo.
func ParseLevel(name string) Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	}
	return LevelInfo
}

// sink is the destination shared by a logger and everything derived from it
// with WithFields.
type sink struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
	color bool
}

// Logger writes aligned, leveled lines:
//
//	[2006-01-02 15:04:05.000] [anchor              ] [ℹ INFO   ] message k=v
type Logger struct {
	service string
	version string
	fields  map[string]string
	sink    *sink
}

// New returns a logger writing to stdout at LevelInfo.
func New(service, version string) *Logger {
	return &Logger{
		service: service,
		version: version,
		sink:    &sink{out: os.Stdout, level: LevelInfo, color: stdoutIsTerminal()},
	}
}

func stdoutIsTerminal() bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	info, err := os.Stdout.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// SetOutput redirects output. Colors stay on only for a terminal stdout.
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.out = w
	l.sink.color = w == os.Stdout && stdoutIsTerminal()
	l.sink.mu.Unlock()
}

func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	l.sink.level = level
	l.sink.mu.Unlock()
}

// WithFields returns a logger sharing this one's output that appends the
// given key=value pairs to every line.
func (l *Logger) WithFields(fields map[string]string) *Logger {
	merged := make(map[string]string, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{service: l.service, version: l.version, fields: merged, sink: l.sink}
}

func (l *Logger) Debug(msg string, args ...any) { l.write(LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.write(LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.write(LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.write(LevelError, msg, args) }

func (l *Logger) write(level Level, msg string, args []any) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if level < s.level || s.out == nil {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	style := levelStyle[level]
	label := fmt.Sprintf("%-*s", levelWidth, style.mark+" "+level.String())
	if s.color {
		label = style.color + label + colorReset
	}
	line := fmt.Sprintf("[%s] [%s] [%s] %s%s",
		time.Now().Format("2006-01-02 15:04:05.000"), formatServiceName(l.service), label, msg, formatFields(l.fields))
	if s.color {
		line = colorCyan + line + colorReset
	}
	fmt.Fprintln(s.out, line)
}

func formatServiceName(name string) string {
	if len(name) > ServiceNameWidth {
		return name[:ServiceNameWidth-1] + "…"
	}
	return fmt.Sprintf("%-*s", ServiceNameWidth, name)
}

func formatFields(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, fields[k])
	}
	return b.String()
}
