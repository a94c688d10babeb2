package observability

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelLabels = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

var levelColors = map[Level]*color.Color{
	LevelDebug: color.New(color.FgHiBlack),
	LevelInfo:  color.New(color.FgCyan),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed),
}

// Logger writes leveled, timestamped lines to a writer. It satisfies the
// runtime's logger port.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
}

// NewLogger creates a logger that drops messages below min.
func NewLogger(out io.Writer, min Level) *Logger {
	return &Logger{out: out, level: min}
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.level {
		return
	}
	label := levelColors[level].Sprint(levelLabels[level])
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %-14s %s\n",
		time.Now().Format("15:04:05.000"), label, fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(LevelError, format, args...) }
