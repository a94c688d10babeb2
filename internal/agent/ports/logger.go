package ports

import "time"

// Logger defines a minimal, printf-style logging contract.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// NoopLogger discards all output.
type NoopLogger struct{}

func (NoopLogger) Debug(string, ...any) {}
func (NoopLogger) Info(string, ...any)  {}
func (NoopLogger) Warn(string, ...any)  {}
func (NoopLogger) Error(string, ...any) {}

// OrNoop returns logger when non-nil, otherwise a no-op logger.
func OrNoop(logger Logger) Logger {
	if logger == nil {
		return NoopLogger{}
	}
	return logger
}

// Clock abstracts time so the engine is deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// OrSystem returns clock when non-nil, otherwise the system clock.
func OrSystem(clock Clock) Clock {
	if clock == nil {
		return SystemClock{}
	}
	return clock
}
