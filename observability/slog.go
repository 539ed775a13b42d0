package observability

import (
	"context"
	"log/slog"
)

// SlogLogger routes library log calls to a log/slog logger.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }
func (s *SlogLogger) Info(msg string, fields ...Field)  { s.log(slog.LevelInfo, msg, fields) }
func (s *SlogLogger) Warn(msg string, fields ...Field)  { s.log(slog.LevelWarn, msg, fields) }
func (s *SlogLogger) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }

func (s *SlogLogger) With(fields ...Field) Logger {
	return &SlogLogger{l: s.l.With(toArgs(fields)...)}
}

func (s *SlogLogger) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}
	s.l.Log(ctx, level, msg, toArgs(fields)...)
}

func toArgs(fields []Field) []any {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		if f == nil {
			continue
		}
		v := f.Value()
		if err, ok := v.(error); ok && err != nil {
			v = err.Error()
		}
		args = append(args, slog.Any(f.Key(), v))
	}
	return args
}
