package logger

import (
	"context"
	"log/slog"
)

// Slog adapts a standard library slog.Logger.
type Slog struct {
	l *slog.Logger
}

func NewSlog(l *slog.Logger) Slog {
	if l == nil {
		l = slog.Default()
	}
	return Slog{l: l}
}

func (s Slog) Debug(msg string, keyvals ...any) {
	s.l.Log(context.Background(), slog.LevelDebug, msg, keyvals...)
}

func (s Slog) Info(msg string, keyvals ...any) {
	s.l.Log(context.Background(), slog.LevelInfo, msg, keyvals...)
}

func (s Slog) Error(msg string, keyvals ...any) {
	s.l.Log(context.Background(), slog.LevelError, msg, keyvals...)
}
