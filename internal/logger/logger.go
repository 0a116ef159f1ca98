// Package logger wraps logrus the way the teacher's scheduler-service does:
// a single structured logger, context-aware field injection, and a
// formatter chosen by configuration rather than hardcoded.
package logger

import (
	"context"
	"os"

	"catcore/internal/config"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Logger
}

type contextKey string

const (
	TraceIDKey   contextKey = "trace_id"
	SessionIDKey contextKey = "session_id"
)

// New creates a new logger instance from logging configuration.
func New(cfg *config.LoggingConfig) *Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	log.SetOutput(os.Stdout)

	return &Logger{Logger: log}
}

// WithContext adds trace/session fields carried on ctx to the logger.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.WithFields(logrus.Fields{})

	if traceID := ctx.Value(TraceIDKey); traceID != nil {
		entry = entry.WithField("trace_id", traceID)
	}
	if sessionID := ctx.Value(SessionIDKey); sessionID != nil {
		entry = entry.WithField("session_id", sessionID)
	}

	return entry
}

// WithTraceID attaches a trace ID to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithSessionID attaches a session ID to ctx.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}
