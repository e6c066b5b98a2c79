package logger

import (
	"log"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapWriter implements io.Writer on top of a zap logger so that components
// expecting a standard library logger write structured entries instead.
type ZapWriter struct {
	logger *zap.Logger
	level  zapcore.Level
	prefix string
}

// - logger: the Zap structured logger.
// - level: the log level at which messages should be logged.
// - prefix: the prefix to include as a separate field (optional).
func NewZapWriter(logger *zap.Logger, level zapcore.Level, prefix string) *ZapWriter {
	return &ZapWriter{
		logger: logger,
		level:  level,
		prefix: prefix,
	}
}

// NewStdLogger returns a *log.Logger writing through zap at the given level.
func NewStdLogger(logger *zap.Logger, level zapcore.Level, prefix string) *log.Logger {
	return log.New(NewZapWriter(logger, level, prefix), "", 0)
}

// Write implements the io.Writer interface.
func (w *ZapWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}

	var fields []zap.Field
	if w.prefix != "" {
		fields = append(fields, zap.String("prefix", w.prefix))
	}

	if ce := w.logger.Check(w.level, msg); ce != nil {
		ce.Write(fields...)
	}
	return len(p), nil
}
