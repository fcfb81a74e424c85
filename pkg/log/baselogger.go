package log

import (
	"context"
	"log/slog"
	"os"
)

// rebind swaps the underlying slog.Logger for one built on handler h.
// Used by ApplyConfig to layer redaction/sampling onto the bridge handler.
func (l *BaseLogger) rebind(h *bridgeHandler) {
	l.slogLogger = slog.New(h)
}

func (l *BaseLogger) log(level Level, msg string, fields Fields) {
	if level < l.level {
		return
	}
	merged := fieldsToMap(l.fields, nil)
	for k, v := range fields {
		merged[k] = v
	}
	attrs := attrsFromMap(merged)
	args := attrsToAny(attrs)
	switch level {
	case DebugLevel:
		l.slogLogger.Debug(msg, args...)
	case InfoLevel:
		l.slogLogger.Info(msg, args...)
	case WarnLevel:
		l.slogLogger.Warn(msg, args...)
	case ErrorLevel:
		l.slogLogger.Error(msg, args...)
	case FatalLevel:
		l.slogLogger.Error(msg, args...)
		os.Exit(1)
	}
}

// Debug logs at debug level with structured fields.
func (l *BaseLogger) Debug(msg string, fields ...Field) {
	l.log(DebugLevel, msg, fieldsToMap(Fields{}, fields))
}

// Info logs at info level with structured fields.
func (l *BaseLogger) Info(msg string, fields ...Field) {
	l.log(InfoLevel, msg, fieldsToMap(Fields{}, fields))
}

// Warn logs at warn level with structured fields.
func (l *BaseLogger) Warn(msg string, fields ...Field) {
	l.log(WarnLevel, msg, fieldsToMap(Fields{}, fields))
}

// Error logs at error level with structured fields.
func (l *BaseLogger) Error(msg string, fields ...Field) {
	l.log(ErrorLevel, msg, fieldsToMap(Fields{}, fields))
}

// Fatal logs at fatal level then terminates the process.
func (l *BaseLogger) Fatal(msg string, fields ...Field) {
	l.log(FatalLevel, msg, fieldsToMap(Fields{}, fields))
}

// Debugf logs at debug level using printf-style formatting.
func (l *BaseLogger) Debugf(msg string, args ...interface{}) {
	l.log(DebugLevel, fmtArgs(msg, args), Fields{})
}

// Infof logs at info level using printf-style formatting.
func (l *BaseLogger) Infof(msg string, args ...interface{}) {
	l.log(InfoLevel, fmtArgs(msg, args), Fields{})
}

// Warnf logs at warn level using printf-style formatting.
func (l *BaseLogger) Warnf(msg string, args ...interface{}) {
	l.log(WarnLevel, fmtArgs(msg, args), Fields{})
}

// Errorf logs at error level using printf-style formatting.
func (l *BaseLogger) Errorf(msg string, args ...interface{}) {
	l.log(ErrorLevel, fmtArgs(msg, args), Fields{})
}

// Fatalf logs at fatal level using printf-style formatting then terminates the process.
func (l *BaseLogger) Fatalf(msg string, args ...interface{}) {
	l.log(FatalLevel, fmtArgs(msg, args), Fields{})
}

func (l *BaseLogger) clone() *BaseLogger {
	nl := &BaseLogger{
		level:     l.level,
		fields:    fieldsToMap(l.fields, nil),
		formatter: l.formatter,
		outputs:   l.outputs,
	}
	nl.slogLogger = l.slogLogger
	return nl
}

// WithField returns a derived logger carrying an additional field.
func (l *BaseLogger) WithField(key string, value interface{}) Logger {
	nl := l.clone()
	nl.fields[key] = value
	return nl
}

// WithFields returns a derived logger carrying additional fields.
func (l *BaseLogger) WithFields(fields Fields) Logger {
	nl := l.clone()
	for k, v := range fields {
		nl.fields[k] = v
	}
	return nl
}

// WithError returns a derived logger carrying an error field.
func (l *BaseLogger) WithError(err error) Logger {
	nl := l.clone()
	if err != nil {
		nl.fields["error"] = err.Error()
	}
	return nl
}

// With returns a derived logger carrying the given fields (Field-based API).
func (l *BaseLogger) With(fields ...Field) Logger {
	nl := l.clone()
	for _, f := range fields {
		nl.fields[f.Key] = f.Value
	}
	return nl
}

// WithContext returns a derived logger enriched with fields extracted from ctx.
func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	extracted := ContextExtractor(ctx)
	if len(extracted) == 0 {
		return l
	}
	nl := l.clone()
	for k, v := range extracted {
		nl.fields[k] = v
	}
	return nl
}

// WithComponent returns a derived logger tagged with a component name.
func (l *BaseLogger) WithComponent(component string) Logger {
	return l.With(Component(component))
}

// SetLevel updates the minimum level this logger emits.
func (l *BaseLogger) SetLevel(level Level) {
	l.level = level
}

// GetLevel returns the current minimum level.
func (l *BaseLogger) GetLevel() Level {
	return l.level
}
