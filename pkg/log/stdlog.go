package log

import (
	"log"
	"strings"
)

// stdLogWriter adapts a Logger into an io.Writer suitable for log.SetOutput,
// splitting each line into a log entry at InfoLevel.
type stdLogWriter struct {
	logger Logger
}

func (w stdLogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if msg != "" {
		w.logger.Info(msg)
	}
	return len(p), nil
}

// RedirectStdLog points the standard library's default logger at l, so that
// third-party packages using log.Print* end up in our structured pipeline.
func RedirectStdLog(l Logger) {
	log.SetFlags(0)
	log.SetOutput(stdLogWriter{logger: l})
}

// ToStdLogger returns a *log.Logger that forwards writes into l at InfoLevel,
// for handing to libraries that require the standard library's logger type.
func ToStdLogger(l Logger) *log.Logger {
	return log.New(stdLogWriter{logger: l}, "", 0)
}
