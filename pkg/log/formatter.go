package log

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONFormatter renders entries as single-line JSON documents.
type JSONFormatter struct {
	// PrettyPrint indents output for human inspection; off by default.
	PrettyPrint bool
}

// Format implements Formatter.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	doc := make(map[string]interface{}, len(entry.Fields)+4)
	for k, v := range entry.Fields {
		doc[k] = v
	}
	doc["level"] = entry.Level.String()
	doc["msg"] = entry.Message
	doc["ts"] = entry.Timestamp.UTC().Format(rfc3339Milli)
	if entry.Caller != "" {
		doc["caller"] = entry.Caller
	}
	if entry.Error != nil {
		doc["error"] = entry.Error.Error()
	}
	if f.PrettyPrint {
		return json.MarshalIndent(doc, "", "  ")
	}
	return json.Marshal(doc)
}

// TextFormatter renders entries as a compact, human-readable line.
type TextFormatter struct {
	// DisableColor suppresses ANSI level coloring.
	DisableColor bool
}

const rfc3339Milli = "2006-01-02T15:04:05.000Z07:00"

// Format implements Formatter.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(entry.Timestamp.UTC().Format(rfc3339Milli))
	buf.WriteByte(' ')
	buf.WriteString(f.levelTag(entry.Level))
	buf.WriteByte(' ')
	buf.WriteString(entry.Message)
	if entry.Caller != "" {
		fmt.Fprintf(&buf, " caller=%s", entry.Caller)
	}
	for k, v := range entry.Fields {
		fmt.Fprintf(&buf, " %s=%v", k, v)
	}
	if entry.Error != nil {
		fmt.Fprintf(&buf, " error=%q", entry.Error.Error())
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (f *TextFormatter) levelTag(level Level) string {
	tag := fmt.Sprintf("[%-5s]", level.String())
	if f.DisableColor {
		return tag
	}
	code := "0"
	switch level {
	case DebugLevel:
		code = "36"
	case InfoLevel:
		code = "32"
	case WarnLevel:
		code = "33"
	case ErrorLevel, FatalLevel:
		code = "31"
	}
	return "\x1b[" + code + "m" + tag + "\x1b[0m"
}
