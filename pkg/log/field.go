package log

import "fmt"

// Field is a single structured logging attribute.
type Field struct {
	Key   string
	Value interface{}
}

// F creates a generic field from any value.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Str creates a string field.
func Str(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field under the conventional "error" key.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Component tags an entry with the emitting component/subsystem name.
func Component(name string) Field {
	return Field{Key: ComponentKey, Value: name}
}

func fieldsToMap(existing Fields, fields []Field) Fields {
	if len(fields) == 0 {
		return existing
	}
	out := make(Fields, len(existing)+len(fields))
	for k, v := range existing {
		out[k] = v
	}
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

func fmtArgs(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
