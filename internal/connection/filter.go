package connection

import (
	"encoding/json"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/uuid"
)

// ValueFilter is an optional CEL expression evaluated against a
// subscription's change stream, exposed by GetNamedMap/GetNamedList's
// SubscribeFiltered (§2 DOMAIN STACK, §4.6).
type ValueFilter struct {
	prog    cel.Program
	enabled bool
}

// NewValueFilter compiles expr. An empty expression yields a filter that
// always passes. Variables available to the expression: `key` (string,
// map key or list entry UUID as string), `scope` ("TOPIC"/"CONNECTION"),
// `value` (the new value, parsed JSON, or null on removal), and
// `old_value` (the previous value, or null).
func NewValueFilter(expr string) (ValueFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ValueFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("key", cel.StringType),
		cel.Variable("scope", cel.StringType),
		cel.Variable("value", cel.DynType),
		cel.Variable("old_value", cel.DynType),
	)
	if err != nil {
		return ValueFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return ValueFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return ValueFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return ValueFilter{}, err
	}
	return ValueFilter{prog: prog, enabled: true}, nil
}

// Eval reports whether the change passes the filter. A disabled filter
// always passes.
func (f ValueFilter) Eval(key string, scope string, value, oldValue json.RawMessage) bool {
	if !f.enabled {
		return true
	}
	var v, ov any
	_ = json.Unmarshal(value, &v)
	_ = json.Unmarshal(oldValue, &ov)
	out, _, err := f.prog.Eval(map[string]any{
		"key":       key,
		"scope":     scope,
		"value":     v,
		"old_value": ov,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// scopeString renders an optional scope-owner node UUID for CEL
// scope classification: present -> CONNECTION, absent -> TOPIC.
func scopeString(owner *uuid.UUID) string {
	if owner != nil {
		return "CONNECTION"
	}
	return "TOPIC"
}
