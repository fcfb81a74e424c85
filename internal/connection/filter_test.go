package connection

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestValueFilterEmptyExpressionAlwaysPasses(t *testing.T) {
	f, err := NewValueFilter("")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Eval("alice", "TOPIC", json.RawMessage(`1`), nil) {
		t.Fatalf("expected empty filter to pass")
	}
}

func TestValueFilterEvaluatesAgainstValue(t *testing.T) {
	f, err := NewValueFilter(`value > 10`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if f.Eval("k", "TOPIC", json.RawMessage(`5`), nil) {
		t.Fatalf("expected 5 > 10 to fail")
	}
	if !f.Eval("k", "TOPIC", json.RawMessage(`20`), nil) {
		t.Fatalf("expected 20 > 10 to pass")
	}
}

func TestValueFilterRejectsInvalidExpression(t *testing.T) {
	if _, err := NewValueFilter("value +"); err == nil {
		t.Fatalf("expected compile error for malformed expression")
	}
}

func TestScopeString(t *testing.T) {
	if got := scopeString(nil); got != "TOPIC" {
		t.Fatalf("expected TOPIC for nil owner, got %s", got)
	}
	id := uuid.New()
	if got := scopeString(&id); got != "CONNECTION" {
		t.Fatalf("expected CONNECTION for non-nil owner, got %s", got)
	}
}
