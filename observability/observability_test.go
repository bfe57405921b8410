package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.Info("ignored", String("k", "v"))
	if _, ok := l.With(Int("n", 1)).(NopLogger); !ok {
		t.Fatalf("With on NopLogger should stay a NopLogger")
	}
}

func TestFieldValues(t *testing.T) {
	if v := Error("err", errors.New("boom")).Value(); v != "boom" {
		t.Fatalf("error field value %v", v)
	}
	if v := Error("err", nil).Value(); v != nil {
		t.Fatalf("nil error field should be nil, got %v", v)
	}
	if v := Duration("d", 1500*time.Millisecond).Value(); v != "1.5s" {
		t.Fatalf("duration field value %v", v)
	}
}

func TestLogrusJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogrusWriter(&buf, "info", true)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	l.With(String("request_id", "abc")).Info("done", Int("pages", 3))
	l.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line at info level, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec["msg"] != "done" || rec["request_id"] != "abc" || rec["pages"] != float64(3) {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestLogrusBadLevel(t *testing.T) {
	if _, err := NewLogrusWriter(&bytes.Buffer{}, "loud", false); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
