package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentBudget, Handler: NewHandler(&buf, "debug", "json")})

	logger.InfoContext(context.Background(), "Budget alert published", FieldPercentage, 85.5)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry[FieldComponent] != ComponentBudget {
		t.Fatalf("component missing: %v", entry)
	}
	if entry[FieldPercentage] != 85.5 {
		t.Fatalf("percentage missing: %v", entry)
	}
}

func TestHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentApp, Handler: NewHandler(&buf, "warn", "text")})
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestMiddlewareStoresLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentHTTP, Handler: NewHandler(&buf, "info", "text")})

	var got *Logger
	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req_1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
			got.Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got == nil || !strings.Contains(buf.String(), "request_id=req_1") {
		t.Fatalf("request id not attached: %q", buf.String())
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext must fall back to the default logger")
	}
}

func TestFieldsBuilder(t *testing.T) {
	fields := NewFields().
		WithUser("a@example.com").
		WithTransaction("trans_1", "expense", "food", "12.5", "USD").
		WithError(errors.New("boom")).
		WithErrorType(ErrorTypeDatabase)

	if fields[FieldUser] != "a@example.com" || fields[FieldCategory] != "food" || fields[FieldError] != "boom" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if len(fields.ToSlice()) != 2*len(fields) {
		t.Fatalf("ToSlice must flatten key/value pairs")
	}
	if NewFields().WithError(nil)[FieldError] != nil {
		t.Fatal("nil error must not add a field")
	}
}

func TestWithComponentReplacesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Component: ComponentApp, Handler: NewHandler(&buf, "info", "text")})
	logger.WithComponent(ComponentCache).Info("swept")
	if strings.Count(buf.String(), "component=") != 1 || !strings.Contains(buf.String(), "component=cache") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}
